package logger

import (
	"regexp"
	"strings"
	"sync"
)

const redacted = "<redacted>"

var botTokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

// redactor scrubs registered secrets and Telegram bot tokens from string fields.
type redactor struct {
	mu      sync.RWMutex
	secrets []string
}

var secrets = &redactor{}

// RegisterSecret adds a literal value that must never reach log output.
// Values shorter than 8 characters are ignored to avoid mangling ordinary text.
func RegisterSecret(values ...string) {
	secrets.add(values...)
}

// Redact applies the registered secret list and token pattern to s.
func Redact(s string) string {
	return secrets.scrub(s)
}

func (r *redactor) add(values ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range values {
		v = strings.TrimSpace(v)
		if len(v) < 8 {
			continue
		}
		r.secrets = append(r.secrets, v)
		if trimmed := strings.TrimPrefix(v, "0x"); trimmed != v && len(trimmed) >= 8 {
			r.secrets = append(r.secrets, trimmed)
		}
	}
}

func (r *redactor) scrub(s string) string {
	if r == nil || s == "" {
		return s
	}
	s = botTokenRe.ReplaceAllString(s, "bot"+redacted)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, secret := range r.secrets {
		if strings.Contains(s, secret) {
			s = strings.ReplaceAll(s, secret, redacted)
		}
	}
	return s
}

func (r *redactor) apply(fields map[string]any) {
	if r == nil {
		return
	}
	for k, v := range fields {
		if s, ok := v.(string); ok {
			fields[k] = r.scrub(s)
		}
	}
}
