// Package state keeps per-user conversation state for multi-step commands.
// Sessions expire after a configurable TTL and read as idle once expired.
package state
