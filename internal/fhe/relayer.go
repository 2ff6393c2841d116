package fhe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/m3rciful/sealbid/core/logger"
)

const (
	keyURLPath  = "/v1/keyurl"
	encryptPath = "/v1/encrypt"

	// euint64 is the encrypted input type accepted by bid(bytes32,bytes).
	euint64 = "euint64"

	maxErrorBody = 512
)

// RelayerClient talks to an encryption gateway over HTTP. It is built by a
// Factory from NewRelayerFactory once the gateway answered the key handshake.
//
// The /v1/keyurl and /v1/encrypt exchange is not the Zama relayer protocol:
// there the ciphertext and input proof are built client-side by the FHE SDK
// and the relayer only verifies them. RelayerClient stands in for that SDK
// behind the Client interface and needs a gateway that performs the
// encryption.
type RelayerClient struct {
	baseURL string
	http    *http.Client
}

// NewRelayerFactory returns a Factory that dials baseURL with hc.
func NewRelayerFactory(baseURL string, hc *http.Client) Factory {
	return func(ctx context.Context) (Client, error) {
		if hc == nil {
			hc = http.DefaultClient
		}
		c := &RelayerClient{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
		if err := c.handshake(ctx); err != nil {
			return nil, err
		}
		return c, nil
	}
}

type keyURLResponse struct {
	Response json.RawMessage `json:"response"`
	Status   string          `json:"status"`
}

// handshake fetches the public key descriptor; a relayer that cannot serve
// it cannot produce valid ciphertexts either.
func (c *RelayerClient) handshake(ctx context.Context) error {
	start := time.Now()
	var out keyURLResponse
	if err := c.do(ctx, http.MethodGet, keyURLPath, nil, &out); err != nil {
		return fmt.Errorf("relayer handshake: %w", err)
	}
	if len(out.Response) == 0 || string(out.Response) == "null" {
		return fmt.Errorf("relayer handshake: empty key descriptor")
	}
	logger.FHE.Info("relayer handshake",
		slog.String("event", "fhe.relayer.handshake"),
		slog.String("status", "ok"),
		slog.String("relayer", c.baseURL),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

type encryptValue struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type encryptRequest struct {
	ContractAddress string         `json:"contractAddress"`
	UserAddress     string         `json:"userAddress"`
	Values          []encryptValue `json:"values"`
}

type encryptResponse struct {
	Handles    []string `json:"handles"`
	InputProof string   `json:"inputProof"`
}

// Encrypt implements Client.
func (c *RelayerClient) Encrypt(ctx context.Context, amount uint64, contract, user common.Address) (Ciphertext, error) {
	req := encryptRequest{
		ContractAddress: contract.Hex(),
		UserAddress:     user.Hex(),
		Values:          []encryptValue{{Type: euint64, Value: strconv.FormatUint(amount, 10)}},
	}
	var out encryptResponse
	if err := c.do(ctx, http.MethodPost, encryptPath, req, &out); err != nil {
		return Ciphertext{}, err
	}
	if len(out.Handles) != 1 {
		return Ciphertext{}, fmt.Errorf("relayer returned %d handles, want 1", len(out.Handles))
	}
	handle, err := hexutil.Decode(out.Handles[0])
	if err != nil {
		return Ciphertext{}, fmt.Errorf("decode handle: %w", err)
	}
	if len(handle) != 32 {
		return Ciphertext{}, fmt.Errorf("handle is %d bytes, want 32", len(handle))
	}
	proof, err := hexutil.Decode(out.InputProof)
	if err != nil {
		return Ciphertext{}, fmt.Errorf("decode input proof: %w", err)
	}

	var ct Ciphertext
	copy(ct.Handle[:], handle)
	ct.Proof = proof
	return ct, nil
}

func (c *RelayerClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	var raw []byte
	if in != nil {
		var err error
		raw, err = json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// HTTPError is a non-2xx relayer answer.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("relayer: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("relayer: HTTP %d: %s", e.StatusCode, e.Body)
}
