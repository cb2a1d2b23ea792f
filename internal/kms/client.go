// Package kms encrypts todo titles with a remote key-management service.
package kms

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultEndpoint is the NCP KMS API gateway.
const DefaultEndpoint = "https://kms.apigw.ntruss.com"

const successCode = "SUCCESS"

// Client encrypts and decrypts short strings with a managed key.
type Client interface {
	Encrypt(ctx context.Context, plaintext string) (string, error)
	Decrypt(ctx context.Context, ciphertext string) (string, error)
}

// NCPConfig configures NCPClient.
type NCPConfig struct {
	Endpoint  string
	KeyTag    string
	AccessKey string
	SecretKey string
	Timeout   time.Duration
}

// NCPClient calls the NCP KMS REST API with signature v2 authentication.
type NCPClient struct {
	endpoint  string
	keyTag    string
	accessKey string
	secretKey string
	http      *http.Client
	now       func() time.Time
}

var _ Client = (*NCPClient)(nil)

// NewNCPClient creates a KMS client. A zero timeout defaults to five seconds.
func NewNCPClient(cfg NCPConfig) *NCPClient {
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &NCPClient{
		endpoint:  endpoint,
		keyTag:    cfg.KeyTag,
		accessKey: cfg.AccessKey,
		secretKey: cfg.SecretKey,
		http:      &http.Client{Timeout: timeout},
		now:       time.Now,
	}
}

type apiResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Ciphertext string `json:"ciphertext"`
		Plaintext  string `json:"plaintext"`
	} `json:"data"`
}

// Encrypt returns the service's ciphertext for plaintext.
func (c *NCPClient) Encrypt(ctx context.Context, plaintext string) (string, error) {
	body := map[string]string{"plaintext": base64.StdEncoding.EncodeToString([]byte(plaintext))}
	resp, err := c.call(ctx, "encrypt", body)
	if err != nil {
		return "", err
	}
	if resp.Data.Ciphertext == "" {
		return "", fmt.Errorf("kms encrypt: empty ciphertext")
	}
	return resp.Data.Ciphertext, nil
}

// Decrypt returns the plaintext for a ciphertext produced by Encrypt.
func (c *NCPClient) Decrypt(ctx context.Context, ciphertext string) (string, error) {
	resp, err := c.call(ctx, "decrypt", map[string]string{"ciphertext": ciphertext})
	if err != nil {
		return "", err
	}
	plain, err := base64.StdEncoding.DecodeString(resp.Data.Plaintext)
	if err != nil {
		return "", fmt.Errorf("kms decrypt: decode plaintext: %w", err)
	}
	return string(plain), nil
}

func (c *NCPClient) call(ctx context.Context, op string, body any) (*apiResponse, error) {
	path := "/keys/v2/" + c.keyTag + "/" + op
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("kms %s: encode request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("kms %s: build request: %w", op, err)
	}
	timestamp := strconv.FormatInt(c.now().UnixMilli(), 10)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-ncp-apigw-timestamp", timestamp)
	req.Header.Set("x-ncp-iam-access-key", c.accessKey)
	req.Header.Set("x-ncp-apigw-signature-v2", c.sign(http.MethodPost, path, timestamp))

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kms %s: %w", op, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("kms %s: read response: %w", op, err)
	}
	var out apiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("kms %s: status %d: non-JSON response", op, res.StatusCode)
	}
	if out.Code != successCode {
		return nil, fmt.Errorf("kms %s: code=%s msg=%s", op, out.Code, out.Msg)
	}
	return &out, nil
}

// sign computes the API gateway signature v2: base64(HMAC-SHA256("METHOD path\ntimestamp\naccessKey")).
func (c *NCPClient) sign(method, path, timestamp string) string {
	message := method + " " + path + "\n" + timestamp + "\n" + c.accessKey
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
