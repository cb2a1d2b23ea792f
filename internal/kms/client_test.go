package kms

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "todocal/internal/errors"
)

// fakeKMS mimics the API by reversing the plaintext and prefixing it.
func fakeKMS(t *testing.T, secret string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts := r.Header.Get("x-ncp-apigw-timestamp")
		access := r.Header.Get("x-ncp-iam-access-key")
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write([]byte("POST " + r.URL.Path + "\n" + ts + "\n" + access))
		if r.Header.Get("x-ncp-apigw-signature-v2") != base64.StdEncoding.EncodeToString(mac.Sum(nil)) {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"code": "AUTH_FAILED", "msg": "bad signature"})
			return
		}

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")

		switch {
		case strings.HasSuffix(r.URL.Path, "/encrypt"):
			plain, _ := base64.StdEncoding.DecodeString(body["plaintext"])
			_ = json.NewEncoder(w).Encode(map[string]any{
				"code": "SUCCESS",
				"data": map[string]string{"ciphertext": "ncpkms:v1:" + base64.StdEncoding.EncodeToString(plain)},
			})
		case strings.HasSuffix(r.URL.Path, "/decrypt"):
			ct, ok := strings.CutPrefix(body["ciphertext"], "ncpkms:v1:")
			if !ok {
				_ = json.NewEncoder(w).Encode(map[string]string{"code": "INVALID_CIPHERTEXT", "msg": "bad input"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"code": "SUCCESS",
				"data": map[string]string{"plaintext": ct},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestClient(url string) *NCPClient {
	return NewNCPClient(NCPConfig{Endpoint: url, KeyTag: "key-tag", AccessKey: "access", SecretKey: "secret"})
}

func TestNCPClient_RoundTrip(t *testing.T) {
	srv := fakeKMS(t, "secret")
	defer srv.Close()
	c := newTestClient(srv.URL)
	ctx := context.Background()

	ct, err := c.Encrypt(ctx, "장보기 buy milk")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ct, "ncpkms:v1:"))

	pt, err := c.Decrypt(ctx, ct)
	require.NoError(t, err)
	assert.Equal(t, "장보기 buy milk", pt)
}

func TestNCPClient_RequestShape(t *testing.T) {
	var gotPath, gotTimestamp string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotTimestamp = r.Header.Get("x-ncp-apigw-timestamp")
		_ = json.NewEncoder(w).Encode(map[string]any{"code": "SUCCESS", "data": map[string]string{"ciphertext": "x"}})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.now = func() time.Time { return time.UnixMilli(1717200000123) }

	_, err := c.Encrypt(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, "/keys/v2/key-tag/encrypt", gotPath)
	assert.Equal(t, "1717200000123", gotTimestamp)
}

func TestNCPClient_Failures(t *testing.T) {
	t.Run("wrong secret", func(t *testing.T) {
		srv := fakeKMS(t, "other")
		defer srv.Close()
		_, err := newTestClient(srv.URL).Encrypt(context.Background(), "t")
		assert.ErrorContains(t, err, "AUTH_FAILED")
	})

	t.Run("non-json body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("<html>gateway</html>"))
		}))
		defer srv.Close()
		_, err := newTestClient(srv.URL).Decrypt(context.Background(), "x")
		assert.ErrorContains(t, err, "non-JSON")
	})

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()
		c := NewNCPClient(NCPConfig{Endpoint: srv.URL, KeyTag: "k", Timeout: 50 * time.Millisecond})
		_, err := c.Encrypt(context.Background(), "t")
		assert.Error(t, err)
	})
}

type stubClient struct {
	encryptErr error
}

func (s stubClient) Encrypt(_ context.Context, plaintext string) (string, error) {
	if s.encryptErr != nil {
		return "", s.encryptErr
	}
	return "enc:" + plaintext, nil
}

func (s stubClient) Decrypt(_ context.Context, ciphertext string) (string, error) {
	if pt, ok := strings.CutPrefix(ciphertext, "enc:"); ok {
		return pt, nil
	}
	return "", errors.New("INVALID_CIPHERTEXT")
}

func TestTitleCodec(t *testing.T) {
	ctx := context.Background()
	codec := NewTitleCodec(stubClient{}, nil)

	ct, err := codec.EncryptTitle(ctx, "milk")
	require.NoError(t, err)
	assert.Equal(t, "enc:milk", ct)
	assert.Equal(t, "milk", codec.DecryptTitle(ctx, ct))

	// legacy plaintext rows come back unchanged
	assert.Equal(t, "legacy title", codec.DecryptTitle(ctx, "legacy title"))

	failing := NewTitleCodec(stubClient{encryptErr: errors.New("code=FAIL")}, nil)
	_, err = failing.EncryptTitle(ctx, "milk")
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
}
