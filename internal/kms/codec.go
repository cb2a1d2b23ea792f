package kms

import (
	"context"

	apperrors "todocal/internal/errors"
	"todocal/internal/logging"
)

// TitleCodec encrypts todo titles before they are stored and decrypts them on the way out.
type TitleCodec struct {
	client Client
	logger logging.Logger
}

// NewTitleCodec wraps a KMS client.
func NewTitleCodec(client Client, logger logging.Logger) *TitleCodec {
	if logger == nil {
		logger = logging.Discard()
	}
	return &TitleCodec{client: client, logger: logger}
}

// EncryptTitle returns ciphertext for storage. Failures wrap ErrUpstream and must abort the write.
func (c *TitleCodec) EncryptTitle(ctx context.Context, plaintext string) (string, error) {
	ciphertext, err := c.client.Encrypt(ctx, plaintext)
	if err != nil {
		return "", apperrors.Upstream("encrypt title", err)
	}
	return ciphertext, nil
}

// DecryptTitle never fails: rows written before encryption was enabled hold plaintext,
// so anything that does not decrypt is returned as stored.
func (c *TitleCodec) DecryptTitle(ctx context.Context, stored string) string {
	if stored == "" {
		return stored
	}
	plaintext, err := c.client.Decrypt(ctx, stored)
	if err != nil {
		c.logger.Debug(ctx, "title decrypt failed, using stored value", "error", err)
		return stored
	}
	return plaintext
}
