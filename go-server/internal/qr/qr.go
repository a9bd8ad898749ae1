// Package qr renders short URLs as PNG QR codes.
package qr

import (
	"errors"
	"fmt"
	"strconv"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	DefaultSize = 256
	MinSize     = 64
	MaxSize     = 1024
)

var ErrInvalidSize = fmt.Errorf("size must be an integer between %d and %d", MinSize, MaxSize)

var errEmptyContent = errors.New("nothing to encode")

// ParseSize reads the optional size query value. An empty value means DefaultSize.
func ParseSize(raw string) (int, error) {
	if raw == "" {
		return DefaultSize, nil
	}
	size, err := strconv.Atoi(raw)
	if err != nil || size < MinSize || size > MaxSize {
		return 0, ErrInvalidSize
	}
	return size, nil
}

// PNG encodes content with low error correction, the level short URLs need.
func PNG(content string, size int) ([]byte, error) {
	if content == "" {
		return nil, errEmptyContent
	}
	png, err := qrcode.Encode(content, qrcode.Low, size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}
	return png, nil
}
