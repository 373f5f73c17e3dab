// Package qrimage renders QR payloads as PNG data URLs.
package qrimage

import (
	"encoding/base64"
	"errors"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"

	"walink/cmd/internal/linking"
)

const dataURLPrefix = "data:image/png;base64,"

// DefaultSize is the edge length in pixels of a rendered image.
const DefaultSize = 256

var ErrEmptyPayload = errors.New("qrimage: empty payload")

// Renderer encodes payloads with medium error correction.
type Renderer struct {
	Size int
}

// New returns a Renderer producing size x size images. size <= 0 selects DefaultSize.
func New(size int) *Renderer {
	if size <= 0 {
		size = DefaultSize
	}
	return &Renderer{Size: size}
}

// Render implements linking.QRRenderer.
func (r *Renderer) Render(payload string) (linking.QRImage, error) {
	if payload == "" {
		return linking.QRImage{}, ErrEmptyPayload
	}
	size := r.Size
	if size <= 0 {
		size = DefaultSize
	}

	png, err := qrcode.Encode(payload, qrcode.Medium, size)
	if err != nil {
		return linking.QRImage{}, fmt.Errorf("qrimage: encode: %w", err)
	}
	return linking.QRImage{
		Payload: payload,
		DataURL: dataURLPrefix + base64.StdEncoding.EncodeToString(png),
	}, nil
}
