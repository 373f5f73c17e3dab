package qrimage

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image/png"
	"strings"
	"testing"
)

func TestRenderProducesPNGDataURL(t *testing.T) {
	r := New(0)
	img, err := r.Render("2@abc,def,ghi,jkl")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if img.Payload != "2@abc,def,ghi,jkl" {
		t.Fatalf("payload = %q", img.Payload)
	}
	if !strings.HasPrefix(img.DataURL, dataURLPrefix) {
		t.Fatalf("data url prefix: %q", img.DataURL[:32])
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(img.DataURL, dataURLPrefix))
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if got := decoded.Bounds().Dx(); got != DefaultSize {
		t.Fatalf("width = %d, want %d", got, DefaultSize)
	}
}

func TestRenderRejectsEmptyPayload(t *testing.T) {
	if _, err := New(128).Render(""); !errors.Is(err, ErrEmptyPayload) {
		t.Fatalf("err = %v, want ErrEmptyPayload", err)
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	r := New(128)
	a, err := r.Render("XYZ")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	b, err := r.Render("XYZ")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if a.DataURL != b.DataURL {
		t.Fatalf("same payload rendered differently")
	}
}
