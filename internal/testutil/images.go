package testutil

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
)

// TinyPNG encodes a w by h PNG. Pixels depend on the size, so two images of
// different dimensions never share content.
func TinyPNG(t testing.TB, w, h int) []byte {
	t.Helper()
	return encodeImage(t, w, h, imaging.PNG)
}

// TinyJPEG is TinyPNG for JPEG uploads.
func TinyJPEG(t testing.TB, w, h int) []byte {
	t.Helper()
	return encodeImage(t, w, h, imaging.JPEG)
}

func encodeImage(t testing.TB, w, h int, format imaging.Format) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: uint8(w), G: uint8(h), B: 128, A: 255})
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, image.Image(img), format); err != nil {
		t.Fatalf("encode %v: %v", format, err)
	}
	return buf.Bytes()
}
