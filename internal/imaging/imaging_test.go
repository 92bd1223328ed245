package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		for y := range h {
			img.Set(x, y, c)
		}
	}
	return img
}

func testJPEG(w, h int) []byte {
	var buf bytes.Buffer
	jpeg.Encode(&buf, solid(w, h, color.RGBA{255, 0, 0, 255}), &jpeg.Options{Quality: 90})
	return buf.Bytes()
}

func testPNG(w, h int) []byte {
	var buf bytes.Buffer
	png.Encode(&buf, solid(w, h, color.RGBA{0, 0, 255, 255}))
	return buf.Bytes()
}

func TestNormalizeJPEG(t *testing.T) {
	p, err := Normalize(bytes.NewReader(testJPEG(100, 80)), Options{})
	if err != nil {
		t.Fatalf("Normalize JPEG: %v", err)
	}
	if p.MIME != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", p.MIME)
	}
	if p.Width != 100 || p.Height != 80 {
		t.Errorf("expected 100x80, got %dx%d", p.Width, p.Height)
	}
}

func TestNormalizePNGBecomesJPEG(t *testing.T) {
	p, err := Normalize(bytes.NewReader(testPNG(50, 50)), Options{})
	if err != nil {
		t.Fatalf("Normalize PNG: %v", err)
	}
	if _, format, err := image.Decode(bytes.NewReader(p.Data)); err != nil || format != "jpeg" {
		t.Errorf("expected stored jpeg, got %q (%v)", format, err)
	}
}

func TestNormalizeDownscales(t *testing.T) {
	p, err := Normalize(bytes.NewReader(testPNG(400, 100)), Options{MaxDimension: 200})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if p.Width != 200 || p.Height != 50 {
		t.Errorf("expected 200x50, got %dx%d", p.Width, p.Height)
	}
}

func TestNormalizeRejectsGIF(t *testing.T) {
	var buf bytes.Buffer
	gif.Encode(&buf, solid(10, 10, color.Black), nil)

	_, err := Normalize(&buf, Options{})
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	_, err := Normalize(bytes.NewReader([]byte("definitely not an image")), Options{})
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestNormalizeSizeLimit(t *testing.T) {
	data := testPNG(64, 64)
	_, err := Normalize(bytes.NewReader(data), Options{MaxBytes: int64(len(data) - 1)})
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}

func TestThumbnail(t *testing.T) {
	p, err := Normalize(bytes.NewReader(testJPEG(600, 300)), Options{})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	thumb, err := Thumbnail(p.Data, 0)
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	if thumb.Width != DefaultThumbDimension || thumb.Height != DefaultThumbDimension/2 {
		t.Errorf("expected %dx%d, got %dx%d", DefaultThumbDimension, DefaultThumbDimension/2, thumb.Width, thumb.Height)
	}
}
