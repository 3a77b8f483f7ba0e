package evidence

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func solid(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestCapture_DownscalesPreservingAspect(t *testing.T) {
	frames := NewLatestFrame()
	if err := frames.Push(encodePNG(t, solid(1280, 720))); err != nil {
		t.Fatalf("push: %v", err)
	}

	out, err := NewCapturer(frames).Capture()
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not jpeg: %v", err)
	}
	if cfg.Width != 640 || cfg.Height != 360 {
		t.Fatalf("expected 640x360, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestCapture_NoFrame(t *testing.T) {
	_, err := NewCapturer(NewLatestFrame()).Capture()
	if !errors.Is(err, ErrNoFrame) {
		t.Fatalf("expected ErrNoFrame, got %v", err)
	}
}

func TestCapture_NilSource(t *testing.T) {
	_, err := NewCapturer(nil).Capture()
	if !errors.Is(err, ErrNoFrame) {
		t.Fatalf("expected ErrNoFrame, got %v", err)
	}
}

func TestStop_ClosesSource(t *testing.T) {
	frames := NewLatestFrame()
	frames.Set(solid(100, 100))
	c := NewCapturer(frames)
	c.Stop()

	if _, err := c.Capture(); !errors.Is(err, ErrNoFrame) {
		t.Fatalf("expected ErrNoFrame after stop, got %v", err)
	}
	frames.Set(solid(10, 10))
	if _, err := frames.Frame(); !errors.Is(err, ErrNoFrame) {
		t.Fatalf("frames after close must be ignored")
	}
}

func TestPush_RejectsGarbage(t *testing.T) {
	err := NewLatestFrame().Push([]byte("definitely not an image"))
	if !errors.Is(err, ErrBadFrame) {
		t.Fatalf("expected ErrBadFrame, got %v", err)
	}
}
