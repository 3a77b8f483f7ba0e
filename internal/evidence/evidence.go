// Package evidence captures proctoring screenshots from a shared-screen feed.
package evidence

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"sync"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// CaptureWidth is the width every captured frame is scaled to.
	CaptureWidth = 640
	// JPEGQuality is the encoder quality for captured frames.
	JPEGQuality = 50
)

var (
	// ErrNoFrame means the source has no frame available (not started or closed).
	ErrNoFrame = errors.New("no frame available")
	// ErrBadFrame means pushed bytes could not be decoded as an image.
	ErrBadFrame = errors.New("undecodable frame")
)

// FrameSource yields the most recent shared-screen frame.
type FrameSource interface {
	Frame() (image.Image, error)
}

// LatestFrame keeps the newest frame pushed by the client.
type LatestFrame struct {
	mu     sync.RWMutex
	img    image.Image
	closed bool
}

// NewLatestFrame creates an empty frame holder.
func NewLatestFrame() *LatestFrame {
	return &LatestFrame{}
}

// Push decodes a JPEG, PNG or WebP frame and makes it the current one.
func (l *LatestFrame) Push(data []byte) error {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	l.Set(img)
	return nil
}

// Set replaces the current frame. Ignored after Close.
func (l *LatestFrame) Set(img image.Image) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.img = img
}

// Frame returns the current frame or ErrNoFrame.
func (l *LatestFrame) Frame() (image.Image, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed || l.img == nil {
		return nil, ErrNoFrame
	}
	return l.img, nil
}

// Close drops the current frame; later frames are ignored.
func (l *LatestFrame) Close() {
	l.mu.Lock()
	l.closed = true
	l.img = nil
	l.mu.Unlock()
}

// Capturer turns the current frame into a downscaled JPEG.
type Capturer struct {
	src FrameSource
}

// NewCapturer creates a Capturer over src.
func NewCapturer(src FrameSource) *Capturer {
	return &Capturer{src: src}
}

// Capture grabs one frame, scales it to CaptureWidth preserving aspect ratio
// and encodes it as JPEG.
func (c *Capturer) Capture() ([]byte, error) {
	if c.src == nil {
		return nil, ErrNoFrame
	}
	img, err := c.src.Frame()
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, ErrNoFrame
	}

	h := b.Dy() * CaptureWidth / b.Dx()
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, CaptureWidth, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

// Stop releases the underlying source if it can be closed.
func (c *Capturer) Stop() {
	if cl, ok := c.src.(interface{ Close() }); ok {
		cl.Close()
	}
}
