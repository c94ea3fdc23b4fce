// Package engine binds the OCR pipelines to Tesseract and MuPDF through cgo.
package engine

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// Tesseract recognizes text with a fresh gosseract client per call
type Tesseract struct {
	languages []string
	timeout   time.Duration
}

// NewTesseract takes a "+"-joined language set such as "eng+hin"
func NewTesseract(languages string, timeout time.Duration) *Tesseract {
	return &Tesseract{
		languages: strings.Split(languages, "+"),
		timeout:   timeout,
	}
}

// Languages returns the configured language codes
func (t *Tesseract) Languages() []string {
	return t.languages
}

type recognition struct {
	text string
	err  error
}

// Recognize encodes img as PNG and runs it through Tesseract. The call is
// abandoned when ctx ends or the timeout elapses; the client is closed by
// the worker once Tesseract returns.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	done := make(chan recognition, 1)
	go func() {
		client := gosseract.NewClient()
		defer client.Close()

		if err := client.SetLanguage(t.languages...); err != nil {
			done <- recognition{err: err}
			return
		}
		if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
			done <- recognition{err: err}
			return
		}
		text, err := client.Text()
		done <- recognition{text: text, err: err}
	}()

	select {
	case r := <-done:
		return r.text, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("tesseract: %w", ctx.Err())
	}
}
