package ocr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/appana-ai/appana-backend/internal/config"
	"github.com/appana-ai/appana-backend/internal/i18n"
	"github.com/appana-ai/appana-backend/internal/models"
	"github.com/sirupsen/logrus"
)

type fakeRecognizer struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
	sizes []image.Point
}

func (f *fakeRecognizer) Recognize(ctx context.Context, img image.Image) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.sizes = append(f.sizes, img.Bounds().Size())
	return f.text, f.err
}

type fakePage struct {
	text      string
	textErr   error
	renderErr error
}

type fakeDocument struct {
	pages    []fakePage
	rendered []int
	closed   bool
}

func (d *fakeDocument) NumPage() int { return len(d.pages) }

func (d *fakeDocument) Text(page int) (string, error) {
	return d.pages[page].text, d.pages[page].textErr
}

func (d *fakeDocument) Render(page int, dpi float64) (image.Image, error) {
	d.rendered = append(d.rendered, page)
	if err := d.pages[page].renderErr; err != nil {
		return nil, err
	}
	return image.NewRGBA(image.Rect(0, 0, 4, 3)), nil
}

func (d *fakeDocument) Close() error {
	d.closed = true
	return nil
}

type fakeOpener struct {
	doc *fakeDocument
	err error
}

func (o fakeOpener) Open([]byte) (Document, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.doc, nil
}

type countingRecorder struct {
	pages map[string]int
	docs  map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{pages: map[string]int{}, docs: map[string]int{}}
}

func (c *countingRecorder) RecordOCRPage(method string)         { c.pages[method]++ }
func (c *countingRecorder) RecordOCRDocument(kind, status string) { c.docs[kind+":"+status]++ }

func newExtractor(t *testing.T, rec Recognizer, opener DocumentOpener, metrics Recorder) *Extractor {
	t.Helper()
	loc, err := i18n.NewLocalizer(&config.I18nConfig{DefaultLanguage: "en", Languages: []string{"en", "hi"}})
	if err != nil {
		t.Fatalf("NewLocalizer: %v", err)
	}
	log := logrus.New()
	log.SetOutput(io.Discard)
	cfg := &config.OCRConfig{DPI: 300, MinTextLength: 5}
	return NewExtractor(cfg, rec, opener, loc, metrics, log)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestPreprocessDoublesAndGrays(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 10, 7))
	out := Preprocess(src)
	if got := out.Bounds().Size(); got != (image.Point{X: 20, Y: 14}) {
		t.Fatalf("size = %v", got)
	}
}

func TestExtractImageSuccess(t *testing.T) {
	rec := &fakeRecognizer{text: "Photosynthesis\n"}
	e := newExtractor(t, rec, nil, nil)

	res, err := e.ExtractImage(context.Background(), pngBytes(t, 8, 5))
	if err != nil {
		t.Fatalf("ExtractImage: %v", err)
	}
	if res.Status != models.OCRStatusSuccess || res.Text != "Photosynthesis\n" {
		t.Fatalf("result = %+v", res)
	}
	if rec.sizes[0] != (image.Point{X: 16, Y: 10}) {
		t.Fatalf("recognizer got %v, want upscaled image", rec.sizes[0])
	}
}

func TestExtractImageNoTextIsWarning(t *testing.T) {
	e := newExtractor(t, &fakeRecognizer{text: "  \n\t"}, nil, nil)

	res, err := e.ExtractImage(context.Background(), pngBytes(t, 4, 4))
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != models.OCRStatusWarning || res.Text != "(No text detected. Try a clearer image.)" {
		t.Fatalf("result = %+v", res)
	}
}

func TestExtractImageDecodeError(t *testing.T) {
	rec := &fakeRecognizer{}
	e := newExtractor(t, rec, nil, nil)

	_, err := e.ExtractImage(context.Background(), []byte("not an image"))
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("err = %v, want ErrDecode", err)
	}
	if rec.calls != 0 {
		t.Fatal("recognizer called for undecodable upload")
	}
}

func TestExtractPDFFallsBackOnShortPages(t *testing.T) {
	doc := &fakeDocument{pages: []fakePage{
		{text: "abc"},                    // 3 chars, OCR
		{text: strings.Repeat("x", 50)}, // text layer
		{text: "  hello  "},              // exactly 5 after trim, OCR
	}}
	rec := &fakeRecognizer{text: "scanned"}
	metrics := newCountingRecorder()
	e := newExtractor(t, rec, fakeOpener{doc: doc}, metrics)

	res, err := e.ExtractPDF(context.Background(), []byte("%PDF"))
	if err != nil {
		t.Fatal(err)
	}

	want := "scanned\n" + strings.Repeat("x", 50) + "\nscanned"
	if res.Text != want {
		t.Fatalf("text = %q, want %q", res.Text, want)
	}
	if res.Pages != 3 || res.Status != models.OCRStatusSuccess {
		t.Fatalf("result = %+v", res)
	}
	if len(doc.rendered) != 2 || doc.rendered[0] != 0 || doc.rendered[1] != 2 {
		t.Fatalf("rendered pages = %v", doc.rendered)
	}
	if !doc.closed {
		t.Fatal("document not closed")
	}
	if metrics.pages[models.PageMethodOCR] != 2 || metrics.pages[models.PageMethodTextLayer] != 1 {
		t.Fatalf("page metrics = %v", metrics.pages)
	}
}

func TestExtractPDFPlaceholderOnFailure(t *testing.T) {
	doc := &fakeDocument{pages: []fakePage{
		{text: "Chapter one has plenty of text"},
		{text: "", renderErr: errors.New("broken page")},
	}}
	e := newExtractor(t, &fakeRecognizer{text: "unused"}, fakeOpener{doc: doc}, nil)

	res, err := e.ExtractPDF(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != "Chapter one has plenty of text\n[Page 2: Image Scan Failed]" {
		t.Fatalf("text = %q", res.Text)
	}
}

func TestExtractPDFRecognizerFailure(t *testing.T) {
	doc := &fakeDocument{pages: []fakePage{{text: ""}}}
	e := newExtractor(t, &fakeRecognizer{err: errors.New("tesseract crashed")}, fakeOpener{doc: doc}, nil)

	res, err := e.ExtractPDF(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != "[Page 1: Image Scan Failed]" {
		t.Fatalf("text = %q", res.Text)
	}
}

func TestExtractPDFEmptyDocument(t *testing.T) {
	doc := &fakeDocument{pages: []fakePage{{text: ""}, {text: " "}}}
	e := newExtractor(t, &fakeRecognizer{text: ""}, fakeOpener{doc: doc}, nil)

	res, err := e.ExtractPDF(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != "(No text found)" || res.Pages != 2 {
		t.Fatalf("result = %+v", res)
	}
}

func TestExtractPDFOpenError(t *testing.T) {
	e := newExtractor(t, &fakeRecognizer{}, fakeOpener{err: errors.New("not a pdf")}, nil)
	if _, err := e.ExtractPDF(context.Background(), []byte("junk")); !errors.Is(err, ErrDecode) {
		t.Fatalf("err = %v", err)
	}
}
