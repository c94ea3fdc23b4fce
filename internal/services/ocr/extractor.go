package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"unicode/utf8"

	"github.com/appana-ai/appana-backend/internal/config"
	"github.com/appana-ai/appana-backend/internal/i18n"
	"github.com/appana-ai/appana-backend/internal/models"
	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
)

// ErrDecode is returned when an upload cannot be opened as an image or PDF
var ErrDecode = errors.New("unable to decode upload")

// Recognizer turns a prepared image into text
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// Document is an opened PDF
type Document interface {
	NumPage() int
	Text(page int) (string, error)
	Render(page int, dpi float64) (image.Image, error)
	Close() error
}

// DocumentOpener opens PDF bytes
type DocumentOpener interface {
	Open(data []byte) (Document, error)
}

// Messages looks up localized placeholder texts
type Messages interface {
	Get(lang, messageID string, data map[string]interface{}) string
}

// Recorder receives per-page and per-upload outcomes
type Recorder interface {
	RecordOCRPage(method string)
	RecordOCRDocument(kind, status string)
}

// Upload kinds
const (
	KindImage = "image"
	KindPDF   = "pdf"
)

// Extractor runs the image and PDF pipelines
type Extractor struct {
	recognizer    Recognizer
	opener        DocumentOpener
	messages      Messages
	metrics       Recorder
	logger        *logrus.Logger
	dpi           float64
	minTextLength int
}

// NewExtractor wires the pipelines. metrics may be nil.
func NewExtractor(cfg *config.OCRConfig, recognizer Recognizer, opener DocumentOpener, messages Messages, metrics Recorder, logger *logrus.Logger) *Extractor {
	return &Extractor{
		recognizer:    recognizer,
		opener:        opener,
		messages:      messages,
		metrics:       metrics,
		logger:        logger,
		dpi:           cfg.DPI,
		minTextLength: cfg.MinTextLength,
	}
}

// ExtractImage decodes, pre-processes and recognizes an uploaded image
func (e *Extractor) ExtractImage(ctx context.Context, data []byte) (*models.OCRResult, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		e.recordDocument(KindImage, "error")
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	text, err := e.recognizer.Recognize(ctx, Preprocess(img))
	if err != nil {
		e.recordDocument(KindImage, "error")
		return nil, fmt.Errorf("failed to recognize image: %w", err)
	}

	if strings.TrimSpace(text) == "" {
		e.recordDocument(KindImage, models.OCRStatusWarning)
		return &models.OCRResult{
			Status: models.OCRStatusWarning,
			Text:   e.messages.Get("", i18n.MsgOCRNoText, nil),
		}, nil
	}

	e.recordDocument(KindImage, models.OCRStatusSuccess)
	return &models.OCRResult{Status: models.OCRStatusSuccess, Text: text}, nil
}

// ExtractPDF reads every page's text layer and falls back to OCR for pages
// with too little text. A page that cannot be rendered or recognized gets
// an inline placeholder; the rest of the document is still processed.
func (e *Extractor) ExtractPDF(ctx context.Context, data []byte) (*models.OCRResult, error) {
	doc, err := e.opener.Open(data)
	if err != nil {
		e.recordDocument(KindPDF, "error")
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer doc.Close()

	n := doc.NumPage()
	texts := make([]string, 0, n)
	for i := 0; i < n; i++ {
		page := e.extractPage(ctx, doc, i)
		if e.metrics != nil {
			e.metrics.RecordOCRPage(page.Method)
		}
		texts = append(texts, page.Text)
	}

	full := strings.Join(texts, "\n")
	if strings.TrimSpace(full) == "" {
		full = e.messages.Get("", i18n.MsgPDFNoText, nil)
	}

	e.recordDocument(KindPDF, models.OCRStatusSuccess)
	return &models.OCRResult{
		Status: models.OCRStatusSuccess,
		Text:   full,
		Pages:  n,
	}, nil
}

func (e *Extractor) extractPage(ctx context.Context, doc Document, i int) models.PageResult {
	text, err := doc.Text(i)
	if err != nil {
		e.logger.WithError(err).WithField("page", i+1).Debug("Text layer unavailable")
		text = ""
	}
	if utf8.RuneCountInString(strings.TrimSpace(text)) > e.minTextLength {
		return models.PageResult{Page: i + 1, Text: text, Method: models.PageMethodTextLayer}
	}

	failed := models.PageResult{
		Page:   i + 1,
		Text:   fmt.Sprintf("[Page %d: Image Scan Failed]", i+1),
		Method: models.PageMethodFailed,
	}

	img, err := doc.Render(i, e.dpi)
	if err != nil {
		e.logger.WithError(err).WithField("page", i+1).Warn("Failed to render page")
		return failed
	}

	ocrText, err := e.recognizer.Recognize(ctx, Preprocess(img))
	if err != nil {
		e.logger.WithError(err).WithField("page", i+1).Warn("Failed to recognize page")
		return failed
	}

	return models.PageResult{Page: i + 1, Text: ocrText, Method: models.PageMethodOCR}
}

func (e *Extractor) recordDocument(kind, status string) {
	if e.metrics != nil {
		e.metrics.RecordOCRDocument(kind, status)
	}
}
