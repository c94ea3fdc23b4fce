package engine

import (
	"image"

	"github.com/appana-ai/appana-backend/internal/services/ocr"
	"github.com/gen2brain/go-fitz"
)

var (
	_ ocr.Recognizer     = (*Tesseract)(nil)
	_ ocr.DocumentOpener = FitzOpener{}
)

// FitzOpener opens PDFs with MuPDF
type FitzOpener struct{}

func (FitzOpener) Open(data []byte) (ocr.Document, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, err
	}
	return &fitzDocument{doc: doc}, nil
}

type fitzDocument struct {
	doc *fitz.Document
}

func (d *fitzDocument) NumPage() int {
	return d.doc.NumPage()
}

func (d *fitzDocument) Text(page int) (string, error) {
	return d.doc.Text(page)
}

func (d *fitzDocument) Render(page int, dpi float64) (image.Image, error) {
	img, err := d.doc.ImageDPI(page, dpi)
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (d *fitzDocument) Close() error {
	return d.doc.Close()
}
