package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/appana-ai/appana-backend/internal/i18n"
	"github.com/appana-ai/appana-backend/internal/middleware"
	"github.com/appana-ai/appana-backend/internal/models"
	"github.com/appana-ai/appana-backend/internal/services/ocr"
	"github.com/sirupsen/logrus"
)

type extractFunc func(ctx context.Context, data []byte) (*models.OCRResult, error)

// OCRImage handles POST /ocr/image
func (h *Handler) OCRImage(w http.ResponseWriter, r *http.Request) {
	h.handleUpload(w, r, ocr.KindImage, h.Extractor.ExtractImage)
}

// OCRPDF handles POST /ocr/pdf
func (h *Handler) OCRPDF(w http.ResponseWriter, r *http.Request) {
	h.handleUpload(w, r, ocr.KindPDF, h.Extractor.ExtractPDF)
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request, kind string, extract extractFunc) {
	ctx := r.Context()
	log := h.Logger.WithFields(logrus.Fields{
		"request_id": middleware.RequestID(ctx),
		"kind":       kind,
	})

	data, err := h.readUpload(w, r)
	if err != nil {
		log.WithError(err).Warn("Invalid upload")
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.OCRCache != nil {
		if cached, ok := h.OCRCache.Get(ctx, kind, data); ok {
			JSON(w, http.StatusOK, cached)
			return
		}
	}

	result, err := extract(ctx, data)
	if err != nil {
		if errors.Is(err, ocr.ErrDecode) {
			log.WithError(err).Warn("Upload could not be decoded")
		} else {
			log.WithError(err).Error("Extraction failed")
		}
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	if h.OCRCache != nil {
		if err := h.OCRCache.Set(ctx, kind, data, result); err != nil {
			log.WithError(err).Warn("Failed to cache OCR result")
		}
	}

	log.WithFields(logrus.Fields{
		"status": result.Status,
		"pages":  result.Pages,
		"bytes":  len(data),
	}).Info("Upload extracted")

	JSON(w, http.StatusOK, result)
}

var errMissingFile = errors.New(`missing multipart field "file"`)

func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	maxBytes := h.Config.Server.MaxUploadMB << 20
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, errMissingFile
	}
	defer file.Close()

	return io.ReadAll(file)
}

func (h *Handler) rejectOCR(w http.ResponseWriter, r *http.Request) {
	Error(w, http.StatusTooManyRequests, h.Localizer.Get("", i18n.MsgRateLimitExceeded, nil))
}
