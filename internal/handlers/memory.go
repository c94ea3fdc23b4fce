package handlers

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"github.com/appana-ai/appana-backend/internal/models"
)

type saveMemoryRequest struct {
	UID  string `json:"uid"`
	Text string `json:"text"`
}

// decodeMemoryRequest reads a JSON or form body and defaults the uid
func decodeMemoryRequest(w http.ResponseWriter, r *http.Request) (saveMemoryRequest, error) {
	var req saveMemoryRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&req); err != nil {
			return req, errors.New("invalid request body")
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return req, errors.New("invalid form body")
		}
		req.UID = r.FormValue("uid")
		req.Text = r.FormValue("text")
	}

	if req.UID == "" {
		req.UID = models.GuestUID
	}
	return req, nil
}

// SaveMemory handles POST /memory/save. The body may be JSON or a form.
func (h *Handler) SaveMemory(w http.ResponseWriter, r *http.Request) {
	req, err := decodeMemoryRequest(w, r)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.Sessions.Save(r.Context(), req.UID, req.Text); err != nil {
		h.Logger.WithError(err).WithField("uid", req.UID).Error("Failed to save memory")
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	JSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// ClearMemory handles POST /memory/clear. It drops the whole session,
// streak included.
func (h *Handler) ClearMemory(w http.ResponseWriter, r *http.Request) {
	req, err := decodeMemoryRequest(w, r)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.Sessions.Clear(r.Context(), req.UID); err != nil {
		h.Logger.WithError(err).WithField("uid", req.UID).Error("Failed to clear memory")
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.Logger.WithField("uid", req.UID).Info("Memory cleared")
	JSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// GetMemory handles GET /memory/get?uid=
func (h *Handler) GetMemory(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("uid")
	if uid == "" {
		uid = models.GuestUID
	}

	memory, err := h.Sessions.Read(r.Context(), uid)
	if err != nil {
		h.Logger.WithError(err).WithField("uid", uid).Error("Failed to read memory")
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	JSON(w, http.StatusOK, map[string]string{"memory": memory})
}
