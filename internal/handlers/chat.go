package handlers

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/appana-ai/appana-backend/internal/i18n"
	"github.com/appana-ai/appana-backend/internal/middleware"
	"github.com/appana-ai/appana-backend/internal/models"
	"github.com/appana-ai/appana-backend/internal/services/postprocess"
	"github.com/appana-ai/appana-backend/internal/services/prompt"
	"github.com/appana-ai/appana-backend/pkg/logger"
	"github.com/appana-ai/appana-backend/pkg/markdown"
	"github.com/sirupsen/logrus"
)

// maxChatBody bounds the JSON body of a chat request
const maxChatBody = 8 << 20

// Chat handles POST /api/ai-chat
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&req); err != nil {
		h.Logger.WithError(err).Warn("Invalid chat request body")
		h.serverError(w, "", "invalid request body")
		return
	}

	if req.Type == "ping" {
		h.ping(w)
		return
	}

	req.ApplyDefaults()
	log := logger.WithRequest(h.Logger, middleware.RequestID(ctx), req.UID)

	if strings.TrimSpace(req.Message) == "" && req.Image == "" {
		JSON(w, http.StatusOK, models.ChatResponse{Reply: h.Localizer.Get(req.Language, i18n.MsgEmptyMessage, nil)})
		return
	}

	image, err := decodeImage(req.Image)
	if err != nil {
		log.WithError(err).Warn("Rejected chat image")
		JSON(w, http.StatusBadRequest, models.ChatResponse{Reply: h.Localizer.Get(req.Language, i18n.MsgImageInvalid, nil)})
		return
	}

	if err := h.security.ValidateInput(req.Message); err != nil {
		log.WithError(err).Warn("Rejected chat message")
		JSON(w, http.StatusBadRequest, models.ChatResponse{Reply: h.Localizer.Get(req.Language, i18n.MsgMessageTooLong, nil)})
		return
	}

	if !h.Limiter.Allow(req.UID) {
		if h.Metrics != nil {
			h.Metrics.RecordRateLimitExceeded("chat")
		}
		log.Warn("Chat rate limit exceeded")
		msg := h.Localizer.Get(req.Language, i18n.MsgRateLimitExceeded, nil)
		JSON(w, http.StatusTooManyRequests, map[string]string{"reply": msg, "error": msg})
		return
	}

	history, err := h.Sessions.Read(ctx, req.UID)
	if err != nil {
		log.WithError(err).Error("Failed to read memory")
		h.serverError(w, req.Language, err.Error())
		return
	}

	text := h.Prompts.Build(prompt.Params{
		Message:    req.Message,
		Subject:    req.Subject,
		Language:   req.Language,
		ExamMode:   req.ExamMode,
		Goal:       req.Goal,
		Persona:    req.Persona,
		Mood:       req.Mood,
		History:    history,
		References: h.references(&req),
	})

	resp := h.Cascade.Generate(ctx, models.GenerationRequest{Prompt: text, Image: image})
	if !resp.OK {
		log.WithField("reason", resp.Reason).Error("All AI providers failed")
		reply := h.Localizer.Get(req.Language, i18n.MsgAllProvidersFailed, nil)
		if h.Config.Chat.DebugReplies {
			reply += "\n\n" + h.Localizer.Get(req.Language, i18n.MsgProviderDiagnosis, nil) + "\n" + resp.Reason
		}
		JSON(w, http.StatusOK, models.ChatResponse{Reply: reply})
		return
	}

	// The streak only advances once a reply exists
	now := h.Now()
	streak, err := h.Sessions.TouchStreak(ctx, req.UID, now)
	if err != nil {
		log.WithError(err).Warn("Failed to update streak")
	}

	reply := h.Post.Transform(resp.Text, req.ExamMode, postprocess.Context{
		Language: req.Language,
		Streak:   streak,
		Now:      now,
	})

	// Image turns are not remembered
	if image == "" {
		if _, err := h.Sessions.Append(ctx, req.UID, req.Message, reply); err != nil {
			log.WithError(err).Error("Failed to save memory")
		}
	}

	log.WithFields(logrus.Fields{
		"provider":     resp.Provider,
		"exam_mode":    req.ExamMode,
		"subject":      req.Subject,
		"image":        image != "",
		"streak_event": streak.Fired(),
	}).Info("Chat reply served")

	out := models.ChatResponse{Reply: reply}
	if h.Config.Chat.RenderHTML {
		out.HTML = markdown.ToHTML(reply)
	}
	JSON(w, http.StatusOK, out)
}

// decodeImage strips an optional data URL prefix and checks the payload is
// valid base64. An empty input is not an error.
func decodeImage(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if strings.HasPrefix(raw, "data:") {
		i := strings.Index(raw, ";base64,")
		if i < 0 {
			return "", fmt.Errorf("image data URL is not base64")
		}
		raw = raw[i+len(";base64,"):]
	}
	if _, err := base64.StdEncoding.DecodeString(raw); err != nil {
		return "", fmt.Errorf("invalid image encoding: %w", err)
	}
	return raw, nil
}

// ping reports credential presence without contacting any provider
func (h *Handler) ping(w http.ResponseWriter) {
	keys := h.Cascade.Configured()
	status := "fail"
	for _, ok := range keys {
		if ok {
			status = "ok"
			break
		}
	}
	JSON(w, http.StatusOK, models.PingResponse{
		Status:  status,
		Backend: h.Config.Chat.Backend,
		Keys:    keys,
	})
}

// references merges client-sent documents with subject library matches
func (h *Handler) references(req *models.ChatRequest) []models.ReferenceDoc {
	refs := req.LargeSubjects
	if h.Library != nil && h.Config.Knowledge.Enabled {
		refs = append(refs, h.Library.Match(req.Subject, h.Config.Knowledge.MaxDocuments)...)
	}
	return refs
}

func (h *Handler) serverError(w http.ResponseWriter, lang, cause string) {
	JSON(w, http.StatusInternalServerError, models.ChatResponse{
		Reply: h.Localizer.Get(lang, i18n.MsgServerError, map[string]interface{}{"Error": cause}),
	})
}
