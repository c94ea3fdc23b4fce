package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/appana-ai/appana-backend/internal/config"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// Localizer manages internationalization
type Localizer struct {
	bundle          *i18n.Bundle
	defaultLanguage string
	localizers      map[string]*i18n.Localizer
}

// NewLocalizer creates a new localizer from the embedded message files
func NewLocalizer(cfg *config.I18nConfig) (*Localizer, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	for _, lang := range cfg.Languages {
		if _, err := bundle.LoadMessageFileFS(localeFS, fmt.Sprintf("locales/%s.json", lang)); err != nil {
			return nil, fmt.Errorf("failed to load language file %s: %w", lang, err)
		}
	}

	localizers := make(map[string]*i18n.Localizer)
	for _, lang := range cfg.Languages {
		localizers[lang] = i18n.NewLocalizer(bundle, lang)
	}

	defaultLanguage := cfg.DefaultLanguage
	if _, ok := localizers[defaultLanguage]; !ok {
		return nil, fmt.Errorf("default language %q is not loaded", defaultLanguage)
	}

	return &Localizer{
		bundle:          bundle,
		defaultLanguage: defaultLanguage,
		localizers:      localizers,
	}, nil
}

// Get returns localized message. lang may be a tag ("hi") or the
// language name the frontend sends ("Hindi").
func (l *Localizer) Get(lang, messageID string, data map[string]interface{}) string {
	localizer, exists := l.localizers[Tag(lang)]
	if !exists {
		localizer = l.localizers[l.defaultLanguage]
	}

	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		return messageID // Fallback to message ID
	}

	return msg
}

// Tag maps a frontend language name onto a bundle tag
func Tag(lang string) string {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "hi", "hindi", "हिन्दी", "हिंदी":
		return "hi"
	case "en", "english", "hinglish", "indian english":
		return "en"
	}
	return strings.ToLower(lang)
}

// Message IDs
const (
	MsgEmptyMessage       = "empty_message"
	MsgRateLimitExceeded  = "rate_limit_exceeded"
	MsgAllProvidersFailed = "all_providers_failed"
	MsgProviderDiagnosis  = "provider_diagnosis"
	MsgServerError        = "server_error"
	MsgMessageTooLong     = "message_too_long"
	MsgImageInvalid       = "image_invalid"
	MsgOCRNoText          = "ocr_no_text"
	MsgPDFNoText          = "pdf_no_text"
	MsgStreakFirstDay     = "streak_first_day"
	MsgStreakContinued    = "streak_continued"
	MsgEarlyBird          = "early_bird"
)
