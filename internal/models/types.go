package models

import (
	"time"
)

// Exam modes understood by the prompt builder and the post-processor.
const (
	ExamModeNormal  = "normal"
	ExamModeTeacher = "teacher"
	ExamMode2Marks  = "2marks"
	ExamMode5Marks  = "5marks"
	ExamMode8Marks  = "8marks"
)

// GuestUID is the shared identifier used when a request carries no uid.
const GuestUID = "guest"

// ChatRequest is the body of POST /api/ai-chat. Image is an optional base64
// JPEG, bare or as a data URL.
type ChatRequest struct {
	Type          string         `json:"type,omitempty"`
	Message       string         `json:"message"`
	UID           string         `json:"uid"`
	Subject       string         `json:"subject"`
	Language      string         `json:"language"`
	ExamMode      string         `json:"examMode"`
	Goal          string         `json:"goal"`
	Persona       string         `json:"persona,omitempty"`
	Mood          string         `json:"mood,omitempty"`
	LargeSubjects []ReferenceDoc `json:"largeSubjects,omitempty"`
	Image         string         `json:"image,omitempty"`
}

// ApplyDefaults fills the fields the frontend may omit
func (r *ChatRequest) ApplyDefaults() {
	if r.UID == "" {
		r.UID = GuestUID
	}
	if r.Subject == "" {
		r.Subject = "General"
	}
	if r.Language == "" {
		r.Language = "English"
	}
	if r.ExamMode == "" {
		r.ExamMode = ExamModeNormal
	}
}

// ChatResponse is the reply payload of POST /api/ai-chat
type ChatResponse struct {
	Reply string `json:"reply"`
	HTML  string `json:"html,omitempty"`
}

// PingResponse answers {"type":"ping"} without contacting any provider
type PingResponse struct {
	Status  string          `json:"status"`
	Backend string          `json:"backend"`
	Keys    map[string]bool `json:"keys,omitempty"`
}

// ReferenceDoc is a named long-form document injected into the prompt
type ReferenceDoc struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// ChatSession is the per-user conversation state
type ChatSession struct {
	UserID    string    `json:"uid"`
	History   string    `json:"history"`
	Streak    int       `json:"streak"`
	LastSeen  string    `json:"last_seen"` // YYYY-MM-DD, server local time
	UpdatedAt time.Time `json:"updated_at"`
}

// StreakEvent describes what happened to a session's streak on this request
type StreakEvent struct {
	Kind   StreakKind
	Streak int
}

// StreakKind enumerates streak transitions
type StreakKind int

const (
	// StreakNone means the user was already seen today.
	StreakNone StreakKind = iota
	// StreakStarted means a new streak of one day began (first contact or a gap).
	StreakStarted
	// StreakContinued means the user was last seen yesterday.
	StreakContinued
)

// Fired reports whether a new-day streak event happened
func (e StreakEvent) Fired() bool {
	return e.Kind != StreakNone
}

// DateLayout is the calendar-day format used for LastSeen
const DateLayout = "2006-01-02"

// AdvanceStreak applies today's visit to the session and reports the transition
func (s *ChatSession) AdvanceStreak(now time.Time) StreakEvent {
	today := now.Format(DateLayout)
	yesterday := now.AddDate(0, 0, -1).Format(DateLayout)

	switch s.LastSeen {
	case today:
		return StreakEvent{Kind: StreakNone, Streak: s.Streak}
	case yesterday:
		s.Streak++
		s.LastSeen = today
		return StreakEvent{Kind: StreakContinued, Streak: s.Streak}
	default:
		s.Streak = 1
		s.LastSeen = today
		return StreakEvent{Kind: StreakStarted, Streak: 1}
	}
}

// GenerationRequest is what the cascade hands to each provider
type GenerationRequest struct {
	Prompt string
	// Image is raw base64 JPEG data; only multimodal providers accept it
	Image string
}

// ProviderResponse is the outcome of exactly one provider call
type ProviderResponse struct {
	Provider string
	Text     string
	Reason   string
	OK       bool
}

// Success builds a successful provider response
func Success(provider, text string) ProviderResponse {
	return ProviderResponse{Provider: provider, Text: text, OK: true}
}

// Failure builds a failed provider response
func Failure(provider, reason string) ProviderResponse {
	return ProviderResponse{Provider: provider, Reason: reason}
}

// OCR statuses
const (
	OCRStatusSuccess = "success"
	OCRStatusWarning = "warning"
)

// OCRResult is the payload of the /ocr routes
type OCRResult struct {
	Status string `json:"status"`
	Text   string `json:"text"`
	Pages  int    `json:"pages,omitempty"`
}

// Page extraction methods
const (
	PageMethodTextLayer = "text-layer"
	PageMethodOCR       = "ocr"
	PageMethodFailed    = "failed"
)

// PageResult is the per-page outcome of the PDF pipeline
type PageResult struct {
	Page   int
	Text   string
	Method string
}
