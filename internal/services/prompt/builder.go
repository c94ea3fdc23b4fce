package prompt

import (
	"fmt"
	"strings"

	"github.com/appana-ai/appana-backend/internal/models"
)

// Params are the request fields a prompt is built from
type Params struct {
	Message    string
	Subject    string
	Language   string
	ExamMode   string
	Goal       string
	Persona    string
	Mood       string
	History    string
	References []models.ReferenceDoc
}

// Builder assembles the single text prompt sent to every provider
type Builder struct {
	referenceCap  int
	maxReferences int
}

// NewBuilder caps each reference's content at referenceCap characters and
// the number of references at maxReferences
func NewBuilder(referenceCap, maxReferences int) *Builder {
	return &Builder{referenceCap: referenceCap, maxReferences: maxReferences}
}

// Build renders p. Unknown exam modes, personas and moods fall back to
// their defaults. Distress language in the message forces the calming
// style, except in teacher mode which omits persona and style entirely.
func (b *Builder) Build(p Params) string {
	profile := profileFor(p.ExamMode)

	tone := profile.tone
	style := ""
	if !profile.authoritative {
		tone = personaTone(p.Persona)
		style = moodStyle(p.Mood)
		if IsDistressed(p.Message) {
			style = calmingStyle
		}
	}

	var sb strings.Builder
	sb.WriteString("You are Appana AI.\n")
	fmt.Fprintf(&sb, "Role: %s\n", tone)
	if style != "" {
		fmt.Fprintf(&sb, "Style: %s\n", style)
	}
	fmt.Fprintf(&sb, "Subject: %s\n", p.Subject)
	fmt.Fprintf(&sb, "Language: %s\n", p.Language)
	fmt.Fprintf(&sb, "Exam Mode: %s\n", p.ExamMode)
	fmt.Fprintf(&sb, "Goal: %s\n", p.Goal)
	fmt.Fprintf(&sb, "Format Requirement: %s\n", profile.format)

	sb.WriteString("\nContext History:\n")
	sb.WriteString(p.History)
	sb.WriteString("\n\nInstructions:\n")
	for i, d := range directives {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, d)
	}

	fmt.Fprintf(&sb, "\nStudent: %s", p.Message)

	if refs := b.references(p.References); refs != "" {
		sb.WriteString("\n\n[LARGE SUBJECT CONTEXT]:\n")
		sb.WriteString(refs)
	}

	return sb.String()
}

func (b *Builder) references(docs []models.ReferenceDoc) string {
	if b.maxReferences > 0 && len(docs) > b.maxReferences {
		docs = docs[:b.maxReferences]
	}

	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		parts = append(parts, fmt.Sprintf("[%s]\n%s", d.Name, truncate(d.Content, b.referenceCap)))
	}
	return strings.Join(parts, "\n\n")
}

// truncate keeps the first n characters of s; n <= 0 disables the cap
func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
