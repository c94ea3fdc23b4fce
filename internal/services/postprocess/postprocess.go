package postprocess

import (
	"regexp"
	"strings"
	"time"

	"github.com/appana-ai/appana-backend/internal/i18n"
	"github.com/appana-ai/appana-backend/internal/models"
)

// Messages looks up localized banner texts
type Messages interface {
	Get(lang, messageID string, data map[string]interface{}) string
}

// Context carries the per-request inputs of Transform
type Context struct {
	Language string
	Streak   models.StreakEvent
	Now      time.Time
}

type iconRule struct {
	pattern *regexp.Regexp
	icon    string
}

// Rules are tried in order; the first match decorates the line.
var iconRules = []iconRule{
	{regexp.MustCompile(`(?i)\bimportant\b`), "📌"},
	{regexp.MustCompile(`(?i)\bremember\b`), "💡"},
	{regexp.MustCompile(`(?i)\bexcellent\b`), "✅"},
	{regexp.MustCompile(`(?i)\b(good|well)\b`), "✅"},
	{regexp.MustCompile(`(?i)\bwarning\b`), "⚠️"},
	{regexp.MustCompile(`(?i)\b(error|fail)\b`), "❌"},
	{regexp.MustCompile(`(?i)\b(exam|time)\b`), "⏰"},
	{regexp.MustCompile(`(?i)\b(note|tip)\b`), "💡"},
	{regexp.MustCompile(`(?i)\b(amazing|great)\b`), "🎉"},
}

// trackedIcons holds every icon the rules emit plus the banner icons
var trackedIcons = []string{"📌", "💡", "✅", "⚠️", "❌", "⏰", "🎉", "🔥", "🌅"}

var emojiBudgets = map[string]int{
	models.ExamModeTeacher: 0,
	models.ExamMode2Marks:  1,
	models.ExamMode5Marks:  3,
	models.ExamMode8Marks:  5,
}

const defaultEmojiBudget = 4

// Early-morning banner window on the server clock, [start, end)
const (
	earlyStartHour = 4
	earlyEndHour   = 7
)

// EmojiBudget returns how many icons a reply in examMode may receive
func EmojiBudget(examMode string) int {
	if b, ok := emojiBudgets[examMode]; ok {
		return b
	}
	return defaultEmojiBudget
}

// Processor decorates provider replies
type Processor struct {
	messages Messages
}

func NewProcessor(messages Messages) *Processor {
	return &Processor{messages: messages}
}

// Transform applies, in order: emoji annotation, the streak banner and the
// early-morning banner. Banners are prepended, so the last one applied ends
// up on top.
func (p *Processor) Transform(reply, examMode string, c Context) string {
	out := Annotate(reply, EmojiBudget(examMode))

	switch c.Streak.Kind {
	case models.StreakStarted:
		out = prepend(p.messages.Get(c.Language, i18n.MsgStreakFirstDay, nil), out)
	case models.StreakContinued:
		out = prepend(p.messages.Get(c.Language, i18n.MsgStreakContinued, map[string]interface{}{
			"Days": c.Streak.Streak,
		}), out)
	}

	if IsEarlyMorning(c.Now) {
		out = prepend(p.messages.Get(c.Language, i18n.MsgEarlyBird, nil), out)
	}

	return out
}

// IsEarlyMorning reports whether t falls in the early-morning window of its
// own location
func IsEarlyMorning(t time.Time) bool {
	h := t.Hour()
	return h >= earlyStartHour && h < earlyEndHour
}

// Annotate prepends at most one icon to each line, stopping once budget
// icons have been added. Lines that already carry a tracked icon are left
// alone.
func Annotate(reply string, budget int) string {
	if budget <= 0 || reply == "" {
		return reply
	}

	lines := strings.Split(reply, "\n")
	used := 0
	for i, line := range lines {
		if used >= budget {
			break
		}
		if strings.TrimSpace(line) == "" || hasTrackedIcon(line) {
			continue
		}
		for _, rule := range iconRules {
			if rule.pattern.MatchString(line) {
				lines[i] = rule.icon + " " + line
				used++
				break
			}
		}
	}
	return strings.Join(lines, "\n")
}

func hasTrackedIcon(line string) bool {
	for _, icon := range trackedIcons {
		if strings.Contains(line, icon) {
			return true
		}
	}
	return false
}

func prepend(banner, body string) string {
	if banner == "" {
		return body
	}
	return banner + "\n\n" + body
}
