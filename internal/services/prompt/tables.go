package prompt

import "github.com/appana-ai/appana-backend/internal/models"

type modeProfile struct {
	tone   string
	format string
	// authoritative modes ignore persona and mood
	authoritative bool
}

var modeProfiles = map[string]modeProfile{
	models.ExamModeNormal: {
		format: "clear and concise bullet points",
	},
	models.ExamModeTeacher: {
		tone:          "strict, formal, precise Indian syllabus teacher",
		format:        "clear and concise bullet points, stated with authority",
		authoritative: true,
	},
	models.ExamMode2Marks: {
		format: "2–3 sentences, exam-oriented, precise",
	},
	models.ExamMode5Marks: {
		format: "structured paragraph with 5 key points",
	},
	models.ExamMode8Marks: {
		format: "detailed essay with introduction, body, and conclusion",
	},
}

const defaultPersona = "mentor"

var personaTones = map[string]string{
	"mentor": "friendly, encouraging, exam-focused mentor",
	"friend": "relaxed, supportive study buddy who explains like a classmate",
	"coach":  "energetic, goal-driven exam coach who pushes for steady progress",
}

const defaultMood = "calm"

var moodStyles = map[string]string{
	"calm":      "Keep a steady, patient pace.",
	"motivated": "Match the student's energy and suggest one stretch goal.",
	"tired":     "Keep it short and light, and suggest a quick break if it helps.",
	"stressed":  calmingStyle,
}

const calmingStyle = "The student sounds stressed. Respond in a calm, reassuring register, acknowledge the feeling in one line, then break the answer into small, manageable steps."

var directives = []string{
	"Use provided Context/Large Subjects automatically.",
	"Be Indian syllabus aware (CBSE / ICSE / State Boards).",
	"Keep explanations clear, accurate, and exam-relevant.",
	"Use emojis sparingly and professionally.",
	"Analyze any provided file text first.",
	`If the user asks for "Notes", "Quiz", or "Important Questions", format appropriately.`,
}

func profileFor(examMode string) modeProfile {
	if p, ok := modeProfiles[examMode]; ok {
		return p
	}
	return modeProfiles[models.ExamModeNormal]
}

func personaTone(persona string) string {
	if t, ok := personaTones[persona]; ok {
		return t
	}
	return personaTones[defaultPersona]
}

func moodStyle(mood string) string {
	if s, ok := moodStyles[mood]; ok {
		return s
	}
	return moodStyles[defaultMood]
}
