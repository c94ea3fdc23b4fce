package prompt

import "regexp"

var distressPattern = regexp.MustCompile(`(?i)\b(stress(ed)?|anxious|anxiety|panic(king)?|overwhelmed|depressed|hopeless|scared|afraid|nervous|worried|tension|can'?t cope|give up|crying)\b`)

// IsDistressed reports whether message contains distress language
func IsDistressed(message string) bool {
	return distressPattern.MatchString(message)
}
