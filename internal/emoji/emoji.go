package emoji

// emojiMap holds emoji and ASCII fallback mappings
var emojiMap = map[string][2]string{
	// [emoji, fallback]
	"critical":        {"🔥", "[CRIT]"},
	"error":           {"❌", "[ERR]"},
	"warning":         {"⚠️", "[WRN]"},
	"info":            {"ℹ️", "[INF]"},
	"success":         {"✅", "[OK]"},
	"pattern":         {"🔍", "[PAT]"},
	"statistics":      {"📊", "[STATS]"},
	"recommendations": {"📋", "[REC]"},
	"bundle":          {"📦", "[ZIP]"},
	"watch":           {"🔭", "[TAIL]"},
	"issue":           {"🎯", "[ISS]"},
	"component":       {"🧩", "[CMP]"},
	"link":            {"🔗", "[COR]"},
	"brain":           {"🧠", "[AI]"},
	"rocket":          {"🚀", "[RUN]"},
	"help":            {"❓", "[?]"},
}

var emojiDisabled bool

// SetEmojiDisabled sets the global emoji disabled state
func SetEmojiDisabled(disabled bool) {
	emojiDisabled = disabled
}

// IsEmojiDisabled returns the current emoji disabled state
func IsEmojiDisabled() bool {
	return emojiDisabled
}

// GetEmoji returns emoji or fallback based on the no-emoji setting
func GetEmoji(key string) string {
	if mapping, exists := emojiMap[key]; exists {
		if emojiDisabled {
			return mapping[1] // fallback
		}
		return mapping[0] // emoji
	}
	return "[?]" // unknown key
}
