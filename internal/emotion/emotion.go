// Package emotion assigns a coarse emotion label to a spoken segment and maps
// it to the symbol the client renders alongside playback. The label set is a
// fixed contract with the device firmware; do not extend it without a matching
// firmware release.
package emotion

import "strings"

// Style selects how a label is rendered in the "llm" status frame.
type Style string

const (
	// StyleEmoji renders pictographic glyphs (🙂, 😔, …).
	StyleEmoji Style = "emoji"

	// StyleLabel renders English tokens (Happy, Sad, …).
	StyleLabel Style = "label"
)

// IsValid reports whether s is a recognised rendering style.
func (s Style) IsValid() bool {
	return s == StyleEmoji || s == StyleLabel
}

// Labels recognised by the client contract.
const (
	Neutral     = "neutral"
	Happy       = "happy"
	Laughing    = "laughing"
	Funny       = "funny"
	Sad         = "sad"
	Angry       = "angry"
	Crying      = "crying"
	Loving      = "loving"
	Embarrassed = "embarrassed"
	Surprised   = "surprised"
	Shocked     = "shocked"
	Thinking    = "thinking"
	Winking     = "winking"
	Cool        = "cool"
	Relaxed     = "relaxed"
	Delicious   = "delicious"
	Kissy       = "kissy"
	Confident   = "confident"
	Sleepy      = "sleepy"
	Silly       = "silly"
	Confused    = "confused"
)

// emojiTable maps a label to its pictographic glyph.
var emojiTable = map[string]string{
	Neutral:     "🙂",
	Happy:       "😊",
	Laughing:    "😂",
	Funny:       "😄",
	Sad:         "😔",
	Angry:       "😠",
	Crying:      "😭",
	Loving:      "🥰",
	Embarrassed: "😳",
	Surprised:   "😮",
	Shocked:     "😱",
	Thinking:    "🤔",
	Winking:     "😉",
	Cool:        "😎",
	Relaxed:     "😌",
	Delicious:   "😋",
	Kissy:       "😘",
	Confident:   "😏",
	Sleepy:      "😴",
	Silly:       "🤪",
	Confused:    "😕",
}

// labelTable maps a label to the English token used by firmware builds that
// cannot render glyphs.
var labelTable = map[string]string{
	Neutral:     "Neutral",
	Happy:       "Happy",
	Laughing:    "Happy",
	Funny:       "Happy",
	Sad:         "Sad",
	Angry:       "Angry",
	Crying:      "Cry",
	Loving:      "Happy",
	Embarrassed: "Embarrassed",
	Surprised:   "Surprised",
	Shocked:     "Shock",
	Thinking:    "Confused",
	Winking:     "Wink",
	Cool:        "Happy",
	Relaxed:     "Happy",
	Delicious:   "Happy",
	Kissy:       "Happy",
	Confident:   "Happy",
	Sleepy:      "Sleepy",
	Silly:       "Happy",
	Confused:    "Confused",
}

// Symbol returns the client-facing symbol for label under the given style.
// Unknown labels fall back to the happy symbol, matching firmware behaviour.
func Symbol(label string, style Style) string {
	table := emojiTable
	if style == StyleLabel {
		table = labelTable
	}
	if sym, ok := table[label]; ok {
		return sym
	}
	return table[Happy]
}

// cues maps indicator substrings (emoji the model emitted, or strongly
// emotive words) to labels. First match wins, so more specific cues sit
// before generic ones.
var cues = []struct {
	label      string
	indicators []string
}{
	{Crying, []string{"😭", "呜呜", "哭了", "想哭", "泪"}},
	{Laughing, []string{"😂", "哈哈哈", "笑死"}},
	{Angry, []string{"😠", "😡", "生气", "气死", "可恶", "angry"}},
	{Shocked, []string{"😱", "天哪", "吓死"}},
	{Surprised, []string{"😮", "惊讶", "没想到", "surprise"}},
	{Sad, []string{"😔", "难过", "伤心", "遗憾", "失望", "sad"}},
	{Loving, []string{"🥰", "😘", "爱你", "喜欢你", "亲爱的", "love"}},
	{Embarrassed, []string{"😳", "不好意思", "尴尬", "害羞"}},
	{Thinking, []string{"🤔", "让我想想", "思考"}},
	{Winking, []string{"😉", "眨眼"}},
	{Cool, []string{"😎", "酷", "cool"}},
	{Delicious, []string{"😋", "好吃", "美味", "香"}},
	{Sleepy, []string{"😴", "困了", "想睡", "晚安"}},
	{Confused, []string{"😕", "不明白", "不懂", "疑惑"}},
	{Silly, []string{"🤪", "傻", "调皮"}},
	{Happy, []string{"😊", "😄", "哈哈", "开心", "高兴", "太好了", "真棒", "happy", "great", "!", "！"}},
}

// Analyze inspects a spoken segment and returns an emotion label. The
// heuristic keys on emoji the model emitted and on emotive keywords; plain
// text defaults to neutral.
func Analyze(s string) string {
	if strings.TrimSpace(s) == "" {
		return Neutral
	}
	lower := strings.ToLower(s)
	for _, c := range cues {
		for _, in := range c.indicators {
			if strings.Contains(lower, in) {
				return c.label
			}
		}
	}
	return Neutral
}
