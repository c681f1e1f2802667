package emotion

import "testing"

func TestAnalyze(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"", Neutral},
		{"今天天气不错", Neutral},
		{"太好了！", Happy},
		{"呜呜，我好难过", Crying},
		{"哈哈哈笑死我了", Laughing},
		{"气死我了", Angry},
		{"让我想想", Thinking},
		{"I love you", Loving},
	}
	for _, tt := range tests {
		if got := Analyze(tt.in); got != tt.want {
			t.Errorf("Analyze(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSymbol(t *testing.T) {
	t.Parallel()

	if got := Symbol(Sad, StyleEmoji); got != "😔" {
		t.Errorf("emoji for sad = %q", got)
	}
	if got := Symbol(Sad, StyleLabel); got != "Sad" {
		t.Errorf("label for sad = %q", got)
	}
	if got := Symbol("not-a-label", StyleLabel); got != "Happy" {
		t.Errorf("unknown label should fall back to happy, got %q", got)
	}
	if got := Symbol(Laughing, StyleLabel); got != "Happy" {
		t.Errorf("laughing maps to the happy token, got %q", got)
	}
}

func TestStyleIsValid(t *testing.T) {
	t.Parallel()

	if !StyleEmoji.IsValid() || !StyleLabel.IsValid() {
		t.Error("built-in styles must validate")
	}
	if Style("ascii-art").IsValid() {
		t.Error("unknown style must not validate")
	}
}
