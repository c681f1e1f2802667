package keyword

import (
	"context"
	"testing"

	"github.com/parleyvoice/parley/pkg/provider/intent"
)

func TestDetect(t *testing.T) {
	t.Parallel()

	r := New("that's all")
	tests := []struct {
		in   string
		want intent.Kind
	}{
		{"今天天气怎么样", intent.KindChat},
		{"好了，退出吧", intent.KindExit},
		{"拜拜", intent.KindExit},
		{"Goodbye my friend", intent.KindExit},
		{"That's ALL for today", intent.KindExit},
		{"", intent.KindChat},
	}
	for _, tt := range tests {
		res, err := r.Detect(context.Background(), tt.in)
		if err != nil {
			t.Fatalf("Detect(%q): %v", tt.in, err)
		}
		if res.Kind != tt.want {
			t.Errorf("Detect(%q) = %q, want %q", tt.in, res.Kind, tt.want)
		}
	}
}
