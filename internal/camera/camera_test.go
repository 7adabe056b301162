package camera

import "testing"

func TestGuessKind(t *testing.T) {
	tests := []struct {
		info Info
		want string
	}{
		{Info{Index: 0, Width: 1920}, "built-in"},
		{Info{Index: 1, Width: 1920}, "external (full HD)"},
		{Info{Index: 2, Width: 1280}, "external (HD)"},
		{Info{Index: 3, Width: 640}, "external"},
	}
	for _, tt := range tests {
		if got := guessKind(tt.info); got != tt.want {
			t.Errorf("guessKind(%+v) = %q, want %q", tt.info, got, tt.want)
		}
	}
}
