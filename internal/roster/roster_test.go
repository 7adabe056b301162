package roster

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sampleRoster = `
students:
  - regno: URK23AI1112
    name: Alice Johnson
  - regno: urk21cs0042
    name: "  Bob Smith "
  - regno: ""
    name: Nobody
`

func TestParseFile(t *testing.T) {
	f, err := ParseFile([]byte(sampleRoster))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Len() != 2 {
		t.Errorf("expected 2 students, got %d", f.Len())
	}

	tests := []struct {
		id     string
		want   string
		wantOK bool
	}{
		{"URK23AI1112", "Alice Johnson", true},
		{"URK21CS0042", "Bob Smith", true},
		{"urk21cs0042", "Bob Smith", true},
		{"URK00XX0000", "", false},
	}
	for _, tt := range tests {
		name, ok, err := f.Lookup(context.Background(), tt.id)
		if err != nil || ok != tt.wantOK || name != tt.want {
			t.Errorf("Lookup(%q) = (%q, %v, %v), want (%q, %v)", tt.id, name, ok, err, tt.want, tt.wantOK)
		}
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.yaml")
	if err := os.WriteFile(path, []byte(sampleRoster), 0o600); err != nil {
		t.Fatal(err)
	}
	f, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Len() != 2 {
		t.Errorf("expected 2 students, got %d", f.Len())
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := ParseFile([]byte("students: [::")); err == nil {
		t.Error("expected error for invalid yaml")
	}
}

type failingDirectory struct{}

func (failingDirectory) Lookup(ctx context.Context, identity string) (string, bool, error) {
	return "", false, errors.New("connection refused")
}

func TestChain(t *testing.T) {
	first, _ := ParseFile([]byte("students:\n  - regno: URK23AI1112\n    name: Alice\n"))
	second, _ := ParseFile([]byte("students:\n  - regno: URK23AI1112\n    name: Other\n  - regno: URK21CS0042\n    name: Bob\n"))
	chain := Chain{failingDirectory{}, first, second}

	if name, ok, _ := chain.Lookup(context.Background(), "URK23AI1112"); !ok || name != "Alice" {
		t.Errorf("expected first hit Alice, got %q %v", name, ok)
	}
	if name, ok, _ := chain.Lookup(context.Background(), "URK21CS0042"); !ok || name != "Bob" {
		t.Errorf("expected Bob from second directory, got %q %v", name, ok)
	}
	if _, ok, err := chain.Lookup(context.Background(), "URK99ZZ9999"); ok || err != nil {
		t.Errorf("expected miss without error, got ok=%v err=%v", ok, err)
	}
}

func TestPlaceholder(t *testing.T) {
	if got := Placeholder("URK23AI1112"); got != "QR_STUDENT_URK23AI1112" {
		t.Errorf("unexpected placeholder %q", got)
	}
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		input  string
		want   string
		wantOK bool
	}{
		{"ALICE JOHNSON", "Alice Johnson", true},
		{"  alice   johnson\n", "Alice Johnson", true},
		{"J0HN D0E", "John Doe", true},
		{"AL|CE SM1TH", "Alice Smith", true},
		{"Jana Nováková", "Jana Novakova", true},
		{"Mary-Jane O. Watson", "Mary-Jane O. Watson", true},
		{"A. B Kumar Raj", "A. Kumar Raj", true},
		{"Alice", "", false},
		{"Alice X", "", false},
		{"#### ****", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := CleanName(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("CleanName(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestValidName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"Al", false},
		{"Ali", true},
		{"---", false},
		{"Alice Johnson", true},
		{"Abcdefghij Abcdefghij Abcdefghij Abcdefghij Abcdefghij", false},
	}
	for _, tt := range tests {
		if got := ValidName(tt.name); got != tt.want {
			t.Errorf("ValidName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestRemoveDiacritics(t *testing.T) {
	if got := RemoveDiacritics("Šťastný Čeněk"); got != "Stastny Cenek" {
		t.Errorf("unexpected result %q", got)
	}
}
