package regno

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/kozaktomas/attendance-scanner/internal/config"
)

func TestValidate(t *testing.T) {
	v := NewValidator("URK")

	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"valid", "URK23AI1112", true},
		{"valid other branch", "URK19CS0042", true},
		{"empty", "", false},
		{"too short", "URK23AI111", false},
		{"too long", "URK23AI11123", false},
		{"lowercase", "urk23ai1112", false},
		{"lowercase letters", "URK23ai1112", false},
		{"wrong prefix", "ABC23AI1112", false},
		{"missing digit group", "URKAAAI1112", false},
		{"digit in letter group", "URK23A11112", false},
		{"leading space", " URK23AI1112", false},
		{"trailing text", "URK23AI1112X", false},
		{"embedded", "xURK23AI1112", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := v.Validate(tt.input); got != tt.want {
				t.Errorf("Validate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidate_CustomPrefix(t *testing.T) {
	v := NewValidator("abc")

	if v.Prefix() != "ABC" {
		t.Errorf("expected prefix ABC, got %q", v.Prefix())
	}
	if !v.Validate("ABC12CD3456") {
		t.Error("expected ABC12CD3456 to be valid")
	}
	if v.Validate("URK23AI1112") {
		t.Error("expected URK23AI1112 to be invalid for prefix ABC")
	}
}

func TestValidate_EmptyPrefixUsesDefault(t *testing.T) {
	v := NewValidator("  ")
	if v.Prefix() != "URK" {
		t.Errorf("expected default prefix, got %q", v.Prefix())
	}
}

func randomIdentity(r *rand.Rand) string {
	letters := "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	return fmt.Sprintf("URK%02d%c%c%04d",
		r.IntN(100), letters[r.IntN(26)], letters[r.IntN(26)], r.IntN(10000))
}

func TestValidate_GeneratedIdentities(t *testing.T) {
	v := NewValidator("URK")
	r := rand.New(rand.NewPCG(1, 2))

	for range 500 {
		id := randomIdentity(r)
		if !v.Validate(id) {
			t.Fatalf("expected generated identity %q to be valid", id)
		}
		if v.Validate(id[:len(id)-1]) {
			t.Fatalf("expected truncated identity %q to be invalid", id[:len(id)-1])
		}
	}
}

func TestCorrectionTable_Apply(t *testing.T) {
	table := DefaultCorrections()

	tests := []struct {
		input string
		want  string
	}{
		{"U%K", "URK"},
		{"A,B", "A2B"},
		{"1058", "IOSB"},
		{"URK", "URK"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := table.Apply(tt.input); got != tt.want {
			t.Errorf("Apply(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestCorrectionTable_OrderMatters(t *testing.T) {
	// "," becomes "2", which a later rule rewrites again.
	table := CorrectionTable{{From: ",", To: "2"}, {From: "2", To: "Z"}}
	if got := table.Apply(","); got != "Z" {
		t.Errorf("expected chained rewrite to Z, got %q", got)
	}

	reversed := CorrectionTable{{From: "2", To: "Z"}, {From: ",", To: "2"}}
	if got := reversed.Apply(","); got != "2" {
		t.Errorf("expected single rewrite to 2, got %q", got)
	}
}

func TestCorrectionsFromConfig(t *testing.T) {
	cfg := config.CorrectionsConfig{Rules: []config.CorrectionRule{
		{From: "%", To: "R"},
		{From: "", To: "X"},
		{From: "$", To: "S"},
	}}

	table := CorrectionsFromConfig(cfg)

	if len(table) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(table))
	}
	if table[1] != (Correction{From: "$", To: "S"}) {
		t.Errorf("unexpected second rule: %+v", table[1])
	}
}

func TestExtractIdentity(t *testing.T) {
	e := NewExtractor(NewValidator("URK"), DefaultCorrections())

	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{"direct", "URK23AI1112", "URK23AI1112", true},
		{"whitespace", "  URK23AI1112\n", "URK23AI1112", true},
		{"lowercase", "urk23ai1112", "URK23AI1112", true},
		{"percent misread", "U%K23AI2347", "URK23AI2347", true},
		{"comma misread", "U%K,3AI2347", "URK23AI2347", true},
		{"digit for letter", "U%K23A12347", "URK23AI2347", true},
		{"json regno", `{"name":"Alice","regno":"URK23AI1112"}`, "URK23AI1112", true},
		{"json student_id lowercase", `{"student_id":"urk21cs0042"}`, "URK21CS0042", true},
		{"json skips invalid field", `{"id":"URKXX","reg_no":"URK21CS0042"}`, "URK21CS0042", true},
		{"embedded", "Student: URK23AI1112 (CSE)", "URK23AI1112", true},
		{"url", "https://example.edu/id?u=URK22ME0007&v=1", "URK22ME0007", true},
		{"empty", "", "", false},
		{"blank", "   ", "", false},
		{"garbage", "hello world", "", false},
		{"prefix but bad body", "URK23AI11", "", false},
		{"json without candidate", `{"name":"Alice"}`, "", false},
		{"json numeric id", `{"id":12345}`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := e.ExtractIdentity(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ExtractIdentity(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestExtractIdentity_IdempotentOnValid(t *testing.T) {
	v := NewValidator("URK")
	e := NewExtractor(v, DefaultCorrections())
	r := rand.New(rand.NewPCG(3, 4))

	for range 500 {
		id := randomIdentity(r)
		got, ok := e.ExtractIdentity(id)
		if !ok || got != id {
			t.Fatalf("ExtractIdentity(%q) = (%q, %v), want unchanged", id, got, ok)
		}
		again, ok := e.ExtractIdentity(got)
		if !ok || again != got {
			t.Fatalf("second extraction of %q changed it to %q", got, again)
		}
	}
}

func TestExtractIdentity_NoCorrectionsWhenPrefixPresent(t *testing.T) {
	// A payload that already starts with the prefix is never rewritten, so a
	// 0 in the letter group stays a 0 and the payload is rejected.
	e := NewExtractor(NewValidator("URK"), DefaultCorrections())
	if got, ok := e.ExtractIdentity("URK23A01112"); ok {
		t.Errorf("expected no identity, got %q", got)
	}
}

func TestExtractIdentity_NilCorrections(t *testing.T) {
	e := NewExtractor(NewValidator("URK"), nil)
	if _, ok := e.ExtractIdentity("U%K23AI2347"); ok {
		t.Error("expected no identity without corrections")
	}
	if got, ok := e.ExtractIdentity("URK23AI2347"); !ok || got != "URK23AI2347" {
		t.Errorf("expected direct match, got (%q, %v)", got, ok)
	}
}
