package regno

import (
	"strings"

	"github.com/kozaktomas/attendance-scanner/internal/config"
)

// Correction replaces every occurrence of From with To.
type Correction struct {
	From string
	To   string
}

// CorrectionTable is an ordered list of character substitutions for common
// optical misreads. Rules are applied one after another, so a later rule sees
// the output of the earlier ones.
type CorrectionTable []Correction

// DefaultCorrections returns the built-in correction table.
func DefaultCorrections() CorrectionTable {
	return CorrectionTable{
		{From: "%", To: "R"},
		{From: ",", To: "2"},
		{From: "1", To: "I"},
		{From: "0", To: "O"},
		{From: "5", To: "S"},
		{From: "8", To: "B"},
	}
}

// CorrectionsFromConfig converts configured rules into a table.
func CorrectionsFromConfig(c config.CorrectionsConfig) CorrectionTable {
	table := make(CorrectionTable, 0, len(c.Rules))
	for _, r := range c.Rules {
		if r.From == "" {
			continue
		}
		table = append(table, Correction{From: r.From, To: r.To})
	}
	return table
}

// Apply runs every rule over s in order.
func (t CorrectionTable) Apply(s string) string {
	for _, c := range t {
		s = strings.ReplaceAll(s, c.From, c.To)
	}
	return s
}
