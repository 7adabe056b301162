package pipeline

import (
	"context"
	"errors"
	"image"
	"log/slog"

	"github.com/kozaktomas/attendance-scanner/internal/barcode"
	"github.com/kozaktomas/attendance-scanner/internal/ledger"
)

// ScanOutcome describes one code found in a still image.
type ScanOutcome struct {
	Type     string         `json:"type"`
	Payload  string         `json:"data"`
	Identity string         `json:"reg_number"`
	Name     string         `json:"student_name"`
	Valid    bool           `json:"valid"`
	Marked   bool           `json:"attendance_marked"`
	Message  string         `json:"message"`
	Record   *ledger.Record `json:"record,omitempty"`
	Err      error          `json:"-"`
}

// Unavailable reports whether marking failed because the ledger was down.
func (o ScanOutcome) Unavailable() bool {
	return o.Err != nil && errors.Is(o.Err, ledger.ErrUnavailable)
}

// ScanImage decodes every code in a single image. A still image is one
// deliberate presentation, so the stability gate is bypassed. When mark is
// set, every valid identity is written to the ledger. An empty result means
// no code was found.
func (p *Pipeline) ScanImage(ctx context.Context, img image.Image, mark bool) []ScanOutcome {
	if img == nil {
		return nil
	}

	card := img
	codes := p.cfg.Decoder.Decode(img)
	if len(codes) == 0 {
		located, ok := p.locateCard(img)
		if !ok {
			return nil
		}
		card = located
		codes = p.cfg.Decoder.Decode(located)
	}

	outcomes := make([]ScanOutcome, 0, len(codes))
	seen := make(map[string]bool)
	for _, c := range codes {
		outcome, dup := p.scanCode(ctx, c, card, mark, seen)
		if !dup {
			outcomes = append(outcomes, outcome)
		}
	}
	return outcomes
}

func (p *Pipeline) scanCode(ctx context.Context, c barcode.Code, card image.Image, mark bool, seen map[string]bool) (ScanOutcome, bool) {
	out := ScanOutcome{Type: c.Format, Payload: c.Payload}

	identity, ok := p.cfg.Extractor.ExtractIdentity(c.Payload)
	if !ok {
		out.Message = "Invalid registration number format"
		return out, false
	}
	if seen[identity] {
		return out, true
	}
	seen[identity] = true

	out.Identity = identity
	out.Valid = true
	out.Name = p.resolveName(ctx, identity, card)

	if !mark {
		out.Message = "Valid registration number"
		return out, false
	}

	m, err := p.cfg.Ledger.MarkPresent(ctx, out.Name, identity)
	switch {
	case err != nil:
		slog.Error("failed to mark attendance", "identity", identity, "error", err)
		out.Err = err
		out.Message = "Failed to mark attendance"
	case m.Outcome == ledger.Duplicate:
		out.Record = &m.Record
		out.Message = "Attendance already marked today"
	default:
		out.Record = &m.Record
		out.Marked = true
		out.Message = "Attendance marked successfully"
	}
	return out, false
}
