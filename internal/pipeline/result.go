package pipeline

import (
	"time"

	"github.com/kozaktomas/attendance-scanner/internal/ledger"
)

// Kind is the outcome class of a processed frame.
type Kind int

const (
	// Pending means a valid identity was read but is not yet stable.
	Pending Kind = iota
	// Accepted means attendance was written.
	Accepted
	// Rejected carries a Reason.
	Rejected
)

func (k Kind) String() string {
	switch k {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	default:
		return "pending"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Reason explains a rejected frame.
type Reason string

const (
	ReasonNoCode            Reason = "no_code"
	ReasonFormatInvalid     Reason = "format_invalid"
	ReasonDuplicate         Reason = "duplicate"
	ReasonLedgerUnavailable Reason = "ledger_unavailable"
)

// Result is the outcome of one processed frame.
type Result struct {
	ID       string         `json:"id"`
	Kind     Kind           `json:"kind"`
	Reason   Reason         `json:"reason,omitempty"`
	Identity string         `json:"reg_number,omitempty"`
	Name     string         `json:"student_name,omitempty"`
	Payload  string         `json:"payload,omitempty"` // rejected payload for format_invalid
	Count    int            `json:"count,omitempty"`   // stability count
	Record   *ledger.Record `json:"record,omitempty"`
	At       time.Time      `json:"at"`
	Err      error          `json:"-"`
}

// Settled reports whether the stability gate accepted the identity, whatever
// the ledger made of it.
func (r Result) Settled() bool {
	return r.Kind == Accepted || r.Reason == ReasonDuplicate || r.Reason == ReasonLedgerUnavailable
}

// Message is a short operator-facing description.
func (r Result) Message() string {
	switch {
	case r.Kind == Accepted:
		return "Attendance marked for " + r.Name
	case r.Kind == Pending:
		return "Hold the card steady"
	case r.Reason == ReasonDuplicate:
		return "Attendance already marked today"
	case r.Reason == ReasonFormatInvalid:
		return "Invalid registration number format"
	case r.Reason == ReasonLedgerUnavailable:
		return "Attendance store unavailable, try again"
	default:
		return "Scanning"
	}
}
