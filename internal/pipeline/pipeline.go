// Package pipeline turns camera frames and uploaded images into attendance
// records: decode, locate and rectify the card, validate the identity, wait
// for a stable read, resolve the name and write the ledger.
package pipeline

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/attendance-scanner/internal/ai"
	"github.com/kozaktomas/attendance-scanner/internal/barcode"
	"github.com/kozaktomas/attendance-scanner/internal/ledger"
	"github.com/kozaktomas/attendance-scanner/internal/regno"
	"github.com/kozaktomas/attendance-scanner/internal/roster"
	"github.com/kozaktomas/attendance-scanner/internal/stability"
	"github.com/kozaktomas/attendance-scanner/internal/vision"
)

// CodeDecoder finds codes in an image. No code is an empty slice.
type CodeDecoder interface {
	Decode(frame image.Image) []barcode.Code
}

// CardLocator finds the most plausible card region in a frame.
type CardLocator interface {
	Locate(frame image.Image) (vision.Candidate, bool)
}

// RectifyFunc maps a located card to an upright image.
type RectifyFunc func(frame image.Image, c vision.Candidate) (image.Image, error)

// Config holds the collaborators of a Pipeline. Locator, Directory,
// NameReader and DebugDir are optional.
type Config struct {
	Decoder    CodeDecoder
	Locator    CardLocator
	Rectify    RectifyFunc
	Extractor  *regno.Extractor
	Gate       *stability.Gate
	Ledger     ledger.Ledger
	Directory  roster.Directory
	NameReader ai.NameReader
	DebugDir   string
	Now        func() time.Time
}

// Pipeline processes frames one at a time. The stability gate is owned by
// the pipeline and only touched while holding its lock.
type Pipeline struct {
	mu  sync.Mutex
	cfg Config
}

// New creates a pipeline. Decoder, Extractor, Gate and Ledger are required.
func New(cfg Config) (*Pipeline, error) {
	switch {
	case cfg.Decoder == nil:
		return nil, errors.New("pipeline: decoder is required")
	case cfg.Extractor == nil:
		return nil, errors.New("pipeline: identity extractor is required")
	case cfg.Gate == nil:
		return nil, errors.New("pipeline: stability gate is required")
	case cfg.Ledger == nil:
		return nil, errors.New("pipeline: ledger is required")
	}
	if cfg.Rectify == nil {
		cfg.Rectify = vision.Rectify
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Pipeline{cfg: cfg}, nil
}

// Ledger returns the ledger attendance is written to.
func (p *Pipeline) Ledger() ledger.Ledger {
	return p.cfg.Ledger
}

// GateState returns the current stability gate state.
func (p *Pipeline) GateState() stability.State {
	return p.cfg.Gate.State()
}

// ProcessFrame runs one frame through the pipeline. It never fails: decode
// and locate problems degrade to a rejected result, and ledger failures are
// reported in Result.Err.
func (p *Pipeline) ProcessFrame(ctx context.Context, frame image.Image) Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	res := Result{ID: uuid.NewString(), At: p.cfg.Now()}

	found := p.identify(frame)
	if found.identity == "" {
		res.Kind = Rejected
		res.Payload = found.payload
		if found.payload == "" {
			res.Reason = ReasonNoCode
		} else {
			res.Reason = ReasonFormatInvalid
		}
		return res
	}
	res.Identity = found.identity

	if p.cfg.Gate.Observe(found.identity) == stability.Pending {
		res.Kind = Pending
		res.Count = p.cfg.Gate.State().Count
		return res
	}
	res.Count = p.cfg.Gate.Threshold()

	card := found.card
	if card == nil {
		card = frame
	}
	res.Name = p.resolveName(ctx, found.identity, card)

	mark, err := p.cfg.Ledger.MarkPresent(ctx, res.Name, found.identity)
	switch {
	case err != nil:
		slog.Error("failed to mark attendance", "identity", found.identity, "error", err)
		res.Kind = Rejected
		res.Reason = ReasonLedgerUnavailable
		res.Err = err
	case mark.Outcome == ledger.Duplicate:
		slog.Info("attendance already marked today", "identity", found.identity)
		res.Kind = Rejected
		res.Reason = ReasonDuplicate
		res.Record = &mark.Record
	default:
		slog.Info("attendance marked", "identity", found.identity, "name", res.Name)
		res.Kind = Accepted
		res.Record = &mark.Record
	}
	return res
}

type identification struct {
	identity string
	payload  string      // first payload seen when none was valid
	card     image.Image // rectified card, when the locator was used
}

// identify decodes the whole frame first and falls back to the located card.
func (p *Pipeline) identify(frame image.Image) identification {
	var found identification
	if frame == nil {
		return found
	}

	id, payload, ok := p.firstIdentity(p.cfg.Decoder.Decode(frame))
	if ok {
		found.identity = id
		return found
	}
	found.payload = payload

	card, ok := p.locateCard(frame)
	if !ok {
		return found
	}
	found.card = card

	id, payload, ok = p.firstIdentity(p.cfg.Decoder.Decode(card))
	if ok {
		found.identity = id
	} else if found.payload == "" {
		found.payload = payload
	}
	return found
}

func (p *Pipeline) locateCard(frame image.Image) (image.Image, bool) {
	if p.cfg.Locator == nil {
		return nil, false
	}
	candidate, ok := p.cfg.Locator.Locate(frame)
	if !ok {
		return nil, false
	}
	card, err := p.cfg.Rectify(frame, candidate)
	if err != nil {
		slog.Debug("failed to rectify card", "error", err)
		return nil, false
	}
	if p.cfg.DebugDir != "" {
		if path, err := vision.SaveDebugImage(p.cfg.DebugDir, "card", card); err != nil {
			slog.Warn("failed to save debug image", "error", err)
		} else {
			slog.Debug("saved rectified card", "path", path)
		}
	}
	return card, true
}

// firstIdentity returns the first code that yields a valid identity, or the
// first non-empty payload when none does.
func (p *Pipeline) firstIdentity(codes []barcode.Code) (identity, payload string, ok bool) {
	for _, c := range codes {
		if id, valid := p.cfg.Extractor.ExtractIdentity(c.Payload); valid {
			return id, "", true
		}
		if payload == "" {
			payload = c.Payload
		}
	}
	return "", payload, false
}

// resolveName asks the roster first, then the card reader, and falls back to
// a placeholder derived from the identity.
func (p *Pipeline) resolveName(ctx context.Context, identity string, card image.Image) string {
	if p.cfg.Directory != nil {
		name, ok, err := p.cfg.Directory.Lookup(ctx, identity)
		if err != nil {
			slog.Warn("roster lookup failed", "identity", identity, "error", err)
		} else if ok && name != "" {
			return name
		}
	}

	if p.cfg.NameReader != nil && card != nil {
		raw, err := p.cfg.NameReader.ReadName(ctx, card)
		if err != nil {
			slog.Warn("failed to read name from card", "identity", identity, "reader", p.cfg.NameReader.Name(), "error", err)
		} else if name, ok := roster.CleanName(raw); ok {
			return name
		} else if raw != "" {
			slog.Debug("discarded unreadable name", "identity", identity, "raw", raw)
		}
	}

	return roster.Placeholder(identity)
}
