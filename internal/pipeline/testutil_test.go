package pipeline

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/attendance-scanner/internal/ai"
	"github.com/kozaktomas/attendance-scanner/internal/barcode"
	"github.com/kozaktomas/attendance-scanner/internal/ledger"
	"github.com/kozaktomas/attendance-scanner/internal/ledger/memory"
	"github.com/kozaktomas/attendance-scanner/internal/regno"
	"github.com/kozaktomas/attendance-scanner/internal/roster"
	"github.com/kozaktomas/attendance-scanner/internal/stability"
	"github.com/kozaktomas/attendance-scanner/internal/vision"
)

// codeFrame is a frame whose decodable payloads are known up front.
type codeFrame struct {
	*image.Gray
	payloads []string
}

func newFrame(payloads ...string) *codeFrame {
	return &codeFrame{Gray: image.NewGray(image.Rect(0, 0, 64, 48)), payloads: payloads}
}

type fakeDecoder struct {
	mu    sync.Mutex
	calls int
}

func (d *fakeDecoder) Decode(img image.Image) []barcode.Code {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()

	f, ok := img.(*codeFrame)
	if !ok {
		return nil
	}
	codes := make([]barcode.Code, 0, len(f.payloads))
	for _, p := range f.payloads {
		codes = append(codes, barcode.Code{Payload: p, Symbology: barcode.SymbologyQR, Format: "QR_CODE"})
	}
	return codes
}

func (d *fakeDecoder) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// fakeLocator finds card in every frame; rectify returns it.
type fakeLocator struct {
	card  *codeFrame
	calls int
}

func (l *fakeLocator) Locate(frame image.Image) (vision.Candidate, bool) {
	l.calls++
	if l.card == nil {
		return vision.Candidate{}, false
	}
	return vision.Candidate{Bounds: image.Rect(10, 10, 50, 35), Area: 1000}, true
}

func (l *fakeLocator) rectify(frame image.Image, c vision.Candidate) (image.Image, error) {
	return l.card, nil
}

type fakeReader struct {
	name  string
	err   error
	calls int
	seen  image.Image
}

func (r *fakeReader) Name() string { return "fake" }

func (r *fakeReader) ReadName(ctx context.Context, card image.Image) (string, error) {
	r.calls++
	r.seen = card
	return r.name, r.err
}

func (r *fakeReader) Usage() ai.Usage { return ai.Usage{Requests: r.calls} }

type failingDirectory struct{}

func (failingDirectory) Lookup(ctx context.Context, identity string) (string, bool, error) {
	return "", false, errors.New("roster offline")
}

func testRoster(t *testing.T) *roster.File {
	t.Helper()
	f, err := roster.ParseFile([]byte(`
students:
  - regno: URK23AI1112
    name: Alice Mary
  - regno: URK21CS0042
    name: Bob Stone
`))
	if err != nil {
		t.Fatalf("failed to parse roster: %v", err)
	}
	return f
}

var testNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func testBook(table *memory.Table) *ledger.Book {
	return ledger.NewBook(table,
		ledger.WithClock(func() time.Time { return testNow }),
		ledger.WithLocation(time.UTC))
}

type testEnv struct {
	pipeline *Pipeline
	decoder  *fakeDecoder
	locator  *fakeLocator
	table    *memory.Table
}

// newTestPipeline builds a pipeline over fakes. mutate may adjust the config.
func newTestPipeline(t *testing.T, threshold int, mutate func(*Config)) *testEnv {
	t.Helper()
	env := &testEnv{
		decoder: &fakeDecoder{},
		locator: &fakeLocator{},
		table:   memory.NewTable(),
	}
	cfg := Config{
		Decoder:   env.decoder,
		Locator:   env.locator,
		Rectify:   env.locator.rectify,
		Extractor: regno.NewExtractor(regno.NewValidator("URK"), regno.DefaultCorrections()),
		Gate:      stability.New(threshold),
		Ledger:    testBook(env.table),
		Directory: testRoster(t),
		Now:       func() time.Time { return testNow },
	}
	if mutate != nil {
		mutate(&cfg)
	}
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create pipeline: %v", err)
	}
	env.pipeline = p
	return env
}

func assertKind(t *testing.T, res Result, kind Kind, reason Reason) {
	t.Helper()
	if res.Kind != kind || res.Reason != reason {
		t.Fatalf("expected %s/%q, got %s/%q (err=%v)", kind, reason, res.Kind, res.Reason, res.Err)
	}
}
