package report

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/wneessen/go-mail"

	"github.com/kozaktomas/attendance-scanner/internal/config"
	"github.com/kozaktomas/attendance-scanner/internal/ledger"
)

var records = []ledger.Record{
	{Date: "2025-03-14", Time: "09:00:01", Name: "Alice Mary", Identity: "URK23AI1112", Status: "Present"},
	{Date: "2025-03-14", Time: "09:02:44", Name: "Stone, Bob", Identity: "URK21CS0042", Status: "Present"},
}

type fakeSender struct {
	sent []*mail.Msg
	err  error
}

func (s *fakeSender) DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error {
	s.sent = append(s.sent, messages...)
	return s.err
}

func testMailer(t *testing.T) (*Mailer, *fakeSender) {
	t.Helper()
	cfg := config.MailConfig{Server: "smtp.example.com", Port: 587, User: "scanner@example.com", Password: "secret", To: "office@example.com"}
	m, err := NewMailer(cfg, "ANT")
	if err != nil {
		t.Fatalf("failed to create mailer: %v", err)
	}
	s := &fakeSender{}
	m.client = s
	return m, s
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, records); err != nil {
		t.Fatal(err)
	}
	want := "Date,Time,Name,Registration Number,Status\n" +
		"2025-03-14,09:00:01,Alice Mary,URK23AI1112,Present\n" +
		"2025-03-14,09:02:44,\"Stone, Bob\",URK21CS0042,Present\n"
	if buf.String() != want {
		t.Errorf("unexpected CSV:\n%s", buf.String())
	}
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "Date,Time,Name,Registration Number,Status\n" {
		t.Errorf("expected header only, got %q", buf.String())
	}
}

func TestNewMailer_NotConfigured(t *testing.T) {
	if _, err := NewMailer(config.MailConfig{Server: "smtp.example.com"}, "ANT"); err == nil {
		t.Error("expected error without credentials")
	}
}

func TestMailer_Message(t *testing.T) {
	m, _ := testMailer(t)

	msg, err := m.Message("", "2025-03-14", records)
	if err != nil {
		t.Fatalf("failed to build message: %v", err)
	}
	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	raw := buf.String()
	for _, want := range []string{
		"Subject: Attendance Report -- ANT",
		"office@example.com",
		"scanner@example.com",
		"attendance_2025-03-14.csv",
	} {
		if !strings.Contains(raw, want) {
			t.Errorf("expected %q in message", want)
		}
	}
}

func TestMailer_Recipient(t *testing.T) {
	m, _ := testMailer(t)
	if m.Recipient("dean@example.com") != "dean@example.com" {
		t.Error("explicit recipient should win")
	}
	m.cfg.To = ""
	if _, err := m.Message("", "2025-03-14", records); err == nil {
		t.Error("expected error without any recipient")
	}
	if _, err := m.Message("not an address", "2025-03-14", records); err == nil {
		t.Error("expected error for invalid recipient")
	}
}

func TestMailer_Send(t *testing.T) {
	m, s := testMailer(t)
	if err := m.Send(context.Background(), "", "2025-03-14", records); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if len(s.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(s.sent))
	}

	s.err = errors.New("535 authentication failed")
	if err := m.Send(context.Background(), "", "2025-03-14", records); err == nil {
		t.Error("expected send error")
	}
}
