// Package report formats attendance records as CSV and mails them.
package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/wneessen/go-mail"

	"github.com/kozaktomas/attendance-scanner/internal/config"
	"github.com/kozaktomas/attendance-scanner/internal/ledger"
)

// WriteCSV writes the header row followed by one row per record.
func WriteCSV(w io.Writer, records []ledger.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ledger.Header); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(r.Row()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Subject is the mail subject for a report of the given sheet or tab.
func Subject(source string) string {
	return "Attendance Report -- " + source
}

type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Mailer sends attendance reports over an authenticated SMTP relay.
type Mailer struct {
	cfg    config.MailConfig
	source string
	client sender
}

// NewMailer creates a mailer. source names the attendance sheet in the subject.
func NewMailer(cfg config.MailConfig, source string) (*Mailer, error) {
	if !cfg.Configured() {
		return nil, errors.New("mail is not configured: set SMTP_SERVER, SMTP_USER and SMTP_PASS")
	}
	client, err := mail.NewClient(cfg.Server,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.User),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}
	return &Mailer{cfg: cfg, source: source, client: client}, nil
}

// Recipient returns to, or the configured default when to is empty.
func (m *Mailer) Recipient(to string) string {
	if to != "" {
		return to
	}
	return m.cfg.To
}

// Message builds the report mail. The CSV is both the body and an attachment.
func (m *Mailer) Message(to, date string, records []ledger.Record) (*mail.Msg, error) {
	to = m.Recipient(to)
	if to == "" {
		return nil, errors.New("no recipient: pass one or set TO_EMAIL")
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, records); err != nil {
		return nil, fmt.Errorf("failed to format report: %w", err)
	}

	msg := mail.NewMsg()
	if err := msg.From(m.cfg.User); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", m.cfg.User, err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	msg.Subject(Subject(m.source))
	msg.SetBodyString(mail.TypeTextPlain, buf.String())
	if err := msg.AttachReader(fmt.Sprintf("attendance_%s.csv", date), bytes.NewReader(buf.Bytes())); err != nil {
		return nil, fmt.Errorf("failed to attach report: %w", err)
	}
	return msg, nil
}

// Send mails the records of date to the recipient.
func (m *Mailer) Send(ctx context.Context, to, date string, records []ledger.Record) error {
	msg, err := m.Message(to, date, records)
	if err != nil {
		return err
	}
	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send attendance report: %w", err)
	}
	return nil
}
