package mailer

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

func TestBuildPlainMessage(t *testing.T) {
	raw, err := Build("shop@example.com", Message{
		To:       []string{"jan@example.com"},
		FromName: "Phone Repair",
		Subject:  "Bestelling ND-1",
		HTMLBody: "<p>Hallo</p>",
	}, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	require.NoError(t, err)

	out := string(raw)
	assert.Contains(t, out, "To: jan@example.com\r\n")
	assert.Contains(t, out, "From: Phone Repair <shop@example.com>\r\n")
	assert.Contains(t, out, `Content-Type: text/html; charset="UTF-8"`)
	assert.NotContains(t, out, "multipart/mixed")
}

func TestBuildWithAttachment(t *testing.T) {
	raw, err := Build("shop@example.com", Message{
		To:       []string{"jan@example.com"},
		Subject:  "Factuur",
		HTMLBody: "<p>Factuur</p>",
		Attachments: []Attachment{
			{Filename: "factuur-ND-1.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4")},
		},
	}, time.Now())
	require.NoError(t, err)

	out := string(raw)
	assert.Contains(t, out, "multipart/mixed; boundary=")
	assert.Contains(t, out, `attachment; filename="factuur-ND-1.pdf"`)
	assert.Contains(t, out, "JVBERi0xLjQ=")
}

func TestSMTPSenderUsesRelay(t *testing.T) {
	sender, err := NewSMTP(config.MailConfig{Host: "smtp.example.com", Port: 2525, From: "shop@example.com"})
	require.NoError(t, err)

	var gotAddr string
	var gotTo []string
	sender.send = func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotTo = to
		if auth != nil {
			return errors.New("unexpected auth without username")
		}
		return nil
	}

	err = sender.Send(context.Background(), Message{To: []string{"jan@example.com"}, Subject: "Hi", HTMLBody: "x"})
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com:2525", gotAddr)
	assert.Equal(t, []string{"jan@example.com"}, gotTo)

	err = sender.Send(context.Background(), Message{})
	assert.Error(t, err)
}

func TestNewSMTPRequiresHost(t *testing.T) {
	_, err := NewSMTP(config.MailConfig{From: "shop@example.com"})
	assert.Error(t, err)
}

func TestRenderTemplates(t *testing.T) {
	body, err := Render(TemplateOrderStatus, map[string]any{
		"ShopName":       "Phone Repair",
		"CustomerName":   "Jan",
		"Headline":       "Je bestelling is verzonden.",
		"OrderNumber":    "ND-1",
		"TrackingNumber": "323299",
		"TrackingURL":    "https://track.example/323299",
	})
	require.NoError(t, err)
	assert.True(t, strings.Contains(body, `<a href="https://track.example/323299">323299</a>`))

	_, err = Render("missing", nil)
	assert.Error(t, err)
}

func TestLogSenderRequiresRecipient(t *testing.T) {
	s := NewLogSender(nil)
	if err := s.Send(context.Background(), Message{Subject: "hi"}); err == nil {
		t.Fatal("expected error without recipients")
	}
	if err := s.Send(context.Background(), Message{To: []string{"jan@example.com"}, Subject: "hi"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
