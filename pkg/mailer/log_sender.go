package mailer

import (
	"context"
	"errors"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// LogSender records messages instead of delivering them. Used when no SMTP
// relay is configured.
type LogSender struct {
	logg *logger.Logger
}

func NewLogSender(logg *logger.Logger) *LogSender {
	return &LogSender{logg: logg}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return errors.New("at least one recipient is required")
	}
	if s.logg == nil {
		return nil
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"to":          strings.Join(msg.To, ","),
		"subject":     msg.Subject,
		"attachments": len(msg.Attachments),
	}), "email not sent: smtp disabled")
	return nil
}
