package notify

import (
	"context"
	"log/slog"
)

// Sender hands a notice to an outbound transport.
type Sender interface {
	Send(ctx context.Context, n Notice) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, n Notice) error

func (f SenderFunc) Send(ctx context.Context, n Notice) error { return f(ctx, n) }

// LogSender writes notices to the log instead of a mail gateway. It is the
// default transport when no webhook is configured.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, n Notice) error {
	s.logger.Info("sending email",
		"notice_id", n.ID,
		"kind", n.Kind,
		"to", n.To,
		"subject", n.Subject,
		"body", n.Body,
	)
	return nil
}
