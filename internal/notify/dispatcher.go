package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Abdul07in/supplychainx/internal/events"
	"github.com/google/uuid"
)

// Submitter accepts notices for asynchronous delivery. *Pool implements it.
type Submitter interface {
	Submit(ctx context.Context, n Notice) error
}

// Dispatcher listens to the bus and hands a notice for each qualifying event
// to the delivery queue. It only reads event payloads; it never touches the
// record store or publishes.
type Dispatcher struct {
	recipients Recipients
	queue      Submitter
	logger     *slog.Logger
}

func NewDispatcher(queue Submitter, recipients Recipients, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		recipients: recipients.Merge(DefaultRecipients()),
		queue:      queue,
		logger:     logger,
	}
}

// Register subscribes the dispatcher to every kind that produces a notice.
func (d *Dispatcher) Register(r events.Registrar) error {
	for _, kind := range NoticeKinds {
		if _, err := r.Subscribe(kind, "notifier", d.handle); err != nil {
			return fmt.Errorf("registering notifier: %w", err)
		}
	}
	return nil
}

func (d *Dispatcher) handle(ctx context.Context, e events.Event) error {
	n, ok := d.recipients.Compose(e)
	if !ok {
		d.logger.Debug("no notice for event", "kind", e.Kind)
		return nil
	}
	n.ID = uuid.NewString()

	if err := d.queue.Submit(ctx, n); err != nil {
		d.logger.Error("failed to queue notice",
			"notice_id", n.ID,
			"kind", n.Kind,
			"recipient", n.To,
			"error", err,
		)
	}
	return nil
}
