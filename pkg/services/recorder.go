package services

import (
	"context"
	"time"

	"VoiceAssistant/models"
	"VoiceAssistant/pkg/logging"
)

// recordTimeout bounds one append attempt. The attempt outlives a client that
// hangs up but not forever.
const recordTimeout = 10 * time.Second

type ExchangeAppender interface {
	AppendExchange(ctx context.Context, ex Exchange) (*models.Conversation, error)
}

// Outbox accepts exchanges whose append failed so they can be retried later.
type Outbox interface {
	EnqueueAppend(ctx context.Context, ex Exchange) error
}

// Recorder persists exchanges on a best-effort basis: the caller already has
// its reply and must get it even when the database is down.
type Recorder struct {
	store  ExchangeAppender
	outbox Outbox
	log    logging.Logger
}

// NewRecorder builds a recorder. outbox may be nil.
func NewRecorder(store ExchangeAppender, outbox Outbox, log logging.Logger) *Recorder {
	return &Recorder{store: store, outbox: outbox, log: log}
}

// Record appends the exchange and reports whether it was stored. Failures are
// logged and, with an outbox configured, queued for retry. They never reach
// the caller.
func (r *Recorder) Record(ctx context.Context, userID uint, inbound, reply string) bool {
	log := logging.FromContext(ctx, r.log)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	ex := Exchange{UserID: userID, Inbound: inbound, Reply: reply}
	if _, err := r.store.AppendExchange(ctx, ex); err != nil {
		log.Error(ctx, "failed to record exchange", "user_id", userID, "error", err)
		if r.outbox != nil {
			if qerr := r.outbox.EnqueueAppend(ctx, ex); qerr != nil {
				log.Error(ctx, "failed to enqueue exchange for retry", "user_id", userID, "error", qerr)
			} else {
				log.Warn(ctx, "exchange queued for retry", "user_id", userID)
			}
		}
		return false
	}
	return true
}
