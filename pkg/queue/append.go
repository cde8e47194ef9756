package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"VoiceAssistant/pkg/logging"
	"VoiceAssistant/pkg/services"
)

// AppendTaskType retries a conversation append that failed inline.
const AppendTaskType = "conversation:append"

const appendTaskTimeout = 10 * time.Second

// AppendPayload is the JSON body of an AppendTaskType task.
type AppendPayload struct {
	UserID  uint   `json:"user_id"`
	Inbound string `json:"inbound"`
	Reply   string `json:"reply"`
}

func NewAppendTask(ex services.Exchange) (Task, error) {
	b, err := json.Marshal(AppendPayload{UserID: ex.UserID, Inbound: ex.Inbound, Reply: ex.Reply})
	if err != nil {
		return Task{}, fmt.Errorf("encode append payload: %w", err)
	}
	return Task{Type: AppendTaskType, Payload: b}, nil
}

// Outbox enqueues failed appends. It satisfies services.Outbox.
type Outbox struct {
	client   Client
	maxRetry int
}

var _ services.Outbox = (*Outbox)(nil)

func NewOutbox(client Client, maxRetry int) *Outbox {
	return &Outbox{client: client, maxRetry: maxRetry}
}

func (o *Outbox) EnqueueAppend(ctx context.Context, ex services.Exchange) error {
	task, err := NewAppendTask(ex)
	if err != nil {
		return err
	}
	_, err = o.client.Enqueue(ctx, task, EnqueueOption{MaxRetry: o.maxRetry, Timeout: appendTaskTimeout})
	return err
}

// RegisterAppendTask binds the append handler to srv. Each delivery runs the
// same append workflow as the inline path, so a success means both messages
// landed together.
func RegisterAppendTask(srv Server, store services.ExchangeAppender, log logging.Logger) {
	srv.Register(AppendTaskType, appendHandler(store, log))
}

func appendHandler(store services.ExchangeAppender, log logging.Logger) Handler {
	return func(ctx context.Context, t Task) error {
		var p AppendPayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			return fmt.Errorf("decode append payload: %v: %w", err, ErrSkipRetry)
		}
		if p.UserID == 0 {
			return fmt.Errorf("append payload has no user: %w", ErrSkipRetry)
		}

		ctx, cancel := context.WithTimeout(ctx, appendTaskTimeout)
		defer cancel()

		conv, err := store.AppendExchange(ctx, services.Exchange{UserID: p.UserID, Inbound: p.Inbound, Reply: p.Reply})
		if err != nil {
			return err
		}
		log.Info(ctx, "queued exchange saved", "conversation_id", conv.ID, "user_id", p.UserID)
		return nil
	}
}
