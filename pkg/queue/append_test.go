package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VoiceAssistant/models"
	"VoiceAssistant/pkg/database"
	"VoiceAssistant/pkg/logging"
	"VoiceAssistant/pkg/services"
)

type recordingClient struct {
	tasks []Task
	opts  []EnqueueOption
	err   error
}

func (c *recordingClient) Enqueue(_ context.Context, t Task, opts ...EnqueueOption) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	c.tasks = append(c.tasks, t)
	c.opts = append(c.opts, opts...)
	return "task-1", nil
}

func (c *recordingClient) Close() error { return nil }

type inlineServer struct {
	handlers map[string]Handler
}

func (s *inlineServer) Register(taskType string, h Handler) {
	if s.handlers == nil {
		s.handlers = map[string]Handler{}
	}
	s.handlers[taskType] = h
}

func (s *inlineServer) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func TestOutboxEnqueuesAppendTask(t *testing.T) {
	client := &recordingClient{}
	outbox := NewOutbox(client, 5)

	ex := services.Exchange{UserID: 3, Inbound: "hola", Reply: "¡Hola!"}
	require.NoError(t, outbox.EnqueueAppend(context.Background(), ex))

	require.Len(t, client.tasks, 1)
	assert.Equal(t, AppendTaskType, client.tasks[0].Type)
	assert.JSONEq(t, `{"user_id":3,"inbound":"hola","reply":"¡Hola!"}`, string(client.tasks[0].Payload))
	require.Len(t, client.opts, 1)
	assert.Equal(t, 5, client.opts[0].MaxRetry)
}

func TestOutboxPropagatesEnqueueError(t *testing.T) {
	outbox := NewOutbox(&recordingClient{err: errors.New("redis down")}, 5)
	assert.Error(t, outbox.EnqueueAppend(context.Background(), services.Exchange{UserID: 1}))
}

func TestAppendTaskStoresExchange(t *testing.T) {
	db := database.OpenTest(t)
	user := &models.User{Username: "ana", IsActive: true}
	require.NoError(t, user.SetPassword("secret1"))
	require.NoError(t, db.Create(user).Error)

	store := services.NewConversationService(db, logging.Discard())
	srv := &inlineServer{}
	RegisterAppendTask(srv, store, logging.Discard())

	task, err := NewAppendTask(services.Exchange{UserID: user.ID, Inbound: "hola", Reply: "¡Hola!"})
	require.NoError(t, err)
	require.NoError(t, srv.handlers[AppendTaskType](context.Background(), task))

	var msgs []models.Message
	require.NoError(t, db.Order("message_id").Find(&msgs).Error)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
}

func TestAppendTaskRejectsBadPayload(t *testing.T) {
	h := appendHandler(nil, logging.Discard())

	err := h(context.Background(), Task{Type: AppendTaskType, Payload: []byte("{not json")})
	assert.ErrorIs(t, err, ErrSkipRetry)

	empty, _ := json.Marshal(AppendPayload{Inbound: "x"})
	err = h(context.Background(), Task{Type: AppendTaskType, Payload: empty})
	assert.ErrorIs(t, err, ErrSkipRetry)
}
