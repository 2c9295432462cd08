package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"federation/sso"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	return m.Called(ctx, msgs).Error(0)
}

func (m *mockWriter) Close() error {
	return m.Called().Error(0)
}

func testConfig() *Config {
	c := NewDefaultConfig()
	c.Async = false
	c.MaxRetries = 2
	c.RetryBackoff = time.Millisecond
	return c
}

func TestLoginPublisher(t *testing.T) {
	w := &mockWriter{}
	var sent []kafka.Message
	w.On("WriteMessages", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		sent = args.Get(1).([]kafka.Message)
	}).Return(nil).Once()

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	pub := NewLoginPublisher(newProducer(w, testConfig()))
	err := pub.PublishLogin(context.Background(), sso.LoginEvent{
		Provider:   "saeon",
		ProviderID: 3,
		IdentityID: "a@example.org",
		Username:   "alice",
		TokenType:  "Bearer",
		At:         at,
	})
	require.NoError(t, err)
	require.Len(t, sent, 1)

	msg := sent[0]
	assert.Equal(t, "3:a@example.org", string(msg.Key))
	assert.Equal(t, at, msg.Time)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.NotEmpty(t, decoded["event_id"])
	assert.Equal(t, "saeon", decoded["provider"])
	assert.Equal(t, float64(3), decoded["provider_id"])
	assert.Equal(t, "alice", decoded["username"])
	assert.NotContains(t, decoded, "missing_fields")
	w.AssertExpectations(t)
}

func TestProducer_Retries(t *testing.T) {
	w := &mockWriter{}
	w.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("leader not available")).Twice()
	w.On("WriteMessages", mock.Anything, mock.Anything).Return(nil).Once()

	p := newProducer(w, testConfig())
	require.NoError(t, p.Produce(context.Background(), kafka.Message{Value: []byte("x")}))
	w.AssertNumberOfCalls(t, "WriteMessages", 3)
}

func TestProducer_GivesUp(t *testing.T) {
	w := &mockWriter{}
	w.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	p := newProducer(w, testConfig())
	err := p.Produce(context.Background(), kafka.Message{Value: []byte("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	w.AssertNumberOfCalls(t, "WriteMessages", 3)
}

func TestProducer_ContextCancelled(t *testing.T) {
	w := &mockWriter{}
	w.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	cfg := testConfig()
	cfg.RetryBackoff = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newProducer(w, cfg).Produce(ctx, kafka.Message{Value: []byte("x")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProducer_AsyncWritesOnce(t *testing.T) {
	w := &mockWriter{}
	w.On("WriteMessages", mock.Anything, mock.Anything).Return(nil).Once()

	cfg := testConfig()
	cfg.Async = true
	require.NoError(t, newProducer(w, cfg).Produce(context.Background(), kafka.Message{Value: []byte("x")}))
	w.AssertNumberOfCalls(t, "WriteMessages", 1)
}

func TestNewDefaultConfig_DoesNotBlockLogins(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.True(t, cfg.Async)
	assert.Equal(t, 10*time.Millisecond, cfg.BatchTimeout)

	p := NewProducer(cfg)
	defer p.Close()
	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.True(t, w.Async)
	assert.Equal(t, cfg.BatchTimeout, w.BatchTimeout)
}

func TestEnsureTopic_NoBrokers(t *testing.T) {
	assert.Error(t, EnsureTopic(context.Background(), &Config{}))
}
