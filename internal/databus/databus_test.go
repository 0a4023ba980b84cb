package databus

import (
	"context"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/Shopify/sarama.v1"
	"moff.io/moff-connect/internal/aws"
	"moff.io/moff-connect/pkg/errors"
)

type testEvent struct {
	key, payload string
}

func (e testEvent) Serialize() []byte { return []byte(e.payload) }
func (e testEvent) Topic() string     { return "wallet-session-events" }
func (e testEvent) Key() string       { return e.key }

type fakeProducer struct {
	mu   sync.Mutex
	msgs []*sarama.ProducerMessage
	err  error
}

func (p *fakeProducer) SendMessage(msg *sarama.ProducerMessage) (int32, int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return 0, 0, p.err
	}
	p.msgs = append(p.msgs, msg)
	return 0, int64(len(p.msgs)), nil
}

func (p *fakeProducer) SendMessages(msgs []*sarama.ProducerMessage) error {
	for _, m := range msgs {
		if _, _, err := p.SendMessage(m); err != nil {
			return err
		}
	}
	return nil
}

func (p *fakeProducer) Close() error { return nil }

func TestKafkaPublish(t *testing.T) {
	p := &fakeProducer{}
	bus := NewDataBus(p)

	require.NoError(t, bus.Publish(context.Background(), testEvent{key: "argentX", payload: `{"type":"connected"}`}))
	require.NoError(t, bus.Publish(context.Background(), testEvent{payload: ""}))
	require.Len(t, p.msgs, 1)

	msg := p.msgs[0]
	assert.Equal(t, "wallet-session-events", msg.Topic)
	key, err := msg.Key.Encode()
	require.NoError(t, err)
	assert.Equal(t, "argentX", string(key))
	value, err := msg.Value.Encode()
	require.NoError(t, err)
	assert.Equal(t, `{"type":"connected"}`, string(value))
	assert.NoError(t, bus.Close())
}

func TestKafkaPublishError(t *testing.T) {
	t.Setenv("DEBUG", "1")
	bus := NewDataBus(&fakeProducer{err: sarama.ErrOutOfBrokers})
	err := bus.Publish(context.Background(), testEvent{payload: "x"})
	assert.True(t, errors.Is(err, sarama.ErrOutOfBrokers))
}

type fakeSQS struct {
	inputs []*sqs.SendMessageInput
}

func (f *fakeSQS) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.inputs = append(f.inputs, params)
	return &sqs.SendMessageOutput{}, nil
}

func TestSQSPublish(t *testing.T) {
	api := &fakeSQS{}
	bus := NewSQSBus(aws.NewClients("ap-southeast-1", api), "https://sqs/events")

	require.NoError(t, bus.Publish(context.Background(), testEvent{payload: `{"type":"disconnected"}`}))
	require.Len(t, api.inputs, 1)
	assert.Equal(t, `{"type":"disconnected"}`, *api.inputs[0].MessageBody)
	assert.Equal(t, "wallet-session-events", *api.inputs[0].MessageAttributes["topic"].StringValue)
}

func TestLocalBus(t *testing.T) {
	assert.NoError(t, LocalBus{}.Publish(context.Background(), testEvent{payload: "x"}))
}
