package databus

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"moff.io/moff-connect/internal/aws"
)

const sqsMaxTry = 3

// SQSBus publishes events to a single sqs queue, the topic travels as a message attribute.
type SQSBus struct {
	clients  *aws.Clients
	queueURL string
}

func NewSQSBus(clients *aws.Clients, queueURL string) *SQSBus {
	return &SQSBus{clients: clients, queueURL: queueURL}
}

func (b *SQSBus) Publish(ctx context.Context, e Event) error {
	raw := e.Serialize()
	if len(raw) == 0 {
		return nil
	}
	attributes := map[string]types.MessageAttributeValue{"topic": aws.Attribute(e.Topic())}
	return b.clients.MultiTrySendMessageToSQS(ctx, b.queueURL, string(raw), attributes, sqsMaxTry)
}
