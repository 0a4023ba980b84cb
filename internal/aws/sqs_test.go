package aws

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pkgerrors "moff.io/moff-connect/pkg/errors"
)

type fakeSQS struct {
	fail   int
	inputs []*sqs.SendMessageInput
}

func (f *fakeSQS) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.fail > 0 {
		f.fail--
		return nil, pkgerrors.New("throttled")
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func TestSendMessageToSQS(t *testing.T) {
	t.Setenv("DEBUG", "1")
	api := &fakeSQS{}
	c := NewClients("ap-southeast-1", api)

	err := c.SendMessageToSQS(context.Background(), "https://sqs/queue", `{"type":"connected"}`,
		map[string]types.MessageAttributeValue{"topic": Attribute("wallet-session-events")})
	require.NoError(t, err)
	require.Len(t, api.inputs, 1)
	assert.Equal(t, "https://sqs/queue", *api.inputs[0].QueueUrl)
	assert.Equal(t, `{"type":"connected"}`, *api.inputs[0].MessageBody)
	assert.Equal(t, "wallet-session-events", *api.inputs[0].MessageAttributes["topic"].StringValue)
}

func TestMultiTrySendMessageToSQS(t *testing.T) {
	t.Setenv("DEBUG", "1")
	api := &fakeSQS{fail: 2}
	c := NewClients("ap-southeast-1", api)

	require.NoError(t, c.MultiTrySendMessageToSQS(context.Background(), "q", "m", nil, 3))
	assert.Len(t, api.inputs, 3)

	api = &fakeSQS{fail: 5}
	c = NewClients("ap-southeast-1", api)
	assert.Error(t, c.MultiTrySendMessageToSQS(context.Background(), "q", "m", nil, 2))
	assert.Len(t, api.inputs, 2)
}

func TestInitRequiresRegion(t *testing.T) {
	_, err := Init(context.Background(), "", "", "")
	assert.Error(t, err)
}
