package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"moff.io/moff-connect/pkg/errors"
	"moff.io/moff-connect/pkg/log"
)

// Attribute sqs string message attribute
func Attribute(value string) types.MessageAttributeValue {
	return types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(value)}
}

func (s *Clients) SendMessageToSQS(ctx context.Context, queueUrl, message string, attributes map[string]types.MessageAttributeValue) error {
	_, err := s.sqsClient.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(queueUrl),
		MessageBody:       aws.String(message),
		MessageAttributes: attributes,
	})
	return errors.WrapfAndReport(err, "send sqs message to %s", queueUrl)
}

func (s *Clients) MultiTrySendMessageToSQS(ctx context.Context, queueUrl, message string, attributes map[string]types.MessageAttributeValue, maxTry int) error {
	for i := 0; i < maxTry; i++ {
		err := s.SendMessageToSQS(ctx, queueUrl, message, attributes)
		if err == nil {
			return nil
		}
		log.Error(err)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return errors.ErrorfAndReport("send sqs message to %s max try exceeded", queueUrl)
}
