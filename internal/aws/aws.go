package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"moff.io/moff-connect/pkg/errors"
)

// SQSAPI the part of the sqs client used here.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type Clients struct {
	region    string
	sqsClient SQSAPI
}

// Init loads the default aws config for region. Static credentials are used
// when key and secret are both set, the default chain otherwise.
func Init(ctx context.Context, region, key, secret string) (*Clients, error) {
	if region == "" {
		return nil, errors.New("aws region not present")
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if key != "" && secret != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(key, secret, "")))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.WrapAndReport(err, "load aws sdk config")
	}
	return NewClients(region, sqs.NewFromConfig(cfg)), nil
}

func NewClients(region string, sqsClient SQSAPI) *Clients {
	return &Clients{region: region, sqsClient: sqsClient}
}

func (s *Clients) Region() string {
	return s.region
}
