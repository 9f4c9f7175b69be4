// internal/common/mail/sns.go
package mail

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"freshtrack/internal/common/config"
)

// SNSAPI is the subset of the SNS client used for SMS delivery.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSSender delivers SMS messages through Amazon SNS.
type SNSSender struct {
	client   SNSAPI
	senderID string
}

func NewSNSSender(ctx context.Context, cfg config.MailConfig) (*SNSSender, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.SNS.Region))
	if err != nil {
		return nil, err
	}
	return &SNSSender{
		client:   sns.NewFromConfig(awsCfg),
		senderID: cfg.SNS.DefaultSMSSenderID,
	}, nil
}

// NewSNSSenderWithClient wires an explicit client, used in tests.
func NewSNSSenderWithClient(client SNSAPI, senderID string) *SNSSender {
	return &SNSSender{client: client, senderID: senderID}
}

func (s *SNSSender) Send(ctx context.Context, phone, message string) error {
	input := &sns.PublishInput{
		PhoneNumber: aws.String(phone),
		Message:     aws.String(message),
	}
	if s.senderID != "" {
		input.MessageAttributes = map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(s.senderID),
			},
		}
	}
	_, err := s.client.Publish(ctx, input)
	return err
}
