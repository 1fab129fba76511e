// internal/common/aws/sns.go
package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

type SNSClient struct {
	client   *sns.Client
	senderID string
}

// NewSNSClient builds an SNS client for direct SMS. senderID is optional.
func NewSNSClient(ctx context.Context, region, senderID string) (*SNSClient, error) {
	cfg, err := loadConfig(ctx, region)
	if err != nil {
		return nil, err
	}
	return &SNSClient{client: sns.NewFromConfig(cfg), senderID: senderID}, nil
}

func (s *SNSClient) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	if s.senderID != "" && params.PhoneNumber != nil {
		if params.MessageAttributes == nil {
			params.MessageAttributes = map[string]types.MessageAttributeValue{}
		}
		if _, ok := params.MessageAttributes["AWS.SNS.SMS.SenderID"]; !ok {
			params.MessageAttributes["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
				DataType:    aws.String("String"),
				StringValue: aws.String(s.senderID),
			}
		}
	}
	return s.client.Publish(ctx, params, optFns...)
}

// SMSInput builds a transactional text message.
func SMSInput(phone, message string) *sns.PublishInput {
	return &sns.PublishInput{
		PhoneNumber: aws.String(phone),
		Message:     aws.String(message),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {
				DataType:    aws.String("String"),
				StringValue: aws.String("Transactional"),
			},
		},
	}
}
