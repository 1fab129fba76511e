// internal/common/aws/ses.go
package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

type SESClient struct {
	client *ses.Client
	from   string
}

// NewSESClient builds an SES client that sends from the given address.
func NewSESClient(ctx context.Context, region, from string) (*SESClient, error) {
	cfg, err := loadConfig(ctx, region)
	if err != nil {
		return nil, err
	}
	return &SESClient{client: ses.NewFromConfig(cfg), from: from}, nil
}

func (s *SESClient) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	if params.Source == nil && s.from != "" {
		params.Source = aws.String(s.from)
	}
	return s.client.SendEmail(ctx, params, optFns...)
}

// EmailInput builds a single-recipient message with text and HTML bodies.
func EmailInput(from, to, subject, text, html string) *ses.SendEmailInput {
	body := &types.Body{Text: &types.Content{Data: aws.String(text), Charset: aws.String("UTF-8")}}
	if html != "" {
		body.Html = &types.Content{Data: aws.String(html), Charset: aws.String("UTF-8")}
	}

	input := &ses.SendEmailInput{
		Destination: &types.Destination{ToAddresses: []string{to}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body:    body,
		},
	}
	if from != "" {
		input.Source = aws.String(from)
	}
	return input
}
