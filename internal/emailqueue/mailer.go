// Package emailqueue holds the outbound email log: the core enqueues rows,
// a periodic drain sends them through the Mailer. Sending failures stay on
// the row; the queue never blocks the paths that feed it.
package emailqueue

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	appconfig "github.com/ignite/contact-core/internal/config"
)

// SendResult reports one delivery attempt.
type SendResult struct {
	Success   bool
	MessageID string
}

// Mailer is the narrow sending dependency of the drain.
type Mailer interface {
	Send(ctx context.Context, to, subject, html, text string) (SendResult, error)
}

// SESMailer sends through AWS SES v2.
type SESMailer struct {
	client *sesv2.Client
	sender string
}

// NewSESMailer builds the SES client from static credentials.
func NewSESMailer(ctx context.Context, cfg appconfig.MailerConfig) (*SESMailer, error) {
	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &SESMailer{
		client: sesv2.NewFromConfig(awsCfg),
		sender: cfg.DefaultSender,
	}, nil
}

// Send delivers one email. HTML and text parts are both optional but at
// least one must be present.
func (m *SESMailer) Send(ctx context.Context, to, subject, html, text string) (SendResult, error) {
	if html == "" && text == "" {
		return SendResult{}, fmt.Errorf("email to %s has no body", to)
	}

	body := &types.Body{}
	if html != "" {
		body.Html = &types.Content{Data: aws.String(html)}
	}
	if text != "" {
		body.Text = &types.Content{Data: aws.String(text)}
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(m.sender),
		Destination:      &types.Destination{ToAddresses: []string{to}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject)},
				Body:    body,
			},
		},
	}

	out, err := m.client.SendEmail(ctx, input)
	if err != nil {
		return SendResult{}, fmt.Errorf("ses send to %s: %w", to, err)
	}

	res := SendResult{Success: true}
	if out.MessageId != nil {
		res.MessageID = *out.MessageId
	}
	return res, nil
}
