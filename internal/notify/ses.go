package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

type sesAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESNotifier отправляет уведомления письмом через AWS SES v2
type SESNotifier struct {
	client    sesAPI
	fromEmail string
	toEmail   string
}

func NewSESNotifier(cfg aws.Config, fromEmail, toEmail string) *SESNotifier {
	return &SESNotifier{
		client:    sesv2.NewFromConfig(cfg),
		fromEmail: fromEmail,
		toEmail:   toEmail,
	}
}

func (n *SESNotifier) Notify(ctx context.Context, ev Event) error {
	to := ev.Recipient
	if to == "" {
		to = n.toEmail
	}
	if to == "" {
		return fmt.Errorf("no recipient for %s notification", ev.Kind)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(n.fromEmail),
		Destination:      &sestypes.Destination{ToAddresses: []string{to}},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(ev.Subject())},
				Body:    &sestypes.Body{Text: &sestypes.Content{Data: aws.String(ev.Body())}},
			},
		},
	}
	if _, err := n.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
