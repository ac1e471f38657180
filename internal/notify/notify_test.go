package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSES struct {
	inputs []*sesv2.SendEmailInput
	err    error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.inputs = append(f.inputs, in)
	return &sesv2.SendEmailOutput{}, f.err
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	n := NewLogNotifier(zap.New(core))

	err := n.Notify(context.Background(), Event{Kind: AccessRequested, BidID: 3, BidNumber: "40002", UserID: "u1"})
	require.NoError(t, err)
	require.Equal(t, 1, logs.Len())
	require.Equal(t, "access_requested", logs.All()[0].ContextMap()["kind"])
}

func TestSESNotifierUsesRecipientOrDefault(t *testing.T) {
	fake := &fakeSES{}
	n := &SESNotifier{client: fake, fromEmail: "bids@example.com", toEmail: "approvers@example.com"}

	require.NoError(t, n.Notify(context.Background(), Event{Kind: AccessGranted, BidNumber: "40001"}))
	require.NoError(t, n.Notify(context.Background(), Event{Kind: LinkExpiring, BidNumber: "40001", Recipient: "panel@example.com", ExpiresAt: time.Now()}))

	require.Len(t, fake.inputs, 2)
	require.Equal(t, []string{"approvers@example.com"}, fake.inputs[0].Destination.ToAddresses)
	require.Equal(t, "bids@example.com", aws.ToString(fake.inputs[0].FromEmailAddress))
	require.Equal(t, "Access granted to bid 40001", aws.ToString(fake.inputs[0].Content.Simple.Subject.Data))
	require.Equal(t, []string{"panel@example.com"}, fake.inputs[1].Destination.ToAddresses)
}

func TestSESNotifierErrors(t *testing.T) {
	n := &SESNotifier{client: &fakeSES{}, fromEmail: "bids@example.com"}
	require.Error(t, n.Notify(context.Background(), Event{Kind: AccessRequested}))

	n = &SESNotifier{client: &fakeSES{err: errors.New("throttled")}, fromEmail: "a@b.c", toEmail: "x@y.z"}
	err := n.Notify(context.Background(), Event{Kind: AccessRequested})
	require.ErrorContains(t, err, "throttled")
}
