package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/mailersend/mailersend-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, body []byte) error {
	args := m.Called(ctx, body)
	return args.Error(0)
}

func sampleConfirmation() Confirmation {
	return Confirmation{
		Recipient:     "asha@example.com",
		RecipientName: "Asha",
		ReservationID: 11,
		SpotID:        3,
		VehicleNumber: "WB02AB1234",
		LotName:       "City Center",
		ScheduledTime: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		Code:          "signed-code",
	}
}

func TestQueueNotifierPublishesJSON(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(body []byte) bool {
		var c Confirmation
		return json.Unmarshal(body, &c) == nil && c.ReservationID == 11 && c.MessageID != ""
	})).Return(nil).Once()

	ok, msg := NewQueueNotifier(pub, zap.NewNop()).SendConfirmation(context.Background(), sampleConfirmation())

	assert.True(t, ok)
	assert.Equal(t, "confirmation queued", msg)
	pub.AssertExpectations(t)
}

func TestQueueNotifierReportsPublishFailure(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	ok, msg := NewQueueNotifier(pub, zap.NewNop()).SendConfirmation(context.Background(), sampleConfirmation())

	assert.False(t, ok)
	assert.Equal(t, "confirmation could not be queued", msg)
}

type fakeEmail struct {
	sent int
	err  error
}

func (f *fakeEmail) NewMessage() *mailersend.Message { return &mailersend.Message{} }

func (f *fakeEmail) Send(context.Context, *mailersend.Message) (*mailersend.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent++
	return nil, nil
}

func TestMailerSendNotifier(t *testing.T) {
	email := &fakeEmail{}
	n := &MailerSendNotifier{client: email, fromEmail: "noreply@parkease.test", fromName: "ParkEase", log: zap.NewNop()}

	ok, _ := n.SendConfirmation(context.Background(), sampleConfirmation())
	assert.True(t, ok)
	assert.Equal(t, 1, email.sent)

	email.err = errors.New("401")
	ok, msg := n.SendConfirmation(context.Background(), sampleConfirmation())
	assert.False(t, ok)
	assert.Equal(t, "confirmation email could not be sent", msg)

	c := sampleConfirmation()
	c.Recipient = ""
	ok, _ = n.SendConfirmation(context.Background(), c)
	assert.False(t, ok)
}

func TestDeliverTurnsFailureIntoError(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("nope"))

	err := Deliver(NewQueueNotifier(pub, zap.NewNop()))(context.Background(), sampleConfirmation())
	assert.Error(t, err)
}

type fakeSQS struct {
	mu       sync.Mutex
	batches  [][]types.Message
	deleted  []string
	onDrain  func()
}

func (f *fakeSQS) SendMessage(context.Context, *sqs.SendMessageInput, ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	return &sqs.SendMessageOutput{}, nil
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, _ *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.batches) == 0 {
		f.onDrain()
		return &sqs.ReceiveMessageOutput{}, ctx.Err()
	}
	b := f.batches[0]
	f.batches = f.batches[1:]
	return &sqs.ReceiveMessageOutput{Messages: b}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func TestSQSConsumerDeletesHandledMessages(t *testing.T) {
	good, _ := json.Marshal(sampleConfirmation())
	failing := sampleConfirmation()
	failing.ReservationID = 99
	bad, _ := json.Marshal(failing)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := &fakeSQS{
		batches: [][]types.Message{{
			{Body: aws.String(string(good)), ReceiptHandle: aws.String("r-good"), MessageId: aws.String("1")},
			{Body: aws.String(string(bad)), ReceiptHandle: aws.String("r-fail"), MessageId: aws.String("2")},
			{Body: aws.String("{not json"), ReceiptHandle: aws.String("r-garbage"), MessageId: aws.String("3")},
		}},
		onDrain: cancel,
	}

	var handled []int
	handle := func(_ context.Context, c Confirmation) error {
		handled = append(handled, c.ReservationID)
		if c.ReservationID == 99 {
			return errors.New("mail provider down")
		}
		return nil
	}

	consumer := &SQSConsumer{client: client, queueURL: "q", handle: handle, log: zap.NewNop(), retryDelay: time.Millisecond}
	consumer.Start(ctx)

	require.Equal(t, []int{11, 99}, handled)
	assert.ElementsMatch(t, []string{"r-good", "r-garbage"}, client.deleted)
}
