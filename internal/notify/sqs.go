package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"
)

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type SQSPublisher struct {
	client   sqsAPI
	queueURL string
}

func NewSQSPublisher(client *sqs.Client, queueURL string) *SQSPublisher {
	return &SQSPublisher{client: client, queueURL: queueURL}
}

func (p *SQSPublisher) Publish(ctx context.Context, body []byte) error {
	_, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("sqs send: %w", err)
	}
	return nil
}

// SQSConsumer long-polls the confirmation queue. Messages are deleted once
// handled; failed ones reappear after the visibility timeout.
type SQSConsumer struct {
	client     sqsAPI
	queueURL   string
	handle     Handler
	log        *zap.Logger
	retryDelay time.Duration
}

func NewSQSConsumer(client *sqs.Client, queueURL string, handle Handler, log *zap.Logger) *SQSConsumer {
	return &SQSConsumer{client: client, queueURL: queueURL, handle: handle, log: log, retryDelay: 5 * time.Second}
}

func (c *SQSConsumer) Start(ctx context.Context) {
	c.log.Info("sqs consumer started", zap.String("queue", c.queueURL))
	for {
		select {
		case <-ctx.Done():
			c.log.Info("sqs consumer stopping")
			return
		default:
		}

		result, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            &c.queueURL,
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   60,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("sqs receive failed", zap.Error(err))
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return
			}
			continue
		}

		for _, message := range result.Messages {
			if message.Body == nil {
				c.deleteMessage(ctx, message.ReceiptHandle)
				continue
			}
			conf, err := decode([]byte(*message.Body))
			if err != nil {
				c.log.Error("dropping undecodable message", zap.Error(err), zap.String("message_id", aws.ToString(message.MessageId)))
				c.deleteMessage(ctx, message.ReceiptHandle)
				continue
			}
			if err := c.handle(ctx, conf); err != nil {
				c.log.Warn("confirmation delivery failed, will retry",
					zap.Error(err), zap.String("message_id", aws.ToString(message.MessageId)))
				continue
			}
			c.deleteMessage(ctx, message.ReceiptHandle)
		}
	}
}

func (c *SQSConsumer) deleteMessage(ctx context.Context, receiptHandle *string) {
	if receiptHandle == nil {
		return
	}
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      &c.queueURL,
		ReceiptHandle: receiptHandle,
	})
	if err != nil {
		c.log.Warn("sqs delete failed", zap.Error(err))
	}
}
