// Command notifier consumes queued booking confirmations and emails them.
package main

import (
	"context"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/Megho-git/ParkEase/internal/config"
	"github.com/Megho-git/ParkEase/internal/logger"
	"github.com/Megho-git/ParkEase/internal/notify"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"
)

func main() {
	cfg := config.MustLoad()
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sender notify.Notifier
	if cfg.MailerSendAPIKey == "" {
		log.Warn("MAILERSEND_API_KEY not set, confirmations are only logged")
		sender = notify.NewLogNotifier(log)
	} else {
		sender = notify.NewMailerSendNotifier(cfg.MailerSendAPIKey, cfg.MailFromEmail, cfg.MailFromName, cfg.Location(), log)
	}
	handle := notify.Deliver(sender)

	switch cfg.NotifyTransport {
	case "sqs":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			log.Fatal("cannot load AWS config", zap.Error(err))
		}
		consumer := notify.NewSQSConsumer(sqs.NewFromConfig(awsCfg), cfg.SQSNotifyQueueURL, handle, log)
		log.Info("consuming confirmations from SQS", zap.String("queue", cfg.SQSNotifyQueueURL))
		consumer.Start(ctx)

	case "rabbitmq":
		broker, err := notify.NewAMQPBroker(cfg.RabbitMQURL, cfg.RabbitMQExchange, cfg.RabbitMQQueue, log)
		if err != nil {
			log.Fatal("cannot connect to RabbitMQ", zap.Error(err))
		}
		defer broker.Close()
		log.Info("consuming confirmations from RabbitMQ", zap.String("queue", cfg.RabbitMQQueue))
		if err := broker.Consume(ctx, handle); err != nil {
			log.Fatal("consume failed", zap.Error(err))
		}

	default:
		log.Fatal("notifier needs NOTIFY_TRANSPORT=sqs or rabbitmq", zap.String("transport", cfg.NotifyTransport))
	}
	log.Info("notifier stopped")
}
