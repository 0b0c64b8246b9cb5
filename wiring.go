package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/Megho-git/ParkEase/internal/config"
	"github.com/Megho-git/ParkEase/internal/iot"
	"github.com/Megho-git/ParkEase/internal/notify"
	"github.com/Megho-git/ParkEase/internal/repository"
	"github.com/Megho-git/ParkEase/internal/repository/memory"
	"github.com/Megho-git/ParkEase/internal/repository/postgresql"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/iotdataplane"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"
)

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.Store, func(context.Context) error, func(), error) {
	if cfg.Storage == "memory" {
		log.Warn("using in-memory storage; data is lost on restart")
		return memory.NewStore(), nil, func() {}, nil
	}

	db, err := postgresql.NewDB(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := postgresql.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	log.Info("database connected", zap.String("driver", cfg.DBDriver), zap.String("host", cfg.DBHost))
	return postgresql.NewStore(db, cfg.DBDriver), db.PingContext, func() { db.Close() }, nil
}

// awsClients holds the clients for the optional AWS integrations. Any of
// them is nil when its integration is not configured.
type awsClients struct {
	sqs         *sqs.Client
	rekognition *rekognition.Client
	signage     *iot.SignagePublisher
}

func newAWSClients(ctx context.Context, cfg *config.Config, log *zap.Logger) (awsClients, error) {
	var out awsClients
	if cfg.NotifyTransport != "sqs" && cfg.IoTEndpoint == "" && !cfg.LPREnabled {
		return out, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return out, err
	}
	log.Info("AWS config loaded", zap.String("region", cfg.AWSRegion))

	if cfg.NotifyTransport == "sqs" {
		out.sqs = sqs.NewFromConfig(awsCfg)
	}
	if cfg.LPREnabled {
		out.rekognition = rekognition.NewFromConfig(awsCfg)
	}
	if cfg.IoTEndpoint != "" {
		endpoint := cfg.IoTEndpoint
		if !strings.HasPrefix(endpoint, "https://") && !strings.HasPrefix(endpoint, "http://") {
			endpoint = "https://" + endpoint
		}
		client := iotdataplane.NewFromConfig(awsCfg, func(o *iotdataplane.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
		out.signage = iot.NewSignagePublisher(client, cfg.IoTTopicPrefix, log)
	}
	return out, nil
}

// newNotifier picks the confirmation transport. "direct" sends from the API
// process; "sqs" and "rabbitmq" enqueue for cmd/notifier.
func newNotifier(cfg *config.Config, clients awsClients, log *zap.Logger) (notify.Notifier, func(), error) {
	noop := func() {}
	switch cfg.NotifyTransport {
	case "none":
		return notify.NewLogNotifier(log), noop, nil
	case "direct":
		return notify.NewMailerSendNotifier(cfg.MailerSendAPIKey, cfg.MailFromEmail, cfg.MailFromName, cfg.Location(), log), noop, nil
	case "sqs":
		return notify.NewQueueNotifier(notify.NewSQSPublisher(clients.sqs, cfg.SQSNotifyQueueURL), log), noop, nil
	case "rabbitmq":
		broker, err := notify.NewAMQPBroker(cfg.RabbitMQURL, cfg.RabbitMQExchange, cfg.RabbitMQQueue, log)
		if err != nil {
			return nil, nil, err
		}
		return notify.NewQueueNotifier(broker, log), func() { _ = broker.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown notify transport %q", cfg.NotifyTransport)
}
