// Package iot pushes spot state to the lot's entrance signage over AWS IoT.
package iot

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Megho-git/ParkEase/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iotdataplane"
	"go.uber.org/zap"
)

type dataPlaneAPI interface {
	Publish(ctx context.Context, params *iotdataplane.PublishInput, optFns ...func(*iotdataplane.Options)) (*iotdataplane.PublishOutput, error)
}

type spotMessage struct {
	LotID         int               `json:"lot_id"`
	SpotID        int               `json:"spot_id"`
	Status        domain.SpotStatus `json:"status"`
	Occupied      bool              `json:"occupied"`
	ReservationID int               `json:"reservation_id,omitempty"`
	Timestamp     int64             `json:"timestamp"`
}

// SignagePublisher publishes every spot change to
// <prefix>/lots/<lot>/spots/<spot>/status with QoS 1.
type SignagePublisher struct {
	client      dataPlaneAPI
	topicPrefix string
	timeout     time.Duration
	log         *zap.Logger
}

func NewSignagePublisher(client *iotdataplane.Client, topicPrefix string, log *zap.Logger) *SignagePublisher {
	return &SignagePublisher{client: client, topicPrefix: strings.TrimRight(topicPrefix, "/"), timeout: 3 * time.Second, log: log}
}

func (p *SignagePublisher) Topic(lotID, spotID int) string {
	return fmt.Sprintf("%s/lots/%d/spots/%d/status", p.topicPrefix, lotID, spotID)
}

// SpotChanged never fails the caller; publish errors are logged.
func (p *SignagePublisher) SpotChanged(ctx context.Context, ev domain.SpotStatusChange) {
	payload, err := json.Marshal(spotMessage{
		LotID:         ev.LotID,
		SpotID:        ev.SpotID,
		Status:        ev.Status,
		Occupied:      ev.Status == domain.SpotOccupied,
		ReservationID: ev.ReservationID,
		Timestamp:     ev.At.Unix(),
	})
	if err != nil {
		p.log.Error("encode signage payload", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	topic := p.Topic(ev.LotID, ev.SpotID)
	_, err = p.client.Publish(ctx, &iotdataplane.PublishInput{
		Topic:   aws.String(topic),
		Qos:     1,
		Payload: payload,
	})
	if err != nil {
		p.log.Warn("signage publish failed", zap.String("topic", topic), zap.Error(err))
		return
	}
	p.log.Debug("signage updated", zap.String("topic", topic), zap.String("status", string(ev.Status)))
}
