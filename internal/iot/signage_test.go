package iot

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Megho-git/ParkEase/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iotdataplane"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeDataPlane struct {
	inputs []*iotdataplane.PublishInput
	err    error
}

func (f *fakeDataPlane) Publish(_ context.Context, in *iotdataplane.PublishInput, _ ...func(*iotdataplane.Options)) (*iotdataplane.PublishOutput, error) {
	f.inputs = append(f.inputs, in)
	return &iotdataplane.PublishOutput{}, f.err
}

func TestSpotChangedPublishesToSpotTopic(t *testing.T) {
	fake := &fakeDataPlane{}
	p := &SignagePublisher{client: fake, topicPrefix: "parkease", timeout: time.Second, log: zap.NewNop()}

	p.SpotChanged(context.Background(), domain.SpotStatusChange{
		LotID: 2, SpotID: 9, Status: domain.SpotOccupied, ReservationID: 31, At: time.Unix(1700000000, 0),
	})

	require.Len(t, fake.inputs, 1)
	assert.Equal(t, "parkease/lots/2/spots/9/status", aws.ToString(fake.inputs[0].Topic))
	assert.EqualValues(t, 1, fake.inputs[0].Qos)

	var msg spotMessage
	require.NoError(t, json.Unmarshal(fake.inputs[0].Payload, &msg))
	assert.True(t, msg.Occupied)
	assert.Equal(t, 31, msg.ReservationID)
	assert.Equal(t, int64(1700000000), msg.Timestamp)
}

func TestSpotChangedSwallowsErrors(t *testing.T) {
	fake := &fakeDataPlane{err: errors.New("throttled")}
	p := &SignagePublisher{client: fake, topicPrefix: "parkease", timeout: time.Second, log: zap.NewNop()}

	assert.NotPanics(t, func() {
		p.SpotChanged(context.Background(), domain.SpotStatusChange{LotID: 1, SpotID: 1, Status: domain.SpotAvailable})
	})
	assert.Len(t, fake.inputs, 1)
}
