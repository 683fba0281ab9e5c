package mq

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/ReleaseTrain/internal/domain"
)

// decode повторяет то, что видит Subscriber после json.Unmarshal тела.
func decode(t *testing.T, msg *Message) *Message {
	t.Helper()
	body, err := json.Marshal(msg)
	require.NoError(t, err)

	var out Message
	require.NoError(t, json.Unmarshal(body, &out))
	return &out
}

func TestReleaseIDOf(t *testing.T) {
	releaseID := uuid.New()

	tests := []struct {
		name string
		msg  *Message
	}{
		{
			name: "step updated",
			msg: &Message{
				ID:   "1",
				Type: MessageTypeStepUpdated,
				Payload: StepUpdatedPayload{
					StepID:     uuid.New(),
					ReleaseID:  releaseID,
					StepNumber: 4,
					Status:     domain.StepStatusInProgress,
				},
				Timestamp: time.Now(),
			},
		},
		{
			name: "release updated",
			msg: &Message{
				ID:   "2",
				Type: MessageTypeReleaseUpdated,
				Payload: ReleaseUpdatedPayload{
					ReleaseID: releaseID,
					ProjectID: uuid.New(),
					Status:    domain.ReleaseStatusStaging,
				},
				Timestamp: time.Now(),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReleaseIDOf(decode(t, tt.msg))
			require.NoError(t, err)
			assert.Equal(t, releaseID, got)
		})
	}
}

func TestReleaseIDOf_UnknownType(t *testing.T) {
	_, err := ReleaseIDOf(&Message{Type: "project.updated"})
	assert.Error(t, err)
}

func TestParsePayload(t *testing.T) {
	stepID := uuid.New()
	msg := decode(t, &Message{
		Type:    MessageTypeStepUpdated,
		Payload: StepUpdatedPayload{StepID: stepID, StepNumber: 2, Status: domain.StepStatusCompleted},
	})

	payload, err := ParsePayload[StepUpdatedPayload](msg)
	require.NoError(t, err)
	assert.Equal(t, stepID, payload.StepID)
	assert.Equal(t, 2, payload.StepNumber)
	assert.Equal(t, domain.StepStatusCompleted, payload.Status)

	_, err = ParsePayload[StepUpdatedPayload](&Message{Payload: map[string]any{"step_number": "two"}})
	assert.Error(t, err)
}

func TestTopologyInfo(t *testing.T) {
	info := TopologyInfo()
	assert.Contains(t, info, string(ExchangeEvents))
	assert.Contains(t, info, string(RoutingKeyStepUpdated))
}
