package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ScenarioSavedMessage tells the worker a scenario changed. It carries only
// the ID and version; the worker loads the scenario from the store and skips
// the message when a newer version already exists.
type ScenarioSavedMessage struct {
	MessageID  string    `json:"message_id"`
	ScenarioID int64     `json:"scenario_id"`
	Version    int64     `json:"version"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewScenarioSavedMessage creates a message with a fresh ID.
func NewScenarioSavedMessage(scenarioID, version int64) *ScenarioSavedMessage {
	return &ScenarioSavedMessage{
		MessageID:  uuid.NewString(),
		ScenarioID: scenarioID,
		Version:    version,
		Timestamp:  time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ScenarioSavedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ScenarioSavedMessageFromJSON decodes a message body.
func ScenarioSavedMessageFromJSON(data []byte) (*ScenarioSavedMessage, error) {
	var msg ScenarioSavedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
