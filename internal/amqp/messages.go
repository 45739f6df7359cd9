package amqp

import (
	"encoding/json"
	"time"
)

// PeriodClosedMessage announces that an archive period was closed. It
// carries only the period identity; consumers fetch the full report
// from the database.
type PeriodClosedMessage struct {
	PeriodID   int64     `json:"period_id"`
	PeriodName string    `json:"period_name"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewPeriodClosedMessage(periodID int64, name string) *PeriodClosedMessage {
	return &PeriodClosedMessage{
		PeriodID:   periodID,
		PeriodName: name,
		Timestamp:  time.Now(),
	}
}

func (m *PeriodClosedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func PeriodClosedMessageFromJSON(data []byte) (*PeriodClosedMessage, error) {
	var msg PeriodClosedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
