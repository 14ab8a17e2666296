package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// RecurringProcessMessage asks a worker to generate the next occurrence of one
// recurring transaction. The worker reloads the template from the database and
// re-checks that it is still due, so duplicates are harmless.
type RecurringProcessMessage struct {
	TransactionID string    `json:"transactionId"`
	UserID        string    `json:"userId"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewRecurringProcessMessage(transactionID, userID string) *RecurringProcessMessage {
	return &RecurringProcessMessage{
		TransactionID: transactionID,
		UserID:        userID,
		Timestamp:     time.Now(),
	}
}

func (m *RecurringProcessMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecurringProcessMessageFromJSON decodes a message and rejects ones missing
// either identifier.
func RecurringProcessMessageFromJSON(data []byte) (*RecurringProcessMessage, error) {
	var msg RecurringProcessMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.TransactionID == "" || msg.UserID == "" {
		return nil, errors.New("message requires transactionId and userId")
	}
	return &msg, nil
}
