package amqp

import (
	"encoding/json"
	"time"
)

// TransactionRecordedMessage announces a stored transaction. It carries
// only identifiers: the worker reloads the customer's history itself.
type TransactionRecordedMessage struct {
	TransactionID string    `json:"transactionId"`
	CustomerID    string    `json:"customerId"`
	Month         string    `json:"month"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionRecordedMessage(transactionID, customerID, month string) *TransactionRecordedMessage {
	return &TransactionRecordedMessage{
		TransactionID: transactionID,
		CustomerID:    customerID,
		Month:         month,
		Timestamp:     time.Now(),
	}
}

func (m *TransactionRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionRecordedMessageFromJSON(data []byte) (*TransactionRecordedMessage, error) {
	var msg TransactionRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
