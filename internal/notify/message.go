package notify

import (
	"encoding/json"

	"taskpact.com/taskpact/internal/constants"
)

// Message is the wire envelope for every push notification.
type Message struct {
	Type    constants.MessageType  `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}

func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}
