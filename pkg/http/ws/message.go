package ws

import "encoding/json"

// MessageType constants for the import progress protocol.
const (
	// Client -> Server
	TypeSubscribeImport   = "subscribe_import"
	TypeUnsubscribeImport = "unsubscribe_import"
	TypePing              = "ping"

	// Server -> Client
	TypeImportProgress = "import_progress"
	TypeImportComplete = "import_complete"
	TypeSubscribed     = "subscribed"
	TypeError          = "error"
	TypePong           = "pong"
)

// Message wraps all WebSocket payloads with type and optional request ID.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	RequestID string          `json:"request_id,omitempty"`
}

// NewMessage marshals payload into a typed message.
func NewMessage(msgType string, payload interface{}) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: msgType, Payload: raw}, nil
}

// Client Messages (incoming)

type SubscribeImportPayload struct {
	JobID string `json:"job_id"`
}

// Server Messages (outgoing)

type ImportProgressPayload struct {
	JobID          string `json:"job_id"`
	AddedCount     int    `json:"addedCount"`
	FailedCount    int    `json:"failedCount"`
	TotalCount     int    `json:"totalCount"`
	RemainingCount int    `json:"remainingCount"`
}

type ImportCompletePayload struct {
	JobID  string          `json:"job_id"`
	Status string          `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
