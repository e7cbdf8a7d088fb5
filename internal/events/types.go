package events

// Event types published to the alert stream.

// EventMetadata contains common event information
type EventMetadata struct {
	EventID   string `json:"event_id"`
	EntityID  string `json:"entity_id"`
	Timestamp int64  `json:"timestamp"`
	Source    string `json:"source"`
}

// AlertDispatched - published after the dispatcher resolves an alert,
// whether or not the webhook delivery succeeded
type AlertDispatched struct {
	Metadata   EventMetadata `json:"metadata"`
	Kind       string        `json:"kind"`
	Pool       string        `json:"pool"`
	FromPool   string        `json:"from_pool,omitempty"`
	ToPool     string        `json:"to_pool,omitempty"`
	Rate       float64       `json:"error_rate,omitempty"`
	WindowSize int           `json:"window_size,omitempty"`
	Message    string        `json:"message"`
	Outcome    string        `json:"outcome"`
}
