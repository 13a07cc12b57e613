// Package events carries run progress to HTTP subscribers.
package events

import (
	"encoding/json"
	"time"
)

const (
	TypeRunStarted     = "run.started"
	TypeRunFinished    = "run.finished"
	TypeRunFailed      = "run.failed"
	TypeJob            = "job"
	TypeNoData         = "site.no_data"
	TypeConfigReloaded = "config.reloaded"
)

// Version of the envelope layout.
const Version = 1

type Event struct {
	Type      string          `json:"type"`
	Version   int             `json:"v"`
	At        time.Time       `json:"at"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// MakeEvent encodes an envelope. A nil data is omitted.
func MakeEvent(reqID, typ string, data any) string {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	b, _ := json.Marshal(Event{
		Type:      typ,
		Version:   Version,
		At:        time.Now().UTC(),
		RequestID: reqID,
		Data:      raw,
	})
	return string(b)
}
