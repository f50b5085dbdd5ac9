package models

import "time"

// WebhookEvent records one (type, external id) pair already seen from a
// gateway, so repeated callbacks can be logged once and stay inert.
type WebhookEvent struct {
	ID         string    `json:"id"`
	Gateway    string    `json:"gateway"`
	Type       string    `json:"type"`
	ExternalID string    `json:"external_id"`
	Payload    []byte    `json:"-"`
	ReceivedAt time.Time `json:"received_at"`
}
