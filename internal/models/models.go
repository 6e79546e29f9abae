package models

import (
	"encoding/json"
	"strconv"
)

// DeviceID is the opaque identifier of a computer record in Jamf Pro.
type DeviceID string

// DeviceIDFromInt renders a numeric computer id the way it travels on the queue.
func DeviceIDFromInt(id int) DeviceID {
	return DeviceID(strconv.Itoa(id))
}

// QueueRecord is one message delivered by a queue trigger.
type QueueRecord struct {
	MessageID string `json:"messageId"`
	Body      string `json:"body"`
}

// Webhook points at the chat endpoint a notification is relayed to.
type Webhook struct {
	URL string `json:"url" validate:"required,url"`
}

// NotificationMessage is the relay-ready payload placed on the notification queue.
// Message is kept as raw JSON so the notifier forwards it byte for byte.
type NotificationMessage struct {
	Webhook Webhook         `json:"webhook"`
	Message json.RawMessage `json:"message"`
}

// ChatMessage is the body posted to the chat webhook.
type ChatMessage struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// NewNotificationMessage builds a notification for the given webhook.
func NewNotificationMessage(webhookURL string, msg ChatMessage) (NotificationMessage, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return NotificationMessage{}, err
	}
	return NotificationMessage{
		Webhook: Webhook{URL: webhookURL},
		Message: raw,
	}, nil
}

// Site is a Jamf Pro site.
type Site struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// SiteCount is one row of the encryption report.
type SiteCount struct {
	Site  Site `json:"site"`
	Count int  `json:"count"`
}
