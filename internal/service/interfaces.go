package service

import (
	"context"

	"example.com/backstage/services/jamfops/internal/jamf"
	"example.com/backstage/services/jamfops/internal/models"
)

// DeviceSearcher resolves a saved search to device identifiers.
type DeviceSearcher interface {
	AdvancedSearchComputerIDs(ctx context.Context, name string) ([]models.DeviceID, error)
}

// DeviceManager changes and describes individual devices.
type DeviceManager interface {
	UpdateRemoteManagement(ctx context.Context, id models.DeviceID, rm jamf.RemoteManagement) error
	ComputerName(ctx context.Context, id models.DeviceID) (string, error)
	ComputerURL(id models.DeviceID) string
}

// SearchScoper repoints a saved search at one site at a time.
type SearchScoper interface {
	ListSites(ctx context.Context) ([]models.Site, error)
	ScopeAdvancedSearch(ctx context.Context, name string, siteID int) (jamf.Session, error)
	AdvancedSearchSize(ctx context.Context, name string, session jamf.Session) (int, error)
}

// QueuePublisher sends one message body to a queue.
type QueuePublisher interface {
	SendMessage(ctx context.Context, queue string, body string) error
}

// WebhookPoster delivers a JSON body to a chat webhook.
type WebhookPoster interface {
	Post(ctx context.Context, url string, body []byte) error
}

// TopicPublisher fans a message out to topic subscribers.
type TopicPublisher interface {
	Publish(ctx context.Context, target, subject, message string) error
}

// SecretResolver looks up a secret by its full path.
type SecretResolver interface {
	Get(ctx context.Context, name string) (string, error)
}
