package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"example.com/backstage/services/jamfops/internal/jamf"
	"example.com/backstage/services/jamfops/internal/models"
)

type MockDeviceSearcher struct {
	mock.Mock
}

func (m *MockDeviceSearcher) AdvancedSearchComputerIDs(ctx context.Context, name string) ([]models.DeviceID, error) {
	args := m.Called(ctx, name)
	ids, _ := args.Get(0).([]models.DeviceID)
	return ids, args.Error(1)
}

type MockDeviceManager struct {
	mock.Mock
}

func (m *MockDeviceManager) UpdateRemoteManagement(ctx context.Context, id models.DeviceID, rm jamf.RemoteManagement) error {
	args := m.Called(ctx, id, rm)
	return args.Error(0)
}

func (m *MockDeviceManager) ComputerName(ctx context.Context, id models.DeviceID) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *MockDeviceManager) ComputerURL(id models.DeviceID) string {
	return "https://jamf.example.com/computers.html?id=" + string(id)
}

type MockSearchScoper struct {
	mock.Mock
}

func (m *MockSearchScoper) ListSites(ctx context.Context) ([]models.Site, error) {
	args := m.Called(ctx)
	sites, _ := args.Get(0).([]models.Site)
	return sites, args.Error(1)
}

func (m *MockSearchScoper) ScopeAdvancedSearch(ctx context.Context, name string, siteID int) (jamf.Session, error) {
	args := m.Called(ctx, name, siteID)
	return jamf.Session{}, args.Error(0)
}

func (m *MockSearchScoper) AdvancedSearchSize(ctx context.Context, name string, session jamf.Session) (int, error) {
	args := m.Called(ctx, name)
	return args.Int(0), args.Error(1)
}

type MockQueuePublisher struct {
	mock.Mock
}

func (m *MockQueuePublisher) SendMessage(ctx context.Context, queue string, body string) error {
	args := m.Called(ctx, queue, body)
	return args.Error(0)
}

type MockWebhookPoster struct {
	mock.Mock
}

func (m *MockWebhookPoster) Post(ctx context.Context, url string, body []byte) error {
	args := m.Called(ctx, url, string(body))
	return args.Error(0)
}

type MockTopicPublisher struct {
	mock.Mock
}

func (m *MockTopicPublisher) Publish(ctx context.Context, target, subject, message string) error {
	args := m.Called(ctx, target, subject, message)
	return args.Error(0)
}

type staticSecrets map[string]string

func (s staticSecrets) Get(_ context.Context, name string) (string, error) {
	return s[name], nil
}
