package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/jamfops/internal/failure"
)

type MockParameterAPI struct {
	mock.Mock
}

func (m *MockParameterAPI) GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	args := m.Called(ctx, aws.ToString(params.Name), aws.ToBool(params.WithDecryption))
	if out := args.Get(0); out != nil {
		return out.(*ssm.GetParameterOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestPaths(t *testing.T) {
	assert.Equal(t, "/prod/JamfPro/Address", AddressPath("PROD"))
	assert.Equal(t, "/dev/JamfPro/Address", AddressPath(""))
	assert.Equal(t, "/dev/JamfPro/Accts/UnmanageComputers/Username", AccountPath("dev", "UnmanageComputers", "Username"))
	assert.Equal(t, "/test/Webhooks/MSTeams/TeamName/ChannelName", ParameterPath("test", "Webhooks/MSTeams/TeamName/ChannelName"))
	assert.Equal(t, "/test/JamfPro/Webhooks/X", ParameterPath("test", "/JamfPro/Webhooks/X"))
}

func TestSSMStoreGet(t *testing.T) {
	api := new(MockParameterAPI)
	logger, _ := test.NewNullLogger()
	store := NewSSMStoreWithAPI(api, logger)
	ctx := context.Background()

	api.On("GetParameter", ctx, "/dev/JamfPro/Address", true).Return(&ssm.GetParameterOutput{
		Parameter: &types.Parameter{Value: aws.String("https://jamf.example.com")},
	}, nil)
	api.On("GetParameter", ctx, "/dev/missing", true).Return(nil, &types.ParameterNotFound{})
	api.On("GetParameter", ctx, "/dev/down", true).Return(nil, errors.New("dial tcp: timeout"))

	value, err := store.Get(ctx, "/dev/JamfPro/Address")
	require.NoError(t, err)
	assert.Equal(t, "https://jamf.example.com", value)

	_, err = store.Get(ctx, "/dev/missing")
	assert.ErrorIs(t, err, failure.ErrConfiguration)

	_, err = store.Get(ctx, "/dev/down")
	assert.ErrorIs(t, err, failure.ErrTransport)

	api.AssertExpectations(t)
}

func TestStaticStoreIgnoresCase(t *testing.T) {
	store := NewStaticStore(map[string]string{"/dev/JamfPro/Address": "https://jamf.example.com"})

	value, err := store.Get(context.Background(), "/dev/jamfpro/address")
	require.NoError(t, err)
	assert.Equal(t, "https://jamf.example.com", value)

	_, err = store.Get(context.Background(), "/dev/JamfPro/Accts/X/Username")
	assert.ErrorIs(t, err, failure.ErrConfiguration)
}

type countingStore struct {
	calls int
	err   error
}

func (s *countingStore) Get(_ context.Context, name string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "value-of-" + name, nil
}

func TestCachedResolvesOnce(t *testing.T) {
	inner := &countingStore{}
	cached := NewCached(inner)

	for i := 0; i < 3; i++ {
		value, err := cached.Get(context.Background(), "hook")
		require.NoError(t, err)
		assert.Equal(t, "value-of-hook", value)
	}
	assert.Equal(t, 1, inner.calls)
}

func TestCachedDoesNotCacheFailures(t *testing.T) {
	inner := &countingStore{err: errors.New("boom")}
	cached := NewCached(inner)

	_, err := cached.Get(context.Background(), "hook")
	require.Error(t, err)
	_, err = cached.Get(context.Background(), "hook")
	require.Error(t, err)
	assert.Equal(t, 2, inner.calls)
}
