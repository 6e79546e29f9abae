package secrets

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/sirupsen/logrus"

	"example.com/backstage/services/jamfops/internal/failure"
)

// ParameterAPI is the subset of the SSM client used by SSMStore.
type ParameterAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// SSMStore reads secure-string parameters from AWS Systems Manager.
type SSMStore struct {
	api ParameterAPI
	log logrus.FieldLogger
}

// NewSSMStore creates a store backed by the given SSM client.
func NewSSMStore(cfg aws.Config, log logrus.FieldLogger) *SSMStore {
	return NewSSMStoreWithAPI(ssm.NewFromConfig(cfg), log)
}

// NewSSMStoreWithAPI creates a store over any ParameterAPI implementation.
func NewSSMStoreWithAPI(api ParameterAPI, log logrus.FieldLogger) *SSMStore {
	return &SSMStore{api: api, log: log}
}

// Get returns the decrypted value of the named parameter.
func (s *SSMStore) Get(ctx context.Context, name string) (string, error) {
	out, err := s.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var notFound *types.ParameterNotFound
		if errors.As(err, &notFound) {
			return "", failure.Configuration("parameter %s not found", name)
		}
		return "", failure.Wrap(failure.ErrTransport, "get parameter "+name, err)
	}
	if out.Parameter == nil || aws.ToString(out.Parameter.Value) == "" {
		return "", failure.Configuration("parameter %s is empty", name)
	}

	s.log.WithField("parameter", name).Debug("Resolved parameter")
	return aws.ToString(out.Parameter.Value), nil
}
