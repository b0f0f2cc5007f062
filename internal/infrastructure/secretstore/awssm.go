package secretstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/cardstash/backend/internal/domain/marketplace"
	"github.com/cardstash/backend/internal/domain/vault"
	infraconfig "github.com/cardstash/backend/internal/infrastructure/config"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// smClient is the subset of the Secrets Manager API this store uses
type smClient interface {
	CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	DeleteSecret(ctx context.Context, params *secretsmanager.DeleteSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DeleteSecretOutput, error)
	ListSecrets(ctx context.Context, params *secretsmanager.ListSecretsInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error)
}

// SecretsManagerStore implements vault.SecretStore on AWS Secrets Manager.
// Secret names are <prefix>/<userID>/<site>; Put creates a new version.
type SecretsManagerStore struct {
	client smClient
	prefix string
	logger *zap.Logger
}

// SecretsManagerOption is a functional option for configuring SecretsManagerStore
type SecretsManagerOption func(*SecretsManagerStore)

// WithSecretsManagerLogger sets a custom logger
func WithSecretsManagerLogger(logger *zap.Logger) SecretsManagerOption {
	return func(s *SecretsManagerStore) {
		s.logger = logger
	}
}

// WithSecretsManagerClient overrides the AWS client, for tests
func WithSecretsManagerClient(client smClient) SecretsManagerOption {
	return func(s *SecretsManagerStore) {
		s.client = client
	}
}

// NewSecretsManagerStore creates a SecretsManagerStore from configuration
func NewSecretsManagerStore(cfg *infraconfig.VaultConfig, opts ...SecretsManagerOption) (*SecretsManagerStore, error) {
	if cfg == nil {
		return nil, errors.New("vault configuration is required")
	}

	store := &SecretsManagerStore{
		prefix: strings.TrimSuffix(cfg.SecretPrefix, "/"),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(store)
	}

	if store.client == nil {
		loadOpts := []func(*awsconfig.LoadOptions) error{
			awsconfig.WithRegion(cfg.Region),
		}
		if cfg.AccessKey != "" && cfg.SecretKey != "" {
			loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
			))
		}

		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS config: %w", err)
		}

		store.client = secretsmanager.NewFromConfig(awsCfg, func(o *secretsmanager.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
		})
	}

	return store, nil
}

func (s *SecretsManagerStore) secretName(userID uuid.UUID, site marketplace.Platform) string {
	return fmt.Sprintf("%s/%s/%s", s.prefix, userID, site)
}

// Put overwrites the secret for (userID, site), creating it on first write
func (s *SecretsManagerStore) Put(ctx context.Context, userID uuid.UUID, site marketplace.Platform, cred *vault.Credential) error {
	payload, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}

	name := s.secretName(userID, site)

	_, err = s.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(name),
		SecretString: aws.String(string(payload)),
	})
	if err == nil {
		return nil
	}

	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return s.wrapAccess(err, "put secret")
	}

	_, err = s.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         aws.String(name),
		SecretString: aws.String(string(payload)),
	})
	if err != nil {
		// Another writer may have created it between our two calls
		var exists *types.ResourceExistsException
		if errors.As(err, &exists) {
			_, err = s.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
				SecretId:     aws.String(name),
				SecretString: aws.String(string(payload)),
			})
			if err != nil {
				return s.wrapAccess(err, "put secret")
			}
			return nil
		}
		return s.wrapAccess(err, "create secret")
	}
	return nil
}

// Get returns the secret for (userID, site), or (nil, nil) when absent
func (s *SecretsManagerStore) Get(ctx context.Context, userID uuid.UUID, site marketplace.Platform) (*vault.Credential, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(s.secretName(userID, site)),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, s.wrapAccess(err, "get secret")
	}

	if out.SecretString == nil {
		return nil, nil
	}

	var cred vault.Credential
	if err := json.Unmarshal([]byte(*out.SecretString), &cred); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential: %w", err)
	}
	return &cred, nil
}

// Delete removes the secret for (userID, site); absent is a no-op
func (s *SecretsManagerStore) Delete(ctx context.Context, userID uuid.UUID, site marketplace.Platform) error {
	_, err := s.client.DeleteSecret(ctx, &secretsmanager.DeleteSecretInput{
		SecretId:                   aws.String(s.secretName(userID, site)),
		ForceDeleteWithoutRecovery: aws.Bool(true),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil
		}
		return s.wrapAccess(err, "delete secret")
	}
	return nil
}

// List returns every site with a stored secret for the user
func (s *SecretsManagerStore) List(ctx context.Context, userID uuid.UUID) ([]marketplace.Platform, error) {
	prefix := fmt.Sprintf("%s/%s/", s.prefix, userID)

	var sites []marketplace.Platform
	var nextToken *string
	for {
		out, err := s.client.ListSecrets(ctx, &secretsmanager.ListSecretsInput{
			Filters: []types.Filter{
				{Key: types.FilterNameStringTypeName, Values: []string{prefix}},
			},
			NextToken: nextToken,
		})
		if err != nil {
			return nil, s.wrapAccess(err, "list secrets")
		}

		for _, entry := range out.SecretList {
			if entry.Name == nil {
				continue
			}
			site := marketplace.Platform(strings.TrimPrefix(*entry.Name, prefix))
			if site.IsValid() {
				sites = append(sites, site)
			}
		}

		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}
	return sites, nil
}

// wrapAccess maps AWS failures onto the domain's vault access error so
// callers can distinguish "vault down" from "no credentials"
func (s *SecretsManagerStore) wrapAccess(err error, op string) error {
	s.logger.Error("secrets manager operation failed", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%w: %s: %v", marketplace.ErrVaultAccessDenied, op, err)
}

// Ensure SecretsManagerStore implements vault.SecretStore
var _ vault.SecretStore = (*SecretsManagerStore)(nil)
