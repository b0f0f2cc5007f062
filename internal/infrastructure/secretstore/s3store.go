package secretstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cardstash/backend/internal/domain/marketplace"
	"github.com/cardstash/backend/internal/domain/vault"
	infraconfig "github.com/cardstash/backend/internal/infrastructure/config"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/chacha20poly1305"
)

// s3Client is the subset of the S3 API this store uses
type s3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Store implements vault.SecretStore on any S3-compatible object store.
// Objects are encrypted client-side with XChaCha20-Poly1305 before upload, so
// the bucket operator never sees plaintext credentials. Object keys are
// <prefix>/<userID>/<site>.
type S3Store struct {
	client s3Client
	bucket string
	prefix string
	key    []byte
	logger *zap.Logger
}

// S3StoreOption is a functional option for configuring S3Store
type S3StoreOption func(*S3Store)

// WithS3Logger sets a custom logger
func WithS3Logger(logger *zap.Logger) S3StoreOption {
	return func(s *S3Store) {
		s.logger = logger
	}
}

// WithS3Client overrides the AWS client, for tests
func WithS3Client(client s3Client) S3StoreOption {
	return func(s *S3Store) {
		s.client = client
	}
}

// NewS3Store creates an S3Store from configuration. The encryption key must
// be 32 bytes, hex encoded.
func NewS3Store(cfg *infraconfig.VaultConfig, opts ...S3StoreOption) (*S3Store, error) {
	if cfg == nil {
		return nil, errors.New("vault configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("vault bucket is required")
	}

	key, err := hex.DecodeString(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}

	store := &S3Store{
		bucket: cfg.Bucket,
		prefix: strings.TrimSuffix(cfg.SecretPrefix, "/"),
		key:    key,
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

		store.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
				o.UsePathStyle = true
			}
		})
	}

	return store, nil
}

func (s *S3Store) objectKey(userID uuid.UUID, site marketplace.Platform) string {
	return fmt.Sprintf("%s/%s/%s", s.prefix, userID, site)
}

// seal encrypts the payload; the random nonce is prepended to the ciphertext
func (s *S3Store) seal(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// open decrypts a sealed payload
func (s *S3Store) open(sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize() {
		return nil, errors.New("sealed payload too short")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	return aead.Open(nil, nonce, ciphertext, nil)
}

// Put encrypts and uploads the secret for (userID, site)
func (s *S3Store) Put(ctx context.Context, userID uuid.UUID, site marketplace.Platform, cred *vault.Credential) error {
	payload, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}

	sealed, err := s.seal(payload)
	if err != nil {
		return fmt.Errorf("failed to encrypt credential: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(userID, site)),
		Body:        strings.NewReader(string(sealed)),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return s.wrapAccess(err, "put secret")
	}
	return nil
}

// Get downloads and decrypts the secret for (userID, site), or (nil, nil)
// when absent
func (s *S3Store) Get(ctx context.Context, userID uuid.UUID, site marketplace.Platform) (*vault.Credential, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(userID, site)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) || strings.Contains(err.Error(), "NoSuchKey") {
			return nil, nil
		}
		return nil, s.wrapAccess(err, "get secret")
	}
	defer out.Body.Close()

	sealed, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, s.wrapAccess(err, "read secret")
	}

	payload, err := s.open(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credential: %w", err)
	}

	var cred vault.Credential
	if err := json.Unmarshal(payload, &cred); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential: %w", err)
	}
	return &cred, nil
}

// Delete removes the secret for (userID, site); S3 deletes are idempotent
func (s *S3Store) Delete(ctx context.Context, userID uuid.UUID, site marketplace.Platform) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(userID, site)),
	})
	if err != nil {
		return s.wrapAccess(err, "delete secret")
	}
	return nil
}

// List returns every site with a stored secret for the user
func (s *S3Store) List(ctx context.Context, userID uuid.UUID) ([]marketplace.Platform, error) {
	prefix := fmt.Sprintf("%s/%s/", s.prefix, userID)

	var sites []marketplace.Platform
	var continuation *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: continuation,
		})
		if err != nil {
			return nil, s.wrapAccess(err, "list secrets")
		}

		for _, obj := range out.Contents {
			if obj.Key == nil {
				continue
			}
			site := marketplace.Platform(strings.TrimPrefix(*obj.Key, prefix))
			if site.IsValid() {
				sites = append(sites, site)
			}
		}

		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		continuation = out.NextContinuationToken
	}
	return sites, nil
}

func (s *S3Store) wrapAccess(err error, op string) error {
	s.logger.Error("s3 secret store operation failed", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%w: %s: %v", marketplace.ErrVaultAccessDenied, op, err)
}

// Ensure S3Store implements vault.SecretStore
var _ vault.SecretStore = (*S3Store)(nil)
