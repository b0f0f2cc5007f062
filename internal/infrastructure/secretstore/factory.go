package secretstore

import (
	"fmt"

	"github.com/cardstash/backend/internal/domain/vault"
	infraconfig "github.com/cardstash/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// New builds the SecretStore selected by vault.backend
func New(cfg *infraconfig.VaultConfig, logger *zap.Logger) (vault.SecretStore, error) {
	switch cfg.Backend {
	case "awssm":
		return NewSecretsManagerStore(cfg, WithSecretsManagerLogger(logger))
	case "s3":
		return NewS3Store(cfg, WithS3Logger(logger))
	case "memory":
		logger.Warn("using in-memory secret store; secrets will not survive a restart")
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown vault backend %q", cfg.Backend)
	}
}
