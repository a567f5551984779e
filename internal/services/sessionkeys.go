package services

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/hkdf"
)

const (
	sessionKeySize = 32
	sessionKeyInfo = "ovhcloud-oauth2 session"
)

// SecretVersion represents a single rotated secret version
type SecretVersion struct {
	Secret    string `json:"secret"`
	Timestamp string `json:"timestamp"`
}

// SessionKeyService provides the state cookie keys from Secrets Manager.
type SessionKeyService struct {
	secrets    *SecretsManagerService
	secretName string

	once sync.Once
	keys [][]byte
	err  error
}

// NewSessionKeyService creates a new session key service
func NewSessionKeyService(client *secretsmanager.Client, secretName string) *SessionKeyService {
	return &SessionKeyService{
		secrets:    &SecretsManagerService{client: client},
		secretName: secretName,
	}
}

// GetSessionKeys returns hash/encryption key pairs, newest first, suitable for
// sessions.NewCookieStore. The secret is read once per process; Lambda
// restarts pick up rotated versions.
func (s *SessionKeyService) GetSessionKeys(ctx context.Context) ([][]byte, error) {
	s.once.Do(func() {
		s.keys, s.err = s.fetchSessionKeys(ctx)
	})
	return s.keys, s.err
}

func (s *SessionKeyService) fetchSessionKeys(ctx context.Context) ([][]byte, error) {
	logger := zerolog.Ctx(ctx)

	logger.Info().Str("secret_name", s.secretName).Msg("Fetching session keys from Secrets Manager")

	value, err := s.secrets.GetSecret(ctx, s.secretName)
	if err != nil {
		return nil, err
	}

	// the secret holds an array of versions, most recent first
	var versions []SecretVersion
	if err := json.Unmarshal([]byte(value), &versions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal secret versions: %w", err)
	}

	if len(versions) == 0 {
		return nil, fmt.Errorf("no secret versions found in %s", s.secretName)
	}

	keys := make([][]byte, 0, 2*len(versions))
	for i, version := range versions {
		decoded, err := decodeSessionSecret(version.Secret)
		if err != nil {
			logger.Warn().
				Int("index", i).
				Str("timestamp", version.Timestamp).
				Err(err).
				Msg("Skipping secret version")
			continue
		}

		pair, err := deriveKeyPair(decoded, nil)
		if err != nil {
			return nil, err
		}
		keys = append(keys, pair...)
	}

	if len(keys) == 0 {
		return nil, fmt.Errorf("no valid session keys found in secret %s", s.secretName)
	}

	logger.Info().Int("key_count", len(keys)/2).Msg("Successfully loaded session keys")

	return keys, nil
}

// DeriveSessionKeys derives a hash key and an encryption key from secret with
// HKDF-SHA256. It is used when no rotated keys are stored, e.g. local runs,
// so cookies survive restarts as long as the client secret does not change.
func DeriveSessionKeys(secret, salt string) ([][]byte, error) {
	if secret == "" {
		return nil, fmt.Errorf("failed to derive session keys: secret is required")
	}
	return deriveKeyPair([]byte(secret), []byte(salt))
}

func deriveKeyPair(secret, salt []byte) ([][]byte, error) {
	reader := hkdf.New(sha256.New, secret, salt, []byte(sessionKeyInfo))

	hashKey := make([]byte, sessionKeySize)
	if _, err := io.ReadFull(reader, hashKey); err != nil {
		return nil, fmt.Errorf("failed to derive hash key: %w", err)
	}
	blockKey := make([]byte, sessionKeySize)
	if _, err := io.ReadFull(reader, blockKey); err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}

	return [][]byte{hashKey, blockKey}, nil
}
