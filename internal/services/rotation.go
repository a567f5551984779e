package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/rs/zerolog"
)

// Secrets Manager rotation steps and version stages.
const (
	StepCreateSecret = "createSecret"
	StepSetSecret    = "setSecret"
	StepTestSecret   = "testSecret"
	StepFinishSecret = "finishSecret"

	stagePending = "AWSPENDING"
	stageCurrent = "AWSCURRENT"
)

// RotationSteps lists the steps in the order Secrets Manager invokes them.
var RotationSteps = []string{StepCreateSecret, StepSetSecret, StepTestSecret, StepFinishSecret}

// maxSessionKeyVersions bounds how many previous keys keep decoding cookies.
const maxSessionKeyVersions = 3

type RotationEvent struct {
	Step               string `json:"Step"`
	Token              string `json:"Token"`
	SecretId           string `json:"SecretId"`
	ClientRequestToken string `json:"ClientRequestToken"`
}

// SessionKeyRotator rotates the session key secret read by SessionKeyService.
type SessionKeyRotator struct {
	client *secretsmanager.Client
	now    func() time.Time
}

func NewSessionKeyRotator(client *secretsmanager.Client) *SessionKeyRotator {
	return &SessionKeyRotator{
		client: client,
		now:    time.Now,
	}
}

func (r *SessionKeyRotator) HandleRotation(ctx context.Context, event RotationEvent) error {
	switch event.Step {
	case StepCreateSecret:
		return r.createSecret(ctx, event)
	case StepSetSecret:
		// the keys are only consumed by this service
		return nil
	case StepTestSecret:
		return r.testSecret(ctx, event)
	case StepFinishSecret:
		return r.finishSecret(ctx, event)
	default:
		return fmt.Errorf("unknown rotation step: %s", event.Step)
	}
}

// Rotate runs every step with a manual request token.
func (r *SessionKeyRotator) Rotate(ctx context.Context, secretID string) error {
	token := fmt.Sprintf("manual-%d", r.now().Unix())
	for _, step := range RotationSteps {
		event := RotationEvent{
			Step:               step,
			SecretId:           secretID,
			ClientRequestToken: token,
		}
		if err := r.HandleRotation(ctx, event); err != nil {
			return fmt.Errorf("%s step failed: %w", step, err)
		}
	}
	return nil
}

// CancelRotation removes the pending stage from versionID.
func (r *SessionKeyRotator) CancelRotation(ctx context.Context, secretID, versionID string) error {
	_, err := r.client.UpdateSecretVersionStage(ctx, &secretsmanager.UpdateSecretVersionStageInput{
		SecretId:            aws.String(secretID),
		VersionStage:        aws.String(stagePending),
		RemoveFromVersionId: aws.String(versionID),
	})
	if err != nil {
		return fmt.Errorf("failed to remove %s stage: %w", stagePending, err)
	}
	return nil
}

func (r *SessionKeyRotator) createSecret(ctx context.Context, event RotationEvent) error {
	logger := zerolog.Ctx(ctx)

	newSecret, err := generateSessionSecret()
	if err != nil {
		return err
	}

	versions := []SecretVersion{}
	current, err := r.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(event.SecretId),
	})
	switch {
	case err != nil:
		logger.Warn().Err(err).Msg("Failed to get current secret - starting fresh")
	case current.SecretString == nil || *current.SecretString == "":
		logger.Warn().Msg("Secret is empty - starting fresh")
	default:
		if err := json.Unmarshal([]byte(*current.SecretString), &versions); err != nil {
			logger.Warn().Err(err).Msg("Current secret is corrupt (invalid JSON) - overwriting with fresh secret")
			versions = []SecretVersion{}
		}
		versions = validVersions(logger, versions)
	}

	versions = append([]SecretVersion{{
		Secret:    newSecret,
		Timestamp: r.now().UTC().Format(time.RFC3339),
	}}, versions...)
	if len(versions) > maxSessionKeyVersions {
		versions = versions[:maxSessionKeyVersions]
	}

	secretJSON, err := json.Marshal(versions)
	if err != nil {
		return fmt.Errorf("failed to marshal secret: %w", err)
	}

	logger.Info().Int("version_count", len(versions)).Msg("Creating secret with valid versions")

	_, err = r.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:           aws.String(event.SecretId),
		SecretString:       aws.String(string(secretJSON)),
		ClientRequestToken: aws.String(event.ClientRequestToken),
		VersionStages:      []string{stagePending},
	})
	if err != nil {
		return fmt.Errorf("failed to put secret value: %w", err)
	}
	return nil
}

func (r *SessionKeyRotator) testSecret(ctx context.Context, event RotationEvent) error {
	output, err := r.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(event.SecretId),
		VersionStage: aws.String(stagePending),
	})
	if err != nil {
		return fmt.Errorf("failed to get pending secret: %w", err)
	}
	if output.SecretString == nil {
		return fmt.Errorf("pending secret has no string value")
	}

	var versions []SecretVersion
	if err := json.Unmarshal([]byte(*output.SecretString), &versions); err != nil {
		return fmt.Errorf("pending secret is not valid JSON: %w", err)
	}
	if len(versions) == 0 {
		return fmt.Errorf("pending secret has no versions")
	}
	if _, err := decodeSessionSecret(versions[0].Secret); err != nil {
		return fmt.Errorf("pending secret is invalid: %w", err)
	}
	return nil
}

func (r *SessionKeyRotator) finishSecret(ctx context.Context, event RotationEvent) error {
	logger := zerolog.Ctx(ctx)

	described, err := r.client.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{
		SecretId: aws.String(event.SecretId),
	})
	if err != nil {
		return fmt.Errorf("failed to describe secret: %w", err)
	}

	var currentVersion string
	for versionID, stages := range described.VersionIdsToStages {
		if slices.Contains(stages, stageCurrent) {
			currentVersion = versionID
			break
		}
	}
	if currentVersion == event.ClientRequestToken {
		logger.Info().Str("version_id", currentVersion).Msg("Version already marked as current")
		return nil
	}

	input := &secretsmanager.UpdateSecretVersionStageInput{
		SecretId:        aws.String(event.SecretId),
		VersionStage:    aws.String(stageCurrent),
		MoveToVersionId: aws.String(event.ClientRequestToken),
	}
	if currentVersion != "" {
		input.RemoveFromVersionId = aws.String(currentVersion)
	}
	if _, err := r.client.UpdateSecretVersionStage(ctx, input); err != nil {
		return fmt.Errorf("failed to update version stage: %w", err)
	}

	logger.Info().
		Str("version_id", event.ClientRequestToken).
		Str("previous_version_id", currentVersion).
		Msg("Promoted pending version to current")
	return nil
}

func validVersions(logger *zerolog.Logger, versions []SecretVersion) []SecretVersion {
	valid := make([]SecretVersion, 0, len(versions))
	for i, v := range versions {
		if _, err := decodeSessionSecret(v.Secret); err != nil {
			logger.Warn().Err(err).Int("index", i).Msg("Discarding secret version")
			continue
		}
		valid = append(valid, v)
	}
	return valid
}

func generateSessionSecret() (string, error) {
	b := make([]byte, sessionKeySize)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func decodeSessionSecret(secret string) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("not valid base64: %w", err)
	}
	if len(decoded) != sessionKeySize {
		return nil, fmt.Errorf("invalid length %d, expected %d", len(decoded), sessionKeySize)
	}
	return decoded, nil
}
