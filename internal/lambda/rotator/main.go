package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/savaki/ovhcloud-oauth2/internal/di"
	"github.com/savaki/ovhcloud-oauth2/internal/services"
	"github.com/urfave/cli/v2"
)

func newRotator(ctx context.Context) (*services.SessionKeyRotator, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return services.NewSessionKeyRotator(secretsmanager.NewFromConfig(cfg)), nil
}

func handleRotateCommand(c *cli.Context) error {
	logger := di.ProvideLogger().With().Str("lambda", "rotator").Logger()
	ctx := logger.WithContext(c.Context)

	rotator, err := newRotator(ctx)
	if err != nil {
		return fmt.Errorf("failed to create rotator: %w", err)
	}

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		lambda.Start(func(ctx context.Context, event services.RotationEvent) error {
			ctx = logger.WithContext(ctx)
			logger.Info().Str("step", event.Step).Str("secret_id", event.SecretId).Msg("Handling rotation step")
			return rotator.HandleRotation(ctx, event)
		})
		return nil
	}

	// CLI mode for local testing
	if err := rotator.Rotate(ctx, c.String("secret-id")); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "Rotation completed successfully")
	return nil
}

func handleCancelRotationCommand(c *cli.Context) error {
	rotator, err := newRotator(c.Context)
	if err != nil {
		return fmt.Errorf("failed to create rotator: %w", err)
	}

	secretID := c.String("secret-id")
	fmt.Fprintf(c.App.Writer, "Cancelling pending rotation for secret: %s\n", secretID)

	if err := rotator.CancelRotation(c.Context, secretID, c.String("version-id")); err != nil {
		return err
	}

	fmt.Fprintln(c.App.Writer, "Successfully cancelled pending rotation")
	return nil
}

func main() {
	app := &cli.App{
		Name:           "rotator",
		Usage:          "Secrets Manager rotation function for the login session keys",
		DefaultCommand: "rotate",
		Commands: []*cli.Command{
			{
				Name:  "rotate",
				Usage: "Manually trigger a rotation",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "secret-id",
						Usage:    "Secret ID to rotate",
						Required: true,
						EnvVars:  []string{"SECRET_ID"},
					},
				},
				Action: handleRotateCommand,
			},
			{
				Name:  "cancel-rotation",
				Usage: "Cancel a pending rotation",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "secret-id",
						Usage:    "Secret ID with pending rotation",
						Required: true,
						EnvVars:  []string{"SECRET_ID"},
					},
					&cli.StringFlag{
						Name:     "version-id",
						Usage:    "Version ID of the pending rotation to cancel",
						Required: true,
					},
				},
				Action: handleCancelRotationCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
