package firebase

import (
	"context"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	apperrors "github.com/anonto42/campus-connect/backend/pkg/errors"
	"github.com/anonto42/campus-connect/backend/pkg/logger"
	"google.golang.org/api/option"
)

// Settings selects the service account and the checks applied to ID tokens
type Settings struct {
	CredentialsPath string
	// ProjectID overrides the project named in the service account
	ProjectID string
	// CheckRevoked also rejects tokens of disabled users or revoked sessions. It costs one
	// auth API call per request.
	CheckRevoked bool
}

// Verifier checks Firebase ID tokens presented to the API
type Verifier struct {
	client       *auth.Client
	checkRevoked bool
}

func NewVerifier(ctx context.Context, settings Settings) (*Verifier, error) {
	if settings.CredentialsPath == "" {
		return nil, apperrors.Validation("firebase credentials path not provided")
	}
	if _, err := os.Stat(settings.CredentialsPath); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeValidation, "firebase credentials file not readable")
	}

	var conf *firebase.Config
	if settings.ProjectID != "" {
		conf = &firebase.Config{ProjectID: settings.ProjectID}
	}
	app, err := firebase.NewApp(ctx, conf, option.WithCredentialsFile(settings.CredentialsPath))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to initialize firebase app")
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to create firebase auth client")
	}

	logger.Info("Firebase token verification enabled",
		"project", settings.ProjectID, "check_revoked", settings.CheckRevoked)
	return &Verifier{client: client, checkRevoked: settings.CheckRevoked}, nil
}

// VerifyIDToken returns the token's claims when it is valid for this project
func (v *Verifier) VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error) {
	if v.checkRevoked {
		return v.client.VerifyIDTokenAndCheckRevoked(ctx, idToken)
	}
	return v.client.VerifyIDToken(ctx, idToken)
}
