package firebase_client

import (
	"context"
	"encoding/base64"

	firebase "firebase.google.com/go/v4"
	"github.com/busify/busify/pkg/config"
	"github.com/busify/busify/pkg/util"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

// NewApp builds the Firebase app from a credentials file, or from a base64 service account in BUSIFY_FIREBASE_SERVICE_ACCOUNT
func NewApp(ctx context.Context, cfg config.FirebaseConfig) (*firebase.App, error) {
	var opts []option.ClientOption

	env := util.GetEnvironmentVariables()
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	} else if env["BUSIFY_FIREBASE_SERVICE_ACCOUNT"] != "" {
		decodedKey, err := base64.StdEncoding.DecodeString(env["BUSIFY_FIREBASE_SERVICE_ACCOUNT"])
		if err != nil {
			return nil, err
		}

		opts = append(opts, option.WithCredentialsJSON(decodedKey))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID:     cfg.ProjectID,
		StorageBucket: cfg.StorageBucket,
	}, opts...)
	if err != nil {
		return nil, err
	}

	log.Info().Str("project", cfg.ProjectID).Msg("Firebase app setup")

	return app, nil
}
