package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"gorm.io/gorm"

	"raceday-api/config"
	"raceday-api/database"
	"raceday-api/secrets"
	"raceday-api/storage"
)

// secretsProvider prefers SSM parameters over plain environment values and
// caches whatever it resolves.
func secretsProvider(ctx context.Context, cfg *config.Config) (*secrets.CachedProvider, error) {
	static := secrets.Static{
		secrets.AdminLogin:    cfg.AdminLogin,
		secrets.AdminPassword: cfg.AdminPassword,
		secrets.DatabaseURL:   cfg.DatabaseURL,
	}

	params := map[string]string{
		secrets.AdminLogin:    cfg.AdminLoginSSM,
		secrets.AdminPassword: cfg.AdminPasswordSSM,
		secrets.DatabaseURL:   cfg.DatabaseURLSSM,
	}
	if cfg.AdminLoginSSM == "" && cfg.AdminPasswordSSM == "" && cfg.DatabaseURLSSM == "" {
		return secrets.NewCachedProvider(static, cfg.SecretsCacheTTL), nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	ssmProvider := secrets.NewSSMProvider(ssm.NewFromConfig(awsCfg), params)

	return secrets.NewCachedProvider(secrets.Chain{ssmProvider, static}, cfg.SecretsCacheTTL), nil
}

func openDatabase(ctx context.Context, cfg *config.Config, provider secrets.Provider) (*gorm.DB, error) {
	url, err := provider.Get(ctx, secrets.DatabaseURL)
	if err != nil {
		if errors.Is(err, secrets.ErrNotFound) {
			return nil, errors.New("DATABASE_URL is not set")
		}
		return nil, err
	}

	db, err := database.Initialize(cfg.DBDriver, url, database.Options{
		MaxOpenConns: cfg.DBMaxPool,
		Debug:        cfg.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

// routeStore falls back to a store that rejects uploads when no bucket is
// configured, so JSON-only deployments still start.
func routeStore(ctx context.Context, cfg *config.Config) (storage.RouteStore, error) {
	if cfg.RoutesBucket == "" {
		slog.Warn("ROUTES_BUCKET not set, GPX uploads are disabled")
		return storage.Disabled{}, nil
	}

	store, err := storage.NewS3Store(ctx, storage.S3Config{
		Bucket:         cfg.RoutesBucket,
		Region:         cfg.AWSRegion,
		Endpoint:       cfg.S3Endpoint,
		PublicBaseURL:  cfg.S3PublicBaseURL,
		ForcePathStyle: cfg.S3ForcePathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("configure route storage: %w", err)
	}
	return store, nil
}
