package migrate

import (
	"context"
	"errors"
	"fmt"

	"github.com/0111v/projeto-faculdade/pkg/config"
	"github.com/0111v/projeto-faculdade/pkg/db"
	"github.com/0111v/projeto-faculdade/pkg/db/models"
	"github.com/0111v/projeto-faculdade/pkg/logger"
)

// MaybeRunDev brings the schema up to date at startup when running in dev with
// the auto-migrate flag on. Postgres runs the embedded goose files; sqlite has
// no goose history and is built from the gorm models.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "driver": cfg.DB.Driver})

	if cfg.DB.IsSQLite() {
		if err := AutoMigrateModels(ctx, client); err != nil {
			return err
		}
		logg.Info(ctx, "migrate.models_synced")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extract sql.DB: %w", err)
	}
	fsys, err := Source("")
	if err != nil {
		return err
	}
	m, err := NewMigrator(sqlDB, fsys)
	if err != nil {
		return err
	}
	applied, err := m.Up(ctx)
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "applied", applied), "migrate.up_completed")
	return nil
}

// AutoMigrateModels creates or alters every table from the gorm models.
func AutoMigrateModels(ctx context.Context, client *db.Client) error {
	if client == nil || client.DB() == nil {
		return errors.New("db client is required")
	}
	if err := client.DB().WithContext(ctx).AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto-migrate models: %w", err)
	}
	return nil
}
