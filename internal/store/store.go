package store

import (
	stderrors "errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/craftbridge/catalog-backend/internal/config"
	"github.com/craftbridge/catalog-backend/internal/platform/logger"
	"github.com/craftbridge/catalog-backend/internal/types"
)

// Sentinels the repos translate gorm outcomes into. The upload core
// maps these onto its own error taxonomy; nothing above the repos
// should import gorm to interpret a failure.
var (
	ErrNotFound = stderrors.New("record not found")
	// ErrConflict means a conditional update matched zero rows because
	// the record was not in any of the expected states.
	ErrConflict = stderrors.New("state conflict")
)

type Service struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewService(log *logger.Logger, cfg config.StoreConfig) (*Service, error) {
	serviceLog := log.With("service", "StoreService")

	var dialector gorm.Dialector
	switch cfg.Mode {
	case "postgres":
		dsn := fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=disable",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name,
		)
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported store mode %q", cfg.Mode)
	}

	serviceLog.Info("Connecting to session store...", "mode", cfg.Mode)
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect to %s store: %w", cfg.Mode, err)
	}

	return &Service{db: db, log: serviceLog}, nil
}

func (s *Service) DB() *gorm.DB { return s.db }

func (s *Service) AutoMigrateAll() error {
	s.log.Info("Auto migrating store tables...")
	if err := s.db.AutoMigrate(
		&types.UploadSession{},
		&types.UploadPart{},
		&types.CatalogRecord{},
	); err != nil {
		return fmt.Errorf("auto migrate store tables: %w", err)
	}
	return nil
}
