package wait

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"n8n-gportal/internal/config"
	"n8n-gportal/pkg/errors"
	"n8n-gportal/pkg/logger"
	"n8n-gportal/pkg/retry"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// waitRecord is the persisted form of a Wait
type waitRecord struct {
	ExecutionID string    `gorm:"primaryKey;size:64"`
	NodeName    string    `gorm:"size:255;not null"`
	Until       time.Time `gorm:"column:wait_until;not null;index:idx_execution_waits_status_until,priority:2"`
	Status      string    `gorm:"size:16;not null;index:idx_execution_waits_status_until,priority:1"`
	Trigger     string    `gorm:"column:resume_trigger;size:32"`
	CreatedAt   time.Time
	ResumedAt   *time.Time
}

func (waitRecord) TableName() string { return "execution_waits" }

func (r *waitRecord) toWait() *Wait {
	return &Wait{
		ExecutionID: r.ExecutionID,
		NodeName:    r.NodeName,
		Until:       r.Until.UTC(),
		Status:      Status(r.Status),
		Trigger:     r.Trigger,
		CreatedAt:   r.CreatedAt.UTC(),
		ResumedAt:   r.ResumedAt,
	}
}

// GormStore persists waits in SQLite or PostgreSQL
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps db and migrates the waits table
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&waitRecord{}); err != nil {
		return nil, errors.DatabaseError("migrate execution_waits", err)
	}
	return &GormStore{db: db}, nil
}

// Open connects to the database selected by cfg.Wait.Driver
func Open(ctx context.Context, cfg *config.Config, log logger.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Wait.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.Wait.SQLitePath)
	case "postgres":
		dialector = postgres.Open(cfg.PostgresDSN())
	default:
		return nil, fmt.Errorf("wait driver %q has no database", cfg.Wait.Driver)
	}

	var gormLog gormlogger.Interface = logger.NewGormLogger(log)
	if cfg.Database.EnableQueryLogging {
		gormLog = gormLog.LogMode(gormlogger.Info)
	}

	retryer := retry.New(retry.DatabasePolicy()).
		If(retry.Always).
		OnRetry(func(attempt int, err error, delay time.Duration) {
			log.Warn("Database not reachable, retrying", "driver", cfg.Wait.Driver, "attempt", attempt, "delay", delay, "error", err)
		})
	db, err := retry.Value(ctx, retryer, func(ctx context.Context, attempt int) (*gorm.DB, error) {
		return gorm.Open(dialector, &gorm.Config{
			Logger:                 gormLog,
			SkipDefaultTransaction: true,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Wait.Driver == "postgres" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConnections)
		sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConnections)
		sqlDB.SetConnMaxLifetime(cfg.Database.ConnectionLifetime)
	}
	return db, nil
}

// NewStore builds the store for cfg.Wait.Driver
func NewStore(ctx context.Context, cfg *config.Config, log logger.Logger) (Store, error) {
	if cfg.Wait.Driver == "memory" {
		return NewMemoryStore(), nil
	}
	db, err := Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return NewGormStore(db)
}

func (s *GormStore) Save(ctx context.Context, w *Wait) error {
	rec := waitRecord{
		ExecutionID: w.ExecutionID,
		NodeName:    w.NodeName,
		Until:       w.Until.UTC(),
		Status:      string(w.Status),
		Trigger:     w.Trigger,
		CreatedAt:   w.CreatedAt.UTC(),
		ResumedAt:   w.ResumedAt,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rec).Error
	if err != nil {
		return errors.DatabaseError("save wait", err)
	}
	return nil
}

func (s *GormStore) Get(ctx context.Context, executionID string) (*Wait, error) {
	var rec waitRecord
	err := s.db.WithContext(ctx).First(&rec, "execution_id = ?", executionID).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundError(executionID)
	}
	if err != nil {
		return nil, errors.DatabaseError("get wait", err)
	}
	return rec.toWait(), nil
}

func (s *GormStore) MarkResumed(ctx context.Context, executionID, trigger string, at time.Time) (*Wait, error) {
	res := s.db.WithContext(ctx).
		Model(&waitRecord{}).
		Where("execution_id = ? AND status = ?", executionID, string(StatusWaiting)).
		Updates(map[string]any{
			"status":         string(StatusResumed),
			"resume_trigger": trigger,
			"resumed_at":     at,
		})
	if res.Error != nil {
		return nil, errors.DatabaseError("resume wait", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.Get(ctx, executionID); err != nil {
			return nil, err
		}
		return nil, notWaitingError(executionID)
	}
	return s.Get(ctx, executionID)
}

func (s *GormStore) ListExpired(ctx context.Context, now time.Time) ([]*Wait, error) {
	var recs []waitRecord
	err := s.db.WithContext(ctx).
		Where("status = ? AND wait_until <= ?", string(StatusWaiting), now.UTC()).
		Order("wait_until").
		Find(&recs).Error
	if err != nil {
		return nil, errors.DatabaseError("list expired waits", err)
	}

	waits := make([]*Wait, 0, len(recs))
	for i := range recs {
		waits = append(waits, recs[i].toWait())
	}
	return waits, nil
}

func (s *GormStore) CountWaiting(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&waitRecord{}).Where("status = ?", string(StatusWaiting)).Count(&n).Error
	if err != nil {
		return 0, errors.DatabaseError("count waits", err)
	}
	return n, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
