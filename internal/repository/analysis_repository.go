package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/haneul-palette/internal/logging"
)

// ErrNotFound is returned when no log exists for a request id.
var ErrNotFound = errors.New("analysis log not found")

// AnalysisLog represents a persisted classification.
type AnalysisLog struct {
	ID                 uint      `gorm:"primaryKey"`
	RequestID          string    `gorm:"column:request_id;uniqueIndex;size:64"`
	Source             string    `gorm:"column:source;size:16"`
	Subject            string    `gorm:"column:subject;index;size:128"`
	ImageSHA1          string    `gorm:"column:image_sha1;index;size:40"`
	Undertone          string    `gorm:"column:undertone;size:16"`
	BrightnessSoftness string    `gorm:"column:brightness_softness;size:16"`
	Depth              string    `gorm:"column:depth;size:16"`
	CheekR             float64   `gorm:"column:cheek_r"`
	CheekG             float64   `gorm:"column:cheek_g"`
	CheekB             float64   `gorm:"column:cheek_b"`
	NeckR              float64   `gorm:"column:neck_r"`
	NeckG              float64   `gorm:"column:neck_g"`
	NeckB              float64   `gorm:"column:neck_b"`
	FaceShape          string    `gorm:"column:face_shape;size:16"`
	CreatedAt          time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (AnalysisLog) TableName() string {
	return "analysis_logs"
}

// AnalysisRepository provides persistence APIs for analysis logs.
type AnalysisRepository struct {
	db             *gorm.DB
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewAnalysisRepository creates a new repository instance.
func NewAnalysisRepository(db *gorm.DB, logger *zap.Logger) *AnalysisRepository {
	return &AnalysisRepository{
		db:             db,
		logger:         logger.Named("analysis_repository"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// AutoMigrate ensures the schema is available.
func (r *AnalysisRepository) AutoMigrate(ctx context.Context) error {
	return r.executeWithRetry(ctx, "repository.auto_migrate", "", func() error {
		return r.db.WithContext(ctx).AutoMigrate(&AnalysisLog{})
	})
}

// SaveLog persists an analysis log entry.
func (r *AnalysisRepository) SaveLog(ctx context.Context, log *AnalysisLog) error {
	return r.executeWithRetry(ctx, "repository.save_log", log.RequestID, func() error {
		return r.db.WithContext(ctx).Create(log).Error
	})
}

// FindByRequestID retrieves the analysis log for a request.
func (r *AnalysisRepository) FindByRequestID(ctx context.Context, requestID string) (*AnalysisLog, error) {
	var log AnalysisLog
	err := r.executeWithRetry(ctx, "repository.find_by_request_id", requestID, func() error {
		err := r.db.WithContext(ctx).First(&log, "request_id = ?", requestID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &log, nil
}

// labelColumns lists the columns CountByLabel may group by.
var labelColumns = map[string]bool{
	"undertone":           true,
	"brightness_softness": true,
	"depth":               true,
	"face_shape":          true,
	"source":              true,
}

// CountByLabel returns how many logs carry each value of a label column.
func (r *AnalysisRepository) CountByLabel(ctx context.Context, label string) (map[string]int64, error) {
	if !labelColumns[label] {
		return nil, logging.NewOperationError("repository.count_by_label", "", fmt.Errorf("unknown label column %q", label))
	}

	var rows []struct {
		Label string
		Total int64
	}
	err := r.executeWithRetry(ctx, "repository.count_by_label", "", func() error {
		rows = rows[:0]
		return r.db.WithContext(ctx).
			Model(&AnalysisLog{}).
			Select(label + " AS label, COUNT(*) AS total").
			Group(label).
			Scan(&rows).Error
	})
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Label] = row.Total
	}
	return counts, nil
}

func (r *AnalysisRepository) executeWithRetry(ctx context.Context, operation, requestID string, fn func() error) error {
	attempts := r.retryAttempts
	if attempts < 1 {
		attempts = 1
	}

	opLogger := logging.WithOperation(r.logger, operation, requestID)
	backoff := r.initialBackoff
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= r.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			return nil
		}
		if !isTransientError(err) {
			break
		}
		opLogger.Warn("transient database error", zap.Error(err), zap.Int("attempt", attempt+1))
	}

	if !errors.Is(err, ErrNotFound) {
		opLogger.Error("database operation failed", zap.Error(err))
	}
	return logging.NewOperationError(operation, requestID, err)
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	return false
}
