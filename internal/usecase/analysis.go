package usecase

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/haneul-palette/internal/auth"
	"github.com/example/haneul-palette/internal/imageprocessor"
	"github.com/example/haneul-palette/internal/logging"
	"github.com/example/haneul-palette/internal/repository"
	"github.com/example/haneul-palette/internal/skintone"
)

var (
	// ErrMissingInput means no image payload was supplied.
	ErrMissingInput = errors.New("no image provided")
	// ErrDecodeFailure means the payload could not be decoded into an image.
	ErrDecodeFailure = errors.New("image could not be processed")
	// ErrNotFound means no stored analysis matches a request id.
	ErrNotFound = errors.New("result not found")
	// ErrHistoryDisabled means no analysis repository is configured.
	ErrHistoryDisabled = errors.New("analysis history is disabled")
)

// Analysis sources recorded alongside each result.
const (
	SourceJSON   = "json"
	SourceUpload = "upload"
	SourceGRPC   = "grpc"
)

// AnalysisRepository defines the persistence operations needed by the use case.
type AnalysisRepository interface {
	SaveLog(ctx context.Context, log *repository.AnalysisLog) error
	FindByRequestID(ctx context.Context, requestID string) (*repository.AnalysisLog, error)
	CountByLabel(ctx context.Context, label string) (map[string]int64, error)
}

// Analysis is a classification together with its request metadata.
type Analysis struct {
	RequestID string             `json:"request_id"`
	Source    string             `json:"source"`
	Subject   string             `json:"subject,omitempty"`
	ImageSHA1 string             `json:"sha1_hash"`
	Result    skintone.Result    `json:"result"`
	FaceShape skintone.FaceShape `json:"face_shape"`
	Cached    bool               `json:"-"`
	CreatedAt time.Time          `json:"created_at"`
}

// classification is the per-image part of an Analysis, cached by content hash.
type classification struct {
	Result    skintone.Result    `json:"result"`
	FaceShape skintone.FaceShape `json:"face_shape"`
}

// AnalysisUseCase decodes images, classifies them and records the outcome.
// Cache and repository are optional; a nil value disables that concern.
type AnalysisUseCase struct {
	repo           AnalysisRepository
	cache          Cache
	decoder        imageprocessor.Decoder
	logger         *zap.Logger
	resultTTL      time.Duration
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewAnalysisUseCase constructs a new use case instance.
func NewAnalysisUseCase(repo AnalysisRepository, cache Cache, decoder imageprocessor.Decoder, logger *zap.Logger) *AnalysisUseCase {
	if decoder == nil {
		decoder = imageprocessor.ImagingDecoder{}
	}
	return &AnalysisUseCase{
		repo:           repo,
		cache:          cache,
		decoder:        decoder,
		logger:         logger.Named("analysis_usecase"),
		resultTTL:      24 * time.Hour,
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// Analyze classifies one image. Either the whole result is returned or an
// error wrapping ErrMissingInput or ErrDecodeFailure.
func (uc *AnalysisUseCase) Analyze(ctx context.Context, source string, imageBytes []byte) (*Analysis, error) {
	requestID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.analyze", requestID)

	if len(imageBytes) == 0 {
		return nil, logging.NewOperationError("usecase.analyze", requestID, ErrMissingInput)
	}

	sum := sha1.Sum(imageBytes)
	hashHex := hex.EncodeToString(sum[:])
	analysis := &Analysis{
		RequestID: requestID,
		Source:    source,
		ImageSHA1: hashHex,
		CreatedAt: time.Now().UTC(),
	}
	if subject, ok := auth.GetSubject(ctx); ok {
		analysis.Subject = subject
	}

	if cached, ok := uc.lookupByHash(ctx, requestID, hashHex); ok {
		analysis.Result = cached.Result
		analysis.FaceShape = cached.FaceShape
		analysis.Cached = true
		opLogger.Debug("classification served from cache", zap.String("sha1", hashHex))
	} else {
		img, err := uc.decoder.Decode(imageBytes)
		if err != nil {
			wrapped := logging.NewOperationError("usecase.decode_image", requestID, fmt.Errorf("%w: %v", ErrDecodeFailure, err))
			opLogger.Warn("image decode failed", zap.Error(err), zap.Int("bytes", len(imageBytes)))
			return nil, wrapped
		}
		analysis.Result = skintone.Classify(img)
		analysis.FaceShape = skintone.GuessFaceShape(img)
	}

	uc.store(ctx, analysis)

	opLogger.Info("image classified",
		zap.String("source", source),
		zap.String("undertone", string(analysis.Result.Undertone)),
		zap.String("brightness_softness", string(analysis.Result.BrightnessSoftness)),
		zap.String("depth", string(analysis.Result.Depth)),
		zap.String("face_shape", analysis.FaceShape.Name),
		zap.String("subject", analysis.Subject),
		zap.Bool("cached", analysis.Cached),
	)
	return analysis, nil
}

// GetResult retrieves a cached analysis or loads it from persistence.
func (uc *AnalysisUseCase) GetResult(ctx context.Context, requestID string) (*Analysis, error) {
	opLogger := logging.WithOperation(uc.logger, "usecase.get_result", requestID)

	if uc.cache != nil {
		cached, err := uc.withRedisGet(ctx, requestID, "cache.get.result", resultKey(requestID))
		if err == nil {
			var analysis Analysis
			if err := json.Unmarshal([]byte(cached), &analysis); err == nil {
				return &analysis, nil
			}
			opLogger.Warn("failed to decode cached result", zap.Error(err))
		} else if !errors.Is(err, redis.Nil) {
			opLogger.Warn("failed to read cache", zap.Error(err))
		}
	}

	if uc.repo == nil {
		return nil, logging.NewOperationError("usecase.get_result", requestID, ErrNotFound)
	}

	log, err := uc.repo.FindByRequestID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, logging.NewOperationError("usecase.get_result", requestID, ErrNotFound)
		}
		return nil, err
	}
	return fromLog(log), nil
}

func (uc *AnalysisUseCase) lookupByHash(ctx context.Context, requestID, hashHex string) (classification, bool) {
	if uc.cache == nil {
		return classification{}, false
	}

	cached, err := uc.withRedisGet(ctx, requestID, "cache.get.classification", classificationKey(hashHex))
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logging.WithOperation(uc.logger, "usecase.analyze", requestID).Warn("failed to read classification cache", zap.Error(err))
		}
		return classification{}, false
	}

	var entry classification
	if err := json.Unmarshal([]byte(cached), &entry); err != nil {
		logging.WithOperation(uc.logger, "usecase.analyze", requestID).Warn("failed to decode cached classification", zap.Error(err))
		return classification{}, false
	}
	// entries written before face shapes were cached are recomputed
	if entry.FaceShape.Name == "" || entry.Result.Undertone == "" {
		return classification{}, false
	}
	return entry, true
}

// store caches and persists a finished analysis. Failures are logged only:
// the classification itself has already succeeded.
func (uc *AnalysisUseCase) store(ctx context.Context, analysis *Analysis) {
	opLogger := logging.WithOperation(uc.logger, "usecase.store", analysis.RequestID)

	if uc.cache != nil {
		if !analysis.Cached {
			entry := classification{Result: analysis.Result, FaceShape: analysis.FaceShape}
			if payload, err := json.Marshal(entry); err == nil {
				if err := uc.withRedisRetry(ctx, analysis.RequestID, "cache.set.classification", func() error {
					return uc.cache.Set(ctx, classificationKey(analysis.ImageSHA1), string(payload), uc.resultTTL)
				}); err != nil {
					opLogger.Warn("failed to cache classification", zap.Error(err))
				}
			}
		}

		if payload, err := json.Marshal(analysis); err == nil {
			if err := uc.withRedisRetry(ctx, analysis.RequestID, "cache.set.result", func() error {
				return uc.cache.Set(ctx, resultKey(analysis.RequestID), string(payload), uc.resultTTL)
			}); err != nil {
				opLogger.Warn("failed to cache analysis result", zap.Error(err))
			}
		}
	}

	if uc.repo != nil {
		if err := uc.repo.SaveLog(ctx, toLog(analysis)); err != nil {
			opLogger.Error("failed to persist analysis log", zap.Error(err))
		}
	}
}

func (uc *AnalysisUseCase) withRedisRetry(ctx context.Context, requestID, operation string, fn func() error) error {
	if uc.retryAttempts <= 1 {
		err := fn()
		return logging.NewOperationError(operation, requestID, err)
	}

	backoff := uc.initialBackoff
	opLogger := logging.WithOperation(uc.logger, operation, requestID)
	var err error
	for attempt := 0; attempt < uc.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= uc.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("redis operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if errors.Is(err, redis.Nil) {
			return err
		}

		if !isTransientError(err) || attempt == uc.retryAttempts-1 {
			opLogger.Error("redis operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, requestID, err)
		}

		opLogger.Warn("transient redis error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}

func (uc *AnalysisUseCase) withRedisGet(ctx context.Context, requestID, operation, cacheKey string) (string, error) {
	var result string
	err := uc.withRedisRetry(ctx, requestID, operation, func() error {
		value, err := uc.cache.Get(ctx, cacheKey)
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	if err != nil {
		return "", err
	}
	return result, nil
}

func resultKey(requestID string) string {
	return fmt.Sprintf("analysis:%s", requestID)
}

func classificationKey(hashHex string) string {
	return fmt.Sprintf("classification:sha1:%s", hashHex)
}

func toLog(a *Analysis) *repository.AnalysisLog {
	r := a.Result
	return &repository.AnalysisLog{
		RequestID:          a.RequestID,
		Source:             a.Source,
		Subject:            a.Subject,
		ImageSHA1:          a.ImageSHA1,
		Undertone:          string(r.Undertone),
		BrightnessSoftness: string(r.BrightnessSoftness),
		Depth:              string(r.Depth),
		CheekR:             r.CheekSample.R(),
		CheekG:             r.CheekSample.G(),
		CheekB:             r.CheekSample.B(),
		NeckR:              r.NeckSample.R(),
		NeckG:              r.NeckSample.G(),
		NeckB:              r.NeckSample.B(),
		FaceShape:          a.FaceShape.Name,
		CreatedAt:          a.CreatedAt,
	}
}

func fromLog(log *repository.AnalysisLog) *Analysis {
	return &Analysis{
		RequestID: log.RequestID,
		Source:    log.Source,
		Subject:   log.Subject,
		ImageSHA1: log.ImageSHA1,
		Result: skintone.Result{
			Undertone:          skintone.Undertone(log.Undertone),
			BrightnessSoftness: skintone.BrightnessSoftness(log.BrightnessSoftness),
			Depth:              skintone.Depth(log.Depth),
			CheekSample:        skintone.Color{log.CheekR, log.CheekG, log.CheekB},
			NeckSample:         skintone.Color{log.NeckR, log.NeckG, log.NeckB},
		},
		FaceShape: skintone.FaceShapeByName(log.FaceShape),
		CreatedAt: log.CreatedAt,
	}
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
