package usecase

import (
	"context"

	"github.com/example/haneul-palette/internal/logging"
)

// MetricsSummary counts persisted analyses per label.
type MetricsSummary struct {
	TotalAnalyses      int64            `json:"total_analyses"`
	Undertone          map[string]int64 `json:"undertone"`
	BrightnessSoftness map[string]int64 `json:"brightness_softness"`
	Depth              map[string]int64 `json:"depth"`
	FaceShape          map[string]int64 `json:"face_shape"`
}

// GetMetricsSummary aggregates label distributions from persisted logs.
func (uc *AnalysisUseCase) GetMetricsSummary(ctx context.Context) (*MetricsSummary, error) {
	if uc.repo == nil {
		return nil, logging.NewOperationError("usecase.metrics_summary", "", ErrHistoryDisabled)
	}

	undertone, err := uc.repo.CountByLabel(ctx, "undertone")
	if err != nil {
		return nil, err
	}
	softness, err := uc.repo.CountByLabel(ctx, "brightness_softness")
	if err != nil {
		return nil, err
	}
	depth, err := uc.repo.CountByLabel(ctx, "depth")
	if err != nil {
		return nil, err
	}
	shapes, err := uc.repo.CountByLabel(ctx, "face_shape")
	if err != nil {
		return nil, err
	}

	summary := &MetricsSummary{
		Undertone:          undertone,
		BrightnessSoftness: softness,
		Depth:              depth,
		FaceShape:          shapes,
	}
	for _, count := range undertone {
		summary.TotalAnalyses += count
	}
	return summary, nil
}
