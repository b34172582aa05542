package usecase

import "context"

// MetricsSummary represents aggregated verification insights.
type MetricsSummary struct {
	TotalRequests              int64   `json:"total_requests"`
	SuccessfulRequests         int64   `json:"successful_requests"`
	SuccessRate                float64 `json:"success_rate"`
	AverageDistance            float64 `json:"average_distance"`
	AverageProcessingLatencyMs float64 `json:"average_processing_latency_ms"`
}

// GetMetricsSummary aggregates verification metrics from persisted logs.
func (uc *ProfileUseCase) GetMetricsSummary(ctx context.Context) (*MetricsSummary, error) {
	aggregation, err := uc.logs.AggregateMetrics(ctx)
	if err != nil {
		return nil, err
	}

	summary := &MetricsSummary{
		TotalRequests:              aggregation.TotalCount,
		SuccessfulRequests:         aggregation.MatchedCount,
		AverageDistance:            aggregation.AverageDistance,
		AverageProcessingLatencyMs: aggregation.AverageProcessingMs,
	}

	if aggregation.TotalCount > 0 {
		summary.SuccessRate = float64(aggregation.MatchedCount) / float64(aggregation.TotalCount)
	}

	return summary, nil
}
