package api

import (
	"context"

	"weft/internal/ingest"
)

// IngestService exposes batch ingestion returning API DTOs.
type IngestService struct {
	aggregator *ingest.Aggregator
}

// NewIngestService constructs an IngestService.
func NewIngestService(aggregator *ingest.Aggregator) *IngestService {
	if aggregator == nil {
		return nil
	}
	return &IngestService{aggregator: aggregator}
}

// Ingest processes one SDK batch.
func (s *IngestService) Ingest(ctx context.Context, sdkIdentity string, req IngestRequest) (IngestResponse, error) {
	events := ParseEventPayloads(req.Events)
	result, err := s.aggregator.Ingest(ctx, req.SessionID, sdkIdentity, req.BatchID, events)
	if err != nil {
		return IngestResponse{Collected: result.Collected}, err
	}
	return IngestResponse{
		Deduped:   result.Deduped,
		Saved:     result.Saved,
		Received:  len(events),
		Collected: result.Collected,
		NearLimit: result.NearLimit,
	}, nil
}
