package mcp

import (
	"context"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
)

// mockRetrievalService is a mock implementation of driving.RetrievalService.
type mockRetrievalService struct {
	results []domain.QueryResult
	stats   domain.StoreStats
	err     error

	gotQuery string
	gotK     int
}

func (m *mockRetrievalService) Retrieve(_ context.Context, query string, k int) ([]domain.QueryResult, error) {
	m.gotQuery = query
	m.gotK = k
	return m.results, m.err
}

func (m *mockRetrievalService) Count(_ context.Context) (int, error) {
	return m.stats.Documents, m.err
}

func (m *mockRetrievalService) Stats(_ context.Context) (domain.StoreStats, error) {
	return m.stats, m.err
}

// mockIngestService is a mock implementation of driving.IngestService.
type mockIngestService struct {
	report *domain.BatchReport
	err    error

	gotURLs   []string
	gotFolder string
}

func (m *mockIngestService) IngestFolder(_ context.Context, root string) (*domain.BatchReport, error) {
	m.gotFolder = root
	return m.report, m.err
}

func (m *mockIngestService) IngestURLs(_ context.Context, urls []string) (*domain.BatchReport, error) {
	m.gotURLs = urls
	return m.report, m.err
}

func (m *mockIngestService) IngestFiles(_ context.Context, _ []string) (*domain.BatchReport, error) {
	return m.report, m.err
}

func (m *mockIngestService) Stage() domain.Stage {
	return domain.StageIdle
}
