package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragpipe/internal/adapters/driven/config/file"
	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/core/ports/driving"
	"github.com/custodia-labs/ragpipe/internal/core/services"
)

// mockIngestService implements driving.IngestService for CLI tests.
type mockIngestService struct {
	report *domain.BatchReport
	err    error

	gotFolder string
	gotURLs   []string
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

func (m *mockIngestService) Stage() domain.Stage { return domain.StageIdle }

// mockRetrievalService implements driving.RetrievalService for CLI tests.
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

func sampleReport() *domain.BatchReport {
	return &domain.BatchReport{
		JobID:   "job-1",
		Stage:   domain.StageStored,
		Records: 2,
		Chunks:  3,
		Stored:  3,
		Outcomes: []domain.ItemOutcome{
			{Item: "notes.txt", Kind: domain.ItemFile, Stage: domain.StageExtracting, Status: domain.OutcomeOK},
			{Item: "budget.xlsx", Kind: domain.ItemFile, Stage: domain.StageExtracting, Status: domain.OutcomeExcluded, Reason: "spreadsheets are excluded"},
		},
	}
}

func sampleResults() []domain.QueryResult {
	return []domain.QueryResult{
		{
			Document: domain.IndexedDocument{
				ID:       "doc-1",
				Text:     "Reset your password from   the settings page.",
				Metadata: map[string]string{domain.MetaSource: "faq.txt"},
			},
			Score: 0.912,
		},
	}
}

// testServices holds the mocks installed by setupTestServices.
type testServices struct {
	ingest    *mockIngestService
	retrieval *mockRetrievalService
	settings  *services.SettingsService
}

// setupTestServices installs mock services and resets command flags.
// The returned function restores the previous state.
func setupTestServices(t *testing.T) (*testServices, func()) {
	t.Helper()

	store, err := file.NewConfigStore(t.TempDir())
	require.NoError(t, err)

	ts := &testServices{
		ingest:    &mockIngestService{report: sampleReport()},
		retrieval: &mockRetrievalService{results: sampleResults()},
		settings: services.NewSettingsService(store, services.WithLookupEnv(func(string) (string, bool) {
			return "", false
		})),
	}

	prevSettings, prevIngest, prevRetrieval := settingsService, ingestService, retrievalService
	settingsService = ts.settings
	ingestService = ts.ingest
	retrievalService = ts.retrieval

	return ts, func() {
		settingsService, ingestService, retrievalService = prevSettings, prevIngest, prevRetrieval
		resetFlags()
	}
}

// resetFlags restores flag variables that persist between executions.
func resetFlags() {
	queryLimit = domain.DefaultRetrievalK
	queryJSON = false
	ingestJSON = false
	statsJSON = false
	verbose = false
	logFormat = ""
	rootCmd.SetArgs(nil)
}

var _ driving.SettingsService = (*services.SettingsService)(nil)
