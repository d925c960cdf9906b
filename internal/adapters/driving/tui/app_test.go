package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragpipe/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/ragpipe/internal/core/domain"
)

type mockRetrievalService struct {
	stats domain.StoreStats
	err   error
}

func (m *mockRetrievalService) Retrieve(_ context.Context, _ string, _ int) ([]domain.QueryResult, error) {
	return nil, m.err
}

func (m *mockRetrievalService) Count(_ context.Context) (int, error) { return m.stats.Documents, m.err }

func (m *mockRetrievalService) Stats(_ context.Context) (domain.StoreStats, error) {
	return m.stats, m.err
}

type mockIngestService struct{}

func (mockIngestService) IngestFolder(context.Context, string) (*domain.BatchReport, error) {
	return &domain.BatchReport{Stage: domain.StageStored}, nil
}

func (mockIngestService) IngestURLs(context.Context, []string) (*domain.BatchReport, error) {
	return &domain.BatchReport{Stage: domain.StageStored}, nil
}

func (mockIngestService) IngestFiles(context.Context, []string) (*domain.BatchReport, error) {
	return &domain.BatchReport{Stage: domain.StageStored}, nil
}

func (mockIngestService) Stage() domain.Stage { return domain.StageIdle }

func newTestApp(t *testing.T, ports *Ports) *App {
	t.Helper()
	app, err := NewApp(ports)
	require.NoError(t, err)
	app.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return app
}

func key(k tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: k} }

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func TestNewApp(t *testing.T) {
	t.Run("requires retrieval", func(t *testing.T) {
		app, err := NewApp(&Ports{})
		assert.Nil(t, app)
		assert.ErrorIs(t, err, ErrMissingRetrievalService)
	})

	t.Run("starts on the query view", func(t *testing.T) {
		app, err := NewApp(&Ports{Retrieval: &mockRetrievalService{}})
		require.NoError(t, err)
		assert.Equal(t, messages.ViewQuery, app.CurrentView())
		assert.False(t, app.Ready())
		assert.Equal(t, "Initialising...", app.View())
		assert.NotNil(t, app.Init())
	})
}

func TestApp_Stats(t *testing.T) {
	stats := domain.StoreStats{Backend: "sqlite", Model: "hashing", Dimensions: 64, Documents: 12}
	app := newTestApp(t, &Ports{Retrieval: &mockRetrievalService{stats: stats}})

	msg := app.loadStats()()
	app.Update(msg)

	assert.Equal(t, stats, app.Stats())
	assert.Contains(t, app.View(), "sqlite | hashing (64 dims) | 12 chunks")
}

func TestApp_StatsError(t *testing.T) {
	app := newTestApp(t, &Ports{Retrieval: &mockRetrievalService{err: errors.New("locked")}})

	app.Update(app.loadStats()())

	assert.Contains(t, app.View(), "store: locked")
}

func TestApp_SwitchView(t *testing.T) {
	app := newTestApp(t, &Ports{Retrieval: &mockRetrievalService{}, Ingest: mockIngestService{}})

	app.Update(key(tea.KeyTab))
	assert.Equal(t, messages.ViewIngest, app.CurrentView())
	assert.Contains(t, app.View(), "Ingest:")

	app.Update(key(tea.KeyEsc))
	assert.Equal(t, messages.ViewQuery, app.CurrentView())

	app.Update(messages.ViewChanged{View: messages.ViewIngest})
	assert.Equal(t, messages.ViewIngest, app.CurrentView())
}

func TestApp_NoIngestTab(t *testing.T) {
	app := newTestApp(t, &Ports{Retrieval: &mockRetrievalService{}})

	app.Update(key(tea.KeyTab))
	app.Update(messages.ViewChanged{View: messages.ViewIngest})

	assert.Equal(t, messages.ViewQuery, app.CurrentView())
	assert.NotContains(t, app.View(), "Ingest")
}

func TestApp_Quit(t *testing.T) {
	app := newTestApp(t, &Ports{Retrieval: &mockRetrievalService{}})

	_, cmd := app.Update(key(tea.KeyCtrlC))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	_, cmd = app.Update(key(tea.KeyEsc))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestApp_TypingQ(t *testing.T) {
	app := newTestApp(t, &Ports{Retrieval: &mockRetrievalService{}})

	app.Update(runes("q"))

	assert.Equal(t, "q", app.queryView.Query())
}

func TestApp_IngestCompletedReloadsStats(t *testing.T) {
	app := newTestApp(t, &Ports{Retrieval: &mockRetrievalService{}, Ingest: mockIngestService{}})

	_, cmd := app.Update(messages.IngestCompleted{Target: "/docs", Report: &domain.BatchReport{Stage: domain.StageStored}})

	assert.NotNil(t, cmd)
	assert.NotNil(t, app.ingestView.Report())
}
