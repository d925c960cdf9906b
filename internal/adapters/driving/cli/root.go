// Package cli implements the ragpipe command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragpipe/internal/adapters/driving/api"
	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/core/ports/driving"
	"github.com/custodia-labs/ragpipe/internal/logger"
)

// version is set at build time with -ldflags.
var version = "dev"

// annotationPipeline marks commands that need the embedder and store.
const annotationPipeline = "ragpipe/pipeline"

// Services are the pipeline services commands run against.
type Services struct {
	Ingest    driving.IngestService
	Retrieval driving.RetrievalService

	// Metrics serves the Prometheus registry; may be nil.
	Metrics http.Handler

	// Requests observes HTTP API requests; may be nil.
	Requests api.RequestRecorder

	// Close releases the store and embedder.
	Close func() error
}

// BuildOptions carries the root flags that affect assembly.
type BuildOptions struct {
	ConfigDir  string
	PersistDir string
	Version    string
}

// SettingsOpener opens the settings of a config directory.
type SettingsOpener func(configDir string) (driving.SettingsService, error)

// Builder assembles the pipeline services from settings.
type Builder func(ctx context.Context, settings *domain.Settings, opts BuildOptions) (*Services, error)

var (
	settingsService  driving.SettingsService
	ingestService    driving.IngestService
	retrievalService driving.RetrievalService
	metricsHandler   http.Handler
	requestRecorder  api.RequestRecorder

	openSettings  SettingsOpener
	buildServices Builder
	closeServices func() error
)

// Root flags.
var (
	verbose    bool
	logFormat  string
	configDir  string
	persistDir string
)

var rootCmd = &cobra.Command{
	Use:   "ragpipe",
	Short: "Ingest documents and web pages into a vector store and query them",
	Long: `ragpipe extracts text from local folders (PDF, DOCX, TXT and more) and
web pages, cleans and chunks it, embeds every chunk and stores the vectors
for similarity search.

Get started:
  ragpipe ingest folder ./docs
  ragpipe query "how do I reset my password?"`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Configure registers how settings are opened and services are built.
func Configure(open SettingsOpener, build Builder) {
	openSettings = open
	buildServices = build
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command and releases any services it built.
func Execute(ctx context.Context) error {
	defer shutdown()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	flags.StringVar(&logFormat, "log-format", "", "log format: text or json (default from log.format)")
	flags.StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.ragpipe)")
	flags.StringVar(&persistDir, "persist-dir", "", "vector store directory (default <config-dir>/data)")
}

// setup loads .env files, configures logging and builds the services the
// command needs.
func setup(cmd *cobra.Command, _ []string) error {
	if err := loadDotEnv(configDir); err != nil {
		return err
	}
	logger.SetVerbose(verbose)

	if settingsService == nil && openSettings != nil {
		svc, err := openSettings(configDir)
		if err != nil {
			return fmt.Errorf("open settings: %w", err)
		}
		settingsService = svc
	}

	format := logFormat
	if format == "" && settingsService != nil {
		if v, err := settingsService.Value("log.format"); err == nil {
			format = v
		}
	}
	logger.SetFormat(logger.Format(format))

	if cmd.Annotations[annotationPipeline] == "" || ingestService != nil || buildServices == nil {
		return nil
	}
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	svcs, err := buildServices(cmd.Context(), settings, BuildOptions{
		ConfigDir:  configDir,
		PersistDir: persistDir,
		Version:    version,
	})
	if err != nil {
		return err
	}
	ingestService = svcs.Ingest
	retrievalService = svcs.Retrieval
	metricsHandler = svcs.Metrics
	requestRecorder = svcs.Requests
	closeServices = svcs.Close
	return nil
}

// loadDotEnv loads .env from the working directory and the config directory.
// Variables already set in the environment win.
func loadDotEnv(dir string) error {
	files := []string{".env"}
	if dir != "" {
		files = append(files, filepath.Join(dir, ".env"))
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func shutdown() {
	if closeServices == nil {
		return
	}
	if err := closeServices(); err != nil {
		logger.Warn("shutdown: %v", err)
	}
	closeServices = nil
}

// pipeline marks a command as needing the embedder and store.
func pipeline(cmd *cobra.Command) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = make(map[string]string)
	}
	cmd.Annotations[annotationPipeline] = "true"
	return cmd
}
