// Command ragpipe ingests documents and web pages into a vector store and
// answers similarity queries against it.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/ragpipe/internal/adapters/driving/cli"
	"github.com/custodia-labs/ragpipe/internal/app"
	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/core/ports/driving"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.SetVersion(version)
	cli.Configure(openSettings, build)

	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func openSettings(configDir string) (driving.SettingsService, error) {
	return app.NewSettingsService(configDir)
}

func build(ctx context.Context, settings *domain.Settings, opts cli.BuildOptions) (*cli.Services, error) {
	a, err := app.Build(ctx, settings, app.Options{
		ConfigDir:  opts.ConfigDir,
		PersistDir: opts.PersistDir,
		Version:    opts.Version,
	})
	if err != nil {
		return nil, err
	}
	return &cli.Services{
		Ingest:    a.Ingest,
		Retrieval: a.Retrieval,
		Metrics:   a.Metrics.Handler(),
		Requests:  a.Metrics,
		Close:     a.Close,
	}, nil
}
