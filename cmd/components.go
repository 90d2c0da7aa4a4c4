// File: cmd/components.go
package cmd

import (
	"context"
	"fmt"
	"os"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/glimpsehq/glimpse/internal/config"
	"github.com/glimpsehq/glimpse/internal/insight"
	"github.com/glimpsehq/glimpse/internal/llmclient"
	"github.com/glimpsehq/glimpse/internal/observability"
	"github.com/glimpsehq/glimpse/internal/retriever"
)

// appComponents holds the initialized services behind one CLI invocation.
type appComponents struct {
	Store     *config.Store
	Retriever *retriever.Retriever
	Engine    *insight.Insight
}

// Shutdown releases the browser process.
func (ac *appComponents) Shutdown() {
	if ac.Retriever != nil {
		ac.Retriever.Close()
	}
}

// initializeComponents handles dependency injection for the perception commands.
func initializeComponents(cfg *config.Config, logger *zap.Logger) (*appComponents, error) {
	client, err := llmclient.NewClient(cfg.Model, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize model client: %w", err)
	}
	perception := llmclient.NewPerceptionClient(client, logger)

	store := config.NewStore(cfg)
	ret := retriever.New(cfg.Browser, logger)

	engine, err := insight.New(logger, insight.Deps{
		Store:     store,
		Retriever: ret,
		Section:   perception,
		Element:   perception,
		Extract:   perception,
		Assert:    perception,
		Emitter:   insight.NewDumpEmitter(cfg.Insight, logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize insight engine: %w", err)
	}

	return &appComponents{Store: store, Retriever: ret, Engine: engine}, nil
}

// openPage validates the --url flag and points the browser at it.
func openPage(ctx context.Context, components *appComponents) error {
	if pageURL == "" {
		return fmt.Errorf("the --url flag is required")
	}
	if err := components.Retriever.Navigate(ctx, pageURL); err != nil {
		return err
	}
	return nil
}

// printResult renders a command result as indented JSON on stdout.
func printResult(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render result: %w", err)
	}
	fmt.Fprintln(os.Stdout, string(out))
	return nil
}

// getLogger is a small alias to keep the command bodies compact.
func getLogger() *zap.Logger { return observability.GetLogger() }
