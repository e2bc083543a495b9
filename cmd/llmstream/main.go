// Command llmstream streams chat completions from a terminal or relays them
// to HTTP clients as server-sent events.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kbukum/llmstream/llm"
	_ "github.com/kbukum/llmstream/llm/anthropic"
	_ "github.com/kbukum/llmstream/llm/gemini"
	_ "github.com/kbukum/llmstream/llm/ollama"
	_ "github.com/kbukum/llmstream/llm/openai"
	"github.com/kbukum/llmstream/logger"
	"github.com/kbukum/llmstream/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app is the state shared by subcommands after configuration is loaded.
type app struct {
	cfg      *AppConfig
	log      *logger.Logger
	adapter  *llm.Adapter
	shutdown observability.ShutdownFunc
}

func newRootCmd() *cobra.Command {
	var configPath string
	flags := &llmFlags{}

	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Stream LLM chat completions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: llmstream.yml or config.yml)")
	root.PersistentFlags().StringVar(&flags.dialect, "dialect", "", "provider dialect: "+fmt.Sprint(llm.Dialects()))
	root.PersistentFlags().StringVar(&flags.model, "model", "", "model name")
	root.PersistentFlags().StringVar(&flags.baseURL, "base-url", "", "provider base URL")
	root.PersistentFlags().StringVar(&flags.apiKey, "api-key", "", "provider API key")

	setup := func(cmd *cobra.Command) (*app, error) {
		cfg, err := loadConfig(configPath, flags)
		if err != nil {
			return nil, err
		}
		log := logger.NewWithWriter(cmd.ErrOrStderr(), &cfg.Logging, cfg.Name)
		logger.SetGlobalLogger(log)
		logger.Register("llm", log.WithComponent("llm"))

		shutdown, err := observability.Setup(cmd.Context(), cfg.Observability)
		if err != nil {
			return nil, err
		}
		adapter, err := llm.New(cfg.LLM)
		if err != nil {
			_ = shutdown(context.Background())
			return nil, err
		}
		return &app{cfg: cfg, log: log, adapter: adapter, shutdown: shutdown}, nil
	}

	root.AddCommand(newChatCmd(setup), newServeCmd(setup), newVersionCmd())
	return root
}

// close releases the adapter and flushes telemetry.
func (a *app) close() {
	ctx := context.Background()
	_ = a.adapter.Close(ctx)
	if err := a.shutdown(ctx); err != nil {
		a.log.WithError(err).Warn("telemetry shutdown failed")
	}
}
