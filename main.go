package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wagnerlima/psytech-mcp/internal/config"
	"github.com/wagnerlima/psytech-mcp/internal/httpapi"
	"github.com/wagnerlima/psytech-mcp/internal/knowledge"
	"github.com/wagnerlima/psytech-mcp/internal/logging"
	"github.com/wagnerlima/psytech-mcp/internal/models"
	"github.com/wagnerlima/psytech-mcp/internal/server"
	"github.com/wagnerlima/psytech-mcp/internal/session"
	"github.com/wagnerlima/psytech-mcp/internal/storage"
)

// version information
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootOptions carries persistent flags shared by every subcommand.
type rootOptions struct {
	configPath    string
	knowledgePath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "psytech-mcp",
		Short: "Symptom checklist expert system served over MCP",
		Long: `psytech-mcp runs a forward-chaining expert system that maps selected
symptoms to diagnoses with certainty factors. It serves the knowledge base and
the inference engine as MCP tools, and offers a few local commands.

Examples:
  # Serve over stdio for an MCP client
  psytech-mcp serve

  # Serve over HTTP on port 9000
  psytech-mcp serve --transport http --port 9000

  # One-off diagnosis
  psytech-mcp diagnose --symptoms s1,s2`,
		Version:      version,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&opts.knowledgePath, "knowledge", "", "knowledge base document (JSON, YAML or TOML); default is the embedded demo")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newDiagnoseCmd(opts))
	cmd.AddCommand(newValidateCmd(opts))
	cmd.AddCommand(newSymptomsCmd(opts))
	return cmd
}

// load reads the configuration and applies persistent flag overrides.
func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.knowledgePath != "" {
		cfg.Knowledge.Path = o.knowledgePath
	}
	return cfg, nil
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		transport string
		port      int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server",
		Long: `Run the MCP server on stdio (default) or streamable HTTP.

The HTTP transport also serves /health and /metrics, and requires
"Authorization: Bearer <token>" on /mcp when server.bearer_token is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("transport") {
				cfg.Server.Transport = transport
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&transport, "transport", "stdio", "transport mode: stdio or http")
	cmd.Flags().IntVar(&port, "port", 8081, "HTTP port (only used with --transport http)")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	doc, err := knowledge.Source(cfg.Knowledge.Path)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch cfg.Server.Transport {
	case "stdio":
		sess, err := sessionFromDocument(doc, cfg, logger, cfg.History.Enabled)
		if err != nil {
			return err
		}
		defer sess.Close()

		logger.Info("psytech-mcp server starting", zap.String("transport", "stdio"), zap.String("version", version))
		err = server.New(sess, logger).Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("server error: %w", err)
		}
	case "http":
		// A bad document fails startup, not each client connection.
		check, err := sessionFromDocument(doc, cfg, logger, false)
		if err != nil {
			return err
		}
		check.Close()

		// Each HTTP client gets its own knowledge base, checklist and history.
		factory := server.NewFactory(func() (*session.Session, error) {
			return sessionFromDocument(doc, cfg, logger, cfg.History.Enabled)
		}, logger)
		defer factory.Close()

		logger.Info("psytech-mcp server starting", zap.String("transport", "http"), zap.Int("port", cfg.Server.Port), zap.String("version", version))
		err = httpapi.New(httpapi.Config{
			Addr:            fmt.Sprintf(":%d", cfg.Server.Port),
			BearerToken:     cfg.Server.BearerToken,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
			SessionTimeout:  cfg.Server.SessionTimeout,
		}, factory.Server, logger).Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("server error: %w", err)
		}
	default:
		return fmt.Errorf("unknown transport: %s (use stdio or http)", cfg.Server.Transport)
	}
	logger.Info("psytech-mcp server stopped")
	return nil
}

// newSession loads the configured knowledge base into a session.
func newSession(cfg *config.Config, logger *zap.Logger, withHistory bool) (*session.Session, error) {
	doc, err := knowledge.Source(cfg.Knowledge.Path)
	if err != nil {
		return nil, err
	}
	return sessionFromDocument(doc, cfg, logger, withHistory)
}

func sessionFromDocument(doc *models.Document, cfg *config.Config, logger *zap.Logger, withHistory bool) (*session.Session, error) {
	eng, err := cfg.NewEngine()
	if err != nil {
		return nil, err
	}
	sessOpts := session.Options{
		Knowledge:    cfg.KnowledgeOptions(),
		Engine:       eng,
		HistoryLimit: cfg.History.Limit,
		Logger:       logger,
	}
	if withHistory {
		h, err := storage.OpenHistory()
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		sessOpts.History = h
	}

	sess, err := session.New(doc, sessOpts)
	if err != nil {
		if sessOpts.History != nil {
			sessOpts.History.Close()
		}
		return nil, fmt.Errorf("load knowledge base: %w", err)
	}
	return sess, nil
}
