package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tordrt/metamind/internal/config"
	"github.com/tordrt/metamind/internal/llm"
	"github.com/tordrt/metamind/internal/logger"
)

var (
	configFile string
	logLevel   string

	cfg    *config.Config
	appLog *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "metamind",
	Short: "Document database schemas with an LLM and chat about them",
	Long: `MetaMind extracts a schema from a SQLite file, SQL DDL or a live PostgreSQL/MySQL
database, asks a language model to document every table, and answers follow-up
questions about the schema.

The model API key is read from GROQ_API_KEY (environment or .env). When it is not
set, interactive commands prompt for it without echo.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: ./metamind.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(newExtractCmd(), newDocsCmd(), newChatCmd(), newServeCmd())
}

func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		loaded.Log.Level = logLevel
	}

	l, err := logger.New(loaded.Log.Mode, loaded.Log.Level)
	if err != nil {
		return err
	}

	cfg = loaded
	appLog = l
	return nil
}

func newClient() *llm.Client {
	return llm.NewClient(cfg.ClientConfig(), llm.WithLogger(appLog))
}

func main() {
	err := rootCmd.Execute()
	if appLog != nil {
		appLog.Sync()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
