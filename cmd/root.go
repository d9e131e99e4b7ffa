package cmd

import (
	"fmt"
	"os"

	"github.com/abhisek/smartrepeat/internal/config"
	"github.com/abhisek/smartrepeat/internal/logging"
	"github.com/abhisek/smartrepeat/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	appConfig *config.Config
	logger    = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "smartrepeat",
	Short: "Vocabulary drilling in the terminal",
	Long: "Smart Repeat takes you through a quiz, a know/don't-know round, a short writing task,\n" +
		"a generated text drill and new-word consolidation, prioritising the words you know least.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		appConfig = cfg

		level := cfg.LogLevel
		if v, _ := cmd.Flags().GetBool("verbose"); v {
			level = "debug"
		}
		l, _, err := logging.New(logging.Options{Level: level, File: cfg.LogFile})
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides SMARTREPEAT_DB env var)")
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file (default $XDG_CONFIG_HOME/smartrepeat/config.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log at debug level")

	rootCmd.AddCommand(repeatCmd)
	rootCmd.AddCommand(wordsCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then SMARTREPEAT_DB, then db_path from the config file, then the default
// XDG path.
func resolveDBPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	if os.Getenv("SMARTREPEAT_DB") == "" && appConfig != nil && appConfig.DBPath != "" {
		return appConfig.DBPath, store.EnsureDir(appConfig.DBPath)
	}
	return store.DefaultDBPath()
}

// openStore opens the database selected by resolveDBPath.
func openStore(cmd *cobra.Command) (*store.Store, error) {
	dbPath, err := resolveDBPath(cmd)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	s, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return s, nil
}

// defaultUser is the OS user name, used when --user is not given.
func defaultUser() string {
	for _, k := range []string{"USER", "USERNAME"} {
		if u := os.Getenv(k); u != "" {
			return u
		}
	}
	return "local"
}
