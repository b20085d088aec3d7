package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/jchantrell/tqarc/internal/arc"
	"github.com/jchantrell/tqarc/internal/config"
	"github.com/jchantrell/tqarc/internal/texture"
)

var (
	cfg     *config.Config
	cfgFile string

	gamePath   string
	outputDir  string
	dbPath     string
	logLevel   string
	logFormat  string
	workers    int
	cacheSize  int
	debug      bool
	noProgress bool
)

var rootCmd = &cobra.Command{
	Use:   "tqarc",
	Short: "Titan Quest ARC archive reader and texture extractor",
	Long: `tqarc reads the .arc resource containers shipped with Titan Quest, lists
and extracts their entries, and converts .tex textures to PNG.

It can also index every archive of a game installation into a SQLite
catalog and resolve logical asset paths across archives.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		if cmd.Flags().Changed("game-path") {
			cfg.GamePath = gamePath
		}
		if cmd.Flags().Changed("output") {
			cfg.OutputDir = outputDir
		}
		if cmd.Flags().Changed("database") {
			cfg.Database = dbPath
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			cfg.LogFormat = logFormat
		}
		if cmd.Flags().Changed("workers") {
			cfg.Workers = workers
		}
		if cmd.Flags().Changed("cache-size") {
			cfg.CacheSize = cacheSize
		}
		if cmd.Flags().Changed("debug") {
			cfg.Debug = debug
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		var level slog.Level
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}
		// trace records are emitted at debug level
		if cfg.Debug {
			level = slog.LevelDebug
		}

		var handler slog.Handler
		if cfg.LogFormat == "json" {
			handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})
		} else {
			handler = tint.NewHandler(os.Stderr, &tint.Options{
				Level: level,
			})
		}

		slog.SetDefault(slog.New(handler))

		slog.Debug("Configuration",
			"game_path", cfg.GamePath,
			"output_dir", cfg.OutputDir,
			"database", cfg.Database,
			"workers", cfg.Workers,
			"cache_size", cfg.CacheSize,
			"debug", cfg.Debug,
			"log_level", cfg.LogLevel,
			"log_format", cfg.LogFormat)

		return nil
	},
}

// openArchive loads an archive with the configured logger and trace setting.
func openArchive(path string) (*arc.Archive, error) {
	a, err := arc.Load(path, arc.WithLogger(slog.Default()), arc.WithTrace(cfg.Debug))
	if err != nil {
		return nil, fmt.Errorf("loading archive: %w", err)
	}
	return a, nil
}

func newCodec() *texture.Codec {
	return texture.NewCodec(texture.WithLogger(slog.Default()), texture.WithTrace(cfg.Debug))
}

// progressEnabled reports whether a progress bar would be readable, which it
// is not when logs share the terminal at debug level or are JSON.
func progressEnabled() bool {
	return !(noProgress || cfg.LogFormat == "json" || cfg.LogLevel == "debug" || cfg.Debug)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is tqarc.yaml in $HOME or pwd)")
	rootCmd.PersistentFlags().StringVarP(&gamePath, "game-path", "g", "", "game installation directory")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "output directory for extracted files")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "database", "d", "", "catalog database file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json)")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "w", 0, "parallel workers for bulk export (0 = all CPUs)")
	rootCmd.PersistentFlags().IntVar(&cacheSize, "cache-size", 0, "decoded texture cache size")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "trace archive extraction and texture decoding")
	rootCmd.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "disable progress bar")
}
