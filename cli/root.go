package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"pdf_compress/config"
)

// Version is overridden at build time with -ldflags "-X pdf_compress/cli.Version=..."
var Version = "dev"

type flagValues struct {
	configPath string
	listenAddr string
	gsBinary   string
	logLevel   string
	maxJobs    int
	keepFiles  bool
}

var flags flagValues

var rootCmd = &cobra.Command{
	Use:   "pdf_compress",
	Short: "HTTP service that recompresses PDF files with Ghostscript",
	Long: `pdf_compress accepts a PDF upload on POST /, rewrites it with Ghostscript
at the requested compression level (high, medium or low) and returns the result.

Configuration is read from defaults, then a YAML file, then environment
variables, then the flags below.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "path to YAML config file (default $"+config.ConfigPathEnv+" or "+config.DefaultConfigPath+")")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")

	f := rootCmd.Flags()
	f.StringVarP(&flags.listenAddr, "addr", "a", "", "listen address, e.g. :3000")
	f.StringVar(&flags.gsBinary, "gs", "", "Ghostscript executable")
	f.IntVar(&flags.maxJobs, "max-jobs", -1, "maximum concurrent Ghostscript processes (0 = unlimited)")
	f.BoolVar(&flags.keepFiles, "keep-files", false, "keep staged uploads and outputs after responding")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default command)",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().AddFlagSet(rootCmd.Flags())
	return cmd
}

// loadConfig applies command-line flags on top of the loaded configuration.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}

	if flags.listenAddr != "" {
		cfg.ListenAddr = flags.listenAddr
	}
	if flags.gsBinary != "" {
		cfg.GhostscriptBinary = flags.gsBinary
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if flags.maxJobs >= 0 {
		cfg.MaxConcurrentJobs = flags.maxJobs
	}
	if cmd.Flags().Changed("keep-files") {
		cfg.KeepFiles = flags.keepFiles
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}
