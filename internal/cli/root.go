package cli

import (
	"context"
	"image/color"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/govm-project/govm/internal/config"
	"github.com/govm-project/govm/internal/download"
	"github.com/govm-project/govm/internal/manifest"
	"github.com/govm-project/govm/internal/store"
	"github.com/govm-project/govm/internal/style"
)

var (
	rootFlag     string
	logLevel     string
	outputFormat string
	quiet        bool
	verbose      bool
)

// rootCmd is the base command when govm is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "govm",
	Short: "govm manages installed versions of the Go toolchain",
	Long: `govm installs, activates, and removes versions of the Go toolchain.

It downloads official release archives, verifies them against the published
checksums, and switches the active version with an atomic symlink (or
directory junction on Windows), so only one version is ever on PATH at a
time.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		initLogging()
		return nil
	},
	SilenceUsage: true,
}

// Execute runs the root command. Called once from cmd/govm/main.go.
func Execute(ctx context.Context) error {
	return fang.Execute(ctx, rootCmd, fang.WithColorSchemeFunc(func(lightDark lipgloss.LightDarkFunc) fang.ColorScheme {
		return fang.ColorScheme{
			Base:           style.PrimaryTextColor,
			Title:          style.AccentColor,
			Description:    style.PrimaryTextColor,
			Codeblock:      style.CodeColor,
			Program:        style.AccentColor,
			DimmedArgument: style.MutedColor,
			Comment:        style.MutedColor,
			Flag:           style.InfoColor,
			FlagDefault:    style.MutedColor,
			Command:        style.SuccessColor,
			QuotedString:   style.WarningColor,
			Argument:       style.PrimaryTextColor,
			Help:           style.InfoColor,
			Dash:           style.MutedColor,
			ErrorHeader:    [2]color.Color{style.ErrorColor, style.ErrorBgColor},
			ErrorDetails:   style.ErrorColor,
		}
	}))
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&rootFlag, "root", "", "version store root (default is $GOVM_ROOT or $HOME/.govm)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "disabled", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "text", "output format (text, json, yaml)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	// Individual commands call config.Load themselves, since it needs the
	// resolved --root flag value; this hook only wires viper's env/file
	// discovery so log-level/output/quiet/verbose pick up GOVM_* env vars
	// and an optional config.yaml ahead of PersistentPreRunE running.
	viper.SetEnvPrefix("GOVM")
	viper.AutomaticEnv()

	home, err := os.UserHomeDir()
	if err == nil {
		viper.AddConfigPath(home + "/.govm")
	}
	viper.AddConfigPath(".")
	viper.SetConfigType("yaml")
	viper.SetConfigName("config")
	_ = viper.ReadInConfig()
}

func initLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level := viper.GetString("log-level")
	if verbose && level == "disabled" {
		level = "info"
	}
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.Disabled)
	}

	if !viper.GetBool("quiet") && outputFormat == "text" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// buildStore wires a config+manifest client+downloader+Store for a
// subcommand to operate on, following the precedence order resolved by
// internal/config.Load.
func buildStore() (*store.Store, error) {
	cfg, err := config.Load(rootFlag)
	if err != nil {
		return nil, err
	}

	mc := manifest.NewClient(log.Logger)
	if cfg.ManifestEndpoint != "" {
		mc.Endpoint = cfg.ManifestEndpoint
	}
	if cfg.DownloadBase != "" {
		mc.DownloadBase = cfg.DownloadBase
	}

	dl := download.New(log.Logger)
	dl.Config = cfg.Download

	return store.New(cfg.Root, mc, dl, log.Logger)
}

func printErr(cmd *cobra.Command, format string, args ...interface{}) {
	style.Error(cmd.ErrOrStderr(), format, args...)
}
