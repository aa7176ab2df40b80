// Package config resolves the version store root from flags, environment,
// and a config file, the way the teacher's internal/cli/root.go wires
// viper + godotenv. Grounded on that file's initConfig/initLogging for
// precedence order and on the LACQUER_ env prefix convention, generalized
// to GOVM_. Downloader tuning is always download.DefaultConfig(); it is not
// read from flags, environment, or the config file.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/govm-project/govm/internal/download"
)

// Config is the resolved runtime configuration for one govm invocation.
type Config struct {
	// Root is the version store directory (R in the data model): holds
	// versions/, cache/, current, and .lock.
	Root string

	LogLevel     string
	OutputFormat string
	Quiet        bool
	Verbose      bool

	ManifestEndpoint string
	DownloadBase     string
	Download         download.Config

	LockTimeout time.Duration
}

// Load resolves Config from (in precedence order) explicit flag values,
// GOVM_* environment variables, an optional config.yaml, then defaults.
// rootFlag is the value of the --root flag, or "" if unset.
func Load(rootFlag string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GOVM")
	v.AutomaticEnv()

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	v.AddConfigPath(filepath.Join(home, ".govm"))
	v.AddConfigPath(".")
	v.SetConfigType("yaml")
	v.SetConfigName("config")
	_ = v.ReadInConfig() // a missing config file is not an error; defaults and env still apply

	v.SetDefault("log-level", "disabled")
	v.SetDefault("output", "text")
	v.SetDefault("manifest-endpoint", "")
	v.SetDefault("download-base", "")

	cfg := Config{
		Root:             resolveRoot(rootFlag, v.GetString("root")),
		LogLevel:         v.GetString("log-level"),
		OutputFormat:     v.GetString("output"),
		Quiet:            v.GetBool("quiet"),
		Verbose:          v.GetBool("verbose"),
		ManifestEndpoint: v.GetString("manifest-endpoint"),
		DownloadBase:     v.GetString("download-base"),
		Download:         download.DefaultConfig(),
		LockTimeout:      10 * time.Second,
	}
	return cfg, nil
}

// resolveRoot applies §4.1's precedence: --root flag, then GOVM_ROOT
// (already folded into envRoot via viper's automatic env binding), then
// the platform default.
func resolveRoot(flagRoot, envRoot string) string {
	if flagRoot != "" {
		return flagRoot
	}
	if envRoot != "" {
		return envRoot
	}
	return defaultRoot()
}

func defaultRoot() string {
	if runtime.GOOS == "windows" {
		if v := os.Getenv("LOCALAPPDATA"); v != "" {
			return filepath.Join(v, "govm")
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".govm"
	}
	return filepath.Join(home, ".govm")
}
