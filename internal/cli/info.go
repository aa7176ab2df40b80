package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/govm-project/govm/internal/style"
)

var infoCmd = &cobra.Command{
	Use:   "info <version>",
	Short: "Show manifest details for a Go toolchain version",
	Long: `Info looks up <version> in the upstream release manifest and prints the
archive filename, size, and sha256 for the current platform, along with
whether it is already installed.`,
	Args: cobra.ExactArgs(1),
	Example: `
  govm info 1.22.3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInfo(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

type versionInfoOutput struct {
	Version   string `json:"version" yaml:"version"`
	Filename  string `json:"filename" yaml:"filename"`
	Size      int64  `json:"size" yaml:"size"`
	SHA256    string `json:"sha256" yaml:"sha256"`
	Installed bool   `json:"installed" yaml:"installed"`
}

func runInfo(cmd *cobra.Command, version string) error {
	st, err := buildStore()
	if err != nil {
		printErr(cmd, "%v", err)
		return err
	}

	fd, err := st.Manifest.Resolve(cmd.Context(), version, st.Platform)
	if err != nil {
		printErr(cmd, "%v", err)
		return err
	}

	out := versionInfoOutput{
		Version:   version,
		Filename:  fd.Filename,
		Size:      fd.Size,
		SHA256:    fd.SHA256,
		Installed: st.IsInstalled(version),
	}

	switch viper.GetString("output") {
	case "json":
		style.PrintJSON(cmd.OutOrStdout(), out)
	case "yaml":
		style.PrintYAML(cmd.OutOrStdout(), out)
	default:
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "version:   %s\n", out.Version)
		fmt.Fprintf(w, "file:      %s\n", out.Filename)
		fmt.Fprintf(w, "size:      %s\n", style.FormatBytes(out.Size))
		fmt.Fprintf(w, "sha256:    %s\n", out.SHA256)
		fmt.Fprintf(w, "installed: %v\n", out.Installed)
	}
	return nil
}
