package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/govm-project/govm/internal/govmerr"
	"github.com/govm-project/govm/internal/style"
)

var statusVerifyCache bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active Go toolchain version and its location",
	Long: `Status prints the store root, the currently active version, a
reminder of the PATH entry that exposes it, and the installed versions. With
--verify-cache, it also recomputes the sha256 of every cached archive
and reports any that no longer match the upstream manifest.`,
	Example: `
  govm status
  govm status --verify-cache`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus(cmd)
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusVerifyCache, "verify-cache", false, "recompute and verify checksums of cached archives")
	rootCmd.AddCommand(statusCmd)
}

// statusOutput mirrors §4.5's status() return shape
// { active, root_path, installed }, plus the supplemental PATH hint and
// --verify-cache reporting from SPEC_FULL §12.
type statusOutput struct {
	Active     string   `json:"active,omitempty" yaml:"active,omitempty"`
	RootPath   string   `json:"root_path" yaml:"root_path"`
	Installed  []string `json:"installed,omitempty" yaml:"installed,omitempty"`
	BinDir     string   `json:"bin_dir,omitempty" yaml:"bin_dir,omitempty"`
	PathHint   string   `json:"path_hint,omitempty" yaml:"path_hint,omitempty"`
	CacheValid []string `json:"cache_valid,omitempty" yaml:"cache_valid,omitempty"`
	CacheBad   []string `json:"cache_invalid,omitempty" yaml:"cache_invalid,omitempty"`
}

func runStatus(cmd *cobra.Command) error {
	st, err := buildStore()
	if err != nil {
		printErr(cmd, "%v", err)
		return err
	}

	out := statusOutput{RootPath: st.Root}

	installed, err := st.ListInstalled()
	if err != nil {
		printErr(cmd, "%v", err)
		return err
	}
	out.Installed = installed

	active, err := st.Current(cmd.Context())
	switch {
	case err == nil:
		out.Active = active
		out.BinDir = st.CurrentBinDir()
		out.PathHint = "add " + out.BinDir + " to PATH"
	case govmerr.Is(err, govmerr.Input):
		// no active version yet; report that rather than failing
	default:
		printErr(cmd, "%v", err)
		return err
	}

	if statusVerifyCache {
		entries, err := st.VerifyCache(cmd.Context())
		if err != nil {
			printErr(cmd, "%v", err)
			return err
		}
		for _, e := range entries {
			if e.Valid {
				out.CacheValid = append(out.CacheValid, e.Filename)
			} else {
				out.CacheBad = append(out.CacheBad, e.Filename)
			}
		}
	}

	switch viper.GetString("output") {
	case "json":
		style.PrintJSON(cmd.OutOrStdout(), out)
	case "yaml":
		style.PrintYAML(cmd.OutOrStdout(), out)
	default:
		printStatusText(cmd, out)
	}
	return nil
}

func printStatusText(cmd *cobra.Command, out statusOutput) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "root:   %s\n", out.RootPath)
	if out.Active == "" {
		style.Info(w, "no version is currently active")
	} else {
		fmt.Fprintf(w, "active: %s\n", style.VersionStyle.Render(out.Active))
		fmt.Fprintf(w, "path:   %s\n", out.PathHint)
	}
	if len(out.Installed) == 0 {
		fmt.Fprintln(w, "installed: (none)")
	} else {
		fmt.Fprintf(w, "installed: %s\n", fmt.Sprint(out.Installed))
	}

	if statusVerifyCache {
		for _, f := range out.CacheValid {
			fmt.Fprintf(w, "%s %s\n", style.SuccessIcon(), f)
		}
		for _, f := range out.CacheBad {
			fmt.Fprintf(w, "%s %s (checksum mismatch)\n", style.ErrorIcon(), f)
		}
	}
}
