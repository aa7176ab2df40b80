package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/govm-project/govm/internal/style"
)

var listAvailable bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed (or available) Go toolchain versions",
	Long: `List prints the versions currently installed in the store, marking the
active one. With --available, it instead queries the upstream release
manifest for every version that publishes an archive for this platform.`,
	Example: `
  govm list
  govm list --available`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if listAvailable {
			return runListAvailable(cmd)
		}
		return runListInstalled(cmd)
	},
}

func init() {
	listCmd.Flags().BoolVar(&listAvailable, "available", false, "list versions published upstream instead of installed ones")
	rootCmd.AddCommand(listCmd)
}

func runListInstalled(cmd *cobra.Command) error {
	st, err := buildStore()
	if err != nil {
		printErr(cmd, "%v", err)
		return err
	}

	versions, err := st.ListInstalled()
	if err != nil {
		printErr(cmd, "%v", err)
		return err
	}

	active, _ := st.Current(cmd.Context())

	switch viper.GetString("output") {
	case "json":
		style.PrintJSON(cmd.OutOrStdout(), map[string]interface{}{"installed": versions, "active": active})
	case "yaml":
		style.PrintYAML(cmd.OutOrStdout(), map[string]interface{}{"installed": versions, "active": active})
	default:
		if len(versions) == 0 {
			style.Info(cmd.OutOrStdout(), "no versions installed. Run 'govm install <version>' to get started")
			return nil
		}
		for _, v := range versions {
			marker := "  "
			if v == active {
				marker = style.ActiveMarkerStyle.Render("* ")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", marker, style.VersionStyle.Render(v))
		}
	}
	return nil
}

func runListAvailable(cmd *cobra.Command) error {
	st, err := buildStore()
	if err != nil {
		printErr(cmd, "%v", err)
		return err
	}

	versions, err := st.Manifest.ListAvailable(cmd.Context(), st.Platform)
	if err != nil {
		printErr(cmd, "%v", err)
		return err
	}

	installed, err := st.ListInstalled()
	if err != nil {
		printErr(cmd, "%v", err)
		return err
	}
	installedSet := make(map[string]bool, len(installed))
	for _, v := range installed {
		installedSet[v] = true
	}
	active, _ := st.Current(cmd.Context())

	switch viper.GetString("output") {
	case "json":
		style.PrintJSON(cmd.OutOrStdout(), availableEntries(versions, installedSet, active))
	case "yaml":
		style.PrintYAML(cmd.OutOrStdout(), availableEntries(versions, installedSet, active))
	default:
		for _, v := range versions {
			switch {
			case v == active:
				fmt.Fprintf(cmd.OutOrStdout(), "%s (active)\n", style.VersionStyle.Render(v))
			case installedSet[v]:
				fmt.Fprintf(cmd.OutOrStdout(), "%s (installed)\n", style.VersionStyle.Render(v))
			default:
				fmt.Fprintln(cmd.OutOrStdout(), v)
			}
		}
	}
	return nil
}

// availableListEntry mirrors SPEC_FULL §12's annotation of "list --available"
// with each version's installed/active status for the structured output
// formats.
type availableListEntry struct {
	Version   string `json:"version" yaml:"version"`
	Installed bool   `json:"installed" yaml:"installed"`
	Active    bool   `json:"active" yaml:"active"`
}

func availableEntries(versions []string, installedSet map[string]bool, active string) []availableListEntry {
	entries := make([]availableListEntry, len(versions))
	for i, v := range versions {
		entries[i] = availableListEntry{Version: v, Installed: installedSet[v], Active: v == active}
	}
	return entries
}
