package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/govm-project/govm/internal/style"
)

var uninstallAllowActive bool

var uninstallCmd = &cobra.Command{
	Use:     "uninstall <version>",
	Aliases: []string{"remove", "rm"},
	Short:   "Remove an installed Go toolchain version",
	Long: `Uninstall deletes a version's directory from the store. The currently
active version cannot be removed by default; switch away with "govm use"
first, or pass --allow-active to remove R/current along with it.`,
	Args: cobra.ExactArgs(1),
	Example: `
  govm uninstall 1.21.0
  govm uninstall 1.21.0 --allow-active`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUninstall(cmd, args[0])
	},
}

func init() {
	uninstallCmd.Flags().BoolVar(&uninstallAllowActive, "allow-active", false, "allow removing the currently active version")
	rootCmd.AddCommand(uninstallCmd)
}

func runUninstall(cmd *cobra.Command, version string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := buildStore()
	if err != nil {
		printErr(cmd, "%v", err)
		return err
	}

	if err := st.Uninstall(ctx, version, uninstallAllowActive); err != nil {
		printErr(cmd, "%v", err)
		return err
	}

	style.Success(cmd.OutOrStdout(), "uninstalled %s", version)
	return nil
}
