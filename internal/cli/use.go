package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/govm-project/govm/internal/style"
)

var useCmd = &cobra.Command{
	Use:   "use <version>",
	Short: "Activate an installed Go toolchain version",
	Long: `Use repoints the current version link at an already-installed version.
Run "govm install <version>" first if it isn't installed yet.`,
	Args: cobra.ExactArgs(1),
	Example: `
  govm use 1.22.3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUse(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(useCmd)
}

func runUse(cmd *cobra.Command, version string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := buildStore()
	if err != nil {
		printErr(cmd, "%v", err)
		return err
	}

	if err := st.Use(ctx, version); err != nil {
		printErr(cmd, "%v", err)
		return err
	}

	style.Success(cmd.OutOrStdout(), "now using %s", version)
	return nil
}
