package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/govm-project/govm/internal/govmerr"
	"github.com/govm-project/govm/internal/store"
	"github.com/govm-project/govm/internal/style"
)

var (
	installActivate bool
	installForce    bool
)

var installCmd = &cobra.Command{
	Use:   "install <version>",
	Short: "Download and install a Go toolchain version",
	Long: `Install resolves <version> (an exact release like 1.22.3, or "latest"),
downloads the matching archive for the current platform, verifies it
against the published sha256, and extracts it into the version store.

By default the installed version is also activated; pass --activate=false
to install without switching the active version. If the version is
already installed, install fails with AlreadyInstalled unless --force is
given, which replaces the existing directory.`,
	Args: cobra.ExactArgs(1),
	Example: `
  govm install 1.22.3
  govm install latest
  govm install 1.22.3 --activate=false
  govm install 1.22.3 --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInstall(cmd, args[0])
	},
}

func init() {
	installCmd.Flags().BoolVar(&installActivate, "activate", true, "activate the version after installing")
	installCmd.Flags().BoolVar(&installForce, "force", false, "replace an already-installed version")
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, version string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := buildStore()
	if err != nil {
		printErr(cmd, "%v", err)
		return err
	}

	var bar *style.DownloadProgress
	var sp style.Spinner
	stopSpinner := func() {
		if sp != nil {
			sp.Stop()
			sp = nil
		}
	}

	progress := func(done, total int64, elapsed time.Duration) {
		if quiet {
			return
		}
		stopSpinner()
		if bar == nil {
			bar = style.NewDownloadProgress(cmd.ErrOrStderr(), total)
			bar.Start()
		}
		bar.Update(done, total, elapsed)
	}

	var spinners *style.SpinnerManager
	if !quiet {
		spinners = style.NewSpinnerManager(cmd.ErrOrStderr())
	}
	onPhase := func(phase string) {
		if spinners == nil {
			return
		}
		stopSpinner()
		if bar != nil {
			bar.Finish()
			bar = nil
		}
		sp = spinners.Start()
		sp.SetSuffix(" " + phase)
	}

	err = st.Install(ctx, version, store.InstallOptions{Activate: installActivate, Force: installForce, Progress: progress, OnPhase: onPhase})
	stopSpinner()
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		if govmerr.Is(err, govmerr.Input) {
			printErr(cmd, "%v", err)
		} else {
			printErr(cmd, "install failed: %v", err)
		}
		return err
	}

	style.Success(cmd.OutOrStdout(), "installed %s", version)
	return nil
}
