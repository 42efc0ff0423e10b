package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/kostore/internal/app"
	"github.com/felixgeelhaar/kostore/internal/domain/install"
	"github.com/felixgeelhaar/kostore/internal/tui"
)

var installUpdate bool

var installCmd = &cobra.Command{
	Use:   "install <owner/repo>...",
	Short: "Install KOReader plugins from GitHub",
	Long: `Download each repository, find the directory holding main.lua and
_meta.lua, and install it as plugins/{name}.koplugin under the install root.
An existing plugin with the same name is replaced.

Examples:
  kostore install koreader/contrib
  kostore install --update someone/hello.koplugin
  kostore install --install-root /mnt/onboard/.adds/koreader a/one b/two`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInstalls(cmd, args, install.KindPluginBundle, installUpdate)
	},
}

var patchCmd = &cobra.Command{
	Use:   "patch <owner/repo>...",
	Short: "Install KOReader user patches from GitHub",
	Long: `Copy the .lua files of each repository into patches/ under the install
root, overwriting files with the same name. Set github.patch_dir in the
config file when the patches live in a sub-directory.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInstalls(cmd, args, install.KindPatchSet, false)
	},
}

func init() {
	installCmd.Flags().BoolVar(&installUpdate, "update", false, "report installs as updates of existing plugins")

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(patchCmd)
}

// installFailedError reports how many runs did not succeed.
type installFailedError struct {
	failed, total int
}

func (e *installFailedError) Error() string {
	return fmt.Sprintf("%d of %d install(s) failed", e.failed, e.total)
}

func runInstalls(cmd *cobra.Command, refs []string, kind install.Kind, isUpdate bool) error {
	ctx := cmd.Context()

	k, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	reqs, err := k.Requests(refs, kind, isUpdate)
	if err != nil {
		return err
	}
	return runRequests(cmd, k, reqs)
}

func runRequests(cmd *cobra.Command, k *app.Kostore, reqs []install.Request) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	var outcomes []install.Outcome
	if plain || !interactive(out) {
		outcomes = runPlain(ctx, k, reqs, out)
	} else {
		var err error
		outcomes, err = tui.RunInstallProgress(ctx, k.Start(ctx, reqs))
		if err != nil {
			return err
		}
	}

	failed := printSummary(out, reqs, outcomes)
	if failed > 0 {
		return &installFailedError{failed: failed, total: len(reqs)}
	}
	return nil
}

func interactive(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

func runPlain(ctx context.Context, k *app.Kostore, reqs []install.Request, out io.Writer) []install.Outcome {
	var mu sync.Mutex
	return k.InstallAll(ctx, reqs, func(i int, msg string) {
		mu.Lock()
		defer mu.Unlock()
		_, _ = fmt.Fprintf(out, "[%s] %s\n", reqs[i].Package, msg)
	})
}

func printSummary(out io.Writer, reqs []install.Request, outcomes []install.Outcome) int {
	failed := 0
	for i, o := range outcomes {
		mark := "✓"
		if !o.Success {
			mark = "✗"
			failed++
		}
		_, _ = fmt.Fprintf(out, "%s %s: %s\n", mark, reqs[i].Package, o.Message)
	}
	return failed
}
