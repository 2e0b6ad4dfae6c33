package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/mineroot/lanshare/pkg"
)

var shareCmd = &cobra.Command{
	Use:     "share [dir]",
	Short:   "Serve a folder and announce it to the local network",
	Example: "  lanshare share ~/Public --http :8080",
	Args:    cobra.MaximumNArgs(1),
	RunE:    runShare,
}

func init() {
	shareCmd.Flags().BoolVar(&cfg.Watch, "watch", cfg.Watch, "announce as soon as the folder changes")
	shareCmd.Flags().StringVar(&cfg.HTTPAddr, "http", "", "serve a read-only status API on this address")
}

func runShare(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		cfg.SharedDir = args[0]
	}
	dir, err := filepath.Abs(cfg.SharedDir)
	if err != nil {
		return fmt.Errorf("unable to get an absolute path of shared folder: %w", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("unable to open shared folder: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	cfg.SharedDir = dir

	l, closeLog, err := newLogger(false)
	if err != nil {
		return err
	}
	defer closeLog()
	ctx, stop := commandContext(cmd.Context(), l)
	defer stop()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Sharing folder: %s\n", dir)
	fmt.Fprintln(out, "Services started. Press Ctrl+C to stop.")
	if err = pkg.NewNode(cfg, afero.NewOsFs()).Share(ctx); errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
