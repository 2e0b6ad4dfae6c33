package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mineroot/lanshare/pkg"
	"github.com/mineroot/lanshare/pkg/peer"
	"github.com/mineroot/lanshare/ui"
)

var (
	listWait  time.Duration
	listWatch bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List peers on the local network and the files they share",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().DurationVar(&listWait, "wait", 4*time.Second, "how long to listen for announcements")
	listCmd.Flags().BoolVar(&listWatch, "watch", false, "keep listening and show peers in a live table")
}

func runList(cmd *cobra.Command, _ []string) error {
	if listWatch {
		return runListApp(cmd)
	}
	l, closeLog, err := newLogger(false)
	if err != nil {
		return err
	}
	defer closeLog()
	ctx, stop := commandContext(cmd.Context(), l)
	defer stop()

	node := pkg.NewNode(cfg, afero.NewOsFs())
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Listening for peers for %s...\n", listWait)
	listen(ctx, node, listWait)
	printPeers(out, node.Registry().Snapshot())
	return nil
}

func runListApp(cmd *cobra.Command) error {
	l, closeLog, err := newLogger(true)
	if err != nil {
		return err
	}
	defer closeLog()
	ctx, cancel := context.WithCancel(l.WithContext(cmd.Context()))
	defer cancel()

	node := pkg.NewNode(cfg, afero.NewOsFs())
	app := ui.CreateApp(ctx, node.Registry())
	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyCtrlC || event.Key() == tcell.KeyEscape {
			cancel()
			app.Stop()
		}
		return event
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return app.Run()
	})
	g.Go(func() error {
		defer app.Stop()
		return node.Discover(ctx)
	})
	return g.Wait()
}

func printPeers(w io.Writer, peers peer.Peers) {
	if len(peers) == 0 {
		fmt.Fprintln(w, "No peers found.")
		return
	}
	for _, p := range peers {
		fmt.Fprintln(w, p.Endpoint())
		names := make([]string, 0, len(p.Files))
		for name := range p.Files {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "  - %s (%d bytes)\n", name, p.Files[name])
		}
	}
}
