package main

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/mineroot/lanshare/pkg"
	"github.com/mineroot/lanshare/pkg/download"
	"github.com/mineroot/lanshare/pkg/event"
	"github.com/mineroot/lanshare/pkg/peer"
)

var errNothingShared = errors.New("no files shared")

var (
	getWait    time.Duration
	getWorkers int
	getOutput  string
)

var getCmd = &cobra.Command{
	Use:     "get [file]",
	Short:   "Download a file from the first peer that shares it",
	Example: "  lanshare get debian.iso --workers 8 --output ~/Downloads/debian.iso",
	Args:    cobra.MaximumNArgs(1),
	RunE:    runGet,
}

func init() {
	getCmd.Flags().DurationVar(&getWait, "wait", 3*time.Second, "how long to listen for announcements")
	getCmd.Flags().IntVar(&getWorkers, "workers", 4, "number of parallel range connections")
	getCmd.Flags().StringVarP(&getOutput, "output", "o", "", "destination path (default: the file name in the current directory)")
}

func runGet(cmd *cobra.Command, args []string) error {
	if getWorkers < 1 {
		return fmt.Errorf("--workers must be at least 1, got %d", getWorkers)
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
	listen(ctx, node, getWait)
	if ctx.Err() != nil {
		return nil
	}
	peers := node.Registry().Snapshot()

	var filename string
	if len(args) == 1 {
		filename = args[0]
	} else if filename, err = selectFile(peers); errors.Is(err, errNothingShared) {
		fmt.Fprintln(out, "No peers found.")
		return errReported
	} else if err != nil {
		return err
	}

	target, ok := download.TargetFor(peers, filename)
	if !ok {
		fmt.Fprintln(out, "No peer has that file.")
		return errReported
	}
	fmt.Fprintf(out, "Found on %s size=%d bytes\n", target.Endpoint(), target.Size)

	dest := getOutput
	if dest == "" {
		dest = filename
	}
	bar := progressbar.DefaultBytes(target.Size, "downloading")
	progress := make(chan *event.ProgressRangeRead, 256)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for e := range progress {
			_ = bar.Add(e.Bytes)
		}
	}()
	res, err := node.Download(ctx, filename, dest, getWorkers, progress)
	close(progress)
	wg.Wait()
	if err != nil {
		return err
	}
	if !res.Complete() {
		fmt.Fprintln(out)
		for _, f := range res.Failed {
			fmt.Fprintf(out, "Range %d failed: %s\n", f.Range.Index, f.Err)
		}
		fmt.Fprintln(out, "Download incomplete or failed.")
		return errReported
	}
	_ = bar.Finish()
	fmt.Fprintf(out, "\nDownload completed: %s\n", dest)
	return nil
}

// selectFile asks which of the announced files to download.
func selectFile(peers peer.Peers) (string, error) {
	seen := make(map[string]struct{})
	var names []string
	for _, p := range peers {
		for name := range p.Files {
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				names = append(names, name)
			}
		}
	}
	if len(names) == 0 {
		return "", errNothingShared
	}
	sort.Strings(names)
	prompt := promptui.Select{
		Label: "File to download",
		Items: names,
		Size:  10,
	}
	_, name, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("no file selected: %w", err)
	}
	return name, nil
}
