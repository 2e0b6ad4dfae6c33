package ui

import (
	"context"
	"sort"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/mineroot/lanshare/pkg/peer"
	"github.com/mineroot/lanshare/utils"
)

const refreshInterval = time.Second

var headers = []string{
	"Peer",
	"File",
	"Size",
}

// CreateApp shows every file currently announced on the network and redraws
// the table once a second until ctx is done.
func CreateApp(ctx context.Context, registry peer.SnapshotReader) *tview.Application {
	app := tview.NewApplication()
	table := tview.NewTable().
		SetBorders(true).
		SetFixed(1, 0)
	fill(table, registry.Snapshot())

	go func() {
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snapshot := registry.Snapshot()
				app.QueueUpdateDraw(func() {
					fill(table, snapshot)
				})
			}
		}
	}()
	return app.SetRoot(table, true).SetFocus(table)
}

func fill(table *tview.Table, peers peer.Peers) {
	table.Clear()
	for col := 0; col < len(headers); col++ {
		table.SetCell(0, col, tview.NewTableCell(headers[col]).SetTextColor(tcell.ColorYellow))
	}
	row := 1
	for _, p := range peers {
		names := make([]string, 0, len(p.Files))
		for name := range p.Files {
			names = append(names, name)
		}
		sort.Strings(names)
		if len(names) == 0 {
			table.SetCell(row, 0, tview.NewTableCell(p.Key().String()))
			table.SetCell(row, 1, tview.NewTableCell("-").SetTextColor(tcell.ColorGray))
			table.SetCell(row, 2, tview.NewTableCell(""))
			row++
			continue
		}
		for _, name := range names {
			table.SetCell(row, 0, tview.NewTableCell(p.Key().String()))
			table.SetCell(row, 1, tview.NewTableCell(name))
			table.SetCell(row, 2, tview.NewTableCell(utils.FormatBytes(uint(p.Files[name]))).SetAlign(tview.AlignRight))
			row++
		}
	}
}
