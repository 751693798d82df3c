package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gdamore/tcell/v2"
	"github.com/jrwynneiii/tetratuner/config"
	"github.com/jrwynneiii/tetratuner/telemetry"
	"github.com/navidys/tvxwidgets"
	"github.com/rivo/tview"
)

var LogOut *tview.TextView

func newGauge(label string, warn, crit float64) *tvxwidgets.UtilModeGauge {
	g := tvxwidgets.NewUtilModeGauge()
	g.SetLabel(label)
	g.SetLabelColor(tcell.ColorLightSkyBlue)
	g.SetWarnPercentage(warn)
	g.SetCritPercentage(crit)
	g.SetEmptyColor(tcell.ColorBlack)
	g.SetBorder(false)
	return g
}

// Start runs the monitor until ctx is done or the user quits, in which case
// cancel is called so the decoding side stops too.
func Start(ctx context.Context, cancel context.CancelFunc, stats *telemetry.Stats, tuiConf config.TuiConf) {
	app := tview.NewApplication()

	LogOut = tview.NewTextView().
		SetDynamicColors(true).
		SetRegions(true).
		SetWordWrap(true)

	statusData := &StatusTableData{}
	statusTable := tview.NewTable().SetContent(statusData)
	statusTable.SetSelectable(false, false).SetBorder(true).SetTitle("Decoder Status")

	powerPlot := tvxwidgets.NewPlot()
	powerPlot.SetLineColor([]tcell.Color{tcell.ColorLightSkyBlue})
	powerPlot.SetMarker(tvxwidgets.PlotMarkerBraille)
	powerPlot.SetBorder(true)
	powerPlot.SetTitle("Channel Power (dBFS)")

	// High lock quality is good, so the gauge shows the lock deficit.
	lockGauge := newGauge("Carrier Lock Deficit:   ", 100-tuiConf.LockWarnPct, 100-tuiConf.LockCritPct)
	powerGauge := newGauge("Channel Power:          ", 99, 100)

	gaugeBox := tview.NewFlex()
	gaugeBox.SetDirection(tview.FlexRow)
	gaugeBox.AddItem(lockGauge, 0, 1, false)
	gaugeBox.AddItem(powerGauge, 0, 1, false)
	gaugeBox.SetTitle("Signal Stats")
	gaugeBox.SetBorder(true)

	LogOut.SetChangedFunc(func() {
		LogOut.ScrollToEnd()
		app.Draw()
	})
	LogOut.SetBorder(true).SetTitle("Log Output")
	if tuiConf.EnableLogOutput {
		log.SetOutput(LogOut)
	}

	page := tview.NewFlex().SetDirection(tview.FlexColumn)

	leftCol := tview.NewFlex().SetDirection(tview.FlexRow)
	leftCol.AddItem(statusTable, 0, 1, false)

	rightCol := tview.NewFlex().SetDirection(tview.FlexRow)
	rightCol.AddItem(gaugeBox, 0, 1, false)
	rightCol.AddItem(powerPlot, 0, 3, false)
	if tuiConf.EnableLogOutput {
		rightCol.AddItem(LogOut, 0, 2, false)
	}

	page.AddItem(leftCol, 0, 2, false)
	page.AddItem(rightCol, 0, 5, false)

	refresh := time.Duration(max(50, tuiConf.RefreshMs)) * time.Millisecond
	go func() {
		ticker := time.NewTicker(refresh)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				app.Stop()
				return
			case <-ticker.C:
			}

			snap := stats.Snapshot()
			app.QueueUpdateDraw(func() {
				statusData.Update(snap)
				lockGauge.SetValue(100 - 100*snap.LockQuality)
				powerGauge.SetValue(powerPercent(snap.PowerDb, tuiConf.PowerFloorDb))
				if len(snap.PowerHistory) > 1 {
					powerPlot.SetData([][]float64{snap.PowerHistory})
				}
			})
		}
	}()

	if err := app.SetRoot(page, true).EnableMouse(true).Run(); err != nil {
		log.Fatalf("Could not start UI: %v", err)
	}
	cancel()
}
