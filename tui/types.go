package tui

import (
	"fmt"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/jrwynneiii/tetratuner/telemetry"
	"github.com/rivo/tview"
)

// StatusTableData serves the last snapshot to a read only tview table. The
// table is drawn on the UI goroutine while the refresh loop updates it.
type StatusTableData struct {
	tview.TableContentReadOnly
	mu   sync.Mutex
	snap telemetry.Snapshot
}

func (s *StatusTableData) Update(snap telemetry.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
}

type statusRow struct {
	label string
	value func(telemetry.Snapshot) (string, tcell.Color)
}

func boolColor(ok bool) tcell.Color {
	if ok {
		return tcell.ColorGreen
	}
	return tcell.ColorRed
}

func white(format string, value any) (string, tcell.Color) {
	return fmt.Sprintf(format, value), tcell.ColorWhite
}

var statusRows = []statusRow{
	{"Carrier lock:", func(s telemetry.Snapshot) (string, tcell.Color) {
		return fmt.Sprintf("%v", s.Locked), boolColor(s.Locked)
	}},
	{"Sync lock:", func(s telemetry.Snapshot) (string, tcell.Color) {
		return fmt.Sprintf("%v", s.SyncLocked), boolColor(s.SyncLocked)
	}},
	{"Sample rate:", func(s telemetry.Snapshot) (string, tcell.Color) { return white("%.0f Hz", s.SampleRate) }},
	{"Channel power:", func(s telemetry.Snapshot) (string, tcell.Color) { return white("%.1f dBFS", s.PowerDb) }},
	{"Frequency error:", func(s telemetry.Snapshot) (string, tcell.Color) { return white("%.1f Hz", s.FrequencyError) }},
	{"Dibits:", func(s telemetry.Snapshot) (string, tcell.Color) { return white("%d", s.Dibits) }},
	{"Buffers:", func(s telemetry.Snapshot) (string, tcell.Color) { return white("%d", s.Buffers) }},
	{"Bursts:", func(s telemetry.Snapshot) (string, tcell.Color) { return white("%d", s.Messages) }},
	{"Sync reports:", func(s telemetry.Snapshot) (string, tcell.Color) { return white("%d", s.SyncEvents) }},
}

func (s *StatusTableData) GetRowCount() int {
	return len(statusRows)
}

func (s *StatusTableData) GetColumnCount() int {
	return 2
}

func (s *StatusTableData) GetCell(row, column int) *tview.TableCell {
	if row < 0 || row >= len(statusRows) {
		return tview.NewTableCell("ERROR")
	}
	if column == 0 {
		return tview.NewTableCell(statusRows[row].label).SetTextColor(tcell.ColorLightSkyBlue)
	}

	s.mu.Lock()
	snap := s.snap
	s.mu.Unlock()
	text, color := statusRows[row].value(snap)
	return tview.NewTableCell(text).SetTextColor(color)
}

// powerPercent maps dBFS onto a gauge between floor and 0 dBFS.
func powerPercent(db, floor float64) float64 {
	if floor >= 0 {
		floor = -100
	}
	pct := (db - floor) / -floor * 100
	return min(100, max(0, pct))
}
