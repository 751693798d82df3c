package tui

import (
	"testing"

	"github.com/jrwynneiii/tetratuner/telemetry"
	"github.com/stretchr/testify/assert"
)

func TestStatusTable(t *testing.T) {
	data := &StatusTableData{}
	assert.Equal(t, len(statusRows), data.GetRowCount())
	assert.Equal(t, 2, data.GetColumnCount())

	data.Update(telemetry.Snapshot{Locked: true, SampleRate: 50000, Dibits: 1234})
	assert.Equal(t, "Carrier lock:", data.GetCell(0, 0).Text)
	assert.Equal(t, "true", data.GetCell(0, 1).Text)
	assert.Equal(t, "false", data.GetCell(1, 1).Text)
	assert.Equal(t, "50000 Hz", data.GetCell(2, 1).Text)
	assert.Equal(t, "1234", data.GetCell(5, 1).Text)
	assert.Equal(t, "ERROR", data.GetCell(len(statusRows), 0).Text)
}

func TestPowerPercent(t *testing.T) {
	assert.Equal(t, 100.0, powerPercent(0, -100))
	assert.Equal(t, 50.0, powerPercent(-50, -100))
	assert.Equal(t, 0.0, powerPercent(-150, -100))
	assert.Equal(t, 100.0, powerPercent(3, -100))
	// a non negative floor falls back to -100 dBFS
	assert.Equal(t, 75.0, powerPercent(-25, 0))
}
