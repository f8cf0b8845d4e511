package plc

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tanalyzer_go/internal/config"
	"tanalyzer_go/internal/cycle"
	"tanalyzer_go/internal/models"
	"tanalyzer_go/pkg/utils"
)

type fakeWriter struct {
	db     int
	offset int
	data   []byte
	err    error
}

func (f *fakeWriter) WriteDataBlock(dbNumber int, startOffset int, data []byte) error {
	f.db, f.offset, f.data = dbNumber, startOffset, data
	return f.err
}

func testData() (*models.Run, *cycle.Dataset) {
	ds := cycle.NewDataset()
	ds.Append(cycle.Extremum{Min: -1, Max: 3}, 200)
	ds.Append(cycle.Extremum{Min: -2.5, Max: 7.25}, 181)
	return &models.Run{ID: "r", Lines: 1234, Cycles: 2, Discarded: 4}, ds
}

func TestRecordWritesSummaryLayout(t *testing.T) {
	w := &fakeWriter{}
	svc := NewPLCServiceWithWriter(config.PLCConfig{Enabled: true, DBNumber: 12}, w)

	run, ds := testData()
	require.NoError(t, svc.Record(context.Background(), run, ds))

	assert.Equal(t, 12, w.db)
	assert.Equal(t, 0, w.offset)
	require.Len(t, w.data, SummarySize)
	assert.Equal(t, int32(2), utils.BytesToInt32(w.data[OffsetCycles:]))
	assert.Equal(t, int32(4), utils.BytesToInt32(w.data[OffsetDiscarded:]))
	assert.Equal(t, int32(1234), utils.BytesToInt32(w.data[OffsetLines:]))
	assert.Equal(t, float32(-2.5), utils.BytesToFloat32(w.data[OffsetLastMin:]))
	assert.Equal(t, float32(7.25), utils.BytesToFloat32(w.data[OffsetLastMax:]))
	assert.Equal(t, int32(181), utils.BytesToInt32(w.data[OffsetLastSamples:]))
	assert.Zero(t, w.data[OffsetFlags]&FlagLastEmpty)

	last, ok := svc.LastSummary()
	require.True(t, ok)
	assert.Equal(t, 181, last.LastSamples)
}

func TestRecordDisabled(t *testing.T) {
	w := &fakeWriter{}
	svc := NewPLCServiceWithWriter(config.PLCConfig{Enabled: false}, w)

	run, ds := testData()
	require.NoError(t, svc.Record(context.Background(), run, ds))
	assert.Nil(t, w.data)

	_, ok := svc.LastSummary()
	assert.False(t, ok)
}

func TestRecordWriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("timeout")}
	svc := NewPLCServiceWithWriter(config.PLCConfig{Enabled: true, DBNumber: 1}, w)

	run, ds := testData()
	err := svc.Record(context.Background(), run, ds)
	assert.ErrorContains(t, err, "timeout")
	assert.Equal(t, err, svc.LastError())

	w.err = nil
	require.NoError(t, svc.Record(context.Background(), run, ds))
	assert.NoError(t, svc.LastError())
}

func TestEncodeSummaryEmptyDataset(t *testing.T) {
	buf := EncodeSummary(models.NewSummary(&models.Run{}, cycle.NewDataset()))
	require.Len(t, buf, SummarySize)

	assert.Zero(t, utils.BytesToInt32(buf[OffsetCycles:]))
	assert.Zero(t, utils.BytesToInt32(buf[OffsetLastSamples:]))
	assert.True(t, math.IsNaN(float64(utils.BytesToFloat32(buf[OffsetLastMin:]))))
	assert.True(t, math.IsNaN(float64(utils.BytesToFloat32(buf[OffsetLastMax:]))))
	assert.Equal(t, FlagLastEmpty, buf[OffsetFlags]&FlagLastEmpty)
}

func TestEncodeSummaryEmptyLastCycle(t *testing.T) {
	ds := cycle.NewDataset()
	ds.Append(cycle.Extremum{Min: -1, Max: 3}, 200)
	ds.Append(cycle.NewExtremum(), 151)

	buf := EncodeSummary(models.NewSummary(&models.Run{Cycles: 2}, ds))

	assert.Equal(t, int32(151), utils.BytesToInt32(buf[OffsetLastSamples:]))
	assert.True(t, math.IsNaN(float64(utils.BytesToFloat32(buf[OffsetLastMin:]))))
	assert.True(t, math.IsNaN(float64(utils.BytesToFloat32(buf[OffsetLastMax:]))))
	assert.Equal(t, FlagLastEmpty, buf[OffsetFlags]&FlagLastEmpty)
}

func TestEncodeSummaryZeroRangeIsNotEmpty(t *testing.T) {
	ds := cycle.NewDataset()
	ds.Append(cycle.Extremum{Min: 0, Max: 0}, 181)

	buf := EncodeSummary(models.NewSummary(&models.Run{Cycles: 1}, ds))

	assert.Equal(t, float32(0), utils.BytesToFloat32(buf[OffsetLastMin:]))
	assert.Equal(t, float32(0), utils.BytesToFloat32(buf[OffsetLastMax:]))
	assert.Zero(t, buf[OffsetFlags])
}
