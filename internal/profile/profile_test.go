package profile

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteThenReadRoundTrips(t *testing.T) {
	p := FromHistory(100, []FlowRecord{
		{FlowID: 1, JobID: 2, SrcRack: 0, DstRack: 1, Dir: "up", FlowSize: 500, ProgressHistory: []float64{0, 10, 30}},
	})

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, p))

	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, 100, got.Period)
	require.Len(t, got.Flows, 1)
	assert.Equal(t, 1, got.Flows[0].FlowID)
	assert.Equal(t, []float64{0, 10, 30}, got.Flows[0].ProgressHistory)
}
