package protoparse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faridzandi/psim-go/internal/protocol"
)

func TestParseMixedTaskTypes(t *testing.T) {
	input := strings.Join([]string{
		"Forw [00000] next [00001] size 100 dev 0",
		"Comm [00001] next [00002] size 200 from 0 to 1",
		"AllR [00002] size 0 dev 0",
		"# a comment line is not a recognized type and is skipped",
		"",
	}, "\n")

	p, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, 3, p.TotalTaskCount)

	comp := p.TaskMap[0].(*protocol.ComputeTask)
	assert.Equal(t, 100.0, comp.Size)
	assert.Equal(t, 0, comp.DevID)

	flow := p.TaskMap[1].(*protocol.Flow)
	assert.Equal(t, 200.0, flow.Size)
	assert.Equal(t, 0, flow.SrcDevID)
	assert.Equal(t, 1, flow.DstDevID)

	assert.Len(t, p.Initiators, 1)
	assert.Equal(t, 0, p.Initiators[0].Base().ID)
}

func TestParseSkipsUnknownTypeSilently(t *testing.T) {
	input := "Weird [00000] next [00001] size 1 dev 0\nForw [00001] size 1 dev 0\n"
	p, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 1, p.TotalTaskCount)
}

func TestParseRejectsDuplicateID(t *testing.T) {
	input := "Forw [00000] size 1 dev 0\nForw [00000] size 2 dev 1\n"
	_, err := Parse(strings.NewReader(input))
	require.Error(t, err)
}
