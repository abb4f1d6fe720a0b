package monitor_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/eric2788/vidpost/pkg/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressReader(t *testing.T) {
	payload := bytes.Repeat([]byte{7}, 1000)
	var reports []int64
	r := monitor.NewProgressReader(bytes.NewReader(payload), int64(len(payload)), 300, func(read, total int64) {
		assert.Equal(t, int64(1000), total)
		reports = append(reports, read)
	})

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Len(t, got, 1000)
	assert.Equal(t, int64(1000), r.Read64())
	require.NotEmpty(t, reports)
	assert.Equal(t, int64(1000), reports[len(reports)-1])
	for i := 1; i < len(reports); i++ {
		assert.Greater(t, reports[i], reports[i-1])
	}
}
