package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Disabled(t *testing.T) {
	tr, err := New(context.Background(), Config{Enabled: false, ServiceName: "coursely"})
	require.NoError(t, err)

	_, span := tr.Start(context.Background(), "noop")
	defer span.End()
	assert.False(t, span.IsRecording())
	assert.NoError(t, tr.Shutdown(context.Background()))
}

func TestSamplingRate(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 1},
		{-0.5, 1},
		{1.5, 1},
		{0.25, 0.25},
		{1, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, samplingRate(tt.in), "rate %v", tt.in)
	}
}
