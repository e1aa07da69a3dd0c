package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCronSpec(t *testing.T) {
	tests := []struct {
		timeSlot string
		expected string
		wantErr  bool
	}{
		{timeSlot: "08:30", expected: "30 8 * * *"},
		{timeSlot: "00:00", expected: "0 0 * * *"},
		{timeSlot: "23:59", expected: "59 23 * * *"},
		{timeSlot: "24:00", wantErr: true},
		{timeSlot: "08:60", wantErr: true},
		{timeSlot: "8am", wantErr: true},
		{timeSlot: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.timeSlot, func(t *testing.T) {
			spec, err := cronSpec(tt.timeSlot)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, spec)
		})
	}
}

func TestArmAndCancel(t *testing.T) {
	s := NewCronScheduler(zap.NewNop(), func() string { return "2025-01-01" })
	defer s.Stop()

	handle, err := s.ArmDaily("Aspirin", "100mg", "08:00")
	require.NoError(t, err)
	assert.NotEmpty(t, handle)

	rangeHandle, err := s.ArmRange("2025-01-01", "2025-01-31", "Aspirin", "100mg", "20:00")
	require.NoError(t, err)
	assert.NotEmpty(t, rangeHandle)
	assert.NotEqual(t, handle, rangeHandle)

	s.Cancel(handle)
	s.Cancel(handle) // unknown handles are a no-op
	s.Cancel(rangeHandle)
}

func TestArmDailyRejectsMalformedSlot(t *testing.T) {
	s := NewCronScheduler(zap.NewNop(), func() string { return "2025-01-01" })
	defer s.Stop()

	_, err := s.ArmDaily("Aspirin", "100mg", "morning")
	assert.Error(t, err)
}
