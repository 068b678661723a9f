package hos

import (
	"testing"

	"github.com/saan-system/routeplanner/internal/config"
	"github.com/saan-system/routeplanner/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultEngine() *Engine {
	return New(config.Load().HOS)
}

func TestValidate_S1_CompliantNoRestNeeded(t *testing.T) {
	e := defaultEngine()
	result, err := e.Validate(domain.HOSState{HoursDriven: 5.0, OnDutyTime: 7.0, HoursSinceBreak: 4.0})
	require.NoError(t, err)

	assert.True(t, result.IsCompliant)
	assert.Equal(t, StatusCompliant, result.Status)
	assert.Equal(t, 6.0, result.HoursRemainingToDrive)
	assert.False(t, result.BreakRequired)
	assert.False(t, result.RestRequired)
}

func TestValidate_S2_DriveLimitExceeded(t *testing.T) {
	e := defaultEngine()
	result, err := e.Validate(domain.HOSState{HoursDriven: 12.0, OnDutyTime: 13.0, HoursSinceBreak: 12.0})
	require.NoError(t, err)

	assert.False(t, result.IsCompliant)
	assert.True(t, result.RestRequired)
	assert.Equal(t, 0.0, result.HoursRemainingToDrive)

	violations := result.Violations()
	require.NotEmpty(t, violations)
	assert.Contains(t, violations[0], "drive limit exceeded")
}

func TestValidate_WarningWhenMarginLow(t *testing.T) {
	e := defaultEngine()
	result, err := e.Validate(domain.HOSState{HoursDriven: 10.5, OnDutyTime: 11, HoursSinceBreak: 2})
	require.NoError(t, err)

	assert.True(t, result.IsCompliant)
	assert.Equal(t, StatusWarning, result.Status)
}

func TestValidate_InvalidInputOutOfRange(t *testing.T) {
	e := defaultEngine()
	_, err := e.Validate(domain.HOSState{HoursDriven: -1, OnDutyTime: 5, HoursSinceBreak: 0})
	require.Error(t, err)
}

func TestValidate_Idempotent(t *testing.T) {
	e := defaultEngine()
	h := domain.HOSState{HoursDriven: 9, OnDutyTime: 11, HoursSinceBreak: 7}

	first, err1 := e.Validate(h)
	second, err2 := e.Validate(h)

	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, first, second)
}

func TestValidate_BreakRequiredAtTrigger(t *testing.T) {
	e := defaultEngine()
	result, err := e.Validate(domain.HOSState{HoursDriven: 4, OnDutyTime: 6, HoursSinceBreak: 8})
	require.NoError(t, err)

	assert.True(t, result.BreakRequired)
	assert.False(t, result.Break.Compliant)
}

func TestHoursRemainingToDrive_Property(t *testing.T) {
	e := defaultEngine()
	cases := []float64{0, 3.5, 8, 11, 11.5}
	for _, driven := range cases {
		h := domain.HOSState{HoursDriven: driven, OnDutyTime: driven, HoursSinceBreak: 0}
		result, err := e.Validate(h)
		require.NoError(t, err)

		expected := e.cfg.MaxDriveH - driven
		if expected < 0 {
			expected = 0
		}
		assert.InDelta(t, expected, result.HoursRemainingToDrive, 1e-9)
	}
}
