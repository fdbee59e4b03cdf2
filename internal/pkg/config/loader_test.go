package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadEnvString(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		setEnv   bool
		want     string
	}{
		{name: "set", envValue: "0 7 * * *", setEnv: true, want: "0 7 * * *"},
		{name: "unset", want: "0 6 * * *"},
		{name: "empty uses default", envValue: "", setEnv: true, want: "0 6 * * *"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setEnv {
				t.Setenv("TEST_SCHEDULE", tt.envValue)
			}
			assert.Equal(t, tt.want, LoadEnvString("TEST_SCHEDULE", "0 6 * * *"))
		})
	}
}

func TestLoadEnvWithFallback(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		setEnv       bool
		validator    func(string) error
		want         string
		wantFallback bool
	}{
		{
			name:      "valid cron accepted",
			envValue:  "0 6 * * *",
			setEnv:    true,
			validator: ValidateCronSchedule,
			want:      "0 6 * * *",
		},
		{
			name:      "unset falls back silently",
			validator: ValidateCronSchedule,
			want:      "30 5 * * *",
		},
		{
			name:         "invalid cron falls back with warning",
			envValue:     "not a schedule",
			setEnv:       true,
			validator:    ValidateCronSchedule,
			want:         "30 5 * * *",
			wantFallback: true,
		},
		{
			name:         "invalid timezone falls back",
			envValue:     "Mars/Olympus_Mons",
			setEnv:       true,
			validator:    ValidateTimezone,
			want:         "30 5 * * *",
			wantFallback: true,
		},
		{
			name:     "nil validator accepts anything",
			envValue: "whatever",
			setEnv:   true,
			want:     "whatever",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setEnv {
				t.Setenv("TEST_FALLBACK", tt.envValue)
			}
			result := LoadEnvWithFallback("TEST_FALLBACK", "30 5 * * *", tt.validator)

			assert.Equal(t, tt.want, result.Value.(string))
			assert.Equal(t, tt.wantFallback, result.FallbackApplied)
			if tt.wantFallback {
				assert.NotEmpty(t, result.Warnings)
				assert.Contains(t, result.Warnings[0], "TEST_FALLBACK")
				assert.Contains(t, result.Warnings[0], "falling back to default")
			} else {
				assert.Empty(t, result.Warnings)
			}
		})
	}
}

func TestLoadEnvDuration(t *testing.T) {
	positive := ValidatePositiveDuration
	ranged := func(d time.Duration) error {
		return ValidateDuration(d, 1*time.Minute, 4*time.Hour)
	}

	tests := []struct {
		name         string
		envValue     string
		setEnv       bool
		validator    func(time.Duration) error
		want         time.Duration
		wantFallback bool
	}{
		{name: "valid value", envValue: "90s", setEnv: true, validator: positive, want: 90 * time.Second},
		{name: "compound value", envValue: "1h30m", setEnv: true, validator: positive, want: 90 * time.Minute},
		{name: "unset uses default", validator: positive, want: 2 * time.Minute},
		{name: "garbage falls back", envValue: "ninety seconds", setEnv: true, validator: positive, want: 2 * time.Minute, wantFallback: true},
		{name: "negative rejected", envValue: "-30s", setEnv: true, validator: positive, want: 2 * time.Minute, wantFallback: true},
		{name: "zero rejected", envValue: "0s", setEnv: true, validator: positive, want: 2 * time.Minute, wantFallback: true},
		{name: "below range rejected", envValue: "10s", setEnv: true, validator: ranged, want: 2 * time.Minute, wantFallback: true},
		{name: "above range rejected", envValue: "5h", setEnv: true, validator: ranged, want: 2 * time.Minute, wantFallback: true},
		{name: "no validator accepts negative", envValue: "-1s", setEnv: true, want: -1 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setEnv {
				t.Setenv("TEST_TIMEOUT", tt.envValue)
			}
			result := LoadEnvDuration("TEST_TIMEOUT", 2*time.Minute, tt.validator)

			assert.Equal(t, tt.want, result.Value.(time.Duration))
			assert.Equal(t, tt.wantFallback, result.FallbackApplied)
		})
	}
}

func TestLoadEnvInt(t *testing.T) {
	ranged := func(v int) error { return ValidateIntRange(v, 1, 100) }

	tests := []struct {
		name         string
		envValue     string
		setEnv       bool
		validator    func(int) error
		want         int
		wantFallback bool
	}{
		{name: "valid value", envValue: "25", setEnv: true, validator: ranged, want: 25},
		{name: "unset uses default", validator: ranged, want: 10},
		{name: "not a number falls back", envValue: "ten", setEnv: true, validator: ranged, want: 10, wantFallback: true},
		{name: "decimal falls back", envValue: "3.5", setEnv: true, validator: ranged, want: 10, wantFallback: true},
		{name: "below range falls back", envValue: "0", setEnv: true, validator: ranged, want: 10, wantFallback: true},
		{name: "above range falls back", envValue: "500", setEnv: true, validator: ranged, want: 10, wantFallback: true},
		{name: "no validator accepts negative", envValue: "-3", setEnv: true, want: -3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setEnv {
				t.Setenv("TEST_TOP_N", tt.envValue)
			}
			result := LoadEnvInt("TEST_TOP_N", 10, tt.validator)

			assert.Equal(t, tt.want, result.Value.(int))
			assert.Equal(t, tt.wantFallback, result.FallbackApplied)
		})
	}
}

func TestLoadEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		setEnv       bool
		defaultValue bool
		want         bool
		wantFallback bool
	}{
		{name: "true", envValue: "true", setEnv: true, want: true},
		{name: "TRUE", envValue: "TRUE", setEnv: true, want: true},
		{name: "1", envValue: "1", setEnv: true, want: true},
		{name: "t", envValue: "t", setEnv: true, want: true},
		{name: "false", envValue: "false", setEnv: true, defaultValue: true, want: false},
		{name: "0", envValue: "0", setEnv: true, defaultValue: true, want: false},
		{name: "F", envValue: "F", setEnv: true, defaultValue: true, want: false},
		{name: "unset uses default", defaultValue: true, want: true},
		{name: "yes is not a boolean", envValue: "yes", setEnv: true, want: false, wantFallback: true},
		{name: "garbage falls back", envValue: "enable", setEnv: true, defaultValue: true, want: true, wantFallback: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setEnv {
				t.Setenv("TEST_SKIP_EMAIL", tt.envValue)
			}
			result := LoadEnvBool("TEST_SKIP_EMAIL", tt.defaultValue)

			assert.Equal(t, tt.want, result.Value.(bool))
			assert.Equal(t, tt.wantFallback, result.FallbackApplied)
		})
	}
}

// 複数フィールドの読み込みで警告が累積することを確認する。
func TestLoadEnv_MultipleFallbacks(t *testing.T) {
	t.Setenv("TEST_MULTI_SCHEDULE", "bad cron")
	t.Setenv("TEST_MULTI_TIMEOUT", "bad duration")
	t.Setenv("TEST_MULTI_CONCURRENCY", "8")

	var warnings []string
	anyFallback := false

	schedule := LoadEnvWithFallback("TEST_MULTI_SCHEDULE", "30 5 * * *", ValidateCronSchedule)
	warnings = append(warnings, schedule.Warnings...)
	anyFallback = anyFallback || schedule.FallbackApplied

	timeout := LoadEnvDuration("TEST_MULTI_TIMEOUT", 30*time.Minute, ValidatePositiveDuration)
	warnings = append(warnings, timeout.Warnings...)
	anyFallback = anyFallback || timeout.FallbackApplied

	concurrency := LoadEnvInt("TEST_MULTI_CONCURRENCY", 4, func(v int) error {
		return ValidateIntRange(v, 1, 16)
	})
	warnings = append(warnings, concurrency.Warnings...)
	anyFallback = anyFallback || concurrency.FallbackApplied

	assert.True(t, anyFallback)
	assert.Len(t, warnings, 2)
	assert.Equal(t, "30 5 * * *", schedule.Value.(string))
	assert.Equal(t, 30*time.Minute, timeout.Value.(time.Duration))
	assert.Equal(t, 8, concurrency.Value.(int))
}
