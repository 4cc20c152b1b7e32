package workers

import (
	"os"
	"runtime"
	"testing"
)

func TestCount(t *testing.T) {
	// Save and restore original environment
	originalEnv := os.Getenv("DATASET_WORKERS")
	defer func() {
		if originalEnv != "" {
			os.Setenv("DATASET_WORKERS", originalEnv)
		} else {
			os.Unsetenv("DATASET_WORKERS")
		}
	}()

	os.Unsetenv("DATASET_WORKERS")

	availableCPU := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		minExpect  int
		maxExpect  int
	}{
		{
			name:       "CPU-bound task (1.0x multiplier)",
			multiplier: 1.0,
			limit:      0,
			minExpect:  1,
			maxExpect:  availableCPU,
		},
		{
			name:       "I/O-bound task (2.0x multiplier)",
			multiplier: 2.0,
			limit:      0,
			minExpect:  1,
			maxExpect:  availableCPU * 2,
		},
		{
			name:       "With limit lower than calculated",
			multiplier: 2.0,
			limit:      2,
			minExpect:  1,
			maxExpect:  2,
		},
		{
			name:       "Tiny multiplier still yields one worker",
			multiplier: 0.01,
			limit:      0,
			minExpect:  1,
			maxExpect:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Count(tt.multiplier, tt.limit)
			if got < tt.minExpect || got > tt.maxExpect {
				t.Errorf("Count(%v, %d) = %d, want between %d and %d",
					tt.multiplier, tt.limit, got, tt.minExpect, tt.maxExpect)
			}
		})
	}
}

func TestCountEnvOverride(t *testing.T) {
	originalEnv := os.Getenv("DATASET_WORKERS")
	defer func() {
		if originalEnv != "" {
			os.Setenv("DATASET_WORKERS", originalEnv)
		} else {
			os.Unsetenv("DATASET_WORKERS")
		}
	}()

	os.Setenv("DATASET_WORKERS", "3")
	if got := Count(1.0, 0); got != 3 {
		t.Errorf("Count with override = %d, want 3", got)
	}

	// Limit still caps the override
	if got := Count(1.0, 2); got != 2 {
		t.Errorf("Count with override and limit = %d, want 2", got)
	}

	// Garbage override is ignored
	os.Setenv("DATASET_WORKERS", "not-a-number")
	if got := Count(1.0, 0); got < 1 {
		t.Errorf("Count with invalid override = %d, want >= 1", got)
	}
}

func TestForHelpers(t *testing.T) {
	originalEnv := os.Getenv("DATASET_WORKERS")
	defer func() {
		if originalEnv != "" {
			os.Setenv("DATASET_WORKERS", originalEnv)
		} else {
			os.Unsetenv("DATASET_WORKERS")
		}
	}()
	os.Unsetenv("DATASET_WORKERS")

	if got := ForCPU(0); got < 1 {
		t.Errorf("ForCPU(0) = %d, want >= 1", got)
	}
	if got := ForIO(0); got < ForCPU(0) {
		t.Errorf("ForIO(0) = %d, want >= ForCPU(0) = %d", got, ForCPU(0))
	}
}
