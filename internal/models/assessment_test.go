package models

import "testing"

func TestAssessment_EffectiveMaxAttempts(t *testing.T) {
	tests := []struct {
		name        string
		maxAttempts int
		want        int
	}{
		{"unset", 0, DefaultMaxAttempts},
		{"negative", -2, DefaultMaxAttempts},
		{"single", 1, 1},
		{"several", 5, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Assessment{MaxAttempts: tt.maxAttempts}
			if got := a.EffectiveMaxAttempts(); got != tt.want {
				t.Errorf("EffectiveMaxAttempts() = %d, want %d", got, tt.want)
			}
		})
	}
}
