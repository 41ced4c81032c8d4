package workflow

import (
	"testing"

	"github.com/mbilous/printnet-system/internal/model"
)

func TestEstimate_KnownScenarios(t *testing.T) {
	tests := []struct {
		name     string
		settings model.PrintSettings
		want     float64
	}{
		{
			name:     "PLA single item",
			settings: model.PrintSettings{Material: "PLA", Infill: 20, LayerHeight: 0.2, Quantity: 1},
			want:     10.00,
		},
		{
			name:     "PLA three items",
			settings: model.PrintSettings{Material: "PLA", Infill: 20, LayerHeight: 0.2, Quantity: 3},
			want:     30.00,
		},
		{
			name:     "ABS full infill",
			settings: model.PrintSettings{Material: "ABS", Infill: 100, LayerHeight: 0.5, Quantity: 1},
			want:     17.00,
		},
		{
			name:     "unknown material falls back to cheapest",
			settings: model.PrintSettings{Material: "NYLON", Infill: 20, LayerHeight: 0.2, Quantity: 1},
			want:     10.00,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Estimate(tt.settings)
			if err != nil {
				t.Fatalf("Estimate error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Estimate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEstimate_Deterministic(t *testing.T) {
	s := model.PrintSettings{Material: "PETG", Infill: 35, LayerHeight: 0.3, Quantity: 2}

	a, err := Estimate(s)
	if err != nil {
		t.Fatalf("Estimate error: %v", err)
	}
	b, err := Estimate(s)
	if err != nil {
		t.Fatalf("Estimate error: %v", err)
	}

	if a != b {
		t.Fatalf("Estimate must be deterministic, got %v and %v", a, b)
	}
}

func TestEstimate_NeverBelowBaseFee(t *testing.T) {
	for _, s := range []model.PrintSettings{
		{Material: "PLA", Infill: 5, LayerHeight: 0.5, Quantity: 1},
		{Material: "TPU", Infill: 100, LayerHeight: 0.1, Quantity: 4},
		{Material: "ABS", Infill: 50, LayerHeight: 0.25, Quantity: 2},
	} {
		got, err := Estimate(s)
		if err != nil {
			t.Fatalf("Estimate(%+v) error: %v", s, err)
		}
		if min := BaseFee * float64(s.Quantity); got < min {
			t.Fatalf("Estimate(%+v) = %v, want at least %v", s, got, min)
		}
	}
}

func TestEstimate_IncompleteInput(t *testing.T) {
	for _, s := range []model.PrintSettings{
		{Material: "", Infill: 20, LayerHeight: 0.2, Quantity: 1},
		{Material: "PLA", Infill: 0, LayerHeight: 0.2, Quantity: 1},
		{Material: "PLA", Infill: 20, LayerHeight: 0, Quantity: 1},
		{Material: "PLA", Infill: 20, LayerHeight: 0.2, Quantity: 0},
		{Material: "PLA", Infill: -5, LayerHeight: 0.2, Quantity: 1},
	} {
		if _, err := Estimate(s); err == nil {
			t.Fatalf("Estimate(%+v) expected error for incomplete input", s)
		}
	}
}

func TestRunningEstimate_KeepsPriorOnInvalidInput(t *testing.T) {
	var e RunningEstimate

	if _, ok := e.Value(); ok {
		t.Fatalf("fresh estimate must be absent")
	}

	// Некорректный ввод не создаёт оценку
	e.Update(model.PrintSettings{Material: "PLA", Quantity: 1})
	if _, ok := e.Value(); ok {
		t.Fatalf("invalid input must not produce an estimate")
	}

	e.Update(model.PrintSettings{Material: "PLA", Infill: 20, LayerHeight: 0.2, Quantity: 1})
	v, ok := e.Value()
	if !ok || v != 10.00 {
		t.Fatalf("Value = %v, %v; want 10.00, true", v, ok)
	}

	// Некорректный ввод не затирает прежнюю оценку
	e.Update(model.PrintSettings{Material: "PLA", Infill: 0, LayerHeight: 0.2, Quantity: 1})
	v, ok = e.Value()
	if !ok || v != 10.00 {
		t.Fatalf("prior estimate must survive invalid input, got %v, %v", v, ok)
	}
}

func TestValidateSettings(t *testing.T) {
	valid := model.PrintSettings{Material: "PLA", Infill: 20, LayerHeight: 0.2, Quantity: 1}
	if err := ValidateSettings(valid); err != nil {
		t.Fatalf("ValidateSettings(%+v) error: %v", valid, err)
	}

	boundary := model.PrintSettings{Material: "TPU", Infill: 100, LayerHeight: 0.5, Quantity: 1}
	if err := ValidateSettings(boundary); err != nil {
		t.Fatalf("ValidateSettings(%+v) error: %v", boundary, err)
	}

	for _, s := range []model.PrintSettings{
		{Material: "", Infill: 20, LayerHeight: 0.2, Quantity: 1},
		{Material: "PLA", Infill: 4, LayerHeight: 0.2, Quantity: 1},
		{Material: "PLA", Infill: 101, LayerHeight: 0.2, Quantity: 1},
		{Material: "PLA", Infill: 20, LayerHeight: 0.05, Quantity: 1},
		{Material: "PLA", Infill: 20, LayerHeight: 0.6, Quantity: 1},
		{Material: "PLA", Infill: 20, LayerHeight: 0.2, Quantity: 0},
	} {
		if err := ValidateSettings(s); err == nil {
			t.Fatalf("ValidateSettings(%+v) expected error", s)
		}
	}
}
