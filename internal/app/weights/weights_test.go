package weights

import (
	"math"
	"testing"

	"github.com/matchd-io/matchd/internal/domain"
)

func TestMultiplier(t *testing.T) {
	tests := []struct {
		note int
		want float64
	}{
		{1, 0.5},
		{10, 2.0},
		{-3, 0.5}, // clamped
		{42, 2.0}, // clamped
	}
	for _, tt := range tests {
		if got := Multiplier(tt.note); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Multiplier(%d) = %v, want %v", tt.note, got, tt.want)
		}
	}
	// note 5.5 would be the exact neutral point; 5 and 6 straddle 1.0
	if Multiplier(5) >= 1.0 || Multiplier(6) <= 1.0 {
		t.Errorf("multiplier not centered: m(5)=%v m(6)=%v", Multiplier(5), Multiplier(6))
	}
}

func TestResolveNoPriorities(t *testing.T) {
	got, err := Resolve(DefaultBase(), nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	base := DefaultBase()
	for dim, want := range base {
		if math.Abs(got[dim]-want) > domain.WeightTolerance {
			t.Errorf("%s = %v, want base %v", dim, got[dim], want)
		}
	}
}

func TestResolveAlwaysNormalized(t *testing.T) {
	prios := []map[domain.PriorityLever]int{
		nil,
		{domain.LeverCompensation: 10},
		{domain.LeverCompensation: 1, domain.LeverProximity: 10},
		{domain.LeverEvolution: 7, domain.LeverFlexibility: 2},
		{domain.LeverEvolution: 99, domain.LeverCompensation: -5}, // clamped notes
	}
	for _, p := range prios {
		got, err := Resolve(DefaultBase(), p)
		if err != nil {
			t.Fatalf("Resolve(%v) error = %v", p, err)
		}
		if err := got.Validate(); err != nil {
			t.Errorf("Resolve(%v) not normalized: %v", p, err)
		}
	}
}

func TestResolveShiftsMass(t *testing.T) {
	// compensation 9, proximity 3: salary must outweigh proximity afterwards
	got, err := Resolve(DefaultBase(), map[domain.PriorityLever]int{
		domain.LeverCompensation: 9,
		domain.LeverProximity:    3,
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got[domain.DimSalary] <= got[domain.DimProximity] {
		t.Errorf("salary weight %v not above proximity weight %v", got[domain.DimSalary], got[domain.DimProximity])
	}
	// base had salary 0.25 > proximity 0.20 already; the gap must widen
	baseGap := 0.25 - 0.20
	if got[domain.DimSalary]-got[domain.DimProximity] <= baseGap {
		t.Errorf("priorities did not widen the salary/proximity gap: %v", got[domain.DimSalary]-got[domain.DimProximity])
	}
}

func TestResolveEvolutionTargetsTwoDimensions(t *testing.T) {
	base := DefaultBase()
	got, err := Resolve(base, map[domain.PriorityLever]int{domain.LeverEvolution: 10})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	// both targets doubled pre-normalization, so their ratio to untouched
	// dimensions doubles
	wantRatio := 2 * (base[domain.DimSkills] / base[domain.DimSalary])
	gotRatio := got[domain.DimSkills] / got[domain.DimSalary]
	if math.Abs(gotRatio-wantRatio) > 1e-9 {
		t.Errorf("skills/salary ratio = %v, want %v", gotRatio, wantRatio)
	}
}

func TestResolveIgnoresUnscoredDimensions(t *testing.T) {
	base := domain.WeightVector{domain.DimSkills: 0.7, domain.DimContract: 0.3}
	got, err := Resolve(base, map[domain.PriorityLever]int{domain.LeverCompensation: 10})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if _, ok := got[domain.DimSalary]; ok {
		t.Errorf("resolver invented a dimension the base does not score: %v", got)
	}
	if err := got.Validate(); err != nil {
		t.Errorf("vector not normalized: %v", err)
	}
}
