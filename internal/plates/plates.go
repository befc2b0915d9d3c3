// Package plates computes barbell plate loadouts.
//
// Solve works greedily from the largest denomination down. Greedy is only
// guaranteed to use the fewest plates when the denomination set is canonical;
// the built-in lbs and kg sets are, and IsCanonical checks custom sets.
// Plate counts are totals for the whole bar, not per side.
package plates

import (
	"fmt"
	"math"
	"slices"

	"github.com/claude/liftlog/internal/models"
)

// Mode selects how a remainder that no plate can cover is handled.
type Mode int

const (
	// RoundDown loads the heaviest weight not above the target.
	RoundDown Mode = iota
	// RoundUp loads the lightest weight not below the target.
	RoundUp
)

// tolerance for ExactMatch.
const tolerance = 0.01

var (
	lbsPlates = []float64{45, 25, 10, 5, 2.5}
	kgPlates  = []float64{25, 20, 15, 10, 5, 2.5, 1.25}
)

// Denominations returns the available plates for a unit, largest first.
// Unknown units get the lbs set.
func Denominations(unit models.Unit) []float64 {
	if unit == models.UnitKg {
		return slices.Clone(kgPlates)
	}
	return slices.Clone(lbsPlates)
}

// DefaultBarbell returns the standard bar weight for a unit.
func DefaultBarbell(unit models.Unit) float64 {
	if unit == models.UnitKg {
		return 20
	}
	return 45
}

// PlateCount is the number of plates of one denomination.
type PlateCount struct {
	Weight float64 `json:"weight"`
	Count  int     `json:"count"`
}

// Breakdown is the result of Solve.
type Breakdown struct {
	TargetWeight  float64      `json:"targetWeight"`
	BarbellWeight float64      `json:"barbellWeight"`
	ActualWeight  float64      `json:"actualWeight"`
	Plates        []PlateCount `json:"plates"`
	ExactMatch    bool         `json:"exactMatch"`
	TotalPlates   int          `json:"totalPlates"`
	// GreedyOptimal is false when the denominations are not canonical, in
	// which case TotalPlates may not be the minimum.
	GreedyOptimal bool `json:"greedyOptimal"`
}

// Count returns the number of plates of the given weight.
func (b Breakdown) Count(weight float64) int {
	for _, p := range b.Plates {
		if math.Abs(p.Weight-weight) < tolerance {
			return p.Count
		}
	}
	return 0
}

// PerSide splits the plates evenly across both sleeves. ok is false when some
// denomination has an odd count and cannot be split.
func (b Breakdown) PerSide() (side []PlateCount, ok bool) {
	side = make([]PlateCount, 0, len(b.Plates))
	for _, p := range b.Plates {
		if p.Count%2 != 0 {
			return nil, false
		}
		side = append(side, PlateCount{Weight: p.Weight, Count: p.Count / 2})
	}
	return side, true
}

// Solve computes the plates needed to load targetWeight onto a bar weighing
// barbellWeight. denoms must be positive and strictly descending.
//
// A target below the bar weight yields the bare bar with ExactMatch false.
func Solve(targetWeight, barbellWeight float64, denoms []float64, mode Mode) (Breakdown, error) {
	if err := validateInput(targetWeight, barbellWeight, denoms); err != nil {
		return Breakdown{}, err
	}

	b := Breakdown{
		TargetWeight:  targetWeight,
		BarbellWeight: barbellWeight,
		Plates:        []PlateCount{},
		GreedyOptimal: isBuiltin(denoms) || IsCanonical(denoms),
	}

	if targetWeight < barbellWeight {
		b.ActualWeight = barbellWeight
		return b, nil
	}

	remaining := round2(targetWeight - barbellWeight)
	if mode == RoundUp {
		smallest := denoms[len(denoms)-1]
		steps := math.Ceil(round2(remaining/smallest) - 1e-9)
		remaining = round2(steps * smallest)
	}

	loaded := 0.0
	for _, d := range denoms {
		count := int(math.Floor(remaining/d + 1e-9))
		if count <= 0 {
			continue
		}
		b.Plates = append(b.Plates, PlateCount{Weight: d, Count: count})
		b.TotalPlates += count
		loaded += float64(count) * d
		remaining = round2(remaining - float64(count)*d)
	}

	b.ActualWeight = round2(barbellWeight + loaded)
	b.ExactMatch = math.Abs(b.ActualWeight-targetWeight) < tolerance
	return b, nil
}

func validateInput(target, barbell float64, denoms []float64) error {
	var errs []models.FieldError
	if math.IsNaN(target) || math.IsInf(target, 0) || target < 0 {
		errs = append(errs, models.FieldError{Field: "targetWeight", Message: "must be a finite number >= 0"})
	}
	if math.IsNaN(barbell) || math.IsInf(barbell, 0) || barbell <= 0 {
		errs = append(errs, models.FieldError{Field: "barbellWeight", Message: "must be a finite number > 0"})
	}
	if len(denoms) == 0 {
		errs = append(errs, models.FieldError{Field: "denominations", Message: "at least one plate is required"})
	}
	for i, d := range denoms {
		if math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
			errs = append(errs, models.FieldError{Field: "denominations", Message: fmt.Sprintf("plate %v must be > 0", d)})
			break
		}
		if i > 0 && d >= denoms[i-1] {
			errs = append(errs, models.FieldError{Field: "denominations", Message: "plates must be strictly descending"})
			break
		}
	}
	if len(errs) > 0 {
		return &models.ValidationError{Errors: errs}
	}
	return nil
}

func isBuiltin(denoms []float64) bool {
	return slices.Equal(denoms, lbsPlates) || slices.Equal(denoms, kgPlates)
}

// IsCanonical reports whether greedy selection is optimal for denoms: for
// every amount it either finds the fewest plates or no exact loadout exists.
// Amounts are checked in hundredths below the sum of the two largest plates,
// which bounds the smallest counterexample.
func IsCanonical(denoms []float64) bool {
	if len(denoms) < 2 {
		return true
	}
	coins := make([]int, len(denoms))
	for i, d := range denoms {
		coins[i] = int(math.Round(d * 100))
		if coins[i] <= 0 {
			return false
		}
	}

	limit := coins[0] + coins[1]
	const unreachable = math.MaxInt32
	best := make([]int, limit)
	for a := 1; a < limit; a++ {
		best[a] = unreachable
		for _, c := range coins {
			if c <= a && best[a-c] != unreachable && best[a-c]+1 < best[a] {
				best[a] = best[a-c] + 1
			}
		}
	}

	for a := 1; a < limit; a++ {
		rest, used := a, 0
		for _, c := range coins {
			used += rest / c
			rest %= c
		}
		if rest == 0 && best[a] < used {
			return false
		}
		if rest != 0 && best[a] != unreachable {
			return false
		}
	}
	return true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ParseMode reads "down" or "up". Empty input is RoundDown.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "down":
		return RoundDown, nil
	case "up":
		return RoundUp, nil
	}
	return RoundDown, models.NewValidationError("mode", fmt.Sprintf("must be down or up, got %q", s))
}

// SolveFor solves using the standard plates for unit. A barbellWeight of 0
// selects the unit's standard bar.
func SolveFor(targetWeight float64, unit models.Unit, barbellWeight float64, mode Mode) (Breakdown, error) {
	if !unit.IsValid() {
		return Breakdown{}, models.NewValidationError("unit", fmt.Sprintf("must be lbs or kg, got %q", unit))
	}
	if barbellWeight == 0 {
		barbellWeight = DefaultBarbell(unit)
	}
	return Solve(targetWeight, barbellWeight, Denominations(unit), mode)
}
