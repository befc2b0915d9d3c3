package plates

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/claude/liftlog/internal/models"
)

// ParseWeight parses a weight typed by a user. The value must be positive and
// may carry a single decimal digit, which must be 0 or 5.
func ParseWeight(input string) (float64, error) {
	s := strings.TrimSpace(input)
	w, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, models.NewValidationError("weight", "must be a number")
	}
	if w <= 0 {
		return 0, models.NewValidationError("weight", "must be a positive number")
	}
	if _, frac, found := strings.Cut(s, "."); found {
		if len(frac) != 1 {
			return 0, models.NewValidationError("weight", "use exactly one decimal place (e.g. 5.0 or 5.5)")
		}
		if frac != "0" && frac != "5" {
			return 0, models.NewValidationError("weight", "decimal place must be .0 or .5")
		}
	}
	return w, nil
}

// Format renders a breakdown as a plain-text report.
func Format(b Breakdown, unit models.Unit) string {
	var sb strings.Builder
	rule := strings.Repeat("-", 25)

	fmt.Fprintf(&sb, "Target Weight: %s %s\n", trim(b.TargetWeight), unit)
	fmt.Fprintf(&sb, "Actual Weight: %s %s\n", trim(b.ActualWeight), unit)
	if b.ExactMatch {
		sb.WriteString("Exact match achieved!\n")
	} else {
		fmt.Fprintf(&sb, "Difference: %+.1f %s\n", b.ActualWeight-b.TargetWeight, unit)
	}
	if !b.GreedyOptimal {
		sb.WriteString("Warning: plate set is not canonical, count may not be minimal\n")
	}

	fmt.Fprintf(&sb, "\nTotal Plates Needed: %d\n", b.TotalPlates)
	sb.WriteString("\nPlate Breakdown:\n")
	sb.WriteString(rule + "\n")
	fmt.Fprintf(&sb, "Barbell: %.1f %s\n", b.BarbellWeight, unit)
	for _, p := range b.Plates {
		fmt.Fprintf(&sb, "%4.1f %s plates: %2d x %4.1f = %5.1f %s\n",
			p.Weight, unit, p.Count, p.Weight, p.Weight*float64(p.Count), unit)
	}
	sb.WriteString(rule + "\n")
	fmt.Fprintf(&sb, "Total Weight: %s %s\n", trim(b.ActualWeight), unit)
	return sb.String()
}

func trim(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
