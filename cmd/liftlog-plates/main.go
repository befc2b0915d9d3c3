package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/plates"
)

var rule = strings.Repeat("=", 50)

type calculator struct {
	unit    models.Unit
	barbell float64
	mode    plates.Mode
	in      *bufio.Scanner
	out     io.Writer
}

func main() {
	unit := flag.String("unit", "lbs", "weight unit (lbs or kg)")
	barbell := flag.Float64("barbell", 0, "bar weight; 0 uses the standard bar for the unit")
	mode := flag.String("mode", "down", "rounding when the target is not loadable (down or up)")
	flag.Parse()

	m, err := plates.ParseMode(*mode)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	u := models.Unit(*unit)
	if !u.IsValid() {
		fmt.Fprintf(os.Stderr, "unknown unit %q\n", *unit)
		os.Exit(2)
	}

	c := &calculator{unit: u, barbell: *barbell, mode: m, in: bufio.NewScanner(os.Stdin), out: os.Stdout}
	if err := c.run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run loops prompting for a weight and printing its breakdown until the user
// declines to continue or input ends.
func (c *calculator) run() error {
	fmt.Fprintln(c.out, "Welcome to the Gym Plate Calculator!")
	fmt.Fprintln(c.out, "This tool finds the fewest plates needed for your target weight.")
	fmt.Fprintf(c.out, "Available plates: %s %s\n\n", joinWeights(plates.Denominations(c.unit)), c.unit)

	for {
		target, ok := c.readWeight()
		if !ok {
			fmt.Fprintln(c.out, "Goodbye!")
			return nil
		}

		b, err := plates.SolveFor(target, c.unit, c.barbell, c.mode)
		if err != nil {
			var ve *models.ValidationError
			if errors.As(err, &ve) {
				fmt.Fprintf(c.out, "Error: %s\n", ve.Errors[0].Message)
				continue
			}
			return err
		}
		fmt.Fprintf(c.out, "\n%s\nPLATE CALCULATION RESULTS\n%s\n", rule, rule)
		fmt.Fprint(c.out, plates.Format(b, c.unit))

		fmt.Fprintf(c.out, "\n%s\n", rule)
		again, ok := c.readYesNo("Would you like to calculate another weight?")
		if !ok {
			fmt.Fprintln(c.out, "Goodbye!")
			return nil
		}
		if !again {
			fmt.Fprintln(c.out, "\nThank you for using the Gym Plate Calculator!")
			fmt.Fprintln(c.out, "Stay strong!")
			return nil
		}
		fmt.Fprintf(c.out, "\n%s\n", rule)
	}
}

// readWeight prompts until a valid weight is entered. ok is false at end of input.
func (c *calculator) readWeight() (float64, bool) {
	for {
		fmt.Fprint(c.out, "Please enter the desired weight for the exercise: ")
		if !c.in.Scan() {
			fmt.Fprintln(c.out)
			return 0, false
		}
		w, err := plates.ParseWeight(c.in.Text())
		if err != nil {
			var ve *models.ValidationError
			if errors.As(err, &ve) {
				fmt.Fprintf(c.out, "Error: %s. Please try again.\n", ve.Errors[0].Message)
				continue
			}
			fmt.Fprintf(c.out, "Error: %v\n", err)
			continue
		}
		return w, true
	}
}

func (c *calculator) readYesNo(prompt string) (yes, ok bool) {
	for {
		fmt.Fprintf(c.out, "%s (y/n): ", prompt)
		if !c.in.Scan() {
			fmt.Fprintln(c.out)
			return false, false
		}
		switch strings.ToLower(strings.TrimSpace(c.in.Text())) {
		case "y", "yes":
			return true, true
		case "n", "no":
			return false, true
		}
		fmt.Fprintln(c.out, "Please enter 'y' for yes or 'n' for no.")
	}
}

func joinWeights(ws []float64) string {
	parts := make([]string, len(ws))
	for i, w := range ws {
		parts[i] = fmt.Sprint(w)
	}
	return strings.Join(parts, ", ")
}
