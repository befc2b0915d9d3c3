package alpha

import (
	"fmt"
	"hash/fnv"
	"time"

	"github.com/claude/liftlog/internal/models"
)

// ToRecords converts parsed sessions into one workout record per exercise.
// The weight is the heaviest working set; sets counts the working sets and
// reps comes from the heaviest set. Exercises without a positive working
// weight are skipped, and the count of skipped exercises is returned.
//
// Record ids are derived from the session time and exercise, so importing
// the same export twice yields the same ids.
func ToRecords(sessions []models.AlphaSession) (recs []models.WorkoutRecord, skipped int) {
	for _, s := range sessions {
		for _, ex := range s.Exercises {
			top, working := heaviest(ex.Sets)
			if working == 0 || top.WeightKg <= 0 {
				skipped++
				continue
			}
			created := s.Date.UTC()
			recs = append(recs, models.WorkoutRecord{
				ID:           recordID(s.Date, ex),
				Date:         s.Date.Format(models.DateLayout),
				Exercise:     ex.Name,
				TargetWeight: top.WeightKg,
				ActualWeight: top.WeightKg,
				Unit:         models.UnitKg,
				Barbell:      ex.Equipment,
				Sets:         working,
				Reps:         top.Reps,
				Completed:    true,
				Notes:        s.Name,
				CreatedAt:    created,
				UpdatedAt:    created,
			})
		}
	}
	return recs, skipped
}

// heaviest returns the heaviest working set and the number of working sets.
func heaviest(sets []models.AlphaSet) (top models.AlphaSet, working int) {
	for _, set := range sets {
		if set.IsWarmup {
			continue
		}
		working++
		if working == 1 || set.WeightKg > top.WeightKg {
			top = set
		}
	}
	return top, working
}

func recordID(session time.Time, ex models.AlphaExercise) string {
	h := fnv.New32a()
	fmt.Fprintf(h, "%d|%s|%s", ex.Number, ex.Name, ex.Equipment)
	return fmt.Sprintf("%d_%08x", session.UnixMilli(), h.Sum32())
}
