package analytics

import (
	"fmt"
	"time"

	"github.com/mmdatafocus/franchise_analytics/models"
)

// Window is a reporting period: a canonical label plus its time boundaries.
type Window struct {
	Period string
	Start  time.Time
	End    time.Time
}

// Contains reports whether t falls in [Start, End).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// CurrentWeekWindow is the trailing seven days ending at now.
func CurrentWeekWindow(now time.Time) Window {
	now = now.UTC()
	return Window{
		Period: models.PeriodTypeWeekly,
		Start:  now.Add(-7 * 24 * time.Hour),
		End:    now,
	}
}

// CurrentMonthWindow is now's calendar month, End exclusive.
func CurrentMonthWindow(now time.Time) Window {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Window{
		Period: monthLabel(start),
		Start:  start,
		End:    start.AddDate(0, 1, 0),
	}
}

// NextMonthWindow is the calendar month after now's, from the first day at 00:00:00 to
// the last day at 23:59:59 UTC.
func NextMonthWindow(now time.Time) Window {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	// Day 0 of the following month is the last day of start's month.
	end := time.Date(start.Year(), start.Month()+1, 0, 23, 59, 59, 0, time.UTC)
	return Window{
		Period: monthLabel(start),
		Start:  start,
		End:    end,
	}
}

func monthLabel(t time.Time) string {
	return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
}
