// Package maintenance evaluates maintenance-window recurrence and decides
// whether a record currently falls inside a suppression window (§4.6).
package maintenance

import (
	"time"

	"github.com/pdaltagent/pdgateway/internal/domain/condition"
	"github.com/pdaltagent/pdgateway/internal/domain/record"
	"github.com/pdaltagent/pdgateway/internal/domain/rules"
)

const (
	daySeconds  = 24 * 60 * 60
	weekSeconds = 7 * daySeconds
)

// IsActiveNow implements the once/daily/weekly recurrence rule (§4.6, P6).
func IsActiveNow(w *rules.MaintenanceWindow, now time.Time) bool {
	nowUnix := now.Unix()

	switch w.Frequency {
	case rules.FrequencyOnce:
		return w.Start <= nowUnix && nowUnix <= w.End

	case rules.FrequencyDaily:
		return recurringActive(w.Start, w.DurationSeconds, daySeconds, nowUnix)

	case rules.FrequencyWeekly:
		return recurringActive(w.Start, w.DurationSeconds, weekSeconds, nowUnix)

	default:
		return false
	}
}

// recurringActive finds anchor = start + k*period for the largest k >= 0
// with anchor <= now, then checks now falls in [anchor, anchor+duration].
func recurringActive(start, duration, period, now int64) bool {
	if now < start {
		return false
	}
	elapsed := now - start
	k := elapsed / period
	anchor := start + k*period
	return anchor <= now && now <= anchor+duration
}

// Window pairs a maintenance window with its start/end rendered in the
// store's configured display timezone, for the human-friendly summary
// attached to enriched records (§4.6).
type Window struct {
	*rules.MaintenanceWindow
	StartDisplay string
	EndDisplay   string
}

// Evaluate returns whether rec is in maintenance and every active window
// whose condition also matches it (§4.6, I4).
func Evaluate(windows []*rules.MaintenanceWindow, rec record.Map, cache *condition.RegexCache, now time.Time, displayLoc *time.Location) (bool, []Window) {
	var applied []Window
	for _, w := range windows {
		if !IsActiveNow(w, now) {
			continue
		}
		ok, err := condition.Evaluate(w.Condition, rec, cache)
		if err != nil || !ok {
			continue
		}
		applied = append(applied, Window{
			MaintenanceWindow: w,
			StartDisplay:      time.Unix(w.Start, 0).In(displayLoc).Format(time.RFC3339),
			EndDisplay:        time.Unix(w.End, 0).In(displayLoc).Format(time.RFC3339),
		})
	}
	return len(applied) > 0, applied
}
