package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// MinutesPerDay is the width of one calendar day on the absolute-minute scale
	MinutesPerDay = 24 * 60

	dateLayout = "2006-01-02"
)

// TimeToMinutes converts an HH:MM wall-clock string to minutes after midnight.
// Hours and minutes are not range checked.
func TimeToMinutes(hhmm string) (int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(hhmm), ":")
	if !ok {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", hhmm)
	}

	hours, err := strconv.Atoi(h)
	if err != nil {
		return 0, fmt.Errorf("invalid hours in %q: %w", hhmm, err)
	}
	minutes, err := strconv.Atoi(m)
	if err != nil {
		return 0, fmt.Errorf("invalid minutes in %q: %w", hhmm, err)
	}

	return hours*60 + minutes, nil
}

// dayNumber returns the proleptic Gregorian day count since 1970-01-01.
// Dates are read on the UTC calendar so the result never depends on the
// process timezone or on DST transitions.
func dayNumber(date string) (int, error) {
	d, err := time.ParseInLocation(dateLayout, strings.TrimSpace(date), time.UTC)
	if err != nil {
		return 0, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return int(d.Unix() / (MinutesPerDay * 60)), nil
}

// DateTimeToAbsoluteMinutes places a calendar date and wall-clock time on a
// single integer timeline. A is before B iff abs(A) < abs(B).
func DateTimeToAbsoluteMinutes(date, hhmm string) (int, error) {
	days, err := dayNumber(date)
	if err != nil {
		return 0, err
	}
	minutes, err := TimeToMinutes(hhmm)
	if err != nil {
		return 0, err
	}
	return days*MinutesPerDay + minutes, nil
}

// FormatAbsoluteMinutes is the inverse of DateTimeToAbsoluteMinutes.
func FormatAbsoluteMinutes(abs int) (date, hhmm string) {
	days := floorDiv(abs, MinutesPerDay)
	minuteOfDay := abs - days*MinutesPerDay

	date = time.Unix(int64(days)*MinutesPerDay*60, 0).UTC().Format(dateLayout)
	hhmm = fmt.Sprintf("%02d:%02d", minuteOfDay/60, minuteOfDay%60)
	return date, hhmm
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
