package schedule

// Interval is a half-open [Start, End) range on the absolute-minute scale.
type Interval struct {
	Start int
	End   int
}

// NewInterval builds the interval covered by an appointment.
func NewInterval(date, start string, durationMinutes int) (Interval, error) {
	abs, err := DateTimeToAbsoluteMinutes(date, start)
	if err != nil {
		return Interval{}, err
	}
	return Interval{Start: abs, End: abs + durationMinutes}, nil
}

// Overlaps reports whether both intervals share at least one minute.
// Back-to-back intervals do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && o.Start < i.End
}

// AppointmentsOverlap decides whether two (date, start, duration) slots intersect.
func AppointmentsOverlap(dateA, startA string, durationA int, dateB, startB string, durationB int) (bool, error) {
	a, err := NewInterval(dateA, startA, durationA)
	if err != nil {
		return false, err
	}
	b, err := NewInterval(dateB, startB, durationB)
	if err != nil {
		return false, err
	}
	return a.Overlaps(b), nil
}
