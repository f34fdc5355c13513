package models

import (
	"errors"
	"time"
)

// AvailabilitySlot represents a teacher-declared window of general
// availability, independent of any booked session. Recurring slots repeat on
// DayOfWeek and only the time-of-day of StartTime/EndTime is meaningful;
// one-off slots are interpreted by absolute timestamp.
type AvailabilitySlot struct {
	ID        string    `bson:"id" json:"id"`
	StartTime time.Time `bson:"startTime" json:"startTime"`
	EndTime   time.Time `bson:"endTime" json:"endTime"`
	Recurring bool      `bson:"recurring" json:"recurring"`
	DayOfWeek *int      `bson:"dayOfWeek,omitempty" json:"dayOfWeek,omitempty"` // 0=Sunday .. 6=Saturday
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// Validate checks the slot's shape. One-off slots must not lie in the past.
func (s *AvailabilitySlot) Validate(now time.Time) error {
	if !s.StartTime.Before(s.EndTime) {
		return errors.New("start time must be before end time")
	}
	if s.Recurring {
		if s.DayOfWeek == nil {
			return errors.New("recurring slots require a day of week")
		}
		if *s.DayOfWeek < 0 || *s.DayOfWeek > 6 {
			return errors.New("day of week must be between 0 and 6")
		}
		return nil
	}
	if s.EndTime.Before(now) {
		return errors.New("cannot declare availability in the past")
	}
	return nil
}

// Covers reports whether the candidate interval [start,end) falls entirely
// inside this slot. For recurring slots the weekday must match and the
// candidate's time-of-day must be contained; one-off slots compare absolute
// timestamps.
func (s *AvailabilitySlot) Covers(start, end time.Time) bool {
	if s.Recurring {
		if s.DayOfWeek == nil || int(start.Weekday()) != *s.DayOfWeek {
			return false
		}
		// Candidate intervals never span midnight: the weekday check above
		// pins start and end to the same day.
		candStart := minutesOfDay(start)
		candEnd := minutesOfDay(end)
		if candEnd == 0 {
			candEnd = 24 * 60
		}
		slotEnd := minutesOfDay(s.EndTime)
		if slotEnd == 0 {
			slotEnd = 24 * 60
		}
		return candStart >= minutesOfDay(s.StartTime) && candEnd <= slotEnd
	}
	return !start.Before(s.StartTime) && !end.After(s.EndTime)
}

func minutesOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// Interval is a half-open time interval [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether two half-open intervals overlap. Touching
// endpoints do not conflict.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && i.End.After(other.Start)
}
