package booking

import (
	"context"
	"errors"
	"sort"
	"time"

	userRepo "tutorly/database/repository/user"
	"tutorly/models"
)

// FreeSlot is an availability window with its booked state resolved against
// the teacher's active sessions.
type FreeSlot struct {
	SlotID    string    `json:"slotId"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Recurring bool      `json:"recurring"`
	Booked    bool      `json:"booked"`
}

// TeacherAvailabilityView is the availability of one teacher, optionally
// materialized onto a specific date.
type TeacherAvailabilityView struct {
	TeacherID  string     `json:"teacherId"`
	Name       string     `json:"name"`
	Subjects   []string   `json:"subjects"`
	Date       *time.Time `json:"date,omitempty"`
	Slots      []FreeSlot `json:"slots"`
	TotalSlots int        `json:"totalSlots"`
	FreeSlots  int        `json:"freeSlots"`
}

// TeacherAvailability returns the teacher's declared windows with booked
// flags. When date is set, recurring slots are projected onto that day and
// one-off slots outside it are dropped; when subject is set, the teacher
// must teach it.
func (s *DefaultBookingService) TeacherAvailability(ctx context.Context, teacherID string, date *time.Time, subject string) (*TeacherAvailabilityView, error) {
	teacher, err := s.Users.GetByID(ctx, teacherID)
	if err != nil {
		if errors.Is(err, userRepo.ErrNotFound) {
			return nil, &NotFoundError{Resource: "teacher"}
		}
		return nil, err
	}
	if !teacher.IsTeacher() {
		return nil, &NotFoundError{Resource: "teacher"}
	}
	if subject != "" && !teacher.Teaches(subject) {
		return nil, NewValidationError("teacher does not teach %s", subject)
	}

	sessions, err := s.Sessions.ListActiveForTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	booked := make([]models.Interval, 0, len(sessions))
	for _, sess := range sessions {
		booked = append(booked, sess.Interval())
	}

	view := &TeacherAvailabilityView{
		TeacherID: teacher.ID,
		Name:      teacher.Name,
		Subjects:  teacher.Subjects,
		Date:      date,
		Slots:     []FreeSlot{},
	}

	for _, slot := range teacher.Availability {
		window, ok := materialize(slot, date)
		if !ok {
			continue
		}
		view.Slots = append(view.Slots, FreeSlot{
			SlotID:    slot.ID,
			StartTime: window.Start,
			EndTime:   window.End,
			Recurring: slot.Recurring,
			Booked:    anyOverlap(booked, window),
		})
	}

	sort.Slice(view.Slots, func(i, j int) bool {
		return view.Slots[i].StartTime.Before(view.Slots[j].StartTime)
	})
	view.TotalSlots = len(view.Slots)
	for _, slot := range view.Slots {
		if !slot.Booked {
			view.FreeSlots++
		}
	}
	return view, nil
}

// materialize resolves a slot to a concrete interval. Recurring slots need
// a date to project onto; one-off slots must fall on the requested date when
// one is given.
func materialize(slot models.AvailabilitySlot, date *time.Time) (models.Interval, bool) {
	if !slot.Recurring {
		if date != nil {
			y, m, d := date.Date()
			sy, sm, sd := slot.StartTime.In(date.Location()).Date()
			if y != sy || m != sm || d != sd {
				return models.Interval{}, false
			}
		}
		return models.Interval{Start: slot.StartTime, End: slot.EndTime}, true
	}

	if date == nil || slot.DayOfWeek == nil {
		return models.Interval{}, false
	}
	if int(date.Weekday()) != *slot.DayOfWeek {
		return models.Interval{}, false
	}
	y, m, d := date.Date()
	loc := date.Location()
	start := time.Date(y, m, d, slot.StartTime.Hour(), slot.StartTime.Minute(), 0, 0, loc)
	end := time.Date(y, m, d, slot.EndTime.Hour(), slot.EndTime.Minute(), 0, 0, loc)
	if !end.After(start) {
		// window runs to midnight
		end = time.Date(y, m, d, 0, 0, 0, 0, loc).AddDate(0, 0, 1)
	}
	return models.Interval{Start: start, End: end}, true
}

func anyOverlap(intervals []models.Interval, window models.Interval) bool {
	for _, iv := range intervals {
		if window.Overlaps(iv) {
			return true
		}
	}
	return false
}
