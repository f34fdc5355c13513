package booking

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	sessionRepo "tutorly/database/repository/session"
	userRepo "tutorly/database/repository/user"
	"tutorly/models"
	"tutorly/services/calendar"
)

// memSessionRepo is an in-memory SessionRepository. CreateIfFree and
// UpdateTimesIfFree hold the mutex across check and write, matching the
// transactional guarantee of the Mongo implementation.
type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]*models.Session)}
}

func (r *memSessionRepo) GetByID(_ context.Context, id string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, sessionRepo.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memSessionRepo) Update(_ context.Context, session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[session.ID]; !ok {
		return sessionRepo.ErrNotFound
	}
	cp := *session
	cp.UpdatedAt = time.Now()
	r.sessions[session.ID] = &cp
	return nil
}

func active(s *models.Session) bool {
	return s.Status == models.StatusPending || s.Status == models.StatusConfirmed
}

func (r *memSessionRepo) overlapsLocked(userID string, role models.Role, start, end time.Time, excludeID string) []models.Session {
	var out []models.Session
	want := models.Interval{Start: start, End: end}
	for _, s := range r.sessions {
		if s.ID == excludeID || !active(s) {
			continue
		}
		if role == models.RoleTeacher && s.TeacherID != userID {
			continue
		}
		if role == models.RoleStudent && s.StudentID != userID {
			continue
		}
		if want.Overlaps(s.Interval()) {
			out = append(out, *s)
		}
	}
	return out
}

func (r *memSessionRepo) CreateIfFree(_ context.Context, session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.overlapsLocked(session.TeacherID, models.RoleTeacher, session.StartTime, session.EndTime, "")) > 0 {
		return sessionRepo.ErrConflict
	}
	if len(r.overlapsLocked(session.StudentID, models.RoleStudent, session.StartTime, session.EndTime, "")) > 0 {
		return sessionRepo.ErrConflict
	}
	cp := *session
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	r.sessions[session.ID] = &cp
	return nil
}

func (r *memSessionRepo) UpdateTimesIfFree(_ context.Context, id string, start, end time.Time) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, sessionRepo.ErrNotFound
	}
	if len(r.overlapsLocked(s.TeacherID, models.RoleTeacher, start, end, id)) > 0 {
		return nil, sessionRepo.ErrConflict
	}
	if len(r.overlapsLocked(s.StudentID, models.RoleStudent, start, end, id)) > 0 {
		return nil, sessionRepo.ErrConflict
	}
	s.StartTime = start
	s.EndTime = end
	s.UpdatedAt = time.Now()
	cp := *s
	return &cp, nil
}

func (r *memSessionRepo) ListOverlapping(_ context.Context, userID string, role models.Role, start, end time.Time, excludeID string) ([]models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.overlapsLocked(userID, role, start, end, excludeID), nil
}

func (r *memSessionRepo) ListActiveForTeacher(_ context.Context, teacherID string) ([]models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Session
	for _, s := range r.sessions {
		if s.TeacherID == teacherID && active(s) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *memSessionRepo) ListByUser(_ context.Context, userID string, role models.Role, status models.SessionStatus, limit int64) ([]models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Session
	for _, s := range r.sessions {
		if role == models.RoleTeacher && s.TeacherID != userID {
			continue
		}
		if role == models.RoleStudent && s.StudentID != userID {
			continue
		}
		if status != "" && s.Status != status {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memSessionRepo) ListUpcoming(_ context.Context, userID string, role models.Role, now, until time.Time) ([]models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Session
	for _, s := range r.sessions {
		if role == models.RoleTeacher && s.TeacherID != userID {
			continue
		}
		if role == models.RoleStudent && s.StudentID != userID {
			continue
		}
		if !active(s) || s.StartTime.Before(now) || !s.StartTime.Before(until) {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (r *memSessionRepo) FindByCalendlyURI(_ context.Context, uri string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.CalendlyEventURI == uri {
			cp := *s
			return &cp, nil
		}
	}
	return nil, sessionRepo.ErrNotFound
}

func (r *memSessionRepo) FindUnsyncedCalendly(_ context.Context, start time.Time) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.Platform == models.PlatformCalendly && s.Status == models.StatusPending &&
			s.CalendlyEventURI == "" && s.StartTime.Equal(start) {
			cp := *s
			return &cp, nil
		}
	}
	return nil, sessionRepo.ErrNotFound
}

func (r *memSessionRepo) CompletePast(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.sessions {
		if s.Status == models.StatusConfirmed && s.EndTime.Before(now) {
			s.Status = models.StatusCompleted
			n++
		}
	}
	return n, nil
}

// memUserRepo is an in-memory UserRepository.
type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newMemUserRepo(users ...*models.User) *memUserRepo {
	r := &memUserRepo{users: make(map[string]*models.User)}
	for _, u := range users {
		cp := *u
		r.users[u.ID] = &cp
	}
	return r
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, userRepo.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, userRepo.ErrNotFound
}

func (r *memUserRepo) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *memUserRepo) Update(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return userRepo.ErrNotFound
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *memUserRepo) ListTeachersBySubject(_ context.Context, subject string) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.User
	for _, u := range r.users {
		if u.IsTeacher() && (subject == "" || u.Teaches(subject)) {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *memUserRepo) AddAvailabilitySlot(_ context.Context, teacherID string, slot models.AvailabilitySlot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[teacherID]
	if !ok {
		return userRepo.ErrNotFound
	}
	u.Availability = append(u.Availability, slot)
	return nil
}

func (r *memUserRepo) RemoveAvailabilitySlot(_ context.Context, teacherID, slotID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[teacherID]
	if !ok {
		return userRepo.ErrNotFound
	}
	for i, slot := range u.Availability {
		if slot.ID == slotID {
			u.Availability = append(u.Availability[:i], u.Availability[i+1:]...)
			return nil
		}
	}
	return userRepo.ErrNotFound
}

func (r *memUserRepo) SaveTokenSet(_ context.Context, teacherID string, platform models.Platform, set *models.OAuthTokenSet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[teacherID]
	if !ok {
		return userRepo.ErrNotFound
	}
	switch platform {
	case models.PlatformGoogle:
		u.GoogleTokens = set
		u.GoogleCalendarConnected = set != nil
	case models.PlatformCalendly:
		u.CalendlyTokens = set
		u.CalendlyConnected = set != nil
	}
	return nil
}

// stubBusyChecker is a canned external-calendar availability oracle.
type stubBusyChecker struct {
	free bool
	err  error
	// calls counts CheckAvailability invocations.
	calls int
}

func (b *stubBusyChecker) CheckAvailability(context.Context, string, time.Time, time.Time) (bool, error) {
	b.calls++
	return b.free, b.err
}

func calendarRef(eventID, eventURI, meetLink string) *calendar.EventRef {
	return &calendar.EventRef{EventID: eventID, EventURI: eventURI, MeetLink: meetLink}
}

// stubProvider records mirror calls and can be told to fail.
type stubProvider struct {
	mu       sync.Mutex
	platform models.Platform
	ref      *calendar.EventRef
	fail     bool

	created   []calendar.EventDetails
	updated   []calendar.EventUpdate
	cancelled []calendar.EventRef
}

func (p *stubProvider) Platform() models.Platform { return p.platform }

func (p *stubProvider) CreateEvent(_ context.Context, _ string, details calendar.EventDetails) (*calendar.EventRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return nil, errors.New("provider unreachable")
	}
	p.created = append(p.created, details)
	if p.ref != nil {
		cp := *p.ref
		return &cp, nil
	}
	return &calendar.EventRef{EventID: "evt-" + details.SessionID}, nil
}

func (p *stubProvider) UpdateEvent(_ context.Context, _ string, _ calendar.EventRef, update calendar.EventUpdate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("provider unreachable")
	}
	p.updated = append(p.updated, update)
	return nil
}

func (p *stubProvider) CancelEvent(_ context.Context, _ string, ref calendar.EventRef, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("provider unreachable")
	}
	p.cancelled = append(p.cancelled, ref)
	return nil
}
