package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"booking-service/internal/domain"
)

// Memory is an in-process Store with the same atomicity guarantees as
// Postgres, including the one-active-booking-per-slot rule. Every operation
// holds one mutex for its whole duration.
type Memory struct {
	mu       sync.Mutex
	now      func() time.Time
	slots    map[int64]domain.Slot
	bookings map[int64]domain.Booking
	users    map[int64]domain.User
	reviews  []domain.Review
	payments []domain.Payment
	nextID   int64
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		now:      time.Now,
		slots:    make(map[int64]domain.Slot),
		bookings: make(map[int64]domain.Booking),
		users:    make(map[int64]domain.User),
	}
}

// SetClock replaces the time source used for created_at and review windows.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *Memory) Ping(context.Context) error { return nil }

func sortSlots(s []domain.Slot) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Date != s[j].Date {
			return s[i].Date < s[j].Date
		}
		return s[i].StartTime < s[j].StartTime
	})
}

func (m *Memory) ListOpenSlots(_ context.Context, date string) ([]domain.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []domain.Slot{}
	for _, s := range m.slots {
		if s.IsOpen && (date == "" || s.Date == date) {
			out = append(out, s)
		}
	}
	sortSlots(out)
	return out, nil
}

func (m *Memory) ListSlots(_ context.Context, from, to string) ([]domain.SlotView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var slots []domain.Slot
	for _, s := range m.slots {
		if (from == "" || s.Date >= from) && (to == "" || s.Date <= to) {
			slots = append(slots, s)
		}
	}
	sortSlots(slots)

	out := make([]domain.SlotView, 0, len(slots))
	for _, s := range slots {
		out = append(out, domain.SlotView{Slot: s, IsBooked: m.bookedLocked(s.ID)})
	}
	return out, nil
}

func (m *Memory) bookedLocked(slotID int64) bool {
	for _, b := range m.bookings {
		if b.SlotID != nil && *b.SlotID == slotID && b.Status == domain.StatusBooked {
			return true
		}
	}
	return false
}

func (m *Memory) overlapsLocked(c domain.Slot, excludeID int64) bool {
	for id, s := range m.slots {
		if id != excludeID && s.Overlaps(c) {
			return true
		}
	}
	return false
}

func (m *Memory) GetSlot(_ context.Context, id int64) (domain.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[id]
	if !ok {
		return domain.Slot{}, domain.ErrSlotNotFound
	}
	return s, nil
}

func (m *Memory) CreateSlot(_ context.Context, s *domain.Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.overlapsLocked(*s, 0) {
		return domain.ErrSlotOverlap
	}
	s.ID = m.id()
	m.slots[s.ID] = *s
	return nil
}

func (m *Memory) UpdateSlot(_ context.Context, s *domain.Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.slots[s.ID]; !ok {
		return domain.ErrSlotNotFound
	}
	if s.IsOpen && m.bookedLocked(s.ID) {
		return domain.ErrSlotHeld
	}
	if m.overlapsLocked(*s, s.ID) {
		return domain.ErrSlotOverlap
	}
	m.slots[s.ID] = *s
	return nil
}

func (m *Memory) DeleteSlot(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.slots[id]; !ok {
		return domain.ErrSlotNotFound
	}
	if m.bookedLocked(id) {
		return domain.ErrSlotBooked
	}
	delete(m.slots, id)
	for bid, b := range m.bookings {
		if b.SlotID != nil && *b.SlotID == id {
			b.SlotID = nil
			m.bookings[bid] = b
		}
	}
	return nil
}

func (m *Memory) SetSlotOpen(_ context.Context, id int64, open bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[id]
	if !ok {
		return 0, nil
	}
	if open && m.bookedLocked(id) {
		return 0, domain.ErrSlotHeld
	}
	s.IsOpen = open
	m.slots[id] = s
	return 1, nil
}

func (m *Memory) InsertSlots(_ context.Context, slots []domain.Slot) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range slots {
		if s.StartTime >= s.EndTime {
			return 0, domain.Validation("Start time must be before end time.")
		}
	}

	inserted := 0
	for _, s := range slots {
		if m.overlapsLocked(s, 0) {
			continue
		}
		s.ID = m.id()
		m.slots[s.ID] = s
		inserted++
	}
	return inserted, nil
}

func (m *Memory) HasOverlap(_ context.Context, date, start, end string, excludeID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.overlapsLocked(domain.Slot{Date: date, StartTime: start, EndTime: end}, excludeID), nil
}

func (m *Memory) BookSlot(_ context.Context, nb domain.NewBooking) (domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[nb.SlotID]
	if !ok || !s.IsOpen || m.bookedLocked(s.ID) {
		return domain.Booking{}, domain.ErrSlotUnavailable
	}
	s.IsOpen = false
	m.slots[s.ID] = s

	slotID := s.ID
	b := domain.Booking{
		ID:        m.id(),
		UserID:    nb.UserID,
		SlotID:    &slotID,
		Service:   nb.Service,
		Address:   nb.Address,
		Date:      s.Date,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		Status:    domain.StatusBooked,
		CreatedAt: m.now().UTC(),
	}
	m.bookings[b.ID] = b
	return b, nil
}

func (m *Memory) GetBooking(_ context.Context, id int64) (domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[id]
	if !ok {
		return domain.Booking{}, domain.ErrBookingNotFound
	}
	return b, nil
}

func (m *Memory) CancelBooking(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[id]
	if !ok {
		return domain.ErrBookingNotFound
	}
	if b.Status != domain.StatusBooked {
		return domain.ErrBookingNotActive
	}
	b.Status = domain.StatusCancelled
	m.bookings[id] = b
	return nil
}

func sortBookings(b []domain.Booking) {
	sort.Slice(b, func(i, j int) bool {
		if b[i].Date != b[j].Date {
			return b[i].Date > b[j].Date
		}
		return b[i].StartTime > b[j].StartTime
	})
}

func (m *Memory) ListBookingsByUser(_ context.Context, userID int64) ([]domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []domain.Booking{}
	for _, b := range m.bookings {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sortBookings(out)
	return out, nil
}

func (m *Memory) ListAllBookings(context.Context) ([]domain.BookingView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]domain.Booking, 0, len(m.bookings))
	for _, b := range m.bookings {
		all = append(all, b)
	}
	sortBookings(all)

	out := make([]domain.BookingView, 0, len(all))
	for _, b := range all {
		u := m.users[b.UserID]
		out = append(out, domain.BookingView{Booking: b, UserName: u.Name, UserEmail: u.Email})
	}
	return out, nil
}

func (m *Memory) GetUser(_ context.Context, id int64) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

func (m *Memory) userByEmailLocked(email string) (domain.User, bool) {
	for _, u := range m.users {
		if u.Email == email {
			return u, true
		}
	}
	return domain.User{}, false
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.userByEmailLocked(email)
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

func (m *Memory) GetOwnerByName(_ context.Context, name string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var found *domain.User
	for _, u := range m.users {
		if u.Name == name && u.Role == domain.RoleOwner && (found == nil || u.ID < found.ID) {
			u := u
			found = &u
		}
	}
	if found == nil {
		return domain.User{}, domain.ErrUserNotFound
	}
	return *found, nil
}

func (m *Memory) insertUserLocked(u *domain.User) {
	u.ID = m.id()
	u.CreatedAt = m.now().UTC()
	if u.Role == "" {
		u.Role = domain.RoleUser
	}
	m.users[u.ID] = *u
}

func (m *Memory) CreateUser(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.userByEmailLocked(u.Email); ok {
		return domain.ErrEmailTaken
	}
	m.insertUserLocked(u)
	return nil
}

func (m *Memory) EnsureUser(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.userByEmailLocked(u.Email); ok {
		*u = existing
		return nil
	}
	m.insertUserLocked(u)
	return nil
}

func (m *Memory) UpsertOwner(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u.Role = domain.RoleOwner
	if existing, ok := m.userByEmailLocked(u.Email); ok {
		existing.Name = u.Name
		existing.PasswordHash = u.PasswordHash
		existing.Role = domain.RoleOwner
		m.users[existing.ID] = existing
		*u = existing
		return nil
	}
	m.insertUserLocked(u)
	return nil
}

func (m *Memory) CreateReview(_ context.Context, r *domain.Review, window time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	for _, existing := range m.reviews {
		if existing.UserID == r.UserID && existing.CreatedAt.After(now.Add(-window)) {
			return domain.ErrReviewTooSoon
		}
	}
	r.ID = m.id()
	r.CreatedAt = now
	m.reviews = append(m.reviews, *r)
	return nil
}

func (m *Memory) ListReviews(context.Context) ([]domain.ReviewView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.ReviewView, 0, len(m.reviews))
	for _, r := range m.reviews {
		out = append(out, domain.ReviewView{Review: r, Name: m.users[r.UserID].Name})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) CreatePayment(_ context.Context, p *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bookings[p.BookingID]; !ok {
		return domain.ErrBookingNotFound
	}
	p.ID = m.id()
	p.CreatedAt = m.now().UTC()
	m.payments = append(m.payments, *p)
	return nil
}
