package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tutorhive/tutorhive-server/internal/model"
)

// memStore is an in-memory stand-in for the pgx-backed repositories. Every
// mutation holds the mutex for its full duration, so the guarded status
// transitions behave like the single SQL statements they model: under
// concurrent callers exactly one compare-and-swap succeeds.
type memStore struct {
	mu sync.Mutex

	slots        map[int64]*model.Slot
	bookings     map[int64]*model.Booking
	profiles     map[int64]*model.TutorProfile
	ledger       []model.CreditEntry
	availability []*model.AvailabilityBlock
	timeOff      []*model.TimeOffBlock

	nextID  int64
	txDepth int
	snap    *memSnapshot
}

type memSnapshot struct {
	slots    map[int64]*model.Slot
	bookings map[int64]*model.Booking
	ledger   []model.CreditEntry
}

func newMemStore() *memStore {
	return &memStore{
		slots:    make(map[int64]*model.Slot),
		bookings: make(map[int64]*model.Booking),
		profiles: make(map[int64]*model.TutorProfile),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func copySlot(s *model.Slot) *model.Slot {
	c := *s
	return &c
}

func copyBooking(b *model.Booking) *model.Booking {
	c := *b
	return &c
}

// WithTx snapshots mutable state at the outermost level and restores it
// when fn fails, mimicking a rolled-back database transaction. Nested
// calls join the outer one.
func (m *memStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	m.txDepth++
	outer := m.txDepth == 1
	if outer {
		m.snap = m.snapshot()
	}
	m.mu.Unlock()

	err := fn(ctx)

	m.mu.Lock()
	m.txDepth--
	if outer {
		if err != nil {
			m.restore(m.snap)
		}
		m.snap = nil
	}
	m.mu.Unlock()

	return err
}

func (m *memStore) snapshot() *memSnapshot {
	snap := &memSnapshot{
		slots:    make(map[int64]*model.Slot, len(m.slots)),
		bookings: make(map[int64]*model.Booking, len(m.bookings)),
		ledger:   append([]model.CreditEntry(nil), m.ledger...),
	}
	for id, s := range m.slots {
		snap.slots[id] = copySlot(s)
	}
	for id, b := range m.bookings {
		snap.bookings[id] = copyBooking(b)
	}
	return snap
}

func (m *memStore) restore(snap *memSnapshot) {
	m.slots = snap.slots
	m.bookings = snap.bookings
	m.ledger = snap.ledger
}

// SlotStore

func (m *memStore) Create(ctx context.Context, slot *model.Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.slots {
		if existing.TutorID == slot.TutorID && existing.StartAt.Equal(slot.StartAt) && existing.DeletedAt == nil {
			return ErrDuplicateSlot
		}
	}

	slot.ID = m.id()
	slot.CreatedAt = time.Now()
	slot.UpdatedAt = slot.CreatedAt
	m.slots[slot.ID] = copySlot(slot)
	return nil
}

func (m *memStore) GetByID(ctx context.Context, id int64) (*model.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	slot, ok := m.slots[id]
	if !ok || slot.DeletedAt != nil {
		return nil, nil
	}
	return copySlot(slot), nil
}

func (m *memStore) OpenSlotsInRange(ctx context.Context, tutorID int64, from, to time.Time) ([]*model.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var slots []*model.Slot
	for _, slot := range m.slots {
		if slot.TutorID != tutorID || slot.Status != model.SlotStatusOpen || slot.DeletedAt != nil {
			continue
		}
		if slot.StartAt.Before(from) || !slot.StartAt.Before(to) {
			continue
		}
		slots = append(slots, copySlot(slot))
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].StartAt.Before(slots[j].StartAt) })
	return slots, nil
}

func (m *memStore) Hold(ctx context.Context, slotID, studentID int64, token string, expiresAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	slot, ok := m.slots[slotID]
	if !ok || slot.Status != model.SlotStatusOpen || slot.DeletedAt != nil {
		return false, nil
	}
	slot.Status = model.SlotStatusHeld
	slot.HoldToken = &token
	slot.HeldBy = &studentID
	slot.HoldExpiresAt = &expiresAt
	return true, nil
}

func (m *memStore) GetHeldByToken(ctx context.Context, token string) (*model.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, slot := range m.slots {
		if slot.Status == model.SlotStatusHeld && slot.HoldToken != nil && *slot.HoldToken == token && slot.DeletedAt == nil {
			return copySlot(slot), nil
		}
	}
	return nil, nil
}

func (m *memStore) MarkBooked(ctx context.Context, slotID int64) (bool, error) {
	return m.transition(slotID, model.SlotStatusHeld, model.SlotStatusBooked, true), nil
}

// Release matches the live hold by token, like the SQL token guard.
func (m *memStore) Release(ctx context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, slot := range m.slots {
		if slot.Status == model.SlotStatusHeld && slot.HoldToken != nil && *slot.HoldToken == token && slot.DeletedAt == nil {
			slot.Status = model.SlotStatusOpen
			slot.HoldToken = nil
			slot.HeldBy = nil
			slot.HoldExpiresAt = nil
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) BookOpen(ctx context.Context, slotID int64) (bool, error) {
	return m.transition(slotID, model.SlotStatusOpen, model.SlotStatusBooked, false), nil
}

func (m *memStore) Reopen(ctx context.Context, slotID int64) (bool, error) {
	return m.transition(slotID, model.SlotStatusBooked, model.SlotStatusOpen, false), nil
}

func (m *memStore) transition(slotID int64, fromStatus, toStatus model.SlotStatus, clearHold bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	slot, ok := m.slots[slotID]
	if !ok || slot.Status != fromStatus {
		return false
	}
	slot.Status = toStatus
	if clearHold {
		slot.HoldToken = nil
		slot.HeldBy = nil
		slot.HoldExpiresAt = nil
	}
	return true
}

func (m *memStore) CloseOverlapping(ctx context.Context, tutorID int64, startAt, endAt time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, slot := range m.slots {
		if slot.TutorID != tutorID || slot.Status != model.SlotStatusOpen || slot.DeletedAt != nil {
			continue
		}
		if model.Overlaps(slot.StartAt, slot.EndAt, startAt, endAt) {
			slot.Status = model.SlotStatusClosed
			n++
		}
	}
	return n, nil
}

func (m *memStore) ReleaseExpired(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, slot := range m.slots {
		if slot.Status == model.SlotStatusHeld && slot.HoldExpiresAt != nil && slot.HoldExpiresAt.Before(now) {
			slot.Status = model.SlotStatusOpen
			slot.HoldToken = nil
			slot.HeldBy = nil
			slot.HoldExpiresAt = nil
			n++
		}
	}
	return n, nil
}

func (m *memStore) SoftDeletePastBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var n int64
	for _, slot := range m.slots {
		if slot.DeletedAt != nil {
			continue
		}
		if slot.Status != model.SlotStatusOpen && slot.Status != model.SlotStatusClosed {
			continue
		}
		if slot.EndAt.Before(cutoff) {
			slot.DeletedAt = &now
			n++
		}
	}
	return n, nil
}

// BookingStore

func (m *memStore) CreateBooking(ctx context.Context, booking *model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	booking.ID = m.id()
	booking.CreatedAt = time.Now()
	booking.UpdatedAt = booking.CreatedAt
	m.bookings[booking.ID] = copyBooking(booking)
	return nil
}

func (m *memStore) GetBookingByID(ctx context.Context, id int64) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	booking, ok := m.bookings[id]
	if !ok {
		return nil, nil
	}
	return copyBooking(booking), nil
}

func (m *memStore) GetByIDForUpdate(ctx context.Context, id int64) (*model.Booking, error) {
	return m.GetBookingByID(ctx, id)
}

func (m *memStore) SetCanceled(ctx context.Context, id int64, reason string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	booking, ok := m.bookings[id]
	if !ok {
		return fmt.Errorf("booking not found")
	}
	booking.Status = model.BookingStatusCanceled
	booking.CancellationReason = &reason
	booking.CanceledAt = &at
	return nil
}

func (m *memStore) SetCalendarEventIDs(ctx context.Context, id int64, tutorEventID, studentEventID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	booking, ok := m.bookings[id]
	if !ok {
		return fmt.Errorf("booking not found")
	}
	booking.CalendarEventIDTutor = tutorEventID
	booking.CalendarEventIDStudent = studentEventID
	return nil
}

// TutorStore

func (m *memStore) GetProfile(ctx context.Context, tutorID int64) (*model.TutorProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	profile, ok := m.profiles[tutorID]
	if !ok {
		return nil, nil
	}
	c := *profile
	return &c, nil
}

// CreditStore

func (m *memStore) Balance(ctx context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balanceLocked(userID), nil
}

func (m *memStore) balanceLocked(userID int64) int64 {
	for i := len(m.ledger) - 1; i >= 0; i-- {
		if m.ledger[i].UserID == userID {
			return m.ledger[i].BalanceAfter
		}
	}
	return 0
}

func (m *memStore) Append(ctx context.Context, entry *model.CreditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry.ID = m.id()
	entry.BalanceAfter = m.balanceLocked(entry.UserID) + entry.Delta
	entry.CreatedAt = time.Now()
	m.ledger = append(m.ledger, *entry)
	return nil
}

// AvailabilityStore

func (m *memStore) CreateAvailabilityBlock(ctx context.Context, block *model.AvailabilityBlock) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	block.ID = m.id()
	block.CreatedAt = time.Now()
	c := *block
	m.availability = append(m.availability, &c)
	return nil
}

func (m *memStore) CreateTimeOffBlock(ctx context.Context, block *model.TimeOffBlock) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	block.ID = m.id()
	block.CreatedAt = time.Now()
	c := *block
	m.timeOff = append(m.timeOff, &c)
	return nil
}

func (m *memStore) HasTimeOffOverlap(ctx context.Context, tutorID int64, startAt, endAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, block := range m.timeOff {
		if block.TutorID == tutorID && block.DeletedAt == nil && model.Overlaps(block.StartAt, block.EndAt, startAt, endAt) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) ActiveRecurringBlocks(ctx context.Context) ([]*model.AvailabilityBlock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var blocks []*model.AvailabilityBlock
	for _, block := range m.availability {
		if block.IsRecurring && block.DeletedAt == nil {
			c := *block
			blocks = append(blocks, &c)
		}
	}
	return blocks, nil
}

// Test helpers

func (m *memStore) addOpenSlot(tutorID int64, startAt, endAt time.Time) *model.Slot {
	m.mu.Lock()
	defer m.mu.Unlock()

	slot := &model.Slot{
		ID:      m.id(),
		TutorID: tutorID,
		StartAt: startAt,
		EndAt:   endAt,
		Status:  model.SlotStatusOpen,
	}
	m.slots[slot.ID] = slot
	return copySlot(slot)
}

func (m *memStore) addProfile(tutorID, hourlyRateCents int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.profiles[tutorID] = &model.TutorProfile{
		ID:              m.id(),
		TutorID:         tutorID,
		HourlyRateCents: hourlyRateCents,
	}
}

func (m *memStore) addCredit(userID, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ledger = append(m.ledger, model.CreditEntry{
		ID:           m.id(),
		UserID:       userID,
		Delta:        amount,
		Reason:       model.CreditReasonPurchase,
		BalanceAfter: m.balanceLocked(userID) + amount,
	})
}

func (m *memStore) slotStatus(id int64) model.SlotStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slots[id].Status
}

func (m *memStore) bookingStatus(id int64) model.BookingStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bookings[id].Status
}

func (m *memStore) openSlotCount(tutorID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, slot := range m.slots {
		if slot.TutorID == tutorID && slot.Status == model.SlotStatusOpen && slot.DeletedAt == nil {
			n++
		}
	}
	return n
}

func (m *memStore) lastLedgerEntry(userID int64) *model.CreditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.ledger) - 1; i >= 0; i-- {
		if m.ledger[i].UserID == userID {
			c := m.ledger[i]
			return &c
		}
	}
	return nil
}

// bookingStoreAdapter maps the BookingStore method names onto memStore,
// whose Create and GetByID are taken by the slot methods.
type bookingStoreAdapter struct{ *memStore }

func (a bookingStoreAdapter) Create(ctx context.Context, booking *model.Booking) error {
	return a.CreateBooking(ctx, booking)
}

func (a bookingStoreAdapter) GetByID(ctx context.Context, id int64) (*model.Booking, error) {
	return a.GetBookingByID(ctx, id)
}

// Collaborator stubs

type stubPayment struct {
	mu        sync.Mutex
	verifyErr error
	refundErr error
	verified  []string
	refunded  []int64
}

func (p *stubPayment) VerifyAuthorization(ctx context.Context, userID, amountCents int64, ref string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.verifyErr != nil {
		return p.verifyErr
	}
	p.verified = append(p.verified, ref)
	return nil
}

func (p *stubPayment) Refund(ctx context.Context, bookingID int64, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refundErr != nil {
		return p.refundErr
	}
	p.refunded = append(p.refunded, bookingID)
	return nil
}

type stubBusySource struct {
	intervals []model.Interval
	err       error
}

func (s *stubBusySource) BusyIntervals(ctx context.Context, tutorID int64, from, to time.Time) ([]model.Interval, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.intervals, nil
}

type stubCalendar struct {
	mu        sync.Mutex
	nextID    int
	createErr error
	created   []string
	deleted   []string
}

func (c *stubCalendar) CreateEvent(ctx context.Context, partyID int64, booking *model.Booking) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.createErr != nil {
		return "", c.createErr
	}
	c.nextID++
	id := fmt.Sprintf("evt-%d", c.nextID)
	c.created = append(c.created, id)
	return id, nil
}

func (c *stubCalendar) DeleteEvent(ctx context.Context, partyID int64, eventID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, eventID)
	return nil
}

type sentNotice struct {
	UserID int64
	Event  string
}

type stubNotifier struct {
	mu   sync.Mutex
	sent []sentNotice
}

func (n *stubNotifier) Notify(ctx context.Context, userID int64, event string, payload map[string]interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotice{UserID: userID, Event: event})
	return nil
}

func (n *stubNotifier) eventsFor(userID int64) []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	var events []string
	for _, s := range n.sent {
		if s.UserID == userID {
			events = append(events, s.Event)
		}
	}
	return events
}
