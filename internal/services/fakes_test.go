package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/tourhub/booking-backend/internal/database"
	"github.com/tourhub/booking-backend/internal/models"
)

// fakeHotelStore is an in-memory HotelBookingStore with the same
// compare-and-set semantics as the SQL repository.
type fakeHotelStore struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]*models.HotelBooking
	details  map[uuid.UUID]*models.HotelBookingDetail
	err      error
	released []uuid.UUID
	// calls counts store writes by method name
	calls map[string]int
}

func newFakeHotelStore() *fakeHotelStore {
	return &fakeHotelStore{
		bookings: make(map[uuid.UUID]*models.HotelBooking),
		details:  make(map[uuid.UUID]*models.HotelBookingDetail),
		calls:    make(map[string]int),
	}
}

func (f *fakeHotelStore) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeHotelStore) put(b *models.HotelBooking) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *b
	cp.IsPayment = cp.Status.IsPaid()
	f.bookings[b.ID] = &cp
}

func (f *fakeHotelStore) get(id uuid.UUID) *models.HotelBooking {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil
	}
	cp := *b
	return &cp
}

func (f *fakeHotelStore) blocking(roomID uuid.UUID, w models.DateWindow, exclude uuid.UUID) bool {
	now := time.Now()
	for _, b := range f.bookings {
		if b.HotelRoomID != roomID || b.IsDelete || b.ID == exclude || !b.Window().Overlaps(w) {
			continue
		}
		if b.Status == models.HotelBookingConfirmed {
			return true
		}
		if b.Status == models.HotelBookingPending && b.HoldExpiresAt != nil && b.HoldExpiresAt.After(now) {
			return true
		}
	}
	return false
}

func (f *fakeHotelStore) HasBlockingReservation(_ context.Context, roomID uuid.UUID, w models.DateWindow) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	return f.blocking(roomID, w, uuid.Nil), nil
}

func (f *fakeHotelStore) CreateExclusive(_ context.Context, b *models.HotelBooking, holdTTL time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["CreateExclusive"]++
	if f.err != nil {
		return f.err
	}
	if f.blocking(b.HotelRoomID, b.Window(), uuid.Nil) {
		return &models.ConflictError{RoomID: b.HotelRoomID, Window: b.Window()}
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	hold := time.Now().Add(holdTTL)
	b.Status = models.HotelBookingPending
	b.HoldExpiresAt = &hold
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	cp := *b
	f.bookings[b.ID] = &cp
	return nil
}

func (f *fakeHotelStore) RenewHold(_ context.Context, b *models.HotelBooking, holdTTL time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.blocking(b.HotelRoomID, b.Window(), b.ID) {
		return &models.ConflictError{RoomID: b.HotelRoomID, Window: b.Window()}
	}
	stored, ok := f.bookings[b.ID]
	if !ok || stored.Status != models.HotelBookingPending {
		return &models.InvalidTransitionError{BookingID: b.ID}
	}
	hold := time.Now().Add(holdTTL)
	stored.HoldExpiresAt = &hold
	b.HoldExpiresAt = &hold
	return nil
}

func (f *fakeHotelStore) ReleaseHold(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, id)
	if b, ok := f.bookings[id]; ok && b.Status == models.HotelBookingPending {
		now := time.Now()
		b.HoldExpiresAt = &now
	}
	return nil
}

func (f *fakeHotelStore) GetByID(_ context.Context, id uuid.UUID) (*models.HotelBooking, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.get(id), nil
}

func (f *fakeHotelStore) GetDetail(_ context.Context, id uuid.UUID) (*models.HotelBookingDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.details[id]; ok {
		cp := *d
		if b, ok := f.bookings[id]; ok {
			cp.HotelBooking = *b
		}
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeHotelStore) ListPaidWindows(_ context.Context, roomID uuid.UUID) ([]models.DateWindow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var windows []models.DateWindow
	for _, b := range f.bookings {
		if b.HotelRoomID == roomID && b.Status == models.HotelBookingConfirmed && !b.IsDelete {
			windows = append(windows, b.Window())
		}
	}
	return windows, nil
}

func (f *fakeHotelStore) ConfirmPayment(_ context.Context, id uuid.UUID) (*models.HotelBooking, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["ConfirmPayment"]++
	if f.err != nil {
		return nil, false, f.err
	}
	b, ok := f.bookings[id]
	if !ok || b.IsDelete || b.Status != models.HotelBookingPending {
		return nil, false, nil
	}
	for _, other := range f.bookings {
		if other.ID != id && other.HotelRoomID == b.HotelRoomID && other.Status == models.HotelBookingConfirmed &&
			!other.IsDelete && other.Window().Overlaps(b.Window()) {
			return nil, false, fmt.Errorf("confirm hotel booking %s: %w", id, database.ErrOverlappingConfirmed)
		}
	}
	b.Status = models.HotelBookingConfirmed
	b.IsPayment = true
	b.HoldExpiresAt = nil
	cp := *b
	return &cp, true, nil
}

func (f *fakeHotelStore) Cancel(_ context.Context, id uuid.UUID) (*models.HotelBooking, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["Cancel"]++
	b, ok := f.bookings[id]
	if !ok || b.IsDelete || b.Status != models.HotelBookingPending {
		return nil, false, nil
	}
	b.Status = models.HotelBookingCancelled
	b.HoldExpiresAt = nil
	cp := *b
	return &cp, true, nil
}

func (f *fakeHotelStore) CancelAbandoned(_ context.Context, grace time.Duration, limit int) ([]*models.HotelBooking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	cutoff := time.Now().Add(-grace)
	var cancelled []*models.HotelBooking
	for _, b := range f.bookings {
		if len(cancelled) == limit {
			break
		}
		if b.Status == models.HotelBookingPending && !b.IsDelete && b.HoldExpiresAt != nil && b.HoldExpiresAt.Before(cutoff) {
			b.Status = models.HotelBookingCancelled
			b.HoldExpiresAt = nil
			cp := *b
			cancelled = append(cancelled, &cp)
		}
	}
	return cancelled, nil
}

func (f *fakeHotelStore) Checkout(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok || b.IsDelete || b.IsCheckout || b.Status != models.HotelBookingConfirmed {
		return false, nil
	}
	b.IsCheckout = true
	return true, nil
}

func (f *fakeHotelStore) SoftDelete(_ context.Context, id uuid.UUID) (*models.HotelBooking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok || b.IsDelete {
		return nil, nil
	}
	b.IsDelete = true
	cp := *b
	return &cp, nil
}

// fakeTourStore is an in-memory TourBookingStore
type fakeTourStore struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]*models.TourBooking
	err      error
}

func newFakeTourStore() *fakeTourStore {
	return &fakeTourStore{bookings: make(map[uuid.UUID]*models.TourBooking)}
}

func (f *fakeTourStore) put(b *models.TourBooking) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *b
	cp.IsPayment = cp.Status.IsPaid()
	f.bookings[b.ID] = &cp
}

func (f *fakeTourStore) Create(_ context.Context, b *models.TourBooking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.Status = models.TourBookingRequested
	cp := *b
	f.bookings[b.ID] = &cp
	return nil
}

func (f *fakeTourStore) GetByID(_ context.Context, id uuid.UUID) (*models.TourBooking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	b, ok := f.bookings[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (f *fakeTourStore) transition(id uuid.UUID, to models.TourBookingStatus, from ...models.TourBookingStatus) (*models.TourBooking, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, false, f.err
	}
	b, ok := f.bookings[id]
	if !ok || b.IsDelete {
		return nil, false, nil
	}
	for _, allowed := range from {
		if b.Status == allowed {
			b.Status = to
			b.IsPayment = to.IsPaid()
			cp := *b
			return &cp, true, nil
		}
	}
	return nil, false, nil
}

func (f *fakeTourStore) MarkAwaitingPayment(_ context.Context, id uuid.UUID) (*models.TourBooking, bool, error) {
	return f.transition(id, models.TourBookingAwaitingPayment, models.TourBookingRequested)
}

func (f *fakeTourStore) ConfirmPayment(_ context.Context, id uuid.UUID) (*models.TourBooking, bool, error) {
	return f.transition(id, models.TourBookingConfirmed, models.TourBookingAwaitingPayment)
}

func (f *fakeTourStore) Cancel(_ context.Context, id uuid.UUID) (*models.TourBooking, bool, error) {
	return f.transition(id, models.TourBookingCancelled, models.TourBookingRequested, models.TourBookingAwaitingPayment)
}

func (f *fakeTourStore) SoftDelete(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok || b.IsDelete {
		return false, nil
	}
	b.IsDelete = true
	return true, nil
}

// fakeAudits collects audit entries
type fakeAudits struct {
	mu      sync.Mutex
	entries []*models.PaymentAudit
}

func (f *fakeAudits) Log(_ context.Context, audit *models.PaymentAudit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, audit)
	return nil
}

func (f *fakeAudits) last() *models.PaymentAudit {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.entries) == 0 {
		return nil
	}
	return f.entries[len(f.entries)-1]
}

// recordingDispatcher records events synchronously
type recordingDispatcher struct {
	mu     sync.Mutex
	events []models.BookingSnapshot
}

func (d *recordingDispatcher) Dispatch(s models.BookingSnapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, s)
}

func (d *recordingDispatcher) count(event models.NotificationEvent) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, e := range d.events {
		if e.Event == event {
			n++
		}
	}
	return n
}

// mockGateway is a testify mock of PaymentGateway
type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) OpenSession(ctx context.Context, order *models.OrderDescriptor) (string, error) {
	args := m.Called(ctx, order)
	return args.String(0), args.Error(1)
}

// staticVerifier accepts exactly one mac
type staticVerifier struct {
	mac string
}

func (v staticVerifier) VerifyCallback(_ string, mac string) bool {
	return mac == v.mac
}
