package appointment

import (
	"context"
	"io"
	"maps"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/hackgods/therapy-scheduling/internal/config"
	redisclient "github.com/hackgods/therapy-scheduling/internal/redis"
)

type memRepo struct {
	mu            sync.Mutex
	patients      map[uuid.UUID]Patient
	practitioners map[uuid.UUID]Practitioner
	slots         map[uuid.UUID]Slot
	events        []EventLog

	listOpenCalls int
	calls         []string
}

func newMemRepo() *memRepo {
	return &memRepo{
		patients:      make(map[uuid.UUID]Patient),
		practitioners: make(map[uuid.UUID]Practitioner),
		slots:         make(map[uuid.UUID]Slot),
	}
}

func (r *memRepo) addPatient() uuid.UUID {
	id := uuid.New()
	r.patients[id] = Patient{ID: id, Name: "patient"}
	return id
}

func (r *memRepo) addPractitioner() uuid.UUID {
	id := uuid.New()
	r.practitioners[id] = Practitioner{ID: id, Name: "practitioner"}
	return id
}

func (r *memRepo) addSlot(s Slot) Slot {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Price.IsZero() {
		s.Price = DefaultSlotPrice
	}
	r.slots[s.ID] = s
	return s
}

func (r *memRepo) sortedSlots(keep func(Slot) bool) []Slot {
	var out []Slot
	for _, s := range r.slots {
		if keep(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

func (r *memRepo) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (r *memRepo) GetPractitionerByID(ctx context.Context, id uuid.UUID) (*Practitioner, error) {
	p, ok := r.practitioners[id]
	if !ok {
		return nil, ErrPractitionerNotFound
	}
	return &p, nil
}

func (r *memRepo) LockPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	r.calls = append(r.calls, "lock_patient")
	return r.GetPatientByID(ctx, id)
}

func (r *memRepo) GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	s, ok := r.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	return &s, nil
}

func (r *memRepo) ListOpenSlots(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]Slot, error) {
	r.listOpenCalls++
	return r.sortedSlots(func(s Slot) bool {
		return s.PractitionerID == practitionerID && s.IsOpen() && !s.Start.Before(from) && s.Start.Before(to)
	}), nil
}

func (r *memRepo) ListPatientSlots(ctx context.Context, patientID uuid.UUID, from time.Time) ([]Slot, error) {
	r.calls = append(r.calls, "list_patient_slots")
	return r.sortedSlots(func(s Slot) bool {
		return s.BookedBy(patientID) && s.End().After(from)
	}), nil
}

func (r *memRepo) ListPractitionerSlots(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]Slot, error) {
	return r.sortedSlots(func(s Slot) bool {
		return s.PractitionerID == practitionerID && !s.Start.Before(from) && s.Start.Before(to)
	}), nil
}

func (r *memRepo) ListBookedSlots(ctx context.Context, from, to time.Time) ([]Slot, error) {
	return r.sortedSlots(func(s Slot) bool {
		return !s.IsOpen() && !s.Start.Before(from) && s.Start.Before(to)
	}), nil
}

func (r *memRepo) ListSlotsFor(ctx context.Context, who Party, id uuid.UUID) ([]Slot, error) {
	out := r.sortedSlots(func(s Slot) bool {
		if who == PartyPatient {
			return s.BookedBy(id)
		}
		return s.PractitionerID == id
	})
	slices.Reverse(out)
	return out, nil
}

func (r *memRepo) LockSlots(ctx context.Context, ids []uuid.UUID) ([]Slot, error) {
	var out []Slot
	for _, id := range ids {
		if s, ok := r.slots[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memRepo) CreateSlot(ctx context.Context, s Slot) (*Slot, error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	r.slots[s.ID] = s
	return &s, nil
}

func (r *memRepo) UpdateSlot(ctx context.Context, s Slot) (*Slot, error) {
	if _, ok := r.slots[s.ID]; !ok {
		return nil, ErrSlotNotFound
	}
	r.slots[s.ID] = s
	return &s, nil
}

func (r *memRepo) BookSlot(ctx context.Context, id, patientID uuid.UUID) (*Slot, error) {
	s, ok := r.slots[id]
	if !ok || !s.IsOpen() {
		return nil, ErrSlotUnavailable
	}
	s.PatientID = patientRef(patientID)
	s.RemindedAt = nil
	r.slots[id] = s
	return &s, nil
}

func (r *memRepo) SetPractitionerNotes(ctx context.Context, id, practitionerID uuid.UUID, notes, patientNotes string) (*Slot, error) {
	s, ok := r.slots[id]
	if !ok || s.PractitionerID != practitionerID || s.IsOpen() {
		return nil, ErrSlotUnavailable
	}
	s.PractitionerNotes = notes
	s.PatientNotesByPractitioner = patientNotes
	r.slots[id] = s
	return &s, nil
}

func (r *memRepo) SetPatientNotes(ctx context.Context, id, patientID uuid.UUID, notes string) (*Slot, error) {
	s, ok := r.slots[id]
	if !ok || !s.BookedBy(patientID) {
		return nil, ErrSlotUnavailable
	}
	s.PatientNotesBeforeMeeting = notes
	r.slots[id] = s
	return &s, nil
}

func (r *memRepo) ClaimReminder(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s, ok := r.slots[id]
	if !ok || s.IsOpen() || s.RemindedAt != nil {
		return false, nil
	}
	s.RemindedAt = &at
	r.slots[id] = s
	return true, nil
}

func (r *memRepo) DeleteSlots(ctx context.Context, ids []uuid.UUID) error {
	for _, id := range ids {
		delete(r.slots, id)
	}
	return nil
}

// WithTx restores the slots when fn fails.
func (r *memRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := maps.Clone(r.slots)
	events := len(r.events)
	if err := fn(ctx, r); err != nil {
		r.slots = snapshot
		r.events = r.events[:events]
		return err
	}
	return nil
}

func (r *memRepo) InsertEvent(ctx context.Context, ev EventLog) error {
	r.events = append(r.events, ev)
	return nil
}

// staleRepo answers GetSlotByID with the first copy it read, the way a
// request that read the slot before a concurrent write would see it.
type staleRepo struct {
	*memRepo
	seen map[uuid.UUID]Slot
}

func (r *staleRepo) GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	if s, ok := r.seen[id]; ok {
		return &s, nil
	}
	s, err := r.memRepo.GetSlotByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.seen[id] = *s
	return s, nil
}

func (r *memRepo) eventTypes() []string {
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.EventType)
	}
	return out
}

type fakeLocker struct {
	err  error
	keys []string
}

func (l *fakeLocker) WithPractitionerDayLock(ctx context.Context, practitionerID uuid.UUID, day time.Time, fn func(ctx context.Context) error) error {
	if l.err != nil {
		return l.err
	}
	l.keys = append(l.keys, redisclient.DayLockKey(practitionerID, day))
	return fn(ctx)
}

type memBaskets struct {
	data map[string][]byte
}

func (b *memBaskets) Save(ctx context.Context, sessionID string, payload []byte) error {
	b.data[sessionID] = payload
	return nil
}

func (b *memBaskets) Load(ctx context.Context, sessionID string) ([]byte, error) {
	data, ok := b.data[sessionID]
	if !ok {
		return nil, redisclient.ErrBasketNotFound
	}
	return data, nil
}

func (b *memBaskets) Delete(ctx context.Context, sessionID string) error {
	delete(b.data, sessionID)
	return nil
}

type cancellation struct {
	slot     Slot
	underDay bool
}

type recordingNotifier struct {
	mu                  sync.Mutex
	booked              [][]Slot
	patientCancels      []cancellation
	practitionerCancels []Slot
	reminders           []Slot
}

func (n *recordingNotifier) AppointmentsBooked(ctx context.Context, slots []Slot) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.booked = append(n.booked, slots)
}

func (n *recordingNotifier) AppointmentCancelledByPatient(ctx context.Context, slot Slot, underDay bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.patientCancels = append(n.patientCancels, cancellation{slot: slot, underDay: underDay})
}

func (n *recordingNotifier) AppointmentCancelledByPractitioner(ctx context.Context, slot Slot) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.practitionerCancels = append(n.practitionerCancels, slot)
}

func (n *recordingNotifier) AppointmentReminder(ctx context.Context, slot Slot) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reminders = append(n.reminders, slot)
}

// testNow is a Monday morning.
var testNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type testEnv struct {
	svc      *Service
	repo     *memRepo
	locker   *fakeLocker
	baskets  *memBaskets
	notifier *recordingNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := config.Config{
		SlotLength:     30 * time.Minute,
		SlotPrice:      decimal.RequireFromString("50.00"),
		Location:       time.UTC,
		ReminderLead:   24 * time.Hour,
		ReminderWindow: 5 * time.Minute,
	}

	env := &testEnv{
		repo:     newMemRepo(),
		locker:   &fakeLocker{},
		baskets:  &memBaskets{data: make(map[string][]byte)},
		notifier: &recordingNotifier{},
	}
	env.svc = NewService(env.repo, env.locker, env.baskets, env.notifier, cfg, log)
	env.svc.now = func() time.Time { return testNow }

	return env
}

func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 2, hour, minute, 0, 0, time.UTC)
}

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
