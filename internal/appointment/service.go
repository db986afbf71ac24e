package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/hackgods/therapy-scheduling/internal/config"
	redisclient "github.com/hackgods/therapy-scheduling/internal/redis"
)

const (
	EventSlotDefined   = "SLOT_DEFINED"
	EventSlotDeleted   = "SLOT_DELETED"
	EventSlotBooked    = "SLOT_BOOKED"
	EventSlotCancelled = "SLOT_CANCELLED"
	EventSlotSplit     = "SLOT_SPLIT"
	EventReminderSent  = "REMINDER_SENT"
	EventNotesUpdated  = "NOTES_UPDATED"
)

var (
	ErrInvalidSelection = errors.New("selected appointments are not bookable")
	ErrOverlapDetected  = errors.New("appointments overlap")
	ErrSlotBeingBooked  = errors.New("practitioner's day is currently being booked, please retry")
	ErrBasketEmpty      = errors.New("basket is empty")
	ErrNotBasketOwner   = errors.New("basket belongs to another patient")
	ErrNotSlotOwner     = errors.New("slot does not belong to the caller")
	ErrCancelTooLate    = errors.New("appointment has already started")
	ErrStartInPast      = errors.New("appointment start is in the past")
	ErrSlotNotBooked    = errors.New("slot is not booked")
	ErrUnknownParty     = errors.New("unknown party")
)

// OverlapError carries the conflicting pairs found while booking or defining
// availability.
type OverlapError struct {
	Overlaps []Overlap
}

func (e *OverlapError) Error() string {
	parts := make([]string, 0, len(e.Overlaps))
	for _, o := range e.Overlaps {
		parts = append(parts, o.String())
	}
	return fmt.Sprintf("%s: %s", ErrOverlapDetected, strings.Join(parts, "; "))
}

func (e *OverlapError) Unwrap() error {
	return ErrOverlapDetected
}

// OverlapReport is the outcome of checking a patient's selection against
// their existing bookings. When Free, Bookable holds the selection.
type OverlapReport struct {
	Free     bool
	Bookable []Slot
	Clashes  []Overlap
}

// Review is a stored basket together with the slots it was built from.
type Review struct {
	SessionID string
	Basket    Basket
	Bookable  []Slot
	Absorbed  []Slot
}

type Service struct {
	repo     Repository
	locker   redisclient.Locker
	baskets  redisclient.BasketStore
	notifier Notifier
	cfg      config.Config
	defaults SlotDefaults
	log      *logrus.Logger
	now      func() time.Time
}

func NewService(
	repo Repository,
	locker redisclient.Locker,
	baskets redisclient.BasketStore,
	notifier Notifier,
	cfg config.Config,
	log *logrus.Logger,
) *Service {
	defaults := DefaultSlotDefaults()
	if cfg.SlotLength > 0 {
		defaults.Length = cfg.SlotLength
	}
	if !cfg.SlotPrice.IsZero() {
		defaults.Price = cfg.SlotPrice
	}

	return &Service{
		repo:     repo,
		locker:   locker,
		baskets:  baskets,
		notifier: notifier,
		cfg:      cfg,
		defaults: defaults,
		log:      log,
		now:      time.Now,
	}
}

// GetValidAppointments lists the practitioner's open slots on the calendar
// day of date that have not started yet, earliest first. Past days return
// nothing without touching storage.
func (s *Service) GetValidAppointments(ctx context.Context, date time.Time, practitionerID uuid.UUID) ([]Slot, error) {
	loc := s.location()
	now := s.now().In(loc)

	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
	if day.Before(startOfDay(now)) {
		return nil, nil
	}

	slots, err := s.repo.ListOpenSlots(ctx, practitionerID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("list open slots: %w", err)
	}

	valid := make([]Slot, 0, len(slots))
	for _, slot := range slots {
		if slot.Start.Before(now) {
			continue
		}
		valid = append(valid, slot)
	}

	return sortedByStart(valid), nil
}

// CheckValidity loads the selected slots. The whole selection is rejected
// with ErrInvalidSelection if any slot is missing, belongs to another
// practitioner, is booked or has already started.
func (s *Service) CheckValidity(ctx context.Context, ids []uuid.UUID, practitionerID uuid.UUID) ([]Slot, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: nothing selected", ErrInvalidSelection)
	}

	now := s.now()
	slots := make([]Slot, 0, len(ids))
	for _, id := range ids {
		slot, err := s.repo.GetSlotByID(ctx, id)
		if err != nil {
			if errors.Is(err, ErrSlotNotFound) {
				return nil, fmt.Errorf("%w: %w: %s", ErrInvalidSelection, err, id)
			}
			return nil, fmt.Errorf("load slot %s: %w", id, err)
		}
		if !bookableBy(*slot, practitionerID, now) {
			return nil, fmt.Errorf("%w: slot %s", ErrInvalidSelection, id)
		}
		slots = append(slots, *slot)
	}

	return slots, nil
}

func bookableBy(slot Slot, practitionerID uuid.UUID, now time.Time) bool {
	return !slot.Start.Before(now) && slot.PractitionerID == practitionerID && slot.IsOpen()
}

// GetAppointmentOverlaps checks slots against the patient's upcoming bookings.
func (s *Service) GetAppointmentOverlaps(ctx context.Context, slots []Slot, patientID uuid.UUID) (OverlapReport, error) {
	existing, err := s.repo.ListPatientSlots(ctx, patientID, s.now())
	if err != nil {
		return OverlapReport{}, fmt.Errorf("list patient slots: %w", err)
	}

	clashes := FindOverlaps(s.inLocation(append(slices.Clone(existing), slots...)))
	if len(clashes) > 0 {
		return OverlapReport{Clashes: clashes}, nil
	}

	return OverlapReport{Free: true, Bookable: slots}, nil
}

// GetPractitionerOverlaps checks a proposed slot against the practitioner's
// other slots around it and returns only the pairs that involve it.
func (s *Service) GetPractitionerOverlaps(ctx context.Context, slot Slot, practitionerID uuid.UUID) (bool, []Overlap, error) {
	from := slot.Start.AddDate(0, 0, -1)
	to := slot.End().AddDate(0, 0, 1)

	existing, err := s.repo.ListPractitionerSlots(ctx, practitionerID, from, to)
	if err != nil {
		return false, nil, fmt.Errorf("list practitioner slots: %w", err)
	}

	candidates := make([]Slot, 0, len(existing)+1)
	for _, e := range existing {
		if slot.IsPersisted() && e.ID == slot.ID {
			continue
		}
		candidates = append(candidates, e)
	}
	candidates = append(candidates, slot)

	var found []Overlap
	for _, o := range FindOverlaps(s.inLocation(candidates)) {
		if sameSlot(o.First, slot) || sameSlot(o.Second, slot) {
			found = append(found, o)
		}
	}

	return len(found) == 0, found, nil
}

func sameSlot(a, b Slot) bool {
	if a.IsPersisted() || b.IsPersisted() {
		return a.ID == b.ID
	}
	return a.Start.Equal(b.Start) && a.Length == b.Length && a.PractitionerID == b.PractitionerID
}

// MergeAppointments merges contiguous slots, see Merge.
func (s *Service) MergeAppointments(slots []Slot) (merged, absorbed []Slot) {
	merged, absorbed = Merge(slots)
	if len(absorbed) > 0 {
		s.log.WithFields(logrus.Fields{
			"absorbed": len(absorbed),
			"merged":   len(merged),
		}).Debug("merged contiguous slots")
	}
	return merged, absorbed
}

// SplitMergedAppointment restores a slot longer than the default length to
// open default-length slots. The original row becomes the first segment.
func (s *Service) SplitMergedAppointment(ctx context.Context, slot Slot) ([]Slot, error) {
	var parts []Slot
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		var err error
		parts, err = s.splitWith(ctx, tx, slot)
		return err
	})
	if err != nil {
		return nil, err
	}
	return parts, nil
}

func (s *Service) splitWith(ctx context.Context, tx Repository, slot Slot) ([]Slot, error) {
	parts := Split(slot, s.defaults)
	if len(parts) == 1 {
		return parts, nil
	}

	first, err := tx.UpdateSlot(ctx, parts[0])
	if err != nil {
		return nil, fmt.Errorf("update first segment: %w", err)
	}

	out := make([]Slot, 0, len(parts))
	out = append(out, *first)
	for _, p := range parts[1:] {
		created, err := tx.CreateSlot(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("create segment at %s: %w", p.Start.Format(time.RFC3339), err)
		}
		out = append(out, *created)
	}

	s.logEvent(ctx, tx, slot.ID, EventSlotSplit, map[string]any{
		"length":   slot.Length.String(),
		"segments": len(out),
	})

	return out, nil
}

// BookAppointments assigns the slots to the patient in one transaction.
// Persisted slots must still be open; new (merged) slots are inserted.
func (s *Service) BookAppointments(ctx context.Context, slots []Slot, patientID uuid.UUID) ([]Slot, error) {
	var booked []Slot
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		var err error
		booked, err = s.bookWith(ctx, tx, slots, patientID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return booked, nil
}

func (s *Service) bookWith(ctx context.Context, tx Repository, slots []Slot, patientID uuid.UUID) ([]Slot, error) {
	if _, err := tx.GetPatientByID(ctx, patientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	booked := make([]Slot, 0, len(slots))
	for _, slot := range slots {
		var (
			b   *Slot
			err error
		)
		if slot.IsPersisted() {
			b, err = tx.BookSlot(ctx, slot.ID, patientID)
		} else {
			slot.PatientID = patientRef(patientID)
			b, err = tx.CreateSlot(ctx, slot)
		}
		if err != nil {
			if errors.Is(err, ErrSlotUnavailable) {
				return nil, err
			}
			return nil, fmt.Errorf("book slot at %s: %w", slot.Start.Format(time.RFC3339), err)
		}
		booked = append(booked, *b)

		s.logEvent(ctx, tx, b.ID, EventSlotBooked, map[string]any{
			"patient_id": patientID.String(),
			"start":      b.Start,
			"length":     b.Length.String(),
			"price":      b.Price.StringFixed(2),
		})
	}

	return booked, nil
}

// DeleteAppointments removes the persisted slots among slots.
func (s *Service) DeleteAppointments(ctx context.Context, slots []Slot) error {
	if err := s.repo.DeleteSlots(ctx, slotIDs(slots)); err != nil {
		return fmt.Errorf("delete appointments: %w", err)
	}
	return nil
}

// ReviewSelection validates a patient's selection, checks it against their
// bookings, merges contiguous slots and stores the result as the session's
// basket, replacing any previous one.
func (s *Service) ReviewSelection(ctx context.Context, sessionID string, patientID, practitionerID uuid.UUID, ids []uuid.UUID) (*Review, error) {
	valid, err := s.CheckValidity(ctx, ids, practitionerID)
	if err != nil {
		return nil, err
	}

	report, err := s.GetAppointmentOverlaps(ctx, valid, patientID)
	if err != nil {
		return nil, err
	}
	if !report.Free {
		return nil, &OverlapError{Overlaps: report.Clashes}
	}

	merged, absorbed := s.MergeAppointments(report.Bookable)

	basket := Basket{
		PatientID:      patientID,
		PractitionerID: practitionerID,
		Bookable:       BasketItemsFromSlots(merged),
		Absorbed:       BasketItemsFromSlots(absorbed),
		CreatedAt:      s.now(),
	}
	if err := s.saveBasket(ctx, sessionID, basket); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"session":  sessionID,
		"patient":  patientID,
		"bookable": len(merged),
		"absorbed": len(absorbed),
	}).Info("basket reviewed")

	return &Review{
		SessionID: sessionID,
		Basket:    basket,
		Bookable:  merged,
		Absorbed:  absorbed,
	}, nil
}

func (s *Service) GetBasket(ctx context.Context, sessionID string) (*Basket, error) {
	data, err := s.baskets.Load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, redisclient.ErrBasketNotFound) {
			return nil, ErrBasketEmpty
		}
		return nil, err
	}

	var basket Basket
	if err := json.Unmarshal(data, &basket); err != nil {
		return nil, fmt.Errorf("decode basket: %w", err)
	}
	return &basket, nil
}

// RemoveBasketItem drops one bookable line from the basket. Removing a merged
// line also forgets the originals it absorbed so checkout leaves them alone.
func (s *Service) RemoveBasketItem(ctx context.Context, sessionID, lineID string) (*Basket, error) {
	basket, err := s.GetBasket(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	removed, err := basket.Remove(lineID)
	if err != nil {
		return nil, err
	}
	if !removed {
		return basket, nil
	}

	if err := s.saveBasket(ctx, sessionID, *basket); err != nil {
		return nil, err
	}
	return basket, nil
}

func (s *Service) saveBasket(ctx context.Context, sessionID string, basket Basket) error {
	data, err := json.Marshal(basket)
	if err != nil {
		return fmt.Errorf("encode basket: %w", err)
	}
	if err := s.baskets.Save(ctx, sessionID, data); err != nil {
		return err
	}
	return nil
}

// Checkout books the session's basket for the patient. Booking runs under the
// practitioner day locks of every slot and in a single transaction that locks
// the patient row and re-reads the source slots with row locks, so a slot is
// booked at most once and a patient's bookings never overlap. The basket is
// kept until the booking commits so a failed checkout can be retried.
func (s *Service) Checkout(ctx context.Context, sessionID string, patientID uuid.UUID) ([]Slot, error) {
	basket, err := s.GetBasket(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if basket.PatientID != patientID {
		return nil, ErrNotBasketOwner
	}
	if len(basket.Bookable) == 0 {
		return nil, ErrBasketEmpty
	}

	bookable, err := ConvertBasketItems(basket.Bookable)
	if err != nil {
		return nil, fmt.Errorf("decode bookable: %w", err)
	}
	absorbed, err := ConvertBasketItems(basket.Absorbed)
	if err != nil {
		return nil, fmt.Errorf("decode absorbed: %w", err)
	}

	var booked []Slot
	err = s.withDayLocks(ctx, s.dayKeys(bookable), func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
			if err := s.revalidate(ctx, tx, patientID, bookable, absorbed); err != nil {
				return err
			}
			if err := tx.DeleteSlots(ctx, slotIDs(absorbed)); err != nil {
				return fmt.Errorf("delete absorbed slots: %w", err)
			}

			var err error
			booked, err = s.bookWith(ctx, tx, bookable, patientID)
			return err
		})
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	if err := s.baskets.Delete(ctx, sessionID); err != nil {
		s.log.Warnf("failed to empty basket %s after checkout: %v", sessionID, err)
	}

	s.log.WithFields(logrus.Fields{
		"session": sessionID,
		"patient": patientID,
		"booked":  len(booked),
	}).Info("checkout complete")

	s.notifier.AppointmentsBooked(ctx, booked)

	return booked, nil
}

// revalidate re-reads every slot the basket was built from under row locks
// and re-checks the patient's bookings for overlaps. The patient row is
// locked first: the day locks only cover the practitioners being booked, so
// two checkouts by one patient with different practitioners meet here.
func (s *Service) revalidate(ctx context.Context, tx Repository, patientID uuid.UUID, bookable, absorbed []Slot) error {
	if _, err := tx.LockPatient(ctx, patientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return err
		}
		return fmt.Errorf("lock patient: %w", err)
	}

	sources := uniqueIDs(append(slotIDs(bookable), slotIDs(absorbed)...))

	locked, err := tx.LockSlots(ctx, sources)
	if err != nil {
		return fmt.Errorf("lock slots: %w", err)
	}
	if len(locked) != len(sources) {
		return ErrSlotUnavailable
	}

	now := s.now()
	for _, l := range locked {
		if !l.IsOpen() || l.Start.Before(now) {
			return ErrSlotUnavailable
		}
	}

	existing, err := tx.ListPatientSlots(ctx, patientID, now)
	if err != nil {
		return fmt.Errorf("list patient slots: %w", err)
	}
	if clashes := FindOverlaps(s.inLocation(append(existing, bookable...))); len(clashes) > 0 {
		return &OverlapError{Overlaps: clashes}
	}

	return nil
}

// CancelByPatient releases a future booking made by the patient and splits it
// back into open default-length slots.
func (s *Service) CancelByPatient(ctx context.Context, slotID, patientID uuid.UUID) ([]Slot, error) {
	slot, err := s.repo.GetSlotByID(ctx, slotID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := cancellable(*slot, patientID, now); err != nil {
		return nil, err
	}

	var (
		booking Slot
		parts   []Slot
	)
	err = s.withDayLocks(ctx, s.dayKeys([]Slot{*slot}), func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
			// the first read may be stale: a concurrent cancel could have
			// released and split the booking already
			locked, err := tx.LockSlots(ctx, []uuid.UUID{slotID})
			if err != nil {
				return fmt.Errorf("lock slot: %w", err)
			}
			if len(locked) == 0 {
				return ErrSlotNotFound
			}
			booking = locked[0]
			if err := cancellable(booking, patientID, now); err != nil {
				return err
			}

			updated, err := tx.UpdateSlot(ctx, release(booking))
			if err != nil {
				return fmt.Errorf("release slot: %w", err)
			}

			parts, err = s.splitWith(ctx, tx, *updated)
			return err
		})
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	underDay := booking.Start.Before(now.Add(24 * time.Hour))
	s.logEvent(ctx, s.repo, booking.ID, EventSlotCancelled, map[string]any{
		"by":         "patient",
		"patient_id": patientID.String(),
		"under_24h":  underDay,
	})
	s.notifier.AppointmentCancelledByPatient(ctx, booking, underDay)

	return parts, nil
}

func cancellable(slot Slot, patientID uuid.UUID, now time.Time) error {
	if !slot.BookedBy(patientID) {
		return ErrNotSlotOwner
	}
	if !slot.Start.After(now) {
		return ErrCancelTooLate
	}
	return nil
}

// UpdatePractitionerNotes stores the practitioner's private notes and the
// notes shared with the patient on one of their booked slots.
func (s *Service) UpdatePractitionerNotes(ctx context.Context, slotID, practitionerID uuid.UUID, notes, patientNotes string) (*Slot, error) {
	slot, err := s.repo.GetSlotByID(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if slot.PractitionerID != practitionerID {
		return nil, ErrNotSlotOwner
	}
	if slot.IsOpen() {
		return nil, ErrSlotNotBooked
	}

	updated, err := s.repo.SetPractitionerNotes(ctx, slotID, practitionerID, notes, patientNotes)
	if err != nil {
		if errors.Is(err, ErrSlotUnavailable) {
			return nil, ErrSlotNotBooked
		}
		return nil, fmt.Errorf("update practitioner notes: %w", err)
	}

	s.logEvent(ctx, s.repo, slotID, EventNotesUpdated, map[string]any{
		"by":                 "practitioner",
		"practitioner_notes": len(notes),
		"notes_for_patient":  len(patientNotes),
	})

	return updated, nil
}

// UpdatePatientNotes stores what the patient wants the practitioner to know
// before the meeting.
func (s *Service) UpdatePatientNotes(ctx context.Context, slotID, patientID uuid.UUID, notes string) (*Slot, error) {
	slot, err := s.repo.GetSlotByID(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if !slot.BookedBy(patientID) {
		return nil, ErrNotSlotOwner
	}

	updated, err := s.repo.SetPatientNotes(ctx, slotID, patientID, notes)
	if err != nil {
		if errors.Is(err, ErrSlotUnavailable) {
			return nil, ErrNotSlotOwner
		}
		return nil, fmt.Errorf("update patient notes: %w", err)
	}

	s.logEvent(ctx, s.repo, slotID, EventNotesUpdated, map[string]any{
		"by":           "patient",
		"before_notes": len(notes),
	})

	return updated, nil
}

// ListAppointments returns a patient's bookings or a practitioner's slots,
// split into those starting from now on and those that started before.
func (s *Service) ListAppointments(ctx context.Context, who Party, id uuid.UUID) (*Appointments, error) {
	if who != PartyPatient && who != PartyPractitioner {
		return nil, fmt.Errorf("%w: %q", ErrUnknownParty, who)
	}

	slots, err := s.repo.ListSlotsFor(ctx, who, id)
	if err != nil {
		return nil, fmt.Errorf("list %s appointments: %w", who, err)
	}

	now := s.now()
	out := &Appointments{Upcoming: []Slot{}, Past: []Slot{}}
	for _, slot := range slots {
		if slot.Start.Before(now) {
			out.Past = append(out.Past, slot)
			continue
		}
		out.Upcoming = append(out.Upcoming, slot)
	}

	return out, nil
}

// DefineAvailability adds an open slot for the practitioner unless it
// overlaps one of their existing slots.
func (s *Service) DefineAvailability(ctx context.Context, practitionerID uuid.UUID, start time.Time, length time.Duration) (*Slot, error) {
	if length <= 0 {
		return nil, ErrInvalidLength
	}
	if start.Before(s.now()) {
		return nil, ErrStartInPast
	}
	if _, err := s.repo.GetPractitionerByID(ctx, practitionerID); err != nil {
		if errors.Is(err, ErrPractitionerNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load practitioner: %w", err)
	}

	slot := Slot{
		PractitionerID: practitionerID,
		Start:          start,
		Length:         length,
		Price:          s.priceFor(length),
	}

	var created *Slot
	err := s.withDayLocks(ctx, s.dayKeys([]Slot{slot}), func(ctx context.Context) error {
		free, overlaps, err := s.GetPractitionerOverlaps(ctx, slot, practitionerID)
		if err != nil {
			return err
		}
		if !free {
			return &OverlapError{Overlaps: overlaps}
		}

		created, err = s.repo.CreateSlot(ctx, slot)
		if err != nil {
			return fmt.Errorf("create slot: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	s.logEvent(ctx, s.repo, created.ID, EventSlotDefined, map[string]any{
		"practitioner_id": practitionerID.String(),
		"start":           created.Start,
		"length":          created.Length.String(),
	})

	return created, nil
}

// priceFor scales the default slot price to length.
func (s *Service) priceFor(length time.Duration) decimal.Decimal {
	units := decimal.NewFromInt(int64(length)).Div(decimal.NewFromInt(int64(s.defaults.Length)))
	return s.defaults.Price.Mul(units).Round(2)
}

// DeletePractitionerSlot removes one of the practitioner's slots, telling the
// patient first if it was booked.
func (s *Service) DeletePractitionerSlot(ctx context.Context, slotID, practitionerID uuid.UUID) error {
	slot, err := s.repo.GetSlotByID(ctx, slotID)
	if err != nil {
		return err
	}
	if slot.PractitionerID != practitionerID {
		return ErrNotSlotOwner
	}

	if err := s.DeleteAppointments(ctx, []Slot{*slot}); err != nil {
		return err
	}

	s.logEvent(ctx, s.repo, slot.ID, EventSlotDeleted, map[string]any{
		"practitioner_id": practitionerID.String(),
		"was_booked":      !slot.IsOpen(),
	})
	s.notifier.AppointmentCancelledByPractitioner(ctx, *slot)

	return nil
}

// SendReminders notifies about booked slots starting within the reminder
// window ahead of now. Each booking is reminded once even when runs overlap.
func (s *Service) SendReminders(ctx context.Context) (int, error) {
	from := s.now().Add(s.cfg.ReminderLead)
	to := from.Add(s.cfg.ReminderWindow)

	slots, err := s.repo.ListBookedSlots(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("list booked slots: %w", err)
	}

	sent := 0
	for _, slot := range slots {
		claimed, err := s.repo.ClaimReminder(ctx, slot.ID, s.now())
		if err != nil {
			return sent, err
		}
		if !claimed {
			continue
		}

		s.notifier.AppointmentReminder(ctx, slot)
		s.logEvent(ctx, s.repo, slot.ID, EventReminderSent, map[string]any{
			"start": slot.Start,
		})
		sent++
	}

	return sent, nil
}

type dayKey struct {
	practitionerID uuid.UUID
	day            time.Time
}

// dayKeys returns the distinct practitioner days of slots in a fixed order.
func (s *Service) dayKeys(slots []Slot) []dayKey {
	loc := s.location()
	seen := make(map[string]struct{}, len(slots))

	var keys []dayKey
	for _, slot := range slots {
		k := dayKey{practitionerID: slot.PractitionerID, day: startOfDay(slot.Start.In(loc))}
		id := redisclient.DayLockKey(k.practitionerID, k.day)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		keys = append(keys, k)
	}

	slices.SortFunc(keys, func(a, b dayKey) int {
		return strings.Compare(redisclient.DayLockKey(a.practitionerID, a.day), redisclient.DayLockKey(b.practitionerID, b.day))
	})
	return keys
}

func (s *Service) withDayLocks(ctx context.Context, keys []dayKey, fn func(ctx context.Context) error) error {
	if len(keys) == 0 {
		return fn(ctx)
	}
	k := keys[0]
	return s.locker.WithPractitionerDayLock(ctx, k.practitionerID, k.day, func(ctx context.Context) error {
		return s.withDayLocks(ctx, keys[1:], fn)
	})
}

func (s *Service) location() *time.Location {
	if s.cfg.Location != nil {
		return s.cfg.Location
	}
	return time.UTC
}

func (s *Service) inLocation(slots []Slot) []Slot {
	loc := s.location()
	out := make([]Slot, len(slots))
	for i, slot := range slots {
		slot.Start = slot.Start.In(loc)
		out[i] = slot
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (s *Service) logEvent(ctx context.Context, repo Repository, slotID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warnf("failed to marshal event payload for %s: %v", eventType, err)
		data = nil
	}

	id := slotID

	ev := EventLog{
		EventType: eventType,
		SlotID:    &id,
		Payload:   data,
		CreatedAt: s.now(),
	}

	if err := repo.InsertEvent(ctx, ev); err != nil {
		s.log.Warnf("failed to insert event log %s for slot %s: %v", eventType, slotID, err)
	}
}
