package appointment

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrInvalidLength = errors.New("invalid appointment length")

// BasketItem is the serialisable form of a slot held in a patient's basket
// between review and checkout.
type BasketItem struct {
	ID               *uuid.UUID `json:"id"`
	PractitionerID   uuid.UUID  `json:"practitioner_id"`
	StartDateAndTime string     `json:"start_date_and_time"`
	Length           string     `json:"length"`
	Price            string     `json:"price,omitempty"`
	SessionID        string     `json:"session_id"`
}

// Basket holds what a patient selected: the slots to book and the original
// slots a merge absorbed, which checkout deletes.
type Basket struct {
	PatientID      uuid.UUID    `json:"patient_id"`
	PractitionerID uuid.UUID    `json:"practitioner_id"`
	Bookable       []BasketItem `json:"bookable_appointments"`
	Absorbed       []BasketItem `json:"merged_appointments"`
	CreatedAt      time.Time    `json:"created_at"`
}

// Remove drops the bookable line with the given session id and reports
// whether a line was removed. A merged line takes the absorbed originals
// inside its range with it.
func (b *Basket) Remove(sessionID string) (bool, error) {
	for i, item := range b.Bookable {
		if item.SessionID != sessionID {
			continue
		}
		b.Bookable = append(b.Bookable[:i], b.Bookable[i+1:]...)
		if item.ID == nil {
			if err := b.dropAbsorbedWithin(item); err != nil {
				return true, err
			}
		}
		return true, nil
	}
	return false, nil
}

func (b *Basket) dropAbsorbedWithin(item BasketItem) error {
	merged, err := ConvertBasketItems([]BasketItem{item})
	if err != nil {
		return err
	}
	absorbed, err := ConvertBasketItems(b.Absorbed)
	if err != nil {
		return err
	}

	kept := b.Absorbed[:0]
	for i, a := range absorbed {
		inside := a.PractitionerID == merged[0].PractitionerID &&
			!a.Start.Before(merged[0].Start) && a.Start.Before(merged[0].End())
		if !inside {
			kept = append(kept, b.Absorbed[i])
		}
	}
	b.Absorbed = kept
	return nil
}

func BasketItemsFromSlots(slots []Slot) []BasketItem {
	items := make([]BasketItem, 0, len(slots))
	for _, s := range slots {
		item := BasketItem{
			PractitionerID:   s.PractitionerID,
			StartDateAndTime: s.Start.Format(time.RFC3339),
			Length:           FormatLength(s.Length),
			Price:            s.Price.StringFixed(2),
			SessionID:        uuid.NewString(),
		}
		if s.IsPersisted() {
			id := s.ID
			item.ID = &id
		}
		items = append(items, item)
	}
	return items
}

// ConvertBasketItems turns basket lines back into slots. Items without a
// price get the default slot price.
func ConvertBasketItems(items []BasketItem) ([]Slot, error) {
	slots := make([]Slot, 0, len(items))
	for i, item := range items {
		start, err := parseStart(item.StartDateAndTime)
		if err != nil {
			return nil, fmt.Errorf("basket item %d: %w", i, err)
		}
		length, err := ParseLength(item.Length)
		if err != nil {
			return nil, fmt.Errorf("basket item %d: %w", i, err)
		}

		price := DefaultSlotPrice
		if item.Price != "" {
			price, err = decimal.NewFromString(item.Price)
			if err != nil {
				return nil, fmt.Errorf("basket item %d: invalid price %q: %w", i, item.Price, err)
			}
		}

		s := Slot{
			PractitionerID: item.PractitionerID,
			Start:          start,
			Length:         length,
			Price:          price,
		}
		if item.ID != nil {
			s.ID = *item.ID
		}
		slots = append(slots, s)
	}
	return slots, nil
}

var startLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

func parseStart(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range startLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid start %q", raw)
}

// clockLength matches "H:MM:SS" and "H:MM".
var clockLength = regexp.MustCompile(`^(\d+):([0-5]\d)(?::([0-5]\d))?$`)

// ParseLength accepts Go durations ("1h30m"), the booking form's "1h30m"
// shape and clock notation ("1:30:00"). The result must be positive.
func ParseLength(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrInvalidLength
	}

	var d time.Duration
	if m := clockLength.FindStringSubmatch(raw); m != nil {
		h, _ := strconv.Atoi(m[1])
		min, _ := strconv.Atoi(m[2])
		sec := 0
		if m[3] != "" {
			sec, _ = strconv.Atoi(m[3])
		}
		d = time.Duration(h)*time.Hour + time.Duration(min)*time.Minute + time.Duration(sec)*time.Second
	} else {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidLength, raw)
		}
		d = parsed
	}

	if d <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLength, raw)
	}
	return d, nil
}

// FormatLength renders a length in clock notation, e.g. "1:30:00".
func FormatLength(d time.Duration) string {
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}
