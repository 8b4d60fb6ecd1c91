package attendance

import (
	"fmt"
	"strings"
	"time"
)

// Status is the attendance state of a single day's record.
type Status string

const (
	// StatusNotFilled marks a day the user has not acted on yet.
	StatusNotFilled Status = "NOT_FILLED"
	// StatusOnDuty marks a confirmed check-in.
	StatusOnDuty Status = "ON_DUTY"
	// StatusOffDuty marks a confirmed check-out.
	StatusOffDuty Status = "OFF_DUTY"
	// StatusPermit marks an approved absence with a reason.
	StatusPermit Status = "PERMIT"
)

// ParseStatus maps a wire-format status string to a Status.
// Unrecognized strings fail with UnknownStatusError rather than
// defaulting; a bad status means the record cannot be trusted.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusNotFilled, StatusOnDuty, StatusOffDuty, StatusPermit:
		return Status(s), nil
	}
	return "", &UnknownStatusError{Status: s}
}

// Coordinates is a latitude/longitude pair. Both values are always
// present together; a record either has a location or it doesn't.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// Record is the canonical attendance entity: one record per user per
// calendar day. Status transitions are one-way within a day, from
// NOT_FILLED to exactly one of the filled states.
type Record struct {
	ID        string
	Status    Status
	CreatedAt time.Time // day anchor, immutable after creation
	Timestamp time.Time // when the status-setting action happened
	Location  *Coordinates
	Reason    string // set only for PERMIT
}

// placeholderPrefix marks client-generated ids for records that have no
// durable remote id yet.
const placeholderPrefix = "local-"

// NewRecord builds a Record and validates the field-presence invariants:
// coordinates only on ON_DUTY/OFF_DUTY, reason only on PERMIT.
func NewRecord(id string, status Status, createdAt, timestamp time.Time, loc *Coordinates, reason string) (*Record, error) {
	r := &Record{
		ID:        id,
		Status:    status,
		CreatedAt: createdAt,
		Timestamp: timestamp,
		Location:  loc,
		Reason:    reason,
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// NewPlaceholder synthesizes the NOT_FILLED record for a day that has no
// remote record yet. The id is client-generated and replaced by the
// remote id on the first successful sync.
func NewPlaceholder(id string, day time.Time) *Record {
	return &Record{
		ID:        placeholderPrefix + id,
		Status:    StatusNotFilled,
		CreatedAt: day,
		Timestamp: day,
	}
}

// IsPlaceholder reports whether the record carries a client-generated id
// rather than one assigned by the remote system.
func (r *Record) IsPlaceholder() bool {
	return strings.HasPrefix(r.ID, placeholderPrefix)
}

// Day returns the calendar-day key for the record, derived from the
// record's creation anchor.
func (r *Record) Day() string {
	return DayKey(r.CreatedAt)
}

// Validate checks the field-presence invariants.
func (r *Record) Validate() error {
	switch r.Status {
	case StatusOnDuty, StatusOffDuty:
		if r.Reason != "" {
			return &InvalidRecordError{ID: r.ID, Reason: fmt.Sprintf("%s record must not carry a reason", r.Status)}
		}
	case StatusPermit:
		if r.Location != nil {
			return &InvalidRecordError{ID: r.ID, Reason: "PERMIT record must not carry coordinates"}
		}
	case StatusNotFilled:
		if r.Location != nil {
			return &InvalidRecordError{ID: r.ID, Reason: "NOT_FILLED record must not carry coordinates"}
		}
		if r.Reason != "" {
			return &InvalidRecordError{ID: r.ID, Reason: "NOT_FILLED record must not carry a reason"}
		}
	default:
		return &UnknownStatusError{Status: string(r.Status)}
	}
	return nil
}

// Clone returns a copy of the record. Streams publish clones so a
// consumer can't mutate the engine's view of the cache.
func (r *Record) Clone() *Record {
	c := *r
	if r.Location != nil {
		loc := *r.Location
		c.Location = &loc
	}
	return &c
}

// DayKey formats a timestamp as the calendar-day key used to enforce the
// one-record-per-day invariant.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// HistoryRange selects history records whose day anchor falls in
// [Start, End). Records are always returned newest first.
type HistoryRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether the given day anchor falls inside the range.
func (hr HistoryRange) Contains(t time.Time) bool {
	return !t.Before(hr.Start) && t.Before(hr.End)
}

// Key returns a stable identifier for the range, used to share one
// stream across consumers observing the same history query.
func (hr HistoryRange) Key() string {
	return DayKey(hr.Start) + ".." + DayKey(hr.End)
}
