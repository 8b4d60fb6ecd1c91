package remote

import (
	"fmt"
	"time"

	"attrack/internal/attendance"
)

// envelope is the response wrapper the attendance API puts around every
// payload.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// wireRecord is an attendance record as the API serializes it: status as
// a string, nullable reason and coordinates.
type wireRecord struct {
	ID        string   `json:"id"`
	Status    string   `json:"status"`
	Timestamp string   `json:"timestamp"`
	CreatedAt string   `json:"created_at"`
	Reason    *string  `json:"reason"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// toRecord maps a wire record into the typed domain record, enforcing
// the coordinate-pairing and status invariants. A record the server
// sends that violates them is a protocol error, not something to patch
// over.
func (w wireRecord) toRecord() (*attendance.Record, error) {
	status, err := attendance.ParseStatus(w.Status)
	if err != nil {
		return nil, err
	}

	if (w.Latitude == nil) != (w.Longitude == nil) {
		return nil, &attendance.InvalidRecordError{ID: w.ID, Reason: "record carries only one coordinate"}
	}
	var loc *attendance.Coordinates
	if w.Latitude != nil {
		loc = &attendance.Coordinates{Latitude: *w.Latitude, Longitude: *w.Longitude}
	}

	createdAt, err := parseTime(w.CreatedAt)
	if err != nil {
		return nil, &attendance.InvalidRecordError{ID: w.ID, Reason: fmt.Sprintf("bad created_at: %v", err)}
	}
	timestamp, err := parseTime(w.Timestamp)
	if err != nil {
		return nil, &attendance.InvalidRecordError{ID: w.ID, Reason: fmt.Sprintf("bad timestamp: %v", err)}
	}

	reason := ""
	if w.Reason != nil {
		reason = *w.Reason
	}

	return attendance.NewRecord(w.ID, status, createdAt, timestamp, loc, reason)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// checkInRequest is the body for check-in and check-out submissions.
type checkInRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// permitRequest is the body for a permit submission.
type permitRequest struct {
	Reason string `json:"reason"`
}

// loginRequest is the body for the session login exchange.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginData is the login response payload.
type loginData struct {
	Token string `json:"token"`
}
