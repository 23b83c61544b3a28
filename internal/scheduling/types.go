package scheduling

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnavailable marks transport-level failures: the backing service could
// not be reached or returned a malformed payload. Callers map it to a
// "service unavailable" turn instead of a hard fault.
var ErrUnavailable = errors.New("scheduling service unavailable")

// APIError describes a call the backing service rejected with an unexpected
// status. Detail carries the service's own error message when present.
type APIError struct {
	Op         string
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("scheduling: %s returned status %d: %s", e.Op, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("scheduling: %s returned status %d", e.Op, e.StatusCode)
}

// Detail extracts the service-provided error message from an APIError, or
// returns "Unknown error" when none is available.
func Detail(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return "Unknown error"
}

// PatientLookup is the normalized result of a patient identity check.
type PatientLookup struct {
	Exists    bool
	PatientID string
}

// CreatePatientRequest carries the fields needed to register a new patient.
type CreatePatientRequest struct {
	FirstName string
	LastName  string
	DOB       string
	Phone     string
}

// Appointment is the patient's upcoming appointment, if any.
type Appointment struct {
	Exists     bool
	DoctorName string
	Department string
	Date       string
	Time       string
}

// DateAvailability lists a doctor's open dates. DoctorName is the name the
// service matched, which may differ in casing from what the caller typed.
type DateAvailability struct {
	DoctorName string
	Dates      []string
}

// BookingRequest carries the fields needed to book a slot.
type BookingRequest struct {
	DoctorName string
	Date       string
	TimeSlot   string
	PatientID  string
	Phone      string
}

// BookingResult is a confirmed booking. Date and Time are the formatted
// values the service echoes back, not the caller's raw input.
type BookingResult struct {
	AppointmentID string
	Date          string
	Time          string
}

// CancellationRequest identifies the appointment to cancel.
type CancellationRequest struct {
	DoctorName string
	Department string
	Date       string
	Time       string
	PatientID  string
}

// flexString decodes JSON values that arrive as either a string or a number.
// The backing service is inconsistent about identifier types.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		*f = ""
		return nil
	}
	if s[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// SplitRoster parses a comma-delimited doctor roster into trimmed, non-empty
// names. An empty result means nothing is available; it is never an error.
func SplitRoster(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// sanitizeList trims list entries and drops empty ones.
func sanitizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// truthyJSON reports whether a raw JSON value would be considered truthy by
// the backing service's own clients (absent, null, false, 0, "" and empty
// containers are all falsy).
func truthyJSON(raw json.RawMessage) bool {
	switch strings.TrimSpace(string(raw)) {
	case "", "null", "false", "0", `""`, "{}", "[]":
		return false
	}
	return true
}
