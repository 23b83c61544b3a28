// Package scheduling is a thin client for the backing scheduling service:
// one method per service capability, each a single HTTP call with the
// response normalized into typed results. Ordinary rejections (non-2xx)
// come back as *APIError; transport and decode failures wrap ErrUnavailable.
package scheduling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wolfman30/medassist/internal/observability/metrics"
	"github.com/wolfman30/medassist/pkg/logging"
)

// Client is an HTTP client for the backing scheduling service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
	metrics    *metrics.DialogueMetrics
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logging.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics records per-operation call outcomes.
func WithMetrics(m *metrics.DialogueMetrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a scheduling service client.
// baseURL should be the service root (e.g. "https://medical-assistant1.onrender.com").
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logging.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// FindPatient checks whether a patient matching phone and date of birth is
// on record. The service answers 200 for a match and 201 for a miss; both
// are successful lookups. Any other status is an *APIError.
func (c *Client) FindPatient(ctx context.Context, phone, dob string) (PatientLookup, error) {
	var wire struct {
		Message   string     `json:"message"`
		PatientID flexString `json:"patient_id"`
	}
	status, err := c.post(ctx, "find_patient", "/Bland/validate-users",
		map[string]string{"phone": phone, "dob": dob}, &wire)
	if err != nil {
		return PatientLookup{}, err
	}

	switch {
	case status == http.StatusOK && wire.Message == "Patient exists.":
		c.observe("find_patient", "ok")
		return PatientLookup{Exists: true, PatientID: string(wire.PatientID)}, nil
	case status == http.StatusCreated && wire.Message == "Patient does not exist.":
		c.observe("find_patient", "ok")
		return PatientLookup{}, nil
	}

	c.observe("find_patient", "rejected")
	return PatientLookup{}, &APIError{Op: "find_patient", StatusCode: status, Detail: wire.Message}
}

// CreatePatient registers a new patient and returns the assigned patient ID.
func (c *Client) CreatePatient(ctx context.Context, req CreatePatientRequest) (string, error) {
	var wire struct {
		PatientID flexString `json:"patient_id"`
		Detail    string     `json:"detail"`
	}
	status, err := c.post(ctx, "create_patient", "/Bland/create-user", map[string]string{
		"first_name": req.FirstName,
		"last_name":  req.LastName,
		"dob":        req.DOB,
		"phone":      req.Phone,
	}, &wire)
	if err != nil {
		return "", err
	}
	if status != http.StatusCreated {
		c.observe("create_patient", "rejected")
		return "", &APIError{Op: "create_patient", StatusCode: status, Detail: wire.Detail}
	}

	c.observe("create_patient", "ok")
	c.logger.Info("patient created", "patient_id", string(wire.PatientID))
	return string(wire.PatientID), nil
}

// ListDoctors fetches the doctor roster for a department. The roster arrives
// as a comma-delimited string under "doctor_name" and is parsed here so
// callers never see raw delimited text. An empty roster is not an error.
func (c *Client) ListDoctors(ctx context.Context, department string) ([]string, error) {
	var wire struct {
		DoctorName string `json:"doctor_name"`
		Detail     string `json:"detail"`
	}
	status, err := c.post(ctx, "list_doctors", "/Bland/get-doctors",
		map[string]string{"department": department}, &wire)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		c.observe("list_doctors", "rejected")
		return nil, &APIError{Op: "list_doctors", StatusCode: status, Detail: wire.Detail}
	}

	c.observe("list_doctors", "ok")
	return SplitRoster(wire.DoctorName), nil
}

// ListDoctorsFallback re-fetches the roster for recovery prompts. The
// upstream service returns the same roster under a "response" key on this
// path instead of "doctor_name"; the two readings are kept distinct on
// purpose rather than papering over the inconsistency.
func (c *Client) ListDoctorsFallback(ctx context.Context, department string) ([]string, error) {
	var wire struct {
		Response string `json:"response"`
		Detail   string `json:"detail"`
	}
	status, err := c.post(ctx, "list_doctors_fallback", "/Bland/get-doctors",
		map[string]string{"department": department}, &wire)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		c.observe("list_doctors_fallback", "rejected")
		return nil, &APIError{Op: "list_doctors_fallback", StatusCode: status, Detail: wire.Detail}
	}

	c.observe("list_doctors_fallback", "ok")
	return SplitRoster(wire.Response), nil
}

// GetAppointment looks up a patient's upcoming appointment.
func (c *Client) GetAppointment(ctx context.Context, patientID string) (Appointment, error) {
	var wire struct {
		Appointment json.RawMessage `json:"appointment"`
		DoctorName  string          `json:"doctor_name"`
		Department  string          `json:"department"`
		Date        string          `json:"Sdate"`
		Time        string          `json:"Stime"`
		Detail      string          `json:"detail"`
	}
	status, err := c.post(ctx, "get_appointment", "/Bland/get-appointment",
		map[string]string{"pid": patientID}, &wire)
	if err != nil {
		return Appointment{}, err
	}
	if status != http.StatusOK {
		c.observe("get_appointment", "rejected")
		return Appointment{}, &APIError{Op: "get_appointment", StatusCode: status, Detail: wire.Detail}
	}

	c.observe("get_appointment", "ok")
	return Appointment{
		Exists:     truthyJSON(wire.Appointment),
		DoctorName: wire.DoctorName,
		Department: wire.Department,
		Date:       wire.Date,
		Time:       wire.Time,
	}, nil
}

// AvailableDates fetches a doctor's open dates for the next week. A known
// doctor with no openings yields an empty Dates list, not an error.
func (c *Client) AvailableDates(ctx context.Context, doctorName string) (DateAvailability, error) {
	var wire struct {
		DoctorName     string    `json:"doctor_name"`
		AvailableDates *[]string `json:"available_dates"`
		Detail         string    `json:"detail"`
	}
	status, err := c.post(ctx, "available_dates", "/Bland/fetch-date",
		map[string]string{"d_name": doctorName}, &wire)
	if err != nil {
		return DateAvailability{}, err
	}
	if status != http.StatusOK || wire.AvailableDates == nil {
		c.observe("available_dates", "rejected")
		return DateAvailability{}, &APIError{Op: "available_dates", StatusCode: status, Detail: wire.Detail}
	}

	c.observe("available_dates", "ok")
	return DateAvailability{
		DoctorName: wire.DoctorName,
		Dates:      sanitizeList(*wire.AvailableDates),
	}, nil
}

// AvailableSlots fetches a doctor's open time slots on a given date. The
// date is passed through verbatim; the service owns format validation.
func (c *Client) AvailableSlots(ctx context.Context, doctorName, date string) ([]string, error) {
	var wire struct {
		AvailableSlots *[]string `json:"available_slots"`
		Detail         string    `json:"detail"`
	}
	status, err := c.post(ctx, "available_slots", "/Bland/time-slot",
		map[string]string{"d_name": doctorName, "S_date": date}, &wire)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK || wire.AvailableSlots == nil {
		c.observe("available_slots", "rejected")
		return nil, &APIError{Op: "available_slots", StatusCode: status, Detail: wire.Detail}
	}

	c.observe("available_slots", "ok")
	return sanitizeList(*wire.AvailableSlots), nil
}

// BookAppointment books a slot and returns the confirmed booking.
func (c *Client) BookAppointment(ctx context.Context, req BookingRequest) (BookingResult, error) {
	var wire struct {
		AppointmentID flexString `json:"appointment_id"`
		Date          string     `json:"appointment_date"`
		Time          string     `json:"appointment_time"`
		Detail        string     `json:"detail"`
	}
	status, err := c.post(ctx, "book_appointment", "/Bland/book-appointment", map[string]string{
		"dname": req.DoctorName,
		"date":  req.Date,
		"sslot": req.TimeSlot,
		"pid":   req.PatientID,
		"phone": req.Phone,
	}, &wire)
	if err != nil {
		return BookingResult{}, err
	}
	if status != http.StatusOK {
		c.observe("book_appointment", "rejected")
		return BookingResult{}, &APIError{Op: "book_appointment", StatusCode: status, Detail: wire.Detail}
	}

	c.observe("book_appointment", "ok")
	c.logger.Info("appointment booked",
		"appointment_id", string(wire.AppointmentID),
		"doctor", req.DoctorName,
		"date", wire.Date,
	)
	return BookingResult{
		AppointmentID: string(wire.AppointmentID),
		Date:          wire.Date,
		Time:          wire.Time,
	}, nil
}

// CancelAppointment cancels an existing appointment.
func (c *Client) CancelAppointment(ctx context.Context, req CancellationRequest) error {
	var wire struct {
		Detail string `json:"detail"`
	}
	status, err := c.post(ctx, "cancel_appointment", "/Bland/cancel-appointment", map[string]string{
		"doctor_name": req.DoctorName,
		"department":  req.Department,
		"date":        req.Date,
		"time":        req.Time,
		"pid":         req.PatientID,
	}, &wire)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		c.observe("cancel_appointment", "rejected")
		return &APIError{Op: "cancel_appointment", StatusCode: status, Detail: wire.Detail}
	}

	c.observe("cancel_appointment", "ok")
	c.logger.Info("appointment cancelled", "doctor", req.DoctorName, "date", req.Date)
	return nil
}

// post performs one JSON POST against the service and decodes the body into
// out. It returns the status code; only transport failures and malformed
// 2xx bodies produce an error (wrapping ErrUnavailable). Non-2xx bodies are
// decoded best-effort so callers can surface the service's "detail" message.
func (c *Client) post(ctx context.Context, op, path string, payload, out any) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		c.observe(op, "unavailable")
		return 0, fmt.Errorf("scheduling: marshal %s request: %w", op, err)
	}

	c.logger.Debug("calling scheduling service", "op", op, "path", path)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		c.observe(op, "unavailable")
		return 0, fmt.Errorf("scheduling: create %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(op, "unavailable")
		c.logger.Warn("scheduling call failed", "op", op, "error", err)
		return 0, fmt.Errorf("scheduling: %s request failed (%v): %w", op, err, ErrUnavailable)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.observe(op, "unavailable")
		return resp.StatusCode, fmt.Errorf("scheduling: read %s response (%v): %w", op, err, ErrUnavailable)
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil && resp.StatusCode < 300 {
			c.observe(op, "unavailable")
			return resp.StatusCode, fmt.Errorf("scheduling: decode %s response (%v): %w", op, err, ErrUnavailable)
		}
	}

	c.logger.Debug("scheduling service responded", "op", op, "status", resp.StatusCode)
	return resp.StatusCode, nil
}

func (c *Client) observe(op, outcome string) {
	c.metrics.ObserveExternalCall(op, outcome)
}
