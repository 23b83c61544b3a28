package conversation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/medassist/internal/scheduling"
)

func newTestHandler(stub *stubScheduler) *Handler {
	return NewHandler(newTestEngine(stub), stub, nil, nil)
}

func postJSON(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestChatFirstTurn(t *testing.T) {
	h := newTestHandler(&stubScheduler{})

	rec := postJSON(t, h.Chat, `{"message": "Hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, ActionRequestName, resp.Action)
	assert.Equal(t, StateAwaitingName, resp.Attributes.State)
	assert.NotEmpty(t, resp.Response)
}

func TestChatEchoesAttributeBag(t *testing.T) {
	h := newTestHandler(&stubScheduler{})

	rec := postJSON(t, h.Chat,
		`{"message": "Alex Rivera", "attributes": {"state": "awaiting_name", "unknown_key": "ignored"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, ActionRequestDOB, resp.Action)
	assert.Equal(t, StateAwaitingDOB, resp.Attributes.State)
	assert.Equal(t, "Alex Rivera", resp.Attributes.Name)
}

func TestChatBadBody(t *testing.T) {
	h := newTestHandler(&stubScheduler{})

	rec := postJSON(t, h.Chat, `{"message": `)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatOmitsEmptyAttributes(t *testing.T) {
	h := newTestHandler(&stubScheduler{})

	rec := postJSON(t, h.Chat, `{"message": "Hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// Empty bag fields must not appear on the wire.
	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	attrs, ok := raw["attributes"].(map[string]any)
	require.True(t, ok)
	assert.NotContains(t, attrs, "patient_id")
	assert.NotContains(t, attrs, "options")
	assert.Contains(t, attrs, "state")
}

func TestDoctors(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		stub := &stubScheduler{
			listDoctors: func(department string) ([]string, error) {
				assert.Equal(t, "Cardiology", department) // normalized
				return []string{"Dr. Meena Iyer"}, nil
			},
		}
		h := newTestHandler(stub)

		rec := postJSON(t, h.Doctors, `{"department": "  cardiology "}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp DoctorsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, []string{"Dr. Meena Iyer"}, resp.Doctors)
		assert.Equal(t, "Cardiology", resp.Department)
	})

	t.Run("empty roster", func(t *testing.T) {
		stub := &stubScheduler{
			listDoctors: func(department string) ([]string, error) { return nil, nil },
		}
		h := newTestHandler(stub)

		rec := postJSON(t, h.Doctors, `{"department": "astrology"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "No doctors found")
	})

	t.Run("rejected upstream", func(t *testing.T) {
		stub := &stubScheduler{
			listDoctors: func(department string) ([]string, error) {
				return nil, &scheduling.APIError{Op: "list_doctors", StatusCode: 404, Detail: "Invalid department"}
			},
		}
		h := newTestHandler(stub)

		rec := postJSON(t, h.Doctors, `{"department": "astrology"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("service unreachable", func(t *testing.T) {
		stub := &stubScheduler{
			listDoctors: func(department string) ([]string, error) {
				return nil, fmt.Errorf("dial tcp: %w", scheduling.ErrUnavailable)
			},
		}
		h := newTestHandler(stub)

		rec := postJSON(t, h.Doctors, `{"department": "cardiology"}`)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, rec.Body.String(), "Service unavailable")
	})

	t.Run("bad body", func(t *testing.T) {
		h := newTestHandler(&stubScheduler{})
		rec := postJSON(t, h.Doctors, `not json`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTranscriptDisabled(t *testing.T) {
	h := newTestHandler(&stubScheduler{})

	r := chi.NewRouter()
	r.Get("/conversations/{phone}/transcript", h.Transcript)

	req := httptest.NewRequest(http.MethodGet, "/conversations/+1-555-0100/transcript", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	h := newTestHandler(&stubScheduler{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.HealthCheck(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestChatMultiTurnThroughHTTP(t *testing.T) {
	stub := &stubScheduler{
		findPatient: func(phone, dob string) (scheduling.PatientLookup, error) {
			return scheduling.PatientLookup{Exists: true, PatientID: "P-12"}, nil
		},
		getAppointment: func(patientID string) (scheduling.Appointment, error) {
			return scheduling.Appointment{}, nil
		},
	}
	h := newTestHandler(stub)

	// Walk the whole authentication flow over the wire, echoing the bag
	// back each turn like a real client.
	var bag json.RawMessage = []byte(`{}`)
	var resp ChatResponse
	for _, msg := range []string{"Hi", "Alex Rivera", "1990-05-01", "+1-555-0100"} {
		rec := postJSON(t, h.Chat, fmt.Sprintf(`{"message": %q, "attributes": %s}`, msg, bag))
		require.Equal(t, http.StatusOK, rec.Code, "msg=%q", msg)
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

		var raw struct {
			Attributes json.RawMessage `json:"attributes"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
		bag = raw.Attributes
	}

	assert.Equal(t, StateAuthenticated, resp.Attributes.State)
	assert.Equal(t, ActionOfferBooking, resp.Action)
	assert.Equal(t, "P-12", resp.Attributes.PatientID)
}

func TestCapitalize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"cardiology", "Cardiology"},
		{"CARDIOLOGY", "Cardiology"},
		{"general physician", "General physician"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, capitalize(tt.in), "input %q", tt.in)
	}
}
