package conversation

// AttributeBag carries everything learned so far in the conversation. No
// server-side session exists: the bag travels with every response and the
// caller echoes it back verbatim on the next turn.
//
// Decoding is permissive by construction: unknown keys are ignored and
// missing keys zero-value their fields. Each transition builds a fresh bag
// containing exactly the fields the next state needs, so a field is written
// by at most one state per flow.
type AttributeBag struct {
	State          ConversationState `json:"state,omitempty"`
	Name           string            `json:"name,omitempty"`
	FirstName      string            `json:"first_name,omitempty"`
	LastName       string            `json:"last_name,omitempty"`
	FullName       string            `json:"full_name,omitempty"`
	DOB            string            `json:"dob,omitempty"`
	Phone          string            `json:"phone,omitempty"`
	PatientID      string            `json:"patient_id,omitempty"`
	Department     string            `json:"department,omitempty"`
	DoctorName     string            `json:"doctor_name,omitempty"`
	AvailableDates []string          `json:"available_dates,omitempty"`
	SelectedDate   string            `json:"selected_date,omitempty"`
	AvailableSlots []string          `json:"available_slots,omitempty"`
	SelectedTime   string            `json:"selected_time,omitempty"`
	AppointmentID  string            `json:"appointment_id,omitempty"`
	Date           string            `json:"date,omitempty"`
	Time           string            `json:"time,omitempty"`

	// Options is the list of choices most recently offered to the caller,
	// used by the UI and for recovery prompts.
	Options []string `json:"options,omitempty"`
}
