// Package conversation implements the appointment dialogue: a deterministic
// state machine that authenticates a caller against the backing scheduling
// service and books, inspects, or cancels an appointment over multiple turns.
package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/medassist/internal/observability/metrics"
	"github.com/wolfman30/medassist/internal/scheduling"
	"github.com/wolfman30/medassist/pkg/logging"
)

const greeting = "Hello! I'm your medical assistant. I'm here to help you with appointments. Could you please share your name?"

// SchedulingService is the slice of the backing service the engine consults.
// Methods return a nil error only for a well-formed, expected response;
// every non-nil error degrades to a conversational re-prompt, never a fault.
type SchedulingService interface {
	FindPatient(ctx context.Context, phone, dob string) (scheduling.PatientLookup, error)
	CreatePatient(ctx context.Context, req scheduling.CreatePatientRequest) (string, error)
	ListDoctors(ctx context.Context, department string) ([]string, error)
	ListDoctorsFallback(ctx context.Context, department string) ([]string, error)
	GetAppointment(ctx context.Context, patientID string) (scheduling.Appointment, error)
	AvailableDates(ctx context.Context, doctorName string) (scheduling.DateAvailability, error)
	AvailableSlots(ctx context.Context, doctorName, date string) ([]string, error)
	BookAppointment(ctx context.Context, req scheduling.BookingRequest) (scheduling.BookingResult, error)
	CancelAppointment(ctx context.Context, req scheduling.CancellationRequest) error
}

// Turn is the engine's answer for one inbound message: what to say, how the
// UI should render it, and the attribute bag the caller must echo back.
type Turn struct {
	Response   string
	Action     string
	Attributes AttributeBag
}

// Engine is the conversation state machine. It holds no per-caller state;
// everything it needs arrives in the attribute bag each turn.
type Engine struct {
	scheduling  SchedulingService
	departments []string
	logger      *logging.Logger
	metrics     *metrics.DialogueMetrics
	intents     []intentRoute
}

// intentRoute pairs a keyword predicate with its handler. Routes are
// evaluated in order: "book" outranks "no" outranks "check" outranks
// "cancel", which matters when a message matches several keywords
// ("yes, cancel my appointment" books).
type intentRoute struct {
	match  func(lower string) bool
	handle func(ctx context.Context, bag AttributeBag) Turn
}

// NewEngine creates the conversation engine. departments is the roster
// offered when the caller asks to book.
func NewEngine(svc SchedulingService, departments []string, logger *logging.Logger, m *metrics.DialogueMetrics) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	e := &Engine{
		scheduling:  svc,
		departments: departments,
		logger:      logger,
		metrics:     m,
	}
	e.intents = []intentRoute{
		{matchAny("book", "appointment", "yes"), e.offerDepartments},
		{matchAny("no"), e.endConversation},
		{matchAny("check"), e.describeAppointment},
		{matchAny("cancel"), e.askCancellationConfirmation},
	}
	return e
}

// Transition decides the next prompt, performs any delegated scheduling
// calls, and returns the updated attribute bag. It is total: every
// (state, message, bag) combination yields a turn.
func (e *Engine) Transition(ctx context.Context, message string, bag AttributeBag) Turn {
	start := time.Now()
	state := bag.State.Normalize()
	msg := strings.TrimSpace(message)

	var turn Turn
	switch state {
	case StateStart, StateConversationEnded:
		turn = e.greet()
	case StateAwaitingName:
		turn = e.handleName(msg)
	case StateAwaitingDOB:
		turn = e.handleDOB(msg, bag)
	case StateAwaitingPhone:
		turn = e.resolveIdentity(ctx, msg, bag)
	case StateAwaitingFirstName:
		turn = e.handleFirstName(msg, bag)
	case StateAwaitingLastNameConfirmation:
		turn = e.handleLastNameConfirmation(ctx, msg, bag)
	case StateAwaitingLastName:
		turn = e.handleLastName(ctx, msg, bag)
	case StateAuthenticated:
		turn = e.routeIntent(ctx, msg, bag)
	case StateAwaitingDepartment:
		turn = e.handleDepartment(ctx, msg, bag)
	case StateAwaitingDoctor:
		turn = e.handleDoctor(ctx, msg, bag)
	case StateAwaitingDate:
		turn = e.handleDate(ctx, msg, bag)
	case StateAwaitingTime:
		turn = e.handleTime(ctx, msg, bag)
	case StateAwaitingCancellationConfirmation:
		turn = e.handleCancellationConfirmation(ctx, msg, bag)
	default:
		turn = e.clarify(bag)
	}

	e.logger.Debug("conversation turn",
		"from", string(state),
		"to", string(turn.Attributes.State),
		"action", turn.Action,
	)
	e.metrics.ObserveTurn(string(state), turn.Action)
	e.metrics.ObserveTurnLatency(string(state), time.Since(start).Seconds())
	return turn
}

func (e *Engine) greet() Turn {
	return Turn{
		Response:   greeting,
		Action:     ActionRequestName,
		Attributes: AttributeBag{State: StateAwaitingName},
	}
}

func (e *Engine) handleName(msg string) Turn {
	return Turn{
		Response:   "Thanks! Now, please provide your date of birth.",
		Action:     ActionRequestDOB,
		Attributes: AttributeBag{State: StateAwaitingDOB, Name: msg},
	}
}

func (e *Engine) handleDOB(msg string, bag AttributeBag) Turn {
	// The date of birth is passed through verbatim; the backing service
	// owns format validation.
	return Turn{
		Response:   "Thank you! Finally, please provide your phone number along with your country code(Eg:+91/+1).",
		Action:     ActionRequestPhone,
		Attributes: AttributeBag{State: StateAwaitingPhone, Name: bag.Name, DOB: msg},
	}
}

// resolveIdentity runs the phone+DOB check and branches on the result:
// known patient, unknown patient (account creation), or an unexpected
// answer that re-prompts for the phone number.
func (e *Engine) resolveIdentity(ctx context.Context, phone string, bag AttributeBag) Turn {
	lookup, err := e.scheduling.FindPatient(ctx, phone, bag.DOB)
	if err != nil {
		e.logger.Warn("patient lookup failed", "error", err)
		return Turn{
			Response:   "I'm having trouble verifying your information. Let's try again with just your phone number and date of birth.",
			Action:     ActionRequestPhone,
			Attributes: AttributeBag{State: StateAwaitingPhone, Name: bag.Name, DOB: bag.DOB},
		}
	}

	if lookup.Exists {
		return e.welcomeBack(ctx, lookup.PatientID, phone, bag)
	}

	first, last := splitName(bag.Name)
	if last != "" {
		patientID, err := e.scheduling.CreatePatient(ctx, scheduling.CreatePatientRequest{
			FirstName: first,
			LastName:  last,
			DOB:       bag.DOB,
			Phone:     phone,
		})
		if err == nil {
			return e.accountCreated(first, patientID, phone)
		}
		e.logger.Warn("direct patient creation failed", "error", err)
		return Turn{
			Response:   "I need more information to create your account. What is your first name?",
			Action:     ActionRequestFirstName,
			Attributes: AttributeBag{State: StateAwaitingFirstName, DOB: bag.DOB, Phone: phone},
		}
	}

	return Turn{
		Response:   "I couldn't find your records. Let me create a new account for you. What is your first name?",
		Action:     ActionRequestFirstName,
		Attributes: AttributeBag{State: StateAwaitingFirstName, DOB: bag.DOB, Phone: phone, FullName: bag.Name},
	}
}

func (e *Engine) welcomeBack(ctx context.Context, patientID, phone string, bag AttributeBag) Turn {
	first, _ := splitName(bag.Name)

	appt, err := e.scheduling.GetAppointment(ctx, patientID)
	if err == nil && appt.Exists {
		return Turn{
			Response: fmt.Sprintf("Welcome back, %s! %s Would you like to cancel this appointment or book a new one?",
				first, appointmentSummary(appt)),
			Action: ActionShowExistingAppointment,
			Attributes: AttributeBag{
				State:      StateAuthenticated,
				PatientID:  patientID,
				DoctorName: appt.DoctorName,
				Department: appt.Department,
				Date:       appt.Date,
				Time:       appt.Time,
				Phone:      phone,
			},
		}
	}
	if err != nil {
		e.logger.Warn("appointment lookup failed", "error", err)
	}

	return Turn{
		Response:   fmt.Sprintf("Welcome back, %s! You don't have any upcoming appointments. Would you like to book one?", first),
		Action:     ActionOfferBooking,
		Attributes: AttributeBag{State: StateAuthenticated, PatientID: patientID, Phone: phone},
	}
}

func (e *Engine) handleFirstName(msg string, bag AttributeBag) Turn {
	if strings.Contains(bag.FullName, " ") {
		_, last := splitName(bag.FullName)
		return Turn{
			Response: fmt.Sprintf("Thank you! Is '%s' your last name? (yes/no)", last),
			Action:   ActionConfirmLastName,
			Attributes: AttributeBag{
				State:     StateAwaitingLastNameConfirmation,
				FirstName: msg,
				LastName:  last,
				DOB:       bag.DOB,
				Phone:     bag.Phone,
			},
		}
	}

	return Turn{
		Response:   "Thank you! What is your last name?",
		Action:     ActionRequestLastName,
		Attributes: AttributeBag{State: StateAwaitingLastName, FirstName: msg, DOB: bag.DOB, Phone: bag.Phone},
	}
}

func (e *Engine) handleLastNameConfirmation(ctx context.Context, msg string, bag AttributeBag) Turn {
	if containsAny(strings.ToLower(msg), "yes", "correct", "right") {
		return e.createPatient(ctx, bag.FirstName, bag.LastName, bag)
	}

	return Turn{
		Response:   "What is your last name?",
		Action:     ActionRequestLastName,
		Attributes: AttributeBag{State: StateAwaitingLastName, FirstName: bag.FirstName, DOB: bag.DOB, Phone: bag.Phone},
	}
}

func (e *Engine) handleLastName(ctx context.Context, msg string, bag AttributeBag) Turn {
	return e.createPatient(ctx, bag.FirstName, msg, bag)
}

func (e *Engine) createPatient(ctx context.Context, first, last string, bag AttributeBag) Turn {
	patientID, err := e.scheduling.CreatePatient(ctx, scheduling.CreatePatientRequest{
		FirstName: first,
		LastName:  last,
		DOB:       bag.DOB,
		Phone:     bag.Phone,
	})
	if err != nil {
		e.logger.Warn("patient creation failed", "error", err)
		return Turn{
			Response:   "I'm sorry, there was an issue creating your account. Please try again later or contact our support team.",
			Action:     ActionError,
			Attributes: AttributeBag{State: StateError, Phone: bag.Phone},
		}
	}
	return e.accountCreated(first, patientID, bag.Phone)
}

func (e *Engine) accountCreated(first, patientID, phone string) Turn {
	return Turn{
		Response:   fmt.Sprintf("Thank you, %s! Your account has been created successfully. Would you like to book an appointment now?", first),
		Action:     ActionOfferBooking,
		Attributes: AttributeBag{State: StateAuthenticated, PatientID: patientID, Phone: phone},
	}
}

// routeIntent walks the ordered intent routes; the first match wins.
func (e *Engine) routeIntent(ctx context.Context, msg string, bag AttributeBag) Turn {
	lower := strings.ToLower(msg)
	for _, route := range e.intents {
		if route.match(lower) {
			return route.handle(ctx, bag)
		}
	}
	return Turn{
		Response:   "How can I assist you today? You can book a new appointment, check your existing appointments, or cancel an appointment.",
		Action:     ActionOfferOptions,
		Attributes: AttributeBag{State: StateAuthenticated, PatientID: bag.PatientID, Phone: bag.Phone},
	}
}

func (e *Engine) offerDepartments(_ context.Context, bag AttributeBag) Turn {
	return Turn{
		Response: "What department would you like to book an appointment with?",
		Action:   ActionShowOptions,
		Attributes: AttributeBag{
			State:     StateAwaitingDepartment,
			PatientID: bag.PatientID,
			Phone:     bag.Phone,
			Options:   e.departments,
		},
	}
}

func (e *Engine) endConversation(_ context.Context, _ AttributeBag) Turn {
	return Turn{
		Response:   "Thank you for using our Medical Appointment Booking System. Have a great day!",
		Action:     ActionConversationEnd,
		Attributes: AttributeBag{State: StateConversationEnded},
	}
}

func (e *Engine) describeAppointment(ctx context.Context, bag AttributeBag) Turn {
	appt, err := e.scheduling.GetAppointment(ctx, bag.PatientID)
	if err == nil && appt.Exists {
		return Turn{
			Response: appointmentSummary(appt),
			Action:   ActionShowExistingAppointment,
			Attributes: AttributeBag{
				State:      StateAuthenticated,
				PatientID:  bag.PatientID,
				DoctorName: appt.DoctorName,
				Department: appt.Department,
				Date:       appt.Date,
				Time:       appt.Time,
				Phone:      bag.Phone,
			},
		}
	}
	if err != nil {
		e.logger.Warn("appointment lookup failed", "error", err)
	}

	return Turn{
		Response:   "You don't have any upcoming appointments. Would you like to book one now?",
		Action:     ActionOfferBooking,
		Attributes: AttributeBag{State: StateAuthenticated, PatientID: bag.PatientID, Phone: bag.Phone},
	}
}

func (e *Engine) askCancellationConfirmation(ctx context.Context, bag AttributeBag) Turn {
	appt, err := e.scheduling.GetAppointment(ctx, bag.PatientID)
	if err == nil && appt.Exists {
		return Turn{
			Response: appointmentSummary(appt) + " Would you like to cancel this appointment? Please confirm by saying 'yes' or 'no'.",
			Action:   ActionConfirmCancellation,
			Attributes: AttributeBag{
				State:      StateAwaitingCancellationConfirmation,
				PatientID:  bag.PatientID,
				DoctorName: appt.DoctorName,
				Department: appt.Department,
				Date:       appt.Date,
				Time:       appt.Time,
				Phone:      bag.Phone,
			},
		}
	}
	if err != nil {
		e.logger.Warn("appointment lookup failed", "error", err)
	}

	return Turn{
		Response:   "You don't have any appointments to cancel. Would you like to book an appointment instead?",
		Action:     ActionOfferBooking,
		Attributes: AttributeBag{State: StateAuthenticated, PatientID: bag.PatientID, Phone: bag.Phone},
	}
}

func (e *Engine) handleDepartment(ctx context.Context, msg string, bag AttributeBag) Turn {
	doctors, err := e.scheduling.ListDoctors(ctx, msg)
	if err == nil && len(doctors) > 0 {
		return Turn{
			Response: fmt.Sprintf("We have the following doctors in %s. Which doctor would you like to book an appointment with?", msg),
			Action:   ActionShowOptions,
			Attributes: AttributeBag{
				State:      StateAwaitingDoctor,
				PatientID:  bag.PatientID,
				Department: msg,
				Phone:      bag.Phone,
				Options:    doctors,
			},
		}
	}
	if err != nil {
		e.logger.Warn("doctor roster fetch failed", "department", msg, "error", err)
	}

	return Turn{
		Response:   fmt.Sprintf("I couldn't find information about that department. Please choose from %s.", humanJoin(e.departments)),
		Action:     ActionRequestDepartment,
		Attributes: AttributeBag{State: StateAwaitingDepartment, PatientID: bag.PatientID, Phone: bag.Phone},
	}
}

func (e *Engine) handleDoctor(ctx context.Context, msg string, bag AttributeBag) Turn {
	avail, err := e.scheduling.AvailableDates(ctx, msg)
	if err == nil && len(avail.Dates) > 0 {
		return Turn{
			Response: fmt.Sprintf("%s is available on the following dates. Please select a date for your appointment.", avail.DoctorName),
			Action:   ActionShowOptions,
			Attributes: AttributeBag{
				State:          StateAwaitingDate,
				PatientID:      bag.PatientID,
				DoctorName:     avail.DoctorName,
				Department:     bag.Department,
				AvailableDates: avail.Dates,
				Phone:          bag.Phone,
				Options:        avail.Dates,
			},
		}
	}

	// No dates or an unrecognized doctor: refresh the roster so the caller
	// can pick again instead of being stranded.
	response := "I couldn't find that doctor. Please check the name and try again."
	if err == nil {
		response = fmt.Sprintf("I'm sorry, %s doesn't have any available appointments in the next 7 days. Would you like to try another doctor?", avail.DoctorName)
	} else {
		e.logger.Warn("date lookup failed", "doctor", msg, "error", err)
	}

	return Turn{
		Response: response,
		Action:   ActionShowOptions,
		Attributes: AttributeBag{
			State:      StateAwaitingDoctor,
			PatientID:  bag.PatientID,
			Department: bag.Department,
			Phone:      bag.Phone,
			Options:    e.refreshRoster(ctx, bag.Department),
		},
	}
}

// refreshRoster re-fetches the doctor list for recovery options. Failures
// just leave the options empty; the caller can still type a name.
func (e *Engine) refreshRoster(ctx context.Context, department string) []string {
	doctors, err := e.scheduling.ListDoctorsFallback(ctx, department)
	if err != nil {
		e.logger.Warn("roster refresh failed", "department", department, "error", err)
		return nil
	}
	return doctors
}

func (e *Engine) handleDate(ctx context.Context, msg string, bag AttributeBag) Turn {
	slots, err := e.scheduling.AvailableSlots(ctx, bag.DoctorName, msg)
	if err == nil && len(slots) > 0 {
		return Turn{
			Response: fmt.Sprintf("%s has the following available time slots on %s. Please select a time.", bag.DoctorName, msg),
			Action:   ActionShowOptions,
			Attributes: AttributeBag{
				State:          StateAwaitingTime,
				PatientID:      bag.PatientID,
				DoctorName:     bag.DoctorName,
				Department:     bag.Department,
				SelectedDate:   msg,
				AvailableSlots: slots,
				Phone:          bag.Phone,
				Options:        slots,
			},
		}
	}

	response := "I couldn't retrieve available time slots for that date. Please try a different date."
	if err == nil {
		response = fmt.Sprintf("I'm sorry, %s doesn't have any available time slots on %s. Please select another date.", bag.DoctorName, msg)
	} else {
		e.logger.Warn("slot lookup failed", "doctor", bag.DoctorName, "date", msg, "error", err)
	}

	// Re-offer the dates fetched earlier so the caller can pick again.
	return Turn{
		Response: response,
		Action:   ActionShowOptions,
		Attributes: AttributeBag{
			State:          StateAwaitingDate,
			PatientID:      bag.PatientID,
			DoctorName:     bag.DoctorName,
			Department:     bag.Department,
			AvailableDates: bag.AvailableDates,
			Phone:          bag.Phone,
			Options:        bag.AvailableDates,
		},
	}
}

func (e *Engine) handleTime(ctx context.Context, msg string, bag AttributeBag) Turn {
	result, err := e.scheduling.BookAppointment(ctx, scheduling.BookingRequest{
		DoctorName: bag.DoctorName,
		Date:       bag.SelectedDate,
		TimeSlot:   msg,
		PatientID:  bag.PatientID,
		Phone:      bag.Phone,
	})
	if err != nil {
		e.logger.Warn("booking failed", "doctor", bag.DoctorName, "error", err)
		return Turn{
			Response: fmt.Sprintf("I'm sorry, there was an issue booking your appointment: %s. Please try again.", scheduling.Detail(err)),
			Action:   ActionErrorBooking,
			Attributes: AttributeBag{
				State:        StateAwaitingTime,
				PatientID:    bag.PatientID,
				Phone:        bag.Phone,
				DoctorName:   bag.DoctorName,
				Department:   bag.Department,
				SelectedDate: bag.SelectedDate,
				SelectedTime: msg,
			},
		}
	}

	return Turn{
		Response: fmt.Sprintf("Great! Your appointment with %s has been booked for %s at %s. You will receive a confirmation text message. Is there anything else I can help you with?",
			bag.DoctorName, result.Date, result.Time),
		Action: ActionConfirmBooking,
		Attributes: AttributeBag{
			State:         StateAuthenticated,
			PatientID:     bag.PatientID,
			Phone:         bag.Phone,
			AppointmentID: result.AppointmentID,
			DoctorName:    bag.DoctorName,
			Department:    bag.Department,
			Date:          result.Date,
			Time:          result.Time,
		},
	}
}

func (e *Engine) handleCancellationConfirmation(ctx context.Context, msg string, bag AttributeBag) Turn {
	if !containsAny(strings.ToLower(msg), "yes", "confirm") {
		return Turn{
			Response:   "Your appointment has not been cancelled. How else can I assist you today?",
			Action:     ActionOfferOptions,
			Attributes: AttributeBag{State: StateAuthenticated, PatientID: bag.PatientID, Phone: bag.Phone},
		}
	}

	err := e.scheduling.CancelAppointment(ctx, scheduling.CancellationRequest{
		DoctorName: bag.DoctorName,
		Department: bag.Department,
		Date:       bag.Date,
		Time:       bag.Time,
		PatientID:  bag.PatientID,
	})

	response := "Your appointment has been successfully cancelled. Would you like to book a new appointment?"
	if err != nil {
		e.logger.Warn("cancellation failed", "error", err)
		response = fmt.Sprintf("I'm sorry, there was an issue cancelling your appointment: %s. Please try again later or contact our support team.", scheduling.Detail(err))
	}

	return Turn{
		Response:   response,
		Action:     ActionOfferBooking,
		Attributes: AttributeBag{State: StateAuthenticated, PatientID: bag.PatientID, Phone: bag.Phone},
	}
}

func (e *Engine) clarify(bag AttributeBag) Turn {
	return Turn{
		Response:   "I'm not sure how to help with that. Can you please rephrase or tell me if you'd like to book, check, or cancel an appointment?",
		Action:     ActionRequestClarification,
		Attributes: AttributeBag{State: bag.State, Phone: bag.Phone},
	}
}

func appointmentSummary(appt scheduling.Appointment) string {
	return fmt.Sprintf("You have an appointment with %s from %s department on %s at %s.",
		appt.DoctorName, appt.Department, appt.Date, appt.Time)
}

// splitName applies the first-token heuristic: the first whitespace-delimited
// token is the first name, the remainder the last name. Deliberately naive;
// this mirrors how the rest of the platform splits caller names.
func splitName(name string) (first, last string) {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "", ""
	}
	if len(fields) == 1 {
		return fields[0], ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}

func matchAny(keywords ...string) func(string) bool {
	return func(lower string) bool {
		return containsAny(lower, keywords...)
	}
}

func containsAny(lower string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// humanJoin renders a list as "a, b, or c" for prompts.
func humanJoin(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " or " + items[1]
	}
	return strings.Join(items[:len(items)-1], ", ") + ", or " + items[len(items)-1]
}
