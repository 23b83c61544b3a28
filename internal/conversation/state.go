package conversation

// ConversationState identifies where the caller is in the dialogue. The
// engine only ever emits states from this set; anything else a caller echoes
// back is answered with a clarification turn.
type ConversationState string

const (
	StateStart                            ConversationState = "start"
	StateAwaitingName                     ConversationState = "awaiting_name"
	StateAwaitingDOB                      ConversationState = "awaiting_dob"
	StateAwaitingPhone                    ConversationState = "awaiting_phone"
	StateAwaitingFirstName                ConversationState = "awaiting_first_name"
	StateAwaitingLastNameConfirmation     ConversationState = "awaiting_last_name_confirmation"
	StateAwaitingLastName                 ConversationState = "awaiting_last_name"
	StateAuthenticated                    ConversationState = "authenticated"
	StateAwaitingDepartment               ConversationState = "awaiting_department"
	StateAwaitingDoctor                   ConversationState = "awaiting_doctor"
	StateAwaitingDate                     ConversationState = "awaiting_date"
	StateAwaitingTime                     ConversationState = "awaiting_time"
	StateAwaitingCancellationConfirmation ConversationState = "awaiting_cancellation_confirmation"
	StateConversationEnded                ConversationState = "conversation_ended"

	// StateError is set when account creation fails. No transition handles
	// it, so every later message gets the clarification turn with the state
	// preserved.
	StateError ConversationState = "error"
)

// Normalize maps an absent state to the start of the conversation.
func (s ConversationState) Normalize() ConversationState {
	if s == "" {
		return StateStart
	}
	return s
}

// Action labels hint to the calling UI how a response should be rendered
// (free text input vs. a selectable list sourced from the bag's options).
// They carry no behavior of their own.
const (
	ActionRequestName             = "request_name"
	ActionRequestDOB              = "request_dob"
	ActionRequestPhone            = "request_phone"
	ActionRequestFirstName        = "request_first_name"
	ActionRequestLastName         = "request_last_name"
	ActionConfirmLastName         = "confirm_last_name"
	ActionRequestDepartment       = "request_department"
	ActionShowExistingAppointment = "show_existing_appointment"
	ActionOfferBooking            = "offer_booking"
	ActionShowOptions             = "show_options"
	ActionOfferOptions            = "offer_options"
	ActionConfirmCancellation     = "confirm_cancellation"
	ActionConfirmBooking          = "confirm_booking"
	ActionConversationEnd         = "conversation_end"
	ActionRequestClarification    = "request_clarification"
	ActionError                   = "error"
	ActionErrorBooking            = "error_booking"
)
