package conversation

import "github.com/xicom-labs/presales-bot/models"

// Phase is the explicit conversational state, derived once per turn from
// the session fields. Earlier phases take priority when several flags are
// set, which normalizes the ambiguous combinations in one place.
type Phase string

const (
	PhaseSlotPick       Phase = "slot_pick"       // booking windows offered, awaiting an index
	PhaseBookingConfirm Phase = "booking_confirm" // asked to book, awaiting yes/no
	PhasePaused         Phase = "paused"          // discovery paused, awaiting resume
	PhaseAwaitingAnswer Phase = "awaiting_answer" // a slot question is outstanding
	PhaseDiscovery      Phase = "discovery"       // discovery active, no outstanding question
	PhaseIdle           Phase = "idle"            // open Q&A
)

// SessionPhase derives the current phase.
func SessionPhase(s *models.Session) Phase {
	switch {
	case len(s.Booking.Windows) > 0:
		return PhaseSlotPick
	case s.Booking.Asked:
		return PhaseBookingConfirm
	case s.DiscoveryPaused:
		return PhasePaused
	case s.CurrentQuestion != "":
		return PhaseAwaitingAnswer
	case s.DiscoveryStarted:
		return PhaseDiscovery
	}
	return PhaseIdle
}
