package conversation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/xicom-labs/presales-bot/models"
	"github.com/xicom-labs/presales-bot/repository"
)

// SlotExtractor is the model-backed extraction capability. Output is
// restricted to the nine known slot keys.
type SlotExtractor interface {
	ExtractSlots(ctx context.Context, text string) (models.Slots, error)
}

// Answerer answers open questions from the grounded knowledge base.
type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

// BookingService computes free windows and creates events.
type BookingService interface {
	AvailableWindows(ctx context.Context) ([]models.Window, error)
	Book(ctx context.Context, start time.Time, attendeeEmail, summary string) (models.BookingConfirmation, error)
}

// LeadArchive receives lead snapshots for durable storage. Archive
// failures never fail the turn.
type LeadArchive interface {
	SaveLead(ctx context.Context, sessionID string, lead models.Lead) error
}

const (
	meetingSummary = "Project Discussion"

	replyCompleted      = "✅ Details saved.\n\nWould you like to book a meeting?"
	replyInvalidWindow  = "❌ Invalid slot number. Please choose again."
	replyNoWindows      = "❌ No available slots."
	replyInvalidEmail   = "❌ Please enter a valid email."
	replyNoLeadForBook  = "❌ I don't have your contact details yet, so I can't book a meeting. Let's go through a few quick questions first."
	replyPaused         = "No problem, we can pick this up whenever you're ready. Just say \"continue\" to resume."
	windowTimeFormat    = "02 Jan 2006, 03:04 PM"
	defaultWindowsShown = 10
)

var pauseTokens = map[string]struct{}{
	"pause": {}, "later": {}, "not now": {}, "hold on": {}, "stop": {},
}

// Deps are the orchestrator's injected collaborators. Sessions and
// Archive may be nil: a nil session repository degrades every turn to an
// ephemeral default session, a nil archive disables durable lead storage.
type Deps struct {
	Sessions      repository.SessionRepository
	Extractor     SlotExtractor
	Answerer      Answerer
	Booking       BookingService
	Archive       LeadArchive
	ValidateEmail EmailValidator
	MaxOffered    int
	Now           func() time.Time
	Logger        *log.Logger
}

// Orchestrator drives one conversational turn at a time: load state,
// route, mutate, persist, reply.
type Orchestrator struct {
	sessions      repository.SessionRepository
	extractor     SlotExtractor
	answerer      Answerer
	booking       BookingService
	archive       LeadArchive
	validateEmail EmailValidator
	maxOffered    int
	now           func() time.Time
	logger        *log.Logger
}

func NewOrchestrator(deps Deps) *Orchestrator {
	o := &Orchestrator{
		sessions:      deps.Sessions,
		extractor:     deps.Extractor,
		answerer:      deps.Answerer,
		booking:       deps.Booking,
		archive:       deps.Archive,
		validateEmail: deps.ValidateEmail,
		maxOffered:    deps.MaxOffered,
		now:           deps.Now,
		logger:        deps.Logger,
	}
	if o.validateEmail == nil {
		o.validateEmail = NormalizeEmail
	}
	if o.maxOffered <= 0 {
		o.maxOffered = defaultWindowsShown
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.logger == nil {
		o.logger = log.New(log.Writer(), "[CHAT] ", log.LstdFlags)
	}
	return o
}

// Turn processes one inbound message and returns the reply. The session
// is persisted before returning; persistence failures degrade to an
// ephemeral turn except for write conflicts, which are surfaced.
func (o *Orchestrator) Turn(ctx context.Context, sessionID, question string) (string, error) {
	sess := o.loadSession(ctx, sessionID)
	sess.LastUpdatedAt = o.now()
	sess.AddMessage("user", question)

	reply, err := o.route(ctx, sess, question)
	if err != nil {
		return "", err
	}
	sess.AddMessage("assistant", reply)

	if err := o.saveSession(ctx, sess); err != nil {
		return "", err
	}
	return reply, nil
}

func (o *Orchestrator) loadSession(ctx context.Context, id string) *models.Session {
	if o.sessions == nil {
		return models.NewSession(id, o.now())
	}
	sess, err := o.sessions.GetSession(ctx, id)
	if err != nil {
		if !errors.Is(err, models.ErrSessionNotFound) {
			o.logger.Printf("session load failed, running ephemeral: %v", err)
		}
		return models.NewSession(id, o.now())
	}
	return sess
}

func (o *Orchestrator) saveSession(ctx context.Context, sess *models.Session) error {
	if o.sessions == nil {
		return nil
	}
	err := o.sessions.SaveSession(ctx, sess)
	if errors.Is(err, models.ErrSessionConflict) {
		return err
	}
	if err != nil {
		o.logger.Printf("session save failed, turn not persisted: %v", err)
	}
	return nil
}

// route picks exactly one branch per turn, in priority order.
func (o *Orchestrator) route(ctx context.Context, sess *models.Session, question string) (string, error) {
	lower := strings.ToLower(strings.TrimSpace(question))

	switch SessionPhase(sess) {
	case PhaseSlotPick:
		// Signed or mixed input is not a pick; "+2" is a question, not
		// window 2.
		if isDigits(lower) {
			idx, _ := strconv.Atoi(lower)
			return o.pickWindow(ctx, sess, idx)
		}
		if IsAffirmative(lower) {
			return o.offerWindows(ctx, sess)
		}
	case PhaseBookingConfirm:
		if IsAffirmative(lower) {
			return o.offerWindows(ctx, sess)
		}
	case PhasePaused:
		if IsAffirmative(lower) {
			sess.DiscoveryPaused = false
			sess.DiscoveryStarted = true
			if q, ok := NextQuestion(sess.Slots); ok {
				sess.CurrentQuestion = q.Slot
				return q.Prompt, nil
			}
		} else {
			return o.answerer.Answer(ctx, question)
		}
	}

	return o.discoveryFlow(ctx, sess, question, lower)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (o *Orchestrator) discoveryFlow(ctx context.Context, sess *models.Session, question, lower string) (string, error) {
	if sess.CurrentQuestion != "" {
		if _, paused := pauseTokens[lower]; paused {
			sess.DiscoveryPaused = true
			sess.CurrentQuestion = ""
			return replyPaused, nil
		}
		if sess.CurrentQuestion == models.SlotEmail {
			email, ok := o.validateEmail(question)
			if !ok {
				return replyInvalidEmail, nil
			}
			sess.Slots.Set(models.SlotEmail, email)
		} else {
			sess.Slots.Set(sess.CurrentQuestion, strings.TrimSpace(question))
		}
		sess.CurrentQuestion = ""
	} else if sess.DiscoveryStarted {
		QuickSlotFill(question, sess.Slots)
		extracted, err := o.extractor.ExtractSlots(ctx, question)
		if err != nil {
			o.logger.Printf("slot extraction failed, heuristics only: %v", err)
		} else {
			sess.Slots.Merge(extracted)
		}
	}

	if !sess.DiscoveryStarted && DetectIntent(lower) == IntentProject {
		sess.DiscoveryStarted = true
	}

	if sess.DiscoveryStarted && sess.CurrentQuestion == "" {
		if q, ok := NextQuestion(sess.Slots); ok {
			sess.CurrentQuestion = q.Slot
			return q.Prompt, nil
		}
	}

	if sess.DiscoveryStarted && sess.Slots.Complete() {
		return o.completeDiscovery(ctx, sess), nil
	}

	return o.answerer.Answer(ctx, question)
}

// completeDiscovery snapshots exactly one lead, resets the slots for a
// fresh cycle, and moves the session into the booking-confirm phase.
func (o *Orchestrator) completeDiscovery(ctx context.Context, sess *models.Session) string {
	lead := models.SnapshotLead(sess.Slots, QualifyLead(sess.Slots), o.now())
	sess.Leads = append(sess.Leads, lead)
	sess.Slots = models.NewSlots()
	sess.DiscoveryStarted = false
	sess.Booking.Asked = true

	if o.archive != nil {
		if err := o.archive.SaveLead(ctx, sess.ID, lead); err != nil {
			o.logger.Printf("lead archive failed for session %s: %v", sess.ID, err)
		}
	}
	o.logger.Printf("lead captured: session=%s type=%s", sess.ID, lead.LeadType)
	return replyCompleted
}

func (o *Orchestrator) offerWindows(ctx context.Context, sess *models.Session) (string, error) {
	windows, err := o.booking.AvailableWindows(ctx)
	if err != nil {
		return "", fmt.Errorf("listing available windows: %w", err)
	}
	if len(windows) > o.maxOffered {
		windows = windows[:o.maxOffered]
	}
	if len(windows) == 0 {
		return replyNoWindows, nil
	}
	sess.Booking.Windows = windows

	var b strings.Builder
	b.WriteString("📅 Available slots:\n\n")
	for i, w := range windows {
		fmt.Fprintf(&b, "%d. %s\n", i+1, w.Start.Format(windowTimeFormat))
	}
	b.WriteString("\nReply with slot number.")
	return b.String(), nil
}

func (o *Orchestrator) pickWindow(ctx context.Context, sess *models.Session, pick int) (string, error) {
	idx := pick - 1
	if idx < 0 || idx >= len(sess.Booking.Windows) {
		return replyInvalidWindow, nil
	}
	window := sess.Booking.Windows[idx]

	lead, err := sess.LastLead()
	if err != nil {
		// Booking without a completed discovery has no attendee email;
		// clear the offer and send the user back through discovery.
		sess.Booking = models.BookingState{Asked: false, Windows: []models.Window{}}
		return replyNoLeadForBook, nil
	}

	confirmation, err := o.booking.Book(ctx, window.Start, lead.Email, meetingSummary)
	if err != nil {
		return "", fmt.Errorf("booking window: %w", err)
	}

	start := window.Start
	sess.Booking = models.BookingState{Asked: false, Windows: []models.Window{}, Selected: &start}

	link := confirmation.MeetLink
	if link == "" {
		link = confirmation.EventLink
	}
	o.logger.Printf("meeting booked: session=%s start=%s", sess.ID, start.Format(time.RFC3339))
	return link, nil
}
