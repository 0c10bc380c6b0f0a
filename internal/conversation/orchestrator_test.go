package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/xicom-labs/presales-bot/models"
)

type memRepo struct {
	sessions map[string]*models.Session
	saveErr  error
	saves    int
}

func newMemRepo() *memRepo {
	return &memRepo{sessions: map[string]*models.Session{}}
}

func (r *memRepo) GetSession(_ context.Context, id string) (*models.Session, error) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	return s, nil
}

func (r *memRepo) SaveSession(_ context.Context, s *models.Session) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saves++
	r.sessions[s.ID] = s
	return nil
}

func (r *memRepo) ListSessions(context.Context, string, int64) ([]*models.Session, string, error) {
	out := make([]*models.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out, "", nil
}

type stubExtractor struct {
	slots models.Slots
	err   error
	calls int
}

func (e *stubExtractor) ExtractSlots(context.Context, string) (models.Slots, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	if e.slots == nil {
		return models.NewSlots(), nil
	}
	return e.slots, nil
}

type stubAnswerer struct {
	reply     string
	questions []string
}

func (a *stubAnswerer) Answer(_ context.Context, question string) (string, error) {
	a.questions = append(a.questions, question)
	if a.reply == "" {
		return "grounded answer", nil
	}
	return a.reply, nil
}

type fakeBooking struct {
	windows  []models.Window
	winErr   error
	bookErr  error
	booked   []time.Time
	attendee string
	summary  string
}

func (b *fakeBooking) AvailableWindows(context.Context) ([]models.Window, error) {
	if b.winErr != nil {
		return nil, b.winErr
	}
	return b.windows, nil
}

func (b *fakeBooking) Book(_ context.Context, start time.Time, attendeeEmail, summary string) (models.BookingConfirmation, error) {
	if b.bookErr != nil {
		return models.BookingConfirmation{}, b.bookErr
	}
	b.booked = append(b.booked, start)
	b.attendee = attendeeEmail
	b.summary = summary
	return models.BookingConfirmation{
		EventLink: "https://calendar.example/event/1",
		MeetLink:  "https://meet.example/abc-defg-hij",
	}, nil
}

type recArchive struct {
	leads []models.Lead
	err   error
}

func (a *recArchive) SaveLead(_ context.Context, _ string, lead models.Lead) error {
	a.leads = append(a.leads, lead)
	return a.err
}

func acceptAllEmails(email string) (string, bool) {
	e := strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(e, "@") {
		return "", false
	}
	return e, true
}

func testWindows(n int) []models.Window {
	base := time.Date(2026, 9, 2, 9, 0, 0, 0, time.UTC)
	out := make([]models.Window, 0, n)
	for i := 0; i < n; i++ {
		start := base.Add(time.Duration(i) * 30 * time.Minute)
		out = append(out, models.Window{Start: start, End: start.Add(30 * time.Minute)})
	}
	return out
}

func newTestOrchestrator(repo *memRepo, booking *fakeBooking, archive *recArchive) (*Orchestrator, *stubExtractor, *stubAnswerer) {
	ext := &stubExtractor{}
	ans := &stubAnswerer{}
	o := NewOrchestrator(Deps{
		Sessions:      repo,
		Extractor:     ext,
		Answerer:      ans,
		Booking:       booking,
		Archive:       archive,
		ValidateEmail: acceptAllEmails,
		Now:           func() time.Time { return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC) },
		Logger:        log.New(io.Discard, "", 0),
	})
	return o, ext, ans
}

func TestTurnOpenQuestionGoesToAnswerer(t *testing.T) {
	repo := newMemRepo()
	o, ext, ans := newTestOrchestrator(repo, &fakeBooking{}, nil)

	reply, err := o.Turn(context.Background(), "s1", "What services does Xicom offer?")
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if reply != "grounded answer" {
		t.Fatalf("reply = %q, want answerer output", reply)
	}
	if ext.calls != 0 {
		t.Fatalf("extractor called %d times before discovery started", ext.calls)
	}
	if len(ans.questions) != 1 || ans.questions[0] != "What services does Xicom offer?" {
		t.Fatalf("answerer saw %v", ans.questions)
	}
	sess := repo.sessions["s1"]
	if sess == nil {
		t.Fatal("session not persisted")
	}
	if sess.DiscoveryStarted {
		t.Fatal("general question must not start discovery")
	}
	if len(sess.Messages) != 2 {
		t.Fatalf("transcript length = %d, want user+assistant", len(sess.Messages))
	}
}

func TestTurnProjectIntentStartsDiscovery(t *testing.T) {
	repo := newMemRepo()
	o, _, _ := newTestOrchestrator(repo, &fakeBooking{}, nil)

	reply, err := o.Turn(context.Background(), "s1", "I want to build a website")
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if reply != QuestionFlow[0].Prompt {
		t.Fatalf("reply = %q, want first discovery question", reply)
	}
	sess := repo.sessions["s1"]
	if !sess.DiscoveryStarted {
		t.Fatal("discovery not started")
	}
	if sess.CurrentQuestion != models.SlotProjectType {
		t.Fatalf("current question = %q, want %q", sess.CurrentQuestion, models.SlotProjectType)
	}
}

func TestTurnCapturesAnswerAndAsksNext(t *testing.T) {
	repo := newMemRepo()
	o, ext, _ := newTestOrchestrator(repo, &fakeBooking{}, nil)

	sess := models.NewSession("s1", time.Now())
	sess.DiscoveryStarted = true
	sess.CurrentQuestion = models.SlotProjectType
	repo.sessions["s1"] = sess

	reply, err := o.Turn(context.Background(), "s1", "a brand-new build")
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if got := sess.Slots.Value(models.SlotProjectType); got != "a brand-new build" {
		t.Fatalf("captured slot = %q", got)
	}
	if reply != QuestionFlow[1].Prompt {
		t.Fatalf("reply = %q, want next question", reply)
	}
	if sess.CurrentQuestion != models.SlotBusinessGoal {
		t.Fatalf("current question = %q", sess.CurrentQuestion)
	}
	if ext.calls != 0 {
		t.Fatal("extractor must not run while an answer is being captured")
	}
}

func TestTurnEmailGate(t *testing.T) {
	repo := newMemRepo()
	o, _, _ := newTestOrchestrator(repo, &fakeBooking{}, nil)

	sess := models.NewSession("s1", time.Now())
	sess.DiscoveryStarted = true
	for _, k := range models.SlotKeys[:6] {
		sess.Slots.Set(k, "value-"+k)
	}
	sess.CurrentQuestion = models.SlotEmail
	repo.sessions["s1"] = sess

	reply, err := o.Turn(context.Background(), "s1", "not-an-email")
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if reply != replyInvalidEmail {
		t.Fatalf("reply = %q, want email re-prompt", reply)
	}
	if sess.CurrentQuestion != models.SlotEmail {
		t.Fatal("invalid email must leave the question outstanding")
	}
	if sess.Slots.Filled(models.SlotEmail) {
		t.Fatal("invalid email must not be stored")
	}

	reply, err = o.Turn(context.Background(), "s1", "  User@Example.COM ")
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if got := sess.Slots.Value(models.SlotEmail); got != "user@example.com" {
		t.Fatalf("stored email = %q, want normalized", got)
	}
	if reply != QuestionFlow[7].Prompt {
		t.Fatalf("reply = %q, want company question", reply)
	}
}

func TestTurnExtractionMergesDuringDiscovery(t *testing.T) {
	repo := newMemRepo()
	o, ext, _ := newTestOrchestrator(repo, &fakeBooking{}, nil)

	extracted := models.NewSlots()
	extracted.Set(models.SlotTechnology, "React")
	ext.slots = extracted

	sess := models.NewSession("s1", time.Now())
	sess.DiscoveryStarted = true
	sess.Slots.Set(models.SlotProjectType, "portal")
	repo.sessions["s1"] = sess

	reply, err := o.Turn(context.Background(), "s1", "we already decided on React")
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if got := sess.Slots.Value(models.SlotTechnology); got != "React" {
		t.Fatalf("merged technology = %q", got)
	}
	if reply != QuestionFlow[1].Prompt {
		t.Fatalf("reply = %q, want business goal question", reply)
	}
}

func TestTurnExtractionFailureFallsBackToHeuristics(t *testing.T) {
	repo := newMemRepo()
	o, ext, _ := newTestOrchestrator(repo, &fakeBooking{}, nil)
	ext.err = errors.New("model unavailable")

	sess := models.NewSession("s1", time.Now())
	sess.DiscoveryStarted = true
	repo.sessions["s1"] = sess

	reply, err := o.Turn(context.Background(), "s1", "thinking about a flutter app")
	if err != nil {
		t.Fatalf("extractor failure must not fail the turn: %v", err)
	}
	if got := sess.Slots.Value(models.SlotTechnology); got == "" {
		t.Fatal("keyword heuristic should still fill technology")
	}
	if reply == "" {
		t.Fatal("empty reply")
	}
}

func TestTurnCompletionSnapshotsOneLead(t *testing.T) {
	repo := newMemRepo()
	archive := &recArchive{}
	o, _, _ := newTestOrchestrator(repo, &fakeBooking{}, archive)

	sess := models.NewSession("s1", time.Now())
	sess.DiscoveryStarted = true
	for _, k := range models.SlotKeys[:len(models.SlotKeys)-1] {
		sess.Slots.Set(k, "value-"+k)
	}
	sess.Slots.Set(models.SlotEmail, "lead@example.com")
	sess.CurrentQuestion = models.SlotPhone
	repo.sessions["s1"] = sess

	reply, err := o.Turn(context.Background(), "s1", "9876543210")
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if reply != replyCompleted {
		t.Fatalf("reply = %q, want completion prompt", reply)
	}
	if len(sess.Leads) != 1 {
		t.Fatalf("leads = %d, want exactly 1", len(sess.Leads))
	}
	lead := sess.Leads[0]
	if lead.Phone != "9876543210" || lead.Email != "lead@example.com" {
		t.Fatalf("lead snapshot wrong: %+v", lead)
	}
	if lead.LeadType != models.LeadHighIntent {
		t.Fatalf("lead type = %q, want high (timeline and budget filled)", lead.LeadType)
	}
	if sess.Slots.Filled(models.SlotPhone) || sess.Slots.Filled(models.SlotEmail) {
		t.Fatal("slots must reset after completion")
	}
	if sess.DiscoveryStarted {
		t.Fatal("discovery must stop after completion")
	}
	if !sess.Booking.Asked {
		t.Fatal("completion must move into the booking offer")
	}
	if len(archive.leads) != 1 {
		t.Fatalf("archived leads = %d", len(archive.leads))
	}

	// Replaying the completing message must not snapshot a second lead.
	if _, err := o.Turn(context.Background(), "s1", "9876543210"); err != nil {
		t.Fatalf("replay turn: %v", err)
	}
	if len(sess.Leads) != 1 {
		t.Fatalf("leads after replay = %d, want still 1", len(sess.Leads))
	}
	if len(archive.leads) != 1 {
		t.Fatalf("archived leads after replay = %d", len(archive.leads))
	}
}

func TestTurnArchiveFailureDoesNotFailTurn(t *testing.T) {
	repo := newMemRepo()
	archive := &recArchive{err: errors.New("pg down")}
	o, _, _ := newTestOrchestrator(repo, &fakeBooking{}, archive)

	sess := models.NewSession("s1", time.Now())
	sess.DiscoveryStarted = true
	for _, k := range models.SlotKeys[:len(models.SlotKeys)-1] {
		sess.Slots.Set(k, k)
	}
	sess.CurrentQuestion = models.SlotPhone
	repo.sessions["s1"] = sess

	reply, err := o.Turn(context.Background(), "s1", "555")
	if err != nil {
		t.Fatalf("archive error leaked: %v", err)
	}
	if reply != replyCompleted {
		t.Fatalf("reply = %q", reply)
	}
	if len(sess.Leads) != 1 {
		t.Fatal("lead must still be recorded on the session")
	}
}

func TestTurnBookingOfferAndPick(t *testing.T) {
	repo := newMemRepo()
	booking := &fakeBooking{windows: testWindows(3)}
	o, _, _ := newTestOrchestrator(repo, booking, nil)

	sess := models.NewSession("s1", time.Now())
	sess.Booking.Asked = true
	sess.Leads = []models.Lead{{Email: "lead@example.com", LeadType: models.LeadHighIntent}}
	repo.sessions["s1"] = sess

	reply, err := o.Turn(context.Background(), "s1", "yes")
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if !strings.HasPrefix(reply, "📅 Available slots:") {
		t.Fatalf("reply = %q, want slot list", reply)
	}
	for i := range booking.windows {
		want := fmt.Sprintf("%d. %s", i+1, booking.windows[i].Start.Format(windowTimeFormat))
		if !strings.Contains(reply, want) {
			t.Fatalf("reply missing line %q:\n%s", want, reply)
		}
	}
	if len(sess.Booking.Windows) != 3 {
		t.Fatalf("stored windows = %d", len(sess.Booking.Windows))
	}

	// Out-of-range pick re-prompts without losing the offer.
	reply, err = o.Turn(context.Background(), "s1", "4")
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if reply != replyInvalidWindow {
		t.Fatalf("reply = %q, want invalid slot", reply)
	}
	if len(sess.Booking.Windows) != 3 {
		t.Fatal("invalid pick must keep windows on offer")
	}

	// Signed input is not a pick; it routes to open Q&A and books nothing.
	reply, err = o.Turn(context.Background(), "s1", "+2")
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if reply != "grounded answer" {
		t.Fatalf("reply = %q, want answerer output for signed input", reply)
	}
	if len(booking.booked) != 0 {
		t.Fatalf("signed input booked %v", booking.booked)
	}
	if len(sess.Booking.Windows) != 3 {
		t.Fatal("signed input must keep windows on offer")
	}

	reply, err = o.Turn(context.Background(), "s1", "2")
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if reply != "https://meet.example/abc-defg-hij" {
		t.Fatalf("reply = %q, want meet link", reply)
	}
	if len(booking.booked) != 1 || !booking.booked[0].Equal(booking.windows[1].Start) {
		t.Fatalf("booked = %v, want second window", booking.booked)
	}
	if booking.attendee != "lead@example.com" {
		t.Fatalf("attendee = %q", booking.attendee)
	}
	if booking.summary != meetingSummary {
		t.Fatalf("summary = %q", booking.summary)
	}
	if len(sess.Booking.Windows) != 0 || sess.Booking.Asked {
		t.Fatal("booking state must reset after a successful booking")
	}
	if sess.Booking.Selected == nil || !sess.Booking.Selected.Equal(booking.windows[1].Start) {
		t.Fatalf("selected = %v", sess.Booking.Selected)
	}
}

func TestTurnBookingWithoutLeadClearsOffer(t *testing.T) {
	repo := newMemRepo()
	booking := &fakeBooking{windows: testWindows(2)}
	o, _, _ := newTestOrchestrator(repo, booking, nil)

	sess := models.NewSession("s1", time.Now())
	sess.Booking.Windows = testWindows(2)
	repo.sessions["s1"] = sess

	reply, err := o.Turn(context.Background(), "s1", "1")
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if reply != replyNoLeadForBook {
		t.Fatalf("reply = %q", reply)
	}
	if len(booking.booked) != 0 {
		t.Fatal("nothing must be booked without a lead")
	}
	if len(sess.Booking.Windows) != 0 || sess.Booking.Asked {
		t.Fatal("booking offer must be cleared")
	}
}

func TestTurnNoWindowsAvailable(t *testing.T) {
	repo := newMemRepo()
	o, _, _ := newTestOrchestrator(repo, &fakeBooking{}, nil)

	sess := models.NewSession("s1", time.Now())
	sess.Booking.Asked = true
	repo.sessions["s1"] = sess

	reply, err := o.Turn(context.Background(), "s1", "yes")
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if reply != replyNoWindows {
		t.Fatalf("reply = %q", reply)
	}
	if len(sess.Booking.Windows) != 0 {
		t.Fatal("no windows must be stored")
	}
}

func TestTurnOfferCapsWindows(t *testing.T) {
	repo := newMemRepo()
	booking := &fakeBooking{windows: testWindows(25)}
	o, _, _ := newTestOrchestrator(repo, booking, nil)

	sess := models.NewSession("s1", time.Now())
	sess.Booking.Asked = true
	sess.Leads = []models.Lead{{Email: "lead@example.com"}}
	repo.sessions["s1"] = sess

	if _, err := o.Turn(context.Background(), "s1", "yes"); err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if len(sess.Booking.Windows) != defaultWindowsShown {
		t.Fatalf("offered %d windows, want cap %d", len(sess.Booking.Windows), defaultWindowsShown)
	}
}

func TestTurnPauseAndResume(t *testing.T) {
	repo := newMemRepo()
	o, _, ans := newTestOrchestrator(repo, &fakeBooking{}, nil)

	sess := models.NewSession("s1", time.Now())
	sess.DiscoveryStarted = true
	sess.Slots.Set(models.SlotProjectType, "portal")
	sess.CurrentQuestion = models.SlotBusinessGoal
	repo.sessions["s1"] = sess

	reply, err := o.Turn(context.Background(), "s1", "not now")
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if reply != replyPaused {
		t.Fatalf("reply = %q", reply)
	}
	if !sess.DiscoveryPaused || sess.CurrentQuestion != "" {
		t.Fatal("pause must clear the outstanding question")
	}

	// While paused, open questions still get answered.
	reply, err = o.Turn(context.Background(), "s1", "what is your hourly rate?")
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if reply != "grounded answer" {
		t.Fatalf("reply = %q, want answerer output", reply)
	}
	if len(ans.questions) != 1 {
		t.Fatalf("answerer calls = %d", len(ans.questions))
	}
	if !sess.DiscoveryPaused {
		t.Fatal("answering a question must not resume discovery")
	}

	reply, err = o.Turn(context.Background(), "s1", "continue")
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if sess.DiscoveryPaused {
		t.Fatal("resume must clear the pause")
	}
	if reply != QuestionFlow[1].Prompt {
		t.Fatalf("reply = %q, want the question we paused on", reply)
	}
	if sess.CurrentQuestion != models.SlotBusinessGoal {
		t.Fatalf("current question = %q", sess.CurrentQuestion)
	}
}

func TestTurnEphemeralWithoutRepository(t *testing.T) {
	o := NewOrchestrator(Deps{
		Extractor: &stubExtractor{},
		Answerer:  &stubAnswerer{},
		Booking:   &fakeBooking{},
		Logger:    log.New(io.Discard, "", 0),
	})

	reply, err := o.Turn(context.Background(), "s1", "I want to build a website")
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if reply != QuestionFlow[0].Prompt {
		t.Fatalf("reply = %q", reply)
	}

	// Without storage every turn starts fresh, so the same message routes
	// the same way again.
	reply, err = o.Turn(context.Background(), "s1", "I want to build a website")
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if reply != QuestionFlow[0].Prompt {
		t.Fatalf("reply = %q, want stateless repeat", reply)
	}
}

func TestTurnSaveConflictSurfaces(t *testing.T) {
	repo := newMemRepo()
	repo.saveErr = models.ErrSessionConflict
	o, _, _ := newTestOrchestrator(repo, &fakeBooking{}, nil)

	_, err := o.Turn(context.Background(), "s1", "hello")
	if !errors.Is(err, models.ErrSessionConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
}

func TestTurnSaveFailureDegradesToEphemeral(t *testing.T) {
	repo := newMemRepo()
	repo.saveErr = errors.New("redis down")
	o, _, _ := newTestOrchestrator(repo, &fakeBooking{}, nil)

	reply, err := o.Turn(context.Background(), "s1", "I want to build a website")
	if err != nil {
		t.Fatalf("save failure must not fail the turn: %v", err)
	}
	if reply != QuestionFlow[0].Prompt {
		t.Fatalf("reply = %q", reply)
	}
}

func TestTurnFullDiscoveryToBooking(t *testing.T) {
	repo := newMemRepo()
	booking := &fakeBooking{windows: testWindows(3)}
	archive := &recArchive{}
	o, _, _ := newTestOrchestrator(repo, booking, archive)
	ctx := context.Background()

	turns := []struct {
		in   string
		want string
	}{
		{"I want to build a website", QuestionFlow[0].Prompt},
		{"a brand-new project", QuestionFlow[1].Prompt},
		{"launching an MVP", QuestionFlow[2].Prompt},
		{"React and Node", QuestionFlow[3].Prompt},
		{"about 3 months", QuestionFlow[4].Prompt},
		{"$10k to $20k", QuestionFlow[5].Prompt},
		{"Asha", QuestionFlow[6].Prompt},
		{"asha@example.com", QuestionFlow[7].Prompt},
		{"Acme Retail", QuestionFlow[8].Prompt},
		{"9876543210", replyCompleted},
	}
	for i, tt := range turns {
		reply, err := o.Turn(ctx, "s1", tt.in)
		if err != nil {
			t.Fatalf("turn %d (%q): %v", i, tt.in, err)
		}
		if reply != tt.want {
			t.Fatalf("turn %d (%q): reply = %q, want %q", i, tt.in, reply, tt.want)
		}
	}

	sess := repo.sessions["s1"]
	if len(sess.Leads) != 1 {
		t.Fatalf("leads = %d", len(sess.Leads))
	}
	if sess.Leads[0].LeadType != models.LeadHighIntent {
		t.Fatalf("lead type = %q", sess.Leads[0].LeadType)
	}

	reply, err := o.Turn(ctx, "s1", "yes")
	if err != nil {
		t.Fatalf("booking confirm: %v", err)
	}
	if !strings.Contains(reply, "1. ") || !strings.Contains(reply, "Reply with slot number.") {
		t.Fatalf("reply = %q, want numbered window list", reply)
	}

	reply, err = o.Turn(ctx, "s1", "1")
	if err != nil {
		t.Fatalf("pick: %v", err)
	}
	if reply != "https://meet.example/abc-defg-hij" {
		t.Fatalf("reply = %q, want meet link", reply)
	}
	if booking.attendee != "asha@example.com" {
		t.Fatalf("attendee = %q", booking.attendee)
	}
	if sess.Booking.Selected == nil || len(sess.Booking.Windows) != 0 {
		t.Fatal("booking state must close out after the event is created")
	}
}
