package models

import (
	"errors"
	"time"
)

// ErrSessionNotFound is returned when a session id has no stored state.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionConflict is returned when a concurrent writer modified the
// session between load and save.
var ErrSessionConflict = errors.New("session modified concurrently")

// ErrNoCompletedLead is returned when booking is attempted before any
// discovery cycle has completed for the session.
var ErrNoCompletedLead = errors.New("no completed lead for session")

// Slot field names. Discovery collects exactly these nine.
const (
	SlotProjectType  = "project_type"
	SlotBusinessGoal = "business_goal"
	SlotTechnology   = "technology"
	SlotTimeline     = "timeline"
	SlotBudget       = "budget"
	SlotName         = "name"
	SlotEmail        = "email"
	SlotCompany      = "company"
	SlotPhone        = "phone"
)

// SlotKeys is the canonical slot order: it defines both the next-question
// scan and the completion check.
var SlotKeys = []string{
	SlotProjectType,
	SlotBusinessGoal,
	SlotTechnology,
	SlotTimeline,
	SlotBudget,
	SlotName,
	SlotEmail,
	SlotCompany,
	SlotPhone,
}

// Slots maps each slot key to its captured value. A nil entry means the
// slot is still unfilled; the map always carries all nine keys.
type Slots map[string]*string

// NewSlots returns the default all-unfilled slot map.
func NewSlots() Slots {
	s := make(Slots, len(SlotKeys))
	for _, k := range SlotKeys {
		s[k] = nil
	}
	return s
}

// Filled reports whether the slot has a non-empty value.
func (s Slots) Filled(key string) bool {
	v, ok := s[key]
	return ok && v != nil && *v != ""
}

// Set fills a slot. Unknown keys are ignored so extraction output can
// never grow the map beyond the nine known fields.
func (s Slots) Set(key, value string) {
	if _, ok := s[key]; !ok {
		return
	}
	v := value
	s[key] = &v
}

// Value returns the slot value or "" when unfilled.
func (s Slots) Value(key string) string {
	if v, ok := s[key]; ok && v != nil {
		return *v
	}
	return ""
}

// Merge copies extracted values into s, writing only slots that are still
// unfilled. Filled slots are never overwritten.
func (s Slots) Merge(extracted Slots) {
	for _, k := range SlotKeys {
		if s.Filled(k) {
			continue
		}
		if v, ok := extracted[k]; ok && v != nil && *v != "" {
			s.Set(k, *v)
		}
	}
}

// Complete reports whether every slot in the canonical order is filled.
func (s Slots) Complete() bool {
	for _, k := range SlotKeys {
		if !s.Filled(k) {
			return false
		}
	}
	return true
}

// Message is one conversational turn stored on the session.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Window is a candidate meeting time range offered for booking.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// BookingState tracks the booking sub-flow: whether the bot has offered to
// book, which windows are on the table, and the window finally chosen.
type BookingState struct {
	Asked    bool       `json:"asked"`
	Windows  []Window   `json:"slots"`
	Selected *time.Time `json:"selected"`
}

// BookingConfirmation is the result of creating a calendar event.
type BookingConfirmation struct {
	EventLink string `json:"event_link"`
	MeetLink  string `json:"meet_link"`
}

// LeadType is the qualification tier derived at snapshot time.
type LeadType string

const (
	LeadHighIntent   LeadType = "High Intent"
	LeadMediumIntent LeadType = "Medium Intent"
	LeadLowIntent    LeadType = "Low Intent"
)

// Lead is an immutable snapshot taken when discovery completes. It is
// appended to the session and never mutated afterwards.
type Lead struct {
	ProjectType  string    `json:"project_type"`
	BusinessGoal string    `json:"business_goal"`
	Technology   string    `json:"technology"`
	Timeline     string    `json:"timeline"`
	Budget       string    `json:"budget"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Company      string    `json:"company"`
	Phone        string    `json:"phone"`
	LeadType     LeadType  `json:"lead_type"`
	CompletedAt  time.Time `json:"completed_at"`
}

// SnapshotLead copies the nine slot values into a Lead.
func SnapshotLead(s Slots, leadType LeadType, at time.Time) Lead {
	return Lead{
		ProjectType:  s.Value(SlotProjectType),
		BusinessGoal: s.Value(SlotBusinessGoal),
		Technology:   s.Value(SlotTechnology),
		Timeline:     s.Value(SlotTimeline),
		Budget:       s.Value(SlotBudget),
		Name:         s.Value(SlotName),
		Email:        s.Value(SlotEmail),
		Company:      s.Value(SlotCompany),
		Phone:        s.Value(SlotPhone),
		LeadType:     leadType,
		CompletedAt:  at,
	}
}

// Session is the unit of conversational memory, keyed by an opaque id and
// rewritten on every turn. Version guards the read-modify-write cycle.
type Session struct {
	ID               string       `json:"id"`
	Messages         []Message    `json:"messages"`
	Slots            Slots        `json:"slots"`
	CurrentQuestion  string       `json:"current_question,omitempty"`
	DiscoveryStarted bool         `json:"discovery_started"`
	DiscoveryPaused  bool         `json:"discovery_paused"`
	Booking          BookingState `json:"booking"`
	Leads            []Lead       `json:"leads,omitempty"`
	Version          int64        `json:"version"`
	CreatedAt        time.Time    `json:"created_at"`
	LastUpdatedAt    time.Time    `json:"last_updated_at"`
}

// NewSession returns the default-shaped session for a fresh id.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:            id,
		Messages:      []Message{},
		Slots:         NewSlots(),
		Booking:       BookingState{Asked: false, Windows: []Window{}},
		CreatedAt:     now,
		LastUpdatedAt: now,
	}
}

// AddMessage appends one turn to the transcript.
func (s *Session) AddMessage(role, content string) {
	s.Messages = append(s.Messages, Message{Role: role, Content: content})
}

// LastLead returns the most recently completed lead, or an error when the
// session has none. Booking sources the attendee email from here.
func (s *Session) LastLead() (Lead, error) {
	if len(s.Leads) == 0 {
		return Lead{}, ErrNoCompletedLead
	}
	return s.Leads[len(s.Leads)-1], nil
}

// ChatRequest is the turn-level request envelope.
type ChatRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse is the turn-level response envelope.
type ChatResponse struct {
	Answer    string `json:"answer"`
	SessionID string `json:"session_id"`
}

// SessionSummary is the admin list projection: the latest lead's fields
// plus transcript counters.
type SessionSummary struct {
	SessionID     string    `json:"session_id"`
	CreatedAt     time.Time `json:"created_at"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
	LeadType      string    `json:"lead_type"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	ProjectType   string    `json:"project_type"`
	BusinessGoal  string    `json:"business_goal"`
	TotalLeads    int       `json:"total_projects"`
	MessageCount  int       `json:"message_count"`
	LastMessage   string    `json:"last_message,omitempty"`
}

// Summarize builds the admin projection for one session.
func (s *Session) Summarize() SessionSummary {
	sum := SessionSummary{
		SessionID:     s.ID,
		CreatedAt:     s.CreatedAt,
		LastUpdatedAt: s.LastUpdatedAt,
		LeadType:      "Unknown",
		TotalLeads:    len(s.Leads),
		MessageCount:  len(s.Messages),
	}
	if len(s.Messages) > 0 {
		sum.LastMessage = s.Messages[len(s.Messages)-1].Content
	}
	if lead, err := s.LastLead(); err == nil {
		sum.LeadType = string(lead.LeadType)
		sum.Name = lead.Name
		sum.Email = lead.Email
		sum.Phone = lead.Phone
		sum.ProjectType = lead.ProjectType
		sum.BusinessGoal = lead.BusinessGoal
	}
	return sum
}
