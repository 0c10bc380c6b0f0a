package conversation

import "github.com/xicom-labs/presales-bot/models"

// Question pairs a slot key with the prompt used to ask for it. The flow
// order matches models.SlotKeys.
type Question struct {
	Slot   string
	Prompt string
}

// QuestionFlow drives discovery: the next question asked is always the
// first entry whose slot is still unfilled.
var QuestionFlow = []Question{
	{models.SlotProjectType, "Is this a brand-new project or an enhancement to an existing one?"},
	{models.SlotBusinessGoal, "What is the main business goal? (e.g. MVP, startup launch, scaling, automation)"},
	{models.SlotTechnology, "Do you have any preferred technologies? (React, Flutter, AI/ML, Node, etc.)"},
	{models.SlotTimeline, "What timeline do you have in mind for the project?"},
	{models.SlotBudget, "What budget range are you considering?"},
	{models.SlotName, "May I have your name?"},
	{models.SlotEmail, "What's the best email address to reach you?"},
	{models.SlotCompany, "Which company are you with?"},
	{models.SlotPhone, "And a phone number we can reach you on?"},
}

// NextQuestion returns the first question whose slot is unfilled, or ok
// false when discovery is complete.
func NextQuestion(slots models.Slots) (Question, bool) {
	for _, q := range QuestionFlow {
		if !slots.Filled(q.Slot) {
			return q, true
		}
	}
	return Question{}, false
}

var affirmatives = map[string]struct{}{
	"yes": {}, "y": {}, "yeah": {}, "yep": {}, "sure": {}, "ok": {}, "book": {}, "continue": {},
}

// IsAffirmative reports whether the (already lowercased, trimmed) input is
// a yes-token.
func IsAffirmative(text string) bool {
	_, ok := affirmatives[text]
	return ok
}
