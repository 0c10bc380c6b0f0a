package conversation

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/xicom-labs/presales-bot/models"
)

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\s\-]{7,}`)
)

var technologyWords = []string{
	"react", "flutter", "android", "ios", "mobile", "web", "ai", "ml", "python", "node",
}

// QuickSlotFill runs the cheap surface-pattern pass over one message,
// filling any still-unfilled slot it can infer. It runs before the
// model-backed extraction and never overwrites a filled slot.
func QuickSlotFill(text string, slots models.Slots) {
	q := strings.ToLower(strings.TrimSpace(text))
	fill := func(key, value string) {
		if !slots.Filled(key) {
			slots.Set(key, value)
		}
	}

	switch q {
	case "new project", "new", "fresh project":
		fill(models.SlotProjectType, "new project")
	case "enhancement", "existing project", "upgrade":
		fill(models.SlotProjectType, "enhancement")
	}

	switch {
	case strings.Contains(q, "mvp"):
		fill(models.SlotBusinessGoal, "MVP")
	case strings.Contains(q, "startup"):
		fill(models.SlotBusinessGoal, "Startup project")
	case strings.Contains(q, "scal"):
		fill(models.SlotBusinessGoal, "Scaling")
	case strings.Contains(q, "automat"):
		fill(models.SlotBusinessGoal, "Automation")
	}

	for _, t := range technologyWords {
		if strings.Contains(q, t) {
			fill(models.SlotTechnology, text)
			break
		}
	}

	if strings.Contains(q, "month") || strings.Contains(q, "week") || strings.Contains(q, "immediate") {
		fill(models.SlotTimeline, text)
	}

	if strings.Contains(q, "$") || strings.Contains(q, "k") || strings.Contains(q, "lakh") || strings.Contains(q, "crore") {
		fill(models.SlotBudget, text)
	}

	if m := emailPattern.FindString(q); m != "" {
		fill(models.SlotEmail, m)
	}

	if m := phonePattern.FindString(strings.TrimSpace(text)); m != "" {
		fill(models.SlotPhone, strings.TrimSpace(m))
	}

	if !slots.Filled(models.SlotName) && isAlpha(q) && len(q) > 0 && len(q) < 20 {
		fill(models.SlotName, text)
	}
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// QualifyLead derives the lead tier from the filled slots: High Intent
// when timeline and budget are both known, Medium Intent when the project
// shape is known, Low Intent otherwise.
func QualifyLead(slots models.Slots) models.LeadType {
	if slots.Filled(models.SlotTimeline) && slots.Filled(models.SlotBudget) {
		return models.LeadHighIntent
	}
	if slots.Filled(models.SlotProjectType) || slots.Filled(models.SlotBusinessGoal) {
		return models.LeadMediumIntent
	}
	return models.LeadLowIntent
}
