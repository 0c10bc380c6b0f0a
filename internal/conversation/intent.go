package conversation

import "strings"

// Intent is the coarse classification of a turn.
type Intent string

const (
	IntentProject Intent = "project"
	IntentGeneral Intent = "general"
)

// Career and recruiting talk is never a sales lead, even when it also
// matches a project keyword ("looking for a job building apps").
var careerKeywords = []string{
	"job", "jobs", "vacancy", "career", "hiring",
	"opening", "openings", "internship", "recruitment",
}

var projectKeywords = []string{
	"build", "create", "project",
	"website", "app", "application", "software",
	"system", "platform", "solution",
	"develop", "make", "need a", "looking for", "hire",
}

// DetectIntent classifies a message as project or general inquiry. The
// career block-list takes precedence over project keywords.
func DetectIntent(text string) Intent {
	t := strings.ToLower(text)
	for _, k := range careerKeywords {
		if strings.Contains(t, k) {
			return IntentGeneral
		}
	}
	for _, k := range projectKeywords {
		if strings.Contains(t, k) {
			return IntentProject
		}
	}
	return IntentGeneral
}
