package discussion

import (
	"fmt"
	"strings"
	"time"

	"github.com/brettboylen/discussion-bot/models"
)

const (
	// DatePlaceholder is replaced with the current date in titles and bodies
	DatePlaceholder = "MM/DD/YY"

	// DateFormat renders dates as [MM/DD/YY]
	DateFormat = "[01/02/06]"

	// PreviousThreadsHeader starts the list of earlier threads appended to every body
	PreviousThreadsHeader = "\n\nPrevious Weekly Threads:"
)

// RenderDate replaces every DatePlaceholder in template with now
func RenderDate(template string, now time.Time) string {
	return strings.ReplaceAll(template, DatePlaceholder, now.Format(DateFormat))
}

// FormatThreadLink renders a submission as a markdown bullet
func FormatThreadLink(submission *models.Submission) string {
	return fmt.Sprintf("* [%s](%s)", submission.Title, submission.URL)
}

// RenderBody renders the body template and appends one bullet per previous thread, in order
func RenderBody(template string, now time.Time, previous []*models.Submission) string {
	var body strings.Builder
	body.WriteString(RenderDate(template, now))
	body.WriteString(PreviousThreadsHeader)

	for _, submission := range previous {
		body.WriteString("\n\n")
		body.WriteString(FormatThreadLink(submission))
	}

	return body.String()
}
