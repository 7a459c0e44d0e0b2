package discussion

import (
	"fmt"
	"strings"

	"github.com/brettboylen/discussion-bot/models"
)

// The sidebar keeps the link to the current thread inside a region delimited by two
// literal markers:
//
//	...<start>[title](url)<end>...
//
// The only mutation is collapse-then-insert: any text between a start marker and the
// next end marker is dropped, then the new link goes right after the first start marker.

// CollapseRegions removes the content of every start...end region in text,
// leaving the two markers adjacent. A start marker with no end marker after it is left alone.
func CollapseRegions(text, start, end string) string {
	if start == "" || end == "" {
		return text
	}

	var out strings.Builder
	rest := text
	for {
		startIdx := strings.Index(rest, start)
		if startIdx < 0 {
			break
		}

		afterStart := startIdx + len(start)
		endIdx := strings.Index(rest[afterStart:], end)
		if endIdx < 0 {
			break
		}

		out.WriteString(rest[:afterStart])
		out.WriteString(end)
		rest = rest[afterStart+endIdx+len(end):]
	}
	out.WriteString(rest)

	return out.String()
}

// FindMarker returns the offset just past the first start marker in text.
// ok is false when the marker does not occur.
func FindMarker(text, start string) (offset int, ok bool) {
	if start == "" {
		return 0, false
	}

	idx := strings.Index(text, start)
	if idx < 0 {
		return 0, false
	}
	return idx + len(start), true
}

// SpliceLink collapses the marked regions of text and inserts link after the first start marker.
// When the start marker is missing the collapsed text is returned with ok set to false.
func SpliceLink(text, start, end, link string) (result string, ok bool) {
	collapsed := CollapseRegions(text, start, end)

	offset, found := FindMarker(collapsed, start)
	if !found {
		return collapsed, false
	}

	return collapsed[:offset] + link + collapsed[offset:], true
}

// FormatSidebarLink renders a submission as a markdown link
func FormatSidebarLink(submission *models.Submission) string {
	return fmt.Sprintf("[%s](%s)", submission.Title, submission.URL)
}
