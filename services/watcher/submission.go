package watcher

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gradewatch-backend/lib/scrapers/canvas"
	"gradewatch-backend/lib/timezone"
)

// layout producing dates like "Dec 10"
const submissionDateLayout = "Jan 2"

// matchSubmission scans one student's submissions for the cycle and
// reports the first one whose formatted submission date matches the
// keyword. With the implicit "today" default the comparison is exact
// equality, so "Dec 1" can never match "Dec 10"; an explicit custom
// keyword matches as a substring instead.
func matchSubmission(m BatchMember, subs []canvas.Submission, s Settings) (FoundEvent, bool) {
	keyword := strings.TrimSpace(s.Keyword)
	exact := keyword == ""
	if exact {
		keyword = referenceDate(s).Format(submissionDateLayout)
	}

	for _, sub := range subs {
		if !ownedBy(sub.UserId, m.Ref.StudentId) || sub.SubmittedAt == nil {
			continue
		}

		formatted := sub.SubmittedAt.In(timezone.Location).Format(submissionDateLayout)
		matched := formatted == keyword
		if !exact {
			matched = strings.Contains(formatted, keyword)
		}
		if !matched {
			continue
		}

		return FoundEvent{
			Student:      m.Entry.Name,
			Assignment:   assignmentName(sub),
			SubmittedAt:  sub.SubmittedAt.In(timezone.Location),
			GradebookUrl: m.Ref.Url(),
			Key:          m.Ref.Key(),
		}, true
	}

	return FoundEvent{}, false
}

func assignmentName(sub canvas.Submission) string {
	if sub.Assignment != nil && sub.Assignment.Name != "" {
		return sub.Assignment.Name
	}
	return fmt.Sprintf("assignment %d", sub.AssignmentId)
}

func ownedBy(userId int64, studentId string) bool {
	return strconv.FormatInt(userId, 10) == studentId
}

func referenceDate(s Settings) time.Time {
	if !s.ReferenceDate.IsZero() {
		return s.ReferenceDate.In(timezone.Location)
	}
	return timezone.Now()
}
