package watcher

import (
	"strconv"
	"strings"

	"gradewatch-backend/lib/scrapers/canvas"
	"gradewatch-backend/lib/timezone"
)

// layout producing dates like "Dec 10, 2026"
const dueDateLayout = "Jan 2, 2006"

// aggregateMissing classifies one student's submissions for the cycle
// and returns their missing-assignment report.
//
// A submission is out of consideration when its due date hasn't
// passed yet or its grade reads "complete" (any casing). It counts as
// missing when the remote flagged it missing, when it is unsubmitted
// past its due date, or when its score is exactly zero. The zero-score
// rule also sweeps up legitimately graded zeros, which matches how the
// reports have always read.
func aggregateMissing(m BatchMember, subs []canvas.Submission, users []canvas.User, s Settings) MissingStudent {
	now := referenceDate(s)

	student := MissingStudent{
		Name:         m.Entry.Name,
		CurrentGrade: currentGrade(users, m.Ref.StudentId),
	}

	for _, sub := range subs {
		if !ownedBy(sub.UserId, m.Ref.StudentId) {
			continue
		}
		due := sub.DueDate()
		if due != nil && due.After(now) {
			continue
		}
		if strings.EqualFold(sub.Grade, "complete") {
			continue
		}

		missing := sub.Missing ||
			(sub.WorkflowState == "unsubmitted" && due != nil && due.Before(now)) ||
			(sub.Score != nil && *sub.Score == 0)
		if !missing {
			continue
		}

		entry := MissingAssignment{
			Title: assignmentName(sub),
			Score: submissionScore(sub),
		}
		if sub.Assignment != nil {
			entry.Link = sub.Assignment.HtmlUrl
		}
		if due != nil {
			entry.DueDate = due.In(timezone.Location).Format(dueDateLayout)
		}
		student.Missing = append(student.Missing, entry)
	}

	return student
}

func submissionScore(sub canvas.Submission) string {
	if sub.Grade != "" {
		return sub.Grade
	}
	if sub.Score != nil {
		return strconv.FormatFloat(*sub.Score, 'f', -1, 64)
	}
	return ""
}

// currentGrade extracts the student's grade snapshot from their
// enrollment: current_score, else final_score, else current_grade
// with a trailing "%" stripped.
func currentGrade(users []canvas.User, studentId string) string {
	for _, user := range users {
		if !ownedBy(user.Id, studentId) {
			continue
		}
		for _, enrollment := range user.Enrollments {
			grades := enrollment.Grades
			if grades == nil {
				continue
			}
			if grades.CurrentScore != nil {
				return strconv.FormatFloat(*grades.CurrentScore, 'f', -1, 64)
			}
			if grades.FinalScore != nil {
				return strconv.FormatFloat(*grades.FinalScore, 'f', -1, 64)
			}
			if grades.CurrentGrade != "" {
				return strings.TrimSuffix(grades.CurrentGrade, "%")
			}
		}
	}
	return ""
}
