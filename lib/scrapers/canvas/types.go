package canvas

import "time"

type Assignment struct {
	Id      int64      `json:"id"`
	Name    string     `json:"name"`
	HtmlUrl string     `json:"html_url"`
	DueAt   *time.Time `json:"due_at"`
}

type Submission struct {
	Id            int64       `json:"id"`
	AssignmentId  int64       `json:"assignment_id"`
	UserId        int64       `json:"user_id"`
	SubmittedAt   *time.Time  `json:"submitted_at"`
	Score         *float64    `json:"score"`
	Grade         string      `json:"grade"`
	WorkflowState string      `json:"workflow_state"`
	CachedDueDate *time.Time  `json:"cached_due_date"`
	Missing       bool        `json:"missing"`
	Assignment    *Assignment `json:"assignment"`
}

// DueDate returns the submission's effective due date, preferring the
// date cached on the submission over the one on the assignment.
func (s Submission) DueDate() *time.Time {
	if s.CachedDueDate != nil {
		return s.CachedDueDate
	}
	if s.Assignment != nil {
		return s.Assignment.DueAt
	}
	return nil
}

type Grades struct {
	CurrentScore *float64 `json:"current_score"`
	FinalScore   *float64 `json:"final_score"`
	CurrentGrade string   `json:"current_grade"`
}

type Enrollment struct {
	Grades *Grades `json:"grades"`
}

type User struct {
	Id          int64        `json:"id"`
	Name        string       `json:"name"`
	Enrollments []Enrollment `json:"enrollments"`
}
