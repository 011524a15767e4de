package watcher

import (
	"testing"
	"time"

	"gradewatch-backend/lib/scrapers/canvas"

	"github.com/stretchr/testify/require"
)

func missingSettings() Settings {
	return Settings{
		Mode:          ModeMissing,
		ReferenceDate: *at(2026, time.December, 10, 9, 0),
	}.WithDefaults()
}

func TestAggregateMissingOverdueUnsubmitted(t *testing.T) {
	member := testMember("101", "5523", "Alice")

	student := aggregateMissing(member, []canvas.Submission{
		{
			UserId:        5523,
			WorkflowState: "unsubmitted",
			CachedDueDate: at(2026, time.December, 9, 23, 59),
			Assignment: &canvas.Assignment{
				Name:    "Worksheet 4",
				HtmlUrl: "https://school.instructure.com/courses/101/assignments/88",
			},
		},
	}, nil, missingSettings())

	require.Len(t, student.Missing, 1)
	require.Equal(t, "Worksheet 4", student.Missing[0].Title)
	require.Equal(t, "https://school.instructure.com/courses/101/assignments/88", student.Missing[0].Link)
	require.Equal(t, "Dec 9, 2026", student.Missing[0].DueDate)
}

func TestAggregateMissingCompleteNeverMissing(t *testing.T) {
	member := testMember("101", "5523", "Alice")

	for _, grade := range []string{"complete", "Complete", "COMPLETE"} {
		student := aggregateMissing(member, []canvas.Submission{
			{
				UserId:        5523,
				Grade:         grade,
				Missing:       true,
				WorkflowState: "unsubmitted",
				CachedDueDate: at(2026, time.December, 1, 0, 0),
			},
		}, nil, missingSettings())
		require.Empty(t, student.Missing, "grade: %q", grade)
	}
}

func TestAggregateMissingFutureDueDateExcluded(t *testing.T) {
	member := testMember("101", "5523", "Alice")

	student := aggregateMissing(member, []canvas.Submission{
		{
			UserId:        5523,
			WorkflowState: "unsubmitted",
			Missing:       true,
			CachedDueDate: at(2026, time.December, 17, 23, 59),
		},
	}, nil, missingSettings())
	require.Empty(t, student.Missing)
}

// a graded zero still counts as missing. surprising, but the reports
// have always read that way and consumers depend on it.
func TestAggregateMissingZeroScore(t *testing.T) {
	member := testMember("101", "5523", "Alice")
	zero := 0.0

	student := aggregateMissing(member, []canvas.Submission{
		{
			UserId:        5523,
			WorkflowState: "graded",
			Score:         &zero,
			CachedDueDate: at(2026, time.December, 1, 0, 0),
			Assignment:    &canvas.Assignment{Name: "Quiz 2"},
		},
	}, nil, missingSettings())
	require.Len(t, student.Missing, 1)
	require.Equal(t, "0", student.Missing[0].Score)
}

func TestAggregateMissingExplicitFlag(t *testing.T) {
	member := testMember("101", "5523", "Alice")
	half := 5.0

	student := aggregateMissing(member, []canvas.Submission{
		{
			UserId:        5523,
			WorkflowState: "graded",
			Score:         &half,
			Missing:       true,
			CachedDueDate: at(2026, time.December, 1, 0, 0),
		},
		// graded with a non-zero score and no flag: not missing
		{
			UserId:        5523,
			WorkflowState: "graded",
			Score:         &half,
			CachedDueDate: at(2026, time.December, 1, 0, 0),
		},
	}, nil, missingSettings())
	require.Len(t, student.Missing, 1)
}

func TestCurrentGradePreference(t *testing.T) {
	current := 82.4
	final := 79.0

	users := []canvas.User{
		{
			Id: 5523,
			Enrollments: []canvas.Enrollment{
				{Grades: &canvas.Grades{CurrentScore: &current, FinalScore: &final}},
			},
		},
		{
			Id: 5524,
			Enrollments: []canvas.Enrollment{
				{Grades: &canvas.Grades{FinalScore: &final}},
			},
		},
		{
			Id: 5525,
			Enrollments: []canvas.Enrollment{
				{Grades: &canvas.Grades{CurrentGrade: "88%"}},
			},
		},
	}

	require.Equal(t, "82.4", currentGrade(users, "5523"))
	require.Equal(t, "79", currentGrade(users, "5524"))
	require.Equal(t, "88", currentGrade(users, "5525"))
	require.Equal(t, "", currentGrade(users, "9999"))
}
