package watcher

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func gradebookUrl(courseId, studentId string) string {
	return fmt.Sprintf("https://school.instructure.com/courses/%s/grades/%s", courseId, studentId)
}

func rosterEntry(name, courseId, studentId string, daysOut int) StudentEntry {
	return StudentEntry{
		Name:         name,
		GradebookUrl: gradebookUrl(courseId, studentId),
		DaysOut:      daysOut,
		StudentId:    studentId,
	}
}

func mustFilter(t *testing.T, expr string) DaysOutFilter {
	filter, err := ParseDaysOutFilter(expr)
	require.NoError(t, err)
	return filter
}

// roster of 7 students across 2 courses, filter >=5, 3 students match
func TestBuildBatchesTwoCourses(t *testing.T) {
	roster := []StudentEntry{
		rosterEntry("a", "101", "1", 7),
		rosterEntry("b", "101", "2", 2),
		rosterEntry("c", "101", "3", 5),
		rosterEntry("d", "202", "4", 1),
		rosterEntry("e", "202", "5", 9),
		rosterEntry("f", "202", "6", 0),
		rosterEntry("g", "202", "7", 3),
	}

	s := Settings{Mode: ModeMissing}.WithDefaults()
	plan := buildBatches(roster, s, mustFilter(t, ">=5"), nil)

	require.Len(t, plan.Batches, 2)
	require.Empty(t, plan.Skipped)
	require.Equal(t, 3, plan.Total)

	require.Equal(t, "101", plan.Batches[0].CourseId)
	require.Len(t, plan.Batches[0].Members, 2)
	require.Equal(t, "a", plan.Batches[0].Members[0].Entry.Name)
	require.Equal(t, "c", plan.Batches[0].Members[1].Entry.Name)

	require.Equal(t, "202", plan.Batches[1].CourseId)
	require.Len(t, plan.Batches[1].Members, 1)
	require.Equal(t, "e", plan.Batches[1].Members[0].Entry.Name)
}

func TestBuildBatchesSizeCap(t *testing.T) {
	var roster []StudentEntry
	for i := 0; i < 70; i++ {
		roster = append(roster, rosterEntry(
			fmt.Sprintf("student %d", i), "101", fmt.Sprintf("%d", i), 10,
		))
	}

	s := Settings{Mode: ModeMissing}.WithDefaults()
	plan := buildBatches(roster, s, mustFilter(t, ">=5"), nil)

	require.Len(t, plan.Batches, 3)
	require.Equal(t, 70, plan.Total)

	seen := map[string]bool{}
	for _, batch := range plan.Batches {
		require.LessOrEqual(t, len(batch.Members), DefaultBatchSize)
		for _, member := range batch.Members {
			require.Equal(t, "101", member.Ref.CourseId)
			require.False(t, seen[member.Entry.Name], "duplicate member: %s", member.Entry.Name)
			seen[member.Entry.Name] = true
		}
	}
	require.Len(t, seen, 70)
}

func TestBuildBatchesSkipsInvalidReferences(t *testing.T) {
	roster := []StudentEntry{
		rosterEntry("valid", "101", "1", 10),
		{Name: "no url", DaysOut: 10},
		{Name: "bad url", GradebookUrl: "https://school.instructure.com/dashboard", DaysOut: 10},
		{Name: "legacy", LegacyUrl: gradebookUrl("101", "4"), DaysOut: 10},
	}

	s := Settings{Mode: ModeMissing}.WithDefaults()
	plan := buildBatches(roster, s, mustFilter(t, ">=5"), nil)

	require.Len(t, plan.Batches, 1)
	require.Len(t, plan.Batches[0].Members, 2)
	require.Equal(t, "valid", plan.Batches[0].Members[0].Entry.Name)
	require.Equal(t, "legacy", plan.Batches[0].Members[1].Entry.Name)

	require.Len(t, plan.Skipped, 2)
	require.Equal(t, "no url", plan.Skipped[0].Name)
	require.Equal(t, "", plan.Skipped[0].Raw)
	require.Equal(t, "bad url", plan.Skipped[1].Name)
	require.Equal(t, "https://school.instructure.com/dashboard", plan.Skipped[1].Raw)
}

func TestBuildBatchesFoundSetExclusion(t *testing.T) {
	roster := []StudentEntry{
		rosterEntry("a", "101", "1", 10),
		rosterEntry("b", "101", "2", 10),
	}
	found := map[string]struct{}{
		"https://school.instructure.com/courses/101/grades/1": {},
	}

	submission := Settings{Mode: ModeSubmission}.WithDefaults()
	plan := buildBatches(roster, submission, mustFilter(t, ">=5"), found)
	require.Equal(t, 1, plan.Total)
	require.Equal(t, "b", plan.Batches[0].Members[0].Entry.Name)

	// missing mode never consults the found set
	missing := Settings{Mode: ModeMissing}.WithDefaults()
	plan = buildBatches(roster, missing, mustFilter(t, ">=5"), found)
	require.Equal(t, 2, plan.Total)
}

func TestBuildBatchesFailingGradeOverride(t *testing.T) {
	failing := 55.0
	passing := 95.0
	roster := []StudentEntry{
		{Name: "active but failing", GradebookUrl: gradebookUrl("101", "1"), DaysOut: 0, Grade: &failing, StudentId: "1"},
		{Name: "active and passing", GradebookUrl: gradebookUrl("101", "2"), DaysOut: 0, Grade: &passing, StudentId: "2"},
		{Name: "active no grade", GradebookUrl: gradebookUrl("101", "3"), DaysOut: 0, StudentId: "3"},
	}

	s := Settings{Mode: ModeMissing, IncludeFailingGrades: true}.WithDefaults()
	plan := buildBatches(roster, s, mustFilter(t, ">=5"), nil)
	require.Equal(t, 1, plan.Total)
	require.Equal(t, "active but failing", plan.Batches[0].Members[0].Entry.Name)

	// without the flag the grade is irrelevant
	s.IncludeFailingGrades = false
	plan = buildBatches(roster, s, mustFilter(t, ">=5"), nil)
	require.Equal(t, 0, plan.Total)
}
