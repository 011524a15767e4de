package watcher

import (
	"gradewatch-backend/lib/gradelink"
)

// failing-grade override threshold for the include-failing flag
const failingGrade = 60

// BatchMember pairs a roster entry with its parsed gradebook
// reference for the duration of one cycle.
type BatchMember struct {
	Entry StudentEntry
	Ref   gradelink.Reference
}

// Batch is an ordered slice of students sharing one course, so it can
// be serviced with exactly two remote calls.
type Batch struct {
	Origin   string
	CourseId string
	Members  []BatchMember
}

func (b Batch) StudentIds() []string {
	ids := make([]string, len(b.Members))
	for i, m := range b.Members {
		ids[i] = m.Ref.StudentId
	}
	return ids
}

type batchPlan struct {
	Batches []Batch
	// total students across all batches
	Total   int
	Skipped []SkippedStudent
}

// buildBatches filters the roster, parses gradebook references, groups
// the survivors by course and slices each group into batches of at
// most s.BatchSize. Order follows the roster, no priority is applied.
func buildBatches(roster []StudentEntry, s Settings, filter DaysOutFilter, found map[string]struct{}) batchPlan {
	var plan batchPlan

	type group struct {
		origin   string
		courseId string
		members  []BatchMember
	}
	// keyed by origin+courseId: two instances can reuse course ids,
	// and a batch must never mix origins
	groups := map[string]*group{}
	var groupOrder []string

	for _, entry := range roster {
		included := filter.Matches(entry.DaysOut)
		if !included && s.IncludeFailingGrades {
			included = entry.Grade != nil && *entry.Grade < failingGrade
		}
		if !included {
			continue
		}

		raw := entry.GradebookUrl
		if raw == "" {
			raw = entry.LegacyUrl
		}
		ref, ok := gradelink.Parse(raw, s.OriginAliases)
		if !ok {
			plan.Skipped = append(plan.Skipped, SkippedStudent{Name: entry.Name, Raw: raw})
			continue
		}

		if s.Mode == ModeSubmission {
			if _, alreadyFound := found[ref.Key()]; alreadyFound {
				continue
			}
		}

		key := ref.Origin + "\x00" + ref.CourseId
		g, ok := groups[key]
		if !ok {
			g = &group{origin: ref.Origin, courseId: ref.CourseId}
			groups[key] = g
			groupOrder = append(groupOrder, key)
		}
		g.members = append(g.members, BatchMember{Entry: entry, Ref: ref})
	}

	for _, key := range groupOrder {
		g := groups[key]
		for start := 0; start < len(g.members); start += s.BatchSize {
			end := min(start+s.BatchSize, len(g.members))
			plan.Batches = append(plan.Batches, Batch{
				Origin:   g.origin,
				CourseId: g.courseId,
				Members:  g.members[start:end],
			})
			plan.Total += end - start
		}
	}

	return plan
}
