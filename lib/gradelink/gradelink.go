// Package gradelink extracts gradebook references from the per-student
// urls kept on a roster.
package gradelink

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Reference identifies one student's gradebook page on a remote
// gradebook service.
type Reference struct {
	Origin    string
	CourseId  string
	StudentId string
}

// Key returns the canonical form of the reference, used to key the
// found set. Two urls pointing at the same gradebook page always
// produce the same key.
func (r Reference) Key() string {
	return fmt.Sprintf("%s/courses/%s/grades/%s", r.Origin, r.CourseId, r.StudentId)
}

func (r Reference) Url() string {
	return r.Key()
}

var gradesPath = regexp.MustCompile(`/courses/([^/]+)/grades/([^/]+)/?$`)

// Parse extracts a Reference from a raw gradebook url. Hosts found in
// aliases are rewritten to their canonical origin before extraction,
// so rosters carrying stale domains keep working after a school
// migrates instances. Anything that doesn't match the
// .../courses/{courseId}/grades/{studentId} shape is invalid.
func Parse(raw string, aliases map[string]string) (Reference, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Reference{}, false
	}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Reference{}, false
	}

	origin := fmt.Sprintf("%s://%s", u.Scheme, u.Host)
	if canonical, ok := aliases[strings.ToLower(u.Host)]; ok {
		origin = canonical
	}

	groups := gradesPath.FindStringSubmatch(u.Path)
	if groups == nil {
		return Reference{}, false
	}

	return Reference{
		Origin:    origin,
		CourseId:  groups[1],
		StudentId: groups[2],
	}, true
}
