package watcher

import (
	"fmt"
	"strconv"
	"strings"
)

// DaysOutFilter is a parsed filter expression like ">=5", applied to
// a student's days-since-last-activity count.
type DaysOutFilter struct {
	Op        string
	Threshold int
}

var filterOps = []string{">=", "<=", ">", "<", "="}

func ParseDaysOutFilter(expr string) (DaysOutFilter, error) {
	trimmed := strings.TrimSpace(expr)
	for _, op := range filterOps {
		if !strings.HasPrefix(trimmed, op) {
			continue
		}
		threshold, err := strconv.Atoi(strings.TrimSpace(trimmed[len(op):]))
		if err != nil {
			return DaysOutFilter{}, fmt.Errorf("invalid days-out threshold in %q: %w", expr, err)
		}
		return DaysOutFilter{Op: op, Threshold: threshold}, nil
	}
	return DaysOutFilter{}, fmt.Errorf("invalid days-out filter: %q", expr)
}

func (f DaysOutFilter) Matches(daysOut int) bool {
	switch f.Op {
	case ">":
		return daysOut > f.Threshold
	case "<":
		return daysOut < f.Threshold
	case ">=":
		return daysOut >= f.Threshold
	case "<=":
		return daysOut <= f.Threshold
	case "=":
		return daysOut == f.Threshold
	}
	return false
}
