package scheduler

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// CronExpression represents a parsed cron expression.
// Supports standard 5-field format: minute hour day-of-month month day-of-week
// Examples:
//   - "0 * * * *"   - every hour
//   - "30 3 * * *"  - every day at 03:30
//   - "0 9 * * 1"   - every Monday at 09:00
//
// Times are matched in the location of the time passed to Next.
type CronExpression struct {
	raw      string
	minutes  []int // 0-59
	hours    []int // 0-23
	days     []int // 1-31
	months   []int // 1-12
	weekdays []int // 0-6 (0 = Sunday)
}

var _ Schedule = (*CronExpression)(nil)

// Common expressions used by the worker.
const (
	EveryHour         = "0 * * * *"
	EveryDayAt0330    = "30 3 * * *"
	EveryMondayAt0900 = "0 9 * * 1"
)

// ParseCronExpression parses a cron expression string.
// Supports: *, */n, n, n-m, n-m/s, n,m,o
func ParseCronExpression(expr string) (*CronExpression, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("invalid cron expression: expected 5 fields, got %d", len(fields))
	}

	ce := &CronExpression{raw: expr}
	specs := []struct {
		name     string
		dst      *[]int
		min, max int
	}{
		{"minute", &ce.minutes, 0, 59},
		{"hour", &ce.hours, 0, 23},
		{"day", &ce.days, 1, 31},
		{"month", &ce.months, 1, 12},
		{"weekday", &ce.weekdays, 0, 6},
	}
	for i, spec := range specs {
		values, err := parseField(fields[i], spec.min, spec.max)
		if err != nil {
			return nil, fmt.Errorf("invalid %s field: %w", spec.name, err)
		}
		*spec.dst = values
	}
	return ce, nil
}

// MustParseCronExpression parses a cron expression or panics.
// Use only for compile-time constants.
func MustParseCronExpression(expr string) *CronExpression {
	ce, err := ParseCronExpression(expr)
	if err != nil {
		panic(fmt.Sprintf("invalid cron expression %q: %v", expr, err))
	}
	return ce
}

// parseField parses a single cron field, possibly a comma separated list.
func parseField(field string, min, max int) ([]int, error) {
	var out []int
	for _, part := range strings.Split(field, ",") {
		values, err := parseTerm(part, min, max)
		if err != nil {
			return nil, err
		}
		out = append(out, values...)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

func parseTerm(term string, min, max int) ([]int, error) {
	step := 1
	if base, s, ok := strings.Cut(term, "/"); ok {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid step value: %s", s)
		}
		step = n
		term = base
	}

	start, end := min, max
	switch {
	case term == "*":
	case strings.Contains(term, "-"):
		lo, hi, _ := strings.Cut(term, "-")
		var err error
		if start, err = atoiInRange(lo, min, max); err != nil {
			return nil, err
		}
		if end, err = atoiInRange(hi, min, max); err != nil {
			return nil, err
		}
		if start > end {
			return nil, fmt.Errorf("invalid range: %s", term)
		}
	default:
		v, err := atoiInRange(term, min, max)
		if err != nil {
			return nil, err
		}
		start = v
		if step == 1 {
			end = v
		}
	}

	var out []int
	for i := start; i <= end; i += step {
		out = append(out, i)
	}
	return out, nil
}

func atoiInRange(s string, min, max int) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid value: %s", s)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("value out of range [%d-%d]: %d", min, max, v)
	}
	return v, nil
}

// String returns the original cron expression.
func (ce *CronExpression) String() string {
	return ce.raw
}

// Next calculates the next time the cron expression matches after the given time.
func (ce *CronExpression) Next(after time.Time) time.Time {
	t := after.Truncate(time.Minute).Add(time.Minute)

	const maxIterations = 366 * 24 * 60
	for i := 0; i < maxIterations; i++ {
		if ce.matches(t) {
			return t
		}
		t = t.Add(time.Minute)
	}
	return time.Time{}
}

func (ce *CronExpression) matches(t time.Time) bool {
	return slices.Contains(ce.minutes, t.Minute()) &&
		slices.Contains(ce.hours, t.Hour()) &&
		slices.Contains(ce.days, t.Day()) &&
		slices.Contains(ce.months, int(t.Month())) &&
		slices.Contains(ce.weekdays, int(t.Weekday()))
}
