// Package schedule validates job cron expressions.
package schedule

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron"
)

var parser = cron.NewParser(
	cron.Second |
		cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// ErrEmpty is returned for a blank expression.
var ErrEmpty = errors.New("cron expression is empty")

// Parse accepts six-field expressions with seconds, "?" in the day
// fields, @descriptors, and an optional trailing year field, which is
// checked but otherwise ignored.
func Parse(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, ErrEmpty
	}

	if fields := strings.Fields(expr); len(fields) == 7 {
		if err := checkYear(fields[6]); err != nil {
			return nil, errors.Wrapf(err, "cron expression %q", expr)
		}
		expr = strings.Join(fields[:6], " ")
	}

	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, errors.Wrapf(err, "cron expression %q", expr)
	}
	return sched, nil
}

// Validate reports whether expr is a usable schedule.
func Validate(expr string) error {
	_, err := Parse(expr)
	return err
}

// Next returns the next n activation times after from.
func Next(expr string, from time.Time, n int) ([]time.Time, error) {
	sched, err := Parse(expr)
	if err != nil {
		return nil, err
	}

	times := make([]time.Time, 0, n)
	for t := from; len(times) < n; {
		t = sched.Next(t)
		if t.IsZero() {
			break
		}
		times = append(times, t)
	}
	return times, nil
}

func checkYear(field string) error {
	if field == "*" || field == "?" {
		return nil
	}
	for _, part := range strings.Split(field, ",") {
		bounds := strings.SplitN(strings.SplitN(part, "/", 2)[0], "-", 2)
		for _, b := range bounds {
			year, err := strconv.Atoi(b)
			if err != nil || year < 1970 || year > 2099 {
				return errors.Errorf("invalid year field %q", field)
			}
		}
	}
	return nil
}
