package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mrjrask/oled-display-waveshare-1in5/internal/expressions"
	"github.com/mrjrask/oled-display-waveshare-1in5/pkg/schema"
)

// ConditionEvaluator decides whether a step's guard holds at a given
// instant. It is pure: callers supply the instant and pass counter, so
// resolution stays replayable for previews and tests.
type ConditionEvaluator struct {
	parser cron.Parser
	cel    *expressions.CELEngine
}

// NewConditionEvaluator creates a ConditionEvaluator.
func NewConditionEvaluator() (*ConditionEvaluator, error) {
	celEngine, err := expressions.NewCELEngine()
	if err != nil {
		return nil, err
	}
	return &ConditionEvaluator{
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		cel:    celEngine,
	}, nil
}

// Evaluate returns true when every populated constraint holds at now.
// An absent condition always holds.
func (e *ConditionEvaluator) Evaluate(ctx context.Context, cond *schema.Condition, now time.Time, pass int) (bool, error) {
	if cond.IsZero() {
		return true, nil
	}

	if len(cond.DaysOfWeek) > 0 {
		matched := false
		for _, name := range cond.DaysOfWeek {
			day, ok := schema.ParseWeekday(name)
			if !ok {
				return false, schema.NewErrorf(schema.ErrCodeResolution,
					"unknown day-of-week %q", name)
			}
			if now.Weekday() == day {
				matched = true
				break
			}
		}
		if !matched {
			return false, nil
		}
	}

	if len(cond.TimeOfDay) > 0 {
		minutes := now.Hour()*60 + now.Minute()
		matched := false
		for _, win := range cond.TimeOfDay {
			ok, err := win.Contains(minutes)
			if err != nil {
				return false, schema.NewError(schema.ErrCodeResolution, err.Error())
			}
			if ok {
				matched = true
				break
			}
		}
		if !matched {
			return false, nil
		}
	}

	if cond.Cron != "" {
		ok, err := e.cronMatches(cond.Cron, now)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}

	if cond.When != "" {
		ok, err := e.evalWhen(ctx, cond.When, now, pass)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}

	return true, nil
}

// cronMatches reports whether now falls inside a minute the expression
// activates: the schedule's next firing after the previous minute is the
// current one.
func (e *ConditionEvaluator) cronMatches(expr string, now time.Time) (bool, error) {
	sched, err := e.parser.Parse(expr)
	if err != nil {
		return false, schema.NewErrorf(schema.ErrCodeResolution,
			"invalid cron expression %q: %s", expr, err.Error()).WithCause(err)
	}
	minute := now.Truncate(time.Minute)
	return sched.Next(minute.Add(-time.Second)).Equal(minute), nil
}

// evalWhen evaluates a CEL guard over the replayable scheduling context.
func (e *ConditionEvaluator) evalWhen(ctx context.Context, expr string, now time.Time, pass int) (bool, error) {
	out, err := e.cel.Evaluate(ctx, expr, map[string]any{
		"pass":    pass,
		"weekday": strings.ToLower(now.Weekday().String()),
		"hour":    now.Hour(),
		"minute":  now.Minute(),
		"date":    now.Format("2006-01-02"),
	})
	if err != nil {
		return false, schema.NewErrorf(schema.ErrCodeResolution,
			"when guard %q failed: %s", expr, err.Error()).WithCause(err)
	}
	ok, isBool := out.(bool)
	if !isBool {
		return false, schema.NewErrorf(schema.ErrCodeResolution,
			"when guard %q must evaluate to a bool, got %s", expr, fmt.Sprintf("%T", out))
	}
	return ok, nil
}
