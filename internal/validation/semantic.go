package validation

import (
	"fmt"
	"sort"

	"github.com/robfig/cron/v3"

	"github.com/mrjrask/oled-display-waveshare-1in5/internal/expressions"
	"github.com/mrjrask/oled-display-waveshare-1in5/pkg/schema"
)

// checkers bundles the compilers used for semantic checks: cron syntax,
// CEL "when" guards, and Expr "select" expressions.
type checkers struct {
	cron cron.Parser
	cel  *expressions.CELEngine
	expr *expressions.ExprEngine
}

func newCheckers() (*checkers, error) {
	celEngine, err := expressions.NewCELEngine()
	if err != nil {
		return nil, err
	}
	return &checkers{
		cron: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		cel:  celEngine,
		expr: expressions.NewExprEngine(),
	}, nil
}

// validateSemantic performs the checks JSON Schema cannot express:
// step variant exclusivity, playlist reference existence, rule field
// coherence per type, weekday names, window bounds, cron and expression
// compilation. Every issue names the offending document path.
func validateSemantic(doc *schema.Document, c *checkers) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	ids := make([]string, 0, len(doc.Playlists))
	for id := range doc.Playlists {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		pl := doc.Playlists[id]
		base := "playlists." + id
		if pl == nil {
			result.AddError(base, schema.ErrCodeValidation, "playlist definition is null")
			continue
		}
		validateCondition(pl.Conditions, base+".conditions", c, result)
		for i := range pl.Steps {
			validateStep(&pl.Steps[i], fmt.Sprintf("%s.steps[%d]", base, i), doc, c, result)
		}
	}

	for i := range doc.Sequence {
		validateStep(&doc.Sequence[i], fmt.Sprintf("sequence[%d]", i), doc, c, result)
	}

	return result
}

func validateStep(step *schema.Step, path string, doc *schema.Document, c *checkers, result *schema.ValidationResult) {
	switch step.Kind() {
	case schema.StepScreen:
		// Screen IDs are opaque to the engine; nothing to resolve.
	case schema.StepPlaylist:
		if _, ok := doc.Playlists[step.Playlist]; !ok {
			result.AddError(path+".playlist", schema.ErrCodeValidation,
				fmt.Sprintf("references unknown playlist %q", step.Playlist))
		}
		if len(step.Params) > 0 {
			result.AddWarning(path+".params", schema.ErrCodeValidation,
				"params on a playlist reference are ignored")
		}
	case schema.StepRule:
		validateRule(step.Rule, path+".rule", doc, c, result)
	default:
		result.AddError(path, schema.ErrCodeValidation,
			"step must set exactly one of screen, playlist, or rule")
	}

	validateCondition(step.Conditions, path+".conditions", c, result)
}

func validateRule(rule *schema.Rule, path string, doc *schema.Document, c *checkers, result *schema.ValidationResult) {
	switch rule.Type {
	case schema.RuleCycle:
		if len(rule.Items) == 0 {
			result.AddError(path+".items", schema.ErrCodeValidation,
				"cycle rule requires a non-empty items list")
			return
		}
		for i := range rule.Items {
			validateStep(&rule.Items[i], fmt.Sprintf("%s.items[%d]", path, i), doc, c, result)
		}
	case schema.RuleEvery:
		if rule.Frequency < 1 {
			result.AddError(path+".frequency", schema.ErrCodeValidation,
				"every rule requires a positive integer frequency")
		}
		if rule.Phase < 0 {
			result.AddError(path+".phase", schema.ErrCodeValidation,
				"phase must not be negative")
		}
		if rule.Item == nil {
			result.AddError(path+".item", schema.ErrCodeValidation,
				"every rule requires an item")
			return
		}
		if rule.Frequency >= 1 && rule.Phase >= rule.Frequency {
			result.AddWarning(path+".phase", schema.ErrCodeValidation,
				fmt.Sprintf("phase %d exceeds frequency %d; effective phase is %d",
					rule.Phase, rule.Frequency, rule.Phase%rule.Frequency))
		}
		validateStep(rule.Item, path+".item", doc, c, result)
	case schema.RuleVariants:
		if len(rule.Options) == 0 {
			result.AddError(path+".options", schema.ErrCodeValidation,
				"variants rule requires a non-empty options list")
			return
		}
		switch rule.Selection {
		case "", schema.SelectionSequential, schema.SelectionRandom:
			if rule.Select != "" {
				result.AddWarning(path+".select", schema.ErrCodeValidation,
					"select expression is only used with selection \"expr\"")
			}
		case schema.SelectionExpr:
			if rule.Select == "" {
				result.AddError(path+".select", schema.ErrCodeValidation,
					"selection \"expr\" requires a select expression")
			} else if err := c.expr.Check(rule.Select); err != nil {
				result.AddError(path+".select", schema.ErrCodeValidation, err.Error())
			}
		default:
			result.AddError(path+".selection", schema.ErrCodeValidation,
				fmt.Sprintf("unknown selection mode %q", rule.Selection))
		}
		for i := range rule.Options {
			validateStep(&rule.Options[i], fmt.Sprintf("%s.options[%d]", path, i), doc, c, result)
		}
	default:
		result.AddError(path+".type", schema.ErrCodeValidation,
			fmt.Sprintf("unknown rule type %q", rule.Type))
	}
}

func validateCondition(cond *schema.Condition, path string, c *checkers, result *schema.ValidationResult) {
	if cond == nil {
		return
	}

	for i, day := range cond.DaysOfWeek {
		if _, ok := schema.ParseWeekday(day); !ok {
			result.AddError(fmt.Sprintf("%s.days_of_week[%d]", path, i),
				schema.ErrCodeValidation,
				fmt.Sprintf("unknown day-of-week %q", day))
		}
	}

	for i, win := range cond.TimeOfDay {
		winPath := fmt.Sprintf("%s.time_of_day[%d]", path, i)
		start, err := schema.ParseClock(win.Start)
		if err != nil {
			result.AddError(winPath+".start", schema.ErrCodeValidation, err.Error())
			continue
		}
		end, err := schema.ParseClock(win.End)
		if err != nil {
			result.AddError(winPath+".end", schema.ErrCodeValidation, err.Error())
			continue
		}
		if start == end {
			result.AddError(winPath, schema.ErrCodeValidation,
				fmt.Sprintf("window %s-%s is empty", win.Start, win.End))
		}
	}

	if cond.Cron != "" {
		if _, err := c.cron.Parse(cond.Cron); err != nil {
			result.AddError(path+".cron", schema.ErrCodeValidation,
				fmt.Sprintf("invalid cron expression %q: %s", cond.Cron, err.Error()))
		}
	}

	if cond.When != "" {
		if err := c.cel.Check(cond.When); err != nil {
			result.AddError(path+".when", schema.ErrCodeValidation, err.Error())
		}
	}
}
