package expressions

import "context"

// Engine evaluates expressions embedded in playlist configuration.
// Three implementations: CEL (condition "when" guards), Expr (variants
// "select" logic), GoJQ (document queries from the CLI).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}
