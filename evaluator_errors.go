package opts

import (
	"errors"
	"fmt"
)

var (
	// ErrNoEvaluator indicates an engine that cannot be built.
	ErrNoEvaluator = errors.New("opts: evaluator not available")
	// ErrEmptyExpression indicates a blank rule.
	ErrEmptyExpression = errors.New("opts: expression must not be empty")
	// ErrUnexpectedResult indicates a rule whose result has the wrong type.
	ErrUnexpectedResult = errors.New("opts: unexpected rule result")
)

// EvaluationError reports a rule that failed to compile or run, with the
// engine, the expression and the scope it ran against.
type EvaluationError struct {
	Engine string
	Expr   string
	Scope  string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	expr := "<empty>"
	if e.Expr != "" {
		expr = fmt.Sprintf("%q", e.Expr)
	}
	scope := e.Scope
	if scope == "" {
		scope = "unknown"
	}
	return fmt.Sprintf("opts: %s rule %s at %s: %v", e.Engine, expr, scope, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// evaluationError wraps err, or fills the blanks of an EvaluationError it
// already carries.
func evaluationError(engine, expr, scope string, err error) error {
	if err == nil {
		return nil
	}
	var existing *EvaluationError
	if errors.As(err, &existing) {
		if existing.Engine == "" {
			existing.Engine = engine
		}
		if existing.Expr == "" {
			existing.Expr = expr
		}
		if existing.Scope == "" {
			existing.Scope = scope
		}
		return existing
	}
	return &EvaluationError{Engine: engine, Expr: expr, Scope: scope, Err: err}
}

func checkExpression(engine, expr string) error {
	if expr == "" {
		return &EvaluationError{Engine: engine, Err: ErrEmptyExpression}
	}
	return nil
}
