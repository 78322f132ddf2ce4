package opts

import (
	"fmt"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Evaluate runs expr against the snapshot of the merged options, e.g.
//
//	ctx.Evaluate(`associationStorage == "ASSOCIATION_DOCUMENT"`)
func (m *MergedContext) Evaluate(expr string) (Response[any], error) {
	return m.EvaluateWith(RuleContext{}, expr)
}

// EvaluateWith executes expr using ctx, falling back to the merged snapshot
// when ctx.Options is nil and to the context scope when ctx.Scope is unset.
func (m *MergedContext) EvaluateWith(ctx RuleContext, expr string) (Response[any], error) {
	evaluator, err := m.resolveEvaluator()
	if err != nil {
		return Response[any]{}, err
	}
	ctx = m.ruleContext(ctx)
	if err := checkExpression(evaluator.Engine(), expr); err != nil {
		return Response[any]{}, evaluationError(evaluator.Engine(), expr, ctx.scopeLabel(), err)
	}

	start := time.Now()
	value, evalErr := evaluator.Evaluate(ctx, expr)
	evalErr = evaluationError(evaluator.Engine(), expr, ctx.scopeLabel(), evalErr)
	m.evaluatorLogger().LogEvaluation(EvaluatorLogEvent{
		Engine:   evaluator.Engine(),
		Expr:     expr,
		Scope:    ctx.scopeLabel(),
		Duration: time.Since(start),
		Result:   value,
		Err:      evalErr,
	})
	if evalErr != nil {
		return Response[any]{}, evalErr
	}
	return Response[any]{Value: value}, nil
}

// EvaluateBool runs expr and requires a boolean result.
func (m *MergedContext) EvaluateBool(expr string) (bool, error) {
	response, err := m.Evaluate(expr)
	if err != nil {
		return false, err
	}
	result, ok := response.Value.(bool)
	if !ok {
		engine := EngineExpr
		if evaluator, err := m.resolveEvaluator(); err == nil {
			engine = evaluator.Engine()
		}
		return false, evaluationError(engine, expr, m.ruleContext(RuleContext{}).scopeLabel(),
			fmt.Errorf("%w: expected bool, got %T", ErrUnexpectedResult, response.Value))
	}
	return result, nil
}

// Compile parses expr with the context's evaluator. The rule can then run
// against this or any other context through RuleContext.
func (m *MergedContext) Compile(expr string) (CompiledRule, error) {
	evaluator, err := m.resolveEvaluator()
	if err != nil {
		return nil, err
	}
	return evaluator.Compile(expr)
}

// RuleContext returns the rule context Evaluate would run with.
func (m *MergedContext) RuleContext() RuleContext {
	return m.ruleContext(RuleContext{})
}

func (m *MergedContext) ruleContext(ctx RuleContext) RuleContext {
	if ctx.Options == nil && m != nil {
		ctx.Options = ruleSnapshot(m.Snapshot())
	}
	if ctx.Scope.isZero() && m != nil {
		ctx.Scope = m.Scope()
	}
	return ctx.withDefaults()
}

func (m *MergedContext) resolveEvaluator() (Evaluator, error) {
	if m == nil || m.cfg == nil {
		return NewExprEvaluator(), nil
	}
	if m.cfg.evaluator != nil {
		return m.cfg.evaluator, nil
	}
	return NewExprEvaluator(
		EvaluatorWithCache(m.cfg.programCache),
		EvaluatorWithFunctions(m.cfg.functions),
	), nil
}

func (m *MergedContext) evaluatorLogger() EvaluatorLogger {
	if m != nil && m.cfg != nil && m.cfg.logger != nil {
		return m.cfg.logger
	}
	return discardLogger{}
}

// ruleSnapshot converts option values to the plain kinds rule engines
// compare with literals: named scalars (enums such as
// AssociationStorageType) become their underlying kind, structs and typed
// maps become map[string]any.
func ruleSnapshot(snapshot map[string]any) map[string]any {
	out := make(map[string]any, len(snapshot))
	for key, value := range snapshot {
		out[key] = ruleValue(value)
	}
	return out
}

var timeType = reflect.TypeFor[time.Time]()

func ruleValue(value any) any {
	switch typed := value.(type) {
	case nil, string, bool, int64, float64, time.Time:
		return value
	case int:
		return int64(typed)
	case map[string]any:
		return ruleSnapshot(typed)
	case []any:
		return ruleList(typed)
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return value
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = ruleValue(iter.Value().Interface())
		}
		return out
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = ruleValue(rv.Index(i).Interface())
		}
		return out
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return ruleValue(rv.Elem().Interface())
	case reflect.Struct:
		if rv.Type() == timeType {
			return value
		}
		var fields map[string]any
		if err := mapstructure.Decode(value, &fields); err != nil {
			return value
		}
		return ruleSnapshot(fields)
	default:
		return value
	}
}

func ruleList(values []any) []any {
	out := make([]any, len(values))
	for i, value := range values {
		out[i] = ruleValue(value)
	}
	return out
}
