package opts

import (
	"fmt"
	"time"

	"github.com/itchyny/gojq"
)

var jqVariables = []string{"$now", "$args", "$metadata", "$scope"}

type jqEvaluator struct {
	evaluatorConfig
}

// NewJQEvaluator returns an evaluator running jq filters with
// github.com/itchyny/gojq. The input of the filter is the options map; the
// reserved bindings are variables:
//
//	.readPreference == "NEAREST" and $scope.kind == "property"
//
// The first value the filter emits is the result. Registered functions are
// jq functions taking their arguments as filter arguments.
func NewJQEvaluator(opts ...EvaluatorOption) Evaluator {
	return &jqEvaluator{evaluatorConfig: applyEvaluatorOptions(opts)}
}

func (e *jqEvaluator) Engine() string {
	return EngineJQ
}

func (e *jqEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(ctx)
}

func (e *jqEvaluator) Compile(expression string) (CompiledRule, error) {
	if err := checkExpression(EngineJQ, expression); err != nil {
		return nil, err
	}
	code, err := loadProgram(e.cache, EngineJQ, expression, func() (*gojq.Code, error) {
		query, err := gojq.Parse(expression)
		if err != nil {
			return nil, err
		}
		return gojq.Compile(query, e.compilerOptions()...)
	})
	if err != nil {
		return nil, evaluationError(EngineJQ, expression, "", err)
	}
	return &jqRule{expression: expression, code: code}, nil
}

func (e *jqEvaluator) compilerOptions() []gojq.CompilerOption {
	options := []gojq.CompilerOption{gojq.WithVariables(jqVariables)}
	if e.functions == nil {
		return options
	}
	registry := e.functions
	for _, name := range registry.Names() {
		options = append(options, gojq.WithFunction(name, 0, 8, func(_ any, args []any) any {
			result, err := registry.Call(name, args...)
			if err != nil {
				return err
			}
			return jqValue(result)
		}))
	}
	return options
}

type jqRule struct {
	expression string
	code       *gojq.Code
}

func (r *jqRule) Expression() string {
	return r.expression
}

func (r *jqRule) Evaluate(ctx RuleContext) (any, error) {
	ctx = ctx.withDefaults()
	iter := r.code.Run(
		jqValue(ctx.Options),
		int(ctx.Now.Unix()),
		jqValue(ctx.Args),
		jqValue(ctx.Metadata),
		jqValue(ctx.scopeBinding()),
	)
	value, ok := iter.Next()
	if !ok {
		return nil, nil
	}
	if err, isErr := value.(error); isErr {
		return nil, evaluationError(EngineJQ, r.expression, ctx.scopeLabel(), err)
	}
	return value, nil
}

// jqValue converts rule values into the types gojq accepts.
func jqValue(value any) any {
	switch typed := value.(type) {
	case nil, bool, string, int, float64:
		return value
	case int64:
		return int(typed)
	case float32:
		return float64(typed)
	case time.Time:
		return typed.Format(time.RFC3339Nano)
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = jqValue(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = jqValue(item)
		}
		return out
	}
	switch normalized := ruleValue(value).(type) {
	case int64:
		return int(normalized)
	case nil, string, bool, float64, map[string]any, []any:
		return jqValue(normalized)
	default:
		return fmt.Sprint(value)
	}
}
