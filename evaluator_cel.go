package opts

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

type celEvaluator struct {
	evaluatorConfig
}

// NewCELEvaluator returns an evaluator backed by github.com/google/cel-go.
// CEL type-checks rules, so every variable a rule references must be bound:
// a rule naming an option that is not set fails to compile. Use
// has(options.name) to guard optional options. Registered functions are
// reached through call("name") or call("name", [args...]).
func NewCELEvaluator(opts ...EvaluatorOption) Evaluator {
	return &celEvaluator{evaluatorConfig: applyEvaluatorOptions(opts)}
}

func (e *celEvaluator) Engine() string {
	return EngineCEL
}

func (e *celEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(ctx)
}

// Compile only checks that expression is non-empty. Declarations depend on
// the bound options, so the program is built on first use for each set of
// variable names.
func (e *celEvaluator) Compile(expression string) (CompiledRule, error) {
	if err := checkExpression(EngineCEL, expression); err != nil {
		return nil, err
	}
	return &celRule{evaluator: e, expression: expression}, nil
}

func (e *celEvaluator) program(expression string, variables []string) (cel.Program, error) {
	key := strings.Join(variables, ",") + "|" + expression
	return loadProgram(e.cache, EngineCEL, key, func() (cel.Program, error) {
		env, err := e.environment(variables)
		if err != nil {
			return nil, err
		}
		ast, issues := env.Compile(expression)
		if issues != nil && issues.Err() != nil {
			return nil, issues.Err()
		}
		return env.Program(ast)
	})
}

func (e *celEvaluator) environment(variables []string) (*cel.Env, error) {
	options := make([]cel.EnvOption, 0, len(variables)+1)
	for _, name := range variables {
		if name == "now" {
			options = append(options, cel.Variable(name, cel.TimestampType))
			continue
		}
		options = append(options, cel.Variable(name, cel.DynType))
	}
	if e.functions != nil {
		options = append(options, cel.Function("call",
			cel.Overload("call_string",
				[]*cel.Type{cel.StringType},
				cel.DynType,
				cel.UnaryBinding(func(name ref.Val) ref.Val {
					return e.invoke(name, nil)
				}),
			),
			cel.Overload("call_string_list",
				[]*cel.Type{cel.StringType, cel.ListType(cel.DynType)},
				cel.DynType,
				cel.BinaryBinding(func(name, args ref.Val) ref.Val {
					native, err := args.ConvertToNative(anySliceType)
					if err != nil {
						return types.NewErr("call: %s", err.Error())
					}
					return e.invoke(name, native.([]any))
				}),
			),
		))
	}
	return cel.NewEnv(options...)
}

var anySliceType = reflect.TypeFor[[]any]()

func (e *celEvaluator) invoke(name ref.Val, args []any) ref.Val {
	fn, ok := name.Value().(string)
	if !ok {
		return types.NewErr("call: function name must be a string")
	}
	result, err := e.functions.Call(fn, args...)
	if err != nil {
		return types.NewErr("%s", err.Error())
	}
	if result == nil {
		return types.NullValue
	}
	return types.DefaultTypeAdapter.NativeToValue(result)
}

type celRule struct {
	evaluator  *celEvaluator
	expression string
}

func (r *celRule) Expression() string {
	return r.expression
}

func (r *celRule) Evaluate(ctx RuleContext) (any, error) {
	ctx = ctx.withDefaults()
	bindings := ctx.bindings()
	variables := make([]string, 0, len(bindings))
	for name := range bindings {
		variables = append(variables, name)
	}
	sort.Strings(variables)

	program, err := r.evaluator.program(r.expression, variables)
	if err != nil {
		return nil, evaluationError(EngineCEL, r.expression, ctx.scopeLabel(), err)
	}
	out, _, err := program.Eval(bindings)
	if err != nil {
		return nil, evaluationError(EngineCEL, r.expression, ctx.scopeLabel(), err)
	}
	if out == nil {
		return nil, evaluationError(EngineCEL, r.expression, ctx.scopeLabel(), fmt.Errorf("no result"))
	}
	return out.Value(), nil
}
