package opts

import (
	exprlang "github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

type exprEvaluator struct {
	evaluatorConfig
}

// NewExprEvaluator returns the default evaluator, backed by
// github.com/expr-lang/expr. Undefined variables evaluate to nil, so rules
// may test for options that are not set:
//
//	readPreference != nil && readPreference != "PRIMARY"
func NewExprEvaluator(opts ...EvaluatorOption) Evaluator {
	return &exprEvaluator{evaluatorConfig: applyEvaluatorOptions(opts)}
}

func (e *exprEvaluator) Engine() string {
	return EngineExpr
}

func (e *exprEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(ctx)
}

func (e *exprEvaluator) Compile(expression string) (CompiledRule, error) {
	if err := checkExpression(EngineExpr, expression); err != nil {
		return nil, err
	}
	program, err := loadProgram(e.cache, EngineExpr, expression, func() (*vm.Program, error) {
		return exprlang.Compile(expression, e.compileOptions()...)
	})
	if err != nil {
		return nil, evaluationError(EngineExpr, expression, "", err)
	}
	return &exprRule{expression: expression, program: program}, nil
}

func (e *exprEvaluator) compileOptions() []exprlang.Option {
	options := []exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	}
	if e.functions == nil {
		return options
	}
	registry := e.functions
	options = append(options, exprlang.Function("call", func(args ...any) (any, error) {
		if len(args) == 0 {
			return nil, ErrUnknownFunction
		}
		name, _ := args[0].(string)
		return registry.Call(name, args[1:]...)
	}))
	for _, name := range registry.Names() {
		options = append(options, exprlang.Function(name, func(args ...any) (any, error) {
			return registry.Call(name, args...)
		}))
	}
	return options
}

type exprRule struct {
	expression string
	program    *vm.Program
}

func (r *exprRule) Expression() string {
	return r.expression
}

func (r *exprRule) Evaluate(ctx RuleContext) (any, error) {
	ctx = ctx.withDefaults()
	result, err := exprlang.Run(r.program, ctx.bindings())
	if err != nil {
		return nil, evaluationError(EngineExpr, r.expression, ctx.scopeLabel(), err)
	}
	return result, nil
}
