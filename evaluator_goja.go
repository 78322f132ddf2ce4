//go:build js_eval

package opts

import (
	"github.com/dop251/goja"
)

type jsEvaluator struct {
	evaluatorConfig
}

// NewJSEvaluator returns an evaluator running rules as JavaScript
// expressions on github.com/dop251/goja. Each evaluation gets a fresh
// runtime; compiled programs are shared.
func NewJSEvaluator(opts ...EvaluatorOption) Evaluator {
	return &jsEvaluator{evaluatorConfig: applyEvaluatorOptions(opts)}
}

func (e *jsEvaluator) Engine() string {
	return EngineJS
}

func (e *jsEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(ctx)
}

func (e *jsEvaluator) Compile(expression string) (CompiledRule, error) {
	if err := checkExpression(EngineJS, expression); err != nil {
		return nil, err
	}
	program, err := loadProgram(e.cache, EngineJS, expression, func() (*goja.Program, error) {
		return goja.Compile("rule", "(function(){ return ("+expression+"); })()", true)
	})
	if err != nil {
		return nil, evaluationError(EngineJS, expression, "", err)
	}
	return &jsRule{evaluator: e, expression: expression, program: program}, nil
}

func (e *jsEvaluator) runtime(ctx RuleContext) (*goja.Runtime, error) {
	vm := goja.New()
	for name, value := range ctx.bindings() {
		if err := vm.Set(name, value); err != nil {
			return nil, err
		}
	}
	if e.functions == nil {
		return vm, nil
	}
	registry := e.functions
	if err := vm.Set("call", func(name string, args ...any) (any, error) {
		return registry.Call(name, args...)
	}); err != nil {
		return nil, err
	}
	for _, name := range registry.Names() {
		if err := vm.Set(name, func(args ...any) (any, error) {
			return registry.Call(name, args...)
		}); err != nil {
			return nil, err
		}
	}
	return vm, nil
}

type jsRule struct {
	evaluator  *jsEvaluator
	expression string
	program    *goja.Program
}

func (r *jsRule) Expression() string {
	return r.expression
}

func (r *jsRule) Evaluate(ctx RuleContext) (any, error) {
	ctx = ctx.withDefaults()
	vm, err := r.evaluator.runtime(ctx)
	if err != nil {
		return nil, evaluationError(EngineJS, r.expression, ctx.scopeLabel(), err)
	}
	value, err := vm.RunProgram(r.program)
	if err != nil {
		return nil, evaluationError(EngineJS, r.expression, ctx.scopeLabel(), err)
	}
	return value.Export(), nil
}
