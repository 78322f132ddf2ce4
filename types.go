package opts

import (
	"time"
)

// Engine names accepted by NewEvaluator.
const (
	EngineExpr = "expr"
	EngineCEL  = "cel"
	EngineJS   = "js"
	EngineJQ   = "jq"
)

// Response stores a typed result produced by an evaluator.
type Response[T any] struct {
	Value T
}

// RuleContext is what a rule sees. Every entry of Options is bound as a
// variable of its own and the whole map as "options"; "now", "args",
// "metadata" and "scope" are reserved and shadow options of the same name.
type RuleContext struct {
	Options  map[string]any
	Scope    ScopeRef
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
}

func (ctx RuleContext) withDefaults() RuleContext {
	if ctx.Now == nil {
		now := time.Now()
		ctx.Now = &now
	}
	if ctx.Options == nil {
		ctx.Options = map[string]any{}
	}
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) scopeLabel() string {
	if ctx.Scope.isZero() {
		return "unknown"
	}
	return ctx.Scope.Identifier()
}

func (ctx RuleContext) scopeBinding() map[string]any {
	binding := map[string]any{
		"kind":       ctx.Scope.Kind.String(),
		"identifier": ctx.scopeLabel(),
		"entity":     "",
		"property":   ctx.Scope.Property,
	}
	if ctx.Scope.Entity != nil {
		binding["entity"] = ctx.Scope.Entity.String()
	}
	return binding
}

// bindings flattens ctx into the variables handed to an engine. Call it on
// a context that went through withDefaults.
func (ctx RuleContext) bindings() map[string]any {
	out := make(map[string]any, len(ctx.Options)+5)
	for name, value := range ctx.Options {
		out[name] = value
	}
	out["options"] = ctx.Options
	out["now"] = *ctx.Now
	out["args"] = ctx.Args
	out["metadata"] = ctx.Metadata
	out["scope"] = ctx.scopeBinding()
	return out
}

// Evaluator executes rules against a rule context.
type Evaluator interface {
	// Engine returns the engine name, one of the Engine constants for the
	// built-in evaluators.
	Engine() string
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string) (CompiledRule, error)
}

// CompiledRule is a parsed rule that can run against many contexts.
type CompiledRule interface {
	Expression() string
	Evaluate(ctx RuleContext) (any, error)
}
