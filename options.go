package opts

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/goliatone/go-datastore-options/layering"
)

// ServiceOption configures an OptionsService.
type ServiceOption func(*serviceConfig)

type serviceConfig struct {
	sources      []OptionValueSource
	evaluator    Evaluator
	programCache ProgramCache
	functions    *FunctionRegistry
	logger       EvaluatorLogger
}

func applyServiceOptions(opts []ServiceOption) serviceConfig {
	cfg := serviceConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithSources appends sources with lower precedence than the ones already
// configured.
func WithSources(sources ...OptionValueSource) ServiceOption {
	return func(cfg *serviceConfig) {
		for _, source := range sources {
			if source != nil {
				cfg.sources = append(cfg.sources, source)
			}
		}
	}
}

// WithEvaluator configures the evaluator used by MergedContext.Evaluate.
func WithEvaluator(e Evaluator) ServiceOption {
	return func(cfg *serviceConfig) {
		cfg.evaluator = e
	}
}

// OptionsService resolves merged contexts. Precedence, strongest first:
//
//  1. the most specific scope (property, the property on embedded
//     entities, entity, embedded entities nearest first, global);
//  2. within one scope, sources in the order they were given.
//
// Bootstrap puts the programmatic source before every other source, so
// fluent declarations override annotations.
//
// An OptionsService is safe for concurrent use.
type OptionsService struct {
	cfg      serviceConfig
	contexts sync.Map // ScopeRef -> *MergedContext
}

// NewOptionsService builds a service over sources ordered strongest first.
func NewOptionsService(opts ...ServiceOption) *OptionsService {
	cfg := applyServiceOptions(opts)
	return &OptionsService{cfg: cfg}
}

// Bootstrap ends the configuration phase of cfg and builds a service whose
// strongest source is the programmatic one. It fails with the first error
// raised by the configuration chain.
func Bootstrap(cfg *ConfigurationContext, opts ...ServiceOption) (*OptionsService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("opts: configuration context is required")
	}
	if err := cfg.Err(); err != nil {
		return nil, err
	}
	cfg.Appendable().Freeze()
	all := append([]ServiceOption{WithSources(NewProgrammaticSource(cfg.Appendable()))}, opts...)
	return NewOptionsService(all...), nil
}

// Sources returns the configured sources, strongest first.
func (s *OptionsService) Sources() []OptionValueSource {
	out := make([]OptionValueSource, len(s.cfg.sources))
	copy(out, s.cfg.sources)
	return out
}

// GlobalContext returns the merged global options.
func (s *OptionsService) GlobalContext() *MergedContext {
	return s.context(GlobalScope())
}

// EntityContext returns the options effective for entity: entity scope,
// embedded entities, then global.
func (s *OptionsService) EntityContext(entity reflect.Type) *MergedContext {
	return s.context(EntityScope(derefType(entity)))
}

// PropertyContext returns the options effective for a property: the
// property on entity, the same property on embedded entities, then
// everything EntityContext sees.
func (s *OptionsService) PropertyContext(entity reflect.Type, property string) *MergedContext {
	return s.context(PropertyScope(derefType(entity), property))
}

// ContextFor resolves any scope reference.
func (s *OptionsService) ContextFor(scope ScopeRef) *MergedContext {
	return s.context(scope)
}

func (s *OptionsService) context(scope ScopeRef) *MergedContext {
	if cached, ok := s.contexts.Load(scope); ok {
		return cached.(*MergedContext)
	}
	merged := &MergedContext{
		scope: scope,
		chain: layering.NewChain(s.layers(scope)...),
		cfg:   &s.cfg,
	}
	actual, _ := s.contexts.LoadOrStore(scope, merged)
	return actual.(*MergedContext)
}

func (s *OptionsService) layers(scope ScopeRef) []layering.Layer[*Container] {
	type level struct {
		ref         ScopeRef
		specificity layering.Specificity
		depth       int
	}
	var levels []level
	switch scope.Kind {
	case ScopeProperty:
		levels = append(levels, level{ref: scope, specificity: layering.SpecificityProperty})
		for depth, parent := range parentEntities(scope.Entity) {
			levels = append(levels, level{ref: PropertyScope(parent, scope.Property), specificity: layering.SpecificityProperty, depth: depth + 1})
		}
		fallthrough
	case ScopeEntity:
		levels = append(levels, level{ref: EntityScope(scope.Entity), specificity: layering.SpecificityEntity})
		for depth, parent := range parentEntities(scope.Entity) {
			levels = append(levels, level{ref: EntityScope(parent), specificity: layering.SpecificityParent, depth: depth})
		}
		fallthrough
	case ScopeGlobal:
		levels = append(levels, level{ref: GlobalScope(), specificity: layering.SpecificityGlobal})
	}

	var out []layering.Layer[*Container]
	for _, lvl := range levels {
		for rank, source := range s.cfg.sources {
			container := containerFor(source, lvl.ref)
			if container.Len() == 0 {
				continue
			}
			out = append(out, layering.Layer[*Container]{
				Scope:       lvl.ref.Identifier(),
				Source:      source.Name(),
				Specificity: lvl.specificity,
				Depth:       lvl.depth,
				Rank:        rank,
				Value:       container,
			})
		}
	}
	return out
}
