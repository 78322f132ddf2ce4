package opts

import "reflect"

// OptionValueSource provides the containers of each scope as declared
// through one mechanism (fluent API, annotations, settings, ...).
// Implementations return empty containers for scopes they know nothing
// about.
type OptionValueSource interface {
	Name() string
	GlobalOptions() *Container
	EntityOptions(entity reflect.Type) *Container
	PropertyOptions(entity reflect.Type, property string) *Container
}

// ProgrammaticSource reads the declarations accumulated by an
// AppendableConfigurationContext. Containers are materialised on every call
// so reads always reflect the latest declarations.
type ProgrammaticSource struct {
	context *AppendableConfigurationContext
}

// NewProgrammaticSource wraps context.
func NewProgrammaticSource(context *AppendableConfigurationContext) *ProgrammaticSource {
	if context == nil {
		context = NewAppendableConfigurationContext()
	}
	return &ProgrammaticSource{context: context}
}

// Name implements OptionValueSource.
func (s *ProgrammaticSource) Name() string {
	return s.context.Name()
}

// GlobalOptions implements OptionValueSource.
func (s *ProgrammaticSource) GlobalOptions() *Container {
	return s.context.Container(GlobalScope())
}

// EntityOptions implements OptionValueSource.
func (s *ProgrammaticSource) EntityOptions(entity reflect.Type) *Container {
	return s.context.Container(EntityScope(derefType(entity)))
}

// PropertyOptions implements OptionValueSource.
func (s *ProgrammaticSource) PropertyOptions(entity reflect.Type, property string) *Container {
	return s.context.Container(PropertyScope(derefType(entity), property))
}

// containerFor dispatches scope to the matching source accessor.
func containerFor(source OptionValueSource, scope ScopeRef) *Container {
	switch scope.Kind {
	case ScopeGlobal:
		return source.GlobalOptions()
	case ScopeEntity:
		return source.EntityOptions(scope.Entity)
	case ScopeProperty:
		return source.PropertyOptions(scope.Entity, scope.Property)
	default:
		return NewContainer()
	}
}
