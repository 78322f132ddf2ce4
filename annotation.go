package opts

import (
	"fmt"
	"sort"
	"sync"
)

// Annotation is declarative option metadata. AnnotationType is the tag the
// converter registry dispatches on.
type Annotation interface {
	AnnotationType() string
}

// AnnotationConverter turns one annotation into exactly one option value.
type AnnotationConverter func(Annotation) (OptionValuePair, error)

// TypedConverter adapts a converter for a concrete annotation type.
func TypedConverter[A Annotation](convert func(A) OptionValuePair) AnnotationConverter {
	return func(annotation Annotation) (OptionValuePair, error) {
		typed, ok := annotation.(A)
		if !ok {
			return OptionValuePair{}, fmt.Errorf("opts: converter expects %T, got %T", *new(A), annotation)
		}
		return convert(typed), nil
	}
}

// ConverterRegistry maps annotation types to converters.
type ConverterRegistry struct {
	mu         sync.RWMutex
	converters map[string]AnnotationConverter
}

// NewConverterRegistry constructs an empty registry.
func NewConverterRegistry() *ConverterRegistry {
	return &ConverterRegistry{
		converters: make(map[string]AnnotationConverter),
	}
}

// Register stores converter for annotationType guarding against duplicates.
func (r *ConverterRegistry) Register(annotationType string, converter AnnotationConverter) error {
	if converter == nil {
		return fmt.Errorf("opts: converter for %q is nil", annotationType)
	}
	if annotationType == "" {
		return fmt.Errorf("opts: annotation type must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.converters == nil {
		r.converters = make(map[string]AnnotationConverter)
	}
	if _, exists := r.converters[annotationType]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateConverter, annotationType)
	}
	r.converters[annotationType] = converter
	return nil
}

// MustRegister is Register for static registration tables; it panics on
// error.
func (r *ConverterRegistry) MustRegister(annotationType string, converter AnnotationConverter) {
	if err := r.Register(annotationType, converter); err != nil {
		panic(err)
	}
}

// Convert dispatches annotation to its converter. An annotation without a
// converter is a programming error reported as a configuration error.
func (r *ConverterRegistry) Convert(annotation Annotation) (OptionValuePair, error) {
	if annotation == nil {
		return OptionValuePair{}, fmt.Errorf("opts: annotation is nil")
	}
	annotationType := annotation.AnnotationType()
	var converter AnnotationConverter
	if r != nil {
		r.mu.RLock()
		converter = r.converters[annotationType]
		r.mu.RUnlock()
	}
	if converter == nil {
		return OptionValuePair{}, &ConfigurationError{
			Element: annotationType,
			Err:     fmt.Errorf("%w: %s", ErrUnregisteredAnnotation, annotationType),
		}
	}
	pair, err := converter(annotation)
	if err != nil {
		return OptionValuePair{}, &ConfigurationError{Element: annotationType, Err: err}
	}
	if err := pair.validate(); err != nil {
		return OptionValuePair{}, &ConfigurationError{Element: annotationType, Option: pair.Option.Name(), Err: err}
	}
	return pair, nil
}

// Types returns registered annotation types sorted alphabetically.
func (r *ConverterRegistry) Types() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.converters))
	for name := range r.converters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
