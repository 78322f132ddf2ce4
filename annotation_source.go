package opts

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// AnnotatedElement is one annotation discovered on an entity: on the type
// itself (ElementType), on a field, or on an accessor. Member names the field
// or property; it is ignored for ElementType.
type AnnotatedElement struct {
	Kind       ElementKind
	Member     string
	Annotation Annotation
}

// MetadataProvider supplies discovered annotations. It does not need to
// walk embedded types; the annotation source does that.
type MetadataProvider interface {
	GlobalAnnotations() []Annotation
	Annotations(entity reflect.Type) ([]AnnotatedElement, error)
}

// AnnotationSource holds options converted from annotations. All scanning,
// member validation and conversion happens in NewAnnotationSource, so
// configuration errors surface before any lookup.
type AnnotationSource struct {
	name       string
	global     *Container
	entities   map[reflect.Type]*Container
	properties map[ScopeRef]*Container
}

// NewAnnotationSource scans the global annotations of provider and the
// annotations of every entity (and of the types they embed).
func NewAnnotationSource(registry *ConverterRegistry, provider MetadataProvider, entities ...any) (*AnnotationSource, error) {
	source := &AnnotationSource{
		name:       "annotation",
		global:     NewContainer(),
		entities:   map[reflect.Type]*Container{},
		properties: map[ScopeRef]*Container{},
	}
	if provider == nil {
		return source, nil
	}

	for _, annotation := range provider.GlobalAnnotations() {
		pair, err := registry.Convert(annotation)
		if err != nil {
			return nil, configurationError(GlobalScope(), annotationName(annotation), "", err)
		}
		source.global.put(pair)
	}

	for _, entity := range entities {
		t, err := EntityType(entity)
		if err != nil {
			return nil, configurationError(ScopeRef{}, fmt.Sprintf("%v", entity), "", err)
		}
		for _, candidate := range append([]reflect.Type{t}, parentEntities(t)...) {
			if _, done := source.entities[candidate]; done {
				continue
			}
			if err := source.scan(registry, provider, candidate); err != nil {
				return nil, err
			}
		}
	}
	return source, nil
}

func (s *AnnotationSource) scan(registry *ConverterRegistry, provider MetadataProvider, entity reflect.Type) error {
	scope := EntityScope(entity)
	elements, err := provider.Annotations(entity)
	if err != nil {
		return configurationError(scope, "", "", err)
	}

	container := NewContainer()
	fieldLevel := map[string][]AnnotatedElement{}
	accessorLevel := map[string][]AnnotatedElement{}
	var order []string

	for _, element := range elements {
		switch element.Kind {
		case ElementType:
			pair, err := registry.Convert(element.Annotation)
			if err != nil {
				return configurationError(scope, annotationName(element.Annotation), "", err)
			}
			container.put(pair)
		case ElementField, ElementAccessor:
			if err := ValidateProperty(entity, element.Member, element.Kind); err != nil {
				return configurationError(scope, element.Kind.String()+" "+element.Member, annotationName(element.Annotation), err)
			}
			name := NormalizePropertyName(element.Member)
			if _, seen := fieldLevel[name]; !seen {
				if _, seen := accessorLevel[name]; !seen {
					order = append(order, name)
				}
			}
			if element.Kind == ElementField {
				fieldLevel[name] = append(fieldLevel[name], element)
			} else {
				accessorLevel[name] = append(accessorLevel[name], element)
			}
		default:
			return configurationError(scope, element.Member, annotationName(element.Annotation), fmt.Errorf("opts: unknown element kind %d", element.Kind))
		}
	}
	s.entities[entity] = container

	for _, name := range order {
		// Fields are authoritative; accessor metadata only counts for
		// properties without field metadata.
		elements := fieldLevel[name]
		if len(elements) == 0 {
			elements = accessorLevel[name]
		}
		property := PropertyScope(entity, name)
		propertyContainer := NewContainer()
		for _, element := range elements {
			pair, err := registry.Convert(element.Annotation)
			if err != nil {
				return configurationError(property, element.Kind.String()+" "+element.Member, "", err)
			}
			propertyContainer.put(pair)
		}
		s.properties[property] = propertyContainer
	}
	return nil
}

func annotationName(annotation Annotation) string {
	if annotation == nil {
		return "<nil>"
	}
	return annotation.AnnotationType()
}

// Name implements OptionValueSource.
func (s *AnnotationSource) Name() string {
	return s.name
}

// GlobalOptions implements OptionValueSource.
func (s *AnnotationSource) GlobalOptions() *Container {
	return s.global
}

// EntityOptions implements OptionValueSource.
func (s *AnnotationSource) EntityOptions(entity reflect.Type) *Container {
	if container, ok := s.entities[derefType(entity)]; ok {
		return container
	}
	return NewContainer()
}

// PropertyOptions implements OptionValueSource.
func (s *AnnotationSource) PropertyOptions(entity reflect.Type, property string) *Container {
	if container, ok := s.properties[PropertyScope(derefType(entity), property)]; ok {
		return container
	}
	return NewContainer()
}

// AnnotatedEntity lets an entity declare type and accessor level metadata
// that struct tags cannot carry. It is called on a zero *T.
type AnnotatedEntity interface {
	OptionAnnotations() []AnnotatedElement
}

// TagParser builds an annotation from the value of one tag entry.
type TagParser func(value string) (Annotation, error)

// TagScannerOption configures a TagScanner.
type TagScannerOption func(*TagScanner)

// WithTagName changes the struct tag key. Defaults to "ogm".
func WithTagName(name string) TagScannerOption {
	return func(s *TagScanner) {
		if name != "" {
			s.tag = name
		}
	}
}

// WithTagParser registers parser for entries named name.
func WithTagParser(name string, parser TagParser) TagScannerOption {
	return func(s *TagScanner) {
		if parser != nil {
			s.parsers[name] = parser
		}
	}
}

// WithGlobalAnnotations sets the annotations applied to the global scope.
func WithGlobalAnnotations(annotations ...Annotation) TagScannerOption {
	return func(s *TagScanner) {
		s.global = append(s.global, annotations...)
	}
}

// TagScanner is a MetadataProvider reading struct tags such as
//
//	Orders []Order `ogm:"associationStorage=ASSOCIATION_DOCUMENT;readPreference=NEAREST"`
//
// plus the metadata returned by AnnotatedEntity implementations.
type TagScanner struct {
	tag     string
	parsers map[string]TagParser
	global  []Annotation
}

// NewTagScanner constructs a scanner.
func NewTagScanner(opts ...TagScannerOption) *TagScanner {
	s := &TagScanner{
		tag:     "ogm",
		parsers: map[string]TagParser{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// GlobalAnnotations implements MetadataProvider.
func (s *TagScanner) GlobalAnnotations() []Annotation {
	out := make([]Annotation, len(s.global))
	copy(out, s.global)
	return out
}

// Annotations implements MetadataProvider. Only fields declared directly on
// entity are read; embedded types are scanned as entities of their own.
func (s *TagScanner) Annotations(entity reflect.Type) ([]AnnotatedElement, error) {
	entity = derefType(entity)
	if entity == nil || entity.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %v", ErrUnknownEntity, entity)
	}

	var out []AnnotatedElement
	if annotated, ok := reflect.New(entity).Interface().(AnnotatedEntity); ok {
		out = append(out, annotated.OptionAnnotations()...)
	}

	var errs []error
	for i := 0; i < entity.NumField(); i++ {
		field := entity.Field(i)
		if field.Anonymous {
			continue
		}
		raw, ok := field.Tag.Lookup(s.tag)
		if !ok {
			continue
		}
		for _, entry := range strings.Split(raw, ";") {
			entry = strings.TrimSpace(entry)
			if entry == "" {
				continue
			}
			name, value, _ := strings.Cut(entry, "=")
			name = strings.TrimSpace(name)
			parser, ok := s.parsers[name]
			if !ok {
				errs = append(errs, fmt.Errorf("%w: tag %q on %s.%s", ErrUnregisteredAnnotation, name, entity.Name(), field.Name))
				continue
			}
			annotation, err := parser(strings.TrimSpace(value))
			if err != nil {
				errs = append(errs, fmt.Errorf("opts: tag %q on %s.%s: %w", name, entity.Name(), field.Name, err))
				continue
			}
			out = append(out, AnnotatedElement{Kind: ElementField, Member: field.Name, Annotation: annotation})
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// CompositeProvider concatenates the metadata of several providers.
type CompositeProvider []MetadataProvider

// GlobalAnnotations implements MetadataProvider.
func (p CompositeProvider) GlobalAnnotations() []Annotation {
	var out []Annotation
	for _, provider := range p {
		if provider != nil {
			out = append(out, provider.GlobalAnnotations()...)
		}
	}
	return out
}

// Annotations implements MetadataProvider.
func (p CompositeProvider) Annotations(entity reflect.Type) ([]AnnotatedElement, error) {
	var out []AnnotatedElement
	for _, provider := range p {
		if provider == nil {
			continue
		}
		elements, err := provider.Annotations(entity)
		if err != nil {
			return nil, err
		}
		out = append(out, elements...)
	}
	return out, nil
}
