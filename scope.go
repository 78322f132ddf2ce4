package opts

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ScopeKind identifies the granularity an option applies to.
type ScopeKind int

const (
	// ScopeUnknown guards against zero-value references.
	ScopeUnknown ScopeKind = iota
	// ScopeGlobal applies to every entity.
	ScopeGlobal
	// ScopeEntity applies to one entity type.
	ScopeEntity
	// ScopeProperty applies to one property of one entity type.
	ScopeProperty
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeGlobal:
		return "global"
	case ScopeEntity:
		return "entity"
	case ScopeProperty:
		return "property"
	default:
		return "unknown"
	}
}

// ElementKind tells which member backs a property, or that metadata is
// attached to the entity type itself.
type ElementKind int

const (
	// ElementField is a declared struct field.
	ElementField ElementKind = iota
	// ElementAccessor is a getter-style method (Name() or GetName()).
	ElementAccessor
	// ElementType is the entity type itself. Only metadata uses it.
	ElementType
)

func (k ElementKind) String() string {
	switch k {
	case ElementField:
		return "field"
	case ElementAccessor:
		return "accessor"
	case ElementType:
		return "type"
	default:
		return "unknown"
	}
}

// ParseElementKind converts a string representation into an ElementKind.
func ParseElementKind(value string) (ElementKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "field":
		return ElementField, nil
	case "accessor", "method", "getter":
		return ElementAccessor, nil
	case "type":
		return ElementType, nil
	default:
		return ElementField, fmt.Errorf("opts: unknown element kind %q", value)
	}
}

// ScopeRef addresses one scope: global, an entity type, or a property of an
// entity type. Property names are normalised so "Name" and "name" address the
// same property.
type ScopeRef struct {
	Kind     ScopeKind
	Entity   reflect.Type
	Property string
}

// GlobalScope returns the reference of the global scope.
func GlobalScope() ScopeRef {
	return ScopeRef{Kind: ScopeGlobal}
}

// EntityScope returns the reference of an entity scope.
func EntityScope(entity reflect.Type) ScopeRef {
	return ScopeRef{Kind: ScopeEntity, Entity: entity}
}

// PropertyScope returns the reference of a property scope.
func PropertyScope(entity reflect.Type, property string) ScopeRef {
	return ScopeRef{Kind: ScopeProperty, Entity: entity, Property: NormalizePropertyName(property)}
}

// Identifier returns a stable slug suitable for logs and storage keys.
func (s ScopeRef) Identifier() string {
	switch s.Kind {
	case ScopeGlobal:
		return "global"
	case ScopeEntity:
		return fmt.Sprintf("entity/%s", entityName(s.Entity))
	case ScopeProperty:
		return fmt.Sprintf("property/%s/%s", entityName(s.Entity), s.Property)
	default:
		return "unknown"
	}
}

func (s ScopeRef) String() string {
	return s.Identifier()
}

func (s ScopeRef) isZero() bool {
	return s.Kind == ScopeUnknown
}

// entityScope returns the entity scope enclosing a property scope.
func (s ScopeRef) entityScope() ScopeRef {
	return EntityScope(s.Entity)
}

// NormalizePropertyName lowers the leading rune of name.
func NormalizePropertyName(name string) string {
	name = strings.TrimSpace(name)
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToLower(r)) + name[size:]
}

func exportedName(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}

// TypeOf returns the entity type for T, dereferencing pointers.
func TypeOf[T any]() reflect.Type {
	return derefType(reflect.TypeFor[T]())
}

// EntityType resolves entity into its struct type. It accepts a
// reflect.Type, a struct value, or a pointer to a struct (nil pointers
// included).
func EntityType(entity any) (reflect.Type, error) {
	var t reflect.Type
	switch typed := entity.(type) {
	case nil:
		return nil, fmt.Errorf("%w: <nil>", ErrUnknownEntity)
	case reflect.Type:
		t = typed
	default:
		t = reflect.TypeOf(entity)
	}
	t = derefType(t)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %v", ErrUnknownEntity, t)
	}
	return t, nil
}

func derefType(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

func entityName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

// ValidateProperty checks that entity declares the property for kind: a
// struct field named name (or its exported form) for ElementField, or an
// exported getter Name()/GetName() with no inputs for ElementAccessor.
func ValidateProperty(entity reflect.Type, name string, kind ElementKind) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: empty property name", ErrUnknownProperty)
	}
	entity = derefType(entity)
	if entity == nil || entity.Kind() != reflect.Struct {
		return fmt.Errorf("%w: %v", ErrUnknownEntity, entity)
	}
	switch kind {
	case ElementField:
		if _, ok := lookupField(entity, name); ok {
			return nil
		}
		return fmt.Errorf("%w: %s has no field %q", ErrUnknownProperty, entity, name)
	case ElementAccessor:
		if _, ok := lookupAccessor(entity, name); ok {
			return nil
		}
		return fmt.Errorf("%w: %s has no accessor for %q", ErrUnknownProperty, entity, name)
	default:
		return fmt.Errorf("%w: element kind %s cannot declare a property", ErrUnknownProperty, kind)
	}
}

func lookupField(entity reflect.Type, name string) (reflect.StructField, bool) {
	for _, candidate := range []string{name, exportedName(name), NormalizePropertyName(name)} {
		if field, ok := entity.FieldByName(candidate); ok {
			return field, true
		}
	}
	return reflect.StructField{}, false
}

func lookupAccessor(entity reflect.Type, name string) (reflect.Method, bool) {
	exported := exportedName(name)
	candidates := []string{exported, "Get" + exported}
	if hasGetterPrefix(name) {
		// getX names the getter, not the property: only GetGetX declares it.
		candidates = candidates[1:]
	}
	for _, t := range []reflect.Type{entity, reflect.PointerTo(entity)} {
		for _, candidate := range candidates {
			method, ok := t.MethodByName(candidate)
			if !ok {
				continue
			}
			if isGetter(method.Type) {
				return method, true
			}
		}
	}
	return reflect.Method{}, false
}

var errorType = reflect.TypeFor[error]()

// hasGetterPrefix reports whether name reads like a getter, "getX" or "GetX".
func hasGetterPrefix(name string) bool {
	if len(name) <= 3 || !strings.EqualFold(name[:3], "get") {
		return false
	}
	r, _ := utf8.DecodeRuneInString(name[3:])
	return unicode.IsUpper(r)
}

// isGetter expects a method expression type: receiver is the first input.
func isGetter(fn reflect.Type) bool {
	if fn.NumIn() != 1 {
		return false
	}
	switch fn.NumOut() {
	case 1:
		return true
	case 2:
		return fn.Out(1) == errorType
	default:
		return false
	}
}

// parentEntities lists embedded struct types of entity, nearest first. They
// act as super-types: options declared on them apply to entity with lower
// precedence.
func parentEntities(entity reflect.Type) []reflect.Type {
	entity = derefType(entity)
	if entity == nil || entity.Kind() != reflect.Struct {
		return nil
	}
	var out []reflect.Type
	seen := map[reflect.Type]struct{}{entity: {}}
	queue := []reflect.Type{entity}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for i := 0; i < current.NumField(); i++ {
			field := current.Field(i)
			if !field.Anonymous {
				continue
			}
			parent := derefType(field.Type)
			if parent == nil || parent.Kind() != reflect.Struct {
				continue
			}
			if _, ok := seen[parent]; ok {
				continue
			}
			seen[parent] = struct{}{}
			out = append(out, parent)
			queue = append(queue, parent)
		}
	}
	return out
}
