package activity

import (
	"fmt"
	"strings"
	"time"
)

// ScopeContext captures the scope an option declaration applies to.
type ScopeContext struct {
	Kind       string
	Identifier string
	Entity     string
	Property   string
	Element    string
}

// OptionEventInput describes the common fields for option lifecycle events.
type OptionEventInput struct {
	ActorID    string
	TenantID   string
	Channel    string
	Metadata   map[string]any
	Option     string
	Key        any
	OldValue   any
	NewValue   any
	Source     string
	Scope      ScopeContext
	OccurredAt time.Time
}

// BuildOptionDeclaredEvent constructs an event for a first declaration of an
// option (or keyed entry) in a scope.
func BuildOptionDeclaredEvent(input OptionEventInput) Event {
	return buildOptionEvent(VerbDeclared, "option", input)
}

// BuildOptionOverriddenEvent constructs an event for a declaration replacing
// an earlier value in the same scope and source.
func BuildOptionOverriddenEvent(input OptionEventInput) Event {
	return buildOptionEvent(VerbOverridden, "option", input)
}

// BuildConfigurationFrozenEvent constructs an event marking the end of the
// configuration phase of a source.
func BuildConfigurationFrozenEvent(input OptionEventInput) Event {
	return buildOptionEvent(VerbFrozen, "options.configuration", input)
}

func buildOptionEvent(verb, objectType string, input OptionEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if input.Option != "" {
		metadata = ensureMetadata(metadata)
		metadata["option"] = input.Option
	}
	if input.Key != nil {
		metadata = ensureMetadata(metadata)
		metadata["key"] = fmt.Sprint(input.Key)
	}
	if input.Source != "" {
		metadata = ensureMetadata(metadata)
		metadata["source"] = input.Source
	}
	if input.Scope.Identifier != "" {
		metadata = ensureMetadata(metadata)
		metadata["scope"] = input.Scope.Identifier
		metadata["scope_kind"] = input.Scope.Kind
		if input.Scope.Entity != "" {
			metadata["entity"] = input.Scope.Entity
		}
		if input.Scope.Property != "" {
			metadata["property"] = input.Scope.Property
		}
		if input.Scope.Element != "" {
			metadata["element"] = input.Scope.Element
		}
	}
	if input.OldValue != nil {
		metadata = ensureMetadata(metadata)
		metadata["old_value"] = input.OldValue
	}
	if input.NewValue != nil {
		metadata = ensureMetadata(metadata)
		metadata["new_value"] = input.NewValue
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: objectType,
		ObjectID:   optionObjectID(objectType, input),
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

// optionObjectID is "<scope>#<option>[<key>]", falling back to the source
// name and finally the object type.
func optionObjectID(objectType string, input OptionEventInput) string {
	var b strings.Builder
	if scope := strings.TrimSpace(input.Scope.Identifier); scope != "" {
		b.WriteString(scope)
	}
	if option := strings.TrimSpace(input.Option); option != "" {
		if b.Len() > 0 {
			b.WriteString("#")
		}
		b.WriteString(option)
		if input.Key != nil {
			fmt.Fprintf(&b, "[%v]", input.Key)
		}
	}
	if b.Len() > 0 {
		return b.String()
	}
	if source := strings.TrimSpace(input.Source); source != "" {
		return source
	}
	return objectType
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
