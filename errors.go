package opts

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration is matched by every error raised while options are
	// being declared. Use errors.Is to detect it.
	ErrConfiguration = errors.New("opts: configuration error")
	// ErrUnknownEntity indicates an entity reference that is not a struct type.
	ErrUnknownEntity = errors.New("opts: entity must be a struct type")
	// ErrUnknownProperty indicates a property that is not declared for the
	// requested element kind.
	ErrUnknownProperty = errors.New("opts: property not found")
	// ErrUnregisteredAnnotation indicates an annotation without a converter.
	ErrUnregisteredAnnotation = errors.New("opts: no converter registered for annotation")
	// ErrDuplicateConverter indicates a second converter for one annotation type.
	ErrDuplicateConverter = errors.New("opts: converter already registered")
	// ErrFrozen indicates a declaration after the configuration phase ended.
	ErrFrozen = errors.New("opts: configuration context is frozen")
	// ErrUnknownOption indicates an option name or key that cannot be resolved.
	ErrUnknownOption = errors.New("opts: unknown option")
	// ErrInvalidValue indicates a value that does not fit its option.
	ErrInvalidValue = errors.New("opts: invalid option value")
	// ErrScopeMismatch indicates an option declared at a level where the
	// current builder has no matching scope (e.g. property option without a
	// property).
	ErrScopeMismatch = errors.New("opts: option declared outside of its scope")
)

// ConfigurationError describes the element that made the configuration phase
// fail.
type ConfigurationError struct {
	Scope   string
	Element string
	Option  string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	parts := make([]string, 0, 3)
	if e.Scope != "" {
		parts = append(parts, "scope="+e.Scope)
	}
	if e.Element != "" {
		parts = append(parts, "element="+e.Element)
	}
	if e.Option != "" {
		parts = append(parts, "option="+e.Option)
	}
	if len(parts) == 0 {
		return fmt.Sprintf("opts: configuration: %v", e.Err)
	}
	return fmt.Sprintf("opts: configuration %s: %v", strings.Join(parts, " "), e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is makes every ConfigurationError match ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

func configurationError(scope ScopeRef, element, option string, err error) error {
	if err == nil {
		return nil
	}
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		if cfgErr.Scope == "" && !scope.isZero() {
			cfgErr.Scope = scope.Identifier()
		}
		if cfgErr.Element == "" {
			cfgErr.Element = element
		}
		if cfgErr.Option == "" {
			cfgErr.Option = option
		}
		return cfgErr
	}
	out := &ConfigurationError{
		Element: element,
		Option:  option,
		Err:     err,
	}
	if !scope.isZero() {
		out.Scope = scope.Identifier()
	}
	return out
}
