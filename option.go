package opts

import (
	"encoding"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// OptionKey identifies one option type. Identity is the pointer: two options
// created with the same name are still distinct keys.
type OptionKey struct {
	name        string
	unique      bool
	valueType   reflect.Type
	keyType     reflect.Type
	decodeValue func(any) (any, error)
	decodeKey   func(any) (any, error)
}

// Name returns the option name used in logs, traces and settings files.
func (k *OptionKey) Name() string {
	if k == nil {
		return ""
	}
	return k.name
}

// Unique reports whether the option holds at most one value per scope.
func (k *OptionKey) Unique() bool {
	return k != nil && k.unique
}

// ValueType returns the Go type of option values.
func (k *OptionKey) ValueType() reflect.Type {
	if k == nil {
		return nil
	}
	return k.valueType
}

// KeyType returns the Go type of entry identifiers, nil for unique options.
func (k *OptionKey) KeyType() reflect.Type {
	if k == nil {
		return nil
	}
	return k.keyType
}

func (k *OptionKey) String() string {
	if k == nil {
		return "<nil>"
	}
	if k.unique {
		return fmt.Sprintf("%s(%s)", k.name, k.valueType)
	}
	return fmt.Sprintf("%s(map[%s]%s)", k.name, k.keyType, k.valueType)
}

// DecodeValue converts a loosely typed payload (settings file, store record)
// into the option value type and validates it.
func (k *OptionKey) DecodeValue(input any) (any, error) {
	if k == nil || k.decodeValue == nil {
		return nil, fmt.Errorf("opts: option key is not initialised")
	}
	value, err := k.decodeValue(input)
	if err != nil {
		return nil, fmt.Errorf("%w: option %s: %v", ErrInvalidValue, k.name, err)
	}
	if err := validateOptionValue(value); err != nil {
		return nil, fmt.Errorf("%w: option %s: %v", ErrInvalidValue, k.name, err)
	}
	return value, nil
}

// DecodeKey converts a loosely typed identifier into the option key type.
func (k *OptionKey) DecodeKey(input any) (any, error) {
	if k == nil || k.unique || k.decodeKey == nil {
		return nil, fmt.Errorf("opts: option %s does not take identifiers", k.Name())
	}
	key, err := k.decodeKey(input)
	if err != nil {
		return nil, fmt.Errorf("%w: option %s identifier: %v", ErrInvalidValue, k.name, err)
	}
	return key, nil
}

// UniqueOption is an option holding a single value of type V per scope.
type UniqueOption[V any] struct {
	key *OptionKey
}

// NewUniqueOption declares a unique option. Declare each option once, usually
// as a package-level variable, and share it between writers and readers.
func NewUniqueOption[V any](name string) UniqueOption[V] {
	return UniqueOption[V]{key: &OptionKey{
		name:        name,
		unique:      true,
		valueType:   reflect.TypeFor[V](),
		decodeValue: decodeAs[V],
	}}
}

// Key returns the untyped identity of the option.
func (o UniqueOption[V]) Key() *OptionKey {
	return o.key
}

// Name returns the option name.
func (o UniqueOption[V]) Name() string {
	return o.key.Name()
}

// KeyedOption is a non-unique option holding entries of type V keyed by K.
type KeyedOption[K comparable, V any] struct {
	key *OptionKey
}

// NewKeyedOption declares a keyed option.
func NewKeyedOption[K comparable, V any](name string) KeyedOption[K, V] {
	return KeyedOption[K, V]{key: &OptionKey{
		name:        name,
		valueType:   reflect.TypeFor[V](),
		keyType:     reflect.TypeFor[K](),
		decodeValue: decodeAs[V],
		decodeKey:   decodeAs[K],
	}}
}

// Key returns the untyped identity of the option.
func (o KeyedOption[K, V]) Key() *OptionKey {
	return o.key
}

// Name returns the option name.
func (o KeyedOption[K, V]) Name() string {
	return o.key.Name()
}

// OptionValuePair is one declared value: the option, an identifier for keyed
// options, and the value itself.
type OptionValuePair struct {
	Option     *OptionKey
	Identifier any
	Value      any
}

// UniqueValue pairs a unique option with its value.
func UniqueValue[V any](option UniqueOption[V], value V) OptionValuePair {
	return OptionValuePair{Option: option.key, Value: value}
}

// KeyedValue pairs a keyed option entry with its value.
func KeyedValue[K comparable, V any](option KeyedOption[K, V], key K, value V) OptionValuePair {
	return OptionValuePair{Option: option.key, Identifier: key, Value: value}
}

// DecodePair builds a pair from loosely typed input, decoding both the
// identifier and the value into the option's types.
func DecodePair(option *OptionKey, identifier any, value any) (OptionValuePair, error) {
	if option == nil {
		return OptionValuePair{}, fmt.Errorf("%w: option is nil", ErrUnknownOption)
	}
	decoded, err := option.DecodeValue(value)
	if err != nil {
		return OptionValuePair{}, err
	}
	pair := OptionValuePair{Option: option, Value: decoded}
	if option.unique {
		return pair, nil
	}
	key, err := option.DecodeKey(identifier)
	if err != nil {
		return OptionValuePair{}, err
	}
	pair.Identifier = key
	return pair, nil
}

func (p OptionValuePair) validate() error {
	if p.Option == nil {
		return fmt.Errorf("%w: option is nil", ErrUnknownOption)
	}
	if !p.Option.unique && p.Identifier == nil {
		return fmt.Errorf("%w: option %s requires an identifier", ErrInvalidValue, p.Option.name)
	}
	if !holdsType(p.Option.valueType, p.Value) {
		return fmt.Errorf("%w: option %s expects %s, got %T", ErrInvalidValue, p.Option.name, p.Option.valueType, p.Value)
	}
	if !p.Option.unique && !holdsType(p.Option.keyType, p.Identifier) {
		return fmt.Errorf("%w: option %s expects %s identifiers, got %T", ErrInvalidValue, p.Option.name, p.Option.keyType, p.Identifier)
	}
	if err := validateOptionValue(p.Value); err != nil {
		return fmt.Errorf("%w: option %s: %v", ErrInvalidValue, p.Option.name, err)
	}
	return nil
}

// holdsType reports whether value can be read back as t by the typed
// container accessors. Nil only fits interface types.
func holdsType(t reflect.Type, value any) bool {
	if t == nil {
		return true
	}
	if value == nil {
		return t.Kind() == reflect.Interface
	}
	if t.Kind() == reflect.Interface {
		return reflect.TypeOf(value).Implements(t)
	}
	return reflect.TypeOf(value) == t
}

var valueValidator = validator.New()

func validateOptionValue(value any) error {
	if value == nil {
		return nil
	}
	if v, ok := value.(interface{ Validate() error }); ok {
		return v.Validate()
	}
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	return valueValidator.Struct(rv.Interface())
}

var textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()

func decodeAs[T any](input any) (any, error) {
	if typed, ok := input.(T); ok {
		return typed, nil
	}
	var out T
	if text, ok := input.(string); ok && reflect.PointerTo(reflect.TypeFor[T]()).Implements(textUnmarshalerType) {
		if err := any(&out).(encoding.TextUnmarshaler).UnmarshalText([]byte(text)); err != nil {
			return nil, err
		}
		return out, nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(input); err != nil {
		return nil, err
	}
	return out, nil
}
