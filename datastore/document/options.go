// Package document holds the options shared by document oriented
// datastores: how associations are laid out and the fluent setters to
// declare it.
package document

import (
	"fmt"
	"strings"

	opts "github.com/goliatone/go-datastore-options"
)

// AssociationStorageType is the strategy for storing associations.
type AssociationStorageType string

const (
	// InEntity stores association information within the entity document.
	InEntity AssociationStorageType = "IN_ENTITY"
	// AssociationDocument stores association information in dedicated
	// documents, one per association.
	AssociationDocument AssociationStorageType = "ASSOCIATION_DOCUMENT"
)

// AssociationStorageTypes lists the supported strategies.
func AssociationStorageTypes() []AssociationStorageType {
	return []AssociationStorageType{InEntity, AssociationDocument}
}

func (t AssociationStorageType) String() string {
	return string(t)
}

// Validate rejects unknown strategies.
func (t AssociationStorageType) Validate() error {
	switch t {
	case InEntity, AssociationDocument:
		return nil
	default:
		return fmt.Errorf("document: unknown association storage type %q", string(t))
	}
}

// UnmarshalText accepts the constant names in any case, with dashes or
// underscores.
func (t *AssociationStorageType) UnmarshalText(text []byte) error {
	candidate := AssociationStorageType(NormalizeConstant(string(text)))
	if err := candidate.Validate(); err != nil {
		return err
	}
	*t = candidate
	return nil
}

// NormalizeConstant upper-cases s and maps dashes and spaces to
// underscores, so "association-document" reads as ASSOCIATION_DOCUMENT.
func NormalizeConstant(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return constantReplacer.Replace(s)
}

var constantReplacer = strings.NewReplacer("-", "_", " ", "_")

// AssociationStorageOption is the association storage strategy of an
// entity or property.
var AssociationStorageOption = opts.NewUniqueOption[AssociationStorageType]("associationStorage")

// AssociationStorageAnnotation declares the association storage strategy on
// an entity, field or accessor.
type AssociationStorageAnnotation struct {
	Value AssociationStorageType
}

// AnnotationType implements opts.Annotation.
func (AssociationStorageAnnotation) AnnotationType() string {
	return AssociationStorageOption.Name()
}

// ConvertAssociationStorage maps the annotation onto AssociationStorageOption.
func ConvertAssociationStorage(a AssociationStorageAnnotation) opts.OptionValuePair {
	return opts.UniqueValue(AssociationStorageOption, a.Value)
}

// RegisterConverters registers the converters of this package.
func RegisterConverters(registry *opts.ConverterRegistry) error {
	return registry.Register(
		AssociationStorageAnnotation{}.AnnotationType(),
		opts.TypedConverter(ConvertAssociationStorage),
	)
}

// ParseAssociationStorageTag parses the value of an
// `ogm:"associationStorage=..."` tag entry.
func ParseAssociationStorageTag(value string) (opts.Annotation, error) {
	var storage AssociationStorageType
	if err := storage.UnmarshalText([]byte(value)); err != nil {
		return nil, err
	}
	return AssociationStorageAnnotation{Value: storage}, nil
}

// TagScannerOptions registers the tag parsers of this package.
func TagScannerOptions() []opts.TagScannerOption {
	return []opts.TagScannerOption{
		opts.WithTagParser(AssociationStorageOption.Name(), ParseAssociationStorageTag),
	}
}

// Options lists the option keys of this package.
func Options() []*opts.OptionKey {
	return []*opts.OptionKey{AssociationStorageOption.Key()}
}
