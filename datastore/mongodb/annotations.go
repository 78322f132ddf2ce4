package mongodb

import (
	"fmt"

	opts "github.com/goliatone/go-datastore-options"
	"github.com/goliatone/go-datastore-options/datastore/document"
)

// WriteConcernAnnotation declares a write concern. Custom, when set, takes
// precedence over Value.
type WriteConcernAnnotation struct {
	Value  WriteConcernType
	Custom *WriteConcern
}

func (WriteConcernAnnotation) AnnotationType() string { return WriteConcernOption.Name() }

// ReadPreferenceAnnotation declares a read preference.
type ReadPreferenceAnnotation struct {
	Value ReadPreferenceType
}

func (ReadPreferenceAnnotation) AnnotationType() string { return ReadPreferenceOption.Name() }

// AssociationDocumentStorageAnnotation declares the association document
// layout.
type AssociationDocumentStorageAnnotation struct {
	Value AssociationDocumentType
}

func (AssociationDocumentStorageAnnotation) AnnotationType() string {
	return AssociationDocumentStorageOption.Name()
}

func convertWriteConcern(a WriteConcernAnnotation) opts.OptionValuePair {
	if a.Custom != nil {
		return opts.UniqueValue(WriteConcernOption, *a.Custom)
	}
	return opts.UniqueValue(WriteConcernOption, a.Value.WriteConcern())
}

func convertReadPreference(a ReadPreferenceAnnotation) opts.OptionValuePair {
	return opts.UniqueValue(ReadPreferenceOption, a.Value)
}

func convertAssociationDocumentStorage(a AssociationDocumentStorageAnnotation) opts.OptionValuePair {
	return opts.UniqueValue(AssociationDocumentStorageOption, a.Value)
}

// RegisterConverters registers the MongoDB converters and the document
// store ones.
func RegisterConverters(registry *opts.ConverterRegistry) error {
	if err := document.RegisterConverters(registry); err != nil {
		return err
	}
	if err := registry.Register(WriteConcernAnnotation{}.AnnotationType(), opts.TypedConverter(convertWriteConcern)); err != nil {
		return err
	}
	if err := registry.Register(ReadPreferenceAnnotation{}.AnnotationType(), opts.TypedConverter(convertReadPreference)); err != nil {
		return err
	}
	return registry.Register(AssociationDocumentStorageAnnotation{}.AnnotationType(), opts.TypedConverter(convertAssociationDocumentStorage))
}

// NewConverterRegistry returns a registry with every converter a MongoDB
// model needs.
func NewConverterRegistry() *opts.ConverterRegistry {
	registry := opts.NewConverterRegistry()
	if err := RegisterConverters(registry); err != nil {
		panic(fmt.Sprintf("mongodb: %v", err))
	}
	return registry
}

func parseWriteConcernTag(value string) (opts.Annotation, error) {
	var concern WriteConcernType
	if err := concern.UnmarshalText([]byte(value)); err != nil {
		return nil, err
	}
	return WriteConcernAnnotation{Value: concern}, nil
}

func parseReadPreferenceTag(value string) (opts.Annotation, error) {
	var preference ReadPreferenceType
	if err := preference.UnmarshalText([]byte(value)); err != nil {
		return nil, err
	}
	return ReadPreferenceAnnotation{Value: preference}, nil
}

func parseAssociationDocumentStorageTag(value string) (opts.Annotation, error) {
	var storage AssociationDocumentType
	if err := storage.UnmarshalText([]byte(value)); err != nil {
		return nil, err
	}
	return AssociationDocumentStorageAnnotation{Value: storage}, nil
}

// TagScannerOptions registers the tag parsers for every MongoDB option,
// including associationStorage.
func TagScannerOptions() []opts.TagScannerOption {
	return append(document.TagScannerOptions(),
		opts.WithTagParser(WriteConcernOption.Name(), parseWriteConcernTag),
		opts.WithTagParser(ReadPreferenceOption.Name(), parseReadPreferenceTag),
		opts.WithTagParser(AssociationDocumentStorageOption.Name(), parseAssociationDocumentStorageTag),
	)
}

// NewTagScanner returns a scanner understanding the MongoDB tag entries.
func NewTagScanner(extra ...opts.TagScannerOption) *opts.TagScanner {
	return opts.NewTagScanner(append(TagScannerOptions(), extra...)...)
}
