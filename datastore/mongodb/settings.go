package mongodb

import (
	opts "github.com/goliatone/go-datastore-options"
	"github.com/goliatone/go-datastore-options/datastore/document"
)

// Settings are the effective persistence settings for one scope, with
// defaults applied for options nobody declared.
type Settings struct {
	AssociationStorage         document.AssociationStorageType `json:"associationStorage"`
	AssociationDocumentStorage AssociationDocumentType         `json:"associationDocumentStorage"`
	WriteConcern               WriteConcern                    `json:"writeConcern"`
	ReadPreference             ReadPreferenceType              `json:"readPreference"`
}

// Defaults applied by Resolve.
var (
	DefaultAssociationStorage         = document.InEntity
	DefaultAssociationDocumentStorage = GlobalCollection
	DefaultWriteConcern               = Acknowledged
	DefaultReadPreference             = Primary
)

// Resolve reads the MongoDB options visible in ctx, usually a merged
// property or entity context.
func Resolve(ctx opts.OptionsContext) Settings {
	return Settings{
		AssociationStorage:         opts.GetUniqueOr(ctx, document.AssociationStorageOption, DefaultAssociationStorage),
		AssociationDocumentStorage: opts.GetUniqueOr(ctx, AssociationDocumentStorageOption, DefaultAssociationDocumentStorage),
		WriteConcern:               opts.GetUniqueOr(ctx, WriteConcernOption, DefaultWriteConcern.WriteConcern()),
		ReadPreference:             opts.GetUniqueOr(ctx, ReadPreferenceOption, DefaultReadPreference),
	}
}

// UsesAssociationDocuments reports whether associations are stored in
// dedicated documents.
func (s Settings) UsesAssociationDocuments() bool {
	return s.AssociationStorage == document.AssociationDocument
}

// AssociationCollection returns the collection association documents go
// to for an association of owner named property, or "" when associations
// are embedded.
func (s Settings) AssociationCollection(owner, property string) string {
	if !s.UsesAssociationDocuments() {
		return ""
	}
	if s.AssociationDocumentStorage == CollectionPerAssociation {
		return "associations_" + owner + "_" + property
	}
	return "Associations"
}
