// Package mongodb declares the MongoDB specific options: write concern,
// read preference and association document layout, on top of the document
// store options.
package mongodb

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	opts "github.com/goliatone/go-datastore-options"
	"github.com/goliatone/go-datastore-options/datastore/document"
)

// WriteConcernType names the predefined write concerns.
type WriteConcernType string

const (
	Acknowledged        WriteConcernType = "ACKNOWLEDGED"
	Unacknowledged      WriteConcernType = "UNACKNOWLEDGED"
	Journaled           WriteConcernType = "JOURNALED"
	Majority            WriteConcernType = "MAJORITY"
	FSynced             WriteConcernType = "FSYNCED"
	ReplicaAcknowledged WriteConcernType = "REPLICA_ACKNOWLEDGED"
	// ErrorsIgnored does not even report network errors.
	ErrorsIgnored WriteConcernType = "ERRORS_IGNORED"
)

var predefinedWriteConcerns = map[WriteConcernType]WriteConcern{
	Acknowledged:        {W: 1},
	Unacknowledged:      {W: 0},
	Journaled:           {W: 1, Journal: true},
	Majority:            {Majority: true},
	FSynced:             {W: 1, FSync: true},
	ReplicaAcknowledged: {W: 2},
	ErrorsIgnored:       {W: -1},
}

func (t WriteConcernType) String() string {
	return string(t)
}

// Validate rejects unknown write concern types.
func (t WriteConcernType) Validate() error {
	if _, ok := predefinedWriteConcerns[t]; !ok {
		return fmt.Errorf("mongodb: unknown write concern %q", string(t))
	}
	return nil
}

// UnmarshalText accepts the constant names in any case.
func (t *WriteConcernType) UnmarshalText(text []byte) error {
	candidate := WriteConcernType(document.NormalizeConstant(string(text)))
	if err := candidate.Validate(); err != nil {
		return err
	}
	*t = candidate
	return nil
}

// WriteConcern returns the concern the type stands for.
func (t WriteConcernType) WriteConcern() WriteConcern {
	concern := predefinedWriteConcerns[t]
	concern.Name = t
	return concern
}

// WriteConcern is the effective write acknowledgement requested from the
// server. W is the number of nodes that must acknowledge, ignored when
// Majority is set.
type WriteConcern struct {
	Name     WriteConcernType `mapstructure:"name" json:"name,omitempty" validate:"omitempty,oneof=ACKNOWLEDGED UNACKNOWLEDGED JOURNALED MAJORITY FSYNCED REPLICA_ACKNOWLEDGED ERRORS_IGNORED"`
	W        int              `mapstructure:"w" json:"w" validate:"gte=-1"`
	Majority bool             `mapstructure:"majority" json:"majority,omitempty"`
	Journal  bool             `mapstructure:"journal" json:"journal,omitempty"`
	FSync    bool             `mapstructure:"fsync" json:"fsync,omitempty"`
	WTimeout time.Duration    `mapstructure:"wtimeout" json:"wtimeout,omitempty" validate:"gte=0"`
}

// UnmarshalText lets settings name a predefined concern ("MAJORITY")
// instead of spelling out its fields.
func (c *WriteConcern) UnmarshalText(text []byte) error {
	var t WriteConcernType
	if err := t.UnmarshalText(text); err != nil {
		return err
	}
	*c = t.WriteConcern()
	return nil
}

// Acknowledged reports whether writes wait for a server response.
func (c WriteConcern) Acknowledged() bool {
	return c.Majority || c.W > 0
}

func (c WriteConcern) String() string {
	if c.Name != "" {
		return string(c.Name)
	}
	w := strconv.Itoa(c.W)
	if c.Majority {
		w = "majority"
	}
	parts := []string{"w=" + w}
	if c.Journal {
		parts = append(parts, "j=true")
	}
	if c.FSync {
		parts = append(parts, "fsync=true")
	}
	if c.WTimeout > 0 {
		parts = append(parts, "wtimeout="+c.WTimeout.String())
	}
	return strings.Join(parts, ",")
}

// ReadPreferenceType selects the replica set members reads are routed to.
type ReadPreferenceType string

const (
	Primary            ReadPreferenceType = "PRIMARY"
	PrimaryPreferred   ReadPreferenceType = "PRIMARY_PREFERRED"
	Secondary          ReadPreferenceType = "SECONDARY"
	SecondaryPreferred ReadPreferenceType = "SECONDARY_PREFERRED"
	Nearest            ReadPreferenceType = "NEAREST"
)

func (t ReadPreferenceType) String() string {
	return string(t)
}

// Validate rejects unknown read preferences.
func (t ReadPreferenceType) Validate() error {
	switch t {
	case Primary, PrimaryPreferred, Secondary, SecondaryPreferred, Nearest:
		return nil
	default:
		return fmt.Errorf("mongodb: unknown read preference %q", string(t))
	}
}

// UnmarshalText accepts the constant names in any case.
func (t *ReadPreferenceType) UnmarshalText(text []byte) error {
	candidate := ReadPreferenceType(document.NormalizeConstant(string(text)))
	if err := candidate.Validate(); err != nil {
		return err
	}
	*t = candidate
	return nil
}

// AssociationDocumentType defines where association documents are stored
// when associations use document.AssociationDocument.
type AssociationDocumentType string

const (
	// GlobalCollection stores all association documents in one collection.
	GlobalCollection AssociationDocumentType = "GLOBAL_COLLECTION"
	// CollectionPerAssociation uses a dedicated collection per association.
	CollectionPerAssociation AssociationDocumentType = "COLLECTION_PER_ASSOCIATION"
)

func (t AssociationDocumentType) String() string {
	return string(t)
}

// Validate rejects unknown association document types.
func (t AssociationDocumentType) Validate() error {
	switch t {
	case GlobalCollection, CollectionPerAssociation:
		return nil
	default:
		return fmt.Errorf("mongodb: unknown association document type %q", string(t))
	}
}

// UnmarshalText accepts the constant names in any case.
func (t *AssociationDocumentType) UnmarshalText(text []byte) error {
	candidate := AssociationDocumentType(document.NormalizeConstant(string(text)))
	if err := candidate.Validate(); err != nil {
		return err
	}
	*t = candidate
	return nil
}

var (
	// WriteConcernOption holds the write concern of writes to an entity or
	// association. Predefined types and custom concerns share the option,
	// so the last declaration wins.
	WriteConcernOption = opts.NewUniqueOption[WriteConcern]("writeConcern")
	// ReadPreferenceOption holds the read preference of an entity or
	// association.
	ReadPreferenceOption = opts.NewUniqueOption[ReadPreferenceType]("readPreference")
	// AssociationDocumentStorageOption holds the association document
	// layout.
	AssociationDocumentStorageOption = opts.NewUniqueOption[AssociationDocumentType]("associationDocumentStorage")
)

// Options lists the MongoDB option keys together with the document store
// ones, ready for a settings catalog.
func Options() []*opts.OptionKey {
	return append(document.Options(),
		WriteConcernOption.Key(),
		ReadPreferenceOption.Key(),
		AssociationDocumentStorageOption.Key(),
	)
}
