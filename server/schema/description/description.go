package description

import (
	"github.com/getlantern/deepcopy"
)

type AttributeType string

const (
	AttributeTypeString   AttributeType = "string"
	AttributeTypeNumber   AttributeType = "number"
	AttributeTypeBool     AttributeType = "bool"
	AttributeTypeDateTime AttributeType = "datetime"
)

//Per-attribute metadata of a collection. The association flags follow the
//registry wire format: "collection" marks a to-many association and names its
//target, "on" names the foreign-key column on the child pointing back at the
//owner, "references" names the collection a plain foreign-key column points at.
type Attribute struct {
	Name       string        `json:"name"`
	Type       AttributeType `json:"type,omitempty"`
	PrimaryKey bool          `json:"primaryKey,omitempty"`
	Collection string        `json:"collection,omitempty"`
	On         string        `json:"on,omitempty"`
	References string        `json:"references,omitempty"`
	ColumnName string        `json:"columnName,omitempty"`
	Optional   bool          `json:"optional"`
}

func (a *Attribute) IsAssociation() bool {
	return a.Collection != ""
}

func (a *Attribute) IsForeignKey() bool {
	return a.References != ""
}

//The shadow struct of the resolved Collection.
type CollectionDescription struct {
	Name          string      `json:"name"`
	Key           string      `json:"key,omitempty"`
	JunctionTable bool        `json:"junctionTable,omitempty"`
	Attributes    []Attribute `json:"attributes"`
}

func (cd *CollectionDescription) Clone() *CollectionDescription {
	collectionDescription := new(CollectionDescription)
	deepcopy.Copy(collectionDescription, cd)
	return collectionDescription
}

func (cd *CollectionDescription) FindAttribute(attributeName string) *Attribute {
	for i, attribute := range cd.Attributes {
		if attribute.Name == attributeName {
			return &cd.Attributes[i]
		}
	}
	return nil
}

func NewCollectionDescription(name string, key string, attributes []Attribute) *CollectionDescription {
	return &CollectionDescription{Name: name, Key: key, Attributes: attributes}
}
