package schema

import (
	"tether/logger"
	"tether/server/schema/description"
)

type AssociationKind int

const (
	//the child carries a foreign-key column pointing straight at the owner
	AssociationDirect AssociationKind = iota + 1
	//the link lives in a junction collection holding a pair of foreign keys
	AssociationManyToMany
)

//A to-many association of a collection, resolved at registration time.
//For many-to-many associations Target is the junction collection and
//TargetKey is the junction column referencing the non-owner side; TargetKey
//stays empty when the junction schema does not allow resolving it, in which
//case the linker reports the failure per item.
type AssociationDescription struct {
	Name      string
	Attribute *description.Attribute
	Kind      AssociationKind
	Target    *Collection
	On        string
	TargetKey string
}

//Collection metadata resolved from its description. Key is the attribute
//flagged as primary key, or the attribute literally named "id" when none is
//flagged; nil when neither exists.
type Collection struct {
	*description.CollectionDescription
	Key          *description.Attribute
	Associations []*AssociationDescription
}

func (c *Collection) FindAssociation(name string) *AssociationDescription {
	for _, association := range c.Associations {
		if association.Name == name {
			return association
		}
	}
	return nil
}

//ResolveRecordKey returns the primary-key value of a record of this
//collection, falling back to a bare "id" attribute the way key resolution
//itself does. Returns nil when the value is absent or empty.
func (c *Collection) ResolveRecordKey(record map[string]interface{}) interface{} {
	keyName := "id"
	if c.Key != nil {
		keyName = c.Key.Name
	}
	value, ok := record[keyName]
	if !ok || value == nil || value == "" {
		return nil
	}
	return value
}

type CollectionFactory struct {
	builtCollections     map[string]*Collection
	descriptionSyncer    DescriptionSyncer
	collectionsToResolve []*Collection
}

func NewCollectionFactory(descriptionSyncer DescriptionSyncer) *CollectionFactory {
	return &CollectionFactory{descriptionSyncer: descriptionSyncer}
}

//FactoryCollection resolves the provided description into a typed collection
//descriptor, pulling association targets from the description syncer.
func (factory *CollectionFactory) FactoryCollection(collectionDescription *description.CollectionDescription) (*Collection, error) {
	factory.reset()

	if ok, err := (&description.CollectionValidationService{}).Validate(collectionDescription); !ok {
		return nil, err
	}

	collection := &Collection{CollectionDescription: collectionDescription}
	//root collection is built manually, thus it should be registered manually too
	factory.builtCollections[collection.Name] = collection
	factory.enqueueForResolving(collection)

	if err := factory.resolveEnqueued(); err != nil {
		return nil, err
	}
	return collection, nil
}

func (factory *CollectionFactory) reset() {
	factory.builtCollections = make(map[string]*Collection)
	factory.collectionsToResolve = make([]*Collection, 0)
}

func (factory *CollectionFactory) enqueueForResolving(collection *Collection) {
	factory.collectionsToResolve = append(factory.collectionsToResolve, collection)
}

func (factory *CollectionFactory) popCollectionToResolve() *Collection {
	if len(factory.collectionsToResolve) == 0 {
		return nil
	}
	collection := factory.collectionsToResolve[0]
	factory.collectionsToResolve = factory.collectionsToResolve[1:]
	return collection
}

func (factory *CollectionFactory) resolveEnqueued() error {
	for {
		currentCollection := factory.popCollectionToResolve()
		if currentCollection == nil {
			return nil
		}
		if err := factory.resolveCollection(currentCollection); err != nil {
			return err
		}
	}
}

func (factory *CollectionFactory) resolveCollection(collection *Collection) error {
	collection.Key = resolveKeyAttribute(collection.CollectionDescription)
	collection.Associations = make([]*AssociationDescription, 0)

	for i := range collection.Attributes {
		attribute := &collection.Attributes[i]
		if !attribute.IsAssociation() {
			continue
		}
		target, err := factory.buildTarget(attribute.Collection)
		if err != nil {
			return err
		}
		association := &AssociationDescription{
			Name:      attribute.Name,
			Attribute: attribute,
			Kind:      AssociationDirect,
			Target:    target,
			On:        attribute.On,
		}
		if target.JunctionTable {
			association.Kind = AssociationManyToMany
			association.TargetKey = ResolveJunctionTargetKey(target.CollectionDescription, collection.Name)
			if association.TargetKey == "" {
				logger.Warn("Junction collection '%s' has no attribute referencing a collection other than '%s'", target.Name, collection.Name)
			}
		}
		collection.Associations = append(collection.Associations, association)
	}
	return nil
}

func (factory *CollectionFactory) buildTarget(name string) (*Collection, error) {
	if builtCollection, ok := factory.builtCollections[name]; ok {
		return builtCollection, nil
	}
	targetDescription, _, err := factory.descriptionSyncer.Get(name)
	if err != nil {
		return nil, err
	}
	if targetDescription == nil {
		return nil, description.NewCollectionDescriptionError(name, "resolve", description.ErrNotValid, "Association target collection '%s' is not registered", name)
	}
	target := &Collection{CollectionDescription: targetDescription}
	factory.builtCollections[name] = target
	factory.enqueueForResolving(target)
	return target, nil
}

//the attribute flagged as primary key wins; a bare "id" attribute is the
//fallback; the explicit description key comes last
func resolveKeyAttribute(collectionDescription *description.CollectionDescription) *description.Attribute {
	for i := range collectionDescription.Attributes {
		if collectionDescription.Attributes[i].PrimaryKey {
			return &collectionDescription.Attributes[i]
		}
	}
	if keyAttribute := collectionDescription.FindAttribute("id"); keyAttribute != nil {
		return keyAttribute
	}
	if collectionDescription.Key != "" {
		return collectionDescription.FindAttribute(collectionDescription.Key)
	}
	return nil
}

//ResolveJunctionTargetKey picks the junction column referencing a collection
//other than the owner of the association.
func ResolveJunctionTargetKey(junction *description.CollectionDescription, ownerName string) string {
	for _, attribute := range junction.Attributes {
		if attribute.IsForeignKey() && attribute.References != ownerName {
			return attribute.Name
		}
	}
	return ""
}
