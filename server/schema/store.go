package schema

import (
	"encoding/json"
	"io"

	"tether/server/schema/description"
)

//SchemaStore is the collection registry: it owns the description syncer, the
//resolved-descriptor cache and the factory, and is the only entry point for
//registering and resolving collections.
type SchemaStore struct {
	syncer  DescriptionSyncer
	cache   *CollectionCache
	factory *CollectionFactory
}

func NewStore(syncer DescriptionSyncer) *SchemaStore {
	return &SchemaStore{
		syncer:  syncer,
		cache:   NewCache(),
		factory: NewCollectionFactory(syncer),
	}
}

func (store *SchemaStore) Cache() *CollectionCache {
	return store.cache
}

func (store *SchemaStore) List() ([]*Collection, error) {
	descriptionList, err := store.syncer.List()
	if err != nil {
		return nil, err
	}
	collections := make([]*Collection, 0, len(descriptionList))
	for _, collectionDescription := range descriptionList {
		collection, err := store.Get(collectionDescription.Name)
		if err != nil {
			return nil, err
		}
		collections = append(collections, collection)
	}
	return collections, nil
}

func (store *SchemaStore) Get(name string) (*Collection, error) {
	if collection := store.cache.Get(name); collection != nil {
		return collection, nil
	}
	collectionDescription, found, err := store.syncer.Get(name)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, description.NewCollectionDescriptionError(name, "get", description.ErrNotValid, "Collection '%s' is not registered", name)
	}
	collection, err := store.factory.FactoryCollection(collectionDescription)
	if err != nil {
		return nil, err
	}
	store.cache.Set(collection)
	return collection, nil
}

//NewCollection validates, normalizes and resolves the description without
//registering it.
func (store *SchemaStore) NewCollection(collectionDescription *description.CollectionDescription) (*Collection, error) {
	(&description.NormalizationService{}).Normalize(collectionDescription)
	collection, err := store.factory.FactoryCollection(collectionDescription)
	if err != nil {
		return nil, err
	}
	if collection.Key == nil {
		return nil, &description.ValidationError{Message: "Collection declares no primary key and has no 'id' attribute"}
	}
	return collection, nil
}

func (store *SchemaStore) Create(collection *Collection) error {
	if err := store.syncer.Create(*collection.CollectionDescription); err != nil {
		return err
	}
	store.cache.Set(collection)
	return nil
}

func (store *SchemaStore) Update(name string, collection *Collection) (bool, error) {
	updated, err := store.syncer.Update(name, *collection.CollectionDescription)
	if err != nil || !updated {
		return updated, err
	}
	//resolved descriptors of dependent collections are stale now
	store.cache.Flush()
	store.cache.Set(collection)
	return true, nil
}

func (store *SchemaStore) Remove(name string) (bool, error) {
	removed, err := store.syncer.Remove(name)
	if err != nil || !removed {
		return removed, err
	}
	store.cache.Flush()
	return true, nil
}

func (store *SchemaStore) Flush() error {
	descriptionList, err := store.syncer.List()
	if err != nil {
		return err
	}
	for _, collectionDescription := range descriptionList {
		if _, err := store.syncer.Remove(collectionDescription.Name); err != nil {
			return err
		}
	}
	store.cache.Flush()
	return nil
}

//UnmarshalIncomingJSON parses a collection description out of a request body
//and resolves it into a collection.
func (store *SchemaStore) UnmarshalIncomingJSON(reader io.Reader) (*Collection, error) {
	collectionDescription := new(description.CollectionDescription)
	if err := json.NewDecoder(reader).Decode(collectionDescription); err != nil {
		return nil, description.NewCollectionDescriptionError("", "unmarshal", description.ErrJsonUnmarshal, err.Error())
	}
	return store.NewCollection(collectionDescription)
}
