package mem

import (
	"fmt"
	"sync"

	"tether/server/record"
	"tether/server/schema"
)

const (
	ErrKeyValueNotFound = "key_value_not_found"
	ErrValueDuplication = "duplicated_value_error"
)

type StoreError struct {
	Code       string
	Msg        string
	collection string
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("Store error: collection = '%s', code = '%s', msg = '%s'", e.collection, e.Code, e.Msg)
}

func NewStoreError(collection string, code string, msg string, a ...interface{}) *StoreError {
	return &StoreError{collection: collection, Code: code, Msg: fmt.Sprintf(msg, a...)}
}

//Store keeps collection data in process. It implements the same contract as
//the Postgres backend and backs the application when no database is
//configured, as well as the test suites.
type Store struct {
	mutex       sync.Mutex
	schemaStore *schema.SchemaStore
	collections map[string]*collection
}

func NewStore(schemaStore *schema.SchemaStore) *Store {
	return &Store{
		schemaStore: schemaStore,
		collections: make(map[string]*collection),
	}
}

func (store *Store) Collection(name string) (record.Collection, error) {
	descriptor, err := store.schemaStore.Get(name)
	if err != nil {
		return nil, err
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if existing, ok := store.collections[name]; ok {
		existing.setDescriptor(descriptor)
		return existing, nil
	}
	created := &collection{descriptor: descriptor, rows: make([]map[string]interface{}, 0)}
	store.collections[name] = created
	return created, nil
}

//Count reports the row count of a collection; collections never touched yet
//count zero.
func (store *Store) Count(name string) int {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if c, ok := store.collections[name]; ok {
		return c.Count()
	}
	return 0
}

//Flush drops all stored rows, keeping registered schemas intact.
func (store *Store) Flush() {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.collections = make(map[string]*collection)
}

type collection struct {
	mutex      sync.RWMutex
	descriptor *schema.Collection
	rows       []map[string]interface{}
	sequence   int
}

//descriptor is shared with the store, which refreshes it on every lookup;
//all access goes through this collection's mutex
func (c *collection) setDescriptor(descriptor *schema.Collection) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.descriptor = descriptor
}

func (c *collection) Identity() string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.descriptor.Name
}

func (c *collection) Descriptor() *schema.Collection {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.descriptor
}

func (c *collection) Create(values map[string]interface{}) (map[string]interface{}, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	row := make(map[string]interface{}, len(values)+1)
	for attributeName, value := range values {
		row[attributeName] = value
	}

	if key := c.descriptor.Key; key != nil {
		if keyValue, ok := row[key.Name]; !ok || keyValue == nil || keyValue == "" {
			c.sequence++
			row[key.Name] = c.sequence
		} else {
			for _, existingRow := range c.rows {
				if valuesEqual(existingRow[key.Name], keyValue) {
					return nil, NewStoreError(c.descriptor.Name, ErrValueDuplication, "Duplicated value '%v' for key '%s'", keyValue, key.Name)
				}
			}
		}
	}

	c.rows = append(c.rows, row)
	return copyRow(row), nil
}

func (c *collection) Update(criteria map[string]interface{}, values map[string]interface{}) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	updated := 0
	for _, row := range c.rows {
		if rowMatches(row, criteria) {
			for attributeName, value := range values {
				row[attributeName] = value
			}
			updated++
		}
	}
	if updated == 0 {
		return NewStoreError(c.descriptor.Name, ErrKeyValueNotFound, "No record matches %v", criteria)
	}
	return nil
}

func (c *collection) FindOne(criteria map[string]interface{}) (map[string]interface{}, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	for _, row := range c.rows {
		if rowMatches(row, criteria) {
			return copyRow(row), nil
		}
	}
	return nil, nil
}

func (c *collection) Count() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.rows)
}

func rowMatches(row map[string]interface{}, criteria map[string]interface{}) bool {
	for attributeName, expected := range criteria {
		actual, ok := row[attributeName]
		if !ok || !valuesEqual(actual, expected) {
			return false
		}
	}
	return true
}

//loose equality: incoming key values arrive as strings or json numbers while
//stored ones may be ints
func valuesEqual(a interface{}, b interface{}) bool {
	if a == b {
		return true
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func copyRow(row map[string]interface{}) map[string]interface{} {
	rowCopy := make(map[string]interface{}, len(row))
	for attributeName, value := range row {
		rowCopy[attributeName] = value
	}
	return rowCopy
}
