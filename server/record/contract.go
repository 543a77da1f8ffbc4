package record

import (
	"tether/server/schema"
)

//Collection is the narrow CRUD contract the linker consumes. Implementations
//live in the storage backends; the linker never sees anything wider than
//this.
type Collection interface {
	Identity() string
	Descriptor() *schema.Collection
	Create(values map[string]interface{}) (map[string]interface{}, error)
	Update(criteria map[string]interface{}, values map[string]interface{}) error
	FindOne(criteria map[string]interface{}) (map[string]interface{}, error)
}

//Registry hands out collection handles by name.
type Registry interface {
	Collection(name string) (Collection, error)
}
