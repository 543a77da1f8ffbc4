package record

import (
	"sort"
	"sync"

	"tether/logger"
	"tether/server/schema"
)

//No more than this many create/update calls of one association batch may be
//in flight at a time; the connection pool behind the registry is finite.
const concurrentOperationLimit = 10

//Linker reconciles to-many associations of a parent record against the
//collections of a registry: full payloads become child records, bare keys
//re-parent existing ones, junction-backed links get their join row after an
//existence check. Associations are drained one at a time; items of one
//association run concurrently up to the limit.
type Linker struct {
	registry Registry
}

func NewLinker(registry Registry) *Linker {
	return &Linker{registry: registry}
}

//linkRequest carries the context of one LinkRelated invocation through the
//sub-operations.
type linkRequest struct {
	parent    *schema.Collection
	parentKey interface{}
	failures  *failureList
}

//LinkRelated processes the association batches of the parent record. The
//error return covers parent-key resolution only; everything past that point
//is collected into the returned failure list and the batch always runs to
//completion.
func (linker *Linker) LinkRelated(parent *schema.Collection, parentRecord map[string]interface{}, associations map[string][]Item) ([]FailedOperation, error) {
	if parent.Key == nil {
		return nil, NewLinkError(parent.Name, ErrNoPrimaryKey, "No primary key defined on collection '%s'", parent.Name)
	}
	parentKey := parent.ResolveRecordKey(parentRecord)
	if parentKey == nil {
		return nil, NewLinkError(parent.Name, ErrEmptyKeyValue, "Primary key '%s' has no value on the record being associated", parent.Key.Name)
	}

	request := &linkRequest{parent: parent, parentKey: parentKey, failures: newFailureList()}

	associationNames := make([]string, 0, len(associations))
	for associationName := range associations {
		associationNames = append(associationNames, associationName)
	}
	sort.Strings(associationNames)

	//associations are deliberately serial: peak connection usage stays at
	//the per-association limit no matter how many associations there are
	for _, associationName := range associationNames {
		association := parent.FindAssociation(associationName)
		if association == nil {
			logger.Warn("Collection '%s' has no association '%s', skipping its items", parent.Name, associationName)
			continue
		}
		linker.processAssociation(request, association, associations[associationName])
	}
	return request.failures.All(), nil
}

func (linker *Linker) processAssociation(request *linkRequest, association *schema.AssociationDescription, items []Item) {
	inFlight := make(chan struct{}, concurrentOperationLimit)
	waitGroup := sync.WaitGroup{}
	for _, item := range items {
		waitGroup.Add(1)
		inFlight <- struct{}{}
		go func(item Item) {
			defer waitGroup.Done()
			defer func() { <-inFlight }()
			if item.IsCreate() {
				linker.createRelated(request, association, item.Payload())
			} else {
				linker.linkExisting(request, association, item.Key())
			}
		}(item)
	}
	waitGroup.Wait()
}

//createRelated creates a new related record. A direct association gets the
//parent key injected into its foreign-key column; a junction-backed one is
//created untouched and then reconciled into a join row.
func (linker *Linker) createRelated(request *linkRequest, association *schema.AssociationDescription, payload map[string]interface{}) {
	target, err := linker.registry.Collection(association.Target.Name)
	if err != nil {
		request.failures.Append(FailedOperation{
			Operation:  OperationInsert,
			Collection: association.Target.Name,
			Values:     payload,
			Message:    err.Error(),
		})
		return
	}

	if association.Kind != schema.AssociationManyToMany {
		values := make(map[string]interface{}, len(payload)+1)
		for attributeName, value := range payload {
			values[attributeName] = value
		}
		values[association.On] = request.parentKey
		if _, err := target.Create(values); err != nil {
			request.failures.Append(FailedOperation{
				Operation:  OperationInsert,
				Collection: target.Identity(),
				Values:     values,
				Message:    err.Error(),
			})
		}
		return
	}

	createdRecord, err := target.Create(payload)
	if err != nil {
		request.failures.Append(FailedOperation{
			Operation:  OperationInsert,
			Collection: target.Identity(),
			Values:     payload,
			Message:    err.Error(),
		})
		return
	}
	createdKey := association.Target.ResolveRecordKey(createdRecord)
	if createdKey == nil {
		request.failures.Append(FailedOperation{
			Operation:  OperationInsert,
			Collection: target.Identity(),
			Values:     payload,
			Message:    "no primary key found on the record just created",
		})
		return
	}
	linker.reconcileJunction(request, association, target, createdKey)
}

//linkExisting binds an already existing child, identified by a bare key, to
//the parent: a join row for many-to-many, a foreign-key update otherwise.
func (linker *Linker) linkExisting(request *linkRequest, association *schema.AssociationDescription, childKey interface{}) {
	target, err := linker.registry.Collection(association.Target.Name)
	if err != nil {
		request.failures.Append(FailedOperation{
			Operation:  OperationUpdate,
			Collection: association.Target.Name,
			Message:    err.Error(),
		})
		return
	}

	if association.Kind == schema.AssociationManyToMany {
		linker.reconcileJunction(request, association, target, childKey)
		return
	}

	if association.Target.Key == nil {
		request.failures.Append(FailedOperation{
			Operation:  OperationUpdate,
			Collection: target.Identity(),
			Message:    "no primary key defined on the child record",
		})
		return
	}
	criteria := map[string]interface{}{association.Target.Key.Name: childKey}
	values := map[string]interface{}{association.On: request.parentKey}
	if err := target.Update(criteria, values); err != nil {
		request.failures.Append(FailedOperation{
			Operation:  OperationUpdate,
			Collection: target.Identity(),
			Criteria:   criteria,
			Values:     values,
			Message:    err.Error(),
		})
	}
}

//reconcileJunction creates the join row for a (parent, child) pair unless one
//already exists. The lookup trades an extra round trip for not needing a
//uniqueness constraint; an existing row is reported, not silently skipped.
func (linker *Linker) reconcileJunction(request *linkRequest, association *schema.AssociationDescription, junction Collection, childKey interface{}) {
	targetKey := association.TargetKey
	if targetKey == "" {
		//the junction description may have changed since the association
		//was resolved
		targetKey = schema.ResolveJunctionTargetKey(association.Target.CollectionDescription, request.parent.Name)
	}
	if targetKey == "" {
		request.failures.Append(FailedOperation{
			Operation:  OperationInsert,
			Collection: junction.Identity(),
			Message:    "no primary key set on the child record",
		})
		return
	}

	criteria := map[string]interface{}{
		targetKey:      childKey,
		association.On: request.parentKey,
	}
	existingRow, err := junction.FindOne(criteria)
	if err != nil {
		request.failures.Append(FailedOperation{
			Operation:  OperationInsert,
			Collection: junction.Identity(),
			Criteria:   criteria,
			Values:     criteria,
			Message:    err.Error(),
		})
		return
	}
	if existingRow != nil {
		request.failures.Append(FailedOperation{
			Operation:  OperationInsert,
			Collection: junction.Identity(),
			Criteria:   criteria,
			Values:     criteria,
			Message:    "record already exists",
		})
		return
	}
	if _, err := junction.Create(criteria); err != nil {
		request.failures.Append(FailedOperation{
			Operation:  OperationInsert,
			Collection: junction.Identity(),
			Values:     criteria,
			Message:    err.Error(),
		})
	}
}
