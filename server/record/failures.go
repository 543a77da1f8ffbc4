package record

import (
	"sync"
)

const (
	OperationInsert = "insert"
	OperationUpdate = "update"
)

//FailedOperation describes one sub-operation that did not succeed. Failures
//are data: they are collected and returned, never raised, so a single bad
//item cannot abort its siblings.
type FailedOperation struct {
	Operation  string                 `json:"operationType" structs:"operationType"`
	Collection string                 `json:"collectionIdentity" structs:"collectionIdentity"`
	Criteria   map[string]interface{} `json:"criteria,omitempty" structs:"criteria,omitempty"`
	Values     map[string]interface{} `json:"values" structs:"values"`
	Message    string                 `json:"errorMessage" structs:"errorMessage"`
}

//failureList is the per-invocation accumulator. Items of one association are
//processed concurrently, so appends are guarded; no merge order is promised.
type failureList struct {
	mutex sync.Mutex
	items []FailedOperation
}

func newFailureList() *failureList {
	return &failureList{items: make([]FailedOperation, 0)}
}

func (list *failureList) Append(failedOperation FailedOperation) {
	list.mutex.Lock()
	defer list.mutex.Unlock()
	list.items = append(list.items, failedOperation)
}

func (list *failureList) All() []FailedOperation {
	list.mutex.Lock()
	defer list.mutex.Unlock()
	collected := make([]FailedOperation, len(list.items))
	copy(collected, list.items)
	return collected
}
