package description

import (
	"encoding/json"
	"fmt"
)

type collectionDescriptionError struct {
	code       string
	msg        string
	collection string
	op         string
}

func (e *collectionDescriptionError) Error() string {
	return fmt.Sprintf("CollectionDescription error: collection = '%s', operation = '%s', code = '%s', msg = '%s'", e.collection, e.op, e.code, e.msg)
}

func (e *collectionDescriptionError) Json() []byte {
	j, _ := json.Marshal(map[string]string{
		"collection": e.collection,
		"op":         e.op,
		"code":       "description:" + e.code,
		"msg":        e.msg,
	})
	return j
}

func NewCollectionDescriptionError(collection string, op string, code string, msg string, a ...interface{}) *collectionDescriptionError {
	return &collectionDescriptionError{collection: collection, op: op, code: code, msg: fmt.Sprintf(msg, a...)}
}

const (
	ErrNotValid      = "not_valid"
	ErrJsonUnmarshal = "json_unmarshal"
	ErrJsonMarshal   = "json_marshal"
)
