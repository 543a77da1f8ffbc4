package record

import (
	"encoding/json"
	"fmt"
)

const (
	ErrNoPrimaryKey  = "no_primary_key"
	ErrEmptyKeyValue = "empty_primary_key_value"
)

type LinkError struct {
	Code       string
	Msg        string
	collection string
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("Link error: collection = '%s', code = '%s', msg = '%s'", e.collection, e.Code, e.Msg)
}

func (e *LinkError) Json() []byte {
	j, _ := json.Marshal(map[string]string{
		"collection": e.collection,
		"code":       "link:" + e.Code,
		"msg":        e.Msg,
	})
	return j
}

func NewLinkError(collection string, code string, msg string, a ...interface{}) *LinkError {
	return &LinkError{collection: collection, Code: code, Msg: fmt.Sprintf(msg, a...)}
}
