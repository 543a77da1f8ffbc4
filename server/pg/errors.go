package pg

import (
	"encoding/json"
	"fmt"
)

type PgError struct {
	Code  string
	Msg   string
	table string
}

func (e *PgError) Error() string {
	return fmt.Sprintf("PG error: table = '%s', code = '%s', msg = '%s'", e.table, e.Code, e.Msg)
}

func (e *PgError) Json() []byte {
	j, _ := json.Marshal(map[string]string{
		"table": e.table,
		"code":  "pg:" + e.Code,
		"msg":   e.Msg,
	})
	return j
}

func NewPgError(table string, code string, msg string, a ...interface{}) *PgError {
	return &PgError{table: table, Code: code, Msg: fmt.Sprintf(msg, a...)}
}
