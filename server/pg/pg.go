package pg

import (
	"bytes"
	"database/sql"
	"sort"
	"strconv"
	"strings"
	"text/template"

	"github.com/jackc/pgconn"
	_ "github.com/jackc/pgx/v4/stdlib" // needed for proper driver work
	pkgerrors "github.com/pkg/errors"

	"tether/logger"
	"tether/server/pg/dml_info"
	"tether/server/record"
	"tether/server/schema"
)

const (
	ErrTemplateFailed   = "template_failed"
	ErrDMLFailed        = "dml_failed"
	ErrValueDuplication = "duplicated_value_error"
	ErrKeyValueNotFound = "key_value_not_found"
)

const (
	templInsert = `INSERT INTO {{.Table}} {{if not .Cols}}DEFAULT VALUES{{end}}{{if .Cols}}({{join .Cols ", "}}) VALUES ({{.Binds}}){{end}}{{if .RCols}} RETURNING {{join .RCols ", "}}{{end}}`
	templSelect = `SELECT {{join .Cols ", "}} FROM {{.From}}{{if .Where}} WHERE {{.Where}}{{end}} LIMIT 1`
	templUpdate = `UPDATE {{.Table}} SET {{join .Values ", "}}{{if .Filters}} WHERE {{join .Filters " AND "}}{{end}}`
)

var funcs = template.FuncMap{"join": strings.Join}
var parsedTemplInsert = template.Must(template.New("dml_insert").Funcs(funcs).Parse(templInsert))
var parsedTemplSelect = template.Must(template.New("dml_select").Funcs(funcs).Parse(templSelect))
var parsedTemplUpdate = template.Must(template.New("dml_update").Funcs(funcs).Parse(templUpdate))

func NewDbConnection(connectionUrl string) (*sql.DB, error) {
	db, err := sql.Open("pgx", connectionUrl)
	if err != nil {
		logger.Error("Could not connect to Postgres: %s", err.Error())
		return nil, pkgerrors.Wrap(err, "opening database connection")
	}
	db.SetConnMaxLifetime(0)
	db.SetMaxIdleConns(50)
	db.SetMaxOpenConns(50)
	return db, nil
}

//Store hands out Postgres-backed collection handles. Every statement runs on
//its own pooled connection; there is no cross-statement transaction.
type Store struct {
	db          *sql.DB
	schemaStore *schema.SchemaStore
}

func NewStore(db *sql.DB, schemaStore *schema.SchemaStore) *Store {
	return &Store{db: db, schemaStore: schemaStore}
}

func (store *Store) Collection(name string) (record.Collection, error) {
	descriptor, err := store.schemaStore.Get(name)
	if err != nil {
		return nil, err
	}
	return &collection{db: store.db, descriptor: descriptor}, nil
}

type collection struct {
	db         *sql.DB
	descriptor *schema.Collection
}

func (c *collection) Identity() string {
	return c.descriptor.Name
}

func (c *collection) Descriptor() *schema.Collection {
	return c.descriptor
}

func (c *collection) Create(values map[string]interface{}) (map[string]interface{}, error) {
	columns, binds := mapColumns(values)
	statement, err := InsertStatement(c.tableName(), columns, c.returningColumns())
	if err != nil {
		return nil, err
	}
	logger.Debug("Insert statement: %s", statement)

	rows, err := c.db.Query(statement, binds...)
	if err != nil {
		return nil, c.wrapDMLError(err)
	}
	defer rows.Close()

	created, err := scanSingleRow(rows)
	if err != nil {
		return nil, c.wrapDMLError(err)
	}
	if created == nil {
		return nil, NewPgError(c.descriptor.Name, ErrDMLFailed, "Insert returned no row")
	}
	return created, nil
}

func (c *collection) Update(criteria map[string]interface{}, values map[string]interface{}) error {
	statement, binds, err := UpdateStatement(c.tableName(), values, criteria)
	if err != nil {
		return err
	}
	logger.Debug("Update statement: %s", statement)

	result, err := c.db.Exec(statement, binds...)
	if err != nil {
		return c.wrapDMLError(err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return NewPgError(c.descriptor.Name, ErrKeyValueNotFound, "No record matches %v", criteria)
	}
	return nil
}

func (c *collection) FindOne(criteria map[string]interface{}) (map[string]interface{}, error) {
	statement, binds, err := SelectStatement(c.tableName(), c.returningColumns(), criteria)
	if err != nil {
		return nil, err
	}
	logger.Debug("Select statement: %s", statement)

	rows, err := c.db.Query(statement, binds...)
	if err != nil {
		return nil, c.wrapDMLError(err)
	}
	defer rows.Close()
	return scanSingleRow(rows)
}

func (c *collection) tableName() string {
	return dml_info.EscapeColumn(c.descriptor.Name)
}

func (c *collection) returningColumns() []string {
	columns := make([]string, 0, len(c.descriptor.Attributes))
	for _, attribute := range c.descriptor.Attributes {
		if attribute.IsAssociation() {
			continue
		}
		columnName := attribute.ColumnName
		if columnName == "" {
			columnName = attribute.Name
		}
		columns = append(columns, columnName)
	}
	return columns
}

func (c *collection) wrapDMLError(err error) error {
	if pgError, ok := err.(*pgconn.PgError); ok {
		switch pgError.Code {
		case "23505":
			return NewPgError(c.descriptor.Name, ErrValueDuplication, pgError.Error())
		default:
			return NewPgError(c.descriptor.Name, ErrDMLFailed, pgError.Error())
		}
	}
	return pkgerrors.Wrapf(err, "executing statement on '%s'", c.descriptor.Name)
}

//InsertStatement renders an INSERT with positional binds and an optional
//RETURNING list.
func InsertStatement(table string, columns []string, returning []string) (string, error) {
	info := struct {
		Table string
		Cols  []string
		Binds string
		RCols []string
	}{
		Table: table,
		Cols:  dml_info.EscapeColumns(columns),
		Binds: dml_info.BindValues(1, len(columns)),
		RCols: dml_info.EscapeColumns(returning),
	}
	var statement bytes.Buffer
	if err := parsedTemplInsert.Execute(&statement, info); err != nil {
		return "", NewPgError(table, ErrTemplateFailed, err.Error())
	}
	return statement.String(), nil
}

//SelectStatement renders a single-row lookup filtered by the criteria keys.
func SelectStatement(table string, columns []string, criteria map[string]interface{}) (string, []interface{}, error) {
	filterKeys, binds := mapColumns(criteria)
	whereExpression := ""
	for i, key := range filterKeys {
		if i > 0 {
			whereExpression += " AND "
		}
		whereExpression += dml_info.EscapeColumn(key) + "=$" + strconv.Itoa(i+1)
	}
	info := struct {
		Cols  []string
		From  string
		Where string
	}{
		Cols:  dml_info.EscapeColumns(columns),
		From:  table,
		Where: whereExpression,
	}
	var statement bytes.Buffer
	if err := parsedTemplSelect.Execute(&statement, info); err != nil {
		return "", nil, NewPgError(table, ErrTemplateFailed, err.Error())
	}
	return statement.String(), binds, nil
}

//UpdateStatement renders an UPDATE of the value columns filtered by the
//criteria keys; binds cover values first, criteria after.
func UpdateStatement(table string, values map[string]interface{}, criteria map[string]interface{}) (string, []interface{}, error) {
	valueKeys, valueBinds := mapColumns(values)
	filterKeys, filterBinds := mapColumns(criteria)

	setExpressions := make([]string, 0, len(valueKeys))
	for i, key := range valueKeys {
		setExpressions = append(setExpressions, dml_info.EscapeColumn(key)+"=$"+strconv.Itoa(i+1))
	}
	filterExpressions := make([]string, 0, len(filterKeys))
	for i, key := range filterKeys {
		filterExpressions = append(filterExpressions, dml_info.EscapeColumn(key)+"=$"+strconv.Itoa(len(valueKeys)+i+1))
	}

	info := struct {
		Table   string
		Values  []string
		Filters []string
	}{
		Table:   table,
		Values:  setExpressions,
		Filters: filterExpressions,
	}
	var statement bytes.Buffer
	if err := parsedTemplUpdate.Execute(&statement, info); err != nil {
		return "", nil, NewPgError(table, ErrTemplateFailed, err.Error())
	}
	return statement.String(), append(valueBinds, filterBinds...), nil
}

//mapColumns flattens a value map into a deterministic column list and the
//matching bind values.
func mapColumns(values map[string]interface{}) ([]string, []interface{}) {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	//stable statement text regardless of map iteration order
	sort.Strings(keys)
	binds := make([]interface{}, 0, len(keys))
	for _, key := range keys {
		binds = append(binds, values[key])
	}
	return keys, binds
}

func scanSingleRow(rows *sql.Rows) (map[string]interface{}, error) {
	if !rows.Next() {
		return nil, rows.Err()
	}
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	holders := make([]interface{}, len(columns))
	for i := range holders {
		holders[i] = new(interface{})
	}
	if err := rows.Scan(holders...); err != nil {
		return nil, err
	}
	row := make(map[string]interface{}, len(columns))
	for i, column := range columns {
		row[column] = *(holders[i].(*interface{}))
	}
	return row, nil
}
