// Package stdmod declares the standard bound modules shipped with pyrite.
// They are registered through the same assembler as generated modules, so
// they double as a permanent exerciser of the binding layer.
package stdmod

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/funvibe/pyrite/internal/bind"
	"github.com/funvibe/pyrite/internal/meta"
	"github.com/funvibe/pyrite/internal/rt"
)

// errUnknownHandle is matched by name in the module's error table.
var errUnknownHandle = errors.New("unknown handle")

// dbState holds open connections keyed by opaque uuid handles, so scripts
// never hold Go pointers.
type dbState struct {
	conns map[string]*sql.DB
}

// DBModule declares the sqlite access module.
func DBModule() *bind.ModuleDef {
	s := &dbState{conns: make(map[string]*sql.DB)}
	return &bind.ModuleDef{
		Name: "db",
		Doc:  "SQLite access through database/sql.",
		Errors: []bind.ExcDef{
			{Name: "DatabaseError"},
		},
		ErrTable: []meta.ErrCase{
			{Name: "unknown handle", Exception: "DatabaseError", Message: "unknown connection handle"},
		},
		Functions: []bind.FuncDef{
			{Name: "open", Doc: "open(path) -> handle", Fn: s.open},
			{Name: "exec", Doc: "exec(handle, sql) -> affected rows", Fn: s.exec},
			{Name: "query", Doc: "query(handle, sql) -> list of row dicts", Fn: s.query},
			{Name: "close", Doc: "close(handle)", Fn: s.close},
		},
	}
}

func (s *dbState) open(path string) (string, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	id := uuid.NewString()
	s.conns[id] = db
	return id, nil
}

func (s *dbState) exec(handle, stmt string) (int64, error) {
	db, ok := s.conns[handle]
	if !ok {
		return 0, errUnknownHandle
	}
	res, err := db.Exec(stmt)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

// query runs a statement and marshals each row to a dict keyed by column
// name. The result list is owned by the caller.
func (s *dbState) query(r *rt.Runtime, handle, stmt string) (rt.Object, error) {
	db, ok := s.conns[handle]
	if !ok {
		return nil, errUnknownHandle
	}
	rows, err := db.Query(stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := rt.NewList(0)
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			rt.Decref(out)
			return nil, err
		}
		row := rt.NewDict()
		for i, col := range cols {
			cell := columnObject(vals[i])
			if err := row.SetString(r, col, cell); err != nil {
				rt.Decref(cell)
				rt.Decref(row)
				rt.Decref(out)
				return nil, err
			}
			rt.Decref(cell)
		}
		out.Append(row)
		rt.Decref(row)
	}
	if err := rows.Err(); err != nil {
		rt.Decref(out)
		return nil, err
	}
	return out, nil
}

func (s *dbState) close(handle string) error {
	db, ok := s.conns[handle]
	if !ok {
		return errUnknownHandle
	}
	delete(s.conns, handle)
	return db.Close()
}

// columnObject converts one scanned cell to an owned runtime object.
func columnObject(v interface{}) rt.Object {
	switch cell := v.(type) {
	case nil:
		return rt.NewRef(rt.None)
	case int64:
		return rt.NewInt(cell)
	case float64:
		return rt.NewFloat(cell)
	case bool:
		return rt.NewBool(cell)
	case []byte:
		return rt.NewBytes(cell)
	case string:
		return rt.NewStr(cell)
	case time.Time:
		return rt.NewStr(cell.Format(time.RFC3339Nano))
	}
	return rt.NewStr(fmt.Sprintf("%v", v))
}
