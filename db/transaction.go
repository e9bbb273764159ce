package db

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nickyhof/SchemaDB/core"
	"github.com/nickyhof/SchemaDB/sql"
)

// mutation is one buffered write, recorded after it succeeded against the
// transaction's working copy.
type mutation struct {
	Operation Operation
	Table     core.TableKey
	Row       core.Row        // INSERT
	Updates   []sql.SetClause // UPDATE, already coerced
	Where     *sql.Condition  // UPDATE, DELETE
	Serial    int64           // serial counter after the write
}

// Transaction is the pending-mutation buffer held between BEGIN and
// COMMIT or ROLLBACK. Writes land on working copies of the touched tables;
// reads inside the transaction see those copies.
type Transaction struct {
	ID        string
	StartedAt time.Time

	mutations []mutation
	working   map[core.TableKey]*core.Table
}

func newTransaction() *Transaction {
	return &Transaction{
		ID:        uuid.NewString(),
		StartedAt: timeNow(),
		working:   make(map[core.TableKey]*core.Table),
	}
}

// Pending returns how many writes are buffered.
func (tx *Transaction) Pending() int {
	return len(tx.mutations)
}

// Catalog layers the transaction's working copies over model.
func (tx *Transaction) Catalog(model *core.Model) Catalog {
	return txCatalog{model: model, tx: tx}
}

func (tx *Transaction) stage(table *core.Table, change mutation) {
	tx.working[canonicalKey(table.Key())] = table
	tx.mutations = append(tx.mutations, change)
}

// commit replays the buffered writes in issuance order on copies of the
// base tables and swaps them in only when every write applies.
func (tx *Transaction) commit(model *core.Model) error {
	replayed := make(map[core.TableKey]*core.Table)
	var order []core.TableKey

	for _, change := range tx.mutations {
		key := canonicalKey(change.Table)
		table, ok := replayed[key]
		if !ok {
			base, found := model.Table(change.Table.Schema, change.Table.Name)
			if !found {
				return &PlanError{Kind: UnknownTable, Table: change.Table.String()}
			}
			table = base.Clone()
			replayed[key] = table
			order = append(order, key)
		}

		switch change.Operation {
		case InsertOperation:
			table.Rows = append(table.Rows, change.Row.Clone())
			if err := checkUnique(table, []int{len(table.Rows) - 1}); err != nil {
				return err
			}
		case UpdateOperation:
			if _, err := updateRows(table, change.Updates, change.Where); err != nil {
				return err
			}
		case DeleteOperation:
			deleteRows(table, change.Where)
		}
		table.Serial = max(table.Serial, change.Serial)
	}

	for _, key := range order {
		if err := model.ReplaceTable(replayed[key]); err != nil {
			return err
		}
	}
	return nil
}

// rollback discards the buffer. Serial values handed out inside the
// transaction stay consumed.
func (tx *Transaction) rollback(model *core.Model) {
	for key, working := range tx.working {
		if base, ok := model.Table(key.Schema, key.Name); ok {
			base.Serial = max(base.Serial, working.Serial)
		}
	}
}

type txCatalog struct {
	model *core.Model
	tx    *Transaction
}

func (c txCatalog) Table(schema, name string) (*core.Table, bool) {
	base, ok := c.model.Table(schema, name)
	if !ok {
		return nil, false
	}
	if working, staged := c.tx.working[canonicalKey(base.Key())]; staged {
		return working, true
	}
	return base, true
}

func (c txCatalog) View(schema, name string) (*core.View, bool) {
	return c.model.View(schema, name)
}

// canonicalKey is the case-folded identity used for map lookups.
func canonicalKey(key core.TableKey) core.TableKey {
	return core.TableKey{Schema: strings.ToLower(key.Schema), Name: strings.ToLower(key.Name)}
}
