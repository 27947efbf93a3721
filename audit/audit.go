// Package audit implements the mutation audit log spec.md §4.8 requires
// every card create/update/delete to emit: `(actor, action, registry,
// uid, timestamp)`. The sink is deliberately narrow, grounded on the same
// dialect-agnostic *sql.DB/sqlbuilder.Flavor pattern package telemetry
// uses, so the registry API layer can wire it without caring which of the
// three backends is in play.
package audit

import (
	"context"
	"database/sql"
	"time"

	"github.com/huandu/go-sqlbuilder"

	"github.com/opsml/registry/card"
	"github.com/opsml/registry/opsmlerr"
)

// Action enumerates the mutation kinds the catalog store exposes.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Event is one audit log entry.
type Event struct {
	Actor        string
	Action       Action
	RegistryType card.RegistryType
	UID          string
	Timestamp    time.Time
}

// Sink records audit events. The registry API layer never blocks a
// response on Sink.Record failing; it discards the error and proceeds, matching
// spec.md's "opaque to this spec" framing of the audit destination.
type Sink interface {
	Record(ctx context.Context, ev Event) error
}

const tableAuditLog = "opsml_audit_log"

// SQLSink persists audit events to a flat table, one row per event.
type SQLSink struct {
	db     *sql.DB
	flavor sqlbuilder.Flavor
}

// NewSQLSink wraps db for flavor.
func NewSQLSink(db *sql.DB, flavor sqlbuilder.Flavor) *SQLSink {
	return &SQLSink{db: db, flavor: flavor}
}

func (s *SQLSink) Record(ctx context.Context, ev Event) error {
	ib := sqlbuilder.NewInsertBuilder()
	ib.InsertInto(tableAuditLog)
	ib.Cols("actor", "action", "registry_type", "uid", "timestamp")
	ib.Values(ev.Actor, string(ev.Action), string(ev.RegistryType), ev.UID, ev.Timestamp)
	q, args := ib.BuildWithFlavor(s.flavor)
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "record audit event action=%s uid=%s", ev.Action, ev.UID)
	}
	return nil
}

// NoOpSink discards every event; used in tests and local single-user runs
// where nothing consumes the audit trail.
type NoOpSink struct{}

func (NoOpSink) Record(context.Context, Event) error { return nil }
