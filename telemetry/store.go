package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/huandu/go-sqlbuilder"

	"github.com/opsml/registry/opsmlerr"
)

const (
	tableMetrics  = "opsml_experiment_metric"
	tableParams   = "opsml_experiment_parameter"
	tableHardware = "opsml_experiment_hardware_metric"
)

// Store persists and retrieves telemetry records for experiment cards. It
// is dialect-agnostic in the same way sqlstore.BaseClient is: callers pass
// a *sql.DB and a sqlbuilder.Flavor already selected by the catalog layer.
type Store struct {
	db     *sql.DB
	flavor sqlbuilder.Flavor
}

func NewStore(db *sql.DB, flavor sqlbuilder.Flavor) *Store {
	return &Store{db: db, flavor: flavor}
}

// InsertMetrics batch-inserts metric observations for one experiment.
func (s *Store) InsertMetrics(ctx context.Context, records []MetricRecord) error {
	if len(records) == 0 {
		return nil
	}
	ib := sqlbuilder.NewInsertBuilder()
	ib.InsertInto(tableMetrics)
	ib.Cols("experiment_uid", "name", "value", "step", "timestamp", "idx", "is_eval")
	for _, r := range records {
		ib.Values(r.ExperimentUID, r.Name, r.Value, r.Step, r.Timestamp, r.Idx, r.IsEval)
	}
	query, args := ib.BuildWithFlavor(s.flavor)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "insert metrics")
	}
	return nil
}

// InsertParameters batch-inserts parameter entries for one experiment.
func (s *Store) InsertParameters(ctx context.Context, records []ParameterRecord) error {
	if len(records) == 0 {
		return nil
	}
	ib := sqlbuilder.NewInsertBuilder()
	ib.InsertInto(tableParams)
	ib.Cols("experiment_uid", "name", "value")
	for _, r := range records {
		raw, err := json.Marshal(r.Value)
		if err != nil {
			return opsmlerr.Wrap(opsmlerr.InternalErr, err, "marshal parameter value for %s", r.Name)
		}
		ib.Values(r.ExperimentUID, r.Name, string(raw))
	}
	query, args := ib.BuildWithFlavor(s.flavor)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "insert parameters")
	}
	return nil
}

// InsertHardwareMetrics records one hardware utilization snapshot.
func (s *Store) InsertHardwareMetrics(ctx context.Context, r HardwareMetricsRecord) error {
	perCore, err := json.Marshal(r.CPUPercentPerCore)
	if err != nil {
		return opsmlerr.Wrap(opsmlerr.InternalErr, err, "marshal cpu_percent_per_core")
	}
	ib := sqlbuilder.NewInsertBuilder()
	ib.InsertInto(tableHardware)
	ib.Cols(
		"experiment_uid", "cpu_percent_utilization", "cpu_percent_per_core",
		"free_memory", "total_memory", "used_memory", "available_memory",
		"used_percent_memory", "bytes_recv", "bytes_sent",
	)
	ib.Values(
		r.ExperimentUID, r.CPUPercentUtilization, string(perCore),
		r.FreeMemory, r.TotalMemory, r.UsedMemory, r.AvailableMemory,
		r.UsedPercentMemory, r.BytesRecv, r.BytesSent,
	)
	query, args := ib.BuildWithFlavor(s.flavor)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "insert hardware metric")
	}
	return nil
}

// Metrics returns every metric observation logged for an experiment,
// optionally filtered to a subset of names (nil/empty means all names).
func (s *Store) Metrics(ctx context.Context, experimentUID string, names []string) ([]MetricRecord, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("experiment_uid", "name", "value", "step", "timestamp", "created_at", "idx", "is_eval")
	sb.From(tableMetrics)
	sb.Where(sb.Equal("experiment_uid", experimentUID))
	if len(names) > 0 {
		in := make([]interface{}, len(names))
		for i, n := range names {
			in[i] = n
		}
		sb.Where(sb.In("name", in...))
	}
	sb.OrderBy("idx")
	query, args := sb.BuildWithFlavor(s.flavor)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "query metrics")
	}
	defer rows.Close()

	var out []MetricRecord
	for rows.Next() {
		var r MetricRecord
		if err := rows.Scan(&r.ExperimentUID, &r.Name, &r.Value, &r.Step, &r.Timestamp, &r.CreatedAt, &r.Idx, &r.IsEval); err != nil {
			return nil, opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "scan metric row")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Parameters returns every parameter entry logged for an experiment.
func (s *Store) Parameters(ctx context.Context, experimentUID string) ([]ParameterRecord, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("experiment_uid", "name", "value")
	sb.From(tableParams)
	sb.Where(sb.Equal("experiment_uid", experimentUID))
	query, args := sb.BuildWithFlavor(s.flavor)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "query parameters")
	}
	defer rows.Close()

	var out []ParameterRecord
	for rows.Next() {
		var (
			r   ParameterRecord
			raw []byte
		)
		if err := rows.Scan(&r.ExperimentUID, &r.Name, &raw); err != nil {
			return nil, opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "scan parameter row")
		}
		if err := json.Unmarshal(raw, &r.Value); err != nil {
			return nil, opsmlerr.Wrap(opsmlerr.InternalErr, err, "unmarshal parameter value for %s", r.Name)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// HardwareMetrics returns every hardware snapshot logged for an experiment,
// oldest first.
func (s *Store) HardwareMetrics(ctx context.Context, experimentUID string) ([]HardwareMetricsRecord, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(
		"experiment_uid", "created_at", "cpu_percent_utilization", "cpu_percent_per_core",
		"free_memory", "total_memory", "used_memory", "available_memory",
		"used_percent_memory", "bytes_recv", "bytes_sent",
	)
	sb.From(tableHardware)
	sb.Where(sb.Equal("experiment_uid", experimentUID))
	sb.OrderBy("created_at")
	query, args := sb.BuildWithFlavor(s.flavor)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "query hardware metrics")
	}
	defer rows.Close()

	var out []HardwareMetricsRecord
	for rows.Next() {
		var (
			r       HardwareMetricsRecord
			perCore []byte
		)
		if err := rows.Scan(
			&r.ExperimentUID, &r.CreatedAt, &r.CPUPercentUtilization, &perCore,
			&r.FreeMemory, &r.TotalMemory, &r.UsedMemory, &r.AvailableMemory,
			&r.UsedPercentMemory, &r.BytesRecv, &r.BytesSent,
		); err != nil {
			return nil, opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "scan hardware metric row")
		}
		if err := json.Unmarshal(perCore, &r.CPUPercentPerCore); err != nil {
			return nil, opsmlerr.Wrap(opsmlerr.InternalErr, err, "unmarshal cpu_percent_per_core")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
