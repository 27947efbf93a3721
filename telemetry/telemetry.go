// Package telemetry implements the experiment metric, parameter, and
// hardware-metrics records (spec.md §3's experiment card sub-tables):
// per-step metrics, tagged-scalar parameters, and periodic hardware
// snapshots recorded against an experiment card's uid.
package telemetry

import "time"

// ParameterKind discriminates the scalar type carried by a ParameterValue,
// mirroring the original's ParameterValue::{Int,Float,String} enum.
type ParameterKind string

const (
	ParamInt    ParameterKind = "int"
	ParamFloat  ParameterKind = "float"
	ParamString ParameterKind = "string"
)

// ParameterValue is a tagged scalar: exactly one of IntVal, FloatVal, or
// StrVal is meaningful, selected by Kind.
type ParameterValue struct {
	Kind     ParameterKind `json:"kind"`
	IntVal   int64         `json:"int_val,omitempty"`
	FloatVal float64       `json:"float_val,omitempty"`
	StrVal   string        `json:"str_val,omitempty"`
}

func IntValue(v int64) ParameterValue     { return ParameterValue{Kind: ParamInt, IntVal: v} }
func FloatValue(v float64) ParameterValue { return ParameterValue{Kind: ParamFloat, FloatVal: v} }
func StringValue(v string) ParameterValue { return ParameterValue{Kind: ParamString, StrVal: v} }

// MetricRecord is one (name, value) observation for an experiment, with an
// optional step (for curves logged across training iterations) and an
// optional client-supplied timestamp distinct from the row's created_at.
type MetricRecord struct {
	ExperimentUID string    `json:"experiment_uid"`
	Name          string    `json:"name"`
	Value         float64   `json:"value"`
	Step          *int32    `json:"step,omitempty"`
	Timestamp     *int64    `json:"timestamp,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	Idx           *int32    `json:"idx,omitempty"`
	IsEval        bool      `json:"is_eval"`
}

// ParameterRecord is one (name, value) hyperparameter entry for an
// experiment. Unlike metrics, parameters are logged once and not stepped.
type ParameterRecord struct {
	ExperimentUID string         `json:"experiment_uid"`
	Name          string         `json:"name"`
	Value         ParameterValue `json:"value"`
}

// HardwareMetricsRecord is a single point-in-time resource utilization
// snapshot taken while an experiment runs, polled on an interval by the
// experiment's own process and pushed to the registry.
type HardwareMetricsRecord struct {
	ExperimentUID        string    `json:"experiment_uid"`
	CreatedAt            time.Time `json:"created_at"`
	CPUPercentUtilization float32   `json:"cpu_percent_utilization"`
	CPUPercentPerCore     []float32 `json:"cpu_percent_per_core"`
	FreeMemory            int64     `json:"free_memory"`
	TotalMemory           int64     `json:"total_memory"`
	UsedMemory            int64     `json:"used_memory"`
	AvailableMemory       int64     `json:"available_memory"`
	UsedPercentMemory     float64   `json:"used_percent_memory"`
	BytesRecv             int64     `json:"bytes_recv"`
	BytesSent             int64     `json:"bytes_sent"`
}
