package httpapi

import (
	"net/http"

	"github.com/opsml/registry/opsmlerr"
	"github.com/opsml/registry/telemetry"
)

// metricRequest is the body of PUT /run/metrics.
type metricRequest struct {
	ExperimentUID string                    `json:"experiment_uid"`
	Metrics       []telemetry.MetricRecord  `json:"metrics"`
}

type getMetricRequest struct {
	ExperimentUID string   `json:"experiment_uid"`
	Names         []string `json:"names,omitempty"`
}

func (s *Server) handleMetricsPut(w http.ResponseWriter, r *http.Request) {
	if s.telemetry == nil {
		writeError(w, opsmlerr.New(opsmlerr.InternalErr, "telemetry store not configured"))
		return
	}
	var req metricRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	for i := range req.Metrics {
		req.Metrics[i].ExperimentUID = req.ExperimentUID
	}
	if err := s.telemetry.InsertMetrics(r.Context(), req.Metrics); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleMetricsGet(w http.ResponseWriter, r *http.Request) {
	if s.telemetry == nil {
		writeError(w, opsmlerr.New(opsmlerr.InternalErr, "telemetry store not configured"))
		return
	}
	var req getMetricRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	records, err := s.telemetry.Metrics(r.Context(), req.ExperimentUID, req.Names)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

type parameterRequest struct {
	ExperimentUID string                      `json:"experiment_uid"`
	Parameters    []telemetry.ParameterRecord `json:"parameters"`
}

type getParameterRequest struct {
	ExperimentUID string `json:"experiment_uid"`
}

func (s *Server) handleParametersPut(w http.ResponseWriter, r *http.Request) {
	if s.telemetry == nil {
		writeError(w, opsmlerr.New(opsmlerr.InternalErr, "telemetry store not configured"))
		return
	}
	var req parameterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	for i := range req.Parameters {
		req.Parameters[i].ExperimentUID = req.ExperimentUID
	}
	if err := s.telemetry.InsertParameters(r.Context(), req.Parameters); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleParametersGet(w http.ResponseWriter, r *http.Request) {
	if s.telemetry == nil {
		writeError(w, opsmlerr.New(opsmlerr.InternalErr, "telemetry store not configured"))
		return
	}
	var req getParameterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	records, err := s.telemetry.Parameters(r.Context(), req.ExperimentUID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

type hardwareMetricRequest struct {
	Metrics []telemetry.HardwareMetricsRecord `json:"metrics"`
}

func (s *Server) handleHardwarePut(w http.ResponseWriter, r *http.Request) {
	if s.telemetry == nil {
		writeError(w, opsmlerr.New(opsmlerr.InternalErr, "telemetry store not configured"))
		return
	}
	var req hardwareMetricRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	for _, m := range req.Metrics {
		if err := s.telemetry.InsertHardwareMetrics(r.Context(), m); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleHardwareGet(w http.ResponseWriter, r *http.Request) {
	if s.telemetry == nil {
		writeError(w, opsmlerr.New(opsmlerr.InternalErr, "telemetry store not configured"))
		return
	}
	experimentUID := r.URL.Query().Get("experiment_uid")
	if experimentUID == "" {
		writeError(w, opsmlerr.New(opsmlerr.InvalidRequest, "experiment_uid is required"))
		return
	}
	records, err := s.telemetry.HardwareMetrics(r.Context(), experimentUID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}
