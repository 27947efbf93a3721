package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistersCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.CardInserts.WithLabelValues("model").Inc()
	r.UploadBytes.WithLabelValues("s3").Add(1024)
	r.ActiveUploads.Set(3)

	if got := testutil.ToFloat64(r.CardInserts.WithLabelValues("model")); got != 1 {
		t.Errorf("CardInserts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.UploadBytes.WithLabelValues("s3")); got != 1024 {
		t.Errorf("UploadBytes = %v, want 1024", got)
	}
	if got := testutil.ToFloat64(r.ActiveUploads); got != 3 {
		t.Errorf("ActiveUploads = %v, want 3", got)
	}
}
