package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func Test_RecordRequest(t *testing.T) {
	registry := prometheus.NewRegistry()
	recorder := NewRecorder(registry)

	start := time.Now()
	recorder.RecordRequest("Pod", true, start)
	recorder.RecordRequest("Pod", true, start)
	recorder.RecordRequest("Deployment", false, start)

	assert.Equal(t, 2.0, testutil.ToFloat64(recorder.requests.WithLabelValues("Pod", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.requests.WithLabelValues("Deployment", "false")))
	assert.Equal(t, 0.0, testutil.ToFloat64(recorder.requests.WithLabelValues("Pod", "false")))
}

// registering twice on the same registry must panic via MustRegister
func Test_NewRecorder_duplicateRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewRecorder(registry)
	assert.Panics(t, func() { NewRecorder(registry) })
}
