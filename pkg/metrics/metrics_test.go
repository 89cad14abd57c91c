package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveDB(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry(), "clinic")

	m.ObserveDB("list_by_doctor", 0.01, nil)
	m.ObserveDB("list_by_doctor", 0.02, errors.New("timeout"))
	m.ObserveDB("list_by_doctor", 0.01, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.DatabaseOperations.WithLabelValues("list_by_doctor", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DatabaseOperations.WithLabelValues("list_by_doctor", "error")))
}

func TestNewMetrics_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics(prometheus.NewRegistry(), "clinic")
		NewMetrics(prometheus.NewRegistry(), "clinic")
	})
}
