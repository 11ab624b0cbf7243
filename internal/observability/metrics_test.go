package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsRecordDecision(t *testing.T) {
	m := NewMetrics()

	m.RecordDecision(true)
	m.RecordDecision(false)
	m.RecordDecision(false)

	granted, denied := m.Decisions()
	assert.Equal(t, int64(1), granted)
	assert.Equal(t, int64(2), denied)
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	var m *Metrics

	m.RecordDecision(true)
	m.RecordRequest("/gate/verify-entry", "POST", 200, 0)
	m.RecordError("/gate/verify-entry", "POST", "UNAUTHORIZED")

	granted, denied := m.Decisions()
	assert.Zero(t, granted)
	assert.Zero(t, denied)
}
