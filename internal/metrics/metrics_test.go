package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_AllVariablesNonNil(t *testing.T) {
	t.Parallel()

	vars := []struct {
		name string
		val  any
	}{
		{"SchedulerRequestsTotal", SchedulerRequestsTotal},
		{"SchedulerFlushLatency", SchedulerFlushLatency},
		{"SchedulerQuotaRemaining", SchedulerQuotaRemaining},
		{"SchedulerQuotaWaitSeconds", SchedulerQuotaWaitSeconds},
		{"SchedulerPacingWaits", SchedulerPacingWaits},
		{"SchedulerTerminalErrors", SchedulerTerminalErrors},
		{"ScanCyclesTotal", ScanCyclesTotal},
		{"ScanListingsVisited", ScanListingsVisited},
		{"ScanCycleLatency", ScanCycleLatency},
		{"ScanWatermarkSeconds", ScanWatermarkSeconds},
		{"ScanPageEstimate", ScanPageEstimate},
		{"GeneratorRunsTotal", GeneratorRunsTotal},
		{"GeneratorRowsWritten", GeneratorRowsWritten},
		{"GeneratorLatency", GeneratorLatency},
		{"CacheReloadsTotal", CacheReloadsTotal},
		{"CacheLookupsTotal", CacheLookupsTotal},
		{"ValuationEvaluatedTotal", ValuationEvaluatedTotal},
		{"ValuationNotableTotal", ValuationNotableTotal},
		{"CollectorListingsUpserted", CollectorListingsUpserted},
		{"CollectorStatusTransitions", CollectorStatusTransitions},
		{"CollectorMalformedRows", CollectorMalformedRows},
		{"AlertsSentTotal", AlertsSentTotal},
		{"AlertBreakerState", AlertBreakerState},
		{"DBPoolOpen", DBPoolOpen},
		{"DBPoolInUse", DBPoolInUse},
		{"DBPoolIdle", DBPoolIdle},
		{"DBPoolWaitCount", DBPoolWaitCount},
	}

	for _, v := range vars {
		assert.NotNil(t, v.val, "metric %s should not be nil", v.name)
	}
}
