package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	adminOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantdb_admin_operations_total",
			Help: "Total number of tenant database operations by kind and outcome.",
		},
		[]string{"operation", "outcome"},
	)
	adminOperationDurationMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tenantdb_admin_operation_duration_ms",
			Help:    "Tenant database operation latency in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 15000, 60000},
		},
		[]string{"operation"},
	)
	importStatementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantdb_import_statements_total",
			Help: "Total number of imported SQL statements by outcome.",
		},
		[]string{"outcome"},
	)
	exportBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tenantdb_export_bytes_total",
			Help: "Total number of SQL dump bytes written by exports.",
		},
	)
	resetTablesDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tenantdb_reset_tables_dropped_total",
			Help: "Total number of tables dropped by database resets.",
		},
	)
	tenantPoolsOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tenantdb_tenant_pools_open",
			Help: "Current number of open per-project connection pools.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		adminOperationsTotal,
		adminOperationDurationMs,
		importStatementsTotal,
		exportBytesTotal,
		resetTablesDroppedTotal,
		tenantPoolsOpen,
	)
}

// ObserveAdminOperation records one catalog, read, query, export, import or
// reset call. outcome is "ok" or a short error class.
func ObserveAdminOperation(operation, outcome string, elapsed time.Duration) {
	adminOperationsTotal.WithLabelValues(operation, outcome).Inc()
	adminOperationDurationMs.WithLabelValues(operation).Observe(float64(elapsed.Milliseconds()))
}

func ObserveImportStatements(succeeded, failed int) {
	if succeeded > 0 {
		importStatementsTotal.WithLabelValues("ok").Add(float64(succeeded))
	}
	if failed > 0 {
		importStatementsTotal.WithLabelValues("failed").Add(float64(failed))
	}
}

func AddExportBytes(n int64) {
	if n > 0 {
		exportBytesTotal.Add(float64(n))
	}
}

func AddResetTablesDropped(n int) {
	if n > 0 {
		resetTablesDroppedTotal.Add(float64(n))
	}
}

func SetTenantPoolsOpen(n int) {
	if n < 0 {
		n = 0
	}
	tenantPoolsOpen.Set(float64(n))
}
