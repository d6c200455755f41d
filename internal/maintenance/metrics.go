package maintenance

import "github.com/prometheus/client_golang/prometheus"

var (
	retentionRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genbi_audit_retention_runs_total",
			Help: "Total number of audit retention runs by status.",
		},
		[]string{"status"},
	)
	auditRecordsPrunedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "genbi_audit_records_pruned_total",
			Help: "Total number of execution records deleted by audit retention.",
		},
	)
	integrityRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genbi_integrity_runs_total",
			Help: "Total number of dataset integrity check runs by status.",
		},
		[]string{"status"},
	)
	integrityTablesCheckedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "genbi_integrity_tables_checked_total",
			Help: "Total number of tables checked by dataset integrity validation.",
		},
	)
	integrityMissingTablesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "genbi_integrity_missing_tables_total",
			Help: "Total number of tables found without data files.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		retentionRunsTotal,
		auditRecordsPrunedTotal,
		integrityRunsTotal,
		integrityTablesCheckedTotal,
		integrityMissingTablesTotal,
	)
}
