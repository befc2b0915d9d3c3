// Package observability exposes Prometheus counters for the storage layer.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	storageWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "liftlog",
		Subsystem: "storage",
		Name:      "writes_total",
		Help:      "Whole-collection writes to the key-value store, by logical key.",
	}, []string{"key"})
	quotaExceeded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "liftlog",
		Subsystem: "storage",
		Name:      "quota_exceeded_total",
		Help:      "Writes rejected because the store quota was exhausted.",
	})
	droppedRecords = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "liftlog",
		Subsystem: "storage",
		Name:      "dropped_records_total",
		Help:      "Stored workout records skipped on read because they failed validation.",
	})
	factoryFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "liftlog",
		Subsystem: "factory",
		Name:      "fallbacks_total",
		Help:      "Times the service factory fell back to the local backend.",
	})
	migrations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "liftlog",
		Name:      "migrations_total",
		Help:      "Schema, backend and legacy-data migrations, by kind and result.",
	}, []string{"kind", "result"})
	importRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "liftlog",
		Name:      "import_records_total",
		Help:      "Records seen by import, by outcome (imported, duplicate, invalid).",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(storageWrites, quotaExceeded, droppedRecords, factoryFallbacks, migrations, importRecords)
}

// RecordStorageWrite counts a write to the logical key (without user scope).
func RecordStorageWrite(key string) {
	storageWrites.WithLabelValues(key).Inc()
}

// RecordQuotaExceeded counts a rejected write.
func RecordQuotaExceeded() {
	quotaExceeded.Inc()
}

// RecordDroppedRecords counts invalid records skipped on read.
func RecordDroppedRecords(n int) {
	if n <= 0 {
		return
	}
	droppedRecords.Add(float64(n))
}

// RecordFallback counts a fallback to the local backend.
func RecordFallback() {
	factoryFallbacks.Inc()
}

// RecordMigration counts a migration attempt. kind is schema, backend or
// legacy.
func RecordMigration(kind string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	migrations.WithLabelValues(kind, result).Inc()
}

// RecordImport counts import outcomes.
func RecordImport(imported, duplicates, invalid int) {
	if imported > 0 {
		importRecords.WithLabelValues("imported").Add(float64(imported))
	}
	if duplicates > 0 {
		importRecords.WithLabelValues("duplicate").Add(float64(duplicates))
	}
	if invalid > 0 {
		importRecords.WithLabelValues("invalid").Add(float64(invalid))
	}
}
