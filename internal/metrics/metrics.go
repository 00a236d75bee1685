// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StatementsCompiled counts SQL statements produced, by mode.
	StatementsCompiled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlgraph_statements_compiled_total",
			Help: "Total number of SQL statements compiled from query trees",
		},
		[]string{"mode"},
	)

	// CompileDuration measures the time to compile one path.
	CompileDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlgraph_compile_duration_seconds",
			Help:    "Duration of compiling one path into SQL",
			Buckets: []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		},
		[]string{"mode"},
	)

	// StatementsExecuted counts statements run by the materializer, by mode
	// and outcome.
	StatementsExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlgraph_statements_executed_total",
			Help: "Total number of compiled statements executed",
		},
		[]string{"mode", "status"},
	)

	// RowsDecoded counts result rows turned into elements.
	RowsDecoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlgraph_rows_decoded_total",
			Help: "Total number of result rows decoded into elements",
		},
		[]string{"mode"},
	)

	// BulkValues counts values streamed into bulk membership tables.
	BulkValues = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlgraph_bulk_values_total",
			Help: "Total number of values loaded into temporary membership tables",
		},
	)

	// OpenStatements is the number of prepared statements currently open.
	OpenStatements = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sqlgraph_open_statements",
			Help: "Prepared statements currently held open by result iterators",
		},
	)
)
