package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/invoicestack/invoice-processor/internal/core/domain"
)

// PipelineMetrics observes document extraction and email import runs. It
// satisfies the pipeline observer port and is safe for concurrent use.
type PipelineMetrics struct {
	registry *prometheus.Registry
	service  string

	documentsTotal   *prometheus.CounterVec
	extractDuration  *prometheus.HistogramVec
	importRunsTotal  prometheus.Counter
	importEmails     prometheus.Counter
	importStacks     prometheus.Counter
	importDocuments  prometheus.Counter
	importPartials   prometheus.Counter
	importErrors     prometheus.Counter
}

func NewPipelineMetrics(service string) *PipelineMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	documentsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "invproc",
			Subsystem: "pipeline",
			Name:      "documents_processed_total",
			Help:      "Total documents pushed through extraction by final status.",
		},
		[]string{"service", "status"},
	)
	extractDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "invproc",
			Subsystem: "pipeline",
			Name:      "document_extraction_duration_seconds",
			Help:      "Per-document extraction duration in seconds by final status.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"service", "status"},
	)
	importRunsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "invproc", Subsystem: "import", Name: "runs_total",
		Help: "Total email import runs.", ConstLabels: constLabels,
	})
	importEmails := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "invproc", Subsystem: "import", Name: "emails_found_total",
		Help: "Total unread emails found across import runs.", ConstLabels: constLabels,
	})
	importStacks := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "invproc", Subsystem: "import", Name: "stacks_created_total",
		Help: "Total stacks created from imported emails.", ConstLabels: constLabels,
	})
	importDocuments := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "invproc", Subsystem: "import", Name: "documents_created_total",
		Help: "Total documents created from imported emails.", ConstLabels: constLabels,
	})
	importPartials := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "invproc", Subsystem: "import", Name: "partial_failures_total",
		Help: "Total attachments skipped during otherwise successful imports.", ConstLabels: constLabels,
	})
	importErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "invproc", Subsystem: "import", Name: "errors_total",
		Help: "Total emails or sources that failed during import.", ConstLabels: constLabels,
	})

	registry.MustRegister(documentsTotal, extractDuration, importRunsTotal,
		importEmails, importStacks, importDocuments, importPartials, importErrors)

	return &PipelineMetrics{
		registry:        registry,
		service:         service,
		documentsTotal:  documentsTotal,
		extractDuration: extractDuration,
		importRunsTotal: importRunsTotal,
		importEmails:    importEmails,
		importStacks:    importStacks,
		importDocuments: importDocuments,
		importPartials:  importPartials,
		importErrors:    importErrors,
	}
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PipelineMetrics) DocumentProcessed(status domain.ExtractionStatus, elapsed time.Duration) {
	m.documentsTotal.WithLabelValues(m.service, string(status)).Inc()
	m.extractDuration.WithLabelValues(m.service, string(status)).Observe(elapsed.Seconds())
}

func (m *PipelineMetrics) ImportCompleted(report domain.ImportReport) {
	m.importRunsTotal.Inc()
	m.importEmails.Add(float64(report.EmailsFound))
	m.importStacks.Add(float64(report.StacksCreated))
	m.importDocuments.Add(float64(report.DocumentsCreated))
	m.importPartials.Add(float64(report.PartialFailures))
	m.importErrors.Add(float64(report.Errors))
}
