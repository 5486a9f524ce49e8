// Package metrics records pipeline outcomes and inference usage as
// Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Koba-gh/bedrock-json-cdk/internal/providers"
)

const namespace = "pcspecs"

// Recorder owns a set of pipeline metrics registered on one registry.
type Recorder struct {
	registry *prometheus.Registry

	ObjectsProcessed  *prometheus.CounterVec
	ProcessDuration   *prometheus.HistogramVec
	InferenceDuration *prometheus.HistogramVec
	InferenceTokens   *prometheus.CounterVec
	Errors            *prometheus.CounterVec
}

// NewRecorder registers the pipeline metrics on a fresh registry, along
// with the Go runtime and process collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		ObjectsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "objects_processed_total",
				Help:      "Objects processed, by outcome and media kind",
			},
			[]string{"status", "media"},
		),
		ProcessDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "process_duration_seconds",
				Help:      "End-to-end time to process one object",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"status"},
		),
		InferenceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "inference_duration_seconds",
				Help:      "Duration of inference API calls",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"provider", "model"},
		),
		InferenceTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "inference_tokens_total",
				Help:      "Tokens consumed by inference calls",
			},
			[]string{"provider", "direction"},
		),
		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Processing errors by class",
			},
			[]string{"class"},
		),
	}
}

// Registry returns the registry for exposition.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// RecordLLMCall records duration and token usage of one inference call.
func (r *Recorder) RecordLLMCall(result *providers.ChatResult) {
	if r == nil || result == nil {
		return
	}
	r.InferenceDuration.WithLabelValues(result.Provider, result.ModelUsed).Observe(result.ExecutionTime.Seconds())
	r.InferenceTokens.WithLabelValues(result.Provider, "input").Add(float64(result.PromptTokens))
	r.InferenceTokens.WithLabelValues(result.Provider, "output").Add(float64(result.CompletionTokens))
}

// RecordObject records the outcome of processing one object. class is empty
// on success.
func (r *Recorder) RecordObject(media, class string, took time.Duration) {
	if r == nil {
		return
	}
	status := "success"
	if class != "" {
		status = "error"
		r.Errors.WithLabelValues(class).Inc()
	}
	if media == "" {
		media = "unknown"
	}
	r.ObjectsProcessed.WithLabelValues(status, media).Inc()
	r.ProcessDuration.WithLabelValues(status).Observe(took.Seconds())
}
