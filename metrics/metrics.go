package metrics

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/plugci/plugci/types"
)

const (
	MetricsNamespace = "plugci"
)

var (
	Debug                bool = true
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	stageResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "stage_results_total",
		Help:      "Count of pipeline stage outcomes",
	}, []string{
		"plugin",
		"stage",
		"result",
	})

	stageDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "stage_duration_seconds",
		Help:      "Duration of pipeline stages",
	}, []string{
		"plugin",
		"stage",
	})

	publishesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "publishes_total",
		Help:      "Count of published build reports",
	}, []string{
		"plugin",
		"kind",
	})

	mergeConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "merge_conflicts_total",
		Help:      "Count of duplicate-file conflicts during dist merges",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

// RecordStage records the outcome and duration of one pipeline stage.
func RecordStage(plugin, stage string, status types.StageStatus, duration time.Duration) {
	if Debug {
		log.Debug("metric stage",
			"plugin", plugin,
			"stage", stage,
			"result", status,
			"duration", duration,
		)
	}
	stageResults.WithLabelValues(plugin, stage, string(status)).Inc()
	stageDuration.WithLabelValues(plugin, stage).Set(duration.Seconds())
}

// RecordPublish records one successfully published build report.
func RecordPublish(plugin string, kind types.RunKind) {
	publishesTotal.WithLabelValues(plugin, string(kind)).Inc()
}

// RecordMergeConflict records a duplicate-file conflict in the package stage.
func RecordMergeConflict() {
	mergeConflictsTotal.Inc()
}
