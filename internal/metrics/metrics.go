// Package metrics defines the Prometheus instrumentation for the gatekeeper.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var changesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "orggatekeeper",
	Name:      "changes_total",
	Help:      "Number of recalculations made, labeled by whether a write happened.",
}, []string{"updated"})

var buildInformation = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "build_information",
	Help: "Build information for the running binary.",
}, []string{"version", "hash"})

// RecordUpdate counts one finished recalculation.
func RecordUpdate(changed bool) {
	changesTotal.WithLabelValues(strconv.FormatBool(changed)).Inc()
}

// SetBuildInformation publishes the build version and hash.
func SetBuildInformation(version, hash string) {
	buildInformation.WithLabelValues(version, hash).Set(1)
}
