package importer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeAdded  = "added"
	outcomeCached = "cached"
	outcomeFailed = "failed"
)

var itemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "geochallenge_import_items_total",
	Help: "Challenge references processed by the importer, by outcome.",
}, []string{"outcome"})

var activeJobs = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "geochallenge_import_jobs_active",
	Help: "Background bulk imports currently running.",
})
