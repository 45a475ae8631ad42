package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	reportKindProv       = "prov"
	reportKindCrateDP    = "crate_data_product"
	reportKindCrateRun   = "crate_code_run"
	reportKindExtraction = "data_extraction"

	buildStatusOK        = "ok"
	buildStatusNotFound  = "not_found"
	buildStatusBadFormat = "unsupported_format"
	buildStatusError     = "error"
)

var (
	reportBuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "registry_report_builds_total",
		Help: "Reports built, by kind, format and outcome.",
	}, []string{"kind", "format", "status"})

	reportBuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "registry_report_build_duration_seconds",
		Help:    "Time spent walking the registry and rendering a report.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	reportCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "registry_report_cache_hits_total",
		Help: "Reports served from the cache.",
	}, []string{"kind"})

	remoteFetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "registry_remote_fetch_failures_total",
		Help: "Remote storage reads that fell back to a pointer entity.",
	})
)
