package services

import "github.com/prometheus/client_golang/prometheus"

var (
	articlesScoredCounter prometheus.Counter
	linksInsertedCounter  prometheus.Counter
	linkChecksCounter     *prometheus.CounterVec
	batchFailuresCounter  *prometheus.CounterVec
)

func init() {
	articlesScoredCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "content_articles_scored_total",
			Help: "Total number of article score recalculations persisted.",
		},
	)
	linksInsertedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "content_links_inserted_total",
			Help: "Total number of external links inserted into article content.",
		},
	)
	linkChecksCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_link_checks_total",
			Help: "Health checks of external links by resulting status.",
		},
		[]string{"status"},
	)
	batchFailuresCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_batch_item_failures_total",
			Help: "Failed batch items by operation.",
		},
		[]string{"operation"},
	)
	prometheus.MustRegister(articlesScoredCounter, linksInsertedCounter, linkChecksCounter, batchFailuresCounter)
}
