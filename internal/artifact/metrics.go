package artifact

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dmvault_uploads_total",
		Help: "Remote uploads by record kind and outcome.",
	}, []string{"kind", "outcome"})

	compensationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dmvault_compensations_total",
		Help: "Compensating remote deletes after a failed row insert, by outcome.",
	}, []string{"outcome"})

	orphanWarningsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dmvault_orphan_warnings_total",
		Help: "Deletes that removed the row but left the remote object behind.",
	})
)
