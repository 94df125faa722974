// Prometheus metrics for the enclave host.
//
//   - ledger_requests_total{type,result}  requests handled, result: ok|error|rejected
//   - ledger_events_total{kind}            committed ledger events
//   - ledger_custody_units                 value held by the ledger
//   - ledger_highest_bid_units             current highest bid
//   - ledger_receipts_total{operation}     receipts issued
//   - ledger_busy_rejections_total         connections refused with the worker pool full
//
// Served at /metrics when LEDGER_METRICS_ADDR is set.

package main

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cloudx-io/auctionledger/core"
)

var (
	mtxRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_requests_total",
			Help: "Requests handled by the enclave host",
		},
		[]string{"type", "result"},
	)

	mtxEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_events_total",
			Help: "Ledger events committed",
		},
		[]string{"kind"},
	)

	mtxCustody = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledger_custody_units",
			Help: "Value currently held in ledger custody",
		},
	)

	mtxHighestBid = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledger_highest_bid_units",
			Help: "Current highest bid amount",
		},
	)

	mtxReceipts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_receipts_total",
			Help: "Settlement receipts issued",
		},
		[]string{"operation"},
	)

	mtxBusyRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_busy_rejections_total",
			Help: "Connections rejected because the worker pool was full",
		},
	)
)

func init() {
	prometheus.MustRegister(mtxRequests, mtxEvents, mtxCustody, mtxHighestBid, mtxReceipts, mtxBusyRejections)
}

func recordRequest(reqType string, success bool) {
	result := "ok"
	if !success {
		result = "error"
	}
	mtxRequests.WithLabelValues(reqType, result).Inc()
}

func recordEvents(events []core.Event) {
	for _, ev := range events {
		mtxEvents.WithLabelValues(string(ev.Kind)).Inc()
	}
}

func recordLedgerState(snapshot core.Snapshot) {
	mtxCustody.Set(float64(snapshot.Custody))
	mtxHighestBid.Set(float64(snapshot.Highest.Amount))
}

// startMetricsServer serves /metrics until the process exits.
func startMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("INFO: Serving metrics on %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("ERROR: Metrics server failed: %v", err)
		}
	}()
	return srv
}
