package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Reads
	StorageReads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "simbook_storage_reads_total",
		Help: "The total number of file group reads issued to the card",
	}, []string{"fg"})

	CoalescedWaiters = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "simbook_coalesced_waiters_total",
		Help: "The total number of load requests served by a read already in flight",
	}, []string{"fg"})

	ReadFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "simbook_read_failures_total",
		Help: "The total number of failed file group reads",
	}, []string{"fg"})

	// Writes
	StorageWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "simbook_storage_writes_total",
		Help: "The total number of write operations issued to the card",
	}, []string{"fg", "kind"})

	RejectedWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "simbook_rejected_writes_total",
		Help: "The total number of update requests rejected before reaching the card",
	}, []string{"fg", "reason"})

	ExhaustedSlots = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "simbook_exhausted_slots_total",
		Help: "The total number of subject positions skipped for lack of a free slot",
	}, []string{"fg"})

	// Session
	Resets = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "simbook_resets_total",
		Help: "The total number of cache resets",
	})

	CancelledRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "simbook_cancelled_requests_total",
		Help: "The total number of waiters and writers failed by a reset",
	})

	MailboxDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "simbook_mailbox_depth",
		Help: "The current number of events queued for the cache loop",
	})

	// Façade
	CallLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "simbook_call_latency_seconds",
		Help: "The latency of blocking phonebook calls",
	}, []string{"op"})
)

func init() {
	prometheus.MustRegister(StorageReads)
	prometheus.MustRegister(CoalescedWaiters)
	prometheus.MustRegister(ReadFailures)
	prometheus.MustRegister(StorageWrites)
	prometheus.MustRegister(RejectedWrites)
	prometheus.MustRegister(ExhaustedSlots)
	prometheus.MustRegister(Resets)
	prometheus.MustRegister(CancelledRequests)
	prometheus.MustRegister(MailboxDepth)
	prometheus.MustRegister(CallLatency)
}
