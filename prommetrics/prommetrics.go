// Package prommetrics exports romper metrics to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	c, err := prommetrics.New(reg)
//	db, err := romper.Open(ctx, romper.Local("./data"), romper.WithMetricsCollector(c))
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
package prommetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/peteb4ker/romper-sub005"
)

const namespace = "romper"

// Collector implements romper.MetricsCollector.
type Collector struct {
	opLatency       *prometheus.HistogramVec
	repositioned    *prometheus.CounterVec
	redistributions *prometheus.CounterVec
	rollbacks       *prometheus.CounterVec
	history         *prometheus.CounterVec
	backupLatency   *prometheus.HistogramVec
	backupRecords   *prometheus.GaugeVec
}

var _ romper.MetricsCollector = (*Collector)(nil)

// New creates a Collector and registers it on reg. A nil reg selects
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of mutations, undo and redo included.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"op", "status"}),
		repositioned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "repositioned_records_total",
			Help:      "Records other than the primary one whose position changed.",
		}, []string{"op"}),
		redistributions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redistributions_total",
			Help:      "Buckets respaced or compacted.",
		}, []string{"op"}),
		rollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollbacks_total",
			Help:      "Transactions rolled back after they began.",
		}, []string{"op"}),
		history: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_steps_total",
			Help:      "Undo and redo requests.",
		}, []string{"action", "status"}),
		backupLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backup_duration_seconds",
			Help:      "Latency of backups and restores from backup.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action", "status"}),
		backupRecords: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backup_records",
			Help:      "Records in the last successful backup or restore.",
		}, []string{"action"}),
	}

	for _, col := range []prometheus.Collector{
		c.opLatency, c.repositioned, c.redistributions, c.rollbacks,
		c.history, c.backupLatency, c.backupRecords,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (c *Collector) RecordOperation(op string, d time.Duration, err error) {
	c.opLatency.WithLabelValues(op, status(err)).Observe(d.Seconds())
}

func (c *Collector) RecordRepositioned(op string, n int) {
	c.repositioned.WithLabelValues(op).Add(float64(n))
}

func (c *Collector) RecordRedistribution(op string) {
	c.redistributions.WithLabelValues(op).Inc()
}

func (c *Collector) RecordRollback(op string) {
	c.rollbacks.WithLabelValues(op).Inc()
}

func (c *Collector) RecordUndo(err error) {
	c.history.WithLabelValues("undo", status(err)).Inc()
}

func (c *Collector) RecordRedo(err error) {
	c.history.WithLabelValues("redo", status(err)).Inc()
}

func (c *Collector) RecordBackup(records int, d time.Duration, err error) {
	c.recordBackup("backup", records, d, err)
}

func (c *Collector) RecordRestoreBackup(records int, d time.Duration, err error) {
	c.recordBackup("restore", records, d, err)
}

func (c *Collector) recordBackup(action string, records int, d time.Duration, err error) {
	c.backupLatency.WithLabelValues(action, status(err)).Observe(d.Seconds())
	if err == nil {
		c.backupRecords.WithLabelValues(action).Set(float64(records))
	}
}
