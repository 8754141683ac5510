package objstore

import (
	"encoding/json"
	"reflect"

	"github.com/prometheus/client_golang/prometheus"
)

type ClassStats struct {
	Rows      int
	DataSize  int64
	DataAlloc int64
}

func (tx *Tx) ClassStats(cls *Class) (ClassStats, error) {
	buck, err := tx.bucket(cls)
	if err != nil {
		return ClassStats{}, err
	}
	bs, err := buck.Stats()
	if err != nil {
		return ClassStats{}, storeErr("stats "+cls.name, err)
	}
	return ClassStats{
		Rows:      bs.KeyN,
		DataSize:  bs.DataSize,
		DataAlloc: bs.DataAlloc,
	}, nil
}

func loggableRowVal(rowVal reflect.Value) string {
	if !rowVal.IsValid() {
		return "<none>"
	}
	raw, err := json.Marshal(rowVal.Interface())
	if err != nil {
		return "<" + err.Error() + ">"
	}
	return string(raw)
}

type dbCollector struct {
	db *DB

	txns        *prometheus.Desc
	openTxns    *prometheus.Desc
	commits     *prometheus.Desc
	cancels     *prometheus.Desc
	created     *prometheus.Desc
	deleted     *prometheus.Desc
	constraints *prometheus.Desc
}

// Collector exposes the DB's counters as Prometheus metrics.
func (db *DB) Collector() prometheus.Collector {
	return &dbCollector{
		db:          db,
		txns:        prometheus.NewDesc("objstore_transactions_total", "Transactions started.", []string{"mode"}, nil),
		openTxns:    prometheus.NewDesc("objstore_open_transactions", "Transactions currently open.", []string{"mode"}, nil),
		commits:     prometheus.NewDesc("objstore_commits_total", "Write transactions committed.", nil, nil),
		cancels:     prometheus.NewDesc("objstore_cancels_total", "Write transactions rolled back.", nil, nil),
		created:     prometheus.NewDesc("objstore_objects_created_total", "Objects created.", nil, nil),
		deleted:     prometheus.NewDesc("objstore_objects_deleted_total", "Objects deleted.", nil, nil),
		constraints: prometheus.NewDesc("objstore_constraint_violations_total", "Operations rejected with a constraint error.", nil, nil),
	}
}

func (c *dbCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.txns
	ch <- c.openTxns
	ch <- c.commits
	ch <- c.cancels
	ch <- c.created
	ch <- c.deleted
	ch <- c.constraints
}

func (c *dbCollector) Collect(ch chan<- prometheus.Metric) {
	db := c.db
	ch <- prometheus.MustNewConstMetric(c.txns, prometheus.CounterValue, float64(db.ReadCount.Load()), "read")
	ch <- prometheus.MustNewConstMetric(c.txns, prometheus.CounterValue, float64(db.WriteCount.Load()), "write")
	ch <- prometheus.MustNewConstMetric(c.openTxns, prometheus.GaugeValue, float64(db.ReaderCount.Load()), "read")
	ch <- prometheus.MustNewConstMetric(c.openTxns, prometheus.GaugeValue, float64(db.WriterCount.Load()), "write")
	ch <- prometheus.MustNewConstMetric(c.commits, prometheus.CounterValue, float64(db.CommitCount.Load()))
	ch <- prometheus.MustNewConstMetric(c.cancels, prometheus.CounterValue, float64(db.CancelCount.Load()))
	ch <- prometheus.MustNewConstMetric(c.created, prometheus.CounterValue, float64(db.CreatedCount.Load()))
	ch <- prometheus.MustNewConstMetric(c.deleted, prometheus.CounterValue, float64(db.DeletedCount.Load()))
	ch <- prometheus.MustNewConstMetric(c.constraints, prometheus.CounterValue, float64(db.ConstraintFail.Load()))
}
