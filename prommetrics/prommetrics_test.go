package prommetrics_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peteb4ker/romper-sub005"
	"github.com/peteb4ker/romper-sub005/prommetrics"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := prommetrics.New(reg)
	require.NoError(t, err)

	c.RecordOperation("insert", time.Millisecond, nil)
	c.RecordOperation("insert", time.Millisecond, errors.New("boom"))
	c.RecordRepositioned("insert", 11)
	c.RecordRedistribution("insert")
	c.RecordRollback("insert")
	c.RecordUndo(nil)
	c.RecordRedo(errors.New("nothing"))
	c.RecordBackup(5, time.Second, nil)

	expected := `
# HELP romper_repositioned_records_total Records other than the primary one whose position changed.
# TYPE romper_repositioned_records_total counter
romper_repositioned_records_total{op="insert"} 11
# HELP romper_rollbacks_total Transactions rolled back after they began.
# TYPE romper_rollbacks_total counter
romper_rollbacks_total{op="insert"} 1
# HELP romper_history_steps_total Undo and redo requests.
# TYPE romper_history_steps_total counter
romper_history_steps_total{action="redo",status="error"} 1
romper_history_steps_total{action="undo",status="success"} 1
# HELP romper_backup_records Records in the last successful backup or restore.
# TYPE romper_backup_records gauge
romper_backup_records{action="backup"} 5
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"romper_repositioned_records_total",
		"romper_rollbacks_total",
		"romper_history_steps_total",
		"romper_backup_records",
	))

	n, err := testutil.GatherAndCount(reg, "romper_operation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := prommetrics.New(reg)
	require.NoError(t, err)

	_, err = prommetrics.New(reg)
	var are prometheus.AlreadyRegisteredError
	assert.ErrorAs(t, err, &are)
}

func TestWithDatabase(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	c, err := prommetrics.New(reg)
	require.NoError(t, err)

	db, err := romper.Open(ctx, romper.Memory(), romper.WithMetricsCollector(c))
	require.NoError(t, err)
	defer db.Close()

	key := romper.Bucket("A0", 1)
	for range 3 {
		_, err := db.Append(ctx, key, romper.Payload{FilePath: "x.wav"})
		require.NoError(t, err)
	}
	_, err = db.DeleteAndCompact(ctx, key, 9)
	require.Error(t, err)
	_, err = db.Undo(ctx)
	require.NoError(t, err)

	expected := `
# HELP romper_rollbacks_total Transactions rolled back after they began.
# TYPE romper_rollbacks_total counter
romper_rollbacks_total{op="delete-and-compact"} 1
# HELP romper_history_steps_total Undo and redo requests.
# TYPE romper_history_steps_total counter
romper_history_steps_total{action="undo",status="success"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"romper_rollbacks_total", "romper_history_steps_total"))
}
