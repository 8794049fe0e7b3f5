package wal

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/peteb4ker/romper-sub005/internal/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []*Record {
	return []*Record{
		{
			LSN:  1,
			Type: RecordTypeCommit,
			Ops: []Op{
				{Kind: OpInsert, ID: [16]byte{1}, Kit: "A0", Voice: 1, Position: 100, Payload: []byte(`{"file_path":"kick.wav"}`)},
				{Kind: OpInsert, ID: [16]byte{2}, Kit: "A0", Voice: 1, Position: 200},
			},
		},
		{
			LSN:  2,
			Type: RecordTypeCommit,
			Ops: []Op{
				{Kind: OpMove, ID: [16]byte{1}, Kit: "B3", Voice: 4, Position: 150},
				{Kind: OpDelete, ID: [16]byte{2}},
				{Kind: OpVacate, Kit: "A0", Voice: 1, Position: 200},
				{Kind: OpSchema, Position: 1},
			},
		},
	}
}

func readAll(t *testing.T, w *WAL) ([]*Record, int64, error) {
	t.Helper()
	reader, err := w.Reader()
	require.NoError(t, err)
	defer reader.Close()

	var out []*Record
	for {
		rec, err := reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, reader.Offset(), nil
			}
			return out, reader.Offset(), err
		}
		out = append(out, rec)
	}
}

func TestWAL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal")

	w, err := Open(nil, path, DefaultOptions())
	require.NoError(t, err)
	for _, r := range sampleRecords() {
		require.NoError(t, w.Append(r))
	}
	require.NoError(t, w.Close())

	w2, err := Open(nil, path, DefaultOptions())
	require.NoError(t, err)
	defer w2.Close()

	got, offset, err := readAll(t, w2)
	require.NoError(t, err)
	assert.Equal(t, w2.Size(), offset)
	require.Len(t, got, 2)

	want := sampleRecords()
	for i := range want {
		assert.Equal(t, want[i].LSN, got[i].LSN)
		assert.Equal(t, want[i].Ops, got[i].Ops)
	}
}

func TestWAL_TornTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal")

	w, err := Open(nil, path, Options{Durability: DurabilityAsync})
	require.NoError(t, err)
	for _, r := range sampleRecords() {
		require.NoError(t, w.Append(r))
	}
	full := w.Size()
	require.NoError(t, w.Close())

	// Chop the last few bytes off the second record.
	require.NoError(t, os.Truncate(path, full-3))

	w2, err := Open(nil, path, DefaultOptions())
	require.NoError(t, err)
	defer w2.Close()

	got, offset, err := readAll(t, w2)
	assert.ErrorIs(t, err, ErrShortRead)
	require.Len(t, got, 1)

	require.NoError(t, w2.Truncate(offset))
	assert.Equal(t, offset, w2.Size())

	got, _, err = readAll(t, w2)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestWAL_CorruptRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal")

	w, err := Open(nil, path, DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, w.Append(sampleRecords()[0]))
	require.NoError(t, w.Close())

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte{0xff}, journalHeaderSize+recordHeaderSize+2)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	w2, err := Open(nil, path, DefaultOptions())
	require.NoError(t, err)
	defer w2.Close()

	_, _, err = readAll(t, w2)
	assert.ErrorIs(t, err, ErrInvalidCRC)
}

func TestWAL_GarbageTail(t *testing.T) {
	tests := []struct {
		name string
		tail []byte
		want error
	}{
		{"zero filled", make([]byte, 40), ErrInvalidCRC},
		{"garbled length", bytes.Repeat([]byte{0xff}, recordHeaderSize), ErrRecordTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "journal")
			w, err := Open(nil, path, DefaultOptions())
			require.NoError(t, err)
			require.NoError(t, w.Append(sampleRecords()[0]))
			intact := w.Size()
			require.NoError(t, w.Close())

			f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
			require.NoError(t, err)
			_, err = f.Write(tt.tail)
			require.NoError(t, err)
			require.NoError(t, f.Close())

			w2, err := Open(nil, path, DefaultOptions())
			require.NoError(t, err)
			defer w2.Close()

			got, offset, err := readAll(t, w2)
			assert.ErrorIs(t, err, tt.want)
			assert.Len(t, got, 1)
			assert.Equal(t, intact, offset)
		})
	}
}

func TestDecode_TypeCheckedAfterChecksum(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&Record{LSN: 1, Type: RecordType(7)}).Encode(&buf))

	_, n, err := Decode(&buf)
	assert.ErrorIs(t, err, ErrInvalidType)
	assert.Equal(t, int64(recordHeaderSize+4), n)
}

func TestWAL_InvalidHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal")
	require.NoError(t, os.WriteFile(path, []byte("NOTAJOURNAL!"), 0o644))

	_, err := Open(nil, path, DefaultOptions())
	assert.ErrorIs(t, err, ErrInvalidHeader)
}

func TestWAL_FailedAppendLeavesNoTrace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal")
	faulty := fs.NewFaultyFS(nil)

	w, err := Open(faulty, path, DefaultOptions())
	require.NoError(t, err)
	defer w.Close()

	recs := sampleRecords()
	require.NoError(t, w.Append(recs[0]))
	size := w.Size()

	faulty.AddRule("journal", fs.Fault{FailAfterBytes: -1, FailOnSync: true})
	err = w.Append(recs[1])
	assert.ErrorIs(t, err, fs.ErrInjected)
	assert.Equal(t, size, w.Size())

	faulty.ClearRules()
	got, _, err := readAll(t, w)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	require.NoError(t, w.Append(recs[1]))
	got, _, err = readAll(t, w)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestOpKindString(t *testing.T) {
	assert.Equal(t, "insert", OpInsert.String())
	assert.Equal(t, "schema", OpSchema.String())
	assert.Equal(t, "vacate", OpVacate.String())
	assert.Equal(t, "fill", OpFill.String())
	assert.Equal(t, "OpKind(9)", OpKind(9).String())
}
