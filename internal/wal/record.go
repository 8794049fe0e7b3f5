package wal

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
)

// RecordType identifies the type of a journal record.
type RecordType uint8

const (
	// RecordTypeCommit holds every operation of one committed transaction.
	RecordTypeCommit RecordType = 1
)

// OpKind identifies a single operation inside a commit record.
type OpKind uint8

const (
	OpInsert OpKind = iota + 1
	OpMove
	OpDelete
	OpSchema
	OpVacate
	OpFill
)

func (k OpKind) String() string {
	switch k {
	case OpInsert:
		return "insert"
	case OpMove:
		return "move"
	case OpDelete:
		return "delete"
	case OpSchema:
		return "schema"
	case OpVacate:
		return "vacate"
	case OpFill:
		return "fill"
	default:
		return fmt.Sprintf("OpKind(%d)", uint8(k))
	}
}

var (
	ErrInvalidCRC     = errors.New("invalid journal record checksum")
	ErrInvalidType    = errors.New("invalid journal record type")
	ErrShortRead      = errors.New("short read in journal record")
	ErrRecordTooLarge = errors.New("journal record too large")
)

const (
	recordHeaderSize = 4 + 1 + 8 + 4
	maxRecordSize    = 64 << 20
)

// Op is one operation of a committed transaction.
//
// For OpSchema, Position carries the schema version. OpVacate and OpFill
// leave ID zero. Payload is only set for OpInsert.
type Op struct {
	Kind     OpKind
	ID       [16]byte
	Kit      string
	Voice    int32
	Position int64
	Payload  []byte
}

// Record is a single journal entry.
type Record struct {
	LSN  uint64
	Type RecordType
	Ops  []Op
}

// Encode writes the record to w.
//
// Format:
// [CRC32: 4] [Type: 1] [LSN: 8] [Length: 4] [Body: Length]
// Body: [NumOps: 4] then per op
// [Kind: 1] [ID: 16] [KitLen: 2] [Kit] [Voice: 4] [Position: 8] [PayloadLen: 4] [Payload]
func (r *Record) Encode(w io.Writer) error {
	body, err := r.encodeBody()
	if err != nil {
		return err
	}
	if len(body) > maxRecordSize {
		return fmt.Errorf("%w: %d bytes", ErrRecordTooLarge, len(body))
	}

	header := make([]byte, recordHeaderSize)
	header[4] = byte(r.Type)
	binary.LittleEndian.PutUint64(header[5:], r.LSN)
	binary.LittleEndian.PutUint32(header[13:], uint32(len(body)))

	crc := crc32.NewIEEE()
	crc.Write(header[4:])
	crc.Write(body)
	binary.LittleEndian.PutUint32(header[0:], crc.Sum32())

	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

func (r *Record) encodeBody() ([]byte, error) {
	var buf bytes.Buffer
	scratch := make([]byte, 8)

	binary.LittleEndian.PutUint32(scratch, uint32(len(r.Ops)))
	buf.Write(scratch[:4])

	for _, op := range r.Ops {
		if len(op.Kit) > math.MaxUint16 {
			return nil, fmt.Errorf("kit name too long: %d bytes", len(op.Kit))
		}
		buf.WriteByte(byte(op.Kind))
		buf.Write(op.ID[:])
		binary.LittleEndian.PutUint16(scratch, uint16(len(op.Kit)))
		buf.Write(scratch[:2])
		buf.WriteString(op.Kit)
		binary.LittleEndian.PutUint32(scratch, uint32(op.Voice))
		buf.Write(scratch[:4])
		binary.LittleEndian.PutUint64(scratch, uint64(op.Position))
		buf.Write(scratch[:8])
		binary.LittleEndian.PutUint32(scratch, uint32(len(op.Payload)))
		buf.Write(scratch[:4])
		buf.Write(op.Payload)
	}
	return buf.Bytes(), nil
}

// Decode reads one record from r. It returns the record, the number of bytes
// consumed and io.EOF on a clean end of stream.
func Decode(r io.Reader) (*Record, int64, error) {
	header := make([]byte, recordHeaderSize)
	n, err := io.ReadFull(r, header)
	if err != nil {
		if errors.Is(err, io.EOF) && n == 0 {
			return nil, 0, io.EOF
		}
		return nil, int64(n), ErrShortRead
	}

	// The header is not trusted until the checksum matches, so only the
	// length is looked at before the body is read.
	length := binary.LittleEndian.Uint32(header[13:])
	if length > maxRecordSize {
		return nil, int64(n), fmt.Errorf("%w: %d bytes", ErrRecordTooLarge, length)
	}

	body := make([]byte, length)
	m, err := io.ReadFull(r, body)
	if err != nil {
		return nil, int64(n + m), ErrShortRead
	}

	crc := crc32.NewIEEE()
	crc.Write(header[4:])
	crc.Write(body)
	if crc.Sum32() != binary.LittleEndian.Uint32(header[0:]) {
		return nil, int64(n + m), ErrInvalidCRC
	}

	typ := RecordType(header[4])
	if typ != RecordTypeCommit {
		return nil, int64(n + m), fmt.Errorf("%w: %d", ErrInvalidType, typ)
	}

	rec := &Record{
		Type: typ,
		LSN:  binary.LittleEndian.Uint64(header[5:]),
	}
	if err := rec.decodeBody(body); err != nil {
		return nil, int64(n + m), err
	}
	return rec, int64(n + m), nil
}

func (r *Record) decodeBody(body []byte) error {
	rd := bytes.NewReader(body)
	scratch := make([]byte, 16)

	read := func(p []byte) error {
		if _, err := io.ReadFull(rd, p); err != nil {
			return ErrShortRead
		}
		return nil
	}

	if err := read(scratch[:4]); err != nil {
		return err
	}
	count := binary.LittleEndian.Uint32(scratch)
	r.Ops = make([]Op, 0, min(int(count), 1024))

	for range count {
		var op Op
		if err := read(scratch[:1]); err != nil {
			return err
		}
		op.Kind = OpKind(scratch[0])
		if err := read(op.ID[:]); err != nil {
			return err
		}
		if err := read(scratch[:2]); err != nil {
			return err
		}
		kit := make([]byte, binary.LittleEndian.Uint16(scratch))
		if err := read(kit); err != nil {
			return err
		}
		op.Kit = string(kit)
		if err := read(scratch[:4]); err != nil {
			return err
		}
		op.Voice = int32(binary.LittleEndian.Uint32(scratch))
		if err := read(scratch[:8]); err != nil {
			return err
		}
		op.Position = int64(binary.LittleEndian.Uint64(scratch))
		if err := read(scratch[:4]); err != nil {
			return err
		}
		if plen := binary.LittleEndian.Uint32(scratch); plen > 0 {
			if int(plen) > rd.Len() {
				return ErrShortRead
			}
			op.Payload = make([]byte, plen)
			if err := read(op.Payload); err != nil {
				return err
			}
		}
		r.Ops = append(r.Ops, op)
	}
	return nil
}
