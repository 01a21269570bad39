package wal

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/hashicorp/tde/internal/errors"
	"github.com/hashicorp/tde/internal/types/scope"
)

const (
	// recordBaseSize is the size of the fields which precede a record's
	// payload: type (1) + database id (4) + tablespace id (4) + offset (8).
	recordBaseSize = 1 + 4 + 4 + 8

	lengthSize = 4
	crcSize    = 4

	// maxPayloadSize bounds a record payload.  The largest payload written
	// is a provider record; anything past this bound in a segment is
	// corruption, not data.
	maxPayloadSize = 16 * 1024
)

// EncodeRecord serializes a record as:
//
//	length (u32, big endian, excludes itself and the trailing crc)
//	type (u8), database id (u32), tablespace id (u32), offset (u64)
//	payload
//	crc32 IEEE of everything between length and crc (u32, big endian)
func EncodeRecord(ctx context.Context, r Record) ([]byte, error) {
	const op = "wal.EncodeRecord"
	if r.Type == RecordTypeUnknown {
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing record type")
	}
	if len(r.Payload) == 0 {
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing payload")
	}
	if len(r.Payload) > maxPayloadSize {
		return nil, errors.New(ctx, errors.InvalidParameter, op,
			fmt.Sprintf("payload of %d bytes exceeds the %d byte limit", len(r.Payload), maxPayloadSize))
	}

	crced := make([]byte, 0, recordBaseSize+len(r.Payload))
	crced = append(crced, byte(r.Type))
	crced = binary.BigEndian.AppendUint32(crced, r.Scope.DatabaseId)
	crced = binary.BigEndian.AppendUint32(crced, r.Scope.TablespaceId)
	crced = binary.BigEndian.AppendUint64(crced, r.Offset)
	crced = append(crced, r.Payload...)

	crc := crc32.NewIEEE()
	if _, err := crc.Write(crced); err != nil {
		return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.Encode))
	}

	d := make([]byte, 0, lengthSize+len(crced)+crcSize)
	d = binary.BigEndian.AppendUint32(d, uint32(len(crced)))
	d = append(d, crced...)
	d = binary.BigEndian.AppendUint32(d, crc.Sum32())
	return d, nil
}

// DecodeRecord reads one record from the reader.  It returns io.EOF when the
// reader is cleanly positioned at the end, and io.ErrUnexpectedEOF when a
// record is torn.  A crc or bounds violation is a Corrupt error.
func DecodeRecord(ctx context.Context, r io.Reader) (*Record, error) {
	const op = "wal.DecodeRecord"
	lengthBuf := make([]byte, lengthSize)
	if _, err := io.ReadFull(r, lengthBuf); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, io.ErrUnexpectedEOF
	}
	length := binary.BigEndian.Uint32(lengthBuf)
	if length < recordBaseSize || length > recordBaseSize+maxPayloadSize {
		return nil, errors.New(ctx, errors.Corrupt, op,
			fmt.Sprintf("record length %d out of bounds", length), errors.WithoutEvent())
	}

	body := make([]byte, int(length)+crcSize)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, io.ErrUnexpectedEOF
	}

	crced, crcBytes := body[:length], body[length:]
	crc := crc32.NewIEEE()
	if _, err := crc.Write(crced); err != nil {
		return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.Decode))
	}
	if crc.Sum32() != binary.BigEndian.Uint32(crcBytes) {
		return nil, errors.New(ctx, errors.Corrupt, op, "record crc mismatch", errors.WithoutEvent())
	}

	buf := bytes.NewBuffer(crced)
	rec := &Record{
		Type: RecordType(buf.Next(1)[0]),
		Scope: scope.Scope{
			DatabaseId:   binary.BigEndian.Uint32(buf.Next(4)),
			TablespaceId: binary.BigEndian.Uint32(buf.Next(4)),
		},
		Offset: binary.BigEndian.Uint64(buf.Next(8)),
	}
	rec.Payload = append([]byte(nil), buf.Bytes()...)
	return rec, nil
}
