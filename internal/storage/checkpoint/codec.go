package checkpoint

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/yndnr/stillpoint/internal/core/domain"
)

// Record layout (little-endian, fixed size for a given payload size):
//
//	[magic:4 "SPCK"][version:2][algo:1][reserved:1][payload_size:4]
//	[run_id:16][counter:8][saved_at_ms:8]
//	[payload:N]
//	[checksum:32 over all bytes above]
const (
	HeaderSize    = 44
	ChecksumSize  = 32
	FormatVersion = 1

	// AnyPayloadSize tells DecodeRecord to accept the size in the header.
	AnyPayloadSize = -1
)

var magicBytes = []byte("SPCK")

// Header field offsets.
const (
	offVersion     = 4
	offAlgo        = 6
	offReserved    = 7
	offPayloadSize = 8
	offRunID       = 12
	offCounter     = 28
	offSavedAt     = 36
)

// ChecksumAlgorithm identifies how the record trailer is computed.
type ChecksumAlgorithm uint8

const (
	ChecksumSHA256  ChecksumAlgorithm = 1
	ChecksumMurmur3 ChecksumAlgorithm = 2
)

// ParseChecksumAlgorithm maps a configuration value to an algorithm.
func ParseChecksumAlgorithm(s string) (ChecksumAlgorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sha256", "sha-256":
		return ChecksumSHA256, nil
	case "murmur3", "murmur3-128":
		return ChecksumMurmur3, nil
	default:
		return 0, fmt.Errorf("checkpoint: unknown checksum algorithm %q", s)
	}
}

// String returns the configuration name of the algorithm.
func (a ChecksumAlgorithm) String() string {
	switch a {
	case ChecksumSHA256:
		return "sha256"
	case ChecksumMurmur3:
		return "murmur3"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(a))
	}
}

func (a ChecksumAlgorithm) valid() bool {
	return a == ChecksumSHA256 || a == ChecksumMurmur3
}

// sum computes the 32-byte trailer. murmur3 fills the first 16 bytes.
func (a ChecksumAlgorithm) sum(data []byte) [ChecksumSize]byte {
	var out [ChecksumSize]byte
	switch a {
	case ChecksumMurmur3:
		h1, h2 := murmur3.Sum128(data)
		binary.LittleEndian.PutUint64(out[0:8], h1)
		binary.LittleEndian.PutUint64(out[8:16], h2)
	default:
		out = sha256.Sum256(data)
	}
	return out
}

// RecordSize returns the exact on-disk size for a payload of n bytes.
func RecordSize(payloadSize int) int {
	return HeaderSize + payloadSize + ChecksumSize
}

// Record is one decoded checkpoint.
type Record struct {
	Version   uint16
	Algorithm ChecksumAlgorithm
	RunID     domain.RunID
	SavedAt   time.Time
	State     *domain.ProcessState
	Checksum  [ChecksumSize]byte
}

// EncodeRecord serializes a record. The checksum is computed here and
// stored back into rec.Checksum.
func EncodeRecord(rec *Record) ([]byte, error) {
	if rec == nil || rec.State == nil {
		return nil, domain.ErrInternal.WithDetails("encode: nil state")
	}
	if rec.State.Counter < 0 {
		return nil, domain.ErrInternal.WithDetails(fmt.Sprintf("encode: negative counter %d", rec.State.Counter))
	}
	if len(rec.State.Payload) > domain.MaxPayloadSize {
		return nil, domain.ErrInternal.WithDetails(fmt.Sprintf("encode: payload %d bytes exceeds limit", len(rec.State.Payload)))
	}
	algo := rec.Algorithm
	if algo == 0 {
		algo = ChecksumSHA256
	}
	if !algo.valid() {
		return nil, domain.ErrInternal.WithDetails("encode: " + algo.String())
	}

	n := len(rec.State.Payload)
	buf := make([]byte, RecordSize(n))

	copy(buf[0:4], magicBytes)
	binary.LittleEndian.PutUint16(buf[offVersion:], FormatVersion)
	buf[offAlgo] = byte(algo)
	buf[offReserved] = 0
	binary.LittleEndian.PutUint32(buf[offPayloadSize:], uint32(n))
	copy(buf[offRunID:offRunID+16], rec.RunID[:])
	binary.LittleEndian.PutUint64(buf[offCounter:], uint64(rec.State.Counter))
	binary.LittleEndian.PutUint64(buf[offSavedAt:], uint64(rec.SavedAt.UnixMilli()))
	copy(buf[HeaderSize:HeaderSize+n], rec.State.Payload)

	sum := algo.sum(buf[:HeaderSize+n])
	copy(buf[HeaderSize+n:], sum[:])

	rec.Version = FormatVersion
	rec.Algorithm = algo
	rec.Checksum = sum
	return buf, nil
}

// DecodeRecord parses and validates buf. payloadSize is the configured
// payload size, or AnyPayloadSize to trust the header.
//
// Every validation failure is reported as domain.ErrCheckpointCorrupt; no
// counter or payload is returned unless the checksum matches.
func DecodeRecord(buf []byte, payloadSize int) (*Record, error) {
	if len(buf) < HeaderSize {
		return nil, corrupt("truncated record: %d bytes, header needs %d", len(buf), HeaderSize)
	}
	if !bytes.Equal(buf[0:4], magicBytes) {
		return nil, corrupt("invalid magic bytes %q", buf[0:4])
	}
	version := binary.LittleEndian.Uint16(buf[offVersion:])
	if version != FormatVersion {
		return nil, corrupt("unsupported format version %d", version)
	}

	n := int(binary.LittleEndian.Uint32(buf[offPayloadSize:]))
	if n > domain.MaxPayloadSize {
		return nil, corrupt("payload size %d exceeds limit", n)
	}
	if payloadSize != AnyPayloadSize && n != payloadSize {
		return nil, corrupt("payload size %d, configured %d", n, payloadSize)
	}

	want := RecordSize(n)
	switch {
	case len(buf) < want:
		return nil, corrupt("truncated record: %d bytes, want %d", len(buf), want)
	case len(buf) > want:
		return nil, corrupt("trailing data: %d bytes, want %d", len(buf), want)
	}

	algo := ChecksumAlgorithm(buf[offAlgo])
	if !algo.valid() {
		return nil, corrupt("unknown checksum algorithm %d", uint8(algo))
	}
	expected := algo.sum(buf[:HeaderSize+n])
	if !bytes.Equal(expected[:], buf[HeaderSize+n:]) {
		return nil, corrupt("checksum mismatch")
	}

	counter := int64(binary.LittleEndian.Uint64(buf[offCounter:]))
	if counter < 0 {
		return nil, corrupt("negative counter %d", counter)
	}

	payload := make([]byte, n)
	copy(payload, buf[HeaderSize:HeaderSize+n])

	rec := &Record{
		Version:   version,
		Algorithm: algo,
		SavedAt:   time.UnixMilli(int64(binary.LittleEndian.Uint64(buf[offSavedAt:]))),
		State: &domain.ProcessState{
			Counter: counter,
			Payload: payload,
		},
		Checksum: expected,
	}
	copy(rec.RunID[:], buf[offRunID:offRunID+16])
	return rec, nil
}

func corrupt(format string, args ...any) error {
	return domain.ErrCheckpointCorrupt.WithDetails(fmt.Sprintf(format, args...))
}
