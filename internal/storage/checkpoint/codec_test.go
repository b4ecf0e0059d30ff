package checkpoint

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/yndnr/stillpoint/internal/core/domain"
)

func testState(counter int64, size int) *domain.ProcessState {
	s := domain.NewProcessState(size)
	s.Counter = counter
	for i := range s.Payload {
		s.Payload[i] = byte(i*7 + int(counter))
	}
	return s
}

func TestRecordSize(t *testing.T) {
	if got := RecordSize(1024); got != 1100 {
		t.Errorf("RecordSize(1024) = %d, want 1100", got)
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	runID, err := domain.NewRunID()
	if err != nil {
		t.Fatal(err)
	}
	savedAt := time.UnixMilli(1_700_000_123_456)

	for _, algo := range []ChecksumAlgorithm{ChecksumSHA256, ChecksumMurmur3} {
		t.Run(algo.String(), func(t *testing.T) {
			state := testState(20, 1024)
			rec := &Record{Algorithm: algo, RunID: runID, SavedAt: savedAt, State: state}

			buf, err := EncodeRecord(rec)
			if err != nil {
				t.Fatalf("EncodeRecord: %v", err)
			}
			if len(buf) != RecordSize(1024) {
				t.Fatalf("len(buf) = %d, want %d", len(buf), RecordSize(1024))
			}

			got, err := DecodeRecord(buf, 1024)
			if err != nil {
				t.Fatalf("DecodeRecord: %v", err)
			}
			if !got.State.Equal(state) {
				t.Error("decoded state differs from encoded state")
			}
			if got.RunID != runID {
				t.Errorf("RunID = %v, want %v", got.RunID, runID)
			}
			if !got.SavedAt.Equal(savedAt) {
				t.Errorf("SavedAt = %v, want %v", got.SavedAt, savedAt)
			}
			if got.Algorithm != algo {
				t.Errorf("Algorithm = %v, want %v", got.Algorithm, algo)
			}
			if got.Checksum != rec.Checksum {
				t.Error("decoded checksum differs from encoded checksum")
			}
		})
	}
}

func TestEncode_ExplicitLayout(t *testing.T) {
	state := testState(0x0102030405060708, 4)
	buf, err := EncodeRecord(&Record{State: state, SavedAt: time.UnixMilli(0)})
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(buf[0:4], []byte("SPCK")) {
		t.Errorf("magic = %q", buf[0:4])
	}
	if v := binary.LittleEndian.Uint16(buf[4:6]); v != FormatVersion {
		t.Errorf("version = %d", v)
	}
	if buf[6] != byte(ChecksumSHA256) {
		t.Errorf("algo = %d, want default sha256", buf[6])
	}
	if n := binary.LittleEndian.Uint32(buf[8:12]); n != 4 {
		t.Errorf("payload size = %d, want 4", n)
	}
	// Counter is little-endian regardless of host byte order.
	if !bytes.Equal(buf[28:36], []byte{8, 7, 6, 5, 4, 3, 2, 1}) {
		t.Errorf("counter bytes = %v", buf[28:36])
	}
	if !bytes.Equal(buf[44:48], state.Payload) {
		t.Errorf("payload bytes = %v", buf[44:48])
	}
}

func TestEncode_Errors(t *testing.T) {
	if _, err := EncodeRecord(nil); err == nil {
		t.Error("expected error for nil record")
	}
	neg := testState(-1, 4)
	if _, err := EncodeRecord(&Record{State: neg}); err == nil {
		t.Error("expected error for negative counter")
	}
	if _, err := EncodeRecord(&Record{State: testState(1, 4), Algorithm: 9}); err == nil {
		t.Error("expected error for unknown algorithm")
	}
}

func TestDecode_Corruption(t *testing.T) {
	good, err := EncodeRecord(&Record{State: testState(10, 64), SavedAt: time.Now()})
	if err != nil {
		t.Fatal(err)
	}
	mutate := func(f func(b []byte) []byte) []byte {
		b := append([]byte(nil), good...)
		return f(b)
	}

	tests := []struct {
		name string
		buf  []byte
		size int
	}{
		{"empty", nil, 64},
		{"short header", good[:20], 64},
		{"truncated payload", good[:HeaderSize+10], 64},
		{"missing checksum byte", good[:len(good)-1], 64},
		{"trailing data", append(append([]byte(nil), good...), 0), 64},
		{"bad magic", mutate(func(b []byte) []byte { b[0] = 'X'; return b }), 64},
		{"bad version", mutate(func(b []byte) []byte { b[4] = 9; return b }), 64},
		{"unknown algorithm", mutate(func(b []byte) []byte { b[6] = 42; return b }), 64},
		{"payload size mismatch", good, 128},
		{"flipped payload bit", mutate(func(b []byte) []byte { b[HeaderSize+3] ^= 0x01; return b }), 64},
		{"flipped counter bit", mutate(func(b []byte) []byte { b[28] ^= 0x80; return b }), 64},
		{"flipped checksum bit", mutate(func(b []byte) []byte { b[len(b)-1] ^= 0x01; return b }), 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := DecodeRecord(tt.buf, tt.size)
			if rec != nil {
				t.Error("no record may be returned for a corrupt buffer")
			}
			if !errors.Is(err, domain.ErrCheckpointCorrupt) {
				t.Errorf("err = %v, want ErrCheckpointCorrupt", err)
			}
		})
	}
}

func TestDecode_AnyPayloadSize(t *testing.T) {
	buf, err := EncodeRecord(&Record{State: testState(3, 200)})
	if err != nil {
		t.Fatal(err)
	}
	rec, err := DecodeRecord(buf, AnyPayloadSize)
	if err != nil {
		t.Fatalf("DecodeRecord: %v", err)
	}
	if len(rec.State.Payload) != 200 {
		t.Errorf("payload size = %d, want 200", len(rec.State.Payload))
	}
}

func TestParseChecksumAlgorithm(t *testing.T) {
	tests := []struct {
		in      string
		want    ChecksumAlgorithm
		wantErr bool
	}{
		{"", ChecksumSHA256, false},
		{"sha256", ChecksumSHA256, false},
		{"SHA-256", ChecksumSHA256, false},
		{"murmur3", ChecksumMurmur3, false},
		{"crc32", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseChecksumAlgorithm(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseChecksumAlgorithm(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseChecksumAlgorithm(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
