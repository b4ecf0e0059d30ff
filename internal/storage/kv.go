package storage

import "time"

// KVConfig configures the embedded KV store that holds the fallback
// checkpoint.
type KVConfig struct {
	// Dir is the Badger data directory.
	Dir string

	// ReadOnly opens an existing database without writing to it. The GC
	// loop does not run.
	ReadOnly bool

	// Badger-specific configuration
	Badger BadgerConfig
}

// BadgerConfig contains Badger tuning parameters. The fallback store keeps
// a single small record, so the defaults are far below Badger's own.
type BadgerConfig struct {
	// GCInterval is the interval between automatic value log GC runs.
	// Zero disables the GC loop.
	// Default: 10m
	GCInterval time.Duration

	// GCThreshold is the GC discard ratio threshold (0.0-1.0).
	// Default: 0.5
	GCThreshold float64

	// CacheSize is the block cache size in bytes.
	// Default: 8MB
	CacheSize int64

	// MemTableSize is the size of each memtable in bytes.
	// Default: 8MB
	MemTableSize int64

	// ValueLogFileSize is the max value log file size in bytes.
	// Default: 64MB
	ValueLogFileSize int64

	// NumMemtables is the number of memtables.
	// Default: 2
	NumMemtables int

	// SyncWrites fsyncs after each write. Save relies on it being on.
	// Default: true
	SyncWrites bool
}

// DefaultKVConfig returns the default KV configuration.
func DefaultKVConfig(dir string) KVConfig {
	return KVConfig{
		Dir:    dir,
		Badger: DefaultBadgerConfig(),
	}
}

// DefaultBadgerConfig returns the default Badger configuration.
func DefaultBadgerConfig() BadgerConfig {
	return BadgerConfig{
		GCInterval:       10 * time.Minute,
		GCThreshold:      0.5,
		CacheSize:        8 << 20,
		MemTableSize:     8 << 20,
		ValueLogFileSize: 64 << 20,
		NumMemtables:     2,
		SyncWrites:       true,
	}
}

// KVStats contains storage engine statistics.
type KVStats struct {
	// LSMSize is the LSM tree size in bytes.
	LSMSize uint64

	// ValueLogSize is the value log size in bytes.
	ValueLogSize uint64

	// LastGCTime is the last GC run timestamp (Unix milliseconds).
	LastGCTime int64

	// GCRuns is the number of value log files rewritten by GC.
	GCRuns uint64
}
