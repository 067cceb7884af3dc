// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package drsdl

const (
	mb = 1 << 20
	gb = 1 << 30
)

// Default tunables, named to match the original system's module-level
// constants (original_source/drs_downloader/__init__.py) before any
// workload shaping adjusts them.
const (
	DefaultPartSize                      = 128 * mb
	DefaultMaxSimultaneousObjectRetrievers = 10
	DefaultMaxSimultaneousObjectSigners     = 10
	DefaultMaxSimultaneousDownloaders       = 10
	DefaultMaxSimultaneousPartHandlers      = 10
)

// Settings holds the tunables the batch orchestrator uses for one
// invocation. Zero-value Settings is invalid; use NewSettings to get
// defaults, then override individual fields.
type Settings struct {
	PartSize                      int64
	MaxSimultaneousObjectRetrievers int
	MaxSimultaneousObjectSigners    int
	MaxSimultaneousDownloaders      int
	MaxSimultaneousPartHandlers     int

	AllowDuplicate bool // --duplicate: overwrite existing files instead of renaming/skipping
	UserProject    string // --user-project: billing project for requester-pays providers
	Verbose        bool
	StrictCleanup  bool // --strict-cleanup: delete leftover part files after a failed attempt instead of retaining them for resume
}

// NewSettings returns Settings populated with the system defaults.
func NewSettings() Settings {
	return Settings{
		PartSize:                      DefaultPartSize,
		MaxSimultaneousObjectRetrievers: DefaultMaxSimultaneousObjectRetrievers,
		MaxSimultaneousObjectSigners:    DefaultMaxSimultaneousObjectSigners,
		MaxSimultaneousDownloaders:      DefaultMaxSimultaneousDownloaders,
		MaxSimultaneousPartHandlers:     DefaultMaxSimultaneousPartHandlers,
	}
}

// OptimizeWorkload adjusts PartSize and MaxSimultaneousPartHandlers based on
// the resolved object sizes, mirroring
// original_source/drs_downloader/manager.py's optimize_workload exactly:
//
//   - exactly one object: 64MB parts, 50 part handlers
//   - any object over 1GB: 128MB parts, 3 part handlers
//   - every object under 5MB: 1MB parts, 2 part handlers
//   - otherwise: 128MB parts, 10 part handlers
//
// MaxSimultaneousDownloaders is always left at 10 by the original in every
// branch, so this function does not touch it.
func (s *Settings) OptimizeWorkload(objects []*Object) {
	switch {
	case len(objects) == 1:
		s.PartSize = 64 * mb
		s.MaxSimultaneousPartHandlers = 50
	case anyLargerThan(objects, gb):
		s.PartSize = 128 * mb
		s.MaxSimultaneousPartHandlers = 3
	case allSmallerThan(objects, 5*mb):
		s.PartSize = 1 * mb
		s.MaxSimultaneousPartHandlers = 2
	default:
		s.PartSize = 128 * mb
		s.MaxSimultaneousPartHandlers = 10
	}
}

func anyLargerThan(objects []*Object, n int64) bool {
	for _, o := range objects {
		if o.Size > n {
			return true
		}
	}
	return false
}

func allSmallerThan(objects []*Object, n int64) bool {
	for _, o := range objects {
		if o.Size >= n {
			return false
		}
	}
	return true
}

// IsAnVILRequesterPays reports whether a DRS id's opaque component begins
// with one of the AnVIL prefixes that require a billing project on Terra,
// grounded on tests/integration/test_payers.py.
func IsAnVILRequesterPays(id string) bool {
	const (
		prefix1 = "dg.anv0:"
		prefix2 = "drs.anv0:"
	)
	return hasPrefix(id, prefix1) || hasPrefix(id, prefix2)
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
