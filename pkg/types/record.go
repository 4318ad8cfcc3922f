// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// FileStatus records what the tool last did with a file.
type FileStatus string

const (
	// StatusWatermarked means the stamp was applied and the rescan succeeded.
	StatusWatermarked FileStatus = "watermarked"
	// StatusStamped means the stamp was applied but the rescan failed, so a
	// retry only rescans.
	StatusStamped FileStatus = "stamped"
	// StatusFailed means the file could not be stamped.
	StatusFailed FileStatus = "failed"
	// StatusKnown means the file was recorded by a populate run without stamping.
	StatusKnown FileStatus = "known"
)

// FileRecord is one row of processing history, keyed by local path.
type FileRecord struct {
	Path      string     `json:"path" yaml:"path"`
	Status    FileStatus `json:"status" yaml:"status"`
	ModTime   time.Time  `json:"mod_time" yaml:"mod_time"`
	Size      int64      `json:"size" yaml:"size"`
	Message   string     `json:"message,omitempty" yaml:"message,omitempty"`
	UpdatedAt time.Time  `json:"updated_at" yaml:"updated_at"`
}

// Matches reports whether the record still describes a file with the given
// modification time and size.
func (r FileRecord) Matches(modTime time.Time, size int64) bool {
	return r.Size == size && r.ModTime.Equal(modTime)
}
