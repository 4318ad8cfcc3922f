// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// EventType names the platform event that triggered the hook.
type EventType string

const (
	EventPostCreate EventType = `\OCP\Files::postCreate`
	EventPostWrite  EventType = `\OCP\Files::postWrite`
	EventPostRename EventType = `\OCP\Files::postRename`
)

// Event holds the seven values the platform substitutes into the hook
// command line. It lives for a single invocation.
type Event struct {
	// Type is the triggering event (%e).
	Type EventType `json:"event_type" yaml:"event_type"`

	// FileID is the platform's numeric file id (%i), kept as passed.
	FileID string `json:"file_id" yaml:"file_id"`

	// ActorUserID is the user who caused the event (%a).
	ActorUserID string `json:"actor_user_id" yaml:"actor_user_id"`

	// OwnerUserID is the file owner (%o).
	OwnerUserID string `json:"owner_user_id" yaml:"owner_user_id"`

	// RelativePath is the platform-relative path of the file (%n).
	RelativePath string `json:"nextcloud_relative_path" yaml:"nextcloud_relative_path"`

	// LocalPath is the absolute path of the locally available file (%f).
	LocalPath string `json:"locally_available_file" yaml:"locally_available_file"`

	// OldRelativePath is the prior relative path (%x), set on rename and copy only.
	OldRelativePath string `json:"old_nextcloud_relative_file_path" yaml:"old_nextcloud_relative_file_path"`
}
