// Package models defines server-side data models persisted in the database.
package models

import "time"

// Entry is a node of the per-owner virtual filesystem: either a folder or a
// file, discriminated by IsFolder. Folders carry no content; their Key is a
// prefix (trailing separator) under which descendant keys live.
type Entry struct {
	// ID is the opaque identifier assigned at creation, immutable.
	ID string
	// OwnerID is the owning principal, immutable. Every operation is scoped
	// to it; the engine receives it already authenticated.
	OwnerID string
	// Name is the display name, unique among live siblings of the same
	// parent for the same owner.
	Name string
	// ParentID references the parent folder entry, nil for the root level.
	ParentID *string
	// IsFolder discriminates folders from files.
	IsFolder bool
	// Key is the object-store key of the content (files) or the structural
	// prefix (folders). Always derivable from the ancestor name chain; kept
	// in sync by every structural mutation.
	Key string
	// Size is the byte length of the content, 0 for folders.
	Size int64
	// MimeType classifies file content; empty for folders.
	MimeType string
	// Tags are search keywords derived from name and mime type.
	Tags []string

	CreatedAt time.Time
	UpdatedAt time.Time
}
