package models

import "time"

// PendingUpload tracks one in-flight chunked upload. There is at most one
// per (OwnerID, FileName); the record is created by the first chunk, mutated
// by every later one and deleted on successful completion or by the janitor.
type PendingUpload struct {
	OwnerID  string
	FileName string
	// ChunkCount is the total number of chunks declared by the first
	// submission. Later submissions must declare the same total.
	ChunkCount int
	// UploadedChunks is the set of chunk indices received so far, in
	// arrival order. Duplicate submissions do not grow it.
	UploadedChunks []int

	StartedAt   time.Time
	LastUpdated time.Time
}

// HasChunk reports whether index is already recorded.
func (u *PendingUpload) HasChunk(index int) bool {
	for _, c := range u.UploadedChunks {
		if c == index {
			return true
		}
	}
	return false
}

// Complete reports whether every declared chunk has arrived.
func (u *PendingUpload) Complete() bool {
	return len(u.UploadedChunks) == u.ChunkCount
}
