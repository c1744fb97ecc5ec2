// Package services implements the filesystem engine on top of the metadata
// repositories and the object store.
//
// # Components
//
//   - FileService — authoritative tree operations (create folder, list,
//     delete with cascade, lookup, search, download URLs) and the
//     move/rename orchestration that keeps object-store keys consistent
//     with the metadata tree.
//   - UploadService — the chunked upload coordinator: accepts out-of-order,
//     possibly duplicated chunk submissions and finalizes each upload into
//     exactly one entry.
//   - Janitor — periodic reclamation of abandoned uploads.
//
// # Consistency
//
// The object store has no atomic rename, so every structural change follows
// copy-before-delete and commits metadata only after the object-store side
// has succeeded. A failure mid-operation leaves metadata untouched; the
// worst case is a harmless duplicate object.
//
// # Concurrency
//
// Metadata mutations are serialized per affected entity with keyed mutexes:
// per (owner, fileName) for uploads, per entry id for move/rename/delete.
// Nothing spans two owners, so there is no cross-owner contention.
package services
