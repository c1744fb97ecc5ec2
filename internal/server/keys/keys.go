// Package keys derives object-store keys from logical paths.
//
// A key is the owner namespace followed by the ordered chain of ancestor
// folder names and the leaf name, joined with Separator. Folder keys carry a
// trailing Separator so they double as prefixes of their descendants' keys.
// Keys are a projection of the metadata tree, never an independent source of
// truth: every structural mutation recomputes them through this package.
package keys

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophdrive/internal/common"
)

// Separator joins path segments inside object-store keys. It is forbidden in
// entry names, which keeps the mapping from logical paths to keys injective.
const Separator = "/"

// chunkPrefix names the staged chunk objects of an in-flight upload,
// e.g. "<owner>/report.pdf/chunk-3".
const chunkPrefix = "chunk-"

// ValidateName rejects empty names and names containing the separator.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", common.ErrValidation)
	}
	if strings.Contains(name, Separator) {
		return fmt.Errorf("%w: name %q contains %q", common.ErrValidation, name, Separator)
	}
	return nil
}

// RootPrefix returns the key prefix owning every object of the given owner.
func RootPrefix(ownerID string) string {
	return ownerID + Separator
}

// FileKey returns the key for a file named name directly under parentPrefix.
// parentPrefix must end with Separator (RootPrefix or a folder key).
func FileKey(parentPrefix, name string) string {
	return parentPrefix + name
}

// FolderKey returns the key for a folder named name directly under
// parentPrefix. The trailing separator marks it as a prefix.
func FolderKey(parentPrefix, name string) string {
	return parentPrefix + name + Separator
}

// Derive computes the key for an entry from its owner, the ordered names of
// its ancestor folders (root first) and its own name.
func Derive(ownerID string, ancestors []string, name string, isFolder bool) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	prefix := RootPrefix(ownerID)
	for _, a := range ancestors {
		if err := ValidateName(a); err != nil {
			return "", err
		}
		prefix = FolderKey(prefix, a)
	}
	if isFolder {
		return FolderKey(prefix, name), nil
	}
	return FileKey(prefix, name), nil
}

// ChunkKey returns the staging key of one chunk of an in-flight upload.
// Chunks are staged under the owner root regardless of the upload's target
// folder; the reassembled object lands at its derived key on completion.
func ChunkKey(ownerID, fileName string, index int) string {
	return RootPrefix(ownerID) + fileName + Separator + chunkPrefix + fmt.Sprint(index)
}

// RewritePrefix substitutes oldPrefix with newPrefix at the start of key.
// Used when a folder moves: every descendant key shares the folder key as a
// prefix and is rewritten in one pass.
func RewritePrefix(key, oldPrefix, newPrefix string) (string, error) {
	if !strings.HasPrefix(key, oldPrefix) {
		return "", fmt.Errorf("%w: key %q does not start with %q", common.ErrValidation, key, oldPrefix)
	}
	return newPrefix + key[len(oldPrefix):], nil
}

// ReplaceLeaf substitutes the final path segment of key with newName,
// preserving a trailing separator for folder keys. Rename uses this instead
// of a blind string replace so that ancestor segments sharing the old name
// are left untouched.
func ReplaceLeaf(key, newName string) (string, error) {
	if err := ValidateName(newName); err != nil {
		return "", err
	}
	trimmed, isFolder := strings.CutSuffix(key, Separator)
	i := strings.LastIndex(trimmed, Separator)
	if i < 0 {
		return "", fmt.Errorf("%w: key %q has no parent prefix", common.ErrValidation, key)
	}
	newKey := trimmed[:i+1] + newName
	if isFolder {
		newKey += Separator
	}
	return newKey, nil
}
