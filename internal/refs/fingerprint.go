package refs

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ComputeFingerprint computes a deterministic content fingerprint for the
// tree at the given commit. The fingerprint covers every file path and blob
// hash in the tree and nothing else, so refs pointing at identical content
// fingerprint the same even across rewritten or amended commits, and any
// content change produces a new fingerprint.
func ComputeFingerprint(repo *git.Repository, commit string) (string, error) {
	hash, err := repo.ResolveRevision(plumbing.Revision(commit))
	if err != nil {
		return "", fmt.Errorf("resolve commit %s: %w", commit, err)
	}

	commitObj, err := repo.CommitObject(*hash)
	if err != nil {
		return "", fmt.Errorf("get commit object: %w", err)
	}

	tree, err := commitObj.Tree()
	if err != nil {
		return "", fmt.Errorf("get tree: %w", err)
	}

	var fileHashes []string
	err = tree.Files().ForEach(func(file *object.File) error {
		fileHashes = append(fileHashes, fmt.Sprintf("%s:%s", file.Name, file.Hash.String()))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walk tree: %w", err)
	}

	// Sort for deterministic ordering
	sort.Strings(fileHashes)

	h := sha256.New()
	for _, fh := range fileHashes {
		h.Write([]byte(fh))
		h.Write([]byte("\n"))
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
