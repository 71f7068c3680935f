package refs

// Kind distinguishes branch refs from tag refs.
type Kind string

const (
	KindBranch Kind = "branch"
	KindTag    Kind = "tag"
)

// Ref identifies one buildable unit: a named point in the repository's
// history together with the content fingerprint of its tree. Immutable once
// resolved for a given invocation.
type Ref struct {
	Name        string // Short name (e.g. "main", "v1.0.0")
	Kind        Kind
	Commit      string // Commit SHA the ref points at
	Fingerprint string // Stable hash of the tree content at Commit
	IsMain      bool   // At most one ref per resolution is main
}

// DirName returns the output/snapshot directory name for the ref. Path
// separators in ref names (e.g. "release/1.x") are flattened so every ref
// maps to a single directory level.
func (r Ref) DirName() string {
	return SanitizeName(r.Name)
}

// SanitizeName flattens path separators in a ref name.
func SanitizeName(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		switch name[i] {
		case '/', '\\':
			out[i] = '_'
		default:
			out[i] = name[i]
		}
	}
	return string(out)
}
