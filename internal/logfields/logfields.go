package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRef         = "ref"
	KeyRefKind     = "ref_kind"
	KeyCommit      = "commit"
	KeyFingerprint = "fingerprint"
	KeyPath        = "path"
	KeyOutput      = "output"
	KeyStatus      = "status"
	KeyDurationMS  = "duration_ms"
	KeyWorkers     = "workers"
	KeyError       = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Ref(name string) slog.Attr       { return slog.String(KeyRef, name) }
func RefKind(kind string) slog.Attr   { return slog.String(KeyRefKind, kind) }
func Commit(sha string) slog.Attr     { return slog.String(KeyCommit, sha) }
func Fingerprint(fp string) slog.Attr { return slog.String(KeyFingerprint, fp) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Output(p string) slog.Attr       { return slog.String(KeyOutput, p) }
func Status(s string) slog.Attr       { return slog.String(KeyStatus, s) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Workers(n int) slog.Attr         { return slog.Int(KeyWorkers, n) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
