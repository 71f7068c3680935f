package assembler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/verdocs/internal/orchestrator"
)

// ManifestFileName is the manifest's location relative to the site root.
const ManifestFileName = "site-manifest.json"

// SiteManifest records every ref's final status for one run. The menu lists
// only usable refs; the manifest lists all of them so the operator always
// sees which refs succeeded, even on partial failure.
type SiteManifest struct {
	GeneratedAt time.Time       `json:"generated_at"`
	MainRef     string          `json:"main_ref,omitempty"`
	Refs        []ManifestEntry `json:"refs"`
}

// ManifestEntry is one ref's outcome.
type ManifestEntry struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Commit      string `json:"commit"`
	Fingerprint string `json:"fingerprint"`
	Status      string `json:"status"`
	OutputPath  string `json:"output_path,omitempty"`
	LogExcerpt  string `json:"log_excerpt,omitempty"`
}

func newManifest(results []orchestrator.BuildResult, mainRef string) *SiteManifest {
	m := &SiteManifest{
		GeneratedAt: time.Now().UTC(),
		MainRef:     mainRef,
		Refs:        make([]ManifestEntry, 0, len(results)),
	}
	for _, r := range results {
		m.Refs = append(m.Refs, ManifestEntry{
			Name:        r.Ref.Name,
			Kind:        string(r.Ref.Kind),
			Commit:      r.Ref.Commit,
			Fingerprint: r.Ref.Fingerprint,
			Status:      string(r.Status),
			OutputPath:  r.OutputPath,
			LogExcerpt:  r.LogExcerpt,
		})
	}
	return m
}

// ToJSON serializes the manifest.
func (m *SiteManifest) ToJSON() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return data, nil
}

// ManifestFromJSON deserializes a manifest.
func ManifestFromJSON(data []byte) (*SiteManifest, error) {
	var m SiteManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	return &m, nil
}

func (m *SiteManifest) write(siteRoot string) error {
	data, err := m.ToJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(siteRoot, ManifestFileName), data, 0o600)
}
