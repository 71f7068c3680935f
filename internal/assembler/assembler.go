// Package assembler stitches per-ref build outputs into one deployable site:
// it injects the version-selector navigation into every generated page and
// writes the top-level redirect to the main ref's output.
package assembler

import (
	"bytes"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/verdocs/internal/errors"
	"git.home.luguber.info/inful/verdocs/internal/logfields"
	"git.home.luguber.info/inful/verdocs/internal/orchestrator"
	"git.home.luguber.info/inful/verdocs/internal/refs"
)

// Assembler post-processes all per-ref outputs under one site root.
type Assembler struct {
	siteRoot string
}

// New creates an assembler for the given site root.
func New(siteRoot string) *Assembler {
	return &Assembler{siteRoot: siteRoot}
}

// Assemble injects the version selector into every usable ref's pages, writes
// the root redirect and the site manifest. Refs that failed are excluded from
// the menu but never abort assembly of the others. A main ref that produced
// no usable output is fatal — reported after all per-ref work, so the
// operator still sees which refs succeeded.
func (a *Assembler) Assemble(results []orchestrator.BuildResult) (*SiteManifest, error) {
	usable := make([]orchestrator.BuildResult, 0, len(results))
	for _, r := range results {
		if r.Usable() {
			usable = append(usable, r)
		}
	}

	for _, r := range usable {
		if err := a.injectIntoTree(r, usable); err != nil {
			return nil, err
		}
	}

	mainRef, redirectErr := a.resolveMain(results)
	if redirectErr == nil && mainRef != "" {
		if err := writeRootRedirect(a.siteRoot, refs.SanitizeName(mainRef)); err != nil {
			return nil, err
		}
		slog.Info("Wrote root redirect", logfields.Ref(mainRef))
	}

	manifest := newManifest(results, mainRef)
	if err := manifest.write(a.siteRoot); err != nil {
		return nil, errors.WrapError(err, errors.CategoryAssembly, "failed to write site manifest")
	}

	if redirectErr != nil {
		return manifest, redirectErr
	}
	return manifest, nil
}

// resolveMain returns the main ref's name when it produced usable output. No
// ref marked main (force resolution) skips the redirect with a warning; a
// main ref without usable output is an assembly error.
func (a *Assembler) resolveMain(results []orchestrator.BuildResult) (string, error) {
	for _, r := range results {
		if !r.Ref.IsMain {
			continue
		}
		if r.Usable() {
			return r.Ref.Name, nil
		}
		return "", errors.New(errors.CategoryAssembly, errors.SeverityFatal,
			fmt.Sprintf("main ref %q did not build successfully; top-level redirect not generated", r.Ref.Name))
	}

	slog.Warn("No main ref in results; skipping top-level redirect")
	return "", nil
}

// injectIntoTree rewrites every HTML page under one ref's output with the
// version selector. Links are computed relative to each page's directory so
// nested pages resolve correctly.
func (a *Assembler) injectIntoTree(result orchestrator.BuildResult, usable []orchestrator.BuildResult) error {
	root := result.OutputPath
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".html") {
			return nil
		}
		return a.injectIntoPage(path, usable)
	})
	if err != nil {
		return errors.WrapError(err, errors.CategoryAssembly,
			fmt.Sprintf("failed to inject version selector for ref %s", result.Ref.Name))
	}
	slog.Debug("Injected version selector", logfields.Ref(result.Ref.Name), logfields.Path(root))
	return nil
}

func (a *Assembler) injectIntoPage(pagePath string, usable []orchestrator.BuildResult) error {
	page, err := os.ReadFile(pagePath) // #nosec G304 - path is from WalkDir within the site root
	if err != nil {
		return err
	}

	links, err := a.menuLinksFor(filepath.Dir(pagePath), usable)
	if err != nil {
		return err
	}

	injected, err := injectVersionNav(page, links)
	if err != nil {
		return fmt.Errorf("inject into %s: %w", pagePath, err)
	}
	if bytes.Equal(injected, page) {
		return nil
	}
	return os.WriteFile(pagePath, injected, 0o600)
}

// menuLinksFor builds the selector entries for a page in pageDir, linking
// every usable ref's output root relative to that page.
func (a *Assembler) menuLinksFor(pageDir string, usable []orchestrator.BuildResult) ([]menuLink, error) {
	links := make([]menuLink, 0, len(usable))
	for _, r := range usable {
		rel, err := filepath.Rel(pageDir, filepath.Join(r.OutputPath, "index.html"))
		if err != nil {
			return nil, fmt.Errorf("relative link for ref %s: %w", r.Ref.Name, err)
		}
		links = append(links, menuLink{
			Name: r.Ref.Name,
			Href: filepath.ToSlash(rel),
		})
	}
	return links, nil
}
