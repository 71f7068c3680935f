package refs

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"git.home.luguber.info/inful/verdocs/internal/config"
	"git.home.luguber.info/inful/verdocs/internal/errors"
	"git.home.luguber.info/inful/verdocs/internal/logfields"
)

// Resolver discovers and filters the refs to build from a local repository.
type Resolver struct {
	repoPath string
	filters  config.RefsConfig
}

// NewResolver creates a resolver for the repository at repoPath.
func NewResolver(repoPath string, filters config.RefsConfig) *Resolver {
	return &Resolver{repoPath: repoPath, filters: filters}
}

// Resolve returns the ordered set of refs to build. The result has no
// duplicate names, is sorted lexically for stable menu ordering, and marks
// exactly one ref as main when the configured main name is present. A missing
// main name fails resolution unless force is set, in which case no ref is
// marked main and the redirect step is skipped downstream.
func (r *Resolver) Resolve(ctx context.Context) ([]Ref, error) {
	repo, err := git.PlainOpen(r.repoPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryGit, errors.SeverityFatal,
			fmt.Sprintf("not a valid git repository: %s", r.repoPath))
	}

	candidates, err := r.listCandidates(repo)
	if err != nil {
		return nil, err
	}

	selected, err := r.applyFilters(candidates)
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return nil, errors.New(errors.CategoryGit, errors.SeverityFatal,
			"no refs matched the configured filters")
	}

	sort.Slice(selected, func(i, j int) bool { return selected[i].Name < selected[j].Name })

	if err := r.markMain(selected); err != nil {
		return nil, err
	}

	for i := range selected {
		if ctx.Err() != nil {
			return nil, errors.WrapError(ctx.Err(), errors.CategoryGit, "ref resolution cancelled")
		}
		fp, err := ComputeFingerprint(repo, selected[i].Commit)
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryGit,
				fmt.Sprintf("failed to fingerprint ref %s", selected[i].Name))
		}
		selected[i].Fingerprint = fp
	}

	names := make([]string, len(selected))
	for i, ref := range selected {
		names[i] = ref.Name
	}
	slog.Info("Resolved refs", "refs", strings.Join(names, ", "), "count", len(selected))

	return selected, nil
}

// listCandidates collects all local branches and tags, plus a pseudo ref for
// a detached HEAD when force is set.
func (r *Resolver) listCandidates(repo *git.Repository) ([]Ref, error) {
	var candidates []Ref

	if r.filters.BranchesEnabled() {
		branches, err := repo.Branches()
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryGit, "failed to list branches")
		}
		err = branches.ForEach(func(ref *plumbing.Reference) error {
			candidates = append(candidates, Ref{
				Name:   ref.Name().Short(),
				Kind:   KindBranch,
				Commit: ref.Hash().String(),
			})
			return nil
		})
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryGit, "failed to iterate branches")
		}
	}

	if r.filters.TagsEnabled() {
		tags, err := repo.Tags()
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryGit, "failed to list tags")
		}
		err = tags.ForEach(func(ref *plumbing.Reference) error {
			// Annotated tags point at a tag object; resolve to the commit.
			commit, resolveErr := repo.ResolveRevision(plumbing.Revision(ref.Name().String()))
			if resolveErr != nil {
				slog.Warn("Skipping unresolvable tag", logfields.Ref(ref.Name().Short()), logfields.Error(resolveErr))
				return nil
			}
			candidates = append(candidates, Ref{
				Name:   ref.Name().Short(),
				Kind:   KindTag,
				Commit: commit.String(),
			})
			return nil
		})
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryGit, "failed to iterate tags")
		}
	}

	// Detached HEAD becomes a pseudo branch named by its commit SHA, but only
	// under force.
	if r.filters.Force {
		head, err := repo.Head()
		if err == nil && head.Name() == plumbing.HEAD {
			sha := head.Hash().String()
			slog.Warn("HEAD is detached, forcing pseudo ref", logfields.Commit(sha))
			candidates = append(candidates, Ref{
				Name:   sha,
				Kind:   KindBranch,
				Commit: sha,
			})
		}
	}

	return candidates, nil
}

// applyFilters implements the selection policy: with no names and no pattern,
// everything is selected; otherwise the union of glob and regex matches.
// Exclusions are applied afterwards, and duplicates removed by name. A
// pattern that does not compile is a validation error, not an empty match.
func (r *Resolver) applyFilters(candidates []Ref) ([]Ref, error) {
	selectAll := len(r.filters.Names) == 0 && r.filters.Pattern == ""

	var pattern *regexp.Regexp
	if r.filters.Pattern != "" {
		p, err := regexp.Compile(r.filters.Pattern)
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryValidation,
				fmt.Sprintf("invalid ref pattern: %s", r.filters.Pattern))
		}
		pattern = p
	}

	seen := make(map[string]bool, len(candidates))
	var selected []Ref
	for _, ref := range candidates {
		if seen[ref.Name] {
			continue
		}
		if !selectAll && !matchesAnyGlob(ref.Name, r.filters.Names) &&
			(pattern == nil || !pattern.MatchString(ref.Name)) {
			continue
		}
		if matchesAnyGlob(ref.Name, r.filters.Exclude) {
			slog.Debug("Excluding ref", logfields.Ref(ref.Name))
			continue
		}
		seen[ref.Name] = true
		selected = append(selected, ref)
	}
	return selected, nil
}

// markMain marks the configured main ref, or fails when it is absent and
// force is not set.
func (r *Resolver) markMain(selected []Ref) error {
	for i := range selected {
		if selected[i].Name == r.filters.Main {
			selected[i].IsMain = true
			return nil
		}
	}

	if r.filters.Force {
		slog.Warn("Main ref not found among resolved refs; top-level redirect will be skipped",
			logfields.Ref(r.filters.Main))
		return nil
	}

	return errors.New(errors.CategoryGit, errors.SeverityFatal,
		fmt.Sprintf("main ref %q not found among resolved refs (use force to build without it)", r.filters.Main))
}

func matchesAnyGlob(name string, globs []string) bool {
	for _, g := range globs {
		if matched, err := path.Match(g, name); err == nil && matched {
			return true
		}
	}
	return false
}
