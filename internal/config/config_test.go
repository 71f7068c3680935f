package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/verdocs/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "verdocs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "compiler:\n  command: sphinx-build\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.Repo.Path)
	assert.Equal(t, "main", cfg.Refs.Main)
	assert.Equal(t, 1, cfg.Build.Workers)
	assert.Equal(t, "./site", cfg.Output.Dir)
	assert.Equal(t, 4096, cfg.Compiler.LogExcerptBytes)
	assert.Equal(t, []string{"{source}", "{output}"}, cfg.Compiler.Args)
	assert.True(t, cfg.Refs.BranchesEnabled())
	assert.True(t, cfg.Refs.TagsEnabled())
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
repo:
  path: /srv/repo
refs:
  names: ["main", "v*"]
  pattern: "^release-"
  exclude: ["wip/*"]
  main: master
  force: true
  tags: false
build:
  workers: 4
  keep_snapshots: true
compiler:
  command: mkdocs
  args: ["build", "-f", "{source}/mkdocs.yml", "-d", "{output}"]
  log_excerpt_bytes: 1024
cache:
  dir: /var/cache/verdocs
output:
  dir: /srv/site
  clean: true
metrics:
  addr: ":9090"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/repo", cfg.Repo.Path)
	assert.Equal(t, []string{"main", "v*"}, cfg.Refs.Names)
	assert.Equal(t, "^release-", cfg.Refs.Pattern)
	assert.Equal(t, []string{"wip/*"}, cfg.Refs.Exclude)
	assert.Equal(t, "master", cfg.Refs.Main)
	assert.True(t, cfg.Refs.Force)
	assert.False(t, cfg.Refs.TagsEnabled())
	assert.True(t, cfg.Refs.BranchesEnabled())
	assert.Equal(t, 4, cfg.Build.Workers)
	assert.True(t, cfg.Build.KeepSnapshots)
	assert.Equal(t, "mkdocs", cfg.Compiler.Command)
	assert.Equal(t, 1024, cfg.Compiler.LogExcerptBytes)
	assert.Equal(t, "/var/cache/verdocs", cfg.Cache.Dir)
	assert.Equal(t, "/srv/site", cfg.Output.Dir)
	assert.True(t, cfg.Output.Clean)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("VERDOCS_TEST_REPO", "/data/repo")

	path := writeConfig(t, `
repo:
  path: ${VERDOCS_TEST_REPO}
compiler:
  command: sphinx-build
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/repo", cfg.Repo.Path)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfig))
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "compiler: [not a map")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateRequiresCompilerCommand(t *testing.T) {
	path := writeConfig(t, "output:\n  dir: ./site\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestValidateRequiresSomeRefKind(t *testing.T) {
	path := writeConfig(t, `
compiler:
  command: sphinx-build
refs:
  branches: false
  tags: false
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestValidateRejectsInvalidPattern(t *testing.T) {
	path := writeConfig(t, `
compiler:
  command: sphinx-build
refs:
  pattern: "v[unclosed"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	assert.Contains(t, err.Error(), "refs.pattern")
}

func TestInitWritesLoadableConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "verdocs.yaml")

	require.NoError(t, Init(path, false))

	cfg, err := Load(path)
	require.NoError(t, err, "generated config must load")
	assert.NotEmpty(t, cfg.Compiler.Command)
}

func TestInitRefusesOverwriteWithoutForce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "verdocs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("existing"), 0600))

	err := Init(path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	assert.NoError(t, Init(path, true))
}
