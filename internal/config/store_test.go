package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/gpumon/internal/errors"
	"github.com/rileyhilliard/gpumon/internal/gpu"
)

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())

	c := DefaultCluster("research")
	c.DisplayName = "Research Lab"
	c.Hosts = []string{"gpu-node1", "gpu-node2"}
	c.Interval = 10 * time.Second
	c.Thresholds = gpu.Policy{WarnUtil: 50, CritUtil: 95, WarnTemp: 70, CritTemp: 90}

	require.NoError(t, s.Save(c))
	assert.True(t, s.Exists("research"))

	got, err := s.Load("research")
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestStore_SaveOmitsDefaults(t *testing.T) {
	s := NewStore(t.TempDir())
	c := DefaultCluster("lab")
	c.Hosts = []string{"a"}
	require.NoError(t, s.Save(c))

	data, err := os.ReadFile(filepath.Join(s.Dir, "lab.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "cluster_name: lab\nhosts:\n    - a\n", string(data))
}

func TestStore_List(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"node10.yaml", "node2.yml", "node1.yaml", ".hidden.yaml", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("hosts: [a]\n"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.yaml"), 0755))

	names, err := NewStore(dir).List()
	require.NoError(t, err)
	assert.Equal(t, []string{"node1", "node2", "node10"}, names)
}

func TestStore_ListMissingDir(t *testing.T) {
	names, err := NewStore(filepath.Join(t.TempDir(), "nope")).List()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestStore_PathPrefersExisting(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	assert.Equal(t, filepath.Join(dir, "c.yaml"), s.Path("c"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.yml"), []byte("hosts: [a]\n"), 0644))
	assert.Equal(t, filepath.Join(dir, "c.yml"), s.Path("c"))

	got, err := s.Load("c")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got.Hosts)
}

func TestStore_Remove(t *testing.T) {
	s := NewStore(t.TempDir())
	c := DefaultCluster("gone")
	c.Hosts = []string{"a"}
	require.NoError(t, s.Save(c))

	require.NoError(t, s.Remove("gone"))
	assert.False(t, s.Exists("gone"))

	err := s.Remove("gone")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrStore))
}

func TestStore_LoadMissing(t *testing.T) {
	_, err := NewStore(t.TempDir()).Load("nope")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
	assert.Contains(t, err.Error(), "nope.yaml and nope.yml")
}

func TestStore_LoadInvalid(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.yaml"), []byte("cluster_name: Empty\nhosts: []\n"), 0644))

	_, err := NewStore(dir).Load("empty")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No hosts defined")
}

func TestStore_SaveRejectsBadInput(t *testing.T) {
	s := NewStore(t.TempDir())

	c := DefaultCluster("../escape")
	c.Hosts = []string{"a"}
	assert.Error(t, s.Save(c))

	c = DefaultCluster("ok")
	assert.Error(t, s.Save(c), "no hosts")
}

func TestDefaultDir(t *testing.T) {
	t.Setenv(DirEnv, "")
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, DefaultDirName), DefaultDir())

	t.Setenv(DirEnv, "/tmp/clusters")
	assert.Equal(t, "/tmp/clusters", DefaultDir())

	t.Setenv(DirEnv, "~/clusters")
	assert.Equal(t, filepath.Join(home, "clusters"), DefaultDir())
}

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, home, ExpandTilde("~"))
	assert.Equal(t, filepath.Join(home, "x"), ExpandTilde("~/x"))
	assert.Equal(t, "/abs", ExpandTilde("/abs"))
	assert.Equal(t, "~user/x", ExpandTilde("~user/x"))
}
