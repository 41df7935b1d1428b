package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rileyhilliard/gpumon/internal/errors"
	"github.com/rileyhilliard/gpumon/internal/gpu"
)

const (
	// DefaultDirName is the config directory under the user's home.
	DefaultDirName = ".gpu-cluster-monitor"
	// DirEnv overrides the config directory.
	DirEnv = "GPUMON_CONFIG_DIR"
)

// extensions are tried in order when resolving a cluster name to a file.
var extensions = []string{".yaml", ".yml"}

// DefaultDir returns $GPUMON_CONFIG_DIR or ~/.gpu-cluster-monitor.
func DefaultDir() string {
	if dir := os.Getenv(DirEnv); dir != "" {
		return ExpandTilde(dir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDirName
	}
	return filepath.Join(home, DefaultDirName)
}

// ExpandTilde replaces a leading ~ with the user's home directory.
func ExpandTilde(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
}

// Store manages cluster files in one directory, one file per cluster.
type Store struct {
	Dir string
}

// NewStore returns a Store rooted at dir, or DefaultDir() if dir is empty.
func NewStore(dir string) *Store {
	if dir == "" {
		dir = DefaultDir()
	}
	return &Store{Dir: ExpandTilde(dir)}
}

// EnsureDir creates the config directory if needed.
func (s *Store) EnsureDir() error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return errors.WrapWithCode(err, errors.ErrStore,
			fmt.Sprintf("Couldn't create config directory %s", s.Dir),
			"Check permissions, or point --config-dir somewhere writable")
	}
	return nil
}

// Path returns the file for name: an existing .yaml or .yml file, else
// the .yaml path it would be saved to.
func (s *Store) Path(name string) string {
	for _, ext := range extensions {
		p := filepath.Join(s.Dir, name+ext)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return filepath.Join(s.Dir, name+extensions[0])
}

// Exists reports whether a cluster file exists for name.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.Path(name))
	return err == nil
}

// List returns cluster names in natural order. A missing directory is an empty list.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, errors.WrapWithCode(err, errors.ErrStore,
			fmt.Sprintf("Couldn't read config directory %s", s.Dir),
			"Check the directory permissions")
	}

	seen := make(map[string]bool)
	names := []string{}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ext)
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}

	sort.Slice(names, func(i, j int) bool { return gpu.NaturalLess(names[i], names[j]) })
	return names, nil
}

// Load reads and validates the cluster called name.
func (s *Store) Load(name string) (*Cluster, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if !s.Exists(name) {
		return nil, errors.New(errors.ErrConfig,
			fmt.Sprintf("Cluster '%s' not found in %s (tried %s.yaml and %s.yml)", name, s.Dir, name, name),
			"List available clusters with: gpumon list-clusters")
	}

	cfg, err := Load(s.Path(name))
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fileFormat is the on-disk layout. Durations are written as strings and
// fields at their default are left out.
type fileFormat struct {
	ClusterName string      `yaml:"cluster_name"`
	Hosts       []string    `yaml:"hosts"`
	User        string      `yaml:"user,omitempty"`
	Interval    string      `yaml:"interval,omitempty"`
	Timeout     string      `yaml:"timeout,omitempty"`
	MaxParallel int         `yaml:"max_parallel,omitempty"`
	Transport   string      `yaml:"transport,omitempty"`
	Thresholds  *gpu.Policy `yaml:"thresholds,omitempty"`
}

func toFileFormat(c *Cluster) fileFormat {
	def := DefaultCluster(c.Name)
	f := fileFormat{
		ClusterName: c.Title(),
		Hosts:       c.Hosts,
		User:        c.User,
		MaxParallel: c.MaxParallel,
	}
	if c.Interval != 0 && c.Interval != def.Interval {
		f.Interval = c.Interval.String()
	}
	if c.Timeout != 0 && c.Timeout != def.Timeout {
		f.Timeout = c.Timeout.String()
	}
	if c.Transport != "" && c.Transport != def.Transport {
		f.Transport = string(c.Transport)
	}
	if c.Thresholds != (gpu.Policy{}) && c.Thresholds != def.Thresholds {
		th := c.Thresholds
		f.Thresholds = &th
	}
	return f
}

// Save validates c and writes it to <dir>/<name>.yaml, replacing any existing file.
func (s *Store) Save(c *Cluster) error {
	if err := ValidateName(c.Name); err != nil {
		return err
	}
	if err := validateHosts(c.Hosts); err != nil {
		return err
	}
	if err := s.EnsureDir(); err != nil {
		return err
	}

	data, err := yaml.Marshal(toFileFormat(c))
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrStore, "Couldn't encode cluster file", "")
	}

	path := s.Path(c.Name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.WrapWithCode(err, errors.ErrStore,
			fmt.Sprintf("Couldn't write %s", path),
			"Check permissions on the config directory")
	}
	return nil
}

// Remove deletes the cluster file for name.
func (s *Store) Remove(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if !s.Exists(name) {
		return errors.New(errors.ErrStore,
			fmt.Sprintf("Cluster '%s' not found in %s", name, s.Dir),
			"List available clusters with: gpumon list-clusters")
	}
	path := s.Path(name)
	if err := os.Remove(path); err != nil {
		return errors.WrapWithCode(err, errors.ErrStore,
			fmt.Sprintf("Couldn't remove %s", path),
			"Check permissions on the config directory")
	}
	return nil
}
