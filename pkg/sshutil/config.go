package sshutil

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kevinburke/ssh_config"
)

// SSHHostEntry is a concrete Host block from an ssh_config file.
type SSHHostEntry struct {
	Alias        string
	Hostname     string
	User         string
	Port         string
	IdentityFile string // ~ expanded
	ProxyJump    string
}

// Description summarizes where the alias points, e.g.
// "10.0.0.5, user: ml, via bastion".
func (h SSHHostEntry) Description() string {
	var parts []string
	if h.Hostname != "" && h.Hostname != h.Alias {
		parts = append(parts, h.Hostname)
	}
	if h.User != "" {
		parts = append(parts, "user: "+h.User)
	}
	if h.Port != "" && h.Port != "22" {
		parts = append(parts, "port: "+h.Port)
	}
	if h.ProxyJump != "" && !strings.EqualFold(h.ProxyJump, "none") {
		parts = append(parts, "via "+h.ProxyJump)
	}
	if len(parts) == 0 {
		return h.Alias
	}
	return strings.Join(parts, ", ")
}

// ParseSSHConfig parses ~/.ssh/config. See ParseSSHConfigFile.
func ParseSSHConfig() ([]SSHHostEntry, error) {
	return ParseSSHConfigFile(filepath.Join(homeDir(), ".ssh", "config"))
}

// ParseSSHConfigFile returns the concrete host aliases in configPath,
// sorted by alias. Wildcard patterns are skipped and an alias repeated in
// a later block keeps its first values. A missing file yields nil, nil.
func ParseSSHConfigFile(configPath string) ([]SSHHostEntry, error) {
	content, _, err := preprocessSSHConfig(configPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	var entries []SSHHostEntry
	seen := make(map[string]bool)
	for _, host := range cfg.Hosts {
		for _, pattern := range host.Patterns {
			alias := pattern.String()
			if seen[alias] || strings.ContainsAny(alias, "*?!") {
				continue
			}
			seen[alias] = true
			entries = append(entries, hostEntry(cfg, alias))
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Alias < entries[j].Alias })
	return entries, nil
}

func hostEntry(cfg *ssh_config.Config, alias string) SSHHostEntry {
	get := func(key string) string {
		v, _ := cfg.Get(alias, key)
		return v
	}
	e := SSHHostEntry{
		Alias:     alias,
		Hostname:  get("HostName"),
		User:      get("User"),
		Port:      get("Port"),
		ProxyJump: get("ProxyJump"),
	}
	if id := get("IdentityFile"); id != "" {
		e.IdentityFile = expandPath(id)
	}
	return e
}

// FindHost returns the entry whose alias matches host. A "user@" prefix and
// ":port" suffix on host are ignored.
func FindHost(entries []SSHHostEntry, host string) (SSHHostEntry, bool) {
	if at := strings.LastIndex(host, "@"); at != -1 {
		host = host[at+1:]
	}
	if colon := strings.LastIndex(host, ":"); colon != -1 && strings.Trim(host[colon+1:], "0123456789") == "" {
		host = host[:colon]
	}
	for _, e := range entries {
		if e.Alias == host {
			return e, true
		}
	}
	return SSHHostEntry{}, false
}
