package sshutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSSHConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestParseSSHConfigFile(t *testing.T) {
	path := writeSSHConfig(t, `
Host gpu-node10
    HostName 10.0.0.10
    User ml
    Port 2222
    IdentityFile ~/.ssh/id_cluster

Host gpu-node2
    HostName 10.0.0.2
    ProxyJump bastion

Host *
    ServerAliveInterval 60

Host rack-*
    User ops
`)

	hosts, err := ParseSSHConfigFile(path)
	require.NoError(t, err)
	require.Len(t, hosts, 2)

	assert.Equal(t, "gpu-node10", hosts[0].Alias)
	assert.Equal(t, "gpu-node2", hosts[1].Alias)

	assert.Equal(t, "10.0.0.10", hosts[0].Hostname)
	assert.Equal(t, "ml", hosts[0].User)
	assert.Equal(t, "2222", hosts[0].Port)
	assert.Contains(t, hosts[0].IdentityFile, "id_cluster")
	assert.NotContains(t, hosts[0].IdentityFile, "~")

	assert.Equal(t, "", hosts[1].Port)
	assert.Equal(t, "bastion", hosts[1].ProxyJump)
}

func TestParseSSHConfigFile_NotExists(t *testing.T) {
	hosts, err := ParseSSHConfigFile("/nonexistent/config")
	assert.NoError(t, err)
	assert.Nil(t, hosts)
}

func TestParseSSHConfigFile_StopsAtMatch(t *testing.T) {
	path := writeSSHConfig(t, `
Host before-match
    HostName before.example.com

Match host *.example.com
    User matchuser

Host after-match
    HostName after.example.com
`)

	hosts, err := ParseSSHConfigFile(path)
	require.NoError(t, err)
	require.Len(t, hosts, 1)
	assert.Equal(t, "before-match", hosts[0].Alias)
}

func TestParseSSHConfigFile_DuplicatesAndMultiplePatterns(t *testing.T) {
	path := writeSSHConfig(t, `
Host a b
    User shared

Host a
    User other
`)

	hosts, err := ParseSSHConfigFile(path)
	require.NoError(t, err)
	require.Len(t, hosts, 2)
	assert.Equal(t, "a", hosts[0].Alias)
	assert.Equal(t, "shared", hosts[0].User)
	assert.Equal(t, "b", hosts[1].Alias)
}

func TestSSHHostEntryDescription(t *testing.T) {
	tests := []struct {
		name     string
		entry    SSHHostEntry
		expected string
	}{
		{"full entry", SSHHostEntry{Alias: "n1", Hostname: "10.0.0.1", User: "ml", Port: "2222"}, "10.0.0.1, user: ml, port: 2222"},
		{"default port", SSHHostEntry{Alias: "n1", Hostname: "10.0.0.1", Port: "22"}, "10.0.0.1"},
		{"hostname same as alias", SSHHostEntry{Alias: "n1", Hostname: "n1", User: "ml"}, "user: ml"},
		{"minimal", SSHHostEntry{Alias: "n1"}, "n1"},
		{"proxy jump", SSHHostEntry{Alias: "n1", Hostname: "10.0.0.1", ProxyJump: "bastion"}, "10.0.0.1, via bastion"},
		{"proxy jump none", SSHHostEntry{Alias: "n1", ProxyJump: "none"}, "n1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.entry.Description())
		})
	}
}

func TestFindHost(t *testing.T) {
	entries := []SSHHostEntry{{Alias: "gpu1"}, {Alias: "gpu2", User: "ml"}}

	tests := []struct {
		host  string
		found bool
	}{
		{"gpu2", true},
		{"alice@gpu2", true},
		{"gpu2:2222", true},
		{"alice@gpu1:22", true},
		{"gpu3", false},
		{"10.0.0.1", false},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			_, ok := FindHost(entries, tt.host)
			assert.Equal(t, tt.found, ok)
		})
	}

	e, ok := FindHost(entries, "gpu2")
	require.True(t, ok)
	assert.Equal(t, "ml", e.User)
}
