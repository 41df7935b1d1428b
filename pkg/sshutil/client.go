package sshutil

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kevinburke/ssh_config"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Client wraps an SSH connection with the host it was dialed for.
type Client struct {
	*ssh.Client
	Host    string // host-spec as given by the caller
	Address string // resolved host:port
	User    string
}

// Options controls how Dial resolves and authenticates a host.
type Options struct {
	// User is used when the host-spec has no explicit "user@" part.
	// It takes precedence over the User directive in ~/.ssh/config.
	User string

	// ConnectTimeout bounds the TCP connect and the SSH handshake.
	ConnectTimeout time.Duration

	// InsecureIgnoreHostKey disables known_hosts verification.
	InsecureIgnoreHostKey bool

	// ConfigPath overrides ~/.ssh/config. Mostly for tests.
	ConfigPath string
}

// Phase identifies where Dial failed.
type Phase int

const (
	// PhaseSetup covers building auth methods and the host key callback.
	PhaseSetup Phase = iota
	// PhaseConnect is the TCP connect.
	PhaseConnect
	// PhaseHandshake is the SSH handshake, excluding authentication.
	PhaseHandshake
	// PhaseAuth is a rejected key, exhausted methods or a host key mismatch.
	PhaseAuth
)

func (p Phase) String() string {
	switch p {
	case PhaseSetup:
		return "setup"
	case PhaseConnect:
		return "connect"
	case PhaseHandshake:
		return "handshake"
	case PhaseAuth:
		return "auth"
	default:
		return "unknown"
	}
}

// DialError is returned by Dial.
type DialError struct {
	Host       string
	Address    string
	Phase      Phase
	Suggestion string
	Err        error
}

func (e *DialError) Error() string {
	if e.Address != "" {
		return fmt.Sprintf("ssh %s to %s (%s): %v", e.Phase, e.Host, e.Address, e.Err)
	}
	return fmt.Sprintf("ssh %s to %s: %v", e.Phase, e.Host, e.Err)
}

func (e *DialError) Unwrap() error {
	return e.Err
}

// Dial establishes an SSH connection to host. The host can be an ssh_config
// alias, a hostname, user@hostname, or hostname:port.
//
// Settings are resolved from ~/.ssh/config when available. Cancelling ctx
// aborts the connect and the handshake.
func Dial(ctx context.Context, host string, opts Options) (*Client, error) {
	settings := resolveSSHSettings(host, opts)

	config, err := buildSSHConfig(settings, opts)
	if err != nil {
		return nil, &DialError{
			Host:       host,
			Phase:      PhaseSetup,
			Suggestion: "Check your keys are loaded: ssh-add -l",
			Err:        err,
		}
	}

	address := settings.address()
	dialer := net.Dialer{Timeout: opts.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, &DialError{
			Host:       host,
			Address:    address,
			Phase:      PhaseConnect,
			Suggestion: suggestionForDialError(err),
			Err:        err,
		}
	}

	// The handshake has no context of its own; a deadline on the conn
	// covers both ConnectTimeout and ctx cancellation.
	deadline := time.Time{}
	if opts.ConnectTimeout > 0 {
		deadline = time.Now().Add(opts.ConnectTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() { conn.Close() })

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	stop()
	if err != nil {
		conn.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, handshakeError(host, address, err, settings.encryptedKeys)
	}
	_ = conn.SetDeadline(time.Time{})

	return &Client{
		Client:  ssh.NewClient(sshConn, chans, reqs),
		Host:    host,
		Address: address,
		User:    settings.user,
	}, nil
}

// Close closes the SSH connection.
func (c *Client) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

func handshakeError(host, address string, err error, encryptedKeys []string) *DialError {
	de := &DialError{Host: host, Address: address, Phase: PhaseHandshake, Err: err}

	var hostKeyErr *HostKeyMismatchError
	if stderrors.As(err, &hostKeyErr) {
		de.Phase = PhaseAuth
		de.Suggestion = hostKeyErr.Suggestion()
		return de
	}

	var keyErr *knownhosts.KeyError
	if stderrors.As(err, &keyErr) || isAuthFailure(err) {
		de.Phase = PhaseAuth
	}
	de.Suggestion = suggestionForHandshakeError(err, encryptedKeys)
	return de
}

func isAuthFailure(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "no supported methods remain") ||
		strings.Contains(msg, "knownhosts: key is unknown")
}

// sshSettings holds resolved SSH connection parameters.
type sshSettings struct {
	hostname      string
	port          string
	user          string
	identityFile  string
	encryptedKeys []string
}

func (s *sshSettings) address() string {
	return net.JoinHostPort(s.hostname, s.port)
}

// resolveSSHSettings parses user@host:port and layers ~/.ssh/config on top.
// Precedence for the user: explicit user@ > opts.User > ssh_config User > $USER.
func resolveSSHSettings(host string, opts Options) *sshSettings {
	settings := &sshSettings{
		port: "22",
		user: currentUser(),
	}

	explicitUser := false
	if atIdx := strings.LastIndex(host, "@"); atIdx != -1 {
		settings.user = host[:atIdx]
		host = host[atIdx+1:]
		explicitUser = true
	}

	if colonIdx := strings.LastIndex(host, ":"); colonIdx != -1 {
		potentialPort := host[colonIdx+1:]
		if potentialPort != "" && strings.Trim(potentialPort, "0123456789") == "" {
			settings.port = potentialPort
			host = host[:colonIdx]
		}
	}
	settings.hostname = host

	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = filepath.Join(homeDir(), ".ssh", "config")
	}

	// kevinburke/ssh_config doesn't support Match, so only the part before
	// the first Match block is parsed.
	content, _, err := preprocessSSHConfig(configPath)
	if err == nil {
		if cfg, err := ssh_config.Decode(bytes.NewReader(content)); err == nil {
			if hostname, _ := cfg.Get(host, "HostName"); hostname != "" {
				settings.hostname = hostname
			}
			if port, _ := cfg.Get(host, "Port"); port != "" {
				settings.port = port
			}
			if user, _ := cfg.Get(host, "User"); user != "" && !explicitUser {
				settings.user = user
			}
			if identity, _ := cfg.Get(host, "IdentityFile"); identity != "" {
				settings.identityFile = expandPath(identity)
			}
		}
	}

	if !explicitUser && opts.User != "" {
		settings.user = opts.User
	}

	return settings
}

// buildSSHConfig creates an SSH client config with authentication methods.
// It records keys that exist but are encrypted in settings.encryptedKeys.
func buildSSHConfig(settings *sshSettings, opts Options) (*ssh.ClientConfig, error) {
	var authMethods []ssh.AuthMethod

	tryKeyFile := func(keyPath string) {
		keyAuth, err := keyFileAuth(keyPath)
		if err != nil {
			var encErr *EncryptedKeyError
			if stderrors.As(err, &encErr) {
				settings.encryptedKeys = append(settings.encryptedKeys, keyPath)
			}
			return
		}
		authMethods = append(authMethods, keyAuth)
	}

	if agentAuth := sshAgentAuth(); agentAuth != nil {
		authMethods = append(authMethods, agentAuth)
	}

	if settings.identityFile != "" {
		tryKeyFile(settings.identityFile)
	}
	for _, keyPath := range DefaultKeyFiles() {
		if keyPath == settings.identityFile {
			continue
		}
		tryKeyFile(keyPath)
	}

	if len(authMethods) == 0 {
		if len(settings.encryptedKeys) > 0 {
			return nil, fmt.Errorf("found SSH key(s) but they're encrypted: %s", strings.Join(settings.encryptedKeys, ", "))
		}
		return nil, stderrors.New("no SSH auth methods available")
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey() //nolint:gosec // caller opted out of host key checking
	if !opts.InsecureIgnoreHostKey {
		var err error
		hostKeyCallback, err = createHostKeyCallback(filepath.Join(homeDir(), ".ssh", "known_hosts"))
		if err != nil {
			return nil, fmt.Errorf("failed to load known_hosts: %w", err)
		}
	}

	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ssh.ClientConfig{
		User:            settings.user,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}, nil
}

// DefaultKeyFiles lists the private keys tried when ssh_config names none.
func DefaultKeyFiles() []string {
	return []string{
		filepath.Join(homeDir(), ".ssh", "id_ed25519"),
		filepath.Join(homeDir(), ".ssh", "id_rsa"),
		filepath.Join(homeDir(), ".ssh", "id_ecdsa"),
	}
}

var (
	agentConn     net.Conn
	agentClient   agent.ExtendedAgent
	agentConnOnce sync.Once
)

// sshAgentAuth returns agent auth when the agent has keys loaded.
// The agent connection is shared by all dials in the process.
func sshAgentAuth() ssh.AuthMethod {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}

	agentConnOnce.Do(func() {
		conn, err := net.Dial("unix", socket)
		if err != nil {
			return
		}
		agentConn = conn
		agentClient = agent.NewClient(conn)
	})

	if agentClient == nil {
		return nil
	}

	// An empty agent placed before key files makes auth fail early.
	signers, err := agentClient.Signers()
	if err != nil || len(signers) == 0 {
		return nil
	}

	return ssh.PublicKeysCallback(agentClient.Signers)
}

// AgentKeyCount returns how many keys the SSH agent holds.
func AgentKeyCount() (int, error) {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return 0, stderrors.New("SSH_AUTH_SOCK is not set")
	}
	conn, err := net.DialTimeout("unix", socket, 2*time.Second)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	keys, err := agent.NewClient(conn).List()
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// CloseAgent closes the shared SSH agent connection if one is open.
func CloseAgent() {
	if agentConn != nil {
		agentConn.Close()
	}
}

// keyFileAuth returns EncryptedKeyError if the key requires a passphrase.
func keyFileAuth(keyPath string) (ssh.AuthMethod, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if stderrors.As(err, &missing) || isEncryptedPEM(key) {
			return nil, &EncryptedKeyError{Path: keyPath}
		}
		return nil, err
	}

	return ssh.PublicKeys(signer), nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

func currentUser() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "root"
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

func suggestionForDialError(err error) string {
	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "connection refused"):
		return "Is sshd running on that box? Try: ssh <host>"
	case strings.Contains(errStr, "no such host"):
		return "Hostname didn't resolve. Check the cluster file or ~/.ssh/config."
	case strings.Contains(errStr, "no route to host"), strings.Contains(errStr, "network is unreachable"):
		return "Can't route to the host. Check your network connection."
	case strings.Contains(errStr, "timeout"):
		return "Connection timed out. Host might be offline or blocked by a firewall."
	}
	return "Make sure the host is reachable: ping <host>"
}

func suggestionForHandshakeError(err error, encryptedKeys []string) string {
	errStr := err.Error()
	if strings.Contains(errStr, "unable to authenticate") || strings.Contains(errStr, "no supported methods") {
		if len(encryptedKeys) > 0 {
			var sb strings.Builder
			sb.WriteString("Your key(s) are encrypted. Add them to the agent:\n")
			for _, key := range encryptedKeys {
				fmt.Fprintf(&sb, "  ssh-add %s\n", key)
			}
			return sb.String()
		}
		return "Auth failed. Check your keys are loaded: ssh-add -l"
	}
	if strings.Contains(errStr, "host key") || strings.Contains(errStr, "knownhosts") {
		return "Host key issue. Try connecting manually first: ssh <host>"
	}
	return "Something went wrong during SSH setup. Try: ssh <host>"
}

// EncryptedKeyError is returned when an SSH key requires a passphrase.
type EncryptedKeyError struct {
	Path string
}

func (e *EncryptedKeyError) Error() string {
	return fmt.Sprintf("SSH key at %s is encrypted (passphrase protected)", e.Path)
}

// HostKeyMismatchError is returned when known_hosts has a different key for the host.
type HostKeyMismatchError struct {
	Hostname     string
	ReceivedType string
	KnownHosts   string
	Want         []knownhosts.KnownKey
}

func (e *HostKeyMismatchError) Error() string {
	return fmt.Sprintf("host key mismatch for %s: server sent %s key", e.Hostname, e.ReceivedType)
}

// Suggestion returns the commands that fix the mismatch.
func (e *HostKeyMismatchError) Suggestion() string {
	host := e.Hostname
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return fmt.Sprintf("The server's host key doesn't match known_hosts. If the host was reinstalled:\n"+
		"    ssh-keygen -R %s\n"+
		"    ssh-keyscan %s >> %s", host, host, e.KnownHosts)
}

// preprocessSSHConfig returns the config content up to the first Match
// directive, plus the 1-based line of that directive (0 if none).
func preprocessSSHConfig(configPath string) ([]byte, int, error) {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, 0, err
	}

	lines := strings.Split(string(content), "\n")
	for i, line := range lines {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "match ") {
			return []byte(strings.Join(lines[:i], "\n")), i + 1, nil
		}
	}
	return content, 0, nil
}

func isEncryptedPEM(data []byte) bool {
	return bytes.Contains(data, []byte("ENCRYPTED"))
}

// createHostKeyCallback wraps knownhosts to return HostKeyMismatchError.
// A missing known_hosts file is created empty, so unknown hosts fail
// instead of being trusted silently.
func createHostKeyCallback(knownHostsPath string) (ssh.HostKeyCallback, error) {
	if _, err := os.Stat(knownHostsPath); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(knownHostsPath), 0700); err != nil {
			return nil, fmt.Errorf("failed to create .ssh directory: %w", err)
		}
		if err := os.WriteFile(knownHostsPath, []byte{}, 0600); err != nil {
			return nil, fmt.Errorf("failed to create known_hosts: %w", err)
		}
	}

	callback, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, err
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := callback(hostname, remote, key)
		var keyErr *knownhosts.KeyError
		if err != nil && stderrors.As(err, &keyErr) && len(keyErr.Want) > 0 {
			return &HostKeyMismatchError{
				Hostname:     hostname,
				ReceivedType: key.Type(),
				KnownHosts:   knownHostsPath,
				Want:         keyErr.Want,
			}
		}
		return err
	}, nil
}
