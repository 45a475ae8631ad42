package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/FAIRDataPipeline/data-registry/config"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const DefaultSSHServerPort = 22

var (
	ErrSSHServerHostRequired     = errors.New("ssh server host is required")
	ErrSSHServerUserRequired     = errors.New("ssh server user is required")
	ErrSSHPrivateKeyPathRequired = errors.New("ssh private key path is required")
	ErrSSHFilePathRequired       = errors.New("file path is required")
	ErrRemoteFileNotFound        = errors.New("remote file not found")
	ErrKnownHostsRequired        = errors.New("known_hosts file is required for ssh host key verification")
)

var defaultSSHTimeout = 15 * time.Second

type SSHServerConfig struct {
	Host           string
	Port           int
	User           string
	PrivateKeyPath string
	// KnownHostsPath defaults to ~/.ssh/known_hosts.
	KnownHostsPath        string
	InsecureIgnoreHostKey bool
	Timeout               time.Duration
}

type remoteFileClient interface {
	DownloadTo(remotePath string, dst io.Writer) (int64, error)
	Close() error
}

type remoteFileClientFactory interface {
	New(server SSHServerConfig) (remoteFileClient, error)
}

// SFTPFetcher reads sftp:// and ssh:// storage locations. Host, port and user come from the URI,
// the key and timeouts from the configured defaults.
type SFTPFetcher struct {
	defaults      SSHServerConfig
	clientFactory remoteFileClientFactory
}

func NewSFTPFetcher(cfg config.SFTPConfig) *SFTPFetcher {
	return &SFTPFetcher{
		defaults: SSHServerConfig{
			Port:           cfg.Port,
			User:           cfg.User,
			PrivateKeyPath: cfg.PrivateKeyPath,
			KnownHostsPath:        cfg.KnownHostsPath,
			InsecureIgnoreHostKey: cfg.InsecureIgnoreHostKey,
			Timeout:               cfg.Timeout,
		},
		clientFactory: &sshSFTPClientFactory{},
	}
}

func (f *SFTPFetcher) Fetch(ctx context.Context, uri *url.URL, dst io.Writer) error {
	logger := serviceLogger().With("service", "SFTPFetcher", "method", "Fetch")
	start := time.Now()

	server, err := f.serverFor(uri)
	if err != nil {
		logger.Warn("fetch failed: invalid server", "uri", uri.Redacted(), "error", err)
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	client, err := f.clientFactory.New(server)
	if err != nil {
		logger.Error("fetch failed: connect", "host", server.Host, "port", server.Port, "error", err)
		return fmt.Errorf("connect sftp server failed: %w", err)
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("close sftp client failed", "host", server.Host, "error", closeErr)
		}
	}()

	written, err := client.DownloadTo(uri.Path, dst)
	if err != nil {
		logger.Error("fetch failed: download", "host", server.Host, "path", uri.Path, "error", err)
		return err
	}
	logger.Info(
		"fetch success",
		"host", server.Host,
		"path", uri.Path,
		"bytes", written,
		"cost_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (f *SFTPFetcher) serverFor(uri *url.URL) (SSHServerConfig, error) {
	server := f.defaults
	server.Host = uri.Hostname()
	if p := uri.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return SSHServerConfig{}, fmt.Errorf("invalid ssh port %q: %w", p, err)
		}
		server.Port = port
	}
	if uri.User != nil && uri.User.Username() != "" {
		server.User = uri.User.Username()
	}
	return normalizeServerConfig(server)
}

func normalizeServerConfig(cfg SSHServerConfig) (SSHServerConfig, error) {
	normalized := cfg
	normalized.Host = strings.TrimSpace(normalized.Host)
	normalized.User = strings.TrimSpace(normalized.User)
	normalized.PrivateKeyPath = strings.TrimSpace(normalized.PrivateKeyPath)
	normalized.KnownHostsPath = strings.TrimSpace(normalized.KnownHostsPath)
	if normalized.Port == 0 {
		normalized.Port = DefaultSSHServerPort
	}
	if normalized.Timeout <= 0 {
		normalized.Timeout = defaultSSHTimeout
	}
	if normalized.Host == "" {
		return SSHServerConfig{}, ErrSSHServerHostRequired
	}
	if normalized.User == "" {
		return SSHServerConfig{}, ErrSSHServerUserRequired
	}
	if normalized.PrivateKeyPath == "" {
		return SSHServerConfig{}, ErrSSHPrivateKeyPathRequired
	}
	return normalized, nil
}

func normalizeRemoteFilePath(rawPath string) (string, error) {
	value := strings.TrimSpace(strings.ReplaceAll(rawPath, "\\", "/"))
	if value == "" {
		return "", ErrSSHFilePathRequired
	}
	if !strings.HasPrefix(value, "/") {
		value = "/" + value
	}
	value = path.Clean(value)
	if value == "/" || value == "." {
		return "", ErrSSHFilePathRequired
	}
	return value, nil
}

type sshSFTPClientFactory struct{}

func (f *sshSFTPClientFactory) New(server SSHServerConfig) (remoteFileClient, error) {
	return newSSHSFTPClient(server)
}

type sshSFTPClient struct {
	server     SSHServerConfig
	sshClient  *ssh.Client
	sftpClient *sftp.Client
}

func defaultKnownHostsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrKnownHostsRequired, err)
	}
	return filepath.Join(home, ".ssh", "known_hosts"), nil
}

func hostKeyCallback(server SSHServerConfig) (ssh.HostKeyCallback, error) {
	if server.InsecureIgnoreHostKey {
		// 仅在显式配置时跳过主机密钥校验
		serviceLogger().Warn("ssh host key verification disabled", "host", server.Host)
		return ssh.InsecureIgnoreHostKey(), nil
	}

	path := server.KnownHostsPath
	if path == "" {
		var err error
		if path, err = defaultKnownHostsPath(); err != nil {
			return nil, err
		}
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrKnownHostsRequired, path)
	}
	callback, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("load known hosts failed: %w", err)
	}
	return callback, nil
}

func newSSHSFTPClient(server SSHServerConfig) (*sshSFTPClient, error) {
	normalized, err := normalizeServerConfig(server)
	if err != nil {
		return nil, err
	}

	keyBytes, err := os.ReadFile(normalized.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key failed: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key failed: %w", err)
	}

	hostKeys, err := hostKeyCallback(normalized)
	if err != nil {
		return nil, err
	}

	clientConfig := &ssh.ClientConfig{
		User: normalized.User,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(signer),
		},
		HostKeyCallback: hostKeys,
		Timeout:         normalized.Timeout,
	}

	address := net.JoinHostPort(normalized.Host, strconv.Itoa(normalized.Port))
	sshClient, err := ssh.Dial("tcp", address, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("dial ssh failed: %w", err)
	}

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		_ = sshClient.Close()
		return nil, fmt.Errorf("create sftp client failed: %w", err)
	}

	return &sshSFTPClient{
		server:     normalized,
		sshClient:  sshClient,
		sftpClient: sftpClient,
	}, nil
}

func (c *sshSFTPClient) DownloadTo(remotePath string, dst io.Writer) (int64, error) {
	normalizedRemote, err := normalizeRemoteFilePath(remotePath)
	if err != nil {
		return 0, err
	}

	src, err := c.sftpClient.Open(normalizedRemote)
	if err != nil {
		if isNotExistError(err) {
			return 0, ErrRemoteFileNotFound
		}
		return 0, fmt.Errorf("open remote file failed: %w", err)
	}
	defer src.Close()

	written, err := io.Copy(dst, src)
	if err != nil {
		return 0, fmt.Errorf("read remote file failed: %w", err)
	}
	return written, nil
}

func (c *sshSFTPClient) Close() error {
	var firstErr error
	if c.sftpClient != nil {
		if err := c.sftpClient.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.sshClient != nil {
		if err := c.sshClient.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func isNotExistError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrNotExist) || os.IsNotExist(err) {
		return true
	}
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "not exist") || strings.Contains(message, "no such file")
}

