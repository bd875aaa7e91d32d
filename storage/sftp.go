package storage

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"video-branding-worker/config"
)

// SFTPStore opens one SSH session per upload. Publishes are rare relative to
// transcode time, so no connection is held between jobs.
type SFTPStore struct {
	cfg           config.SFTP
	publicBaseURL string
}

func NewSFTPStore(cfg config.SFTP, publicBaseURL string) *SFTPStore {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	return &SFTPStore{cfg: cfg, publicBaseURL: publicBaseURL}
}

func (s *SFTPStore) authMethods() ([]ssh.AuthMethod, error) {
	if s.cfg.PrivateKeyFile != "" {
		keyBytes, err := os.ReadFile(s.cfg.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(keyBytes)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	if s.cfg.Password != "" {
		return []ssh.AuthMethod{ssh.Password(s.cfg.Password)}, nil
	}
	return nil, fmt.Errorf("no sftp auth method configured; set password or private_key_file")
}

func (s *SFTPStore) Put(ctx context.Context, key, localPath, contentType string) (string, error) {
	auths, err := s.authMethods()
	if err != nil {
		return "", err
	}
	src, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer src.Close()

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", fmt.Errorf("dial tcp %s: %w", addr, err)
	}
	clientConn, chans, reqs, err := ssh.NewClientConn(conn, addr, &ssh.ClientConfig{
		User:            s.cfg.User,
		Auth:            auths,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         10 * time.Second,
	})
	if err != nil {
		_ = conn.Close()
		return "", fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	sshClient := ssh.NewClient(clientConn, chans, reqs)
	defer sshClient.Close()

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		return "", fmt.Errorf("create sftp client: %w", err)
	}
	defer client.Close()

	remotePath := path.Join(s.cfg.RemoteRoot, key)
	if err := mkdirAllSFTP(client, path.Dir(remotePath)); err != nil {
		return "", fmt.Errorf("ensure remote dir: %w", err)
	}
	dst, err := client.Create(remotePath)
	if err != nil {
		return "", fmt.Errorf("create remote file %s: %w", remotePath, err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("copy to remote file %s: %w", remotePath, err)
	}
	zerolog.Ctx(ctx).Debug().Str("addr", addr).Str("remote_path", remotePath).Msg("uploaded artifact over sftp")

	if s.publicBaseURL != "" {
		return joinURL(s.publicBaseURL, key), nil
	}
	return "sftp://" + addr + remotePath, nil
}

func (s *SFTPStore) Close() error {
	return nil
}

// mkdirAllSFTP creates each missing segment of dir.
func mkdirAllSFTP(client *sftp.Client, dir string) error {
	if dir == "" || dir == "." || dir == "/" {
		return nil
	}
	cur := ""
	if strings.HasPrefix(dir, "/") {
		cur = "/"
	}
	for _, p := range strings.Split(dir, "/") {
		if p == "" {
			continue
		}
		cur = path.Join(cur, p)
		if _, err := client.Stat(cur); err != nil {
			if !os.IsNotExist(err) {
				return fmt.Errorf("stat %s: %w", cur, err)
			}
			if err := client.Mkdir(cur); err != nil {
				return fmt.Errorf("mkdir %s: %w", cur, err)
			}
		}
	}
	return nil
}
