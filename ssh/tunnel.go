// Package ssh provides a local port forward for reaching a warehouse
// that sits behind a bastion host.
//
// Design decisions:
//   - Uses golang.org/x/crypto/ssh with key-based authentication only;
//     an optional passphrase unlocks encrypted keys.
//   - The local listener binds 127.0.0.1:0 so concurrent instances
//     never fight over a port. Open returns the assigned endpoint and
//     the caller points pgx at it.
//   - Forwarding runs in background goroutines owned by the Tunnel;
//     Close stops the listener first so the accept loop drains cleanly.
package ssh

import (
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"

	"golang.org/x/crypto/ssh"

	"github.com/storeql/storeql/config"
)

// Tunnel forwards local TCP connections to a remote endpoint through an
// SSH bastion.
type Tunnel struct {
	clientCfg   *ssh.ClientConfig
	bastionAddr string
	remoteAddr  string

	client   *ssh.Client
	listener net.Listener
	closed   chan struct{}
	wg       sync.WaitGroup
}

// NewTunnel prepares a tunnel to remoteHost:remotePort via the bastion
// in cfg. No connection is made until Open.
func NewTunnel(cfg config.SSHConfig, remoteHost string, remotePort int) (*Tunnel, error) {
	signer, err := loadSigner(cfg)
	if err != nil {
		return nil, err
	}

	return &Tunnel{
		clientCfg: &ssh.ClientConfig{
			User:            cfg.User,
			Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
			HostKeyCallback: ssh.InsecureIgnoreHostKey(), // TODO: known_hosts verification
		},
		bastionAddr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		remoteAddr:  net.JoinHostPort(remoteHost, strconv.Itoa(remotePort)),
		closed:      make(chan struct{}),
	}, nil
}

// Open dials the bastion, binds a local listener and starts forwarding.
// It returns the local host and port to connect the database client to.
func (t *Tunnel) Open() (string, int, error) {
	client, err := ssh.Dial("tcp", t.bastionAddr, t.clientCfg)
	if err != nil {
		return "", 0, fmt.Errorf("ssh dial %s: %w", t.bastionAddr, err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		client.Close()
		return "", 0, fmt.Errorf("local listen: %w", err)
	}

	t.client = client
	t.listener = listener

	t.wg.Add(1)
	go t.serve()

	port := listener.Addr().(*net.TCPAddr).Port
	return "127.0.0.1", port, nil
}

// Close stops accepting connections and tears down the SSH client.
func (t *Tunnel) Close() {
	close(t.closed)
	if t.listener != nil {
		t.listener.Close()
	}
	t.wg.Wait()
	if t.client != nil {
		t.client.Close()
	}
}

func (t *Tunnel) serve() {
	defer t.wg.Done()
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.closed:
				return
			default:
				continue
			}
		}
		t.wg.Add(1)
		go t.pipe(conn)
	}
}

// pipe shuttles bytes between the local connection and the remote
// endpoint until either side closes.
func (t *Tunnel) pipe(local net.Conn) {
	defer t.wg.Done()
	defer local.Close()

	remote, err := t.client.Dial("tcp", t.remoteAddr)
	if err != nil {
		return
	}
	defer remote.Close()

	halfDone := make(chan struct{}, 2)
	go func() {
		_, _ = io.Copy(remote, local)
		halfDone <- struct{}{}
	}()
	go func() {
		_, _ = io.Copy(local, remote)
		halfDone <- struct{}{}
	}()
	<-halfDone
}

func loadSigner(cfg config.SSHConfig) (ssh.Signer, error) {
	if cfg.KeyPath == "" {
		return nil, fmt.Errorf("ssh tunnel enabled but no key configured")
	}
	raw, err := os.ReadFile(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("read ssh key %s: %w", cfg.KeyPath, err)
	}
	if cfg.KeyPassphrase != "" {
		signer, err := ssh.ParsePrivateKeyWithPassphrase(raw, []byte(cfg.KeyPassphrase))
		if err != nil {
			return nil, fmt.Errorf("parse ssh key: %w", err)
		}
		return signer, nil
	}
	signer, err := ssh.ParsePrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("parse ssh key: %w", err)
	}
	return signer, nil
}
