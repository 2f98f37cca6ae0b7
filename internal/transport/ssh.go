package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"pkt.systems/termbridge/schema"
)

var sshCapabilities = schema.TransportCapabilities{
	CanSend:              true,
	CanReceive:           true,
	SupportsFlowControl:  false,
	SupportsModemLines:   false,
	SupportsBreak:        false,
	SupportsFileTransfer: false,
}

// sshRxQueueDepth bounds the background reader's relay buffer; see BLE's
// rxQueueDepth for the same non-blocking-producer rationale.
const sshRxQueueDepth = 64

// SSH is an opaque client-side byte channel over an interactive shell or a
// single remote command. All cryptographic work — key exchange, host
// authentication, cipher negotiation — is delegated entirely to
// golang.org/x/crypto/ssh; this driver only shuttles bytes across the
// resulting channel. Host key verification is intentionally permissive
// here (see DESIGN.md): the data model carries no known-hosts path for a
// caller to supply one.
type SSH struct {
	params schema.SSHParams

	mu      sync.Mutex
	client  *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser
	state   schema.TransportState

	rxCh  chan []byte
	rxErr chan error

	statsMu sync.Mutex
	stats   schema.TransportStats
}

// NewSSH constructs an SSH driver. It performs no I/O until Connect.
func NewSSH(params schema.SSHParams) *SSH {
	return &SSH{params: params, state: schema.TransportDisconnected}
}

func (s *SSH) Capabilities() schema.TransportCapabilities { return sshCapabilities }

func (s *SSH) State() schema.TransportState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *SSH) Stats() schema.TransportStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

func (s *SSH) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return newError(ErrClosed, "already connected")
	}
	s.state = schema.TransportConnecting

	auths, err := s.authMethods()
	if err != nil {
		s.state = schema.TransportFailed
		return newError(ErrAuthFailed, "%v", err)
	}
	timeout := s.params.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	config := &ssh.ClientConfig{
		User:            s.params.User,
		Auth:            auths,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}

	addr := net.JoinHostPort(s.params.Host, strconv.Itoa(s.params.Port))
	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		s.state = schema.TransportFailed
		return classifySSHErr(err)
	}
	session, err := client.NewSession()
	if err != nil {
		client.Close()
		s.state = schema.TransportFailed
		return newError(ErrIO, "open session: %v", err)
	}
	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		client.Close()
		s.state = schema.TransportFailed
		return newError(ErrIO, "stdin pipe: %v", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		client.Close()
		s.state = schema.TransportFailed
		return newError(ErrIO, "stdout pipe: %v", err)
	}

	if s.params.Command == "" {
		if err := session.RequestPty("xterm-256color", 24, 80, ssh.TerminalModes{}); err != nil {
			session.Close()
			client.Close()
			s.state = schema.TransportFailed
			return newError(ErrIO, "request pty: %v", err)
		}
		if err := session.Shell(); err != nil {
			session.Close()
			client.Close()
			s.state = schema.TransportFailed
			return newError(ErrIO, "start shell: %v", err)
		}
	} else if err := session.Start(s.params.Command); err != nil {
		session.Close()
		client.Close()
		s.state = schema.TransportFailed
		return newError(ErrIO, "start command: %v", err)
	}

	s.client = client
	s.session = session
	s.stdin = stdin
	s.rxCh = make(chan []byte, sshRxQueueDepth)
	s.rxErr = make(chan error, 1)
	go s.readLoop(stdout)

	s.state = schema.TransportConnected
	s.statsMu.Lock()
	s.stats = schema.TransportStats{StartTime: time.Now()}
	s.statsMu.Unlock()
	return nil
}

func (s *SSH) readLoop(r io.Reader) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			select {
			case s.rxCh <- chunk:
			default:
				select {
				case <-s.rxCh:
				default:
				}
				select {
				case s.rxCh <- chunk:
				default:
				}
			}
		}
		if err != nil {
			select {
			case s.rxErr <- err:
			default:
			}
			close(s.rxCh)
			return
		}
	}
}

func (s *SSH) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		s.state = schema.TransportDisconnected
		return nil
	}
	s.state = schema.TransportClosing
	if s.session != nil {
		s.session.Close()
	}
	err := s.client.Close()
	s.client = nil
	s.session = nil
	s.state = schema.TransportDisconnected
	if err != nil {
		return newError(ErrIO, "%v", err)
	}
	return nil
}

func (s *SSH) Send(ctx context.Context, data []byte) (int, error) {
	s.mu.Lock()
	stdin := s.stdin
	s.mu.Unlock()
	if stdin == nil {
		return 0, newError(ErrClosed, "not connected")
	}
	n, err := stdin.Write(data)
	if err != nil {
		return n, newError(ErrIO, "%v", err)
	}
	s.statsMu.Lock()
	s.stats.TxBytes += uint64(n)
	s.stats.TxFrames++
	s.statsMu.Unlock()
	return n, nil
}

func (s *SSH) Receive(ctx context.Context) ([]byte, error) {
	select {
	case chunk, ok := <-s.rxCh:
		if !ok {
			select {
			case err := <-s.rxErr:
				return nil, newError(ErrClosed, "%v", err)
			default:
				return nil, newError(ErrClosed, "connection closed")
			}
		}
		s.statsMu.Lock()
		s.stats.RxBytes += uint64(len(chunk))
		s.stats.RxFrames++
		s.statsMu.Unlock()
		return chunk, nil
	case <-ctx.Done():
		return nil, newError(ErrCancelled, "receive cancelled")
	}
}

func (s *SSH) SetModemLine(line ModemLine, state bool) error {
	return CheckModemLine(s.Capabilities())
}

func (s *SSH) SendBreak(ctx context.Context, duration time.Duration) error {
	return CheckBreak(s.Capabilities())
}

func (s *SSH) authMethods() ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod
	if len(s.params.PrivateKeyPEM) > 0 {
		signer, err := ssh.ParsePrivateKey(s.params.PrivateKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if s.params.Password != "" {
		methods = append(methods, ssh.Password(s.params.Password))
	}
	if len(methods) == 0 {
		return nil, fmt.Errorf("no authentication method configured")
	}
	return methods, nil
}

func classifySSHErr(err error) error {
	if strings.Contains(err.Error(), "unable to authenticate") {
		return newError(ErrAuthFailed, "%v", err)
	}
	var netErr net.Error
	if ne, ok := err.(net.Error); ok {
		netErr = ne
	}
	if netErr != nil && netErr.Timeout() {
		return newError(ErrTimeout, "%v", err)
	}
	return newError(ErrConnectionRefused, "%v", err)
}
