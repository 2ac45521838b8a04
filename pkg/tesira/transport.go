package tesira

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/enp6s0/dspgate/pkg/util"
)

// TransportState is one state of the Transport's connection lifecycle.
type TransportState int

const (
	Disconnected TransportState = iota
	Connecting
	Handshaking
	Connected
)

func (s TransportState) String() string {
	switch s {
	case Connecting:
		return "Connecting"
	case Handshaking:
		return "Handshaking"
	case Connected:
		return "Connected"
	default:
		return "Disconnected"
	}
}

// TransportConfig configures a Transport. Zero values for the duration
// fields are replaced by the defaults below in NewTransport.
type TransportConfig struct {
	Host     string
	Port     int
	Username string
	Password string

	InitialConnectTimeout time.Duration
	CommandTimeout        time.Duration
	ReadBufferSize        int
	WelcomeBanner         string
	BackoffInterval       time.Duration
}

const defaultWelcomeBanner = "Welcome to the Tesira Text Protocol Server..."

func (c *TransportConfig) setDefaults() {
	if c.Port == 0 {
		c.Port = 22
	}
	if c.InitialConnectTimeout == 0 {
		c.InitialConnectTimeout = 10 * time.Second
	}
	if c.CommandTimeout == 0 {
		c.CommandTimeout = 5 * time.Second
	}
	if c.ReadBufferSize == 0 {
		c.ReadBufferSize = 4096
	}
	if c.WelcomeBanner == "" {
		c.WelcomeBanner = defaultWelcomeBanner
	}
	if c.BackoffInterval == 0 {
		c.BackoffInterval = 1 * time.Second
	}
}

// Transport owns the single interactive SSH shell session to the device: a
// single-writer, single-reader byte pipe with automatic reconnect. Unlike an
// SSH port-forward, it drives one persistent `ssh.Session.Shell()` and
// exposes its stdin/stdout as the duplex described by the protocol codec.
type Transport struct {
	cfg TransportConfig

	mu      sync.Mutex
	state   TransportState
	client  *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser
	rx      *rxBuffer

	closed chan struct{}
	once   sync.Once
}

// rxBuffer accumulates bytes read from the session in a background goroutine
// so recvReady/recv never block on the underlying connection.
type rxBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	err error
}

func (r *rxBuffer) pump(src io.Reader) {
	tmp := make([]byte, 4096)
	for {
		n, err := src.Read(tmp)
		if n > 0 {
			r.mu.Lock()
			r.buf.Write(tmp[:n])
			r.mu.Unlock()
		}
		if err != nil {
			r.mu.Lock()
			r.err = err
			r.mu.Unlock()
			return
		}
	}
}

func (r *rxBuffer) ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Len() > 0
}

func (r *rxBuffer) take(max int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.buf.Len()
	if max > 0 && n > max {
		n = max
	}
	out := make([]byte, n)
	r.buf.Read(out)
	return out
}

func (r *rxBuffer) failure() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// NewTransport constructs a Transport. It does not connect; call Start to
// launch the supervisor goroutine.
func NewTransport(cfg TransportConfig) *Transport {
	cfg.setDefaults()
	return &Transport{cfg: cfg, closed: make(chan struct{})}
}

// discardStdin is an io.WriteCloser sink for Transports built by
// NewActiveTransportForTest, which never dial a real session.
type discardStdin struct{}

func (discardStdin) Write(p []byte) (int, error) { return len(p), nil }
func (discardStdin) Close() error                { return nil }

// NewActiveTransportForTest builds a Transport already in the Connected
// state with a discarding write sink, for callers in other packages (the
// HTTP adapter's tests, chiefly) exercising Control methods without a live
// SSH session. Production code only reaches Connected through Start.
func NewActiveTransportForTest(host string) *Transport {
	t := NewTransport(TransportConfig{Host: host})
	t.state = Connected
	t.stdin = discardStdin{}
	return t
}

// Start launches the supervisor goroutine, which connects, reconnects on
// loss, and otherwise does nothing once Connected: reading is owned by
// whichever caller currently holds the stream (Discovery, then the router).
func (t *Transport) Start() {
	go t.supervise()
}

func (t *Transport) supervise() {
	ticker := time.NewTicker(200 * time.Millisecond) // ~5 Hz
	defer ticker.Stop()

	for {
		select {
		case <-t.closed:
			return
		case <-ticker.C:
		}

		if t.active() {
			if err := t.checkHealth(); err != nil {
				util.WithDevice(t.cfg.Host).Warnf("transport lost: %v", err)
				t.teardown()
				continue
			}
			continue
		}

		if err := t.connectOnce(); err != nil {
			util.WithDevice(t.cfg.Host).Warnf("connect attempt failed: %v", err)
			t.teardown()
			select {
			case <-t.closed:
				return
			case <-time.After(t.cfg.BackoffInterval):
			}
		}
	}
}

func (t *Transport) checkHealth() error {
	t.mu.Lock()
	rx := t.rx
	t.mu.Unlock()
	if rx == nil {
		return fmt.Errorf("no receive buffer")
	}
	return rx.failure()
}

func (t *Transport) setState(s TransportState) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

func (t *Transport) connectOnce() error {
	t.setState(Connecting)

	config := &ssh.ClientConfig{
		User: t.cfg.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(t.cfg.Password),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         t.cfg.InitialConnectTimeout,
	}

	addr := fmt.Sprintf("%s:%d", t.cfg.Host, t.cfg.Port)
	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return fmt.Errorf("SSH dial %s@%s: %w", t.cfg.Username, addr, err)
	}

	t.setState(Handshaking)

	session, err := client.NewSession()
	if err != nil {
		client.Close()
		return fmt.Errorf("SSH session: %w", err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		client.Close()
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		client.Close()
		return fmt.Errorf("stdout pipe: %w", err)
	}

	if err := session.Shell(); err != nil {
		session.Close()
		client.Close()
		return fmt.Errorf("shell: %w", err)
	}

	rx := &rxBuffer{}
	go rx.pump(stdout)

	if err := waitForBanner(rx, t.cfg.WelcomeBanner, t.cfg.InitialConnectTimeout); err != nil {
		session.Close()
		client.Close()
		return err
	}

	t.mu.Lock()
	t.client = client
	t.session = session
	t.stdin = stdin
	t.rx = rx
	t.state = Connected
	t.mu.Unlock()

	util.WithDevice(t.cfg.Host).Info("transport connected")
	return nil
}

// waitForBanner polls rx until banner has been observed or timeout elapses.
// Every byte read while waiting, the banner included, is consumed from rx
// and is not seen by later readers.
func waitForBanner(rx *rxBuffer, banner string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var seen bytes.Buffer
	for time.Now().Before(deadline) {
		if rx.ready() {
			seen.Write(rx.take(0))
			if bytes.Contains(seen.Bytes(), []byte(banner)) {
				return nil
			}
		}
		if err := rx.failure(); err != nil {
			return fmt.Errorf("banner wait: %w", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	return fmt.Errorf("welcome banner not observed within %s", timeout)
}

func (t *Transport) teardown() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session != nil {
		t.session.Close()
		t.session = nil
	}
	if t.client != nil {
		t.client.Close()
		t.client = nil
	}
	t.stdin = nil
	t.rx = nil
	t.state = Disconnected
}

// active reports whether a session is up and the welcome banner has been
// observed (i.e. the session reached Connected).
func (t *Transport) active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == Connected
}

// State returns the current lifecycle state, for diagnostics.
func (t *Transport) State() TransportState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// recvReady reports whether bytes are buffered for reading.
func (t *Transport) recvReady() bool {
	t.mu.Lock()
	rx := t.rx
	t.mu.Unlock()
	return rx != nil && rx.ready()
}

// recv is a non-blocking read of up to ReadBufferSize bytes.
func (t *Transport) recv() ([]byte, error) {
	t.mu.Lock()
	rx := t.rx
	active := t.state == Connected
	size := t.cfg.ReadBufferSize
	t.mu.Unlock()
	if !active || rx == nil {
		return nil, util.ErrTransportDown
	}
	return rx.take(size), nil
}

// send appends a newline and writes line to the session's stdin.
func (t *Transport) send(line string) error {
	t.mu.Lock()
	stdin := t.stdin
	active := t.state == Connected
	t.mu.Unlock()
	if !active || stdin == nil {
		return util.ErrTransportDown
	}
	_, err := io.WriteString(stdin, line+"\n")
	return err
}

// sendWait writes line, then blocks up to CommandTimeout polling recvReady,
// returning the first non-empty buffer observed. Must not be called once
// the subscription router has taken ownership of the read side.
func (t *Transport) sendWait(line string) ([]byte, error) {
	if err := t.send(line); err != nil {
		return nil, err
	}
	deadline := time.Now().Add(t.cfg.CommandTimeout)
	for time.Now().Before(deadline) {
		if t.recvReady() {
			return t.recv()
		}
		time.Sleep(5 * time.Millisecond)
	}
	return nil, util.ErrTimeout
}

// close idempotently tears the Transport down and stops the supervisor.
func (t *Transport) close() {
	t.once.Do(func() {
		close(t.closed)
	})
	t.teardown()
}
