package stats

import (
	"bufio"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// statsdServer is a statsd server on the loopback interface that records
// every line it receives.
type statsdServer struct {
	protocol string
	addr     string
	lines    chan string
	packets  chan int // sizes of the received UDP datagrams

	mu      sync.Mutex
	closed  bool
	closers []io.Closer
	wg      sync.WaitGroup
}

func newStatsdServer(t testing.TB, protocol string) *statsdServer {
	return startStatsdServer(t, protocol, "127.0.0.1:0")
}

func startStatsdServer(t testing.TB, protocol, addr string) *statsdServer {
	t.Helper()
	s := &statsdServer{
		protocol: protocol,
		lines:    make(chan string, 4096),
		packets:  make(chan int, 4096),
	}
	switch protocol {
	case "udp":
		conn, err := net.ListenPacket("udp", addr)
		if err != nil {
			t.Fatal("ListenPacket:", err)
		}
		s.addr = conn.LocalAddr().String()
		s.track(conn)
		s.wg.Add(1)
		go s.serveUDP(conn)
	case "tcp":
		l, err := net.Listen("tcp", addr)
		if err != nil {
			t.Fatal("Listen:", err)
		}
		s.addr = l.Addr().String()
		s.track(l)
		s.wg.Add(1)
		go s.acceptTCP(l)
	default:
		t.Fatalf("unsupported protocol: %q", protocol)
	}
	t.Cleanup(s.Close)
	return s
}

// track closes c with the server, or now if the server is already closed.
func (s *statsdServer) track(c io.Closer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		c.Close()
		return
	}
	s.closers = append(s.closers, c)
}

func (s *statsdServer) serveUDP(conn net.PacketConn) {
	defer s.wg.Done()
	buf := make([]byte, 1<<16)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			return
		}
		select {
		case s.packets <- n:
		default:
		}
		for _, line := range strings.Split(string(buf[:n]), "\n") {
			if line != "" {
				s.lines <- line
			}
		}
	}
}

func (s *statsdServer) acceptTCP(l net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		s.track(conn)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			scan := bufio.NewScanner(conn)
			for scan.Scan() {
				s.lines <- scan.Text()
			}
		}()
	}
}

// Close stops the server and closes every connection to it.
func (s *statsdServer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	for _, c := range closers {
		c.Close()
	}
	s.wg.Wait()
}

// Lines waits for the next n lines.
func (s *statsdServer) Lines(t testing.TB, n int) []string {
	t.Helper()
	timeout := time.After(5 * time.Second)
	lines := make([]string, 0, n)
	for len(lines) < n {
		select {
		case line := <-s.lines:
			lines = append(lines, line)
		case <-timeout:
			t.Fatalf("timed out waiting for %d lines, got: %q", n, lines)
		}
	}
	return lines
}

// Packets returns the sizes of the UDP datagrams received so far.
func (s *statsdServer) Packets() []int {
	var sizes []int
	for {
		select {
		case n := <-s.packets:
			sizes = append(sizes, n)
		default:
			return sizes
		}
	}
}

func (s *statsdServer) Port(t testing.TB) int {
	t.Helper()
	_, port, err := net.SplitHostPort(s.addr)
	if err != nil {
		t.Fatal(err)
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

// unusedTCPAddr returns a loopback address nothing is listening on.
func unusedTCPAddr(t testing.TB) (string, int) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal("Listen:", err)
	}
	addr := l.Addr().(*net.TCPAddr)
	l.Close()
	return addr.String(), addr.Port
}

func newTestNetSink(t testing.TB, protocol string, port int, opts ...Option) *netSink {
	t.Helper()
	opts = append([]Option{
		WithStatsdHost("127.0.0.1"),
		WithStatsdPort(port),
		WithStatsdProtocol(protocol),
		WithLogger(discardLogger{}),
	}, opts...)
	s := NewNetSink(opts...).(*netSink)
	t.Cleanup(func() { s.Close() })
	return s
}

// countDials makes s count its dial attempts.
func countDials(s *netSink) *int {
	var n int
	dial := s.dial
	s.dial = func(network, address string, timeout time.Duration) (net.Conn, error) {
		n++
		return dial(network, address, timeout)
	}
	return &n
}

// discardConn is a net.Conn that accepts every write.
type discardConn struct {
	net.Conn
}

func (discardConn) Write(p []byte) (int, error)      { return len(p), nil }
func (discardConn) SetWriteDeadline(time.Time) error { return nil }
func (discardConn) Close() error                     { return nil }
