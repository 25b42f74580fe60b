package stats

import (
	"fmt"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	metrics "github.com/rcrowley/go-metrics"

	"github.com/lyft/sststats/internal/buffer"
	"github.com/lyft/sststats/internal/stat"
)

const (
	defaultRetryInterval = time.Second * 3
	defaultDialTimeout   = defaultRetryInterval / 2
	defaultWriteTimeout  = time.Second

	defaultPacketSizeTCP = 1 << 16

	// 1432 bytes is optimal for regular networks with an MTU of 1500 and
	// is to prevent fragmenting UDP datagrams
	defaultPacketSizeUDP = 1432
)

type dialFunc func(network, address string, timeout time.Duration) (net.Conn, error)

// netSink writes gauges to statsd. Lines are packed into packets of at most
// packetSize bytes and a line is never split between two packets, so every
// UDP datagram can be parsed on its own. Writes happen on the goroutine that
// flushes the Store.
type netSink struct {
	addr       string
	protocol   string
	packetSize int
	log        Logger
	now        func() time.Time
	dial       dialFunc

	sent    metrics.Counter
	dropped metrics.Counter

	mu         sync.Mutex
	conn       net.Conn
	dialFailed time.Time // zero unless the last dial failed
	dialErr    error
	packet     *buffer.Buffer
	pending    map[string]int // samples in packet by metric name
	drops      map[string]int // samples dropped since the last report by metric name
	dropErr    error
}

// NewNetSink returns a FlushableSink that writes gauges to statsd over the
// network. Labels are serialized into the stat name. WithStatsdHost,
// WithStatsdPort, WithStatsdProtocol, WithLogger, WithRegistry and
// WithClock apply to the sink, the statsd defaults are DefaultStatsdHost,
// DefaultStatsdPort and DefaultStatsdProtocol.
//
// The sink also implements SnapshotSink and io.Closer. A failed dial is
// not retried for a few seconds, samples written in the meantime are
// dropped and reported once per metric on the next Flush.
func NewNetSink(opts ...Option) FlushableSink {
	o := newOptions(opts)
	s := &netSink{
		addr:     net.JoinHostPort(o.statsdHost, strconv.Itoa(o.statsdPort)),
		protocol: o.statsdProtocol,
		log:      o.log,
		now:      o.now,
		dial:     net.DialTimeout,
		sent:     metrics.GetOrRegisterCounter(statsdSamplesSent, o.registry),
		dropped:  metrics.GetOrRegisterCounter(statsdSamplesDropped, o.registry),
		packet:   buffer.Get(),
		pending:  make(map[string]int),
		drops:    make(map[string]int),
	}
	switch s.protocol {
	case "udp", "udp4", "udp6":
		s.packetSize = defaultPacketSizeUDP
	default:
		s.packetSize = defaultPacketSizeTCP
	}
	return s
}

func (s *netSink) FlushGauge(name string, labels LabelSet, value float64) {
	s.mu.Lock()
	s.appendLocked(name, labels, value)
	s.mu.Unlock()
}

// FlushSnapshot writes every sample of snaps and sends them.
func (s *netSink) FlushSnapshot(snaps []MetricSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range snaps {
		for _, sample := range m.Samples {
			s.appendLocked(m.Name, sample.Labels, sample.Value)
		}
	}
	s.sendLocked()
	s.reportLocked()
}

func (s *netSink) Flush() {
	s.mu.Lock()
	s.sendLocked()
	s.reportLocked()
	s.mu.Unlock()
}

// Close sends the buffered samples and closes the connection.
func (s *netSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendLocked()
	s.reportLocked()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// s.mu should be held
func (s *netSink) appendLocked(name string, labels LabelSet, value float64) {
	line := buffer.Get()
	st := stat.Stat{Type: stat.GaugeStat, Name: name, Tags: labels, Value: value}
	st.Format(line)
	if s.packet.Len() != 0 && s.packet.Len()+line.Len() > s.packetSize {
		s.sendLocked()
	}
	s.packet.Write(line.Bytes())
	s.pending[name]++
	line.Free()
}

// sendLocked writes the packet. A write on a broken connection is retried
// once on a new one, a packet that still can not be written is dropped and
// counted against the metrics it carried.
//
// s.mu should be held
func (s *netSink) sendLocked() {
	if s.packet.Len() == 0 {
		return
	}
	err := s.writeLocked(s.packet.Bytes())
	if err != nil {
		err = s.writeLocked(s.packet.Bytes())
	}
	for name, n := range s.pending {
		if err != nil {
			s.drops[name] += n
			s.dropped.Inc(int64(n))
		} else {
			s.sent.Inc(int64(n))
		}
	}
	if err != nil {
		s.dropErr = err
	}
	s.packet.Reset()
	clear(s.pending)
}

// reportLocked logs the samples dropped since the last report, one line per
// metric.
//
// s.mu should be held
func (s *netSink) reportLocked() {
	if len(s.drops) == 0 {
		return
	}
	names := make([]string, 0, len(s.drops))
	for name := range s.drops {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s.log.Errorf("statsd: dropped %d samples of %s: %s", s.drops[name], name, s.dropErr)
	}
	clear(s.drops)
	s.dropErr = nil
}

// s.mu should be held
func (s *netSink) writeLocked(p []byte) error {
	if err := s.connectLocked(); err != nil {
		return err
	}
	// deadlines are wall clock time, s.now only paces the redials
	s.conn.SetWriteDeadline(time.Now().Add(defaultWriteTimeout))
	_, err := s.conn.Write(p)
	if err != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	return err
}

// s.mu should be held
func (s *netSink) connectLocked() error {
	if s.conn != nil {
		return nil
	}
	if !s.dialFailed.IsZero() {
		if wait := defaultRetryInterval - s.now().Sub(s.dialFailed); wait > 0 {
			return fmt.Errorf("not connected, next dial in %s: %w", wait, s.dialErr)
		}
	}
	conn, err := s.dial(s.protocol, s.addr, defaultDialTimeout)
	if err != nil {
		s.log.Warnf("statsd: connection error: %s", err)
		s.dialFailed = s.now()
		s.dialErr = err
		return err
	}
	s.conn = conn
	s.dialFailed = time.Time{}
	s.dialErr = nil
	return nil
}
