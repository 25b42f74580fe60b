package stat

import (
	"errors"
	"io"
	"math"
	"strconv"

	"github.com/lyft/sststats/internal/buffer"
	"github.com/lyft/sststats/internal/tags"
)

type StatType uint32

const (
	CounterStat = StatType(iota + 1)
	GaugeStat
)

var ErrInvalidStatType = errors.New("invalid stat type")

func (s StatType) Valid() error {
	if CounterStat <= s && s <= GaugeStat {
		return nil
	}
	return ErrInvalidStatType
}

func (s StatType) String() string {
	switch s {
	case CounterStat:
		return "Counter"
	case GaugeStat:
		return "Gauge"
	default:
		return "StatType(" + strconv.FormatUint(uint64(s), 10) + ")"
	}
}

// A Stat is a single labeled sample.
type Stat struct {
	Type  StatType
	Name  string
	Tags  tags.TagSet
	Value float64
}

func (s Stat) valid() bool {
	return s.Type.Valid() == nil
}

func appendFloat64(b *buffer.Buffer, value float64) {
	// MaxInt is the largest integer that can be stored in a double
	// precision float without losing precision.
	const MaxInt = 1 << 53

	if -MaxInt <= value && value <= MaxInt && math.Trunc(value) == value {
		b.WriteInt64(int64(value))
	} else {
		b.WriteFloat64(value)
	}
}

func (s *Stat) suffix() string {
	if s.Type == CounterStat {
		return "|c\n"
	}
	return "|g\n"
}

// Format writes s to b as a statsd line. A leading sign on a statsd gauge is
// read as a relative change so negative gauges are written as a reset to
// zero followed by the negative delta.
func (s *Stat) Format(b *buffer.Buffer) {
	name := s.Tags.Serialize(s.Name)
	if s.Type == GaugeStat && s.Value < 0 {
		b.WriteString(name)
		b.WriteString(":0|g\n")
	}
	b.WriteString(name)
	b.WriteChar(':')
	appendFloat64(b, s.Value)
	b.WriteString(s.suffix())
}

// FormatText writes s to b in the Prometheus text exposition sample format:
//
//	name{key="value",...} value
func (s *Stat) FormatText(b *buffer.Buffer) {
	b.WriteString(s.Name)
	if len(s.Tags) != 0 {
		b.WriteChar('{')
		for i, t := range s.Tags {
			if i != 0 {
				b.WriteChar(',')
			}
			b.WriteString(t.Key)
			b.WriteChar('=')
			b.WriteQuoted(t.Value)
		}
		b.WriteChar('}')
	}
	b.WriteChar(' ')
	appendFloat64(b, s.Value)
	b.WriteChar('\n')
}

func (s *Stat) String() string {
	b := buffer.Get()
	s.FormatText(b)
	str := b.String()
	b.Free()
	return str[:len(str)-1]
}

func (s *Stat) WriteTo(w io.Writer) (int64, error) {
	if !s.valid() {
		return 0, ErrInvalidStatType
	}

	b := buffer.Get()
	s.Format(b)
	n, err := w.Write(b.Bytes())
	b.Free()

	return int64(n), err
}
