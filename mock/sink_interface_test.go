package mock_test

import (
	stats "github.com/lyft/sststats"
	"github.com/lyft/sststats/mock"
)

var (
	_ stats.Sink          = (*mock.Sink)(nil)
	_ stats.FlushableSink = (*mock.Sink)(nil)
	_ stats.Incrementer   = (*mock.MockIncrementer)(nil)
)
