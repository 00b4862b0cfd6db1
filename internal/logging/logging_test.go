package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStdLoggerBindAccumulatesFields(t *testing.T) {
	l := NewStdLogger()
	bound := l.Bind("conn_id", "abc").Bind("request_id", "def")

	bl, ok := bound.(*StdLogger)
	assert.True(t, ok)
	assert.Equal(t, []any{"conn_id", "abc", "request_id", "def"}, bl.fields)
}

func TestStdLoggerBindDoesNotMutateParent(t *testing.T) {
	l := NewStdLogger()
	_ = l.Bind("conn_id", "abc")
	assert.Empty(t, l.fields)
}

func TestNoopLoggerDiscardsEverything(t *testing.T) {
	n := Noop()
	assert.NotPanics(t, func() {
		n.Debug("msg")
		n.Info("msg", "k", "v")
		n.Warn("msg")
		n.Error("msg")
		n.Bind("k", "v").Info("msg")
	})
}

func TestStdLoggerWriteIncludesBoundFields(t *testing.T) {
	l := NewStdLogger()
	bound := l.Bind("conn_id", "abc")
	assert.NotPanics(t, func() { bound.Info("event_happened") })
}
