package observability

import (
	"bytes"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	debugs int
	infos  int
	errors int
	last   []Field
}

func (r *recordingLogger) Debug(string, ...Field) { r.debugs++ }
func (r *recordingLogger) Info(string, ...Field)  { r.infos++ }
func (r *recordingLogger) Error(_ string, fields ...Field) {
	r.errors++
	r.last = fields
}

func TestSetLoggerOverridesGlobal(t *testing.T) {
	recorder := new(recordingLogger)
	SetLogger(recorder)
	defer SetLogger(nil)

	Log().Debug("test")
	require.Equal(t, 1, recorder.debugs)

	SetLogger(nil)
	Log().Info("noop")
	require.Equal(t, 0, recorder.infos)
}

func TestStdLoggerFormatsFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStdLogger(log.New(&buf, "", 0), false)

	logger.Info("pool saturated", Field{Key: "pool", Value: "buffers"}, Field{Key: "fail_count", Value: 3})
	require.Equal(t, "INFO pool saturated pool=buffers fail_count=3\n", buf.String())

	buf.Reset()
	logger.Debug("hidden")
	require.Empty(t, buf.String())

	buf.Reset()
	logger.Error("close failed", Field{Key: "error", Value: errors.New("bad fd")}, Field{Key: "note", Value: "two words"})
	require.Equal(t, "ERROR close failed error=\"bad fd\" note=\"two words\"\n", buf.String())
}

func TestStdLoggerVerboseEmitsDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStdLogger(log.New(&buf, "", 0), true)
	logger.Debug("visible")
	require.Equal(t, "DEBUG visible\n", buf.String())
}

func TestAggregateErrorsSkipsNilAndLogs(t *testing.T) {
	recorder := new(recordingLogger)
	SetLogger(recorder)
	defer SetLogger(nil)

	require.NoError(t, AggregateErrors("shutdown", []error{nil, nil}))
	require.Equal(t, 0, recorder.errors)

	first := errors.New("first")
	err := AggregateErrors("shutdown", []error{first, nil, errors.New("second")}, Field{Key: "component", Value: "poolbench"})
	require.Error(t, err)
	require.ErrorIs(t, err, first)
	require.Contains(t, err.Error(), "shutdown failed")
	require.Equal(t, 1, recorder.errors)
	require.Len(t, recorder.last, 4)
}
