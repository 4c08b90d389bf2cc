package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestScheduler_CommandSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(t.Context()) })

	env := newTestEnv(t, WithTracerProvider(tp))
	env.register("ok", noop())
	env.register("bad", failing("nope"))
	env.start()

	env.append("ok")
	env.append("bad")
	env.drain()

	spans := sr.Ended()
	require.Len(t, spans, 2)

	attrs := func(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
		out := map[attribute.Key]attribute.Value{}
		for _, kv := range s.Attributes() {
			out[kv.Key] = kv.Value
		}
		return out
	}

	ok := attrs(spans[0])
	assert.Equal(t, "runq.command", spans[0].Name())
	assert.Equal(t, "ok", ok["runq.command"].AsString())
	assert.Equal(t, int64(0), ok["runq.batch"].AsInt64())
	assert.Equal(t, "drain-1", ok["runq.drain"].AsString())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)

	assert.Equal(t, "bad", attrs(spans[1])["runq.command"].AsString())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "nope", spans[1].Status().Description)
}
