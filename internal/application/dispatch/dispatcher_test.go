package dispatch

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdaltagent/pdgateway/internal/application/plugin"
	"github.com/pdaltagent/pdgateway/internal/config"
	"github.com/pdaltagent/pdgateway/internal/domain/record"
)

type stubDoer struct {
	fn func(req *http.Request) (*http.Response, error)
}

func (s *stubDoer) Do(req *http.Request) (*http.Response, error) { return s.fn(req) }

func newResponse(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(""))}
}

func newTestDispatcher(t *testing.T, doer httpDoer) (*Dispatcher, *Queue) {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	q := NewQueue(client)
	host := plugin.NewHost(config.PluginHostConfig{DefaultOrder: 100, FallbackOrder: 999})
	cfg := config.DispatchConfig{
		BaseURL:              "https://events.pagerduty.com",
		InitialBackoff:       10 * time.Millisecond,
		ThrottledMinSeconds:  3,
		ThrottledMaxSeconds:  5,
		WebhookMaxAttempts:   10,
		PluginFilterSoftWait: time.Second,
		Workers:              2,
	}
	d := New(cfg, q, host, WithHTTPClient(doer))
	return d, q
}

func TestExecuteSendEventSuccessDoesNotRetry(t *testing.T) {
	var gotURL string
	doer := &stubDoer{fn: func(req *http.Request) (*http.Response, error) {
		gotURL = req.URL.String()
		return newResponse(200), nil
	}}
	d, q := newTestDispatcher(t, doer)

	d.executeSendEvent(context.Background(), &Task{
		Kind: KindSendEvent, RoutingKey: "R1234", DestinationType: "v2",
		BaseURL: "https://events.pagerduty.com", Payload: record.Map{"a": 1},
	})

	assert.Equal(t, "https://events.pagerduty.com/v2/enqueue", gotURL)

	task, err := q.Dequeue(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, task, "success must not schedule a retry")
}

func TestExecuteSendEventServerErrorSchedulesRetry(t *testing.T) {
	doer := &stubDoer{fn: func(req *http.Request) (*http.Response, error) {
		return newResponse(503), nil
	}}
	d, q := newTestDispatcher(t, doer)

	d.executeSendEvent(context.Background(), &Task{
		Kind: KindSendEvent, RoutingKey: "R1234", DestinationType: "v2",
		BaseURL: "https://events.pagerduty.com", Payload: record.Map{"a": 1},
	})

	n, err := q.PromoteDue(context.Background(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	task, err := q.Dequeue(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, 1, task.Attempt)
}

func TestExecuteSendEventClientErrorDropsWithoutRetry(t *testing.T) {
	doer := &stubDoer{fn: func(req *http.Request) (*http.Response, error) {
		return newResponse(400), nil
	}}
	d, q := newTestDispatcher(t, doer)

	d.executeSendEvent(context.Background(), &Task{
		Kind: KindSendEvent, RoutingKey: "R1234", DestinationType: "v2",
		BaseURL: "https://events.pagerduty.com", Payload: record.Map{"a": 1},
	})

	n, err := q.PromoteDue(context.Background(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	task, err := q.Dequeue(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestSendEventUsesConfiguredBaseURLWhenEmpty(t *testing.T) {
	d, q := newTestDispatcher(t, &stubDoer{fn: func(req *http.Request) (*http.Response, error) {
		return newResponse(200), nil
	}})

	require.NoError(t, d.SendEvent(context.Background(), "R1234", record.Map{"a": 1}, "", "v2"))

	task, err := q.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, "https://events.pagerduty.com", task.BaseURL)
}
