package plugin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdaltagent/pdgateway/internal/domain/record"
)

type fnEventFilter struct {
	name  string
	order int
	fn    func(ctx context.Context, event record.Map, routingKey, destinationType string) (interface{}, error)
}

func (p *fnEventFilter) Name() string  { return p.name }
func (p *fnEventFilter) Order() int    { return p.order }
func (p *fnEventFilter) FilterEvent(ctx context.Context, event record.Map, routingKey, destinationType string) (interface{}, error) {
	return p.fn(ctx, event, routingKey, destinationType)
}

func TestFilterEventChainsMapRewrites(t *testing.T) {
	h := NewHost(newHostConfig())
	require.NoError(t, h.Register(&fnEventFilter{name: "first", order: 10, fn: func(ctx context.Context, event record.Map, rk, dt string) (interface{}, error) {
		event["first"] = true
		return event, nil
	}}))
	require.NoError(t, h.Register(&fnEventFilter{name: "second", order: 20, fn: func(ctx context.Context, event record.Map, rk, dt string) (interface{}, error) {
		event["second"] = true
		return event, nil
	}}))

	out := h.FilterEvent(context.Background(), record.Map{}, "", "")
	assert.False(t, out.Suppressed)
	assert.Equal(t, record.Map{"first": true, "second": true}, out.Event)
}

func TestFilterEventSuppressEndsChain(t *testing.T) {
	h := NewHost(newHostConfig())
	var calledSecond bool
	require.NoError(t, h.Register(&fnEventFilter{name: "suppressor", order: 10, fn: func(ctx context.Context, event record.Map, rk, dt string) (interface{}, error) {
		return nil, nil
	}}))
	require.NoError(t, h.Register(&fnEventFilter{name: "second", order: 20, fn: func(ctx context.Context, event record.Map, rk, dt string) (interface{}, error) {
		calledSecond = true
		return event, nil
	}}))

	out := h.FilterEvent(context.Background(), record.Map{}, "", "")
	assert.True(t, out.Suppressed)
	assert.False(t, calledSecond)
}

func TestFilterEventStopHaltsButKeepsValue(t *testing.T) {
	h := NewHost(newHostConfig())
	var calledSecond bool
	require.NoError(t, h.Register(&fnEventFilter{name: "stopper", order: 10, fn: func(ctx context.Context, event record.Map, rk, dt string) (interface{}, error) {
		return []interface{}{record.Map{"stopped": true}, nil, nil, true}, nil
	}}))
	require.NoError(t, h.Register(&fnEventFilter{name: "second", order: 20, fn: func(ctx context.Context, event record.Map, rk, dt string) (interface{}, error) {
		calledSecond = true
		return event, nil
	}}))

	out := h.FilterEvent(context.Background(), record.Map{}, "", "")
	assert.False(t, calledSecond)
	assert.Equal(t, record.Map{"stopped": true}, out.Event)
}

func TestFilterEventIsolatesPluginErrorAndBadReturn(t *testing.T) {
	h := NewHost(newHostConfig())
	require.NoError(t, h.Register(&fnEventFilter{name: "erroring", order: 10, fn: func(ctx context.Context, event record.Map, rk, dt string) (interface{}, error) {
		return nil, errors.New("boom")
	}}))
	require.NoError(t, h.Register(&fnEventFilter{name: "bad-shape", order: 20, fn: func(ctx context.Context, event record.Map, rk, dt string) (interface{}, error) {
		return 42, nil
	}}))
	require.NoError(t, h.Register(&fnEventFilter{name: "good", order: 30, fn: func(ctx context.Context, event record.Map, rk, dt string) (interface{}, error) {
		event["reached"] = true
		return event, nil
	}}))

	out := h.FilterEvent(context.Background(), record.Map{"seed": true}, "", "")
	assert.False(t, out.Suppressed)
	assert.Equal(t, record.Map{"seed": true, "reached": true}, out.Event)
}

type fnWebhookFilter struct {
	name string
	fn   func(ctx context.Context, webhook record.Map, url string) (interface{}, error)
}

func (p *fnWebhookFilter) Name() string { return p.name }
func (p *fnWebhookFilter) FilterWebhook(ctx context.Context, webhook record.Map, url string) (interface{}, error) {
	return p.fn(ctx, webhook, url)
}

func TestFilterWebhookRewritesURL(t *testing.T) {
	h := NewHost(newHostConfig())
	require.NoError(t, h.Register(&fnWebhookFilter{name: "redirect", fn: func(ctx context.Context, webhook record.Map, url string) (interface{}, error) {
		return []interface{}{nil, "https://example.com/other"}, nil
	}}))

	out := h.FilterWebhook(context.Background(), record.Map{"a": 1}, "https://example.com/original")
	assert.False(t, out.Suppressed)
	assert.Equal(t, "https://example.com/other", out.URL)
	assert.Equal(t, record.Map{"a": 1}, out.Webhook)
}
