package plugin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdaltagent/pdgateway/internal/config"
	"github.com/pdaltagent/pdgateway/internal/domain/record"
)

type namedPlugin struct {
	name  string
	order int
}

func (p *namedPlugin) Name() string { return p.name }
func (p *namedPlugin) Order() int   { return p.order }

func newHostConfig() config.PluginHostConfig {
	return config.PluginHostConfig{DefaultOrder: 100, FallbackOrder: 999}
}

func TestHostListOrdersByOrderThenLoadOrder(t *testing.T) {
	h := NewHost(newHostConfig())

	require.NoError(t, h.Register(&namedPlugin{name: "b", order: 100}))
	require.NoError(t, h.Register(&namedPlugin{name: "a", order: 50}))
	require.NoError(t, h.Register(&namedPlugin{name: "c", order: 100}))

	assert.Equal(t, []string{"a", "b", "c"}, h.List())
}

func TestHostRegisterFallsBackOnNegativeOrder(t *testing.T) {
	h := NewHost(newHostConfig())
	require.NoError(t, h.Register(&namedPlugin{name: "weird", order: -1}))
	require.NoError(t, h.Register(&namedPlugin{name: "normal", order: 100}))

	assert.Equal(t, []string{"normal", "weird"}, h.List())
}

func TestHostRegisterDefaultsUnorderedPlugin(t *testing.T) {
	h := NewHost(newHostConfig())

	unordered := &noopEventFilter{name: "unordered"}
	ordered := &namedPlugin{name: "ordered", order: 50}

	require.NoError(t, h.Register(unordered))
	require.NoError(t, h.Register(ordered))

	assert.Equal(t, []string{"ordered", "unordered"}, h.List())
}

func TestHostUnregisterAndHas(t *testing.T) {
	h := NewHost(newHostConfig())
	require.NoError(t, h.Register(&namedPlugin{name: "p", order: 100}))

	assert.True(t, h.Has("p"))
	assert.True(t, h.Unregister("p"))
	assert.False(t, h.Has("p"))
	assert.False(t, h.Unregister("p"))
}

type noopEventFilter struct{ name string }

func (p *noopEventFilter) Name() string { return p.name }
func (p *noopEventFilter) FilterEvent(ctx context.Context, event record.Map, routingKey, destinationType string) (interface{}, error) {
	return event, nil
}
