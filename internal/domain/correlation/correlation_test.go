package correlation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdaltagent/pdgateway/internal/domain/condition"
	"github.com/pdaltagent/pdgateway/internal/domain/record"
	"github.com/pdaltagent/pdgateway/internal/domain/rules"
)

func TestTagWritesSortedKeyAndJoinedValues(t *testing.T) {
	rec := record.Map{"host": "h1", "service": "s1"}
	rule := &rules.CorrelationRule{ID: "r1", Tags: []string{"service", "host"}}

	err := Tag(rec, "", rule, condition.NewRegexCache(4))
	require.NoError(t, err)

	assert.Equal(t, "h1+s1", record.Get(rec, "correlations.host+service"))
}

func TestTagSkipsOnMissingTagValue(t *testing.T) {
	rec := record.Map{"host": "h1"}
	rule := &rules.CorrelationRule{ID: "r1", Tags: []string{"host", "service"}}

	err := Tag(rec, "", rule, condition.NewRegexCache(4))
	require.NoError(t, err)
	assert.Nil(t, record.Get(rec, "correlations.host+service"))
}

func TestTagSkipsWhenFilterDoesNotMatch(t *testing.T) {
	cond, err := condition.Parse(`host = "nope"`)
	require.NoError(t, err)
	rec := record.Map{"host": "h1"}
	rule := &rules.CorrelationRule{ID: "r1", Tags: []string{"host"}, Filter: cond}

	require.NoError(t, Tag(rec, "", rule, condition.NewRegexCache(4)))
	assert.Nil(t, record.Get(rec, "correlations.host"))
}
