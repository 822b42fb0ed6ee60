package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLeafEquality(t *testing.T) {
	cond, err := Parse(`custom_details.host = "db1"`)
	require.NoError(t, err)
	require.True(t, cond.IsLeaf())
	assert.Equal(t, OpEqual, cond.Op)
	assert.Equal(t, "custom_details.host", cond.Field)
	assert.Equal(t, NewLiteral("db1"), cond.Value)
}

func TestParseStarBecomesRegexAtom(t *testing.T) {
	cond, err := Parse(`summary = "db*"`)
	require.NoError(t, err)
	assert.Equal(t, AtomRegex, cond.Value.Kind)
	assert.Equal(t, "db*", cond.Value.Pattern)
}

func TestParseSlashRegex(t *testing.T) {
	cond, err := Parse(`summary = /db[0-9]+/`)
	require.NoError(t, err)
	assert.Equal(t, AtomRegex, cond.Value.Kind)
	assert.Equal(t, "db[0-9]+", cond.Value.Pattern)
}

func TestParseInList(t *testing.T) {
	cond, err := Parse(`severity IN ["critical", "warning"]`)
	require.NoError(t, err)
	assert.Equal(t, OpIn, cond.Op)
	require.Len(t, cond.List, 2)
	assert.Equal(t, NewLiteral("critical"), cond.List[0])
	assert.Equal(t, NewLiteral("warning"), cond.List[1])
}

func TestParseNotIn(t *testing.T) {
	cond, err := Parse(`severity NOT IN ["info"]`)
	require.NoError(t, err)
	assert.Equal(t, OpNotIn, cond.Op)
}

func TestParseAndOrPrecedence(t *testing.T) {
	// AND binds tighter than OR: a OR b AND c == a OR (b AND c)
	cond, err := Parse(`a = "1" OR b = "2" AND c = "3"`)
	require.NoError(t, err)
	require.Equal(t, OpOr, cond.Op)
	require.Len(t, cond.Children, 2)
	assert.True(t, cond.Children[0].IsLeaf())
	assert.Equal(t, OpAnd, cond.Children[1].Op)
}

func TestParseExplicitGrouping(t *testing.T) {
	cond, err := Parse(`(a = "1" OR b = "2") AND c = "3"`)
	require.NoError(t, err)
	require.Equal(t, OpAnd, cond.Op)
	require.Len(t, cond.Children, 2)
	assert.Equal(t, OpOr, cond.Children[0].Op)
}

func TestParseNotEqual(t *testing.T) {
	cond, err := Parse(`a != "1"`)
	require.NoError(t, err)
	assert.Equal(t, OpNotEqual, cond.Op)
}

func TestParseSyntaxErrors(t *testing.T) {
	_, err := Parse(`a = `)
	assert.ErrorIs(t, err, errSyntax)

	_, err = Parse(`a === "1"`)
	assert.ErrorIs(t, err, errSyntax)

	_, err = Parse(`(a = "1"`)
	assert.ErrorIs(t, err, errSyntax)
}

func TestParseEscapedQuoteInString(t *testing.T) {
	cond, err := Parse(`a = "say \"hi\""`)
	require.NoError(t, err)
	assert.Equal(t, `say "hi"`, cond.Value.Pattern)
}
