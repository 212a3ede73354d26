package filter_test

import (
	"testing"

	"github.com/dwn-project/dwn-node/filter"
	"github.com/stretchr/testify/require"
)

func TestFilterMatch(t *testing.T) {
	index := map[string]any{
		"interface": "Records",
		"method":    "Write",
		"schema":    "s1",
		"dataSize":  int64(42),
		"tags":      []any{"a", "b"},
	}

	f := filter.Filter{
		"interface": filter.Equal{Value: "Records"},
		"method":    filter.OneOf{Values: []any{"Write", "Delete"}},
		"dataSize":  filter.Range{Gte: int64(10), Lt: int64(100)},
		"schema":    filter.StartsWith{Prefix: "s"},
		"tags":      filter.Equal{Value: "b"},
	}
	require.True(t, f.Match(index))

	bad := filter.Filter{"schema": filter.Equal{Value: "s2"}}
	require.False(t, bad.Match(index))

	missing := filter.Filter{"nope": filter.Equal{Value: "x"}}
	require.False(t, missing.Match(index))
}

func TestDisjunctionMatch(t *testing.T) {
	index := map[string]any{"protocol": "https://p"}
	d := filter.Disjunction{
		{"protocol": filter.Equal{Value: "https://q"}},
		{"protocol": filter.Equal{Value: "https://p"}},
	}
	require.True(t, d.Match(index))

	require.True(t, filter.Disjunction{}.Match(index))
}

func TestRangeExclusiveLowerInclusiveUpper(t *testing.T) {
	f := filter.Filter{"v": filter.Range{Gt: int64(5), Lte: int64(10)}}
	require.False(t, f.Match(map[string]any{"v": int64(5)}))
	require.True(t, f.Match(map[string]any{"v": int64(6)}))
	require.True(t, f.Match(map[string]any{"v": int64(10)}))
	require.False(t, f.Match(map[string]any{"v": int64(11)}))
}
