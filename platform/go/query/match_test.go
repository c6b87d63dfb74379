package query

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type doc struct {
	id     string
	fields map[string]any
}

func (d doc) get(attribute string) (any, bool) {
	if attribute == "$id" {
		return d.id, true
	}
	v, ok := d.fields[attribute]
	return v, ok
}

func TestPlanMatches(t *testing.T) {
	plan, err := Set{Equal("kind", "post", "event"), Equal("pinned", true)}.Plan()
	require.NoError(t, err)

	require.True(t, plan.Matches(doc{fields: map[string]any{"kind": "post", "pinned": true}}.get))
	require.False(t, plan.Matches(doc{fields: map[string]any{"kind": "post", "pinned": false}}.get))
	require.False(t, plan.Matches(doc{fields: map[string]any{"kind": "poll", "pinned": true}}.get))
	require.False(t, plan.Matches(doc{fields: map[string]any{"kind": "post"}}.get))
}

func TestPlanSortAndWindow(t *testing.T) {
	docs := []doc{
		{id: "c", fields: map[string]any{"rank": "b"}},
		{id: "a", fields: map[string]any{"rank": "a"}},
		{id: "b", fields: map[string]any{"rank": "b"}},
	}
	plan, err := Set{OrderDesc("rank"), Offset(1), Limit(5)}.Plan()
	require.NoError(t, err)

	plan.Sort(len(docs),
		func(i int) Getter { return docs[i].get },
		func(i int) string { return docs[i].id },
		func(i, j int) { docs[i], docs[j] = docs[j], docs[i] },
	)
	ids := []string{docs[0].id, docs[1].id, docs[2].id}
	require.Equal(t, []string{"b", "c", "a"}, ids)

	start, end := plan.Window(len(docs))
	require.Equal(t, 1, start)
	require.Equal(t, 3, end)

	start, end = Plan{Offset: 10, Limit: 5}.Window(3)
	require.Equal(t, 3, start)
	require.Equal(t, 3, end)
}
