package query

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendDoesNotMutateReceiver(t *testing.T) {
	base := Set{Equal("kind", "post"), Limit(10)}
	base = base[:2:2]

	out := base.Append(Equal("institutionId", "inst-1"))

	require.Len(t, base, 2)
	require.Len(t, out, 3)
	require.Equal(t, Equal("institutionId", "inst-1"), out[2])
}

func TestParseDecodesPredicates(t *testing.T) {
	set, err := Parse([]string{
		`{"method":"equal","attribute":"kind","values":["post","event"]}`,
		`{"method":"orderDesc","attribute":"$createdAt"}`,
		`{"method":"limit","values":["5"]}`,
		"",
	})
	require.NoError(t, err)
	require.Len(t, set, 3)
	require.Equal(t, MethodEqual, set[0].Method)
	require.Equal(t, []string{"post", "event"}, set[0].Values)
}

func TestParseRejectsInvalidPredicates(t *testing.T) {
	cases := map[string]string{
		"bad json":       `{"method":`,
		"unknown method": `{"method":"search","attribute":"title","values":["x"]}`,
		"bad attribute":  `{"method":"equal","attribute":"a;drop","values":["x"]}`,
		"no values":      `{"method":"equal","attribute":"a"}`,
		"limit too big":  `{"method":"limit","values":["1000"]}`,
		"negative off":   `{"method":"offset","values":["-1"]}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]string{raw})
			require.Error(t, err)
		})
	}
}

func TestPlanUsesDefaultsAndLastWindowWins(t *testing.T) {
	plan, err := Set{Equal("a", 1)}.Plan()
	require.NoError(t, err)
	require.Equal(t, DefaultLimit, plan.Limit)
	require.Zero(t, plan.Offset)

	plan, err = Set{Limit(5), Offset(3), Limit(7)}.Plan()
	require.NoError(t, err)
	require.Equal(t, 7, plan.Limit)
	require.Equal(t, 3, plan.Offset)
}

func TestFormatValue(t *testing.T) {
	require.Equal(t, "true", FormatValue(true))
	require.Equal(t, "3", FormatValue(3))
	require.Equal(t, "3", FormatValue(float64(3)))
	require.Equal(t, "2.5", FormatValue(2.5))
	require.Equal(t, "x", FormatValue("x"))
}
