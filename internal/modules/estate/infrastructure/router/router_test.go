package router

import (
	"EstateGuru/internal/modules/estate/domain/route"
	"EstateGuru/internal/modules/estate/infrastructure/llm/llmtest"
	"EstateGuru/internal/modules/estate/infrastructure/metrics"
	"EstateGuru/internal/modules/estate/infrastructure/preprocess"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T, m *llmtest.ScriptedModel) *Router {
	t.Helper()
	r, err := New(m, preprocess.New(), metrics.NewMetrics())
	require.NoError(t, err)
	return r
}

func TestRouteParsesLabel(t *testing.T) {
	cases := []struct {
		reply string
		want  route.Kind
	}{
		{"rent", route.KindRent},
		{"Buy.", route.KindBuy},
		{"  details\n", route.KindDetails},
		{"knowledge - general question", route.KindKnowledge},
	}
	pre := preprocess.New()
	for _, tc := range cases {
		m := llmtest.NewScripted(llmtest.Text(tc.reply))
		d := newRouter(t, m).Route(context.Background(), "2bhk for rent in wakad", pre.Analyze("2bhk for rent in wakad"))
		assert.Equal(t, tc.want, d.Kind, tc.reply)
		assert.False(t, d.Fallback)
		assert.Equal(t, 1, m.CallCount())
	}
}

func TestRoutePromptCarriesEnhancedQuery(t *testing.T) {
	pre := preprocess.New()
	m := llmtest.NewScripted(llmtest.Text("rent"))
	newRouter(t, m).Route(context.Background(), "2bhk for rent in wakad", pre.Analyze("2bhk for rent in wakad"))
	require.Len(t, m.Calls, 1)
	assert.Contains(t, m.Calls[0][0].Content, "Respond with exactly one of: knowledge, buy, rent, details")
	assert.Contains(t, m.Calls[0][1].Content, "2 BHK properties")
	assert.Contains(t, m.Calls[0][1].Content, "in wakad")
}

func TestRouteFallsBackToKnowledge(t *testing.T) {
	pre := preprocess.New()
	a := pre.Analyze("tell me about rera rules")

	unknown := llmtest.NewScripted(llmtest.Text("sell"))
	d := newRouter(t, unknown).Route(context.Background(), "tell me about rera rules", a)
	assert.Equal(t, route.KindKnowledge, d.Kind)
	assert.True(t, d.Fallback)

	failing := llmtest.NewScripted(llmtest.Fail(errors.New("timeout")))
	d = newRouter(t, failing).Route(context.Background(), "tell me about rera rules", a)
	assert.Equal(t, route.KindKnowledge, d.Kind)
	assert.True(t, d.Fallback)
}

func TestRouteGreetingSkipsModel(t *testing.T) {
	pre := preprocess.New()
	m := llmtest.NewScripted()
	d := newRouter(t, m).Route(context.Background(), "hello there", pre.Analyze("hello there"))
	assert.Equal(t, route.KindGreeting, d.Kind)
	assert.Equal(t, 0, m.CallCount())
}
