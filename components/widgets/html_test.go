package widgets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func salesRows() []map[string]any {
	return []map[string]any{
		{"region": "north", "total": 10.0},
		{"region": "south", "total": 14.0},
	}
}

func TestHTMLRendererCards(t *testing.T) {
	r := NewHTMLRenderer(WithChartAssetsHost("https://cdn.example.com/echarts/"))
	cards := r.Cards([]Widget{
		KPI{ID: "k", Metric: "Revenue", Value: ptr(1234.5), Format: FormatCurrency},
		Chart{ID: "line", Type: ChartLine, X: "region", Y: "total", Rows: salesRows()},
		Chart{ID: "bar", Type: ChartBar, X: "region", Y: "total", Rows: salesRows()},
		Chart{ID: "scatter", Type: ChartScatter, Rows: []map[string]any{{"x": 1.0, "y": 2.0}}},
		Chart{ID: "pie", Type: "pie", Rows: salesRows()},
		Unknown{ID: "u", RawKind: "map"},
	})
	require.Len(t, cards, 6)

	assert.Equal(t, Card{ID: "k", Kind: KindKPI, Title: "Revenue", Value: "$1,234.5"}, cards[0])
	for _, card := range cards[1:4] {
		assert.Equal(t, KindChart, card.Kind)
		assert.False(t, card.Placeholder())
		assert.Contains(t, card.HTML, "echarts")
		assert.Contains(t, card.HTML, "cdn.example.com")
		assert.Contains(t, card.HTML, "chart-"+card.ID)
	}
	assert.Contains(t, cards[1].HTML, "north")
	assert.Equal(t, "total by region", cards[2].Title)

	assert.True(t, cards[4].Placeholder())
	assert.Equal(t, "Unsupported chart type: pie", cards[4].Message)
	assert.Equal(t, "Unsupported widget type: map", cards[5].Message)
}

type countingCache struct {
	inner *ChartCache
	calls int
}

func (c *countingCache) GetOrRender(key string, render func() (string, error)) (string, error) {
	return c.inner.GetOrRender(key, func() (string, error) {
		c.calls++
		return render()
	})
}

func TestHTMLRendererCachesCharts(t *testing.T) {
	cache := &countingCache{inner: NewChartCache(time.Minute)}
	r := NewHTMLRenderer(WithChartCache(cache))
	chart := Chart{ID: "bar", Type: ChartBar, X: "region", Y: "total", Rows: salesRows()}

	first := r.Bar(chart)
	second := r.Bar(chart)
	assert.Equal(t, first.HTML, second.HTML)
	assert.Equal(t, 1, cache.calls)

	chart.Rows = append(chart.Rows, map[string]any{"region": "east", "total": 1.0})
	r.Bar(chart)
	assert.Equal(t, 2, cache.calls)
}
