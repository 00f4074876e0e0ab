package widgets

import (
	"bytes"
	"io"
	"strings"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"github.com/goliatone/go-insights/internal/logger"
)

const defaultChartHeight = "300px"

// Card is the HTML view model of one widget.
type Card struct {
	ID        string
	Kind      string
	Title     string
	Value     string
	ChartType ChartType
	HTML      string
	Message   string
	Reason    Reason
}

// Placeholder reports whether the card is a fallback.
func (c Card) Placeholder() bool {
	return c.Reason != ""
}

// HTMLOption customizes an HTMLRenderer.
type HTMLOption func(*HTMLRenderer)

// WithChartCache injects a render cache.
func WithChartCache(cache RenderCache) HTMLOption {
	return func(r *HTMLRenderer) {
		r.cache = cache
	}
}

// WithChartTheme sets the ECharts theme (defaults to Westeros).
func WithChartTheme(theme string) HTMLOption {
	return func(r *HTMLRenderer) {
		if theme != "" {
			r.theme = theme
		}
	}
}

// WithChartAssetsHost rewrites the assets host so ECharts JS loads from a CDN.
func WithChartAssetsHost(host string) HTMLOption {
	return func(r *HTMLRenderer) {
		r.assetsHost = host
	}
}

// WithHTMLLogger reports chart render failures.
func WithHTMLLogger(l *logger.Logger) HTMLOption {
	return func(r *HTMLRenderer) {
		r.log = logger.OrNop(l)
	}
}

// WithFormatter overrides KPI number formatting.
func WithFormatter(f Formatter) HTMLOption {
	return func(r *HTMLRenderer) {
		r.formatter = &f
	}
}

// HTMLRenderer renders widgets into cards with go-echarts chart markup.
type HTMLRenderer struct {
	cache      RenderCache
	theme      string
	assetsHost string
	log        *logger.Logger
	formatter  *Formatter
}

var _ Strategy[Card] = (*HTMLRenderer)(nil)

// NewHTMLRenderer builds a renderer with a five minute chart cache.
func NewHTMLRenderer(options ...HTMLOption) *HTMLRenderer {
	r := &HTMLRenderer{
		cache: NewChartCache(5 * time.Minute),
		theme: types.ThemeWesteros,
		log:   logger.Nop(),
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Cards renders every widget in order.
func (r *HTMLRenderer) Cards(ws []Widget) []Card {
	cards := make([]Card, len(ws))
	for i, w := range ws {
		cards[i] = Dispatch[Card](w, r)
	}
	return cards
}

func (r *HTMLRenderer) KPI(k KPI, formatted string) Card {
	if r.formatter != nil {
		formatted = r.formatter.Format(k.Value, k.Format)
	}
	return Card{ID: k.ID, Kind: KindKPI, Title: k.Label(), Value: formatted}
}

func (r *HTMLRenderer) Line(c Chart) Card {
	return r.chartCard(c, func() (string, error) {
		points := c.Points()
		line := charts.NewLine()
		line.SetGlobalOptions(r.globalOptions(c)...)
		line.SetXAxis(labels(points))
		data := make([]opts.LineData, len(points))
		for i, p := range points {
			data[i] = opts.LineData{Name: p.Label, Value: p.Y}
		}
		line.AddSeries(c.YKey(), data)
		line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))
		return renderChart(line)
	})
}

func (r *HTMLRenderer) Bar(c Chart) Card {
	return r.chartCard(c, func() (string, error) {
		points := c.Points()
		bar := charts.NewBar()
		bar.SetGlobalOptions(r.globalOptions(c)...)
		bar.SetXAxis(labels(points))
		data := make([]opts.BarData, len(points))
		for i, p := range points {
			data[i] = opts.BarData{Name: p.Label, Value: p.Y}
		}
		bar.AddSeries(c.YKey(), data)
		return renderChart(bar)
	})
}

func (r *HTMLRenderer) Scatter(c Chart) Card {
	return r.chartCard(c, func() (string, error) {
		points := c.Points()
		scatter := charts.NewScatter()
		global := r.globalOptions(c)
		numeric := allNumeric(points)
		if numeric {
			global = append(global,
				charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: c.XKey()}),
				charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: c.YKey()}),
			)
		}
		scatter.SetGlobalOptions(global...)
		if !numeric {
			scatter.SetXAxis(labels(points))
		}
		data := make([]opts.ScatterData, len(points))
		for i, p := range points {
			var value any = p.Y
			if numeric {
				value = []float64{p.X, p.Y}
			}
			data[i] = opts.ScatterData{Name: p.Label, Value: value}
		}
		scatter.AddSeries(c.YKey(), data)
		return renderChart(scatter)
	})
}

func (r *HTMLRenderer) Placeholder(p Placeholder) Card {
	return Card{ID: p.WidgetID, Kind: "placeholder", Title: p.Title, Message: p.Message, Reason: p.Reason}
}

func (r *HTMLRenderer) chartCard(c Chart, render func() (string, error)) Card {
	var (
		html string
		err  error
	)
	key := chartKey(c, r.theme)
	if r.cache != nil && key != "" {
		html, err = r.cache.GetOrRender(key, render)
	} else {
		html, err = render()
	}
	if err != nil {
		r.log.Warn("chart render failed", "widget_id", c.ID, "chart_type", string(c.Type), "error", err)
		return r.Placeholder(Placeholder{
			WidgetID: c.ID,
			Title:    c.Title(),
			Message:  "Chart could not be rendered",
			Reason:   ReasonUnsupportedChart,
		})
	}
	return Card{ID: c.ID, Kind: KindChart, Title: c.Title(), ChartType: c.Type, HTML: html}
}

func (r *HTMLRenderer) globalOptions(c Chart) []charts.GlobalOpts {
	initOpts := opts.Initialization{
		Theme:  r.theme,
		Width:  "100%",
		Height: defaultChartHeight,
	}
	if c.ID != "" {
		initOpts.ChartID = "chart-" + sanitizeID(c.ID)
	}
	if r.assetsHost != "" {
		initOpts.AssetsHost = r.assetsHost
	}
	return []charts.GlobalOpts{
		charts.WithTitleOpts(opts.Title{Title: c.Title()}),
		charts.WithInitializationOpts(initOpts),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	}
}

func renderChart(renderable interface{ Render(io.Writer) error }) (string, error) {
	var buf bytes.Buffer
	if err := renderable.Render(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func labels(points []Point) []string {
	out := make([]string, len(points))
	for i, p := range points {
		out[i] = p.Label
	}
	return out
}

func allNumeric(points []Point) bool {
	for _, p := range points {
		if !p.Numeric {
			return false
		}
	}
	return len(points) > 0
}

func sanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, id)
}
