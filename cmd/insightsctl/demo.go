package main

import (
	"github.com/goliatone/go-insights/pkg/client"
)

const (
	demoToken = "demo-token"
	demoEmail = "demo@example.com"
)

// newDemoBackend serves sample data: one dataset finishes processing after a
// couple of refreshes and insights appear after a few polls.
func newDemoBackend(tokens client.TokenSource) *client.Mock {
	name := "Demo User"
	currency := "currency"
	percentage := "percentage"
	sum := "sum"
	revenue := 125430.5
	margin := 18.25
	summary := "Revenue grew steadily through the quarter with one unusual dip in week 7."

	mock := client.NewMock(tokens, client.MockData{
		ReadyAfter:    2,
		InsightsAfter: 2,
		Users: map[string]client.MockUser{
			demoEmail: {
				Password: "demo",
				Profile: client.UserProfile{
					ID:       "demo-user",
					Email:    demoEmail,
					Name:     &name,
					IsActive: true,
					Stats:    client.UsageStats{DatasetsUploaded: 2, DashboardsCreated: 1, InsightsGenerated: 1},
				},
			},
		},
		Datasets: []client.Dataset{
			{ID: "ds-sales", Filename: "sales_q1.csv", Status: client.StatusReady},
			{ID: "ds-traffic", Filename: "traffic.xlsx", Status: client.StatusProcessing},
		},
		Dashboards: map[string]client.Dashboard{
			"ds-sales": {
				ID:        "db-sales",
				DatasetID: "ds-sales",
				Title:     "Sales Q1",
				Widgets: []client.WidgetPayload{
					{ID: "revenue", Type: "kpi", Metric: "Total revenue", Value: &revenue, Format: &currency},
					{ID: "margin", Type: "kpi", Metric: "Margin", Value: &margin, Format: &percentage},
					{ID: "weekly", Type: "chart", ChartType: "line", X: "week", Y: "revenue", Aggregation: &sum, Data: []map[string]any{
						{"week": 1, "revenue": 9100}, {"week": 2, "revenue": 9800}, {"week": 3, "revenue": 10250},
						{"week": 4, "revenue": 10400}, {"week": 5, "revenue": 11020}, {"week": 6, "revenue": 11300},
						{"week": 7, "revenue": 7200}, {"week": 8, "revenue": 11900},
					}},
					{ID: "regions", Type: "chart", ChartType: "bar", X: "region", Y: "revenue", Aggregation: &sum, Data: []map[string]any{
						{"region": "North", "revenue": 40210}, {"region": "South", "revenue": 35120}, {"region": "West", "revenue": 50100.5},
					}},
					{ID: "price-volume", Type: "chart", ChartType: "scatter", X: "price", Y: "units", Data: []map[string]any{
						{"price": 9.99, "units": 420}, {"price": 14.5, "units": 310}, {"price": 19.99, "units": 205}, {"price": 24, "units": 150},
					}},
					{ID: "share", Type: "chart", ChartType: "pie", Data: []map[string]any{{"x": "a", "y": 1}}},
				},
			},
		},
		Insights: map[string]client.InsightSet{
			"ds-sales": {
				DatasetID: "ds-sales",
				Summary:   &summary,
				Insights: []client.Insight{
					{Type: client.InsightTrend, Message: "Weekly revenue increased 31% from week 1 to week 8."},
					{Type: client.InsightAnomaly, Message: "Week 7 revenue fell 36% below the trailing average."},
					{Type: client.InsightDataQuality, Message: "3 rows have an empty region and were excluded."},
				},
			},
		},
	})
	mock.IssueToken(demoToken, demoEmail)
	return mock
}
