package widgets

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Point is one plotted row.
type Point struct {
	Label   string
	X       float64
	Y       float64
	Numeric bool
}

// Points extracts the x/y pairs of c in row order. Labels keep the raw x
// value; X falls back to the row position when it is not numeric.
func (c Chart) Points() []Point {
	xKey, yKey := c.XKey(), c.YKey()
	points := make([]Point, 0, len(c.Rows))
	for i, row := range c.Rows {
		if row == nil {
			continue
		}
		rawX := row[xKey]
		x, numeric := float64Value(rawX)
		if !numeric {
			x = float64(i + 1)
		}
		y, _ := float64Value(row[yKey])
		points = append(points, Point{
			Label:   labelValue(rawX),
			X:       x,
			Y:       y,
			Numeric: numeric,
		})
	}
	return points
}

func labelValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

func float64Value(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f, true
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return f, true
		}
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
