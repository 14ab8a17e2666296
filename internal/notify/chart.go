package notify

import (
	"bytes"
	"fmt"

	"welth/internal/core"

	"github.com/wcharczuk/go-chart/v2"
)

const (
	chartContentID = "category-chart"
	minSliceShare  = 1.0 // percent
)

// CategoryPie renders the expense breakdown as a PNG pie chart. It returns nil
// when there is nothing to draw.
func CategoryPie(stats core.MonthlyStats) ([]byte, error) {
	if !stats.TotalExpenses.IsPositive() {
		return nil, nil
	}

	total := stats.TotalExpenses.InexactFloat64()
	values := make([]chart.Value, 0, len(stats.ByCategory))
	for _, cat := range stats.Categories() {
		amount := cat.Amount.InexactFloat64()
		share := amount / total * 100
		if share < minSliceShare {
			continue
		}
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s %.1f%%", cat.Name, share),
			Value: amount,
		})
	}
	if len(values) == 0 {
		return nil, nil
	}

	pie := chart.PieChart{
		Width:  600,
		Height: 400,
		Values: values,
		Background: chart.Style{
			Padding: chart.Box{
				Top:    20,
				Left:   20,
				Right:  20,
				Bottom: 20,
			},
			FillColor: chart.ColorWhite,
		},
	}

	buf := bytes.NewBuffer(nil)
	if err := pie.Render(chart.PNG, buf); err != nil {
		return nil, fmt.Errorf("render category chart: %w", err)
	}
	return buf.Bytes(), nil
}
