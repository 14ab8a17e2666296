package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"welth/internal/core"

	"github.com/shopspring/decimal"
	"google.golang.org/genai"
)

const maxInsights = 3

// GenerateInsights asks the model for three short insights about a month.
func (c *Client) GenerateInsights(ctx context.Context, stats core.MonthlyStats, monthName string) ([]string, error) {
	text, err := c.generate(ctx, &genai.Part{Text: insightsPrompt(stats, monthName)})
	if err != nil {
		return nil, fmt.Errorf("generate insights: %w", err)
	}
	return ParseInsights(text)
}

func insightsPrompt(stats core.MonthlyStats, monthName string) string {
	cats := stats.Categories()
	parts := make([]string, 0, len(cats))
	for _, c := range cats {
		parts = append(parts, fmt.Sprintf("%s: %s", c.Name, core.FormatMoney(c.Amount)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this financial data for %s and provide 3 concise, actionable insights.\n", monthName)
	b.WriteString("Focus on spending patterns, savings rate, and practical advice.\n")
	b.WriteString("Keep it friendly and conversational.\n\n")
	b.WriteString("Financial Data:\n")
	fmt.Fprintf(&b, "- Total Income: %s\n", core.FormatMoney(stats.TotalIncome))
	fmt.Fprintf(&b, "- Total Expenses: %s\n", core.FormatMoney(stats.TotalExpenses))
	fmt.Fprintf(&b, "- Net Savings: %s\n", core.FormatMoney(stats.Savings()))
	fmt.Fprintf(&b, "- Savings Rate: %s%%\n", stats.SavingsRate().StringFixed(1))
	fmt.Fprintf(&b, "- Expense Categories: %s\n\n", strings.Join(parts, ", "))
	b.WriteString("Provide insights that would help someone understand their financial health better.\n")
	b.WriteString("Format the response as a JSON array of strings, like this:\n")
	b.WriteString(`["insight 1", "insight 2", "insight 3"]`)
	return b.String()
}

// ParseInsights decodes a JSON array of strings from the model.
func ParseInsights(text string) ([]string, error) {
	var insights []string
	if err := json.Unmarshal([]byte(cleanModelJSON(text)), &insights); err != nil {
		return nil, fmt.Errorf("%w from model: %v", core.ErrInvalidResponseFormat, err)
	}
	out := insights[:0]
	for _, s := range insights {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w from model: no insights", core.ErrInvalidResponseFormat)
	}
	if len(out) > maxInsights {
		out = out[:maxInsights]
	}
	return out, nil
}

var twenty = decimal.NewFromInt(20)

// FallbackInsights are used whenever the model is unavailable or returns junk.
func FallbackInsights(stats core.MonthlyStats) []string {
	rate := stats.SavingsRate()
	var out []string
	switch {
	case rate.GreaterThan(twenty):
		out = append(out, "Great job! You're saving more than 20% of your income this month.")
	case rate.IsNegative():
		out = append(out, "You spent more than you earned this month. Consider reviewing your expenses.")
	default:
		out = append(out, "Your savings rate is positive. Look for opportunities to increase it further.")
	}

	if top, ok := stats.TopCategory(); ok {
		out = append(out, fmt.Sprintf("Your highest spending category was %s at %s.", top.Name, core.FormatMoney(top.Amount)))
	}

	out = append(out, "Tracking your expenses regularly helps identify spending patterns and savings opportunities.")
	return out[:min(len(out), maxInsights)]
}
