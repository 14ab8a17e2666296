package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"welth/internal/core"

	"github.com/shopspring/decimal"
	"google.golang.org/genai"
)

// Categories the model may suggest for a receipt.
var ReceiptCategories = []string{
	"housing", "transportation", "groceries", "utilities", "entertainment",
	"food", "shopping", "healthcare", "education", "personal", "travel",
	"insurance", "gifts", "bills", "other-expense",
}

var ErrNotReceipt = fmt.Errorf("%w: image is not a receipt", core.ErrInvalidInput)

var receiptPrompt = `Analyze this receipt image and extract the following information in JSON format:
- Total amount (just the number)
- Date (in ISO format)
- Description or items purchased (brief summary)
- Merchant/store name
- Suggested category (one of: ` + strings.Join(ReceiptCategories, ",") + `)

Only respond with valid JSON in this exact format:
{
  "amount": number,
  "date": "ISO date string",
  "description": "string",
  "merchantName": "string",
  "category": "string"
}

If it's not a receipt, return an empty object.`

// ReceiptData carries the model's fields unchanged. A zero Date means the
// model returned no date.
type ReceiptData struct {
	Amount       decimal.Decimal `json:"amount"`
	Date         time.Time       `json:"date"`
	Description  string          `json:"description"`
	MerchantName string          `json:"merchantName"`
	Category     string          `json:"category"`
}

// ScanReceipt sends the image to the model and decodes the extracted fields.
func (c *Client) ScanReceipt(ctx context.Context, image []byte, mimeType string) (ReceiptData, error) {
	if len(image) == 0 {
		return ReceiptData{}, fmt.Errorf("%w: empty image", core.ErrInvalidInput)
	}
	if !strings.HasPrefix(mimeType, "image/") && mimeType != "application/pdf" {
		return ReceiptData{}, fmt.Errorf("%w: unsupported content type %q", core.ErrInvalidInput, mimeType)
	}

	text, err := c.generate(ctx,
		&genai.Part{InlineData: &genai.Blob{MIMEType: mimeType, Data: image}},
		&genai.Part{Text: receiptPrompt},
	)
	if err != nil {
		return ReceiptData{}, fmt.Errorf("scan receipt: %w", err)
	}
	return ParseReceipt(text)
}

type rawReceipt struct {
	Amount       *decimal.Decimal `json:"amount"`
	Date         string           `json:"date"`
	Description  string           `json:"description"`
	MerchantName string           `json:"merchantName"`
	Category     string           `json:"category"`
}

// ParseReceipt decodes a model response. An empty object means the image was
// not a receipt.
func ParseReceipt(text string) (ReceiptData, error) {
	clean := cleanModelJSON(text)
	if isEmptyObject(clean) {
		return ReceiptData{}, ErrNotReceipt
	}

	var raw rawReceipt
	if err := json.Unmarshal([]byte(clean), &raw); err != nil {
		return ReceiptData{}, fmt.Errorf("%w from model: %v", core.ErrInvalidResponseFormat, err)
	}
	if raw.Amount == nil {
		return ReceiptData{}, fmt.Errorf("%w from model: missing amount", core.ErrInvalidResponseFormat)
	}

	out := ReceiptData{
		Amount:       *raw.Amount,
		Description:  raw.Description,
		MerchantName: raw.MerchantName,
		Category:     raw.Category,
	}
	if raw.Date != "" {
		d, err := parseModelDate(raw.Date)
		if err != nil {
			return ReceiptData{}, fmt.Errorf("%w from model: %v", core.ErrInvalidResponseFormat, err)
		}
		out.Date = d
	}
	return out, nil
}

func isEmptyObject(s string) bool {
	var m map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	if err := dec.Decode(&m); err != nil {
		return false
	}
	return len(m) == 0
}

func parseModelDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
