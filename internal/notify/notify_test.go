package notify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"
	"time"

	"welth/internal/core"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleStats() core.MonthlyStats {
	s := core.NewMonthlyStats(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	s.Add(core.Transaction{Type: core.Income, Amount: d("5000"), Category: "salary"})
	s.Add(core.Transaction{Type: core.Expense, Amount: d("1500"), Category: "housing"})
	s.Add(core.Transaction{Type: core.Expense, Amount: d("600"), Category: "groceries"})
	return s
}

func newTestRenderer(t *testing.T, charts bool) *Renderer {
	t.Helper()
	r, err := NewRenderer("https://welth.example", charts)
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	return r
}

func TestAlertColor(t *testing.T) {
	tests := []struct {
		pct  string
		want string
	}{
		{"95", "#ef4444"},
		{"90", "#ef4444"},
		{"80", "#f59e0b"},
		{"75", "#f59e0b"},
		{"50", "#10b981"},
	}
	for _, tt := range tests {
		if got := AlertColor(d(tt.pct)); got != tt.want {
			t.Errorf("AlertColor(%s) = %s, want %s", tt.pct, got, tt.want)
		}
	}
}

func TestRenderMonthlyReport(t *testing.T) {
	r := newTestRenderer(t, false)
	msg, err := r.Render(Notification{
		Kind:     KindMonthlyReport,
		To:       "ana@example.com",
		UserName: "Ana",
		Data: MonthlyReportData{
			Month:    "March",
			Year:     2024,
			Stats:    sampleStats(),
			Insights: []string{"Housing is <30% of income"},
		},
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if msg.Subject != "Your Monthly Financial Report - March 2024" {
		t.Errorf("Subject = %q", msg.Subject)
	}
	for _, want := range []string{
		"Hello Ana",
		"₹5000.00",
		"₹2900.00",
		"58.00% of income",
		"housing",
		"71.4%",
		"Housing is &lt;30% of income",
		"https://welth.example",
	} {
		if !strings.Contains(msg.HTML, want) {
			t.Errorf("report HTML missing %q", want)
		}
	}
	if len(msg.Attachments) != 0 {
		t.Errorf("charts disabled but got %d attachments", len(msg.Attachments))
	}
}

func TestRenderBudgetAlert(t *testing.T) {
	r := newTestRenderer(t, false)
	msg, err := r.Render(Notification{
		Kind: KindBudgetAlert,
		To:   "ana@example.com",
		Data: BudgetAlertData{
			AccountName:    "Main",
			PercentageUsed: d("85"),
			BudgetAmount:   d("4000"),
			TotalExpenses:  d("3400"),
			Remaining:      d("600"),
			DaysLeft:       5,
		},
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if msg.Subject != "Budget Alert for Main" {
		t.Errorf("Subject = %q", msg.Subject)
	}
	for _, want := range []string{"Hello there", "85.00%", "Overall Budget", "5 days left", "#f59e0b", "₹600.00"} {
		if !strings.Contains(msg.HTML, want) {
			t.Errorf("alert HTML missing %q", want)
		}
	}
	if strings.Contains(msg.HTML, " over<") {
		t.Error("alert under budget should not say over")
	}
}

func TestRenderBudgetAlertOverBudget(t *testing.T) {
	r := newTestRenderer(t, false)
	msg, err := r.Render(Notification{
		Kind: KindBudgetAlert,
		To:   "ana@example.com",
		Data: BudgetAlertData{
			AccountName:    "Main",
			PercentageUsed: d("125"),
			BudgetAmount:   d("100"),
			TotalExpenses:  d("125"),
			Remaining:      d("-25"),
		},
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(msg.HTML, "₹25.00 over") {
		t.Error("expected over-budget remaining")
	}
	if !strings.Contains(msg.HTML, "width: 100%") {
		t.Error("progress bar should be clamped to 100%")
	}
}

func TestRenderErrors(t *testing.T) {
	r := newTestRenderer(t, false)
	if _, err := r.Render(Notification{Kind: "weekly-digest"}); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("unknown kind error = %v", err)
	}
	if _, err := r.Render(Notification{Kind: KindBudgetAlert, Data: MonthlyReportData{}}); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("mismatched data error = %v", err)
	}
}

func TestRenderReportWithChart(t *testing.T) {
	r := newTestRenderer(t, true)
	msg, err := r.Render(Notification{
		Kind: KindMonthlyReport,
		To:   "ana@example.com",
		Data: MonthlyReportData{Month: "March", Year: 2024, Stats: sampleStats()},
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if len(msg.Attachments) != 1 {
		t.Fatalf("attachments = %d, want 1", len(msg.Attachments))
	}
	a := msg.Attachments[0]
	if !bytes.HasPrefix(a.Data, []byte("\x89PNG")) {
		t.Error("chart attachment is not a PNG")
	}
	if !strings.Contains(msg.HTML, "cid:"+a.ContentID) {
		t.Error("HTML does not reference chart content id")
	}
}

func TestCategoryPieEmpty(t *testing.T) {
	png, err := CategoryPie(core.NewMonthlyStats(time.Now()))
	if err != nil || png != nil {
		t.Errorf("CategoryPie(empty) = %v, %v; want nil, nil", png, err)
	}
}

func TestBuildMIME(t *testing.T) {
	msg := Message{
		To:      "ana@example.com",
		Subject: "Your Monthly Financial Report - März 2024",
		HTML:    "<p>hi</p>",
		Attachments: []Attachment{{
			ContentID: "c1", Filename: "c.png", ContentType: "image/png", Data: []byte("png"),
		}},
	}
	raw, err := BuildMIME("welth@example.com", msg)
	if err != nil {
		t.Fatalf("BuildMIME() error = %v", err)
	}

	parsed, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	subject, err := new(mime.WordDecoder).DecodeHeader(parsed.Header.Get("Subject"))
	if err != nil || subject != msg.Subject {
		t.Errorf("Subject = %q (%v), want %q", subject, err, msg.Subject)
	}

	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/related" {
		t.Fatalf("Content-Type = %q, %v", mediaType, err)
	}
	mr := multipart.NewReader(parsed.Body, params["boundary"])
	var parts []string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextPart() error = %v", err)
		}
		parts = append(parts, p.Header.Get("Content-Type")+"|"+p.Header.Get("Content-ID"))
	}
	want := []string{`text/html; charset="UTF-8"|`, "image/png|<c1>"}
	if strings.Join(parts, ",") != strings.Join(want, ",") {
		t.Errorf("parts = %v, want %v", parts, want)
	}
}

type failingSender struct{}

func (failingSender) Send(context.Context, Message) error { return errors.New("smtp down") }

func TestDispatcher(t *testing.T) {
	r := newTestRenderer(t, false)
	logSender := NewLogSender()
	disp := NewDispatcher(logSender, r)

	n := Notification{
		Kind: KindBudgetAlert,
		To:   "ana@example.com",
		Data: BudgetAlertData{AccountName: "Main", PercentageUsed: d("80"), BudgetAmount: d("10"), TotalExpenses: d("8"), Remaining: d("2")},
	}
	if err := disp.Dispatch(context.Background(), n); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if sent := logSender.Sent(); len(sent) != 1 || sent[0].To != "ana@example.com" {
		t.Errorf("sent = %+v", sent)
	}

	n.To = ""
	if err := disp.Dispatch(context.Background(), n); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("missing recipient error = %v", err)
	}

	n.To = "ana@example.com"
	if err := NewDispatcher(failingSender{}, r).Dispatch(context.Background(), n); !errors.Is(err, core.ErrExternalService) {
		t.Errorf("send failure error = %v, want ErrExternalService", err)
	}
}
