// Package notify delivers run summaries over a webhook or Microsoft Graph
// email.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/gemba-ops/shopsync/internal/config"
)

// Summary is the outcome of one run, formatted for humans.
type Summary struct {
	Kind          string   `json:"kind"`
	ReportDate    string   `json:"report_date"`
	RunLabel      string   `json:"run_label"`
	Success       bool     `json:"success"`
	FinancialRows int      `json:"financial_rows"`
	MarketingRows int      `json:"marketing_rows"`
	Issues        []string `json:"issues,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// Subject renders the one-line summary used as email subject and log line.
func (s Summary) Subject() string {
	status := "SUCCESS"
	if !s.Success {
		status = "FAILED"
	}
	return fmt.Sprintf("shopsync %s %s %s", status, s.ReportDate, s.RunLabel)
}

// Body renders the multi-line run report.
func (s Summary) Body() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run: %s %s %s\n", s.Kind, s.ReportDate, s.RunLabel)

	if s.Success {
		fmt.Fprintf(&b, "Uploaded %d financial rows and %d marketing rows.\n", s.FinancialRows, s.MarketingRows)
	} else {
		b.WriteString("The run did not complete.\n")
		if s.Error != "" {
			fmt.Fprintf(&b, "Error: %s\n", s.Error)
		}
	}

	if len(s.Issues) > 0 {
		b.WriteString("\nIssues:\n")
		for _, iss := range s.Issues {
			fmt.Fprintf(&b, "  - %s\n", iss)
		}
	}
	return b.String()
}

// Notifier delivers a run summary. Delivery failures are reported but a run
// never fails because its notification did.
type Notifier interface {
	Notify(ctx context.Context, s Summary) error
}

// Nop discards summaries.
type Nop struct{}

func (Nop) Notify(ctx context.Context, s Summary) error { return nil }

// FromConfig builds the configured notifier.
func FromConfig(cfg config.NotifyConfig) (Notifier, error) {
	switch cfg.Mode {
	case "", "none":
		return Nop{}, nil
	case "webhook":
		if cfg.WebhookURL == "" {
			return nil, eris.New("notify: webhook mode requires webhook_url")
		}
		return NewWebhook(cfg.WebhookURL), nil
	case "email":
		return NewGraph(cfg.Email)
	default:
		return nil, eris.Errorf("notify: unknown mode %q", cfg.Mode)
	}
}
