package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/stellarlinkco/rice-eval/internal/evaluation"
	"github.com/stellarlinkco/rice-eval/internal/rollout"
)

type OutputFormat string

const (
	FormatTable  OutputFormat = "table"
	FormatJSON   OutputFormat = "json"
	FormatGitHub OutputFormat = "github"
)

const (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
)

func parseOutputFormat(s string) OutputFormat {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "table":
		return FormatTable
	case "json", "jsonl":
		return FormatJSON
	case "github", "gh":
		return FormatGitHub
	default:
		return ""
	}
}

func resolveOutputFormat(flagValue string) (OutputFormat, error) {
	if strings.TrimSpace(flagValue) == "" {
		return FormatTable, nil
	}
	out := parseOutputFormat(flagValue)
	if out == "" {
		return "", fmt.Errorf("invalid --output %q (expected table|json|github)", flagValue)
	}
	return out, nil
}

func coloredStatus(passed bool) string {
	if passed {
		return colorGreen + "PASS" + colorReset
	}
	return colorRed + "FAIL" + colorReset
}

func FormatResult(result *evaluation.Result, format OutputFormat) string {
	switch format {
	case FormatTable:
		return formatResultTable(result)
	case FormatJSON:
		return formatResultJSON(result)
	case FormatGitHub:
		return formatResultGitHub(result)
	default:
		return fmt.Sprintf("error: unknown output format %q\n", format)
	}
}

func formatResultTable(result *evaluation.Result) string {
	if result == nil {
		return "Result: <nil> " + coloredStatus(false) + "\n\n"
	}

	var buf bytes.Buffer
	framework := string(result.Framework)
	if framework == "" {
		framework = "-"
	}
	fmt.Fprintf(&buf, "Framework: %s\n", framework)
	fmt.Fprintf(&buf, "Stage: %s\n", result.Stage)
	fmt.Fprintf(&buf, "Status: %s\n", coloredStatus(result.Success))
	fmt.Fprintf(&buf, "Comment: %s\n", result.Comment)

	if result.Metrics != nil && result.Metrics.Len() > 0 {
		buf.WriteByte('\n')
		buf.WriteString(formatMetricsTable(result.Metrics))
	}
	buf.WriteByte('\n')
	return buf.String()
}

func formatMetricsTable(report *rollout.Report) string {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "METRIC\tVALUE")
	for _, e := range report.Entries() {
		fmt.Fprintf(tw, "%s\t%v\n", e.Label, e.Value)
	}
	_ = tw.Flush()
	return buf.String()
}

func formatResultJSON(result *evaluation.Result) string {
	if result == nil {
		return "{\"error\":\"nil result\"}\n"
	}
	b, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("{\"error\":%q}\n", err.Error())
	}
	return string(b) + "\n"
}

func formatResultGitHub(result *evaluation.Result) string {
	if result == nil {
		return "::error::nil result\n"
	}

	var buf strings.Builder
	if !result.Success {
		msg := fmt.Sprintf("stage=%s comment=%s", result.Stage, result.Comment)
		if result.Framework != "" {
			msg = "framework=" + string(result.Framework) + " " + msg
		}
		buf.WriteString("::error::")
		buf.WriteString(sanitizeGitHubAnnotation(msg))
		buf.WriteByte('\n')
	}

	metrics := 0
	if result.Metrics != nil {
		metrics = result.Metrics.Len()
	}
	buf.WriteString(fmt.Sprintf("Summary: framework=%s stage=%s success=%v metrics=%d\n",
		result.Framework, result.Stage, result.Success, metrics))
	return buf.String()
}

func sanitizeGitHubAnnotation(s string) string {
	// GitHub Actions commands treat CR/LF and percent-encoding specially.
	// Keep it simple: flatten newlines and carriage returns.
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}
