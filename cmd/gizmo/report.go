package main

import (
	"bytes"
	"fmt"
	"html"
	"os"
	"strings"

	"github.com/quarkusio/gizmo-sub001/conformance"
	"github.com/yuin/goldmark"
)

// markdownReport renders results as Markdown: a summary, then one section
// per test with its status and listing
func markdownReport(results []conformance.TestResult) []byte {
	var b bytes.Buffer
	stats := conformance.ComputeStats(results)
	fmt.Fprintf(&b, "# gizmo report\n\n%s\n", conformance.FormatStats(stats))

	file := ""
	for i := range results {
		r := &results[i]
		if r.Test.File != file {
			file = r.Test.File
			fmt.Fprintf(&b, "\n## %s\n", file)
		}
		status := "PASS"
		switch {
		case r.Skipped:
			status = "SKIP: " + r.SkipReason
		case !r.Passed:
			status = "FAIL"
		}
		fmt.Fprintf(&b, "\n### %s\n\n**%s**", r.Test.Test.Name, status)
		if r.Error != nil {
			fmt.Fprintf(&b, " `%s`", strings.ReplaceAll(r.Error.Error(), "`", "'"))
		}
		b.WriteString("\n")
		if r.Body != nil {
			b.WriteString("\n```\n")
			if err := r.Disassemble(&b); err != nil {
				fmt.Fprintf(&b, "disassembly failed: %v\n", err)
			}
			b.WriteString("```\n")
		}
	}
	return b.Bytes()
}

// writeHTMLReport converts the Markdown report to a standalone HTML page
func writeHTMLReport(path string, results []conformance.TestResult) error {
	var body bytes.Buffer
	if err := goldmark.Convert(markdownReport(results), &body); err != nil {
		return err
	}
	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>%s</title>\n", html.EscapeString("gizmo report"))
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return os.WriteFile(path, page.Bytes(), 0o644)
}
