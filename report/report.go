package report

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/logrusorgru/aurora"
	"github.com/o2lab/ordercheck/explorer"
	"github.com/sugawarayuuta/sonnet"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Result is the verdict on one scenario.
type Result struct {
	Scenario      string
	Description   string
	ExpectFailure bool
	Passed        bool
	Duration      time.Duration
	Report        *explorer.Report
	Err           error
}

func (r Result) failure() *explorer.Failure {
	var f *explorer.Failure
	if errors.As(r.Err, &f) {
		return f
	}
	return nil
}

// Text writes a human readable summary, coloured when colors is set.
func Text(w io.Writer, results []Result, colors bool) error {
	au := aurora.NewAurora(colors)
	var b strings.Builder
	for _, r := range results {
		verdict := au.Green("PASS")
		if !r.Passed {
			verdict = au.Red("FAIL")
		}
		fmt.Fprintf(&b, "%s %s (%s)\n", verdict, au.Bold(r.Scenario), r.Duration.Round(time.Millisecond))
		if r.Report != nil {
			fmt.Fprintf(&b, "  %d executions, %d distinct traces, %d choices, %d preemptions\n",
				r.Report.Iterations, r.Report.DistinctTraces, r.Report.Branches, r.Report.Preemptions)
			for _, k := range r.Report.OutcomeKeys() {
				fmt.Fprintf(&b, "  %-24s %d\n", au.Magenta(k), r.Report.Outcomes[k])
			}
		}
		if r.Err != nil {
			expected := ""
			if r.ExpectFailure {
				expected = " (expected)"
			}
			fmt.Fprintf(&b, "  %s%s\n", au.Yellow(r.Err), expected)
		}
		if f := r.failure(); f != nil {
			fmt.Fprintf(&b, "  replay: %s\n", au.BrightGreen(f.Token))
			for i, a := range f.Trace {
				fmt.Fprintf(&b, "    %3d %s\n", i, a)
			}
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

type jsonFailure struct {
	Iteration int      `json:"iteration"`
	Thread    int      `json:"thread"`
	Error     string   `json:"error"`
	Token     string   `json:"token"`
	Trace     []string `json:"trace"`
}

type jsonResult struct {
	Scenario       string         `json:"scenario"`
	Description    string         `json:"description,omitempty"`
	ExpectFailure  bool           `json:"expectFailure"`
	Passed         bool           `json:"passed"`
	DurationMillis int64          `json:"durationMillis"`
	Iterations     int            `json:"iterations"`
	DistinctTraces int            `json:"distinctTraces"`
	Branches       int            `json:"branches"`
	Preemptions    int            `json:"preemptions"`
	Outcomes       map[string]int `json:"outcomes,omitempty"`
	Error          string         `json:"error,omitempty"`
	Failure        *jsonFailure   `json:"failure,omitempty"`
}

func toJSON(r Result) jsonResult {
	jr := jsonResult{
		Scenario:       r.Scenario,
		Description:    r.Description,
		ExpectFailure:  r.ExpectFailure,
		Passed:         r.Passed,
		DurationMillis: r.Duration.Milliseconds(),
	}
	if r.Report != nil {
		jr.Iterations = r.Report.Iterations
		jr.DistinctTraces = r.Report.DistinctTraces
		jr.Branches = r.Report.Branches
		jr.Preemptions = r.Report.Preemptions
		jr.Outcomes = r.Report.Outcomes
	}
	if r.Err != nil {
		jr.Error = r.Err.Error()
	}
	if f := r.failure(); f != nil {
		jf := &jsonFailure{Iteration: f.Iteration, Thread: f.Thread, Error: f.Err.Error(), Token: f.Token}
		for _, a := range f.Trace {
			jf.Trace = append(jf.Trace, a.String())
		}
		jr.Failure = jf
	}
	return jr
}

// JSON writes one JSON array with an object per result.
func JSON(w io.Writer, results []Result) error {
	out := make([]jsonResult, 0, len(results))
	for _, r := range results {
		out = append(out, toJSON(r))
	}
	data, err := sonnet.Marshal(out)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// Markdown renders the results as a markdown document.
func Markdown(results []Result) string {
	var b strings.Builder
	b.WriteString("# ordercheck report\n\n")
	for _, r := range results {
		verdict := "PASS"
		if !r.Passed {
			verdict = "FAIL"
		}
		fmt.Fprintf(&b, "## %s: %s\n\n", r.Scenario, verdict)
		if r.Description != "" {
			fmt.Fprintf(&b, "%s\n\n", r.Description)
		}
		if r.Report != nil {
			fmt.Fprintf(&b, "%d executions, %d distinct traces.\n\n", r.Report.Iterations, r.Report.DistinctTraces)
			b.WriteString("| outcome | executions |\n|---|---|\n")
			for _, k := range r.Report.OutcomeKeys() {
				fmt.Fprintf(&b, "| `%s` | %d |\n", k, r.Report.Outcomes[k])
			}
			b.WriteString("\n")
		}
		if r.Err != nil {
			fmt.Fprintf(&b, "Error: `%s`\n\n", r.Err)
		}
		if f := r.failure(); f != nil {
			fmt.Fprintf(&b, "Replay token: `%s`\n\n", f.Token)
			for _, a := range f.Trace {
				fmt.Fprintf(&b, "1. `%s`\n", a)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// HTML converts the markdown report to HTML.
func HTML(w io.Writer, results []Result) error {
	var buf bytes.Buffer
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(Markdown(results)), &buf); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

// Write dispatches on format: text, json or html.
func Write(w io.Writer, format string, results []Result, colors bool) error {
	switch format {
	case "text", "":
		return Text(w, results, colors)
	case "json":
		return JSON(w, results)
	case "html":
		return HTML(w, results)
	}
	return fmt.Errorf("unknown report format %q", format)
}
