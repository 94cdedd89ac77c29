// Package report renders consultations and symptom lists for the terminal.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/wagnerlima/psytech-mcp/internal/models"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	idStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	cfStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	firedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// Percent formats a certainty factor as a whole percentage, e.g. "80%".
func Percent(cf float64) string {
	return fmt.Sprintf("%d%%", int(math.Round(cf*100)))
}

// Text writes a human-readable consultation: final facts, diagnoses with
// their certainty, and the rule trace.
func Text(w io.Writer, c *models.Consultation) error {
	var b strings.Builder
	label := func(id string) string {
		if l, ok := c.Labels[id]; ok && l != id {
			return l + " " + idStyle.Render("("+id+")")
		}
		return id
	}

	b.WriteString(headingStyle.Render("Final facts") + "\n")
	if len(c.Result.Facts) == 0 {
		b.WriteString("  " + mutedStyle.Render("none") + "\n")
	}
	for _, id := range c.Result.Facts {
		b.WriteString("  - " + label(id) + "\n")
	}

	b.WriteString("\n" + headingStyle.Render("Diagnoses") + "\n")
	if len(c.Result.Diagnoses) == 0 {
		b.WriteString("  " + mutedStyle.Render("No diagnosis matched the selected symptoms.") + "\n")
	}
	for _, d := range c.Result.Diagnoses {
		fmt.Fprintf(&b, "  - %s %s  %s\n", d.DiagnosisText, idStyle.Render("("+d.DiagnosisID+", "+d.RuleID+")"), cfStyle.Render("CF: "+Percent(d.Confidence)))
	}

	b.WriteString("\n" + headingStyle.Render("Trace") + "\n")
	for _, e := range c.Result.Trace {
		if e.Fired {
			fmt.Fprintf(&b, "  pass %d  %-4s %s -> %s\n", e.Pass, e.RuleID, firedStyle.Render("fired"), label(e.Conclusion.ID))
			continue
		}
		fmt.Fprintf(&b, "  pass %d  %-4s %s\n", e.Pass, e.RuleID, mutedStyle.Render(fmt.Sprintf("%d/%d premises", len(e.Matched), e.Needed)))
	}
	fmt.Fprintf(&b, "\n%s %d\n", mutedStyle.Render("Passes:"), c.Result.Passes)

	_, err := io.WriteString(w, b.String())
	return err
}

// JSON writes the consultation as indented JSON.
func JSON(w io.Writer, c *models.Consultation) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}

// Symptoms writes one symptom per line as "id  text".
func Symptoms(w io.Writer, symptoms []models.Symptom) error {
	var b strings.Builder
	for _, s := range symptoms {
		fmt.Fprintf(&b, "%s  %s\n", idStyle.Render(fmt.Sprintf("%-6s", s.ID)), s.Text)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
