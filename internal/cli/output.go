package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/dgallion1/quizgest/internal/convert"
)

var (
	// labelStyle for muted field names
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	// valueStyle for highlighted counts
	valueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("81"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	// boxStyle for the summary box with rounded border
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("81")).
			Padding(0, 1)
)

// FormatSummary renders the result of one conversion. res is nil when err
// is set.
func FormatSummary(w io.Writer, input, output string, res *convert.Result, err error) {
	if output == "-" {
		output = "stdout"
	}
	var content string
	if err != nil {
		content = fmt.Sprintf("%s %s\n%s %s\n%s %s",
			errorStyle.Render("✗"), input,
			labelStyle.Render("Error:"), err,
			labelStyle.Render("Output:"), output+" (empty)",
		)
	} else {
		content = fmt.Sprintf("%s %s\n%s %s  %s %s  %s %s\n%s %s",
			successStyle.Render("✓"), input,
			labelStyle.Render("Pages:"), valueStyle.Render(fmt.Sprint(res.Pages)),
			labelStyle.Render("Lines:"), valueStyle.Render(fmt.Sprint(res.Lines)),
			labelStyle.Render("Questions:"), valueStyle.Render(fmt.Sprint(len(res.Questions))),
			labelStyle.Render("Output:"), output,
		)
	}
	fmt.Fprintln(w, boxStyle.Render(content))
}
