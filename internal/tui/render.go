package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"quizzer/internal/domain"
	"quizzer/internal/runner"
)

func renderQuestion(s *runner.Session, now time.Time, noColor bool) string {
	idx, q, ok := s.Current()
	if !ok {
		return ""
	}
	selected, hasSelection := s.Selected(idx)

	var b strings.Builder
	b.WriteString(stylize(fmt.Sprintf("Question %d of %d", idx+1, s.Len()), noColor, lipgloss.Color("242")))
	b.WriteString("   ")
	b.WriteString(stylize("Time left "+formatRemaining(s.Remaining(now)), noColor, lipgloss.Color("214")))
	b.WriteString("\n\n")
	b.WriteString(q.Question)
	b.WriteString("\n")
	for i := 0; i < domain.OptionCount; i++ {
		marker := "  "
		line := fmt.Sprintf("%s) %s", domain.OptionLetters[i+1], q.Option(i))
		if hasSelection && selected == i {
			marker = "> "
			line = stylize(line, noColor, lipgloss.Color("42"))
		}
		b.WriteString("\n" + marker + line)
	}
	return b.String()
}

func renderResult(m Model, noColor bool) string {
	if m.err != nil {
		return renderError(m.err, noColor)
	}
	score := m.session.Score()
	best := m.session.Len() * domain.PointsPerQuestion
	line := fmt.Sprintf("Finished! Score: %d / %d", score, best)
	switch {
	case m.submitting:
		line += " (submitting...)"
	case m.score != nil:
		line += " (saved)"
	}
	return stylize(line, noColor, lipgloss.Color("42"))
}

func renderError(err error, noColor bool) string {
	if err == nil {
		return ""
	}
	return stylize("Error: "+err.Error(), noColor, lipgloss.Color("196"))
}

func formatRemaining(d time.Duration) string {
	total := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// stylize applies optional color styling.
func stylize(text string, noColor bool, color lipgloss.Color) string {
	if noColor {
		return text
	}
	return lipgloss.NewStyle().Foreground(color).Render(text)
}
