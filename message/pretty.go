package message

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/tmc/langchaingo/llms"
)

const ruleWidth = 80

var (
	titleStyles = map[string]lipgloss.Style{
		RoleHuman:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2CD7C7")),
		RoleAI:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#20B9B4")),
		RoleSystem: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F4D03F")),
		RoleTool:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#16858E")),
	}
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#2C4A54"))
)

// Title returns the centred rule printed above a message, e.g.
// "===== Human Message =====".
func Title(role string) string {
	label := " " + titleCase(role) + " Message "
	pad := ruleWidth - len(label)
	if pad < 2 {
		pad = 2
	}
	left := pad / 2
	return strings.Repeat("=", left) + label + strings.Repeat("=", pad-left)
}

// Pretty writes a titled block for msg to w.
func Pretty(w io.Writer, msg llms.MessageContent) error {
	m := FromLLM(msg)
	style, ok := titleStyles[m.Role]
	if !ok {
		style = lipgloss.NewStyle().Bold(true)
	}
	var sb strings.Builder
	sb.WriteString(style.Render(Title(m.Role)))
	sb.WriteString("\n")
	if m.Name != "" {
		sb.WriteString("Name: " + m.Name + "\n\n")
	}
	if m.Content != "" {
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	if len(m.ToolCalls) > 0 {
		sb.WriteString("Tool Calls:\n")
		for _, tc := range m.ToolCalls {
			fmt.Fprintf(&sb, "  %s (%s)\n", tc.Name, mutedStyle.Render(tc.ID))
			fmt.Fprintf(&sb, "  Args: %s\n", tc.Arguments)
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// PrettyAll writes every message in order.
func PrettyAll(w io.Writer, msgs []llms.MessageContent) error {
	for _, m := range msgs {
		if err := Pretty(w, m); err != nil {
			return err
		}
	}
	return nil
}

func titleCase(role string) string {
	if role == "" {
		return "Unknown"
	}
	return strings.ToUpper(role[:1]) + role[1:]
}
