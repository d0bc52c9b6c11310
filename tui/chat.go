// Package tui is a terminal chat client over the query pipeline.
//
// Questions are sent asynchronously via tea.Cmd so the UI stays
// responsive while the AI round-trip and query run; answers come back
// as a single answerMsg per question.
package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/storeql/storeql/chat"
)

// Asker answers one question for one store.
type Asker interface {
	Ask(ctx context.Context, storeID string, question string) (*chat.ChatResponse, error)
}

// answerMsg is sent when a question completes.
type answerMsg struct {
	resp *chat.ChatResponse
	err  error
}

// turn is one question with its outcome.
type turn struct {
	question string
	resp     *chat.ChatResponse
	err      error
}

// Model is the Bubble Tea model for the chat session.
type Model struct {
	asker   Asker
	storeID string

	input   string
	turns   []turn
	loading bool
	width   int
	height  int
}

// NewModel creates the chat model for one store.
func NewModel(asker Asker, storeID string) *Model {
	return &Model{asker: asker, storeID: storeID, width: 80, height: 24}
}

// Run starts the interactive session and blocks until the user quits.
func Run(asker Asker, storeID string) error {
	p := tea.NewProgram(NewModel(asker, storeID), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m *Model) Init() tea.Cmd {
	return nil
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case answerMsg:
		m.loading = false
		// The history may have been cleared while the answer was in flight.
		if len(m.turns) > 0 {
			last := &m.turns[len(m.turns)-1]
			last.resp = msg.resp
			last.err = msg.err
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit
	case "enter":
		return m, m.send()
	case "ctrl+l":
		m.turns = nil
		return m, nil
	case "backspace":
		if len(m.input) > 0 {
			runes := []rune(m.input)
			m.input = string(runes[:len(runes)-1])
		}
	default:
		if m.loading {
			return m, nil
		}
		if msg.Type == tea.KeyRunes {
			m.input += string(msg.Runes)
		} else if msg.Type == tea.KeySpace {
			m.input += " "
		}
	}
	return m, nil
}

func (m *Model) send() tea.Cmd {
	question := strings.TrimSpace(m.input)
	if question == "" || m.loading {
		return nil
	}

	m.turns = append(m.turns, turn{question: question})
	m.input = ""
	m.loading = true

	asker := m.asker
	storeID := m.storeID
	return func() tea.Msg {
		resp, err := asker.Ask(context.Background(), storeID, question)
		return answerMsg{resp: resp, err: err}
	}
}

func (m *Model) View() string {
	var lines []string

	lines = append(lines, StyleTitle.Render("storeql")+StyleDimmed.Render(" store: "+m.storeID))
	if len(m.turns) == 0 {
		lines = append(lines,
			"Ask a question about your store's sales data.",
			"",
			StyleDimmed.Render("Examples: \"What is my total revenue?\"  \"Top 5 products this month?\""),
		)
	}

	for i, t := range m.turns {
		lines = append(lines, StyleUser.Render("You: ")+t.question)
		switch {
		case t.resp != nil:
			lines = append(lines, renderAnswer(t.resp)...)
		case t.err != nil:
			lines = append(lines, StyleError.Render("  "+t.err.Error()))
		case i == len(m.turns)-1 && m.loading:
			lines = append(lines, StyleDimmed.Render("  thinking..."))
		}
		lines = append(lines, "")
	}

	prompt := StylePrompt.Render("Ask> ") + m.input + "█"
	if m.loading {
		prompt = StylePrompt.Render("Ask> ") + StyleDimmed.Render("waiting for answer...")
	}

	help := StyleDimmed.Render("Enter send · Ctrl+L clear · Esc quit")

	body := strings.Join(lines, "\n")
	return lipgloss.JoinVertical(lipgloss.Left, body, "", prompt, help)
}

func renderAnswer(resp *chat.ChatResponse) []string {
	lines := []string{StyleAnswer.Render("  " + resp.Answer)}
	lines = append(lines, StyleSQL.Render("  "+resp.SQL))

	if resp.RowCount > 0 {
		lines = append(lines, renderRows(resp)...)
	}
	lines = append(lines, StyleDimmed.Render(fmt.Sprintf("  %d row(s) in %dms", resp.RowCount, resp.DurationMs)))
	if resp.ChartSpec != nil {
		lines = append(lines, StyleDimmed.Render("  chart: "+resp.ChartSpec.Type+" · "+resp.ChartSpec.Title))
	}
	return lines
}

// renderRows prints a compact fixed-width table of the first rows.
const maxDisplayRows = 10

func renderRows(resp *chat.ChatResponse) []string {
	columns := columnsOf(resp)
	if len(columns) == 0 {
		return nil
	}

	widths := make([]int, len(columns))
	for i, col := range columns {
		widths[i] = len(col)
	}
	shown := resp.Rows
	if len(shown) > maxDisplayRows {
		shown = shown[:maxDisplayRows]
	}
	for _, row := range shown {
		for i, col := range columns {
			if w := len(cell(row[col])); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var lines []string
	var header strings.Builder
	header.WriteString("  ")
	for i, col := range columns {
		header.WriteString(pad(col, widths[i]) + "  ")
	}
	lines = append(lines, StyleDimmed.Render(strings.TrimRight(header.String(), " ")))

	for _, row := range shown {
		var b strings.Builder
		b.WriteString("  ")
		for i, col := range columns {
			b.WriteString(pad(cell(row[col]), widths[i]) + "  ")
		}
		lines = append(lines, StyleNormal.Render(strings.TrimRight(b.String(), " ")))
	}
	if len(resp.Rows) > maxDisplayRows {
		lines = append(lines, StyleDimmed.Render(fmt.Sprintf("  ... %d more", len(resp.Rows)-maxDisplayRows)))
	}
	return lines
}

// columnsOf falls back to map iteration only when the chart config
// carries no header order; scalar answers have a single column anyway.
func columnsOf(resp *chat.ChatResponse) []string {
	if resp.ChartConfig != nil && resp.ChartConfig.Table != nil {
		return resp.ChartConfig.Table.Headers
	}
	if len(resp.Rows) == 0 {
		return nil
	}
	cols := make([]string, 0, len(resp.Rows[0]))
	for col := range resp.Rows[0] {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

func cell(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
