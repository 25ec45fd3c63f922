package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"assistant/internal/chunker"
	"assistant/internal/domain"
	"assistant/internal/embedding"
)

// ChatPort is the TUI-facing subset of the orchestrator.
type ChatPort interface {
	ProcessMessage(ctx context.Context, msg domain.InboundMessage) domain.OutboundMessage
	GetWelcomeMessage(sessionID string) domain.OutboundMessage
}

// entry is one line of the transcript.
type entry struct {
	question string
	msg      domain.OutboundMessage
}

// replyMsg delivers an orchestrator answer back to Update.
type replyMsg struct {
	question string
	reply    domain.OutboundMessage
}

// Model is the Bubble Tea model for the chat console.
type Model struct {
	chat      ChatPort
	sessionID string
	input     textinput.Model
	viewport  viewport.Model
	entries   []entry
	summary   string
	status    string
	pending   bool
	ready     bool
}

// New creates a chat console bound to one session.
func New(chat ChatPort, sessionID, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about our services, or type /help"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	m := Model{chat: chat, sessionID: sessionID, input: ti, viewport: vp, summary: summary, status: "Connected as " + sessionID}
	m.entries = append(m.entries, entry{msg: chat.GetWelcomeMessage(sessionID)})
	return m
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around transcript and input boxes
		_, th := transcriptBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 2 + 1 + ih + 1 // header + summary, status, spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-th)
		m.refresh()
		return m, nil
	case replyMsg:
		m.pending = false
		m.entries = append(m.entries, entry{question: msg.question, msg: msg.reply})
		m.status = "Connected as " + m.sessionID
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.pending {
				return m, nil
			}
			m.input.SetValue("")
			m.pending = true
			m.status = "Thinking..."
			m.entries = append(m.entries, entry{msg: domain.OutboundMessage{Content: q, SessionID: m.sessionID, Type: domain.MessageTypeUser}})
			m.refresh()
			return m, m.ask(q)
		}
		switch msg.Type {
		case tea.KeyPgUp:
			m.viewport.HalfViewUp()
			return m, nil
		case tea.KeyPgDown:
			m.viewport.HalfViewDown()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// ask runs the orchestrator off the UI loop.
func (m Model) ask(q string) tea.Cmd {
	chat, sessionID := m.chat, m.sessionID
	return func() tea.Msg {
		out := chat.ProcessMessage(context.Background(), domain.InboundMessage{Content: q, SessionID: sessionID})
		return replyMsg{question: q, reply: out}
	}
}

// View renders the TUI layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Service Shop Assistant")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := inputBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + transcript + "\n" + input + "\n" + status
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	var sb strings.Builder
	for i, e := range m.entries {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		switch e.msg.Type {
		case domain.MessageTypeUser:
			sb.WriteString(userStyle.Render("You: "))
			sb.WriteString(e.msg.Content)
		case domain.MessageTypeSystem:
			sb.WriteString(systemStyle.Render(e.msg.Content))
		default:
			sb.WriteString(botStyle.Render("Assistant: "))
			sb.WriteString(highlightBestSentence(e.msg.Content, e.question))
		}
	}
	return sb.String()
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	userStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	botStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	systemStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Italic(true)
)

// highlightBestSentence emphasises the sentence of text sharing the most
// tokens with query. Multi-line text is left alone.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" || strings.Contains(text, "\n") {
		return text
	}
	sentences := chunker.SplitSentences(text)
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 || len(sentences) < 2 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := 0
	for i, s := range sentences {
		if score := tokenOverlapScore(qTokens, s); score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	if bestScore == 0 {
		return strings.Join(sentences, " ")
	}
	out := make([]string, len(sentences))
	copy(out, sentences)
	out[bestIdx] = highlightStyle.Render(out[bestIdx])
	return strings.Join(out, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := embedding.Tokens(s)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	seen := map[string]struct{}{}
	for _, t := range embedding.Tokens(sentence) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
