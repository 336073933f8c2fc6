package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/wordwrap"
)

const (
	PlaceHolderText = "Type a command, or /help..."
	maxLogEntries   = 500
)

type logKind int

const (
	logInfo logKind = iota
	logInput
	logError
	logEvent
)

type logEntry struct {
	kind  logKind
	lines []string
}

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config       *ConsoleConfig
	api          *API
	logViewport  viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int
	err          error
	loading      bool

	log      []logEntry
	lastOut  []string
	npc      *NPCView
	session  *SessionView
	account  *PlayerView
	streamOn bool

	// NPC selection state
	showNPCModal bool
	npcs         []NPCView
	selectedNPC  int
	loadingNPCs  bool

	// Quit confirmation state
	showQuitModal bool

	// Progress bar state
	progressTick int
}

type npcsLoadedMsg struct {
	npcs []NPCView
	err  error
}

type npcJoinedMsg struct {
	npc         NPCView
	interaction *Interaction
	err         error
}

type commandMsg struct {
	lines []string
	err   error
}

type refreshMsg struct {
	session *SessionView
	account *PlayerView
	err     error
}

type sseEventMsg SSEEvent

type sseClosedMsg struct {
	err error
}

type progressTickMsg struct{}

var (
	logPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220")). // gold
			Bold(true)

	traderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	eventStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")) // purple

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220")).
			Bold(true).
			Align(lipgloss.Center)

	modalItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	modalDisabledItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("244"))

	modalSelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("220")).
				Bold(true)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

func NewConsoleUI(cfg *ConsoleConfig, api *API) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 200
	ta.SetWidth(50)
	ta.SetHeight(1)
	ta.ShowLineNumbers = false

	logVp := viewport.New(50, 20)
	logVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	return ConsoleUI{
		config:       cfg,
		api:          api,
		textarea:     ta,
		logViewport:  logVp,
		metaViewport: metaVp,
		showNPCModal: true,
		loadingNPCs:  true,
	}
}

func (m *ConsoleUI) appendLog(kind logKind, lines ...string) {
	m.log = append(m.log, logEntry{kind: kind, lines: lines})
	if len(m.log) > maxLogEntries {
		m.log = m.log[len(m.log)-maxLogEntries:]
	}
	if kind == logInfo {
		m.lastOut = lines
	}
}

// writeLogContent renders the log for the current viewport width
func (m *ConsoleUI) writeLogContent() {
	width := m.logViewport.Width - 6
	if width < 20 {
		width = 20
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render("TRADER CONSOLE") + "\n\n")
	if m.npc != nil {
		content.WriteString("Trading with " + traderStyle.Render(m.npc.Name) + ". Type /help for commands.\n\n")
	}
	content.WriteString(separatorStyle.Render(strings.Repeat("─", width)) + "\n\n")

	for _, e := range m.log {
		text := wordwrap.String(strings.Join(e.lines, "\n"), width)
		switch e.kind {
		case logInput:
			content.WriteString(userStyle.Render("> ") + text + "\n")
		case logError:
			content.WriteString(errorStyle.Render(text) + "\n\n")
		case logEvent:
			content.WriteString(eventStyle.Render(text) + "\n\n")
		default:
			content.WriteString(traderStyle.Render(text) + "\n\n")
		}
	}

	if m.loading {
		content.WriteString(m.renderProgressBar())
	}

	m.logViewport.SetContent(content.String())
	m.logViewport.GotoBottom()
}

func writeMetadata(cfg *ConsoleConfig, npc *NPCView, s *SessionView, p *PlayerView, streamOn bool) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("TRADE") + "\n\n")

	content.WriteString("Player:\n")
	content.WriteString(cfg.Player.String()[:8] + "...\n\n")

	if npc != nil {
		content.WriteString("Trader:\n")
		content.WriteString(fmt.Sprintf("%s (%s)\n\n", npc.Name, npc.State))
	}

	if s == nil {
		content.WriteString("Session:\nclosed\n\n")
	} else {
		content.WriteString("Session:\n")
		content.WriteString(fmt.Sprintf("%s, category %s\n", s.Phase, s.Filter))
		if len(s.Staged) == 0 {
			content.WriteString("nothing staged\n")
		}
		for i, st := range s.Staged {
			content.WriteString(fmt.Sprintf("%d. %s\n", i, describeStake(st)))
		}
		content.WriteString("Preview: " + money(s.Preview.Total) + "\n\n")
	}

	if p != nil {
		content.WriteString("Today:\n")
		content.WriteString(money(p.DailySold) + " sold\n")
		content.WriteString(money(p.Remaining) + " left\n\n")
		content.WriteString("Holdings:\n")
		if len(p.Holdings) == 0 {
			content.WriteString("empty\n")
		}
		for _, h := range p.Holdings {
			content.WriteString("• " + describeStake(h) + "\n")
		}
		content.WriteString("\n")
		if !p.LastSell.IsZero() {
			content.WriteString("Last sale " + humanize.Time(p.LastSell) + "\n\n")
		}
	}

	if streamOn {
		content.WriteString("Events: live\n\n")
	} else {
		content.WriteString("Events: off\n\n")
	}

	content.WriteString("Commands:\n")
	content.WriteString("• Ctrl+C: Quit\n")
	content.WriteString("• Enter: Run\n")
	content.WriteString("• /help: Help\n")

	return content.String()
}

func (m *ConsoleUI) writeMeta() {
	m.metaViewport.SetContent(writeMetadata(m.config, m.npc, m.session, m.account, m.streamOn))
}

func (m *ConsoleUI) layout() {
	logWidth := int(float64(m.width)*0.7) - 4
	metaWidth := m.width - logWidth - 6
	m.logViewport.Width = logWidth - 2
	m.logViewport.Height = m.height - 7
	m.metaViewport.Width = metaWidth - 2
	m.metaViewport.Height = m.height - 4
	m.textarea.SetWidth(logWidth - 4)
}

func (m ConsoleUI) Init() tea.Cmd {
	return m.loadNPCs()
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Stream messages arrive regardless of which screen is showing
	switch msg := msg.(type) {
	case sseEventMsg:
		m.streamOn = true
		if line := describeEvent(SSEEvent(msg)); line != "" {
			m.appendLog(logEvent, line)
			if m.ready {
				m.writeLogContent()
			}
		}
		return m, nil
	case sseClosedMsg:
		m.streamOn = false
		if msg.err != nil {
			m.appendLog(logError, "Event stream unavailable: "+msg.err.Error())
		}
		if m.ready {
			m.writeLogContent()
			m.writeMeta()
		}
		return m, nil
	}

	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	if m.showNPCModal {
		return m.updateNPCModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.logViewport, vpCmd = m.logViewport.Update(msg)
		m.metaViewport, mvCmd = m.metaViewport.Update(msg)
		return m, tea.Batch(vpCmd, mvCmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.ready = true
		m.writeLogContent()
		m.writeMeta()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}
			input := strings.TrimSpace(m.textarea.Value())
			m.textarea.Reset()
			if input == "" {
				return m, nil
			}
			m.appendLog(logInput, input)

			if strings.EqualFold(strings.TrimPrefix(input, "/"), "copy") {
				m.copyLastOutput()
				m.writeLogContent()
				return m, nil
			}

			m.loading = true
			m.progressTick = 0
			m.writeLogContent()
			return m, tea.Batch(m.runCommand(input), progressTick())
		}

	case commandMsg:
		m.loading = false
		if msg.err != nil {
			m.appendLog(logError, "Error: "+msg.err.Error())
		} else if len(msg.lines) > 0 {
			m.appendLog(logInfo, msg.lines...)
		}
		m.writeLogContent()
		return m, m.refresh()

	case refreshMsg:
		if msg.err == nil {
			m.session = msg.session
			m.account = msg.account
			m.writeMeta()
		}

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.writeLogContent()
			return m, progressTick()
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.logViewport, vpCmd = m.logViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, mvCmd)
}

func (m *ConsoleUI) copyLastOutput() {
	if len(m.lastOut) == 0 {
		m.appendLog(logError, "Nothing to copy yet.")
		return
	}
	if err := clipboard.WriteAll(strings.Join(m.lastOut, "\n")); err != nil {
		m.appendLog(logError, "Clipboard unavailable: "+err.Error())
		return
	}
	m.log = append(m.log, logEntry{kind: logEvent, lines: []string{"Copied to clipboard."}})
}

// describeEvent turns a stream event into one log line, or "" to skip it.
// Previews are skipped; the side panel shows them.
func describeEvent(ev SSEEvent) string {
	payload, _ := ev.Data["data"].(map[string]interface{})
	switch ev.Type {
	case "sale.completed":
		total, _ := payload["total"].(string)
		name, _ := payload["npc_name"].(string)
		count, _ := payload["count"].(float64)
		return fmt.Sprintf("Sale: %d items to %s for $%s", int(count), name, total)
	case "ledger.daily_reset":
		return "A new trading day has begun. Daily limits are reset."
	case "npc.state":
		id, _ := payload["npc_id"].(string)
		state, _ := payload["state"].(string)
		return fmt.Sprintf("Trader %s is now %s.", id, state)
	default:
		return ""
	}
}

func (m ConsoleUI) runCommand(input string) tea.Cmd {
	npcID := ""
	if m.npc != nil {
		npcID = m.npc.ID
	}
	return func() tea.Msg {
		lines, err := runCommand(m.api, npcID, input, time.Now())
		return commandMsg{lines: lines, err: err}
	}
}

func (m ConsoleUI) refresh() tea.Cmd {
	return func() tea.Msg {
		s, err := m.api.Session()
		if err != nil {
			return refreshMsg{err: err}
		}
		p, err := m.api.Player()
		return refreshMsg{session: s, account: p, err: err}
	}
}

func (m ConsoleUI) loadNPCs() tea.Cmd {
	return func() tea.Msg {
		npcs, err := m.api.ListNPCs()
		return npcsLoadedMsg{npcs, err}
	}
}

// joinNPC places the player next to the NPC and opens a session
func (m ConsoleUI) joinNPC(npc NPCView) tea.Cmd {
	return func() tea.Msg {
		loc := npc.Location
		loc.X++
		if err := m.api.Join(loc); err != nil {
			return npcJoinedMsg{npc: npc, err: err}
		}
		in, err := m.api.Interact(npc.ID)
		return npcJoinedMsg{npc: npc, interaction: in, err: err}
	}
}

func (m ConsoleUI) updateNPCModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case npcsLoadedMsg:
		m.loadingNPCs = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.npcs = msg.npcs
		}

	case npcJoinedMsg:
		m.loading = false
		if msg.err != nil && msg.interaction == nil {
			m.err = msg.err
			return m, nil
		}
		npc := msg.npc
		m.npc = &npc
		m.showNPCModal = false
		if msg.interaction != nil && msg.interaction.Greeting != "" {
			m.appendLog(logInfo, msg.interaction.Greeting)
		}
		if msg.err != nil {
			m.appendLog(logError, "Error: "+msg.err.Error())
		} else if msg.interaction != nil && msg.interaction.Session != nil {
			m.session = msg.interaction.Session
			m.appendLog(logInfo, "Session opened. Try: give IRON_ORE 16, then stage IRON_ORE 16, then sell.")
		}
		if m.width > 0 && m.height > 0 {
			m.layout()
			m.ready = true
		}
		m.writeLogContent()
		m.writeMeta()
		m.textarea.Focus()
		return m, tea.Batch(textarea.Blink, m.refresh())

	case tea.KeyMsg:
		if m.loadingNPCs {
			if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
				return m, tea.Quit
			}
			return m, nil
		}

		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyUp:
			if m.selectedNPC > 0 {
				m.selectedNPC--
			}
		case tea.KeyDown:
			if m.selectedNPC < len(m.npcs)-1 {
				m.selectedNPC++
			}
		case tea.KeyEnter:
			if m.err == nil && len(m.npcs) > 0 && !m.loading {
				m.loading = true
				return m, m.joinNPC(m.npcs[m.selectedNPC])
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				if m.showNPCModal {
					return m, nil
				}
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit?"))
	content.WriteString("\n\n")
	content.WriteString("Any open session is closed and staged items are returned.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderNPCModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder

	switch {
	case m.loadingNPCs:
		content.WriteString(modalTitleStyle.Render("Loading Traders..."))
		content.WriteString("\n\n")
		content.WriteString(loadingStyle.Render("Please wait while we fetch the traders..."))
	case m.err != nil:
		content.WriteString(modalTitleStyle.Render("Error"))
		content.WriteString("\n\n")
		content.WriteString(errorStyle.Render(fmt.Sprintf("Failed to reach a trader: %v", m.err)))
		content.WriteString("\n\n")
		content.WriteString("Press Ctrl+C to exit")
	case m.loading:
		content.WriteString(modalTitleStyle.Render("Walking Over..."))
		content.WriteString("\n\n")
		content.WriteString(loadingStyle.Render("Opening a trade..."))
	case len(m.npcs) == 0:
		content.WriteString(modalTitleStyle.Render("No Traders"))
		content.WriteString("\n\n")
		content.WriteString("Create one with POST /v1/npcs, then restart.")
	default:
		content.WriteString(modalTitleStyle.Render("Select a Trader"))
		content.WriteString("\n\n")

		for i, npc := range m.npcs {
			label := fmt.Sprintf("%s  %s", npc.Name, promptStyle.Render(npc.State))
			if !npc.Enabled {
				label = fmt.Sprintf("%s  (closed)", npc.Name)
			}
			switch {
			case i == m.selectedNPC:
				content.WriteString(modalSelectedItemStyle.Render("▶ " + label))
			case !npc.Enabled:
				content.WriteString(modalDisabledItemStyle.Render("  " + label))
			default:
				content.WriteString(modalItemStyle.Render("  " + label))
			}
			content.WriteString("\n")
		}

		content.WriteString("\n")
		content.WriteString(promptStyle.Render("Use ↑/↓ to navigate, Enter to select, Ctrl+C to exit"))
	}

	modal := modalStyle.Width(60).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}

	if m.showNPCModal {
		return m.renderNPCModal()
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	logWidth := int(float64(m.width)*0.7) - 4
	metaWidth := m.width - logWidth - 6

	logPanel := logPanelStyle.Width(logWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.logViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", logWidth-4)),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, logPanel, metaPanel)
}

// renderProgressBar creates an animated progress bar for loading states
func (m ConsoleUI) renderProgressBar() string {
	usable := m.logViewport.Width - 6
	if usable <= 0 {
		usable = 30
	}
	if usable > 80 {
		usable = 80
	} else if usable < 10 {
		usable = 10
	}

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := 0; i < usable; i++ {
		if i < filled {
			bar.WriteString("█")
		} else if i == filled && frame%4 < 2 {
			bar.WriteString("▓")
		} else {
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
