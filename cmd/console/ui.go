package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jwebster45206/scam-sim/internal/handlers"
	"github.com/jwebster45206/scam-sim/pkg/chat"
	"github.com/jwebster45206/scam-sim/pkg/evaluator"
	"github.com/jwebster45206/scam-sim/pkg/market"
	"github.com/jwebster45206/scam-sim/pkg/scenario"
	"github.com/jwebster45206/scam-sim/pkg/session"
)

const (
	AppTitle        = "反诈模拟器"
	PlaceHolderText = "输入你的回复..."
)

type screen int

const (
	screenMenu screen = iota
	screenChat
	screenMarket
	screenResult
)

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	api *apiClient

	session      *handlers.SessionResponse
	scenarios    []scenario.Config
	quickReplies []string
	selected     int
	screen       screen

	chatViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int
	err          error
	notice       string
	loading      bool
	typing       bool

	events     chan SSEEvent
	stopEvents context.CancelFunc

	showQuitModal bool
	progressTick  int
}

type menuLoadedMsg struct {
	scenarios *handlers.ScenarioListResponse
	session   *handlers.SessionResponse
	err       error
}

type sessionMsg struct {
	session *handlers.SessionResponse
	err     error
}

type sseEventMsg struct {
	event SSEEvent
}

type sseClosedMsg struct{}

type copiedMsg struct {
	err error
}

type progressTickMsg struct{}

var (
	panelStyle = lipgloss.NewStyle().
			PaddingTop(1).
			PaddingLeft(2).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	scammerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")). // teal
			Bold(true)

	systemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	blurStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("214")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	winStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	loseStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	selectedCardStyle = cardStyle.
				BorderForeground(lipgloss.Color("205"))

	scaleStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("86")).
			Padding(0, 2)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey
)

var platformCaser = cases.Title(language.English)

var directActions = map[string]evaluator.Action{
	"ctrl+r": evaluator.ActionReportBlock,
	"ctrl+v": evaluator.ActionVideoCall,
	"ctrl+t": evaluator.ActionTransferNow,
}

var marketKeys = map[string]market.Action{
	"p": market.ActionPay,
	"d": market.ActionDrain,
	"c": market.ActionCheckScale,
}

func NewConsoleUI(api *apiClient) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = chat.MaxMessageLength
	ta.SetWidth(50)
	ta.SetHeight(2)
	ta.ShowLineNumbers = false

	vp := viewport.New(50, 20)
	vp.MouseWheelEnabled = true

	return ConsoleUI{
		api:          api,
		textarea:     ta,
		chatViewport: vp,
		loading:      true,
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return m.loadMenu()
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.ready = true
		return m, nil

	case menuLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.scenarios = msg.scenarios.Scenarios
		m.quickReplies = msg.scenarios.QuickReplies
		m.applySession(msg.session)
		return m, m.startEvents(msg.session.ID)

	case sessionMsg:
		m.loading = false
		m.typing = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.applySession(msg.session)
		if m.screen == screenChat {
			m.textarea.Focus()
			return m, textarea.Blink
		}
		m.textarea.Blur()
		return m, nil

	case sseEventMsg:
		m.applyEvent(msg.event)
		return m, m.waitForEvent()

	case sseClosedMsg:
		// Event stream unavailable (memory backend) or closed; the UI
		// still works from request responses.
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.notice = "复制失败: " + msg.err.Error()
		} else {
			m.notice = "分析已复制到剪贴板"
		}
		return m, nil

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.refreshTranscript()
			return m, progressTick()
		}
		return m, nil

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.chatViewport, cmd = m.chatViewport.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.showQuitModal = true
			return m, nil
		}
		m.notice = ""
		switch m.screen {
		case screenMenu:
			return m.updateMenu(msg)
		case screenChat:
			return m.updateChat(msg)
		case screenMarket:
			return m.updateMarket(msg)
		case screenResult:
			return m.updateResult(msg)
		}
	}

	return m, nil
}

func (m ConsoleUI) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.loading || m.session == nil {
		return m, nil
	}
	switch msg.String() {
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
	case "down", "j":
		if m.selected < len(m.scenarios)-1 {
			m.selected++
		}
	case "enter":
		if len(m.scenarios) > 0 {
			id := string(m.scenarios[m.selected].ID)
			return m.call(func(sid string) (*handlers.SessionResponse, error) {
				return m.api.start(sid, id)
			})
		}
	case "q":
		m.showQuitModal = true
	}
	return m, nil
}

func (m ConsoleUI) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if action, ok := directActions[key]; ok {
		if m.loading {
			return m, nil
		}
		return m.call(func(sid string) (*handlers.SessionResponse, error) {
			return m.api.act(sid, string(action))
		})
	}

	switch key {
	case "esc":
		return m.call(m.api.reset)

	case "f1", "f2", "f3", "f4":
		if m.loading || len(m.session.QuickReplies) == 0 {
			return m, nil
		}
		i := int(key[1] - '1')
		if i >= len(m.session.QuickReplies) {
			return m, nil
		}
		return m.sendMessage(m.session.QuickReplies[i])

	case "enter":
		if m.loading {
			return m, nil
		}
		input := strings.TrimSpace(m.textarea.Value())
		if input == "" {
			return m, nil
		}
		m.textarea.Reset()
		return m.sendMessage(input)
	}

	var tiCmd, vpCmd tea.Cmd
	m.textarea, tiCmd = m.textarea.Update(msg)
	m.chatViewport, vpCmd = m.chatViewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd)
}

func (m ConsoleUI) updateMarket(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "esc" {
		return m.call(m.api.reset)
	}
	action, ok := marketKeys[key]
	if !ok || m.loading {
		return m, nil
	}
	return m.call(func(sid string) (*handlers.SessionResponse, error) {
		return m.api.market(sid, action)
	})
}

func (m ConsoleUI) updateResult(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.loading {
		return m, nil
	}
	switch msg.String() {
	case "ctrl+y":
		return m, copyToClipboard(m.session.Feedback)
	case "r":
		if m.session.Status == session.StatusLost {
			return m.call(m.api.retry)
		}
	case "enter", "m", "esc":
		return m.call(m.api.reset)
	}
	return m, nil
}

// sendMessage shows the player's line immediately and posts it.
func (m ConsoleUI) sendMessage(text string) (tea.Model, tea.Cmd) {
	st := m.session.State.Clone()
	st.Transcript = append(st.Transcript, chat.NewMessage(chat.SenderUser, text, time.Now()))
	st.Hint = ""
	m.session = &handlers.SessionResponse{State: st}
	m.refreshTranscript()

	model, cmd := m.call(func(sid string) (*handlers.SessionResponse, error) {
		return m.api.send(sid, text)
	})
	return model, tea.Batch(cmd, progressTick())
}

// call runs a session operation in the background.
func (m ConsoleUI) call(fn func(sessionID string) (*handlers.SessionResponse, error)) (tea.Model, tea.Cmd) {
	if m.session == nil {
		return m, nil
	}
	m.loading = true
	m.progressTick = 0
	id := m.session.ID
	return m, func() tea.Msg {
		resp, err := fn(id)
		return sessionMsg{resp, err}
	}
}

func (m ConsoleUI) loadMenu() tea.Cmd {
	return func() tea.Msg {
		list, err := m.api.listScenarios()
		if err != nil {
			return menuLoadedMsg{err: err}
		}
		s, err := m.api.createSession()
		return menuLoadedMsg{scenarios: list, session: s, err: err}
	}
}

func (m *ConsoleUI) startEvents(sessionID string) tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	m.stopEvents = cancel
	m.events = make(chan SSEEvent, 16)

	events := m.events
	listen := func() tea.Msg {
		_ = m.api.listenToSSE(ctx, sessionID, events)
		close(events)
		return sseClosedMsg{}
	}
	return tea.Batch(listen, m.waitForEvent())
}

func (m ConsoleUI) waitForEvent() tea.Cmd {
	events := m.events
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return sseClosedMsg{}
		}
		return sseEventMsg{e}
	}
}

func (m *ConsoleUI) applyEvent(e SSEEvent) {
	switch e.Type {
	case "session.typing":
		if typing, ok := e.Data["typing"].(bool); ok {
			m.typing = typing
			m.refreshTranscript()
		}
	case "session.hint":
		if hint, ok := e.Data["hint"].(string); ok && m.session != nil {
			m.session.Hint = hint
		}
	}
}

func (m *ConsoleUI) applySession(resp *handlers.SessionResponse) {
	m.session = resp
	m.screen = screenFor(resp)
	m.refreshTranscript()
}

func screenFor(resp *handlers.SessionResponse) screen {
	switch {
	case resp == nil || resp.Status == session.StatusMenu:
		return screenMenu
	case resp.Status.Terminal():
		return screenResult
	case resp.Market != nil:
		return screenMarket
	default:
		return screenChat
	}
}

func (m *ConsoleUI) resize() {
	w := m.width - 4
	if w < 20 {
		w = 20
	}
	m.chatViewport.Width = w
	m.chatViewport.Height = max(m.height-12, 5)
	m.textarea.SetWidth(w)
	m.refreshTranscript()
}

func (m *ConsoleUI) refreshTranscript() {
	if m.session == nil {
		return
	}
	width := m.chatViewport.Width - 2

	var content strings.Builder
	for _, msg := range m.session.Transcript {
		content.WriteString(renderMessage(msg, width))
		content.WriteString("\n\n")
	}
	if m.loading || m.typing {
		content.WriteString(loadingStyle.Render("对方正在输入…") + "\n")
		if m.loading {
			content.WriteString(m.renderProgressBar())
		}
	}

	m.chatViewport.SetContent(content.String())
	m.chatViewport.GotoBottom()
}

func senderLabel(s chat.Sender) string {
	switch s {
	case chat.SenderUser:
		return userStyle.Render("我: ")
	case chat.SenderScammer:
		return scammerStyle.Render("对方: ")
	case chat.SenderMascot:
		return systemStyle.Render("小助手: ")
	default:
		return systemStyle.Render("系统: ")
	}
}

func renderMessage(msg chat.Message, width int) string {
	text := wrapText(msg.Text, width-8)
	if msg.IsBlurred {
		text = blurStyle.Render("[已模糊] " + text)
	}
	return senderLabel(msg.Sender) + text
}

// wrapText wraps on spaces first, then hard-wraps runs of CJK text that
// contain none.
func wrapText(s string, width int) string {
	if width < 10 {
		width = 10
	}
	return wrap.String(wordwrap.String(s, width), width)
}

func stars(n int) string {
	return strings.Repeat("★", n) + strings.Repeat("☆", max(5-n, 0))
}

func scaleReadout(st *market.State) string {
	bag := "袋子里有水"
	if !st.HasWaterBag {
		bag = "水已倒掉"
	}
	return fmt.Sprintf("秤显示: %.2f 斤   单价: %.0f 元/斤   应付: %d 元\n%s",
		st.DisplayedWeight, st.UnitPrice, st.Charge(), bag)
}

func copyToClipboard(text string) tea.Cmd {
	return func() tea.Msg {
		return copiedMsg{clipboard.WriteAll(text)}
	}
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "enter", "y", "Y":
			if m.stopEvents != nil {
				m.stopEvents()
			}
			return m, tea.Quit
		case "n", "N", "esc":
			m.showQuitModal = false
			if m.screen == screenChat {
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}
	return m, nil
}

func (m ConsoleUI) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}
	if m.showQuitModal {
		return m.renderQuitModal()
	}

	var body string
	switch {
	case m.session == nil && m.err != nil:
		body = errorStyle.Render("无法连接服务器: "+m.err.Error()) + "\n\n" + promptStyle.Render("Ctrl+C 退出")
	case m.session == nil:
		body = loadingStyle.Render("加载中...")
	case m.screen == screenMenu:
		body = m.renderMenu()
	case m.screen == screenChat:
		body = m.renderChat()
	case m.screen == screenMarket:
		body = m.renderMarket()
	case m.screen == screenResult:
		body = m.renderResult()
	}

	var footer string
	if m.session != nil && m.err != nil {
		footer = "\n" + errorStyle.Render("错误: "+m.err.Error())
	}
	if m.notice != "" {
		footer += "\n" + systemStyle.Render(m.notice)
	}

	return panelStyle.Render(m.renderHeader() + "\n\n" + body + footer)
}

func (m ConsoleUI) renderHeader() string {
	title := titleStyle.Render(AppTitle)
	if m.session == nil {
		return title
	}
	header := fmt.Sprintf("%s   得分: %d", title, m.session.Score)
	if m.screen != screenMenu {
		cfg := scenario.Get(m.session.ScenarioID)
		header += "   " + promptStyle.Render(cfg.Title+" · "+platformCaser.String(string(cfg.Platform)))
	}
	return header
}

func (m ConsoleUI) renderMenu() string {
	width := max(m.width-8, 20)

	var content strings.Builder
	content.WriteString("选择一个场景，识破骗局。\n\n")
	for i, c := range m.scenarios {
		card := fmt.Sprintf("%s  %s  %s\n%s",
			titleStyle.Render(c.Title),
			loadingStyle.Render(stars(c.Difficulty)),
			promptStyle.Render(platformCaser.String(string(c.Platform))),
			wrapText(c.Description, width-4))
		style := cardStyle
		if i == m.selected {
			style = selectedCardStyle
		}
		content.WriteString(style.Width(width).Render(card) + "\n")
	}
	content.WriteString("\n" + promptStyle.Render("↑/↓ 选择   Enter 开始   q 退出"))
	return content.String()
}

func (m ConsoleUI) renderChat() string {
	var content strings.Builder
	content.WriteString(m.chatViewport.View() + "\n")

	if m.session.Hint != "" {
		content.WriteString(hintStyle.Render("提示: "+m.session.Hint) + "\n")
	}
	content.WriteString(separatorStyle.Render(strings.Repeat("─", max(m.chatViewport.Width, 1))) + "\n")

	if len(m.session.QuickReplies) > 0 {
		var replies []string
		for i, r := range m.session.QuickReplies {
			if i >= 4 {
				break
			}
			replies = append(replies, fmt.Sprintf("F%d %s", i+1, r))
		}
		content.WriteString(promptStyle.Render(strings.Join(replies, "  ")) + "\n")
	}

	content.WriteString(m.textarea.View() + "\n")
	content.WriteString(promptStyle.Render("Enter 发送   Ctrl+R 拉黑举报   Ctrl+V 视频通话   Ctrl+T 立即转账   Esc 返回菜单"))
	return content.String()
}

func (m ConsoleUI) renderMarket() string {
	st := m.session.Market
	width := max(m.width-8, 20)

	var content strings.Builder
	content.WriteString(scammerStyle.Render("摊主") + promptStyle.Render(" ("+string(st.VendorMood)+")") + "\n")
	content.WriteString(wrapText(st.VendorText, width) + "\n\n")
	content.WriteString(scaleStyle.Render(scaleReadout(st)) + "\n\n")

	if m.loading {
		content.WriteString(loadingStyle.Render("摊主正在回应…") + "\n")
		content.WriteString(m.renderProgressBar() + "\n")
	}

	content.WriteString(promptStyle.Render("p 付钱   d 把水倒掉   c 用手机验秤   Esc 返回菜单"))
	return content.String()
}

func (m ConsoleUI) renderResult() string {
	width := max(m.width-8, 20)

	var content strings.Builder
	if m.session.Status == session.StatusWon {
		content.WriteString(winStyle.Render("防骗成功！") + "\n\n")
	} else {
		content.WriteString(loseStyle.Render("你被骗了") + "\n\n")
	}
	content.WriteString(titleStyle.Render("分析") + "\n")
	content.WriteString(wrapText(m.session.Feedback, width) + "\n\n")

	keys := "Enter 返回菜单   Ctrl+Y 复制分析"
	if m.session.Status == session.StatusLost {
		keys = "Enter 返回菜单   r 再试一次   Ctrl+Y 复制分析"
	}
	content.WriteString(promptStyle.Render(keys))
	return content.String()
}

func (m ConsoleUI) renderQuitModal() string {
	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("退出?"))
	content.WriteString("\n\n")
	content.WriteString("确定要退出反诈模拟器吗？")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Y 退出   N 继续"))

	modal := modalStyle.Width(40).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

// renderProgressBar creates an animated progress bar for loading states
func (m ConsoleUI) renderProgressBar() string {
	usable := m.chatViewport.Width - 6
	if usable > 60 {
		usable = 60
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
			bar.WriteString("▓") // Blinking effect at the progress point
		} else {
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

// progressTick creates a command that sends a progress tick message
func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
