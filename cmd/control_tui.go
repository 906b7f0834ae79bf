// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/tuyastat/pkg/bridge"
	"github.com/Thermoquad/tuyastat/pkg/property"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

// Focus states
const (
	focusPropertyList = iota
	focusValueInput
	focusButton
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// propertyItem is one row of the property list
type propertyItem struct {
	p *property.Property
}

// Implement list.Item interface
func (i propertyItem) Title() string { return i.p.Title() }
func (i propertyItem) Description() string {
	if i.p.ReadOnly() {
		return i.p.Format() + " (read-only)"
	}
	return i.p.Format()
}
func (i propertyItem) FilterValue() string { return i.p.ID() }

// controlModel is the Bubble Tea model for the control TUI
type controlModel struct {
	// Connection manager (bridge access and reconnection)
	connMgr  *connectionManager
	connInfo string

	// Properties of the device model
	propertyList list.Model

	// Monitoring (reused from tui.go patterns)
	stats         *bridge.Statistics
	errorLog      []errorLogEntry
	maxLogEntries int

	// Control
	valueInput   textinput.Model
	focusedField int

	// UI state
	width          int
	height         int
	synchronized   bool
	quitting       bool
	connectionLost bool

	// Heartbeat state
	lastHeartbeat time.Time
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type controlTickMsg time.Time

type controlBatchMsg struct {
	events  []detectionEvent
	synced  bool
	skipped int
	stats   *bridge.Statistics
}

type reconnectedMsg struct {
	connInfo string
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(connMgr *connectionManager, connInfo string) controlModel {
	ti := textinput.New()
	ti.Placeholder = "value"
	ti.CharLimit = 32
	ti.Width = 16

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	propertyList := list.New([]list.Item{}, delegate, 30, 10)
	propertyList.Title = connMgr.b.Model().Name()
	propertyList.SetShowStatusBar(false)
	propertyList.SetShowHelp(false)
	propertyList.SetFilteringEnabled(false)

	m := controlModel{
		connMgr:       connMgr,
		connInfo:      connInfo,
		propertyList:  propertyList,
		stats:         bridge.NewStatistics(),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		valueInput:    ti,
		focusedField:  focusPropertyList,
		width:         80,
		height:        24,
		lastHeartbeat: time.Now(),
	}
	m.updatePropertyList()
	return m
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	return controlTickCmd()
}

func controlTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return controlTickMsg(t)
	})
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.MouseMsg:
		return m.handleMouseMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case controlTickMsg:
		m.stats.CalculateRates()
		// Keep the MCU session alive while connected
		interval := cfg.Device.HeartbeatInterval
		if interval > 0 && !m.connectionLost && time.Since(m.lastHeartbeat) >= interval {
			m.lastHeartbeat = time.Now()
			if err := m.connMgr.b.Heartbeat(); err != nil {
				m.addLogEntry(fmt.Sprintf("Heartbeat failed: %v", err), true)
			}
		}
		return m, controlTickCmd()

	case controlBatchMsg:
		m.stats = msg.stats
		if msg.synced {
			m.synchronized = true
		}
		for _, e := range msg.events {
			m.errorLog = appendLogEntry(m.errorLog, e.timestamp, e.message, e.isError, m.maxLogEntries)
		}
		m.updatePropertyList()

	case connectionLostMsg:
		m.connectionLost = true
		m.addLogEntry("Connection lost - reconnecting...", true)

	case reconnectedMsg:
		m.connectionLost = false
		m.connInfo = msg.connInfo
		m.lastHeartbeat = time.Now()
		m.addLogEntry("Reconnected - querying all data points", false)
	}

	// Update child components
	var cmd tea.Cmd
	if m.focusedField == focusValueInput {
		m.valueInput, cmd = m.valueInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	if m.focusedField == focusPropertyList {
		m.propertyList, cmd = m.propertyList.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "q":
		if m.focusedField != focusValueInput {
			m.quitting = true
			return m, tea.Quit
		}

	case "tab":
		return m.cycleFocus(1), nil

	case "shift+tab":
		return m.cycleFocus(-1), nil

	case "enter":
		return m.handleEnter()

	case "up", "k", "down", "j":
		if m.focusedField == focusPropertyList {
			before := m.propertyList.Index()
			m.propertyList, _ = m.propertyList.Update(msg)
			if m.propertyList.Index() != before {
				m.valueInput.SetValue("")
			}
			return m, nil
		}
	}

	// Pass through to focused component
	if m.focusedField == focusValueInput {
		var cmd tea.Cmd
		m.valueInput, cmd = m.valueInput.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *controlModel) handleMouseMsg(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionRelease || msg.Button != tea.MouseButtonLeft {
		return m, nil
	}

	m.propertyList, _ = m.propertyList.Update(msg)
	return m, nil
}

func (m *controlModel) cycleFocus(delta int) *controlModel {
	selected := m.selectedProperty()
	if selected == nil || selected.ReadOnly() {
		m.focusedField = focusPropertyList
		m.valueInput.Blur()
		return m
	}

	maxFocus := focusButton
	m.focusedField = (m.focusedField + delta + maxFocus + 1) % (maxFocus + 1)

	// Toggles and enums have no text input
	if m.focusedField == focusValueInput && !usesTextInput(selected) {
		m.focusedField = (m.focusedField + delta + maxFocus + 1) % (maxFocus + 1)
	}

	if m.focusedField == focusValueInput {
		m.valueInput.Focus()
	} else {
		m.valueInput.Blur()
	}

	return m
}

func (m *controlModel) handleEnter() (tea.Model, tea.Cmd) {
	if m.focusedField == focusPropertyList {
		return m, nil
	}

	// Don't allow control commands while connection is lost
	if m.connectionLost {
		m.addLogEntry("Cannot send command: connection lost", true)
		return m, nil
	}

	selected := m.selectedProperty()
	if selected == nil || selected.ReadOnly() {
		return m, nil
	}

	switch {
	case selected.Type() == property.TypeBoolean:
		on, _ := selected.Bool()
		m.applySet(selected, func() error { return m.connMgr.b.Set(selected.ID(), !on) })

	case selected.IsEnum():
		next := uint8(0)
		if idx := selected.EnumIndex(); idx != property.NoEnumIndex {
			next = uint8((int(idx) + 1) % len(selected.Enum()))
		}
		m.applySet(selected, func() error { return m.connMgr.b.SetEnumIndex(selected.ID(), next) })

	default:
		v, err := selected.Parse(m.valueInput.Value())
		if err != nil {
			m.addLogEntry(err.Error(), true)
			return m, nil
		}
		m.applySet(selected, func() error { return m.connMgr.b.Set(selected.ID(), v) })
		m.valueInput.SetValue("")
	}

	m.updatePropertyList()
	return m, nil
}

// applySet runs a local change and logs a failure
func (m *controlModel) applySet(p *property.Property, set func() error) {
	if err := set(); err != nil {
		m.addLogEntry(fmt.Sprintf("Set %s failed: %v", p.ID(), err), true)
	}
}

// usesTextInput reports whether a property is edited by typing a value
func usesTextInput(p *property.Property) bool {
	return p.Type() != property.TypeBoolean && !p.IsEnum()
}

func (m controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	buttonStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("12")).
		Padding(0, 2)

	focusedButtonStyle := buttonStyle.
		Background(lipgloss.Color("10"))

	// Header
	s.WriteString(titleStyle.Render("TUYASTAT CONTROL"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | q=quit Tab=switch Enter=apply", connStatus)))
	s.WriteString("\n")

	// MCU status (below header)
	b := m.connMgr.b
	mcu := warningStyle.Render("waiting")
	switch {
	case b.Online():
		mcu = statsValueStyle.Render("online")
	case m.synchronized:
		mcu = statsValueStyle.Render("synchronized")
	}
	s.WriteString(fmt.Sprintf(" %s %s", statsLabelStyle.Render("MCU:"), mcu))
	if product := b.ProductInfo(); product != "" {
		s.WriteString(fmt.Sprintf("  %s %s", statsLabelStyle.Render("Product:"), headerStyle.Render(product)))
	}
	s.WriteString("\n\n")

	// Layout: left panel (properties) | right panel (control)
	leftWidth := 30
	rightWidth := m.width - leftWidth - 6

	listStyle := boxStyle.Width(leftWidth)
	if m.focusedField == focusPropertyList {
		listStyle = focusedBoxStyle.Width(leftWidth)
	}
	propertyPanel := listStyle.Render(m.propertyList.View())

	controlContent := m.renderControlPanel(statsLabelStyle, statsValueStyle, headerStyle, buttonStyle, focusedButtonStyle)
	controlPanel := boxStyle.Width(rightWidth).Render(controlContent)

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, propertyPanel, " ", controlPanel))
	s.WriteString("\n\n")

	s.WriteString(m.renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle))
	s.WriteString("\n\n")

	s.WriteString(m.renderEventLog(statsLabelStyle, warningStyle, boxStyle))

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m controlModel) renderControlPanel(statsLabelStyle, statsValueStyle, headerStyle, buttonStyle, focusedButtonStyle lipgloss.Style) string {
	var s strings.Builder

	selected := m.selectedProperty()
	if selected == nil {
		s.WriteString(headerStyle.Render("No property selected"))
		return s.String()
	}

	s.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render("Selected:"), selected.Title()))
	s.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render("Type:"), selected.Type()))
	if entry, ok := m.connMgr.b.Model().EntryFor(selected.ID()); ok {
		s.WriteString(fmt.Sprintf("%s 0x%02X (%s)\n", statsLabelStyle.Render("DPID:"), entry.DPID, entry.Codec.DataType()))
	}
	s.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render("Value:"), statsValueStyle.Render(selected.Format())))
	if lo, hi := selected.Range(); lo != nil && hi != nil {
		s.WriteString(fmt.Sprintf("%s %g .. %g\n", statsLabelStyle.Render("Range:"), *lo, *hi))
	}
	if selected.IsEnum() {
		s.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render("Options:"), strings.Join(selected.Enum(), ", ")))
	}
	s.WriteString("\n")

	if selected.ReadOnly() {
		s.WriteString(headerStyle.Render("Read-only (reported by the MCU)"))
		return s.String()
	}

	var btnText string
	switch {
	case selected.Type() == property.TypeBoolean:
		btnText = "[ Turn On ]"
		if on, _ := selected.Bool(); on {
			btnText = "[ Turn Off ]"
		}

	case selected.IsEnum():
		btnText = "[ Next Option ]"

	default:
		s.WriteString(statsLabelStyle.Render("New value: "))
		if m.focusedField == focusValueInput {
			s.WriteString(m.valueInput.View())
		} else {
			// Show as plain text when not focused
			val := m.valueInput.Value()
			if val == "" {
				val = m.valueInput.Placeholder
			}
			s.WriteString(fmt.Sprintf("[%s]", val))
		}
		s.WriteString("\n\n")
		btnText = "[ Apply ]"
	}

	if m.focusedField == focusButton {
		s.WriteString(focusedButtonStyle.Render(btnText))
	} else {
		s.WriteString(buttonStyle.Render(btnText))
	}

	return s.String()
}

func (m controlModel) renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle lipgloss.Style) string {
	st := m.stats
	st.CalculateRates()
	var validPercent, errorPercent float64
	if st.TotalFrames > 0 {
		validPercent = float64(st.ValidFrames) * 100.0 / float64(st.TotalFrames)
		totalErrors := st.ChecksumErrors + st.DecodeErrors + st.MalformedFrames
		errorPercent = float64(totalErrors) * 100.0 / float64(st.TotalFrames)
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", st.TotalFrames)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%.1f%%", validPercent)),
		statsLabelStyle.Render("Errors:"), func() string {
			if errorPercent > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f%%", errorPercent))
			}
			return statsValueStyle.Render("0.0%")
		}(),
		statsLabelStyle.Render("Sent:"), statsValueStyle.Render(fmt.Sprintf("%d", st.FramesSent)),
		statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", st.FrameRate)),
	)

	return boxStyle.Width(m.width - 4).Render(content)
}

func (m controlModel) renderEventLog(statsLabelStyle, warningStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("EVENTS"))
	s.WriteString("\n")

	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyleLocal := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	logHeight := 8
	if len(m.errorLog) < logHeight {
		logHeight = len(m.errorLog)
	}
	startIdx := len(m.errorLog) - logHeight

	if len(m.errorLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.errorLog); i++ {
			entry := m.errorLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			icon := "i"
			style := warningStyle
			if entry.isError {
				icon = "x"
				style = errorStyleLocal
			}
			s.WriteString(fmt.Sprintf("%s %s %s\n",
				headerStyle.Render(timestamp),
				style.Render(icon),
				entry.message))
		}
	}

	return boxStyle.Width(m.width - 4).Render(s.String())
}

//////////////////////////////////////////////////////////////
// State Helpers
//////////////////////////////////////////////////////////////

func (m *controlModel) addLogEntry(message string, isError bool) {
	m.errorLog = appendLogEntry(m.errorLog, time.Now(), message, isError, m.maxLogEntries)
}

func (m *controlModel) selectedProperty() *property.Property {
	item, ok := m.propertyList.SelectedItem().(propertyItem)
	if !ok {
		return nil
	}
	return item.p
}

// updatePropertyList refreshes list rows with the current values
func (m *controlModel) updatePropertyList() {
	props := m.connMgr.b.Registry().All()
	items := make([]list.Item, len(props))
	for i, p := range props {
		items[i] = propertyItem{p: p}
	}
	m.propertyList.SetItems(items)
}

func (m *controlModel) updateListSize() {
	h := m.height / 2
	if h < 6 {
		h = 6
	}
	m.propertyList.SetSize(28, h)
}
