// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/serialdash/pkg/session"
	"github.com/Thermoquad/serialdash/pkg/transport"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	maxEventEntries = 100
	eventLogHeight  = 5
	minFeedHeight   = 5
)

// Focus states
const (
	focusDeviceList = iota
	focusCommandInput
)

// Connect dialog fields
const (
	dialogBaudRate = iota
	dialogTimeout
)

// Choices offered by the connect dialog
var (
	dialogBaudRates = []int{9600, 115200}
	dialogTimeouts  = []int{1, 2, 5, 10, 60}
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// dashboardEngine is the part of the engine the TUI drives
type dashboardEngine interface {
	Discover() bool
	Read(device string, baudRate, timeoutSeconds int) bool
	SendCommand(text string) bool
	Select(device string) bool
	OpenConnectDialog() bool
	CloseConnectDialog() bool
	ClearLog() bool
	Pause() bool
	Resume() bool
}

// deviceItem is one row of the device list
type deviceItem struct {
	name     string
	selected bool
}

// Implement list.Item interface
func (d deviceItem) Title() string { return d.name }
func (d deviceItem) Description() string {
	if d.selected {
		return "selected"
	}
	return ""
}
func (d deviceItem) FilterValue() string { return d.name }

type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// dashboardModel is the Bubble Tea model for the dashboard
type dashboardModel struct {
	eng      dashboardEngine
	connInfo string

	// Latest published session state
	snap session.Snapshot

	deviceList   list.Model
	cmdInput     textinput.Model
	focusedField int

	// Connect dialog selection
	dialogField int
	baudIdx     int
	timeoutIdx  int

	events []eventLogEntry
	now    func() time.Time

	width    int
	height   int
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type snapshotMsg session.Snapshot

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialDashboardModel(eng dashboardEngine, connInfo string, baudRate, timeoutSeconds int) dashboardModel {
	ti := textinput.New()
	ti.Placeholder = "command"
	ti.CharLimit = 256
	ti.Width = 40

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	deviceList := list.New([]list.Item{}, delegate, 30, 10)
	deviceList.Title = "Devices"
	deviceList.SetShowStatusBar(false)
	deviceList.SetShowHelp(false)
	deviceList.SetFilteringEnabled(false)

	return dashboardModel{
		eng:          eng,
		connInfo:     connInfo,
		snap:         session.Snapshot{KnownDevices: []string{}},
		deviceList:   deviceList,
		cmdInput:     ti,
		focusedField: focusDeviceList,
		baudIdx:      choiceIndex(dialogBaudRates, baudRate, len(dialogBaudRates)-1),
		timeoutIdx:   choiceIndex(dialogTimeouts, timeoutSeconds, 0),
		events:       make([]eventLogEntry, 0),
		now:          time.Now,
		width:        80,
		height:       24,
	}
}

func choiceIndex(choices []int, v, fallback int) int {
	if i := slices.Index(choices, v); i >= 0 {
		return i
	}
	return fallback
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m dashboardModel) Init() tea.Cmd {
	return nil
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		cmd := m.handleKeyMsg(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case snapshotMsg:
		m.applySnapshot(session.Snapshot(msg))
	}

	return m, nil
}

func (m *dashboardModel) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return tea.Quit
	}

	if m.snap.ConnectDialogOpen {
		m.handleDialogKey(msg)
		return nil
	}

	if m.focusedField == focusCommandInput {
		switch msg.String() {
		case "tab", "shift+tab", "esc":
			m.setFocus(focusDeviceList)
			return nil
		case "enter":
			m.sendCommand()
			return nil
		}
		var cmd tea.Cmd
		m.cmdInput, cmd = m.cmdInput.Update(msg)
		return cmd
	}

	switch msg.String() {
	case "q":
		m.quitting = true
		return tea.Quit

	case "tab", "shift+tab":
		m.setFocus(focusCommandInput)
		return textinput.Blink

	case "r":
		if m.eng.Discover() {
			m.addEvent("Discovery requested", false)
		} else {
			m.addEvent("Cannot refresh: not connected", true)
		}

	case "p":
		if m.snap.Paused {
			m.eng.Resume()
		} else {
			m.eng.Pause()
		}

	case "c":
		m.eng.ClearLog()

	case "enter":
		m.openDialog()

	case "up", "k", "down", "j":
		m.deviceList, _ = m.deviceList.Update(msg)
		if item, ok := m.deviceList.SelectedItem().(deviceItem); ok {
			m.eng.Select(item.name)
		}
	}

	return nil
}

func (m *dashboardModel) handleDialogKey(msg tea.KeyMsg) {
	switch msg.String() {
	case "esc", "q":
		m.eng.CloseConnectDialog()

	case "up", "down", "k", "j", "tab", "shift+tab":
		m.dialogField = 1 - m.dialogField

	case "left", "h":
		m.moveChoice(-1)

	case "right", "l":
		m.moveChoice(1)

	case "enter":
		device := m.snap.SelectedDevice
		baud := dialogBaudRates[m.baudIdx]
		timeout := dialogTimeouts[m.timeoutIdx]
		if m.eng.Read(device, baud, timeout) {
			m.addEvent(fmt.Sprintf("Opened %s at %d baud, %ds timeout", device, baud, timeout), false)
		} else {
			m.addEvent(fmt.Sprintf("Cannot open %s: not connected", device), true)
		}
		m.eng.CloseConnectDialog()
	}
}

func (m *dashboardModel) moveChoice(delta int) {
	wrap := func(i, n int) int { return (i + delta + n) % n }
	if m.dialogField == dialogBaudRate {
		m.baudIdx = wrap(m.baudIdx, len(dialogBaudRates))
	} else {
		m.timeoutIdx = wrap(m.timeoutIdx, len(dialogTimeouts))
	}
}

func (m *dashboardModel) setFocus(field int) {
	m.focusedField = field
	if field == focusCommandInput {
		m.cmdInput.Focus()
	} else {
		m.cmdInput.Blur()
	}
}

//////////////////////////////////////////////////////////////
// Commands
//////////////////////////////////////////////////////////////

// openDialog selects the highlighted device and opens its connect dialog
func (m *dashboardModel) openDialog() {
	item, ok := m.deviceList.SelectedItem().(deviceItem)
	if !ok {
		return
	}
	m.eng.Select(item.name)
	if !m.eng.OpenConnectDialog() {
		m.addEvent(fmt.Sprintf("Cannot configure %s: device not available", item.name), true)
	}
}

func (m *dashboardModel) sendCommand() {
	text := m.cmdInput.Value()
	if text == "" {
		return
	}
	if !m.snap.CanSend() {
		m.addEvent("Cannot send command: no connected device selected", true)
		return
	}
	if !m.eng.SendCommand(text) {
		m.addEvent("Failed to send command", true)
		return
	}
	m.cmdInput.Reset()
}

//////////////////////////////////////////////////////////////
// Snapshot Processing
//////////////////////////////////////////////////////////////

func (m *dashboardModel) applySnapshot(snap session.Snapshot) {
	prev := m.snap
	m.snap = snap

	if prev.ReadyState != snap.ReadyState {
		m.addEvent(fmt.Sprintf("Connection %s", strings.ToLower(snap.ReadyState.String())),
			snap.ReadyState == transport.Closed && !snap.Paused)
	}
	if prev.Paused != snap.Paused {
		if snap.Paused {
			m.addEvent("Paused - reconnection suspended", false)
		} else {
			m.addEvent("Resumed", false)
		}
	}
	if snap.LastError != nil && (prev.LastError == nil || *prev.LastError != *snap.LastError) {
		m.addEvent(formatAgentError(snap.LastError), true)
	}
	if snap.Ready() && !slices.Equal(prev.KnownDevices, snap.KnownDevices) {
		m.addEvent(fmt.Sprintf("Discovered %d device(s)", len(snap.KnownDevices)), false)
	}

	m.updateDeviceList()
}

func formatAgentError(e *session.LastError) string {
	if e.Device == "" {
		return fmt.Sprintf("Agent error: %s", e.Error)
	}
	return fmt.Sprintf("Agent error (%s): %s", e.Device, e.Error)
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

type dashboardStyles struct {
	title, header, label, value, err, warning, box, focusedBox, dialog lipgloss.Style
}

func newDashboardStyles() dashboardStyles {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	return dashboardStyles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1),
		header:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		label:      lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
		value:      lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		err:        lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		warning:    lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		box:        box,
		focusedBox: box.BorderForeground(lipgloss.Color("12")),
		dialog:     box.BorderForeground(lipgloss.Color("11")),
	}
}

func (m dashboardModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	st := newDashboardStyles()
	var s strings.Builder

	// Header
	helpText := "q=quit Tab=switch r=refresh p=pause c=clear"
	s.WriteString(st.title.Render("SERIALDASH"))
	s.WriteString(" ")
	s.WriteString(st.header.Render(fmt.Sprintf("| %s | %s", m.connInfo, helpText)))
	s.WriteString("\n")
	s.WriteString(m.renderStatus(st))
	s.WriteString("\n\n")

	// Device list | command panel or dialog
	leftWidth := 30
	rightWidth := max(m.width-leftWidth-6, 20)

	listStyle := st.box.Width(leftWidth)
	if m.focusedField == focusDeviceList && !m.snap.ConnectDialogOpen {
		listStyle = st.focusedBox.Width(leftWidth)
	}
	devicePanel := listStyle.Render(m.deviceList.View())

	var rightPanel string
	if m.snap.ConnectDialogOpen {
		rightPanel = st.dialog.Width(rightWidth).Render(m.renderConnectDialog(st))
	} else {
		panelStyle := st.box.Width(rightWidth)
		if m.focusedField == focusCommandInput {
			panelStyle = st.focusedBox.Width(rightWidth)
		}
		rightPanel = panelStyle.Render(m.renderCommandPanel(st))
	}

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, devicePanel, " ", rightPanel))
	s.WriteString("\n")

	s.WriteString(m.renderStatisticsBar(st))
	s.WriteString("\n")
	s.WriteString(m.renderFeed(st))
	s.WriteString("\n")
	s.WriteString(m.renderEventLog(st))

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m dashboardModel) renderStatus(st dashboardStyles) string {
	var badge string
	switch m.snap.ReadyState {
	case transport.Open:
		badge = st.value.Render("CONNECTED")
	case transport.Connecting:
		badge = st.warning.Render("CONNECTING...")
	case transport.Closing, transport.Closed:
		badge = st.err.Render("DISCONNECTED")
	default:
		badge = st.header.Render("NOT STARTED")
	}

	parts := []string{" " + badge}
	if m.snap.Paused {
		parts = append(parts, st.warning.Render("PAUSED"))
	}
	if m.snap.LastError != nil {
		parts = append(parts, st.err.Render(formatAgentError(m.snap.LastError)))
	}
	if m.snap.Ready() && len(m.snap.KnownDevices) == 0 {
		parts = append(parts, st.warning.Render("No accessible serial connections!"))
	}
	return strings.Join(parts, "  ")
}

func (m dashboardModel) renderCommandPanel(st dashboardStyles) string {
	var s strings.Builder

	device := m.snap.SelectedDevice
	if device == "" {
		s.WriteString(st.header.Render("No device selected"))
		return s.String()
	}

	availability := st.value.Render("available")
	if !m.snap.Has(device) {
		availability = st.warning.Render("not available")
	}
	s.WriteString(fmt.Sprintf("%s %s (%s)\n\n", st.label.Render("Selected:"), device, availability))

	s.WriteString(st.label.Render("Command: "))
	s.WriteString(m.cmdInput.View())
	s.WriteString("\n\n")
	if m.snap.CanSend() {
		s.WriteString(st.header.Render("Enter sends to the selected device"))
	} else {
		s.WriteString(st.header.Render("Commands are disabled until the device is connected"))
	}
	return s.String()
}

func (m dashboardModel) renderConnectDialog(st dashboardStyles) string {
	var s strings.Builder
	s.WriteString(fmt.Sprintf("%s %s\n\n", st.label.Render("Connect"), m.snap.SelectedDevice))

	row := func(field int, label string, choices []int, idx int, unit string) {
		marker := "  "
		if m.dialogField == field {
			marker = st.warning.Render("> ")
		}
		s.WriteString(marker + st.label.Render(label))
		for i, c := range choices {
			text := fmt.Sprintf(" %d%s ", c, unit)
			if i == idx {
				text = st.value.Render("[" + strings.TrimSpace(text) + "]")
			}
			s.WriteString(text)
		}
		s.WriteString("\n")
	}
	row(dialogBaudRate, "Baud rate: ", dialogBaudRates, m.baudIdx, "")
	row(dialogTimeout, "Timeout:   ", dialogTimeouts, m.timeoutIdx, "s")

	s.WriteString("\n")
	s.WriteString(st.header.Render("Left/Right change, Enter connects, Esc cancels"))
	return s.String()
}

func (m dashboardModel) renderStatisticsBar(st dashboardStyles) string {
	stats := m.snap.Stats
	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s",
		st.label.Render("Frames:"), st.value.Render(fmt.Sprintf("%d", stats.TotalFrames)),
		st.label.Render("Lines:"), st.value.Render(fmt.Sprintf("%d", stats.SerialFrames-stats.Duplicates)),
		st.label.Render("Dups:"), st.value.Render(fmt.Sprintf("%d", stats.Duplicates)),
		st.label.Render("Reconnects:"), st.value.Render(fmt.Sprintf("%d", max(int(stats.Connects)-1, 0))),
		st.label.Render("Rate:"), st.value.Render(fmt.Sprintf("%.1f fr/s", stats.FrameRate)),
	)
	return st.box.Width(max(m.width-4, 20)).Render(content)
}

func (m dashboardModel) renderFeed(st dashboardStyles) string {
	var s strings.Builder
	s.WriteString(st.label.Render("MESSAGES"))
	s.WriteString("\n")

	height := max(m.height-24, minFeedHeight)
	entries := m.snap.Log
	if len(entries) == 0 {
		s.WriteString(st.header.Render("  (no messages yet)"))
		return st.box.Width(max(m.width-4, 20)).Render(s.String())
	}

	start := max(len(entries)-height, 0)
	for _, e := range entries[start:] {
		timestamp := e.Timestamp
		if t, err := e.Time(); err == nil {
			timestamp = t.Local().Format("15:04:05.000")
		}
		arrow := st.value.Render("<")
		if e.Origin == session.Local {
			arrow = st.warning.Render(">")
		}
		s.WriteString(fmt.Sprintf("%s %s %s %s\n",
			st.header.Render(timestamp), arrow, st.label.Render(e.Device), strings.TrimRight(e.Text, "\r\n")))
	}
	return st.box.Width(max(m.width-4, 20)).Render(strings.TrimRight(s.String(), "\n"))
}

func (m dashboardModel) renderEventLog(st dashboardStyles) string {
	var s strings.Builder
	s.WriteString(st.label.Render("EVENTS"))
	s.WriteString("\n")

	if len(m.events) == 0 {
		s.WriteString(st.header.Render("  (no events yet)"))
		return st.box.Width(max(m.width-4, 20)).Render(s.String())
	}

	start := max(len(m.events)-eventLogHeight, 0)
	for _, entry := range m.events[start:] {
		icon := st.warning.Render("i")
		if entry.isError {
			icon = st.err.Render("x")
		}
		s.WriteString(fmt.Sprintf("%s %s %s\n",
			st.header.Render(entry.timestamp.Format("15:04:05.000")), icon, entry.message))
	}
	return st.box.Width(max(m.width-4, 20)).Render(strings.TrimRight(s.String(), "\n"))
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *dashboardModel) addEvent(message string, isError bool) {
	m.events = append(m.events, eventLogEntry{
		timestamp: m.now(),
		message:   message,
		isError:   isError,
	})
	if len(m.events) > maxEventEntries {
		m.events = m.events[len(m.events)-maxEventEntries:]
	}
}

func (m *dashboardModel) updateDeviceList() {
	items := make([]list.Item, len(m.snap.KnownDevices))
	cursor := -1
	for i, name := range m.snap.KnownDevices {
		selected := name == m.snap.SelectedDevice
		items[i] = deviceItem{name: name, selected: selected}
		if selected {
			cursor = i
		}
	}
	m.deviceList.SetItems(items)
	if cursor >= 0 {
		m.deviceList.Select(cursor)
	}
}

func (m *dashboardModel) updateListSize() {
	listHeight := max(m.height/3, 5)
	m.deviceList.SetSize(28, listHeight)
}
