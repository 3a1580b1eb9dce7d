// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/serialdash/pkg/session"
	"github.com/Thermoquad/serialdash/pkg/transport"
)

// ============================================================
// Test Helpers
// ============================================================

type readCall struct {
	device  string
	baud    int
	timeout int
}

// fakeEngine records intents and answers with canned results
type fakeEngine struct {
	ready bool

	discovers int
	reads     []readCall
	commands  []string
	selected  []string
	dialogs   int
	closes    int
	clears    int
	pauses    int
	resumes   int
}

func (f *fakeEngine) Discover() bool { f.discovers++; return f.ready }
func (f *fakeEngine) Read(device string, baud, timeout int) bool {
	f.reads = append(f.reads, readCall{device, baud, timeout})
	return f.ready
}
func (f *fakeEngine) SendCommand(text string) bool {
	f.commands = append(f.commands, text)
	return f.ready
}
func (f *fakeEngine) Select(device string) bool {
	f.selected = append(f.selected, device)
	return true
}
func (f *fakeEngine) OpenConnectDialog() bool  { f.dialogs++; return f.ready }
func (f *fakeEngine) CloseConnectDialog() bool { f.closes++; return true }
func (f *fakeEngine) ClearLog() bool           { f.clears++; return true }
func (f *fakeEngine) Pause() bool              { f.pauses++; return true }
func (f *fakeEngine) Resume() bool             { f.resumes++; return true }

func newTestModel(eng dashboardEngine) dashboardModel {
	m := initialDashboardModel(eng, "WebSocket: ws://test/ws", 115200, 1)
	m.now = func() time.Time { return time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC) }
	return m
}

func update(t *testing.T, m dashboardModel, msg tea.Msg) dashboardModel {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(dashboardModel)
	require.True(t, ok)
	return out
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func openSnapshot(devices ...string) snapshotMsg {
	snap := session.Snapshot{ReadyState: transport.Open, KnownDevices: devices}
	if len(devices) > 0 {
		snap.SelectedDevice = devices[0]
	}
	return snapshotMsg(snap)
}

func lastEvent(m dashboardModel) eventLogEntry {
	return m.events[len(m.events)-1]
}

// ============================================================
// Snapshot Tests
// ============================================================

func TestDashboard_SnapshotPopulatesDeviceList(t *testing.T) {
	m := newTestModel(&fakeEngine{ready: true})
	m = update(t, m, openSnapshot("COM1", "COM2"))

	items := m.deviceList.Items()
	require.Len(t, items, 2)
	assert.Equal(t, deviceItem{name: "COM1", selected: true}, items[0])
	assert.Equal(t, deviceItem{name: "COM2"}, items[1])
	assert.Equal(t, "Discovered 2 device(s)", lastEvent(m).message)
}

func TestDashboard_SnapshotEvents(t *testing.T) {
	m := newTestModel(&fakeEngine{})

	m = update(t, m, snapshotMsg(session.Snapshot{ReadyState: transport.Connecting}))
	assert.Equal(t, "Connection connecting", lastEvent(m).message)

	m = update(t, m, openSnapshot())
	m = update(t, m, snapshotMsg(session.Snapshot{
		ReadyState: transport.Open,
		LastError:  &session.LastError{Device: "COM1", Error: "port busy"},
	}))
	assert.Equal(t, eventLogEntry{
		timestamp: m.now(),
		message:   "Agent error (COM1): port busy",
		isError:   true,
	}, lastEvent(m))

	count := len(m.events)
	m = update(t, m, snapshotMsg(session.Snapshot{
		ReadyState: transport.Open,
		LastError:  &session.LastError{Device: "COM1", Error: "port busy"},
	}))
	assert.Len(t, m.events, count, "an unchanged error is reported once")

	m = update(t, m, snapshotMsg(session.Snapshot{ReadyState: transport.Closed}))
	assert.True(t, lastEvent(m).isError)
}

func TestDashboard_EventLogIsBounded(t *testing.T) {
	m := newTestModel(&fakeEngine{})
	for i := 0; i < maxEventEntries+20; i++ {
		m.addEvent("event", false)
	}
	assert.Len(t, m.events, maxEventEntries)
}

// ============================================================
// Key Handling Tests
// ============================================================

func TestDashboard_EnterOpensDialogForHighlightedDevice(t *testing.T) {
	eng := &fakeEngine{ready: true}
	m := newTestModel(eng)
	m = update(t, m, openSnapshot("COM1", "COM2"))

	m = update(t, m, key("down"))
	m = update(t, m, key("enter"))

	assert.Equal(t, []string{"COM2", "COM2"}, eng.selected)
	assert.Equal(t, 1, eng.dialogs)
}

func TestDashboard_DialogSendsRead(t *testing.T) {
	eng := &fakeEngine{ready: true}
	m := newTestModel(eng)
	snap := openSnapshot("COM1")
	snap.ConnectDialogOpen = true
	m = update(t, m, snap)

	// Baud 115200 -> 9600 (wraps), then timeout 1 -> 2
	m = update(t, m, key("right"))
	m = update(t, m, key("down"))
	m = update(t, m, key("right"))
	m = update(t, m, key("enter"))

	assert.Equal(t, []readCall{{"COM1", 9600, 2}}, eng.reads)
	assert.Equal(t, 1, eng.closes)
	assert.Equal(t, "Opened COM1 at 9600 baud, 2s timeout", lastEvent(m).message)
}

func TestDashboard_DialogEscCloses(t *testing.T) {
	eng := &fakeEngine{ready: true}
	m := newTestModel(eng)
	snap := openSnapshot("COM1")
	snap.ConnectDialogOpen = true
	m = update(t, m, snap)

	m = update(t, m, key("esc"))
	assert.Equal(t, 1, eng.closes)
	assert.Empty(t, eng.reads)
}

func TestDashboard_CommandInput(t *testing.T) {
	eng := &fakeEngine{ready: true}
	m := newTestModel(eng)
	m = update(t, m, openSnapshot("COM1"))

	m = update(t, m, key("tab"))
	require.Equal(t, focusCommandInput, m.focusedField)

	// Typing q must not quit while the input has focus
	m = update(t, m, key("q"))
	assert.False(t, m.quitting)
	m = update(t, m, key("AT"))
	assert.Equal(t, "qAT", m.cmdInput.Value())

	m = update(t, m, key("enter"))
	assert.Equal(t, []string{"qAT"}, eng.commands)
	assert.Empty(t, m.cmdInput.Value())
}

func TestDashboard_CommandRefusedWhenNotReady(t *testing.T) {
	eng := &fakeEngine{}
	m := newTestModel(eng)
	m = update(t, m, snapshotMsg(session.Snapshot{ReadyState: transport.Closed, SelectedDevice: "COM1"}))

	m = update(t, m, key("tab"))
	m = update(t, m, key("AT"))
	m = update(t, m, key("enter"))

	assert.Empty(t, eng.commands)
	assert.True(t, lastEvent(m).isError)
	assert.Equal(t, "AT", m.cmdInput.Value())
}

func TestDashboard_ShortcutKeys(t *testing.T) {
	eng := &fakeEngine{}
	m := newTestModel(eng)

	m = update(t, m, key("r"))
	assert.Equal(t, 1, eng.discovers)
	assert.Equal(t, "Cannot refresh: not connected", lastEvent(m).message)

	m = update(t, m, key("c"))
	assert.Equal(t, 1, eng.clears)

	m = update(t, m, key("p"))
	assert.Equal(t, 1, eng.pauses)
	m = update(t, m, snapshotMsg(session.Snapshot{Paused: true}))
	m = update(t, m, key("p"))
	assert.Equal(t, 1, eng.resumes)

	next, cmd := m.Update(key("q"))
	assert.True(t, next.(dashboardModel).quitting)
	assert.NotNil(t, cmd)
}

// ============================================================
// View Tests
// ============================================================

func TestDashboard_ViewShowsNoDevicesNotice(t *testing.T) {
	m := newTestModel(&fakeEngine{})
	m = update(t, m, openSnapshot())
	assert.Contains(t, m.View(), "No accessible serial connections!")

	m = update(t, m, openSnapshot("COM1"))
	assert.NotContains(t, m.View(), "No accessible serial connections!")
}

func TestDashboard_ViewShowsFeed(t *testing.T) {
	m := newTestModel(&fakeEngine{})
	snap := openSnapshot("COM1")
	snap.Log = []session.Entry{
		{Device: "COM1", Timestamp: "t1", Text: "boot ok", Origin: session.Remote},
		{Device: "COM1", Timestamp: "2025-01-01T12:00:00Z", Text: "AT", Origin: session.Local},
	}
	m = update(t, m, snapshotMsg(snap))

	view := m.View()
	assert.Contains(t, view, "boot ok")
	assert.Contains(t, view, "AT")
	assert.Contains(t, view, "CONNECTED")
}

// ============================================================
// Read Command Tests
// ============================================================

func TestDeviceReader_PrintsOnlyNewLinesOfDevice(t *testing.T) {
	var out, errOut bytes.Buffer
	r := &deviceReader{device: "COM1", out: &out, errOut: &errOut}

	snap := session.Snapshot{ReadyState: transport.Open, KnownDevices: []string{"COM1"}}
	assert.True(t, r.shouldOpen(snap))
	r.opened = true
	assert.False(t, r.shouldOpen(snap))

	snap.Log = []session.Entry{
		{Device: "COM1", Text: "one", Origin: session.Remote},
		{Device: "COM2", Text: "other", Origin: session.Remote},
	}
	snap.Stats.SerialFrames = 2
	r.print(snap)

	snap.Log = append(snap.Log,
		session.Entry{Device: "COM1", Text: "AT", Origin: session.Local},
		session.Entry{Device: "COM1", Text: "two", Origin: session.Remote},
	)
	snap.Stats.SerialFrames = 4
	snap.Stats.Duplicates = 1
	snap.LastError = &session.LastError{Device: "COM1", Error: "port busy"}
	r.print(snap)
	r.print(snap)

	assert.Equal(t, "one\ntwo\n", out.String())
	assert.Equal(t, 1, strings.Count(errOut.String(), "port busy"))

	// Losing the connection means reopening after the next discovery
	assert.False(t, r.shouldOpen(session.Snapshot{ReadyState: transport.Closed}))
	assert.True(t, r.shouldOpen(snap))
}

func TestDeviceReader_SendsCommandOnce(t *testing.T) {
	eng := &fakeEngine{ready: true}
	r := &deviceReader{device: "COM1", send: "AT+GMR"}
	open := session.Snapshot{ReadyState: transport.Open, KnownDevices: []string{"COM1"}}

	require.True(t, r.shouldOpen(open))
	require.True(t, r.open(eng, 115200, 1))

	// Reconnect: the device is opened again but the command is not repeated
	assert.False(t, r.shouldOpen(session.Snapshot{ReadyState: transport.Closed}))
	require.True(t, r.shouldOpen(open))
	require.True(t, r.open(eng, 115200, 1))

	assert.Equal(t, []readCall{{"COM1", 115200, 1}, {"COM1", 115200, 1}}, eng.reads)
	assert.Equal(t, []string{"AT+GMR"}, eng.commands)
	assert.Equal(t, []string{"COM1"}, eng.selected)
}

func TestDeviceReader_RetriesSendAfterRefusal(t *testing.T) {
	eng := &fakeEngine{ready: true}
	r := &deviceReader{device: "COM1", send: "AT"}

	// Read succeeds but the engine refuses the command
	refusing := &refusingEngine{fakeEngine: eng}
	require.True(t, r.open(refusing, 9600, 1))
	assert.False(t, r.sent)

	require.True(t, r.open(eng, 9600, 1))
	assert.True(t, r.sent)
	assert.Equal(t, []string{"AT", "AT"}, eng.commands)
}

// refusingEngine accepts reads but refuses commands
type refusingEngine struct {
	*fakeEngine
}

func (r *refusingEngine) SendCommand(text string) bool {
	r.fakeEngine.SendCommand(text)
	return false
}
