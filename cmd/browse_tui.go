// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/garlink/pkg/device"
	"github.com/Thermoquad/garlink/pkg/link"
	"github.com/Thermoquad/garlink/pkg/records"
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// transferChoice is one entry of the operation list
type transferChoice struct {
	title string
	desc  string
	op    operation
}

// Implement list.Item interface
func (c transferChoice) Title() string       { return c.title }
func (c transferChoice) Description() string { return c.desc }
func (c transferChoice) FilterValue() string { return c.title }

var transferChoices = []list.Item{
	transferChoice{"Waypoints", "Download all waypoints", operation{kind: records.CmdTransferWaypoints}},
	transferChoice{"Routes", "Download all routes", operation{kind: records.CmdTransferRoutes}},
	transferChoice{"Tracks", "Download the track log", operation{kind: records.CmdTransferTracks}},
	transferChoice{"Time", "Read the unit's clock", operation{time: true}},
	transferChoice{"Abort", "Cancel a transfer on the unit", operation{abort: true}},
}

type browseModel struct {
	sm       *sessionManager
	connInfo string
	stats    *link.Statistics
	counters link.Counters

	product   *records.Product
	caps      records.Capabilities
	connected bool

	// Set after a transport failure until 'r' reconnects
	connectionLost bool

	choices list.Model
	spinner spinner.Model
	busy    bool
	current string

	// Record pane
	lines    []string
	maxLines int
	received int
	expected int

	// Completed downloads, kept for saving
	lists map[records.Command]*records.TransferList

	saving    bool
	saveInput textinput.Model

	events eventLog

	width    int
	height   int
	quitting bool
}

type browseTickMsg time.Time

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialBrowseModel(sm *sessionManager, conn *connection) browseModel {
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	choices := list.New(transferChoices, delegate, 30, 12)
	choices.Title = "Transfers"
	choices.SetShowStatusBar(false)
	choices.SetShowHelp(false)
	choices.SetFilteringEnabled(false)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = warningStyle

	ti := textinput.New()
	ti.Placeholder = "garmin.cbor"
	ti.CharLimit = 256
	ti.Width = 40

	return browseModel{
		sm:        sm,
		connInfo:  conn.info,
		stats:     conn.stats,
		counters:  conn.stats.Snapshot(),
		choices:   choices,
		spinner:   sp,
		busy:      true,
		current:   "Connecting",
		lines:     make([]string, 0),
		maxLines:  1000,
		lists:     make(map[records.Command]*records.TransferList),
		saveInput: ti,
		events:    newEventLog(100),
		width:     80,
		height:    24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m browseModel) Init() tea.Cmd {
	return tea.Batch(browseTickCmd(), m.spinner.Tick)
}

func browseTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return browseTickMsg(t)
	})
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case browseTickMsg:
		m.counters = m.stats.Snapshot()
		return m, browseTickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case connectedMsg:
		m.connected = true
		m.connectionLost = false
		m.busy = false
		m.connInfo = msg.connInfo
		m.stats = msg.conn.stats
		m.counters = m.stats.Snapshot()
		product := msg.product
		m.product = &product
		m.caps = msg.caps
		m.events.add(fmt.Sprintf("Connected: %s", product), false)
		m.events.add(fmt.Sprintf("Capabilities: %s", msg.caps), false)

	case connectFailedMsg:
		m.busy = false
		m.connectionLost = true
		m.events.add(fmt.Sprintf("Connect failed: %v", msg.err), true)

	case transferBeginMsg:
		m.received = 0
		m.expected = msg.count
		m.addLine(records.FormatBegin(msg.kind, msg.count))

	case recordBatchMsg:
		for _, r := range msg {
			m.received++
			m.addLine(records.Format(r.item.Record))
		}

	case transferEndMsg:
		m.addLine(records.FormatEnd(msg.received, msg.expected))
		if msg.received != msg.expected {
			m.events.add(fmt.Sprintf("Expected %d records, received %d", msg.expected, msg.received), true)
		}

	case operationDoneMsg:
		m.finishOperation(msg)
	}

	if m.saving {
		var cmd tea.Cmd
		m.saveInput, cmd = m.saveInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m browseModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.saving {
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "esc":
			m.saving = false
			m.saveInput.Blur()
			return m, nil
		case "enter":
			m.saving = false
			m.saveInput.Blur()
			m.saveArchive(strings.TrimSpace(m.saveInput.Value()))
			return m, nil
		}
		var cmd tea.Cmd
		m.saveInput, cmd = m.saveInput.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "enter":
		return m.handleEnter()

	case "s":
		if len(m.lists) == 0 {
			m.events.add("Nothing to save yet", true)
			return m, nil
		}
		m.saving = true
		return m, m.saveInput.Focus()

	case "r":
		if m.busy {
			return m, nil
		}
		if m.sm.request(operation{connect: true, reopen: true}) {
			m.busy = true
			m.connected = false
			m.current = "Reconnecting"
			m.events.add("Reconnecting", false)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.choices, cmd = m.choices.Update(msg)
	return m, cmd
}

func (m browseModel) handleEnter() (tea.Model, tea.Cmd) {
	if m.connectionLost {
		m.events.add("Cannot start transfer: connection lost (r to reconnect)", true)
		return m, nil
	}
	if !m.connected {
		return m, nil
	}

	choice, ok := m.choices.SelectedItem().(transferChoice)
	if !ok {
		return m, nil
	}

	if m.busy {
		m.events.add("Busy, wait for the current transfer", true)
		return m, nil
	}

	if !m.sm.request(choice.op) {
		m.events.add("An operation is already queued", true)
		return m, nil
	}

	m.busy = true
	m.current = choice.title
	if !choice.op.abort && !choice.op.time {
		m.lines = m.lines[:0]
		m.expected = 0
	}
	m.events.add(fmt.Sprintf("Started: %s", choice.title), false)
	return m, nil
}

func (m *browseModel) finishOperation(msg operationDoneMsg) {
	name := operationName(msg.op)
	m.busy = false

	if msg.utc != nil {
		m.addLine(records.Format(*msg.utc))
	}
	if msg.list != nil && len(msg.list.Items) > 0 {
		m.lists[msg.list.Kind] = msg.list
	}

	if msg.err == nil {
		m.events.add(fmt.Sprintf("%s complete", name), false)
		return
	}

	m.events.add(fmt.Sprintf("%s failed: %v", name, msg.err), true)
	if errors.Is(msg.err, device.ErrTransportFailure) {
		m.connectionLost = true
		m.events.add("Connection lost, press r to reconnect", true)
	}
}

func operationName(op operation) string {
	switch {
	case op.abort:
		return "Abort"
	case op.time:
		return "Time"
	case op.connect:
		return "Connect"
	default:
		return op.kind.String()
	}
}

func (m *browseModel) saveArchive(path string) {
	if path == "" {
		return
	}

	var lists []*records.TransferList
	for _, kind := range []records.Command{records.CmdTransferWaypoints, records.CmdTransferRoutes, records.CmdTransferTracks} {
		if l, ok := m.lists[kind]; ok {
			lists = append(lists, l)
		}
	}

	if err := writeArchive(path, records.NewArchive(m.product, m.caps, lists...)); err != nil {
		m.events.add(err.Error(), true)
		return
	}
	m.events.add(fmt.Sprintf("Saved %d list(s) to %s", len(lists), path), false)
}

func (m *browseModel) addLine(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > m.maxLines {
		m.lines = m.lines[len(m.lines)-m.maxLines:]
	}
}

func (m *browseModel) updateListSize() {
	listHeight := m.height / 2
	if listHeight < 6 {
		listHeight = 6
	}
	m.choices.SetSize(28, listHeight)
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

func (m browseModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	// Header
	helpText := "q=quit enter=start s=save r=reconnect"
	s.WriteString(titleStyle.Render("GARLINK"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = warningStyle.Render("CONNECTION LOST")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | %s", connStatus, helpText)))
	s.WriteString("\n")

	if m.product != nil {
		s.WriteString(fmt.Sprintf(" %s %s", statsLabelStyle.Render("Unit:"), statsValueStyle.Render(m.product.String())))
	}
	s.WriteString("\n\n")

	left := focusedBoxStyle.Render(m.choices.View())
	right := boxStyle.Width(m.recordPaneWidth()).Render(m.renderRecords())
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	s.WriteString("\n")

	if m.saving {
		s.WriteString(boxStyle.Width(m.width - 4).Render(
			statsLabelStyle.Render("Save archive: ") + m.saveInput.View()))
		s.WriteString("\n")
	}

	s.WriteString(m.renderStatisticsBar())
	s.WriteString("\n")
	s.WriteString(m.events.render(m.width-4, 6))

	return s.String()
}

func (m browseModel) recordPaneWidth() int {
	w := m.width - 36
	if w < 20 {
		w = 20
	}
	return w
}

func (m browseModel) renderRecords() string {
	var s strings.Builder

	status := "Idle"
	if m.busy {
		status = fmt.Sprintf("%s %s", m.spinner.View(), m.current)
	}
	s.WriteString(statsLabelStyle.Render("RECORDS"))
	s.WriteString(" | ")
	s.WriteString(status)
	if m.expected > 0 {
		s.WriteString(headerStyle.Render(fmt.Sprintf("  %d/%d", m.received, m.expected)))
	}
	s.WriteString("\n")

	height := m.height/2 - 1
	if height < 4 {
		height = 4
	}
	start := len(m.lines) - height
	if start < 0 {
		start = 0
	}

	if len(m.lines) == 0 {
		s.WriteString(headerStyle.Render("  (nothing downloaded)"))
	} else {
		s.WriteString(strings.Join(m.lines[start:], "\n"))
	}
	return s.String()
}

func (m browseModel) renderStatisticsBar() string {
	c := m.counters
	total := c.FramesSent + c.FramesReceived
	var errorPercent float64
	if total > 0 {
		errorPercent = float64(c.Errors()) * 100.0 / float64(total)
	}

	errText := statsValueStyle.Render("0.0%")
	if errorPercent > 0 {
		errText = errorStyle.Render(fmt.Sprintf("%.1f%%", errorPercent))
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s  %s %s",
		statsLabelStyle.Render("Sent:"), statsValueStyle.Render(fmt.Sprintf("%d", c.FramesSent)),
		statsLabelStyle.Render("Received:"), statsValueStyle.Render(fmt.Sprintf("%d", c.FramesReceived)),
		statsLabelStyle.Render("Errors:"), errText,
		statsLabelStyle.Render("Retries:"), statsValueStyle.Render(fmt.Sprintf("%d", c.Retries)),
		statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", c.FrameRate)),
		statsLabelStyle.Render("Up:"), statsValueStyle.Render(formatUptime(time.Since(c.StartTime))),
	)

	return boxStyle.Width(m.width - 4).Render(content)
}
