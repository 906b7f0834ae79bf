// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/tuyastat/pkg/bridge"
	"github.com/Thermoquad/tuyastat/pkg/property"
)

// Error log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for notices
}

// TUI model
type model struct {
	connInfo      string
	modelName     string
	statsInterval int
	showAll       bool
	startTime     time.Time
	stats         *bridge.Statistics
	properties    []*property.Property
	errorLog      []errorLogEntry
	maxLogEntries int
	synchronized  bool
	skipped       int
	connErr       error
	width         int
	height        int
	quitting      bool
}

// Messages
type tickMsg time.Time
type bridgeDataMsg struct {
	events  []detectionEvent
	synced  bool
	skipped int
	stats   *bridge.Statistics
}
type connectionLostMsg struct {
	err error
}

// formatUptime formats a duration in milliseconds to human-friendly string
func formatUptime(ms uint64) string {
	if ms == 0 {
		return "0 seconds"
	}

	seconds := ms / 1000
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	plural := func(n uint64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}

	parts := []string{}
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, plural(seconds, "second"))
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

func initialModel(connInfo, modelName string, statsInterval int, showAll bool, properties []*property.Property) model {
	return model{
		connInfo:      connInfo,
		modelName:     modelName,
		statsInterval: statsInterval,
		showAll:       showAll,
		startTime:     time.Now(),
		stats:         bridge.NewStatistics(),
		properties:    properties,
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.stats.CalculateRates()
		return m, tickCmd()

	case bridgeDataMsg:
		m.stats = msg.stats
		m.skipped = msg.skipped
		if msg.synced {
			m.synchronized = true
		}
		for _, e := range msg.events {
			m.addLogEntry(e.timestamp, e.message, e.isError)
		}

	case connectionLostMsg:
		m.connErr = msg.err
		m.addLogEntry(time.Now(), fmt.Sprintf("Connection lost: %v", msg.err), true)
	}

	return m, nil
}

func (m *model) addLogEntry(ts time.Time, message string, isError bool) {
	m.errorLog = appendLogEntry(m.errorLog, ts, message, isError, m.maxLogEntries)
}

// appendLogEntry appends an entry, keeping only the last limit entries
func appendLogEntry(entries []errorLogEntry, ts time.Time, message string, isError bool, limit int) []errorLogEntry {
	entries = append(entries, errorLogEntry{
		timestamp: ts,
		message:   message,
		isError:   isError,
	})
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

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

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("TUYASTAT - ERROR DETECTION"))
	s.WriteString("\n")
	mode := "Errors only"
	if m.showAll {
		mode = "All frames"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Model: %s | Mode: %s | Press 'q' to quit",
		m.connInfo, m.modelName, mode)))
	s.WriteString("\n")
	uptime := uint64(time.Since(m.startTime).Milliseconds())
	s.WriteString(headerStyle.Render("Monitoring for " + formatUptime(uptime)))
	s.WriteString("\n\n")

	// Sync status
	switch {
	case m.connErr != nil:
		s.WriteString(errorStyle.Render("✗ Connection lost"))
	case !m.synchronized:
		s.WriteString(warningStyle.Render("⏳ Waiting for synchronization..."))
	default:
		s.WriteString(statsValueStyle.Render("✓ Synchronized"))
		if m.skipped > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (rejected %d frames before sync)", m.skipped)))
		}
	}
	s.WriteString("\n\n")

	// Statistics
	st := m.stats
	st.CalculateRates()
	totalErrors := st.ChecksumErrors + st.DecodeErrors + st.MalformedFrames
	var validPercent, errorPercent float64
	if st.TotalFrames > 0 {
		validPercent = float64(st.ValidFrames) * 100.0 / float64(st.TotalFrames)
		errorPercent = float64(totalErrors) * 100.0 / float64(st.TotalFrames)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", st.TotalFrames)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", st.ValidFrames, validPercent)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", totalErrors, errorPercent)),
	))

	if st.ChecksumErrors > 0 || st.DecodeErrors > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			statsLabelStyle.Render("Checksum Errors:"), errorStyle.Render(fmt.Sprintf("%d", st.ChecksumErrors)),
			statsLabelStyle.Render("Oversized:"), errorStyle.Render(fmt.Sprintf("%d", st.DecodeErrors)),
		))
	}

	if st.MalformedFrames > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s (%s: %d, %s: %d, %s: %d, %s: %d)\n",
			statsLabelStyle.Render("Malformed:"), errorStyle.Render(fmt.Sprintf("%d", st.MalformedFrames)),
			headerStyle.Render("length"), st.LengthMismatches,
			headerStyle.Render("value width"), st.ValueWidthErrors,
			headerStyle.Render("unknown types"), st.UnknownTypes,
			headerStyle.Render("version"), st.VersionErrors,
		))
	}

	if st.DataPoints > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s (%s: %d, %s: %d, %s: %s)\n",
			statsLabelStyle.Render("Data Points:"), statsValueStyle.Render(fmt.Sprintf("%d", st.DataPoints)),
			headerStyle.Render("mapped"), st.Mapped,
			headerStyle.Render("ignored"), st.Ignored,
			headerStyle.Render("unrecognized"), func() string {
				if st.Unrecognized > 0 {
					return warningStyle.Render(fmt.Sprintf("%d", st.Unrecognized))
				}
				return "0"
			}(),
		))
	}

	if len(st.UnknownDPIDs) > 0 {
		ids := make([]string, 0, len(st.UnknownDPIDs))
		for dpid := 0; dpid < 256; dpid++ {
			if n, ok := st.UnknownDPIDs[uint8(dpid)]; ok {
				ids = append(ids, fmt.Sprintf("0x%02X×%d", dpid, n))
			}
		}
		statsContent.WriteString(fmt.Sprintf("%s %s\n",
			statsLabelStyle.Render("Unknown DPIDs:"), warningStyle.Render(strings.Join(ids, " "))))
	}

	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Frame Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", st.FrameRate)),
		statsLabelStyle.Render("Error Rate:"), func() string {
			if st.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate))
			}
			return statsValueStyle.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate))
		}(),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Properties decoded so far
	if len(m.properties) > 0 {
		s.WriteString(statsLabelStyle.Render("Properties:"))
		s.WriteString("\n")

		propContent := strings.Builder{}
		for i, p := range m.properties {
			if i > 0 {
				propContent.WriteString("\n")
			}
			propContent.WriteString(fmt.Sprintf("%s %s",
				statsLabelStyle.Render(fmt.Sprintf("%-18s", p.ID()+":")),
				statsValueStyle.Render(p.Format()),
			))
		}

		s.WriteString(boxStyle.Render(propContent.String()))
		s.WriteString("\n\n")
	}

	// Error log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 20 - len(m.properties)
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.errorLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.errorLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.errorLog); i++ {
			entry := m.errorLog[i]
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
