// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package statusview

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"

	"github.com/infractura/ssh-desktop/lib/history"
	"github.com/infractura/ssh-desktop/lib/metrics"
	"github.com/infractura/ssh-desktop/lib/session"
)

// Options control rendering.
type Options struct {
	// Color enables ANSI colors. Leave false for pipes and files.
	Color bool

	// Width is the terminal width. Zero means unlimited. When set, the
	// user column of the session table shrinks to fit.
	Width int
}

// Cell width limits. Wider values are truncated with an ellipsis.
const (
	maxIDWidth   = 8
	maxUserWidth = 16
	maxKindWidth = 9
	minUserWidth = 4
	ellipsis     = "…"
)

var sessionHeaders = []string{"ID", "USER", "KIND", "DISPLAY", "PORT", "STATE", "IDLE", "STARTED"}

// RenderStatus writes the status view for report to writer.
func RenderStatus(writer io.Writer, report Report, options Options) error {
	_, err := io.WriteString(writer, statusString(writer, report, options))
	return err
}

func statusString(writer io.Writer, report Report, options Options) string {
	s := newStyles(writer, options.Color)
	now := report.FetchedAt
	if now.IsZero() {
		now = time.Now()
	}

	var builder strings.Builder
	builder.WriteString(s.box.Render(daemonSummary(s, report)))
	builder.WriteString("\n\n")

	builder.WriteString(s.title.Render(fmt.Sprintf("Sessions (%d live)", report.LiveSessions())))
	builder.WriteString("\n")
	if len(report.Sessions) == 0 {
		builder.WriteString(s.faint.Render("no sessions"))
		builder.WriteString("\n")
	} else {
		builder.WriteString(sessionTable(s, report.Sessions, now, options.Width))
	}
	builder.WriteString("\n")

	builder.WriteString(s.title.Render("Metrics"))
	builder.WriteString("\n")
	builder.WriteString(metricsLine(s, report.Metrics))
	builder.WriteString("\n")
	return builder.String()
}

func daemonSummary(s styles, report Report) string {
	daemon := report.Daemon
	lines := []string{
		s.title.Render("ssh-desktop") + " " + s.faint.Render(daemon.Version) +
			"  " + s.label.Render("up") + " " + report.Metrics.Uptime(),
		s.label.Render("displays") + fmt.Sprintf(" :%d-:%d, %d/%d held", daemon.DisplayMin, daemon.DisplayMax,
			daemon.DisplaysHeld, int(daemon.DisplayMax)-int(daemon.DisplayMin)+1) +
			"  " + s.label.Render("ports") + fmt.Sprintf(" %d+display", daemon.BasePort),
		s.label.Render("idle timeout") + " " + idleTimeout(daemon.IdleTimeout, daemon.IdleHardTimeout) +
			"  " + s.label.Render("per-user limit") + " " + perUserLimit(daemon.MaxSessionsPerUser),
		s.label.Render("window manager") + " " + daemon.WindowManager,
	}
	if daemon.HistoryDir != "" {
		lines = append(lines, s.label.Render("history")+" "+daemon.HistoryDir)
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func idleTimeout(soft, hard time.Duration) string {
	if soft <= 0 {
		return "disabled"
	}
	return fmt.Sprintf("%s (hard %s)", metrics.FormatDuration(soft), metrics.FormatDuration(hard))
}

func perUserLimit(limit int) string {
	if limit <= 0 {
		return "unlimited"
	}
	return strconv.Itoa(limit)
}

func sessionTable(s styles, sessions []session.Status, now time.Time, width int) string {
	rows := make([][]string, 0, len(sessions))
	for _, status := range sessions {
		rows = append(rows, sessionRow(status, now))
	}

	limits := []int{maxIDWidth, maxUserWidth, maxKindWidth, 0, 0, 0, 0, 0}
	widths := columnWidths(sessionHeaders, rows, limits)
	if width > 0 {
		shrinkColumn(widths, 1, width, minUserWidth)
	}

	var builder strings.Builder
	writeRow(&builder, sessionHeaders, widths, func(int, string) lipgloss.Style { return s.header })
	for index, row := range rows {
		status := sessions[index]
		writeRow(&builder, row, widths, func(column int, _ string) lipgloss.Style {
			if column == 5 {
				return s.state(status)
			}
			return s.plain
		})
	}
	return builder.String()
}

func sessionRow(status session.Status, now time.Time) []string {
	displayCell, portCell := "-", "-"
	if status.Display != nil {
		displayCell = status.Display.String()
	}
	if status.Port != nil {
		portCell = strconv.Itoa(int(*status.Port))
	}

	stateCell := string(status.State)
	if status.State == session.StateTerminated && status.Outcome != "" {
		stateCell += " (" + string(status.Outcome) + ")"
	}

	idleCell := "-"
	if status.State.Live() {
		idleCell = metrics.FormatDuration(time.Duration(status.IdleSeconds) * time.Second)
	}

	return []string{
		status.ID,
		status.User,
		string(status.Kind),
		displayCell,
		portCell,
		stateCell,
		idleCell,
		humanize.RelTime(status.StartedAt, now, "ago", "from now"),
	}
}

func metricsLine(s styles, snapshot metrics.Snapshot) string {
	fields := []struct {
		label string
		value int64
	}{
		{"total", int64(snapshot.TotalSessions)},
		{"active", snapshot.ActiveSessions},
		{"completed", int64(snapshot.CompletedSessions)},
		{"failed", int64(snapshot.FailedSessions)},
		{"idle terminations", int64(snapshot.IdleTerminations)},
	}
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, s.label.Render(field.label)+" "+humanize.Comma(field.value))
	}
	return strings.Join(parts, "  ")
}

// RenderAnalysis writes a history analysis to writer.
func RenderAnalysis(writer io.Writer, analysis history.Analysis, options Options) error {
	s := newStyles(writer, options.Color)

	var builder strings.Builder
	builder.WriteString(s.title.Render(fmt.Sprintf("Sessions %s to %s",
		analysis.Start.UTC().Format(time.RFC3339), analysis.End.UTC().Format(time.RFC3339))))
	builder.WriteString("\n")

	totals := [][2]string{
		{"sessions", humanize.Comma(int64(analysis.TotalSessions))},
		{"ended", humanize.Comma(int64(analysis.EndedSessions))},
		{"average duration", metrics.FormatDuration(analysis.AverageDuration)},
		{"max concurrent", humanize.Comma(int64(analysis.MaxConcurrent))},
		{"idle terminations", humanize.Comma(int64(analysis.IdleTerminations))},
		{"failed", humanize.Comma(int64(analysis.FailedSessions))},
	}
	for _, total := range totals {
		builder.WriteString(s.label.Render(fmt.Sprintf("%-18s", total[0])))
		builder.WriteString(total[1])
		builder.WriteString("\n")
	}

	if len(analysis.Users) > 0 {
		builder.WriteString("\n")
		builder.WriteString(s.title.Render("Users"))
		builder.WriteString("\n")
		headers := []string{"USER", "SESSIONS", "TOTAL", "AVERAGE", "IDLE", "FAILED"}
		rows := make([][]string, 0, len(analysis.Users))
		for _, user := range analysis.Users {
			rows = append(rows, []string{
				user.User,
				strconv.FormatUint(user.Sessions, 10),
				metrics.FormatDuration(user.TotalDuration),
				metrics.FormatDuration(user.AverageDuration),
				strconv.FormatUint(user.IdleTerminations, 10),
				strconv.FormatUint(user.FailedSessions, 10),
			})
		}
		widths := columnWidths(headers, rows, []int{maxUserWidth, 0, 0, 0, 0, 0})
		writeRow(&builder, headers, widths, func(int, string) lipgloss.Style { return s.header })
		for _, row := range rows {
			writeRow(&builder, row, widths, func(int, string) lipgloss.Style { return s.plain })
		}
	}

	builder.WriteString("\n")
	builder.WriteString(s.title.Render("Sessions started per hour (UTC)"))
	builder.WriteString("\n")
	builder.WriteString(hourlyHistogram(s, analysis.Hourly))

	_, err := io.WriteString(writer, builder.String())
	return err
}

const histogramWidth = 40

func hourlyHistogram(s styles, hourly [24]uint64) string {
	var peak uint64
	for _, count := range hourly {
		peak = max(peak, count)
	}

	var builder strings.Builder
	for hour, count := range hourly {
		bar := 0
		if peak > 0 {
			bar = int(count * histogramWidth / peak)
		}
		if count > 0 && bar == 0 {
			bar = 1
		}
		fmt.Fprintf(&builder, "%02d ", hour)
		builder.WriteString(s.running.Render(strings.Repeat("#", bar)))
		if count > 0 {
			builder.WriteString(" " + strconv.FormatUint(count, 10))
		}
		builder.WriteString("\n")
	}
	return builder.String()
}

// columnWidths sizes each column to its widest cell, capped by limits
// (zero means no cap).
func columnWidths(headers []string, rows [][]string, limits []int) []int {
	widths := make([]int, len(headers))
	for column, header := range headers {
		widths[column] = ansi.StringWidth(header)
	}
	for _, row := range rows {
		for column, cell := range row {
			widths[column] = max(widths[column], ansi.StringWidth(cell))
		}
	}
	for column, limit := range limits {
		if limit > 0 && widths[column] > limit {
			widths[column] = limit
		}
	}
	return widths
}

// shrinkColumn narrows one column, down to floor, until the row fits
// in total.
func shrinkColumn(widths []int, column, total, floor int) {
	used := 0
	for _, width := range widths {
		used += width
	}
	used += columnGap * (len(widths) - 1)
	if over := used - total; over > 0 {
		widths[column] = max(floor, widths[column]-over)
	}
}

const columnGap = 2

func writeRow(builder *strings.Builder, cells []string, widths []int, styleFor func(column int, cell string) lipgloss.Style) {
	for column, cell := range cells {
		if column > 0 {
			builder.WriteString(strings.Repeat(" ", columnGap))
		}
		cell = ansi.Truncate(cell, widths[column], ellipsis)
		padded := cell
		if column < len(cells)-1 {
			padded += strings.Repeat(" ", widths[column]-ansi.StringWidth(cell))
		}
		builder.WriteString(styleFor(column, cell).Render(padded))
	}
	builder.WriteString("\n")
}
