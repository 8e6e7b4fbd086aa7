// Package wait renders the end-of-wait session summary for terminal
// output.
package wait

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/silicon-ci/vmanager-action/internal/domain"
)

type RenderOptions struct {
	ServerURL string
}

func renderView(sessions map[domain.SessionID]*domain.Session, result domain.AggregateResult, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Verification Sessions"),
		s.header.Render(fmt.Sprintf("sessions: %d", len(sessions))),
	}

	if len(sessions) == 0 {
		lines = append(lines, s.empty.Render("No sessions watched."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	ids := make([]string, 0, len(sessions))
	for id := range sessions {
		ids = append(ids, string(id))
	}
	slices.Sort(ids)

	for _, id := range ids {
		lines = append(lines, s.section.Render(renderSession(sessions[domain.SessionID(id)], s)))
	}

	lines = append(lines, s.section.Render(renderSummary(result, s)))

	if opts.ServerURL != "" {
		lines = append(lines, s.header.Render("server: "+opts.ServerURL))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderSession(sess *domain.Session, s styles) string {
	parts := []string{
		s.session.Render(sessionTitle(sess)),
		stateLine(sess, s),
	}

	if sess.Settlement == domain.SettlementContinue {
		parts = append(parts, runsLine(sess, s))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func sessionTitle(sess *domain.Session) string {
	name := strings.TrimSpace(sess.Status.Name)
	if name == "" {
		return fmt.Sprintf("session %s", sess.ID)
	}

	return fmt.Sprintf("%s (%s)", name, sess.ID)
}

func stateLine(sess *domain.Session, s styles) string {
	state := string(sess.Status.State)
	if state == "" {
		state = "unknown"
	}

	stateStyle := s.detail
	switch sess.Status.State {
	case domain.StateDone:
		stateStyle = s.good
	case domain.StateFailed, domain.StateInaccessible:
		stateStyle = s.warning
	}

	line := lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.detail.Render("state: "),
		stateStyle.Render(state),
	)

	if label := settlementLabel(sess.Settlement); label != "" {
		line += " " + s.header.Render("["+label+"]")
	}

	return line
}

func settlementLabel(settlement domain.Settlement) string {
	switch settlement {
	case domain.SettlementContinue:
		return "settled"
	case domain.SettlementIgnorePending:
		return "ignored, still pending"
	case domain.SettlementFailedFast:
		return "failed fast"
	default:
		return "unsettled"
	}
}

func runsLine(sess *domain.Session, s styles) string {
	tally := domain.TallyRuns(sess.Runs)
	bar := renderPassBar(tally, 24, s)
	counts := s.detail.Render(fmt.Sprintf("%d/%d passed", tally.Passed, tally.Total))

	line := lipgloss.JoinHorizontal(
		lipgloss.Top,
		bar,
		" ",
		counts,
	)

	if tally.Malformed > 0 {
		line += " " + s.warning.Render(fmt.Sprintf("[%d malformed]", tally.Malformed))
	}

	return line
}

func renderPassBar(tally domain.RunTally, width int, s styles) string {
	if width <= 0 {
		return ""
	}

	fraction := 0.0
	if tally.Total > 0 {
		fraction = float64(tally.Passed) / float64(tally.Total)
	}

	filled := int(math.Round(float64(width) * fraction))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}

	empty := width - filled
	fillSegment := s.barFill.Render(strings.Repeat("=", filled))
	emptySegment := s.barEmpty.Render(strings.Repeat("-", empty))

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		fillSegment,
		emptySegment,
		s.barBracket.Render("]"),
	)
}

func renderSummary(result domain.AggregateResult, s styles) string {
	statusStyle := s.warning
	if result.Status == domain.StatusCompleted {
		statusStyle = s.good
	}

	parts := []string{
		lipgloss.JoinHorizontal(
			lipgloss.Top,
			s.title.Render("overall: "),
			statusStyle.Render(string(result.Status)),
		),
		s.detail.Render(fmt.Sprintf("%d total, %d passed, %d failed", result.Total, result.Passed, result.Failed)),
	}

	if result.Malformed > 0 {
		parts = append(parts, s.warning.Render(fmt.Sprintf("%d malformed run record(s) skipped", result.Malformed)))
	}
	if result.UnresolvedSessions > 0 {
		parts = append(parts, s.warning.Render(fmt.Sprintf("%d session(s) left unresolved", result.UnresolvedSessions)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
