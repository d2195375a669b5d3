package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sat/sattrack/internal/elements"
	"github.com/sat/sattrack/internal/propagation"
	"github.com/sat/sattrack/internal/transform"
)

// tickMsg triggers a position recompute.
type tickMsg time.Time

// satellite pairs an element set with its initialized record and the
// most recently computed state.
type satellite struct {
	entry elements.OrbitalElements
	rec   *propagation.SatelliteRecord

	state propagation.StateVector
	ecef  transform.StateECEF
	geo   transform.Geodetic
	look  *transform.LookAngles
	err   error
}

var (
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#9D4EDD")).Bold(true)
	headerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EC4899")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("60"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#E84A27"))
	panelStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("60")).
			Padding(0, 1)
)

// Model is the root Bubble Tea model: a scrollable satellite list on the
// left and a live detail panel for the selected satellite on the right.
type Model struct {
	sats     []satellite
	source   string
	observer *transform.Observer
	refresh  time.Duration
	skipped  int

	selected int
	offset   int
	width    int
	height   int
	ready    bool
	now      time.Time
}

func newModel(sats []satellite, source string, observer *transform.Observer, refresh time.Duration, skipped int) Model {
	sort.Slice(sats, func(i, j int) bool {
		if sats[i].entry.Name != sats[j].entry.Name {
			return sats[i].entry.Name < sats[j].entry.Name
		}
		return sats[i].entry.NORADID < sats[j].entry.NORADID
	})

	m := Model{
		sats:     sats,
		source:   source,
		observer: observer,
		refresh:  refresh,
		skipped:  skipped,
		now:      time.Now().UTC(),
	}
	m.recompute()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.tickCmd()
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			m.move(-1)
		case "down", "j":
			m.move(1)
		case "pgup":
			m.move(-m.listRows())
		case "pgdown":
			m.move(m.listRows())
		case "g", "home":
			m.selected = 0
			m.offset = 0
		case "G", "end":
			m.move(len(m.sats))
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.clampScroll()

	case tickMsg:
		m.now = time.Time(msg).UTC()
		m.recompute()
		return m, m.tickCmd()
	}

	return m, nil
}

func (m *Model) move(delta int) {
	m.selected += delta
	if m.selected < 0 {
		m.selected = 0
	}
	if m.selected >= len(m.sats) {
		m.selected = len(m.sats) - 1
	}
	m.clampScroll()
}

func (m *Model) clampScroll() {
	rows := m.listRows()
	if m.selected < m.offset {
		m.offset = m.selected
	}
	if m.selected >= m.offset+rows {
		m.offset = m.selected - rows + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

// listRows is how many catalog rows fit between header and footer.
func (m Model) listRows() int {
	rows := m.height - 9
	if rows < 1 {
		rows = 1
	}
	return rows
}

// recompute propagates every satellite to the current tick time. GMST
// is evaluated once since all states share the same instant.
func (m *Model) recompute() {
	gmst := transform.GMST(m.now)
	for i := range m.sats {
		s := &m.sats[i]
		state, err := s.rec.PropagateAt(m.now)
		if err != nil {
			s.err = err
			s.look = nil
			continue
		}
		s.err = nil
		s.state = state
		s.ecef = transform.TEMEToECEFWithGMST(transform.StateTEME{
			X: state.Position.X, Y: state.Position.Y, Z: state.Position.Z,
			VX: state.Velocity.X, VY: state.Velocity.Y, VZ: state.Velocity.Z,
		}, gmst)
		s.geo = transform.ECEFToGeodetic(s.ecef.X, s.ecef.Y, s.ecef.Z)
		if m.observer != nil {
			la := m.observer.LookAnglesTo(s.ecef)
			s.look = &la
		} else {
			s.look = nil
		}
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	header := m.renderHeader()
	list := m.renderList()
	detail := m.renderDetail()
	body := lipgloss.JoinHorizontal(lipgloss.Top, list, detail)
	footer := m.renderFooter()

	return header + "\n" + body + "\n" + footer
}

func (m Model) renderHeader() string {
	title := titleStyle.Render("  satwatch")
	info := dimStyle.Render(fmt.Sprintf("  %s | %d satellites | %s",
		m.source, len(m.sats), m.now.Format("2006-01-02 15:04:05 UTC")))
	line := title + "\n" + info
	if m.skipped > 0 {
		line += dimStyle.Render(fmt.Sprintf(" | %d rejected", m.skipped))
	}
	return line + "\n"
}

func (m Model) renderList() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-24s %6s %8s %9s %8s", "NAME", "ID", "LAT", "LON", "ALT KM")))
	b.WriteString("\n")

	rows := m.listRows()
	end := m.offset + rows
	if end > len(m.sats) {
		end = len(m.sats)
	}

	for i := m.offset; i < end; i++ {
		s := m.sats[i]
		name := s.entry.Name
		if name == "" {
			name = fmt.Sprintf("NORAD %d", s.entry.NORADID)
		}
		if len(name) > 24 {
			name = name[:24]
		}

		var row string
		if s.err != nil {
			row = fmt.Sprintf("%-24s %6d %s", name, s.entry.NORADID, errorStyle.Render("decayed"))
		} else {
			row = fmt.Sprintf("%-24s %6d %8.3f %9.3f %8.1f",
				name, s.entry.NORADID, s.geo.LatDeg, s.geo.LonDeg, s.geo.AltKm)
		}

		if i == m.selected {
			b.WriteString(selectedStyle.Render("▶ " + row))
		} else {
			b.WriteString("  " + row)
		}
		b.WriteString("\n")
	}

	return panelStyle.Render(b.String())
}

func (m Model) renderDetail() string {
	s := m.sats[m.selected]
	var b strings.Builder

	name := s.entry.Name
	if name == "" {
		name = fmt.Sprintf("NORAD %d", s.entry.NORADID)
	}
	b.WriteString(selectedStyle.Render(name))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("NORAD %d | %s | intl %s",
		s.entry.NORADID, s.rec.Regime(), strings.TrimSpace(s.entry.IntlDesignator))))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Orbit"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  period    %8.2f min\n", s.rec.PeriodMinutes()))
	b.WriteString(fmt.Sprintf("  perigee   %8.1f km\n", s.rec.PerigeeKm()))
	b.WriteString(fmt.Sprintf("  apogee    %8.1f km\n", s.rec.ApogeeKm()))
	b.WriteString(fmt.Sprintf("  incl      %8.3f deg\n", s.entry.Inclination))
	b.WriteString(fmt.Sprintf("  ecc       %10.7f\n", s.entry.Eccentricity))
	b.WriteString(fmt.Sprintf("  epoch     %s\n", s.rec.Epoch().Format("2006-01-02 15:04:05")))
	b.WriteString("\n")

	if s.err != nil {
		b.WriteString(errorStyle.Render("propagation failed: " + s.err.Error()))
		b.WriteString("\n")
		return panelStyle.Render(b.String())
	}

	b.WriteString(headerStyle.Render("State"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  lat       %9.4f deg\n", s.geo.LatDeg))
	b.WriteString(fmt.Sprintf("  lon       %9.4f deg\n", s.geo.LonDeg))
	b.WriteString(fmt.Sprintf("  alt       %9.2f km\n", s.geo.AltKm))
	b.WriteString(fmt.Sprintf("  teme pos  %9.2f %9.2f %9.2f km\n",
		s.state.Position.X, s.state.Position.Y, s.state.Position.Z))
	b.WriteString(fmt.Sprintf("  teme vel  %9.5f %9.5f %9.5f km/s\n",
		s.state.Velocity.X, s.state.Velocity.Y, s.state.Velocity.Z))
	b.WriteString(fmt.Sprintf("  tsince    %9.1f min\n", s.state.Tsince))

	if s.look != nil {
		b.WriteString("\n")
		b.WriteString(headerStyle.Render("Observer"))
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("  azimuth   %9.2f deg\n", s.look.AzimuthDeg))
		b.WriteString(fmt.Sprintf("  elevation %9.2f deg\n", s.look.ElevationDeg))
		b.WriteString(fmt.Sprintf("  range     %9.1f km\n", s.look.RangeKm))
		b.WriteString(fmt.Sprintf("  rate      %9.4f km/s\n", s.look.RangeRateKms))
		if s.look.ElevationDeg > 0 {
			b.WriteString(selectedStyle.Render("  above horizon"))
			b.WriteString("\n")
		}
	}

	return panelStyle.Render(b.String())
}

func (m Model) renderFooter() string {
	return dimStyle.Render("  ↑↓/jk: navigate | pgup/pgdn | g/G: first/last | q: quit")
}
