// Package admintui is the terminal archive browser, `forgedbackup
// admin browse`: one row per server (hostname, archive count, total
// size, last backup age, last status), laid out with the same
// bubbletea/lipgloss/stickers stack the teacher's chat client
// uses for its own screens, repointed at the journal instead of chat
// state.
package admintui

import (
	"fmt"
	"sort"

	"github.com/76creates/stickers/flexbox"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/forgedbackup/forgedbackup/pkg/archive"
	"github.com/forgedbackup/forgedbackup/pkg/journal"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	rowStyle    = lipgloss.NewStyle()
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type serverRow struct {
	hostname   string
	archives   int
	totalSize  int64
	lastBackup string
	lastStatus string
}

type model struct {
	backupDir string
	journal   *journal.DB
	rows      []serverRow
	cursor    int
	width     int
	height    int
	err       error
}

// Run starts the bubbletea program backing `admin browse`.
func Run(backupDir string, jrnl *journal.DB) error {
	m := model{backupDir: backupDir, journal: jrnl}
	rows, err := loadRows(backupDir, jrnl)
	if err != nil {
		return err
	}
	m.rows = rows

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func loadRows(backupDir string, jrnl *journal.DB) ([]serverRow, error) {
	hosts, err := archive.ListServers(backupDir)
	if err != nil {
		return nil, err
	}

	rows := make([]serverRow, 0, len(hosts))
	for _, hostname := range hosts {
		entries, err := archive.List(backupDir, hostname)
		if err != nil {
			continue
		}
		var total int64
		for _, e := range entries {
			total += e.Size
		}

		lastBackup, lastStatus := "never", "-"
		if jrnl != nil {
			sessions, err := jrnl.ListByHostname(hostname)
			if err == nil && len(sessions) > 0 {
				lastBackup = humanize.Time(sessions[0].StartedAt)
				lastStatus = string(sessions[0].Status)
			}
		}

		rows = append(rows, serverRow{
			hostname:   hostname,
			archives:   len(entries),
			totalSize:  total,
			lastBackup: lastBackup,
			lastStatus: lastStatus,
		})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].hostname < rows[j].hostname })
	return rows, nil
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.rows)-1 {
				m.cursor++
			}
		}
	}
	return m, nil
}

func (m model) View() string {
	if m.err != nil {
		return errStyle.Render(fmt.Sprintf("error: %v\n", m.err))
	}
	if len(m.rows) == 0 {
		return "no archives found\n(press q to quit)\n"
	}

	width := m.width
	if width <= 0 {
		width = 100
	}

	layout := flexbox.NewHorizontal(width, 1)
	layout.AddColumns([]*flexbox.Column{
		layout.NewColumn().AddCells(flexbox.NewCell(2, 1).SetContent(headerStyle.Render("HOSTNAME"))),
		layout.NewColumn().AddCells(flexbox.NewCell(1, 1).SetContent(headerStyle.Render("ARCHIVES"))),
		layout.NewColumn().AddCells(flexbox.NewCell(1, 1).SetContent(headerStyle.Render("SIZE"))),
		layout.NewColumn().AddCells(flexbox.NewCell(1, 1).SetContent(headerStyle.Render("LAST BACKUP"))),
		layout.NewColumn().AddCells(flexbox.NewCell(1, 1).SetContent(headerStyle.Render("STATUS"))),
	})

	out := layout.Render() + "\n"

	for i, row := range m.rows {
		style := rowStyle
		prefix := "  "
		if i == m.cursor {
			prefix = "> "
			style = style.Bold(true)
		}
		rowLayout := flexbox.NewHorizontal(width, 1)
		rowLayout.AddColumns([]*flexbox.Column{
			rowLayout.NewColumn().AddCells(flexbox.NewCell(2, 1).SetContent(style.Render(prefix + row.hostname))),
			rowLayout.NewColumn().AddCells(flexbox.NewCell(1, 1).SetContent(style.Render(fmt.Sprintf("%d", row.archives)))),
			rowLayout.NewColumn().AddCells(flexbox.NewCell(1, 1).SetContent(style.Render(humanize.Bytes(uint64(row.totalSize))))),
			rowLayout.NewColumn().AddCells(flexbox.NewCell(1, 1).SetContent(style.Render(row.lastBackup))),
			rowLayout.NewColumn().AddCells(flexbox.NewCell(1, 1).SetContent(style.Render(row.lastStatus))),
		})
		out += rowLayout.Render() + "\n"
	}

	out += "\n(up/down to move, q to quit)\n"
	return out
}
