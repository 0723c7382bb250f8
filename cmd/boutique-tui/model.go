package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"finitefield.org/saro-web/internal/boutique"
	"finitefield.org/saro-web/internal/format"
	"finitefield.org/saro-web/internal/nav"
)

const (
	cardsPerRow = 4
	cardWidth   = 24

	heroTitle    = "Notre Boutique"
	heroSubtitle = "Explorez nos collections, conçues pour toute la famille."
	emptyText    = "Aucun produit trouvé dans cette catégorie."
	detailsText  = "Voir les détails"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C76B4A"))
	subtitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8A8A8A"))
	filterStyle   = lipgloss.NewStyle().Padding(0, 2).Border(lipgloss.RoundedBorder())
	activeStyle   = filterStyle.Reverse(true).Bold(true)
	focusStyle    = filterStyle.BorderForeground(lipgloss.Color("#C76B4A"))
	cardStyle     = lipgloss.NewStyle().Width(cardWidth).Padding(0, 1).Border(lipgloss.NormalBorder())
	placeholder   = cardStyle.Foreground(lipgloss.Color("#555555"))
	priceStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#C76B4A")).Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#8A8A8A"))
)

// gridChangedMsg tells the model the view moved on its own (timer expiry).
type gridChangedMsg struct{}

// model is the bubbletea rendition of the catalog view.
type model struct {
	view    *boutique.View
	changes chan struct{}
	cursor  int
	grid    boutique.Grid
	keys    keyMap
	help    help.Model

	closeOnce sync.Once
}

// newModel builds the view with OnChange bridged into the bubbletea loop.
func newModel(products []boutique.Product, categories []string, opts boutique.ViewOptions) *model {
	m := &model{changes: make(chan struct{}, 1), keys: defaultKeyMap(), help: help.New()}
	opts.Categories = categories
	opts.OnChange = func(boutique.Grid) {
		select {
		case m.changes <- struct{}{}:
		default:
		}
	}
	m.view = boutique.NewView(products, opts)
	m.grid = m.view.Grid()
	for i, c := range m.grid.Categories {
		if c == m.grid.Selection {
			m.cursor = i
		}
	}
	return m
}

func (m *model) waitForChange() tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-m.changes; !ok {
			return nil
		}
		return gridChangedMsg{}
	}
}

func (m *model) Init() tea.Cmd {
	m.view.Mount()
	return m.waitForChange()
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case gridChangedMsg:
		m.grid = m.view.Grid()
		return m, m.waitForChange()
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.close()
			return m, tea.Quit
		case key.Matches(msg, m.keys.Left):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, m.keys.Right):
			if m.cursor < len(m.grid.Categories)-1 {
				m.cursor++
			}
		case key.Matches(msg, m.keys.Select):
			if m.cursor < len(m.grid.Categories) {
				m.grid = m.view.Select(m.grid.Categories[m.cursor])
			}
		}
	}
	return m, nil
}

// close stops a pending load and releases a pending waitForChange. OnChange
// cannot fire once Unmount has returned, so closing changes is safe.
func (m *model) close() {
	m.closeOnce.Do(func() {
		m.view.Unmount()
		close(m.changes)
	})
}

func (m *model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(heroTitle))
	b.WriteString("\n")
	b.WriteString(subtitleStyle.Render(heroSubtitle))
	b.WriteString("\n\n")
	b.WriteString(m.filters())
	b.WriteString("\n\n")
	b.WriteString(m.cards())
	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n")
	return b.String()
}

func (m *model) filters() string {
	buttons := make([]string, 0, len(m.grid.Categories))
	for i, c := range m.grid.Categories {
		style := filterStyle
		switch {
		case c == m.grid.Selection:
			style = activeStyle
		case i == m.cursor:
			style = focusStyle
		}
		buttons = append(buttons, style.Render(c))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, buttons...)
}

func (m *model) cards() string {
	var cells []string
	switch m.grid.Mode {
	case boutique.ModeEmpty:
		return mutedStyle.Render(emptyText)
	case boutique.ModeLoading:
		for i := 0; i < m.grid.Placeholders; i++ {
			cells = append(cells, placeholder.Render(strings.Repeat("░", cardWidth-2)+"\n"+strings.Repeat("░", cardWidth/2)))
		}
	default:
		for _, p := range m.grid.Products {
			body := fmt.Sprintf("%s\n%s\n%s",
				p.Name,
				priceStyle.Render(format.FmtPrice(p.Price, p.Currency, "fr")),
				mutedStyle.Render(detailsText+" "+nav.ProductHref(p.ID)),
			)
			cells = append(cells, cardStyle.Render(body))
		}
	}
	rows := make([]string, 0, len(cells)/cardsPerRow+1)
	for start := 0; start < len(cells); start += cardsPerRow {
		end := min(start+cardsPerRow, len(cells))
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells[start:end]...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}
