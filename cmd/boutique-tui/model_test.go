package main

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"finitefield.org/saro-web/internal/boutique"
)

func scenarioProducts() []boutique.Product {
	return []boutique.Product{
		{ID: "1", Name: "Robe", Price: 10, Currency: "EUR", Category: "Vêtements", Images: []string{"a"}},
		{ID: "2", Name: "Ourson", Price: 12.5, Currency: "EUR", Category: "Jouets", Images: []string{"b"}},
		{ID: "3", Name: "Pull", Price: 30, Currency: "EUR", Category: "Vêtements", Images: []string{"c"}},
	}
}

func newTestModel(t *testing.T) (*model, *boutique.ManualClock) {
	t.Helper()
	clock := boutique.NewManualClock()
	products := scenarioProducts()
	m := newModel(products, boutique.Categories(products), boutique.ViewOptions{Clock: clock})
	t.Cleanup(m.close)
	return m, clock
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModelShowsPlaceholdersUntilReady(t *testing.T) {
	m, clock := newTestModel(t)
	require.NotNil(t, m.Init())

	out := m.View()
	require.Contains(t, out, "Notre Boutique")
	require.Contains(t, out, "quitter")
	require.Equal(t, boutique.ModeLoading, m.grid.Mode)
	require.NotContains(t, out, "Ourson")

	clock.Advance(boutique.LoadDelay)
	select {
	case <-m.changes:
	default:
		t.Fatal("ready transition was not signalled")
	}
	m.Update(gridChangedMsg{})
	require.Equal(t, boutique.ModePopulated, m.grid.Mode)
	out = m.View()
	require.Contains(t, out, "Ourson")
	require.Contains(t, out, "12.50 €")
	require.Contains(t, out, "/boutique/2")
}

func TestModelSelectsCategoryWithKeys(t *testing.T) {
	m, clock := newTestModel(t)
	m.Init()
	clock.Advance(boutique.LoadDelay)
	m.Update(gridChangedMsg{})

	// Tous -> Vêtements -> Jouets
	m.Update(keyPress("right"))
	m.Update(keyPress("right"))
	m.Update(keyPress("enter"))
	require.Equal(t, "Jouets", m.grid.Selection)
	require.Len(t, m.grid.Products, 1)

	out := m.View()
	require.Contains(t, out, "Ourson")
	require.NotContains(t, out, "Pull")
}

func TestModelEmptyCategory(t *testing.T) {
	m, clock := newTestModel(t)
	m.Init()
	clock.Advance(boutique.LoadDelay)
	m.grid = m.view.Select("Chaussures")
	require.Equal(t, boutique.ModeEmpty, m.grid.Mode)
	require.True(t, strings.Contains(m.View(), emptyText))
}

func TestModelQuitStopsPendingLoad(t *testing.T) {
	m, clock := newTestModel(t)
	m.Init()
	require.Equal(t, 1, clock.Pending())

	_, cmd := m.Update(keyPress("q"))
	require.NotNil(t, cmd)
	require.True(t, m.view.Closed())
	require.Zero(t, clock.Pending())
	require.Equal(t, boutique.StageStopped, m.view.StageState())
}

func TestRootCommandFlags(t *testing.T) {
	cmd := newRootCmd()
	require.NotNil(t, cmd.Flags().Lookup("data"))
	require.NotNil(t, cmd.Flags().Lookup("delay"))
	require.NotNil(t, cmd.Flags().Lookup("categorie"))
}

func TestModelQuitReleasesChangeWaiter(t *testing.T) {
	m, _ := newTestModel(t)
	wait := m.Init()
	require.NotNil(t, wait)

	done := make(chan tea.Msg, 1)
	go func() { done <- wait() }()

	_, cmd := m.Update(keyPress("q"))
	require.NotNil(t, cmd)
	select {
	case msg := <-done:
		require.Nil(t, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("change waiter still blocked after quit")
	}
	m.close()
}
