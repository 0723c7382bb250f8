package nav

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildMarksActiveSection(t *testing.T) {
	items := Build("/boutique/42")
	require.Len(t, items, len(Main))
	require.False(t, items[0].Active)
	require.True(t, items[1].Active)

	items = Build("")
	require.True(t, items[0].Active)
	require.False(t, items[1].Active)

	require.False(t, Build("/boutiques")[1].Active)
}

func TestBreadcrumbs(t *testing.T) {
	require.Equal(t, []Crumb{{Href: "/", LabelKey: "nav.home", Active: true}}, Breadcrumbs("/"))

	crumbs := Breadcrumbs("/boutique/robe-lin")
	require.Len(t, crumbs, 3)
	require.Equal(t, "nav.boutique", crumbs[1].LabelKey)
	require.False(t, crumbs[1].Active)
	require.Equal(t, "/boutique/robe-lin", crumbs[2].Href)
	require.Equal(t, "Robe lin", crumbs[2].Label)
	require.True(t, crumbs[2].Active)
}

func TestLinks(t *testing.T) {
	require.Equal(t, "/boutique/42", ProductHref("42"))
	require.Equal(t, "/boutique/a%2Fb", ProductHref("a/b"))
	require.Equal(t, "/boutique", BoutiqueHref("Tous", "Tous"))
	require.Equal(t, "/boutique", BoutiqueHref(" ", "Tous"))
	require.Equal(t, "/boutique?categorie=V%C3%AAtements", BoutiqueHref("Vêtements", "Tous"))
}
