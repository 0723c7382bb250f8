// Command boutique-tui browses the catalog in a terminal with the same
// loading, filtering and empty states as the web page.
package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"finitefield.org/saro-web/internal/boutique"
	"finitefield.org/saro-web/internal/catalog"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		dataFile  string
		category  string
		loadDelay time.Duration
	)
	cmd := &cobra.Command{
		Use:           "boutique-tui",
		Short:         "Browse the boutique catalog in the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, err := catalog.Load(cmd.Context(), catalog.NewStaticSource(dataFile))
			if err != nil {
				return err
			}
			m := newModel(snapshot.Products(), snapshot.Categories(), boutique.ViewOptions{
				Delay:     loadDelay,
				Selection: category,
			})
			defer m.close()
			_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			return err
		},
	}
	cmd.Flags().StringVar(&dataFile, "data", "", "catalog YAML file (defaults to the embedded catalog)")
	cmd.Flags().StringVar(&category, "categorie", boutique.Sentinel, "category selected on start")
	cmd.Flags().DurationVar(&loadDelay, "delay", boutique.LoadDelay, "simulated loading delay")
	return cmd
}
