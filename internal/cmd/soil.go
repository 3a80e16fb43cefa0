package cmd

import (
	"github.com/spf13/cobra"

	"github.com/nauru-yvy/nauru/internal/resources"
	"github.com/nauru-yvy/nauru/internal/ux"
)

func newSoilCmd() *cobra.Command {
	soilCmd := &cobra.Command{
		Use:   "soil",
		Short: "Record and list soil analyses",
	}

	soilCmd.AddCommand(newSoilListCmd(), newSoilCreateCmd())
	return soilCmd
}

func newSoilListCmd() *cobra.Command {
	var territory string

	c := &cobra.Command{
		Use:   "list",
		Short: "List soil analyses",
		Args:  cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, a *app, _ []string) error {
			list, err := a.resources.ListSoilAnalyses(cmd.Context())
			if err != nil {
				return a.apiError("list soil analyses", err)
			}
			if territory != "" {
				filtered := list[:0]
				for _, s := range list {
					if s.Territory == territory {
						filtered = append(filtered, s)
					}
				}
				list = filtered
			}
			return a.out.Format(soilList(list))
		}),
	}

	c.Flags().StringVar(&territory, "territory", "", "only show this territory")
	return c
}

func newSoilCreateCmd() *cobra.Command {
	var (
		s        resources.SoilAnalysis
		moisture float64
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Record a soil analysis",
		Args:  cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, a *app, _ []string) error {
			var err error
			if s.Territory, err = stringInput(s.Territory, "territory", ux.Prompt{Message: "Territory", Required: true}); err != nil {
				return err
			}
			if cmd.Flags().Changed("moisture") {
				s.Moisture = &moisture
			}

			created, err := a.resources.CreateSoilAnalysis(cmd.Context(), s)
			if err != nil {
				return a.apiError("record soil analysis", err)
			}
			return a.out.Format(soilList{*created})
		}),
	}

	f := c.Flags()
	f.StringVar(&s.Territory, "territory", "", "territory name")
	f.StringVar(&s.SoilType, "soil-type", "", "soil type")
	f.Float64Var(&moisture, "moisture", 0, "moisture percentage")
	f.StringVar(&s.Texture, "texture", "", "texture")
	f.StringVar(&s.WaterRetention, "water-retention", "", "water retention")
	f.StringVar(&s.Fertility, "fertility", "", "fertility")
	f.StringVar(&s.Drainage, "drainage", "", "drainage")
	f.StringVar(&s.Notes, "notes", "", "free-form notes")
	return c
}
