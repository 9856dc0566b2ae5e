package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"mealgraph/internal/app"
	"mealgraph/internal/propagate"
)

var propagateJSON bool

var propagateCmd = &cobra.Command{
	Use:   "propagate",
	Short: "Recompute everything above an edited node",
}

type cascadeFunc func(p *propagate.Propagator, ctx context.Context, id int64) (*propagate.Report, error)

func propagateSubcommand(use, short string, run cascadeFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(use+" id", args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				report, err := run(a.Propagator, ctx, id)
				if err != nil {
					return err
				}
				if err := printReport(cmd.OutOrStdout(), report); err != nil {
					return err
				}
				if len(report.Failures) > 0 {
					return fmt.Errorf("cascade finished with %d failures", len(report.Failures))
				}
				return nil
			})
		},
	}
}

func printReport(w io.Writer, r *propagate.Report) error {
	if propagateJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	fmt.Fprintf(w, "Cascade %s from %s\n", r.ID, r.Trigger)
	fmt.Fprintf(w, "Recipes: %d\nMeal items: %d\nMeals: %d\nContainers: %d\nDuration: %s\n", r.Recipes, r.Items, r.Meals, r.Containers, r.Duration)
	for _, f := range r.Failures {
		fmt.Fprintf(w, "FAILED %s\n", f.Error())
	}
	return nil
}

func init() {
	propagateCmd.PersistentFlags().BoolVar(&propagateJSON, "json", false, "Print the cascade report as JSON")
	propagateCmd.AddCommand(
		propagateSubcommand("ingredient", "Cascade an ingredient edit to recipes, meals and containers", (*propagate.Propagator).OnBaseIngredientChanged),
		propagateSubcommand("recipe", "Recompute a recipe from its ingredients and cascade", (*propagate.Propagator).OnRecipeEdited),
		propagateSubcommand("item", "Refresh a meal item from its source and cascade", (*propagate.Propagator).OnMealItemEdited),
		propagateSubcommand("meal", "Refresh every item of a meal and cascade", (*propagate.Propagator).OnMealEdited),
		propagateSubcommand("container", "Recompute a day entry or meal plan", (*propagate.Propagator).OnContainerEdited),
	)
	rootCmd.AddCommand(propagateCmd)
}
