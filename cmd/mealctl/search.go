package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"mealgraph/internal/app"
	"mealgraph/internal/nutrition"
	"mealgraph/internal/query"
)

var (
	searchReq  query.Request
	searchDesc bool
)

var searchCmd = &cobra.Command{
	Use:   "search <ingredients|recipes|meals>",
	Short: "Search the catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := nutrition.ParseKind(args[0])
		if err != nil {
			return err
		}
		req := searchReq
		if searchDesc {
			req.SortDirection = query.DirectionDesc
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			var candidates []query.Entity
			switch kind {
			case nutrition.KindIngredient:
				xs, lerr := a.Store.ListIngredients(ctx)
				candidates, err = query.Entities(xs), lerr
			case nutrition.KindRecipe:
				xs, lerr := a.Store.ListRecipes(ctx)
				candidates, err = query.Entities(xs), lerr
			case nutrition.KindMeal:
				xs, lerr := a.Store.ListMeals(ctx)
				candidates, err = query.Entities(xs), lerr
			default:
				return fmt.Errorf("%s is not searchable", kind)
			}
			if err != nil {
				return err
			}

			results, err := a.Engine.Search(ctx, req, candidates)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "ID\tNAME\tKCAL\tP\tF\tVERIFIED\tALLERGENS")
			for _, e := range results {
				s := e.Summary()
				fmt.Fprintf(out, "%d\t%s\t%.0f\t%.1f\t%.1f\t%t\t%s\n", e.Ref().ID, s.Name, s.Macros.Calories, s.Macros.Protein, s.Macros.Fat, s.Verified, s.Allergens)
			}
			return nil
		})
	},
}

func init() {
	f := searchCmd.Flags()
	f.StringVarP(&searchReq.Text, "query", "q", "", "Text to match in names, descriptions and ingredient names")
	f.StringSliceVar(&searchReq.Preferences, "preference", nil, "Required dietary preferences")
	f.StringSliceVar(&searchReq.ExcludeAllergens, "exclude-allergen", nil, "Allergens to exclude")
	f.StringSliceVar(&searchReq.Health, "health", nil, "Required health conditions")
	f.StringSliceVar(&searchReq.MealTypes, "meal-type", nil, "Meal types, at least one must match (meals only)")
	f.BoolVar(&searchReq.VerifiedOnly, "verified-only", false, "Only verified entities")
	f.StringVar(&searchReq.SortBy, "sort", query.SortID, "Sort key: id, recent, likes, calories or protein")
	f.BoolVar(&searchDesc, "desc", false, "Sort descending")
	f.IntVar(&searchReq.Limit, "limit", query.DefaultLimit, "Maximum results")
	rootCmd.AddCommand(searchCmd)
}
