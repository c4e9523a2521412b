package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/huangsam/repohealth/core/checks"
	"github.com/huangsam/repohealth/internal/outwriter"
	"github.com/huangsam/repohealth/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// checksCmd lists the check catalogue.
var checksCmd = &cobra.Command{
	Use:   "checks",
	Short: "List the check catalogue with the weights in effect.",
	Long: `Print every check in the registry: its category, the capability it needs,
the check sets it belongs to and the weight used for scoring.

Weights come from the registry defaults and the optional weights section of
the config file:

  weights:
    checks:
      readme: 20
    categories:
      security: 30

Examples:
  # Show all checks
  repohealth checks

  # Only the checks run for documentation-only repositories
  repohealth checks --check-set docs --output json`,
	Args:    cobra.NoArgs,
	PreRunE: configSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		registry := checks.Default()
		weights, err := registry.WeightTable(cfg.CheckWeights, cfg.CategoryWeights, cfg.ErrorPolicy)
		if err != nil {
			return err
		}
		defs, err := filterDefinitions(registry.Definitions(), viper.GetString("check-set"), viper.GetString("category"))
		if err != nil {
			return err
		}
		return outwriter.NewOutWriter().WriteChecks(defs, weights, registry.Version(), cfg)
	},
}

// filterDefinitions keeps the definitions matching a check set and a category. Empty filters match everything.
func filterDefinitions(defs []schema.CheckDefinition, checkSet, category string) ([]schema.CheckDefinition, error) {
	cs := schema.CheckSet(strings.ToLower(checkSet))
	if cs != "" {
		if _, ok := schema.ValidCheckSets[cs]; !ok {
			return nil, fmt.Errorf("invalid check set %q", checkSet)
		}
	}
	cat := schema.Category(strings.ToLower(category))
	if cat != "" {
		if _, ok := schema.ValidCategories[cat]; !ok {
			return nil, fmt.Errorf("invalid category %q", category)
		}
	}
	return slices.DeleteFunc(defs, func(d schema.CheckDefinition) bool {
		if cs != "" && !slices.Contains(d.CheckSets, cs) {
			return true
		}
		return cat != "" && d.Category != cat
	}), nil
}
