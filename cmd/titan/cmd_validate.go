package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/titan-sim/titan/internal/model"
	"github.com/titan-sim/titan/internal/params"
	"github.com/titan-sim/titan/internal/runner"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate simulation parameters",
		Long: `Validate simulation parameters without running them.

This command checks:
  - Unknown parameters and enum values
  - Bin and weight distributions summing to 1
  - Class references (sex types, bond types, locations, drug types)
  - Every sweep definition applied to the parameters
  - With --build, population construction (assortative mixing rules,
    location scaling, initial feature state)

Examples:
  titan validate --setting basic
  titan validate -p params.yml --print
  titan validate -p params.yml --sweep model.num_pop:100:300:100 --build`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			setting, _ := cmd.Flags().GetString("setting")
			files, _ := cmd.Flags().GetStringSlice("params")
			sweeps, _ := cmd.Flags().GetStringArray("sweep")
			build, _ := cmd.Flags().GetBool("build")
			printParams, _ := cmd.Flags().GetBool("print")

			p, err := params.Load(setting, files...)
			if err != nil {
				return err
			}

			parsed := make([]runner.Sweep, 0, len(sweeps))
			for _, s := range sweeps {
				sw, err := runner.ParseSweep(s)
				if err != nil {
					return err
				}
				parsed = append(parsed, sw)
			}
			defs := runner.Expand(parsed)
			for _, d := range defs {
				q := p.Clone()
				if err := d.Apply(q); err != nil {
					return fmt.Errorf("sweep %s: %w", d, err)
				}
				if build {
					if _, err := model.New(q, model.Options{}); err != nil {
						return fmt.Errorf("sweep %s: %w", d, err)
					}
				}
			}

			if printParams {
				data, err := yaml.Marshal(p)
				if err != nil {
					return fmt.Errorf("encoding params: %w", err)
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"valid":       true,
					"definitions": len(defs),
					"built":       build,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Parameters are valid (%d definition(s)).\n", len(defs))
			return nil
		},
	}

	cmd.Flags().StringSliceP("params", "p", nil, "Params file(s), merged over the setting in order")
	cmd.Flags().StringP("setting", "s", "", "Embedded setting name or setting file")
	cmd.Flags().StringArray("sweep", nil, "Sweep a parameter: param:start:stop[:step] (repeatable)")
	cmd.Flags().Bool("build", false, "Also build the model for every definition")
	cmd.Flags().Bool("print", false, "Print the effective parameters as YAML")

	return cmd
}
