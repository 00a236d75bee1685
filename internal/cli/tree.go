package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// TreeInfo is the pruned tree of one plan root in JSON output.
type TreeInfo struct {
	Plan   string `json:"plan"`
	Root   int    `json:"root"`
	Nodes  int    `json:"nodes"`
	Depth  int    `json:"depth"`
	Paths  int    `json:"paths"`
	Pruned bool   `json:"root_pruned,omitempty"`
	Dump   string `json:"dump"`
}

var treeCmd = &cobra.Command{
	Use:   "tree <plan>...",
	Short: "Print the pruned query tree of each plan root",
	Long: `Builds each plan against the topology and prints the query trees left
after filter resolution and depth pruning. Leaves are marked with *.

Examples:
  sqlgraph tree people.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}
		plans, err := loadPlans(args)
		if err != nil {
			return err
		}

		var infos []TreeInfo
		for _, p := range plans {
			trees, err := p.Build(env.topo)
			if err != nil {
				return handleError(ErrPlanInvalid, fmt.Errorf("plan %s: %w", p.Name, err), "")
			}
			for i, tr := range trees {
				infos = append(infos, TreeInfo{
					Plan:   p.Name,
					Root:   i + 1,
					Nodes:  tr.NumberOfNodes(),
					Depth:  tr.Depth(),
					Paths:  len(tr.ExtractDistinctPaths()),
					Pruned: tr.RootInvalidated(),
					Dump:   tr.String(),
				})
			}
		}

		if isJSONOutput() {
			outputSuccess(map[string]interface{}{"trees": infos}, &Meta{Count: len(infos)})
			return nil
		}
		for _, info := range infos {
			fmt.Printf("# %s root %d (%d nodes, %d paths)\n%s\n", info.Plan, info.Root, info.Nodes, info.Paths, info.Dump)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(treeCmd)
}
