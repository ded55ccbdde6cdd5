package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/mdokit/optdriver/internal/bench"
	"github.com/mdokit/optdriver/internal/solver"
	"github.com/spf13/cobra"
)

var solversCmd = &cobra.Command{
	Use:   "solvers",
	Short: "List available optimizer backends",
	Long:  `Display all registered optimizer backends with their capability tags.`,
	RunE:  runListSolvers,
}

var problemsCmd = &cobra.Command{
	Use:   "problems",
	Short: "List available benchmark problems",
	RunE:  runListProblems,
}

func init() {
	rootCmd.AddCommand(solversCmd)
	rootCmd.AddCommand(problemsCmd)
}

func runListSolvers(cmd *cobra.Command, args []string) error {
	infos := solver.List()
	if len(infos) == 0 {
		fmt.Println("No solvers registered.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tGRADIENTS\tCONSTRAINTS\tINTEGER\tLINEAR ONLY")
	fmt.Fprintln(w, "----\t---------\t-----------\t-------\t-----------")
	for _, info := range infos {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			info.Name,
			yesNo(info.Capabilities.Gradients),
			yesNo(info.Capabilities.Constraints),
			yesNo(info.Capabilities.Integer),
			yesNo(info.Capabilities.LinearOnly),
		)
	}
	w.Flush()
	return nil
}

func runListProblems(cmd *cobra.Command, args []string) error {
	names := bench.Names()
	if len(names) == 0 {
		fmt.Println("No problems registered.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDESCRIPTION")
	fmt.Fprintln(w, "----\t-----------")
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%s\n", name, bench.Describe(name))
	}
	w.Flush()
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
