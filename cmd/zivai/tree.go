package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"zivai/internal/domain"
	"zivai/internal/tree"
)

var treeCmd = &cobra.Command{
	Use:   "tree [path]",
	Short: "Check the conversation tree for consistency",
	Long:  `Loads the conversation tree (the embedded default, or the given YAML file) and prints its structure. Invalid references, duplicate keywords and cycles fail the load.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) > 0 {
			path = args[0]
		}

		t, err := tree.Load(path)
		if err != nil {
			return err
		}

		fmt.Printf("Tree is valid: %d nodes\n\n", t.Len())
		printNode(t.Root(), "", make(map[string]bool))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(treeCmd)
}

// printNode walks the graph depth-first. Shared subtrees print once and are
// referenced by ID afterwards.
func printNode(n *domain.Node, indent string, seen map[string]bool) {
	if seen[n.ID] {
		fmt.Printf("%s-> %s (shared)\n", indent, n.ID)
		return
	}
	seen[n.ID] = true

	fmt.Printf("%s%s [%s]\n", indent, n.ID, strings.Join(n.Templates, ", "))
	for _, tr := range n.Transitions {
		fmt.Printf("%s  %q:\n", indent, tr.Keyword)
		printNode(tr.To, indent+"    ", seen)
	}
}
