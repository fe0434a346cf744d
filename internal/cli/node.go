package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"hytun/internal/storage/models"
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Manage Hysteria2 node profiles",
	Long:  "Add, list, show, select, and delete Hysteria2 node profiles",
}

var nodeAddCmd = &cobra.Command{
	Use:   "add <link>",
	Short: "Add a node from a hy2:// share link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		node, err := appInstance.Registry.Add(args[0])
		if err != nil {
			return err
		}

		if customName, _ := cmd.Flags().GetString("name"); customName != "" {
			node, err = appInstance.Registry.Update(context.Background(), node.ID, models.NodePatch{Name: &customName})
			if err != nil {
				return err
			}
		}

		fmt.Println(okStyle.Render("Node added"))
		fmt.Printf("  ID:      %s\n", node.ID)
		fmt.Printf("  Name:    %s\n", node.Name)
		fmt.Printf("  Server:  %s:%d\n", node.Server, node.Port)
		fmt.Printf("  SNI:     %s\n", node.SNI)
		if node.Obfs != "" {
			fmt.Printf("  Obfs:    %s\n", node.Obfs)
		}
		return nil
	},
}

var nodeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all nodes",
	RunE: func(cmd *cobra.Command, args []string) error {
		nodes, current := appInstance.Registry.List()
		if len(nodes) == 0 {
			fmt.Println("No nodes found. Add one with: hytun node add <link>")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, " \tID\tNAME\tSERVER\tGROUP\tSOURCE\tLAST USED")
		fmt.Fprintln(w, " \t--\t----\t------\t-----\t------\t---------")

		for _, n := range nodes {
			lastUsed := "-"
			if n.LastUsed != nil {
				lastUsed = n.LastUsed.Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s:%d\t%s\t%s\t%s\n",
				markActive(n.ID == current), n.ID, n.Name,
				n.Server, n.Port, n.Group, n.Source, lastUsed)
		}
		w.Flush()

		fmt.Printf("\nTotal: %d nodes\n", len(nodes))
		return nil
	},
}

var nodeShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show node details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		node, err := appInstance.Registry.Get(args[0])
		if err != nil {
			return err
		}

		fmt.Println(titleStyle.Render("Node Details"))
		fmt.Println()
		fmt.Printf("ID:        %s\n", node.ID)
		fmt.Printf("Name:      %s\n", node.Name)
		fmt.Printf("Server:    %s:%d\n", node.Server, node.Port)
		fmt.Printf("SNI:       %s\n", node.SNI)
		fmt.Printf("Insecure:  %v\n", node.Insecure)
		if len(node.ALPN) > 0 {
			fmt.Printf("ALPN:      %v\n", node.ALPN)
		}
		if node.Obfs != "" {
			fmt.Printf("Obfs:      %s\n", node.Obfs)
		}
		if node.BandwidthUp != "" || node.BandwidthDown != "" {
			fmt.Printf("Bandwidth: up=%s down=%s\n", node.BandwidthUp, node.BandwidthDown)
		}
		fmt.Printf("MTU:       %d\n", node.MTU)
		fmt.Printf("Group:     %s\n", node.Group)
		fmt.Printf("Source:    %s\n", node.Source)
		fmt.Printf("Created:   %s\n", node.CreatedAt.Format(time.RFC3339))
		if node.LastUsed != nil {
			fmt.Printf("Last Used: %s\n", node.LastUsed.Format(time.RFC3339))
		}
		return nil
	},
}

var nodeUseCmd = &cobra.Command{
	Use:   "use <id>",
	Short: "Select a node and restart the tunnel with it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		node, err := appInstance.Registry.Use(context.Background(), args[0])
		if err != nil {
			if node != nil {
				// The config switched but the service did not come up.
				fmt.Println(warnStyle.Render("Config updated, but the service failed to restart"))
			}
			return err
		}

		fmt.Println(okStyle.Render("Now using: " + node.Name))
		fmt.Printf("  %s:%d\n", node.Server, node.Port)
		return nil
	},
}

var nodeDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		node, err := appInstance.Registry.Get(args[0])
		if err != nil {
			return err
		}

		force, _ := cmd.Flags().GetBool("force")
		if !force {
			fmt.Printf("Delete node '%s' (%s:%d)? [y/N]: ", node.Name, node.Server, node.Port)
			var response string
			fmt.Scanln(&response)
			if response != "y" && response != "Y" {
				fmt.Println("Cancelled.")
				return nil
			}
		}

		if err := appInstance.Registry.Delete(context.Background(), node.ID); err != nil {
			return err
		}
		fmt.Println(okStyle.Render("Node deleted: " + node.Name))
		return nil
	},
}

func init() {
	nodeAddCmd.Flags().StringP("name", "n", "", "custom name")
	nodeDeleteCmd.Flags().BoolP("force", "f", false, "skip confirmation")

	nodeCmd.AddCommand(nodeAddCmd)
	nodeCmd.AddCommand(nodeListCmd)
	nodeCmd.AddCommand(nodeShowCmd)
	nodeCmd.AddCommand(nodeUseCmd)
	nodeCmd.AddCommand(nodeDeleteCmd)
}
