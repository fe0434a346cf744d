package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var subCmd = &cobra.Command{
	Use:     "sub",
	Aliases: []string{"subscription"},
	Short:   "Manage subscription sources",
	Long:    "Import and refresh node subscriptions (one hy2 link per line)",
}

var subListCmd = &cobra.Command{
	Use:   "list",
	Short: "List subscription sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		subs := appInstance.Registry.Subscriptions()
		if len(subs) == 0 {
			fmt.Println("No subscriptions. Import one with: hytun sub import <url>")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tURL\tNODES\tLAST IMPORT")
		fmt.Fprintln(w, "----\t---\t-----\t-----------")
		for _, s := range subs {
			last := "-"
			if s.LastImport != nil {
				last = s.LastImport.Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.Name, s.URL, s.NodeCount, last)
		}
		w.Flush()
		return nil
	},
}

var subImportCmd = &cobra.Command{
	Use:   "import <url>",
	Short: "Import nodes from a subscription URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")

		result, err := appInstance.Subs.Import(context.Background(), args[0], name)
		if err != nil {
			return err
		}

		fmt.Println(okStyle.Render("Subscription imported"))
		fmt.Printf("  Added:   %d\n", result.Added)
		fmt.Printf("  Skipped: %d (already present)\n", result.Skipped)
		if result.Failed > 0 {
			fmt.Println(warnStyle.Render(fmt.Sprintf("  Failed:  %d", result.Failed)))
			for _, e := range result.Errors {
				fmt.Printf("    - %v\n", e)
			}
		}
		return nil
	},
}

var subRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Re-import every subscription source",
	RunE: func(cmd *cobra.Command, args []string) error {
		results := appInstance.Subs.RefreshAll(context.Background())
		if len(results) == 0 {
			fmt.Println("No subscriptions to refresh.")
			return nil
		}

		for _, r := range results {
			if len(r.Errors) > 0 && r.TotalLinks == 0 {
				fmt.Printf("%s %s: %v\n", errStyle.Render("✗"), r.Name, r.Errors[0])
				continue
			}
			fmt.Printf("%s %s: added=%d skipped=%d failed=%d\n",
				okStyle.Render("✓"), r.Name, r.Added, r.Skipped, r.Failed)
		}
		return nil
	},
}

func init() {
	subImportCmd.Flags().StringP("name", "n", "", "display name for the source")

	subCmd.AddCommand(subListCmd)
	subCmd.AddCommand(subImportCmd)
	subCmd.AddCommand(subRefreshCmd)
}
