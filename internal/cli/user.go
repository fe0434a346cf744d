package cli

import (
	"fmt"
	"os"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage panel accounts",
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		accounts := appInstance.Creds.List()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "USERNAME\tROLE\tSTATUS\tLOCKED\tLAST LOGIN")
		fmt.Fprintln(w, "--------\t----\t------\t------\t----------")
		for _, a := range accounts {
			last := "-"
			if a.LastLogin != nil {
				last = a.LastLogin.Format(time.RFC3339)
			}
			locked := "no"
			if a.Locked {
				locked = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", a.Username, a.Role, a.Status, locked, last)
		}
		w.Flush()
		return nil
	},
}

var userPasswdCmd = &cobra.Command{
	Use:   "passwd <username>",
	Short: "Change an account password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		username := args[0]

		password, err := promptPassword("New password: ")
		if err != nil {
			return err
		}
		confirm, err := promptPassword("Confirm password: ")
		if err != nil {
			return err
		}
		if password != confirm {
			return fmt.Errorf("passwords do not match")
		}

		if err := appInstance.Creds.SetPassword(username, password); err != nil {
			return err
		}
		if err := appInstance.Sessions.RevokeUser(username); err != nil {
			return err
		}
		fmt.Println(okStyle.Render("Password updated; existing sessions revoked"))
		return nil
	},
}

var userRenameCmd = &cobra.Command{
	Use:   "rename <username> <new-username>",
	Short: "Rename an account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := promptPassword("Current password: ")
		if err != nil {
			return err
		}

		if err := appInstance.Creds.Rename(args[0], args[1], password); err != nil {
			return err
		}
		if err := appInstance.Sessions.RevokeUser(args[0]); err != nil {
			return err
		}
		fmt.Println(okStyle.Render("Account renamed: " + args[1]))
		return nil
	},
}

func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(raw), nil
}

func init() {
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userPasswdCmd)
	userCmd.AddCommand(userRenameCmd)
}
