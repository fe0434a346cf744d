package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"hytun/internal/paths"
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Control the hysteria tunnel service",
}

var serviceStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the tunnel service",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := appInstance.Service.Start(context.Background()); err != nil {
			return err
		}
		fmt.Println(okStyle.Render("Service started"))
		return nil
	},
}

var serviceStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the tunnel service",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := appInstance.Service.Stop(context.Background()); err != nil {
			return err
		}
		fmt.Println(okStyle.Render("Service stopped"))
		return nil
	},
}

var serviceRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the tunnel service",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := appInstance.Service.Restart(context.Background()); err != nil {
			return err
		}
		fmt.Println(okStyle.Render("Service restarted"))
		return nil
	},
}

var serviceLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent tunnel log output",
	RunE: func(cmd *cobra.Command, args []string) error {
		lines, _ := cmd.Flags().GetInt("lines")

		path, err := paths.HysteriaLog()
		if err != nil {
			return err
		}
		out, err := appInstance.Service.TailLog(context.Background(), path, lines)
		if err != nil {
			return err
		}
		for _, line := range out {
			fmt.Println(line)
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show tunnel status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		status := appInstance.Monitor.Poll(ctx)

		fmt.Println(titleStyle.Render("Tunnel Status"))
		fmt.Println()
		fmt.Printf("Service: %s %s\n", markActive(status.ServiceActive), onOff(status.ServiceActive, "active", "inactive"))
		fmt.Printf("TUN:     %s %s\n", markActive(status.TunUp), onOff(status.TunUp, "up", "down"))

		if cur := appInstance.Registry.Current(); cur != nil {
			fmt.Printf("Node:    %s (%s:%d)\n", cur.Name, cur.Server, cur.Port)
		} else {
			fmt.Println("Node:    " + subtleStyle.Render("none selected"))
		}
		return nil
	},
}

func onOff(v bool, on, off string) string {
	if v {
		return okStyle.Render(on)
	}
	return subtleStyle.Render(off)
}

func init() {
	serviceLogsCmd.Flags().IntP("lines", "l", 50, "number of lines to show")

	serviceCmd.AddCommand(serviceStartCmd)
	serviceCmd.AddCommand(serviceStopCmd)
	serviceCmd.AddCommand(serviceRestartCmd)
	serviceCmd.AddCommand(serviceLogsCmd)
}
