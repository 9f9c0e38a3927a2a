package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/robotalks/stmlink/pkg/uart"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := uart.Ports()
		if err != nil {
			return err
		}
		if len(ports) == 0 {
			fmt.Println("No serial ports found")
			return nil
		}
		for _, name := range ports {
			fmt.Println(name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(portsCmd)
}
