/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "thusconnect",
	Short: "Roadside-assistance marketplace API server",
	Long: `thusconnect is the backend for the roadside-assistance marketplace
connecting drivers, technicians, and administrators. It serves the
authenticated route table and manages sessions against the identity
directory.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
