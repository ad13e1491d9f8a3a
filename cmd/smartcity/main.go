// Package main provides the smartcity binary entry point.
// Smartcity serves a REST API over an RDF mobility knowledge graph with
// SPARQL querying, automatic query repair and a natural-language bridge.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	Version = "0.1.0"
	appName = "smartcity"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Smart city mobility knowledge graph server",
		Long: `Smartcity serves a REST API over an RDF mobility knowledge graph.

It provides:
- SPARQL querying with automatic query repair and fallbacks
- CRUD over transports, users, stations and traffic events
- A natural-language question endpoint backed by a generative model`,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")

	cmd.AddCommand(newServeCmd(&configPath))
	cmd.AddCommand(newPopulateCmd(&configPath))
	cmd.AddCommand(newDiagnoseCmd(&configPath))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s\n", appName, Version)
		},
	})

	return cmd
}

func newLogger() (*zap.Logger, error) {
	if os.Getenv("SMARTCITY_DEBUG") != "" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
