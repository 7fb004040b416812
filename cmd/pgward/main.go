package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := runServe(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "doctor":
		if err := runDoctor(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "--help", "-h", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("pgward — safe PostgreSQL MCP Server")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  pgward serve    Start the MCP server (stdio by default)")
	fmt.Println("  pgward doctor   Check configuration and environment")
	fmt.Println("  pgward --help   Show this help message")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  PG_HOST              Database host, optionally host:port (required)")
	fmt.Println("  PG_USER              Database user (required)")
	fmt.Println("  PG_PASSWORD          Database password (required)")
	fmt.Println("  PG_DATABASE          Database name (required)")
	fmt.Println("  PG_ALLOW_DANGEROUS   Set to 'true' to disable the write-statement gate")
	fmt.Println("  PGWARD_PG_CONNSTRING Full connection string (overrides PG_* variables)")
	fmt.Println("  PGWARD_CONFIG_PATH   Config file path (default .pgward/config.json)")
}
