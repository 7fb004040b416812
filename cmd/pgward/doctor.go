package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pgward/pgward"
	"github.com/pgward/pgward/internal/meta"
)

func runDoctor() error {
	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	configPath := fs.String("config", ".pgward/config.json", "Path to configuration file")
	ping := fs.Bool("ping", true, "Test database connectivity with SELECT 1")
	fs.Parse(os.Args[2:])

	useColor := isTTY(os.Stderr.Fd())
	return doctor(os.Stderr, useColor, *configPath, *ping)
}

func doctor(w io.Writer, useColor bool, configPath string, ping bool) error {
	printBanner(w, useColor)
	fmt.Fprintf(w, "pgward %s\n\n", meta.Version)

	envOK := doctorCheckEnv(w, useColor)
	configOK := doctorValidateConfig(w, useColor, configPath)

	if ping && envOK {
		doctorPing(w, useColor)
	}

	if !envOK || !configOK {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Fix the issues above and run 'pgward doctor' again.")
	}
	return nil
}

// doctorCheckEnv verifies the PG_* connection environment variables.
func doctorCheckEnv(w io.Writer, useColor bool) bool {
	if os.Getenv("PGWARD_PG_CONNSTRING") != "" {
		printCheck(w, useColor, true, "PGWARD_PG_CONNSTRING is set (PG_* variables ignored)")
		return true
	}

	allPassed := true
	for _, key := range []string{"PG_HOST", "PG_USER", "PG_PASSWORD", "PG_DATABASE"} {
		if os.Getenv(key) == "" {
			printCheck(w, useColor, false, fmt.Sprintf("%s is set", key))
			allPassed = false
		} else if key == "PG_PASSWORD" {
			printCheck(w, useColor, true, "PG_PASSWORD is set")
		} else {
			printCheck(w, useColor, true, fmt.Sprintf("%s is set (%s)", key, os.Getenv(key)))
		}
	}

	if allPassed {
		if _, err := pgward.ConnectionFromEnv(os.Getenv); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("PG_HOST is well-formed: %v", err))
			allPassed = false
		}
	}

	if os.Getenv("PG_ALLOW_DANGEROUS") == "true" {
		printCheck(w, useColor, true, "PG_ALLOW_DANGEROUS=true — write statements will NOT be blocked")
	}

	return allPassed
}

// doctorValidateConfig loads and validates the optional config file, printing
// check results.
func doctorValidateConfig(w io.Writer, useColor bool, configPath string) bool {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			printCheck(w, useColor, true, fmt.Sprintf("No config file (%s) — using defaults", configPath))
			return true
		}
		printCheck(w, useColor, false, fmt.Sprintf("Config file readable (%s): %v", configPath, err))
		return false
	}
	printCheck(w, useColor, true, fmt.Sprintf("Config file readable (%s)", configPath))

	var config pgward.ServerConfig
	if err := json.Unmarshal(data, &config); err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Config file is valid JSON: %v", err))
		return false
	}
	printCheck(w, useColor, true, "Config file is valid JSON")

	allPassed := true

	if config.Server.Transport == "http" && config.Server.Port <= 0 {
		printCheck(w, useColor, false, "server.port is > 0 (required for http transport)")
		allPassed = false
	}

	if config.Server.HealthCheckEnabled && config.Server.HealthCheckPath == "" {
		printCheck(w, useColor, false, "health_check_path is set (required when health_check_enabled)")
		allPassed = false
	}

	regexOK := true

	for i, rule := range config.Guidance {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("guidance[%d] regex compiles: %v", i, err))
			regexOK = false
			allPassed = false
		}
	}

	for i, rule := range config.Redaction {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("redaction[%d] regex compiles: %v", i, err))
			regexOK = false
			allPassed = false
		}
	}

	for i, rule := range config.Query.TimeoutRules {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("timeout_rules[%d] regex compiles: %v", i, err))
			regexOK = false
			allPassed = false
		}
	}

	if regexOK {
		printCheck(w, useColor, true, "All regex patterns compile")
	}

	return allPassed
}

// doctorPing connects to the database once and reports the result.
func doctorPing(w io.Writer, useColor bool) {
	connString := os.Getenv("PGWARD_PG_CONNSTRING")
	if connString == "" {
		env, err := pgward.ConnectionFromEnv(os.Getenv)
		if err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("Database reachable: %v", err))
			return
		}
		connString = env.ConnString()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Database reachable: %v", err))
		return
	}
	defer conn.Close(ctx)

	var one int
	if err := conn.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Database reachable: %v", err))
		return
	}
	printCheck(w, useColor, true, "Database reachable (SELECT 1)")
}

// printCheck prints a colored ✓ or ✗ check line.
func printCheck(w io.Writer, useColor bool, pass bool, msg string) {
	if pass {
		if useColor {
			fmt.Fprintf(w, "  \033[32m✓\033[0m %s\n", msg)
		} else {
			fmt.Fprintf(w, "  ✓ %s\n", msg)
		}
	} else {
		if useColor {
			fmt.Fprintf(w, "  \033[31m✗\033[0m %s\n", msg)
		} else {
			fmt.Fprintf(w, "  ✗ %s\n", msg)
		}
	}
}
