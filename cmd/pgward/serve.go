package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/pgward/pgward"
	"github.com/pgward/pgward/internal/meta"
)

func runServe() error {
	ctx := context.Background()

	if isTTY(os.Stderr.Fd()) {
		printBanner(os.Stderr, true)
	}

	// 1. Load ServerConfig (optional — env-only operation uses defaults)
	serverConfig, err := loadServerConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyDefaults(serverConfig)

	// 2. Resolve connection string and dangerous-mode flag
	connString := os.Getenv("PGWARD_PG_CONNSTRING")
	if connString == "" {
		env, err := pgward.ConnectionFromEnv(getenvWithPrompts())
		if err != nil {
			return err
		}
		serverConfig.AllowDangerous = serverConfig.AllowDangerous || env.AllowDangerous
		connString = env.ConnString()
		if serverConfig.Connection.SSLMode != "" {
			connString += fmt.Sprintf(" sslmode=%s", serverConfig.Connection.SSLMode)
		}
	} else if strings.EqualFold(os.Getenv("PG_ALLOW_DANGEROUS"), "true") {
		serverConfig.AllowDangerous = true
	}

	// 3. Setup logger. In stdio mode the protocol owns stdout, so logs must
	// never go there.
	if serverConfig.Server.Transport != "http" && serverConfig.Logging.Output == "stdout" {
		serverConfig.Logging.Output = "stderr"
	}
	logger := setupLogger(serverConfig.Logging)

	if serverConfig.AllowDangerous {
		logger.Warn().Msg("dangerous operations enabled — write statements will not be blocked")
	}

	// 4. Create Pgward instance
	pg, err := pgward.New(ctx, connString, serverConfig.Config, logger)
	if err != nil {
		return fmt.Errorf("failed to create Pgward: %w", err)
	}
	defer pg.Close(ctx)

	// 5. Test database connection
	logger.Info().Msg("testing database connection")
	if err := pg.Ping(ctx); err != nil {
		logger.Error().Err(err).Msg("database connection test failed")
		return fmt.Errorf("database connection test failed: %w", err)
	}
	logger.Info().Msg("database connection test successful")

	// 6. Create MCP server with initialize lifecycle logging
	hooks := &server.Hooks{}
	hooks.AddAfterInitialize(func(ctx context.Context, id any, req *mcp.InitializeRequest, result *mcp.InitializeResult) {
		clientName := req.Params.ClientInfo.Name
		clientVersion := req.Params.ClientInfo.Version
		logger.Info().
			Str("client_name", clientName).
			Str("client_version", clientVersion).
			Msg("AI agent connected (MCP initialize)")
	})

	mcpServer := server.NewMCPServer("pgward", meta.Version,
		server.WithToolCapabilities(true),
		server.WithHooks(hooks),
	)

	pgward.RegisterMCPTools(mcpServer, pg)

	// 7. Serve — stdio by default, streamable HTTP when configured
	if serverConfig.Server.Transport != "http" {
		logger.Info().Msg("starting pgward server on stdio")
		return server.ServeStdio(mcpServer)
	}

	if serverConfig.Server.Port <= 0 {
		panic("pgward: server.port must be > 0 for http transport")
	}

	addr := fmt.Sprintf(":%d", serverConfig.Server.Port)
	mux := http.NewServeMux()

	// Health check endpoint (process liveness only, not DB connectivity)
	if serverConfig.Server.HealthCheckEnabled {
		if serverConfig.Server.HealthCheckPath == "" {
			panic("pgward: health_check_path must be set when health_check_enabled is true")
		}
		mux.HandleFunc(serverConfig.Server.HealthCheckPath, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})
	}

	httpSrv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Create StreamableHTTPServer with custom http.Server
	streamableServer := server.NewStreamableHTTPServer(mcpServer,
		server.WithEndpointPath("/mcp"),
		server.WithStateLess(true),
		server.WithStreamableHTTPServer(httpSrv),
	)

	// Manually register the MCP handler — Start() does NOT register
	// when a custom *http.Server is provided via WithStreamableHTTPServer.
	mux.Handle("/mcp", streamableServer)

	logger.Info().Int("port", serverConfig.Server.Port).Msg("starting pgward server")
	return streamableServer.Start(addr)
}

// loadServerConfig reads the optional JSON config file. A missing file is not
// an error — the server can run entirely from environment variables.
func loadServerConfig() (*pgward.ServerConfig, error) {
	configPath := os.Getenv("PGWARD_CONFIG_PATH")
	explicit := configPath != ""
	if configPath == "" {
		configPath = ".pgward/config.json"
	}

	var config pgward.ServerConfig
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return &config, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// applyDefaults fills zero-valued required settings so an empty config file
// (or no config file at all) produces a working server.
func applyDefaults(config *pgward.ServerConfig) {
	if config.Pool.MaxConns == 0 {
		config.Pool.MaxConns = 5
	}
	if config.Query.DefaultTimeoutSeconds == 0 {
		config.Query.DefaultTimeoutSeconds = 30
	}
	if config.Query.ListDatabasesTimeoutSeconds == 0 {
		config.Query.ListDatabasesTimeoutSeconds = 10
	}
	if config.Query.ListTablesTimeoutSeconds == 0 {
		config.Query.ListTablesTimeoutSeconds = 10
	}
	if config.Query.DescribeTableTimeoutSeconds == 0 {
		config.Query.DescribeTableTimeoutSeconds = 10
	}
}

func setupLogger(config pgward.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(config.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	var output io.Writer = os.Stderr
	if config.Output == "stdout" {
		output = os.Stdout
	} else if config.Output != "" && config.Output != "stderr" {
		f, err := os.OpenFile(config.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			output = f
		}
	}

	if config.Format == "text" {
		output = zerolog.ConsoleWriter{Out: output}
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

// getenvWithPrompts wraps os.Getenv so that missing credentials are prompted
// for on the terminal instead of failing outright. Non-interactive runs fall
// through to the plain environment lookup and its error messages.
func getenvWithPrompts() func(string) string {
	interactive := isTTY(os.Stdin.Fd())
	return func(key string) string {
		value := os.Getenv(key)
		if value != "" || !interactive {
			return value
		}
		switch key {
		case "PG_USER":
			return promptInput("Username: ")
		case "PG_PASSWORD":
			return promptPassword("Password: ")
		}
		return value
	}
}

func promptInput(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	var input string
	fmt.Scanln(&input)
	return input
}

func promptPassword(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr) // newline after password input
	if err != nil {
		return ""
	}
	return string(password)
}
