package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/flemzord/presenced/internal/config"
	"github.com/flemzord/presenced/internal/gateway"
	"github.com/flemzord/presenced/pkg/app"
)

const maxResponseBytes = 1 << 20

// gatewayClient talks to a running daemon's status gateway.
type gatewayClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func (c *gatewayClient) do(ctx context.Context, method, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return "", err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", err
	}
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("gateway: %s %s: HTTP %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return string(body), nil
}

// gatewayFromConfig derives the gateway URL and token from the daemon's
// configuration.
func gatewayFromConfig(path string) (url, token string, err error) {
	if path == "" {
		if path, err = app.ResolveConfigPath(); err != nil {
			return "", "", err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return "", "", err
	}
	node, ok := cfg.Modules["gateway.http"]
	if !ok {
		return "", "", errors.New("gateway.http is not configured; pass --url")
	}
	var gw gateway.Config
	if err := node.Decode(&gw); err != nil {
		return "", "", fmt.Errorf("decoding gateway.http: %w", err)
	}
	bind := gw.Bind
	if bind == "" {
		bind = gateway.DefaultBind
	}
	if strings.HasPrefix(bind, ":") || strings.HasPrefix(bind, "0.0.0.0:") {
		bind = "127.0.0.1" + bind[strings.LastIndex(bind, ":"):]
	}
	return "http://" + bind, gw.Auth.BearerToken, nil
}

func newMCPServer(c *gatewayClient) *server.MCPServer {
	s := server.NewMCPServer("presenced", version, server.WithToolCapabilities(false))
	s.AddTool(mcp.NewTool("keepalive_status",
		mcp.WithDescription("Current keep-alive status: last run time, success, last error and run count."),
	), c.statusTool)
	s.AddTool(mcp.NewTool("keepalive_runs",
		mcp.WithDescription("Most recent keep-alive runs, newest first."),
		mcp.WithNumber("limit", mcp.Description("Number of runs to return (1-100, default 20).")),
	), c.runsTool)
	s.AddTool(mcp.NewTool("keepalive_run_now",
		mcp.WithDescription("Trigger a keep-alive run immediately and return its status."),
	), c.runNowTool)
	return s
}

func (c *gatewayClient) statusTool(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return toolResult(c.do(ctx, http.MethodGet, "/status"))
}

func (c *gatewayClient) runsTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 20)
	return toolResult(c.do(ctx, http.MethodGet, "/api/runs?limit="+strconv.Itoa(limit)))
}

func (c *gatewayClient) runNowTool(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return toolResult(c.do(ctx, http.MethodPost, "/api/run"))
}

// toolResult reports gateway failures as tool errors so the model sees
// them instead of a protocol failure.
func toolResult(body string, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(body), nil
}

func mcpCmd() *cobra.Command {
	var (
		url     string
		token   string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve keep-alive status tools over MCP on stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if url == "" {
				cfgPath, _ := cmd.Flags().GetString("config")
				cfgURL, cfgToken, err := gatewayFromConfig(cfgPath)
				if err != nil {
					return err
				}
				url = cfgURL
				if token == "" {
					token = cfgToken
				}
			}
			c := &gatewayClient{
				baseURL: strings.TrimRight(url, "/"),
				token:   token,
				http:    &http.Client{Timeout: timeout},
			}
			return server.ServeStdio(newMCPServer(c))
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "Gateway base URL (default: derived from the config)")
	cmd.Flags().StringVar(&token, "token", "", "Gateway bearer token (default: from the config)")
	cmd.Flags().DurationVar(&timeout, "timeout", 6*time.Minute, "Per-request timeout; run_now waits for a full run")
	return cmd
}
