package api

import (
	"log/slog"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hazyhaar/spendlens/pkg/kit"
	"github.com/hazyhaar/spendlens/pkg/spend"
)

// NewMCPServer builds the MCP server with all dashboard tools registered.
func NewMCPServer(reg *spend.Registry, version string, logger *slog.Logger) *server.MCPServer {
	srv := server.NewMCPServer("spendlens", version,
		server.WithToolCapabilities(false),
	)
	RegisterMCPTools(srv, reg, logger)
	return srv
}

// RegisterMCPTools registers the four dashboard MCP tools on the server.
// Tools dispatch to the same instrumented endpoints the HTTP routes use.
func RegisterMCPTools(srv *server.MCPServer, reg *spend.Registry, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	registerListDatasets(srv, reg, logger)
	registerDatasetStats(srv, reg, logger)
	registerTopCreatives(srv, reg, logger)
	registerSearchSpend(srv, reg, logger)
}

func registerListDatasets(srv *server.MCPServer, reg *spend.Registry, logger *slog.Logger) {
	tool := mcp.NewTool("list_datasets",
		mcp.WithDescription("List all loaded ad-spend datasets with metadata (kind, row count, months covered, staleness)."),
	)

	kit.RegisterMCPTool(srv, tool, instrument(logger, "list_datasets")(listDatasetsEndpoint(reg)),
		func(_ mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
			return &kit.MCPDecodeResult{Request: nil}, nil
		})
}

func registerDatasetStats(srv *server.MCPServer, reg *spend.Registry, logger *slog.Logger) {
	tool := mcp.NewTool("dataset_stats",
		mcp.WithDescription("Summary statistics for one dataset: row count, column list, and min/max/avg/sum per numeric column."),
		mcp.WithString("dataset", mcp.Required(), mcp.Description("Dataset ID, e.g. brand-series")),
	)

	kit.RegisterMCPTool(srv, tool, instrument(logger, "dataset_stats")(statsEndpoint(reg)),
		func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
			args := req.GetArguments()
			id, _ := args["dataset"].(string)
			return &kit.MCPDecodeResult{Request: &datasetReq{ID: id}}, nil
		})
}

func registerTopCreatives(srv *server.MCPServer, reg *spend.Registry, logger *slog.Logger) {
	tool := mcp.NewTool("top_creatives",
		mcp.WithDescription("Highest-spend creatives for a dataset, month (YYYY-MM), and dimension value. Omitted month or value use the dataset's current selection."),
		mcp.WithString("dataset", mcp.Required(), mcp.Description("Creatives dataset ID, e.g. publisher-creatives")),
		mcp.WithString("month", mcp.Description("Month key YYYY-MM")),
		mcp.WithString("value", mcp.Description("Dimension value, e.g. a publisher name")),
		mcp.WithString("n", mcp.Description("How many entries to return (default 3)")),
	)

	kit.RegisterMCPTool(srv, tool, instrument(logger, "top_creatives")(topEndpoint(reg)),
		func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
			args := req.GetArguments()
			id, _ := args["dataset"].(string)
			month, _ := args["month"].(string)
			value, _ := args["value"].(string)
			n := 0
			if v, _ := args["n"].(string); v != "" {
				parsed, err := strconv.Atoi(v)
				if err == nil && parsed > 0 {
					n = parsed
				}
			}
			return &kit.MCPDecodeResult{Request: &topReq{ID: id, Month: month, Value: value, N: n}}, nil
		})
}

func registerSearchSpend(srv *server.MCPServer, reg *spend.Registry, logger *slog.Logger) {
	tool := mcp.NewTool("search_spend",
		mcp.WithDescription("Case-insensitive substring search across every field of every loaded dataset. Hits are tagged with their dataset ID."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Text to search for")),
		mcp.WithString("limit", mcp.Description("Maximum hits to return (default 50)")),
	)

	kit.RegisterMCPTool(srv, tool, instrument(logger, "search_spend")(searchEndpoint(reg)),
		func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
			args := req.GetArguments()
			query, _ := args["query"].(string)
			limit := 50
			if v, _ := args["limit"].(string); v != "" {
				parsed, err := strconv.Atoi(v)
				if err == nil && parsed > 0 {
					limit = parsed
				}
			}
			return &kit.MCPDecodeResult{Request: &searchReq{Query: query, Limit: limit}}, nil
		})
}
