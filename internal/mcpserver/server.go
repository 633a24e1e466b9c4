// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes tankobon tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/tankobon/internal/archiveservice"
	"github.com/starford/tankobon/internal/models"
)

const contractURI = "tankobon://date-record"

// Server wraps the MCP server with tankobon tools.
type Server struct {
	mcp *server.MCPServer
	svc *archiveservice.Service
}

// New creates a new MCP server with all tankobon tools registered.
func New(svc *archiveservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Tankobon",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("scan_archives",
		mcp.WithDescription("Scan a library directory recursively and classify the embedded date "+
			"of every CBZ/CBR archive as ok, missing or wrong."),
		mcp.WithString("dir", mcp.Description("Directory relative to the library root (empty for the whole library)")),
	), s.scanArchives)

	s.mcp.AddTool(mcp.NewTool("read_archive_date",
		mcp.WithDescription("Read the Year/Month/Day stored in an archive's ComicInfo.xml, plus the file checksum."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Archive path relative to the library root (e.g. Akira/Akira v01.cbz)")),
	), s.readArchiveDate)

	s.mcp.AddTool(mcp.NewTool("write_archive_date",
		mcp.WithDescription("Write a date into an archive's ComicInfo.xml. Month and day default to 01. "+
			"Read the contract first via the get_date_record_contract tool or the "+contractURI+" resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Archive path relative to the library root")),
		mcp.WithString("year", mcp.Required(), mcp.Description("Four-digit year")),
		mcp.WithString("month", mcp.Description("Month 01..12")),
		mcp.WithString("day", mcp.Description("Day 01..31")),
		mcp.WithString("checksum", mcp.Description("Optional checksum from read_archive_date; the write fails if the file changed")),
	), s.writeArchiveDate)

	s.mcp.AddTool(mcp.NewTool("repair_archives",
		mcp.WithDescription("Rewrite the embedded date of every archive in a directory whose status is not ok."),
		mcp.WithString("dir", mcp.Description("Directory relative to the library root (empty for the whole library)")),
		mcp.WithBoolean("dry_run", mcp.Description("Report the planned dates without writing")),
	), s.repairArchives)

	s.mcp.AddTool(mcp.NewTool("get_date_record_contract",
		mcp.WithDescription("Returns the embedded date record format and the status rules. "+
			"Call this before writing or repairing dates."),
	), s.getDateRecordContract)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Date Record Contract",
			mcp.WithResourceDescription("Embedded ComicInfo date record and archive status rules."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) scanArchives(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dir := req.GetString("dir", "")
	recs, err := s.svc.ListArchives(ctx, dir)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"archives": recs, "total": len(recs)})
}

func (s *Server) readArchiveDate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.svc.GetDate(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", path, err)), nil
	}
	return jsonResult(d)
}

func (s *Server) writeArchiveDate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	year, err := req.RequireString("year")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	date := models.DateTriple{
		Year:  year,
		Month: req.GetString("month", ""),
		Day:   req.GetString("day", ""),
	}
	d, err := s.svc.SetDate(ctx, path, date, req.GetString("checksum", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", path, err)), nil
	}
	return jsonResult(d)
}

func (s *Server) repairArchives(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	results, err := s.svc.Repair(ctx, req.GetString("dir", ""), req.GetBool("dry_run", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("nothing to repair"), nil
	}
	return jsonResult(results)
}

func (s *Server) getDateRecordContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DateRecordContract), nil
}

func (s *Server) readContractResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     DateRecordContract,
		},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
