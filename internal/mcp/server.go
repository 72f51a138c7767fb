// Package mcp exposes screenshots as MCP tools for assistants.
package mcp

import (
	"context"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/GriffinCanCode/screen-roaster/internal/capture"
	"github.com/GriffinCanCode/screen-roaster/internal/gallery"
)

// Service is what the tools need from the orchestrator.
type Service interface {
	DefaultRequest() capture.Request
	Capture(ctx context.Context, req capture.Request) (capture.Result, error)
	Items() gallery.List
	Refresh(ctx context.Context) (gallery.List, error)
	Item(name string) (gallery.SavedImage, error)
	Delete(ctx context.Context, name string) error
	Share(name string) (gallery.Handle, error)
	Thumbnail(name string, maxEdge int) ([]byte, error)
}

type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

var toolRegistry = map[string]toolEntry{
	"screenshot_capture": {
		def: mcp.NewTool("screenshot_capture",
			mcp.WithDescription("Capture the screen once and save it as a PNG in the screenshots directory."),
			mcp.WithString("token", mcp.Description(`Display to capture, e.g. "display:0". Defaults to the configured display.`)),
			mcp.WithNumber("width", mcp.Description("Output width in pixels; 0 keeps the native size.")),
			mcp.WithNumber("height", mcp.Description("Output height in pixels; 0 keeps the native size.")),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCapture },
	},
	"screenshot_list": {
		def: mcp.NewTool("screenshot_list",
			mcp.WithDescription("List saved screenshots, newest first."),
			mcp.WithBoolean("refresh", mcp.Description("Rescan the directory before listing.")),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleList },
	},
	"screenshot_delete": {
		def: mcp.NewTool("screenshot_delete",
			mcp.WithDescription("Delete a saved screenshot by file name."),
			mcp.WithString("name", mcp.Required(), mcp.Description("File name as returned by screenshot_list.")),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDelete },
	},
	"screenshot_share": {
		def: mcp.NewTool("screenshot_share",
			mcp.WithDescription("Get a shareable URL for a saved screenshot."),
			mcp.WithString("name", mcp.Required(), mcp.Description("File name as returned by screenshot_list.")),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleShare },
	},
	"screenshot_view": {
		def: mcp.NewTool("screenshot_view",
			mcp.WithDescription("Return a PNG thumbnail of a saved screenshot."),
			mcp.WithString("name", mcp.Required(), mcp.Description("File name as returned by screenshot_list.")),
			mcp.WithNumber("size", mcp.Description("Longest edge in pixels; 0 uses the configured thumbnail size.")),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleView },
	},
}

// ToolNames returns the registered tool names, sorted.
func ToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewServer creates an MCP server with every screenshot tool registered.
func NewServer(svc Service, version string) *server.MCPServer {
	s := server.NewMCPServer("screen-roaster", version, server.WithToolCapabilities(true))
	h := NewHandlers(svc)
	for _, entry := range toolRegistry {
		s.AddTool(entry.def, entry.handler(h))
	}
	return s
}

// Run serves the tools on stdio until stdin closes.
func Run(svc Service, version string) error {
	return server.ServeStdio(NewServer(svc, version))
}
