package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	apperrors "github.com/GriffinCanCode/screen-roaster/internal/errors"
	"github.com/GriffinCanCode/screen-roaster/internal/gallery"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	svc Service
}

func NewHandlers(svc Service) *Handlers {
	return &Handlers{svc: svc}
}

type CaptureRequest struct {
	Token  string `json:"token,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

type ListRequest struct {
	Refresh bool `json:"refresh,omitempty"`
}

type NameRequest struct {
	Name string `json:"name"`
}

type ViewRequest struct {
	Name string `json:"name"`
	Size int    `json:"size,omitempty"`
}

type CaptureOutput struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
}

type ListOutput struct {
	State string         `json:"state"`
	Items []gallery.View `json:"items"`
}

type DeleteOutput struct {
	Deleted string `json:"deleted"`
}

func (h *Handlers) HandleCapture(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CaptureRequest](req)
	if err != nil {
		return errorResult(apperrors.New(apperrors.InvalidArgument, err.Error())), nil
	}
	if input.Width < 0 || input.Height < 0 {
		return errorResult(apperrors.New(apperrors.InvalidArgument, "width and height must not be negative")), nil
	}

	r := h.svc.DefaultRequest()
	if input.Token != "" {
		r.Token = input.Token
	}
	r.Width, r.Height = input.Width, input.Height

	res, err := h.svc.Capture(ctx, r)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(CaptureOutput{ID: res.ID, Name: filepath.Base(res.Path), Path: res.Path})
}

func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(apperrors.New(apperrors.InvalidArgument, err.Error())), nil
	}
	list := h.svc.Items()
	if input.Refresh {
		if list, err = h.svc.Refresh(ctx); err != nil {
			return errorResult(err), nil
		}
	}
	return successResult(ListOutput{State: list.State(), Items: list.Views()})
}

func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeName[NameRequest](req, func(r NameRequest) string { return r.Name })
	if err != nil {
		return errorResult(err), nil
	}
	if err := h.svc.Delete(ctx, input.Name); err != nil {
		return errorResult(err), nil
	}
	return successResult(DeleteOutput{Deleted: input.Name})
}

func (h *Handlers) HandleShare(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeName[NameRequest](req, func(r NameRequest) string { return r.Name })
	if err != nil {
		return errorResult(err), nil
	}
	handle, err := h.svc.Share(input.Name)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(handle)
}

func (h *Handlers) HandleView(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeName[ViewRequest](req, func(r ViewRequest) string { return r.Name })
	if err != nil {
		return errorResult(err), nil
	}
	if input.Size < 0 {
		return errorResult(apperrors.New(apperrors.InvalidArgument, "size must not be negative")), nil
	}
	data, err := h.svc.Thumbnail(input.Name, input.Size)
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultImage(input.Name, base64.StdEncoding.EncodeToString(data), "image/png"), nil
}

// decodeName decodes T and requires a non-empty name.
func decodeName[T any](req mcp.CallToolRequest, name func(T) string) (T, error) {
	input, err := decode[T](req)
	if err != nil {
		return input, apperrors.New(apperrors.InvalidArgument, err.Error())
	}
	if name(input) == "" {
		return input, apperrors.New(apperrors.InvalidArgument, "name is required")
	}
	return input, nil
}

// errorResult builds an IsError result. Internal details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	detail := map[string]any{
		"code":    apperrors.Internal.String(),
		"message": "an internal error occurred",
	}
	if ae, ok := apperrors.As(err); ok {
		detail["code"] = ae.Code.String()
		detail["message"] = ae.UserMessage()
		if ae.Code != apperrors.Internal && len(ae.Metadata) > 0 {
			detail["metadata"] = ae.Metadata
		}
	}
	content, _ := json.Marshal(map[string]any{"error": detail})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
