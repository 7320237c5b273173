package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ironsheep/vectorize-mcp/internal/convert"
	"github.com/ironsheep/vectorize-mcp/internal/imaging"
	"github.com/ironsheep/vectorize-mcp/internal/svg"
	"github.com/ironsheep/vectorize-mcp/internal/trace"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_vectorize").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.log.WithError(err).WithField("tool", params.Name).Warn("tool failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "image_vectorize":
		return s.handleImageVectorize(ctx, args)
	case "image_probe":
		return s.handleImageProbe(args)
	case "image_edge_preview":
		return s.handleImageEdgePreview(ctx, args)
	case "svg_canonicalize":
		return s.handleSVGCanonicalize(args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// readImage loads the file at path after checking its size and sniffed type
// against the upload limits, so oversized files are never read into memory.
func (s *Server) readImage(path string) (*imaging.File, error) {
	return imaging.ReadFile(path, s.svc.Guard())
}

type edgeArgs struct {
	BlurSigma *float64 `json:"blur_sigma"`
	EdgeBoost *float64 `json:"edge_boost"`
}

// config returns nil when neither field is set, so the service default applies.
func (a edgeArgs) config() *imaging.EdgeConfig {
	if a.BlurSigma == nil && a.EdgeBoost == nil {
		return nil
	}
	cfg := imaging.DefaultEdgeConfig()
	if a.BlurSigma != nil {
		cfg.BlurSigma = *a.BlurSigma
	}
	if a.EdgeBoost != nil {
		cfg.EdgeBoost = *a.EdgeBoost
	}
	return &cfg
}

type backgroundArgs struct {
	LineColor   string `json:"line_color"`
	Transparent *bool  `json:"transparent"`
	BgColor     string `json:"bg_color"`
}

func (a backgroundArgs) background() convert.Background {
	bg := convert.Background{Transparent: true, Color: "#ffffff"}
	if a.Transparent != nil {
		bg.Transparent = *a.Transparent
	}
	if a.BgColor != "" {
		bg.Color = a.BgColor
	}
	return bg
}

// === Conversion Handlers ===

type imageVectorizeArgs struct {
	Path         string   `json:"path"`
	Threshold    *int     `json:"threshold"`
	TurdSize     *int     `json:"turd_size"`
	OptTolerance *float64 `json:"opt_tolerance"`
	TurnPolicy   string   `json:"turn_policy"`
	Invert       bool     `json:"invert"`
	Preprocess   string   `json:"preprocess"`
	edgeArgs
	backgroundArgs
}

func (s *Server) handleImageVectorize(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a imageVectorizeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	f, err := s.readImage(a.Path)
	if err != nil {
		return nil, err
	}

	req := convert.NewRequest(f.Data, f.MIME)
	if a.Threshold != nil {
		req.Params.Threshold = *a.Threshold
	}
	if a.TurdSize != nil {
		req.Params.TurdSize = *a.TurdSize
	}
	if a.OptTolerance != nil {
		req.Params.OptTolerance = *a.OptTolerance
	}
	if a.TurnPolicy != "" {
		req.Params.TurnPolicy = trace.TurnPolicy(a.TurnPolicy)
	}
	if a.LineColor != "" {
		req.Params.LineColor = a.LineColor
	}
	req.Params.Invert = a.Invert
	req.Preprocess = convert.Preprocess(a.Preprocess)
	req.Edge = a.edgeArgs.config()
	req.Background = a.background()

	return s.svc.Convert(ctx, req)
}

// ProbeReport is the result of image_probe.
type ProbeReport struct {
	Path       string  `json:"path"`
	Bytes      int64   `json:"bytes"`
	MIME       string  `json:"mime"`
	Format     string  `json:"format,omitempty"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Megapixels float64 `json:"megapixels"`
	ColorDepth string  `json:"color_depth,omitempty"`
	HasAlpha   bool    `json:"has_alpha"`

	// Accepted reports whether a conversion would pass the limit guard.
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
	Message  string `json:"message,omitempty"`

	TracerAvailable bool `json:"tracer_available"`
}

type imageProbeArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageProbe(args json.RawMessage) (interface{}, error) {
	var a imageProbeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	f, err := s.readImage(a.Path)
	if f == nil {
		return nil, err
	}
	report := &ProbeReport{Path: f.Path, Bytes: f.Size, MIME: f.MIME}
	if s.tracer != nil {
		report.TracerAvailable = s.tracer.Available()
	}
	if err != nil {
		if reject(report, err) {
			return report, nil
		}
		return nil, err
	}

	probe, err := imaging.Probe(f.Data)
	if err != nil {
		report.Reason = imaging.ReasonUnreadableDimensions.String()
		report.Message = "Could not read image dimensions. Try a different file."
		return report, nil
	}
	report.Format = probe.Format
	report.Width = probe.Width
	report.Height = probe.Height
	report.Megapixels = probe.Megapixels
	report.ColorDepth = probe.ColorDepth
	report.HasAlpha = probe.HasAlpha

	if err := s.svc.Guard().CheckDimensions(probe.Width, probe.Height); err != nil {
		if reject(report, err) {
			return report, nil
		}
		return nil, err
	}
	report.Accepted = true
	return report, nil
}

// reject records a guard rejection on report. It reports false for any other
// kind of error.
func reject(report *ProbeReport, err error) bool {
	var le *imaging.LimitError
	if !errors.As(err, &le) {
		return false
	}
	report.Accepted = false
	report.Reason = le.Reason.String()
	report.Message = le.Message
	return true
}

// EdgePreview is the result of image_edge_preview.
type EdgePreview struct {
	Width       int                `json:"width"`
	Height      int                `json:"height"`
	Preprocess  string             `json:"preprocess"`
	Fallback    bool               `json:"fallback"`
	Reason      string             `json:"reason,omitempty"`
	Stats       *imaging.FlatStats `json:"stats,omitempty"`
	MimeType    string             `json:"mime_type"`
	ImageBase64 string             `json:"image_base64"`
}

type imageEdgePreviewArgs struct {
	Path       string `json:"path"`
	Preprocess string `json:"preprocess"`
	edgeArgs
}

func (s *Server) handleImageEdgePreview(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a imageEdgePreviewArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Preprocess == "" {
		a.Preprocess = string(convert.PreprocessEdge)
	}

	f, err := s.readImage(a.Path)
	if err != nil {
		return nil, err
	}

	req := convert.NewRequest(f.Data, f.MIME)
	req.Preprocess = convert.Preprocess(a.Preprocess)
	req.Edge = a.edgeArgs.config()

	prep, err := s.svc.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	png, err := imaging.EncodePNG(prep.Image)
	if err != nil {
		return nil, err
	}

	b := prep.Image.Bounds()
	out := &EdgePreview{
		Width:       b.Dx(),
		Height:      b.Dy(),
		Preprocess:  string(convert.PreprocessNone),
		MimeType:    "image/png",
		ImageBase64: base64.StdEncoding.EncodeToString(png),
	}
	if prep.Edge != nil {
		out.Preprocess = string(convert.PreprocessEdge)
		out.Fallback = prep.Edge.Fallback
		out.Reason = prep.Edge.Reason
		if prep.Edge.Stats.Samples > 0 {
			stats := prep.Edge.Stats
			out.Stats = &stats
		}
	}
	return out, nil
}

type svgCanonicalizeArgs struct {
	SVG string `json:"svg"`
	backgroundArgs
}

func (s *Server) handleSVGCanonicalize(args json.RawMessage) (interface{}, error) {
	var a svgCanonicalizeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	if a.LineColor == "" {
		a.LineColor = trace.DefaultParams().LineColor
	}
	lineColor, err := convert.ParseColor(a.LineColor)
	if err != nil {
		return nil, err
	}
	opts := svg.Options{LineColor: lineColor}

	bg := a.background()
	opts.Transparent = bg.Transparent
	if !bg.Transparent {
		c, err := convert.ParseColor(bg.Color)
		if err != nil {
			return nil, err
		}
		opts.Background = c
	}

	doc := svg.Canonicalize(a.SVG, opts)
	return &doc, nil
}
