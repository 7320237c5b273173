package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to a PNG or JPEG file",
	}
}

func edgeProperties(props map[string]interface{}) map[string]interface{} {
	props["blur_sigma"] = map[string]interface{}{
		"type":        "number",
		"description": "Gaussian blur sigma before edge detection; 0 disables the blur. Default 0.8",
		"minimum":     0,
		"default":     0.8,
	}
	props["edge_boost"] = map[string]interface{}{
		"type":        "number",
		"description": "Multiplier on the gradient magnitude. Default 1.0",
		"default":     1.0,
	}
	return props
}

func backgroundProperties(props map[string]interface{}) map[string]interface{} {
	props["line_color"] = map[string]interface{}{
		"type":        "string",
		"description": "Fill for traced paths as #rgb or #rrggbb. Default #000000",
		"default":     "#000000",
	}
	props["transparent"] = map[string]interface{}{
		"type":        "boolean",
		"description": "Leave the background transparent. Default true",
		"default":     true,
	}
	props["bg_color"] = map[string]interface{}{
		"type":        "string",
		"description": "Background fill when transparent is false. Default #ffffff",
		"default":     "#ffffff",
	}
	return props
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name: "image_vectorize",
			Description: "Trace a PNG or JPEG into an SVG outline. The image is normalized to grayscale " +
				"(or turned into an edge map with preprocess=edge, useful for photos), traced, and the " +
				"SVG is returned with a viewBox, recolored paths and the requested background.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": edgeProperties(backgroundProperties(map[string]interface{}{
					"path": pathProperty(),
					"threshold": map[string]interface{}{
						"type":        "integer",
						"description": "Luminance 0-255 below which pixels count as ink. Default 224",
						"minimum":     0,
						"maximum":     255,
						"default":     224,
					},
					"turd_size": map[string]interface{}{
						"type":        "integer",
						"description": "Suppress speckles of up to this many pixels. Default 2",
						"minimum":     0,
						"default":     2,
					},
					"opt_tolerance": map[string]interface{}{
						"type":        "number",
						"description": "Curve optimization tolerance. Default 0.28",
						"default":     0.28,
					},
					"turn_policy": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"black", "white", "left", "right", "minority", "majority"},
						"description": "How ambiguous turns are resolved. Default minority",
						"default":     "minority",
					},
					"invert": map[string]interface{}{
						"type":        "boolean",
						"description": "Trace light shapes on a dark background. Default false",
						"default":     false,
					},
					"preprocess": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"none", "edge"},
						"description": "Raster preparation. Default none",
						"default":     "none",
					},
				})),
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_probe",
			Description: "Read an image header and report its type, size and whether it is within the conversion limits, without decoding pixel data.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_edge_preview",
			Description: "Return the raster that would be handed to the tracer as a base64 PNG, and whether the edge prepass fell back to the plain grayscale image.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": edgeProperties(map[string]interface{}{
					"path": pathProperty(),
					"preprocess": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"none", "edge"},
						"description": "Raster preparation. Default edge",
						"default":     "edge",
					},
				}),
				"required": []string{"path"},
			},
		},
		{
			Name:        "svg_canonicalize",
			Description: "Canonicalize SVG markup: ensure an <svg> root with a viewBox, drop width/height, recolor paths and normalize the background rectangle.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": backgroundProperties(map[string]interface{}{
					"svg": map[string]interface{}{
						"type":        "string",
						"description": "SVG markup or a bare fragment",
					},
				}),
				"required": []string{"svg"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
