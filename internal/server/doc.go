// Package server implements the MCP (Model Context Protocol) server for raster vectorization.
//
// This package provides a JSON-RPC 2.0 server that exposes the conversion pipeline
// through the MCP protocol, so MCP-compatible clients can turn PNG and JPEG files
// into clean, responsive SVG.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
//   - image_vectorize: Trace an image file into canonical SVG
//   - image_probe: Header-only size and type check against the upload limits
//   - image_edge_preview: The raster the tracer would receive, as base64 PNG
//   - svg_canonicalize: Run the SVG post-processing on caller-supplied markup
//
// # Memory Only
//
// Image files are read, converted and released within a single tool call.
// Nothing is cached between calls and no intermediate raster is written to
// disk.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The error text, e.g. "Image too large: 13000×8000 (~104.0 MP). ..."
//
// # Usage
//
//	srv := server.New(svc, server.WithLogger(log), server.WithTracer(potrace))
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
