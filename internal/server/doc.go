// Package server implements the MCP (Model Context Protocol) server for the
// image fidelity tools.
//
// The server exposes mask synthesis, drift measurement, heatmap rendering and
// compositing over JSON-RPC 2.0 so an MCP client driving an inpainting model
// can check that a generated candidate left the protected areas of the
// original untouched.
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
// Basic Image Information:
//   - image_load: Load image and get metadata, including preserved pixel count for masks
//   - image_dimensions: Get width and height
//
// Mask Synthesis:
//   - mask_suggest: Turn normalized text detections into a padded inpainting mask
//
// Fidelity Verification:
//   - drift_compute: Drift score and pass/warn/fail status over the preserved area
//   - heatmap_render: Visualize per-pixel drift, optionally over the candidate
//   - composite_apply: Paste preserved base pixels back over the candidate
//   - fidelity_verify: All of the above in one call, tagged with a run id
//
// Tools that take a base, candidate and mask conform the candidate (Lanczos)
// and the mask (nearest neighbour) to the base dimensions first, and report
// whether they did so.
//
// # Image Caching
//
// Loaded rasters are cached by path. Candidate and mask paths are evicted after
// every verification tool call because clients typically regenerate them in
// place; base images stay cached for the lifetime of the process.
//
// # Error Handling
//
// Errors are returned as JSON-RPC error responses:
//   - -32700: the request line is not valid JSON (id is null)
//   - -32601: unknown method
//   - -32602: unknown tool, or missing/malformed tool arguments
//   - -32000: the tool ran and failed (unreadable image, decode error, I/O)
//
// The data field carries the Go error string, prefixed with the failing input
// ("base:", "candidate:", "mask:") where one applies.
//
// # Usage
//
//	cfg, err := config.Load(path)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv := server.New(cfg, cfg.NewLogger(os.Stderr))
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
