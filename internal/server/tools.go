package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

// triadProperties are the inputs shared by every base/candidate/mask tool.
func triadProperties() map[string]interface{} {
	return map[string]interface{}{
		"base_path":      pathProperty("Absolute path to the original (base) image"),
		"candidate_path": pathProperty("Absolute path to the generated candidate image. Resampled to the base size if it differs."),
		"mask_path":      pathProperty("Absolute path to the mask. Alpha > 127 means preserve, alpha <= 127 means editable. Resampled with nearest neighbour if its size differs."),
	}
}

func withOutputPath(props map[string]interface{}, description string) map[string]interface{} {
	props["output_path"] = pathProperty(description)
	return props
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Basic Image Information
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions, format, transparency and how many pixels a mask would preserve.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the image file"),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_dimensions",
			Description: "Get the width and height of an image file.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the image file"),
				},
				"required": []string{"path"},
			},
		},

		// Mask Synthesis
		{
			Name:        "mask_suggest",
			Description: "Build an inpainting mask from detected text regions. Boxes are normalized to [0,1] and padded adaptively; returns the mask as base64 PNG plus the pixel regions and coverage percentage.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withOutputPath(map[string]interface{}{
					"path": pathProperty("Absolute path to the base image; only its dimensions are used"),
					"detections": map[string]interface{}{
						"type":        "array",
						"description": "Detected text regions",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"label": map[string]interface{}{
									"type":        "string",
									"description": "Detected text, kept for diagnostics",
								},
								"box": map[string]interface{}{
									"type":        "object",
									"description": "Normalized bounding box; values outside [0,1] are clamped",
									"properties": map[string]interface{}{
										"x":      map[string]interface{}{"type": "number"},
										"y":      map[string]interface{}{"type": "number"},
										"width":  map[string]interface{}{"type": "number"},
										"height": map[string]interface{}{"type": "number"},
									},
									"required": []string{"x", "y", "width", "height"},
								},
							},
							"required": []string{"box"},
						},
					},
					"padding_percent": map[string]interface{}{
						"type":        "number",
						"description": "Padding as a percentage of the box's mean side. Server default 10",
					},
					"min_padding": map[string]interface{}{
						"type":        "integer",
						"description": "Minimum padding in pixels. Server default 5",
					},
					"max_padding": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum padding in pixels. Server default 50",
					},
					"merge_overlapping": map[string]interface{}{
						"type":        "boolean",
						"description": "Merge regions that overlap or nearly touch. Leave off for separate visual elements such as cards. Server default false",
					},
					"merge_tolerance": map[string]interface{}{
						"type":        "integer",
						"description": "Gap in pixels still treated as touching when merging. Server default 2",
					},
				}, "Optional file path to also write the mask PNG to; the inline payload is then omitted"),
				"required": []string{"path", "detections"},
			},
		},

		// Fidelity Verification
		{
			Name:        "drift_compute",
			Description: "Measure how much of the preserved area a candidate changed. Returns the drift score (percent of preserved pixels whose mean RGB difference exceeds 10) and pass (<=2), warn (<=5) or fail status.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": triadProperties(),
				"required":   []string{"base_path", "candidate_path", "mask_path"},
			},
		},
		{
			Name:        "heatmap_render",
			Description: "Render the per-pixel drift as a blue-cyan-yellow-red heatmap, either alone or composited over the candidate image.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withOutputPath(func() map[string]interface{} {
					p := triadProperties()
					p["overlay"] = map[string]interface{}{
						"type":        "boolean",
						"description": "Composite the heatmap over the candidate. Default false",
						"default":     false,
					}
					return p
				}(), "Optional file path to also write the PNG to; the inline payload is then omitted"),
				"required": []string{"base_path", "candidate_path", "mask_path"},
			},
		},
		{
			Name:        "composite_apply",
			Description: "Produce the final image: base pixels wherever the mask preserves, candidate pixels elsewhere. The result has zero drift by construction.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": withOutputPath(triadProperties(), "Optional file path to also write the composited PNG to; the inline payload is then omitted"),
				"required":   []string{"base_path", "candidate_path", "mask_path"},
			},
		},
		{
			Name:        "fidelity_verify",
			Description: "Run the full verification: drift score and status, heatmap, heatmap overlay and composited image, tagged with a run id.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": func() map[string]interface{} {
					p := triadProperties()
					p["output_dir"] = pathProperty("Optional directory to write <run_id>-heatmap.png, <run_id>-overlay.png and <run_id>-composite.png into; inline payloads are then omitted")
					return p
				}(),
				"required": []string{"base_path", "candidate_path", "mask_path"},
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
