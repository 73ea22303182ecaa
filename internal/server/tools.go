package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func prop(typ, description string) map[string]interface{} {
	return map[string]interface{}{"type": typ, "description": description}
}

func propDefault(typ, description string, def interface{}) map[string]interface{} {
	p := prop(typ, description)
	p["default"] = def
	return p
}

func objectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	if required == nil {
		required = []string{}
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

var (
	nameProp   = prop("string", "Name of the image in the store")
	regionProp = map[string]interface{}{
		"type":        "object",
		"description": "Optional analysis region (inclusive pixel bounds). Defaults to the image's analysis bounds",
		"properties": map[string]interface{}{
			"left":   map[string]interface{}{"type": "integer"},
			"top":    map[string]interface{}{"type": "integer"},
			"right":  map[string]interface{}{"type": "integer"},
			"bottom": map[string]interface{}{"type": "integer"},
		},
		"required": []string{"left", "top", "right", "bottom"},
	}
	thresholdProp = prop("string",
		"Threshold string: '<int> [*|%|#|$|&] [<pixels> [>|<]] [<max eccentricity>]', e.g. '10 %' or '5 $ 4 > 3'")
	annotateProp = propDefault("boolean", "Mark results on the image overlay", false)
	pixelProp    = prop("number", "Pixel size in microns. Defaults to the server configuration")
)

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Image Store
		{
			Name:        "image_create",
			Description: "Create an image in the store, optionally from base64 pixel data. Missing dimensions are inferred from the data length or an embedded header. Replaces any image of the same name.",
			InputSchema: objectSchema(map[string]interface{}{
				"name":        prop("string", "Image name. Generated if empty"),
				"width":       prop("integer", "Width in pixels (10-10000)"),
				"height":      prop("integer", "Height in pixels (10-10000)"),
				"bounds":      regionProp,
				"results":     prop("string", "Results text carried with the image"),
				"data_base64": prop("string", "Pixel bytes, row-major, one byte per pixel"),
				"try_header":  propDefault("boolean", "Use a valid header embedded in the data", false),
			}),
		},
		{
			Name:        "image_load",
			Description: "Load a PNG, JPEG, GIF, TIFF or BMP file into the store as an 8-bit grey image.",
			InputSchema: objectSchema(map[string]interface{}{
				"path":       prop("string", "Absolute path to the image file"),
				"name":       prop("string", "Image name. Generated if empty"),
				"try_header": propDefault("boolean", "Restore bounds and results from a header in row 0", true),
			}, "path"),
		},
		{
			Name:        "image_save",
			Description: "Save an image to a file with its header encoded into row 0.",
			InputSchema: objectSchema(map[string]interface{}{
				"name": nameProp,
				"path": prop("string", "Destination path; the extension selects the format"),
			}, "name", "path"),
		},
		{
			Name:        "image_list",
			Description: "List image names matching a glob pattern (*, ?, [...]).",
			InputSchema: objectSchema(map[string]interface{}{
				"pattern": propDefault("string", "Glob pattern", "*"),
			}),
		},
		{
			Name:        "image_destroy",
			Description: "Destroy every image whose name matches a glob pattern.",
			InputSchema: objectSchema(map[string]interface{}{
				"pattern": prop("string", "Glob pattern"),
			}, "pattern"),
		},
		{
			Name:        "image_rename",
			Description: "Rename an image, destroying any image that already holds the new name.",
			InputSchema: objectSchema(map[string]interface{}{
				"name":     nameProp,
				"new_name": prop("string", "New image name"),
			}, "name", "new_name"),
		},
		{
			Name:        "image_info",
			Description: "Return an image's header fields and intensity statistics within its analysis bounds.",
			InputSchema: objectSchema(map[string]interface{}{
				"name":   nameProp,
				"region": regionProp,
			}, "name"),
		},
		{
			Name:        "image_header_encode",
			Description: "Write the image metadata into row 0 of its pixels and return the encoded header bytes.",
			InputSchema: objectSchema(map[string]interface{}{
				"name": nameProp,
			}, "name"),
		},
		{
			Name:        "image_data_read",
			Description: "Read bytes from the data space of an image (every row after row 0).",
			InputSchema: objectSchema(map[string]interface{}{
				"name":   nameProp,
				"offset": propDefault("integer", "Byte offset into the data space", 0),
				"length": prop("integer", "Number of bytes"),
			}, "name", "length"),
		},
		{
			Name:        "image_data_write",
			Description: "Write bytes into the data space of an image (every row after row 0).",
			InputSchema: objectSchema(map[string]interface{}{
				"name":        nameProp,
				"offset":      propDefault("integer", "Byte offset into the data space", 0),
				"data_base64": prop("string", "Bytes to write"),
			}, "name", "data_base64"),
		},
		{
			Name:        "image_manipulate",
			Description: "Transform an image: none, invert, smooth, rotate, crop (to analysis bounds) or threshold.",
			InputSchema: objectSchema(map[string]interface{}{
				"name": nameProp,
				"operation": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"none", "invert", "smooth", "rotate", "crop", "threshold"},
					"description": "Manipulation to apply",
				},
				"angle":       prop("number", "Rotation angle in radians (rotate)"),
				"threshold":   thresholdProp,
				"replace":     propDefault("boolean", "Overwrite the source image instead of creating a new one", false),
				"result_name": prop("string", "Name of the new image. Defaults to <name>_<operation>"),
			}, "name", "operation"),
		},
		{
			Name:        "image_export",
			Description: "Return the image with its overlay as a base64 PNG.",
			InputSchema: objectSchema(map[string]interface{}{
				"name": nameProp,
				"zoom": propDefault("number", "Scale factor", 1.0),
			}, "name"),
		},

		// Overlay
		{
			Name:        "overlay_clear",
			Description: "Clear the annotation overlay of an image.",
			InputSchema: objectSchema(map[string]interface{}{
				"name": nameProp,
			}, "name"),
		},
		{
			Name:        "overlay_fill",
			Description: "Fill the annotation overlay of an image with one colour.",
			InputSchema: objectSchema(map[string]interface{}{
				"name":  nameProp,
				"color": propDefault("string", "Palette name or #RRGGBB", "blue"),
			}, "name"),
		},
		{
			Name:        "overlay_draw",
			Description: "Draw on the overlay: a rectangle, line or cross, or paint pixels whose intensity lies in [low, high].",
			InputSchema: objectSchema(map[string]interface{}{
				"name": nameProp,
				"shape": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"rect", "line", "cross", "paint"},
					"description": "What to draw",
				},
				"x1":     prop("integer", "First x coordinate (or cross centre)"),
				"y1":     prop("integer", "First y coordinate (or cross centre)"),
				"x2":     prop("integer", "Second x coordinate"),
				"y2":     prop("integer", "Second y coordinate"),
				"size":   propDefault("integer", "Cross half-size", 5),
				"low":    prop("integer", "Lowest intensity to paint"),
				"high":   propDefault("integer", "Highest intensity to paint", 255),
				"region": regionProp,
				"color":  propDefault("string", "Palette name or #RRGGBB", "red"),
			}, "name", "shape"),
		},

		// Detection
		{
			Name:        "threshold_parse",
			Description: "Evaluate a threshold string against an image's statistics.",
			InputSchema: objectSchema(map[string]interface{}{
				"name":      nameProp,
				"threshold": thresholdProp,
				"region":    regionProp,
			}, "name", "threshold"),
		},
		{
			Name:        "spot_find",
			Description: "Find bright spots above threshold and report positions, sizes and intensities, ranked and truncated.",
			InputSchema: objectSchema(map[string]interface{}{
				"name":      nameProp,
				"threshold": thresholdProp,
				"method": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"centroid", "ellipse", "vertical_line"},
					"description": "Position estimator",
					"default":     "centroid",
				},
				"sort_code":     prop("integer", "1 brightness, 2/3 increasing/decreasing x, 4/5 increasing/decreasing y, 6 peak intensity, 7 size, 8 increasing x+y"),
				"num":           propDefault("integer", "Number of spots to report", 1),
				"pixel_size_um": pixelProp,
				"annotate":      annotateProp,
				"region":        regionProp,
			}, "name", "threshold"),
		},
		{
			Name:        "hit_count",
			Description: "Count every spot above threshold, as a dosimeter counts hits, and list the brightest.",
			InputSchema: objectSchema(map[string]interface{}{
				"name":      nameProp,
				"threshold": thresholdProp,
				"num":       propDefault("integer", "Number of hit intensities to list", 10),
				"annotate":  annotateProp,
				"region":    regionProp,
			}, "name", "threshold"),
		},
		{
			Name:        "wire_find",
			Description: "Fit straight vertical lines to bright wire images; report intercept with the top of the region and rotation.",
			InputSchema: objectSchema(map[string]interface{}{
				"name":          nameProp,
				"threshold":     thresholdProp,
				"num":           propDefault("integer", "Number of wires", 1),
				"pixel_size_um": pixelProp,
				"annotate":      annotateProp,
				"region":        regionProp,
			}, "name", "threshold"),
		},
		{
			Name:        "shadow_find",
			Description: "Locate line-like shadows (vertical bands) and report position and rotation relative to a reference line.",
			InputSchema: objectSchema(map[string]interface{}{
				"name":            nameProp,
				"num":             propDefault("integer", "Number of shadows", 1),
				"approximate":     propDefault("boolean", "Skip the refining fit", false),
				"polarity":        propDefault("string", "dark or light bands", "dark"),
				"reference_row":   prop("number", "Row at which positions are measured. Defaults to the middle of the region"),
				"reference_angle": prop("number", "Reference angle in radians"),
				"min_depth":       prop("number", "Minimum band contrast in intensity units"),
				"separation":      prop("integer", "Minimum separation of shadows in columns"),
				"pixel_size_um":   pixelProp,
				"annotate":        annotateProp,
				"region":          regionProp,
			}, "name"),
		},
	}
}
