package server

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestGetToolDefinitions(t *testing.T) {
	tools := GetToolDefinitions()

	if len(tools) == 0 {
		t.Fatal("GetToolDefinitions returned empty slice")
	}

	expectedTools := []string{
		"image_create",
		"image_load",
		"image_save",
		"image_list",
		"image_destroy",
		"image_rename",
		"image_info",
		"image_header_encode",
		"image_data_read",
		"image_data_write",
		"image_manipulate",
		"image_export",
		"overlay_clear",
		"overlay_fill",
		"overlay_draw",
		"threshold_parse",
		"spot_find",
		"hit_count",
		"wire_find",
		"shadow_find",
	}

	toolMap := make(map[string]Tool)
	for _, tool := range tools {
		if _, dup := toolMap[tool.Name]; dup {
			t.Errorf("Tool %s defined twice", tool.Name)
		}
		toolMap[tool.Name] = tool
	}

	for _, name := range expectedTools {
		if _, ok := toolMap[name]; !ok {
			t.Errorf("Expected tool %s not found", name)
		}
	}
	if len(tools) != len(expectedTools) {
		t.Errorf("Tool count: got %d, want %d", len(tools), len(expectedTools))
	}
}

func TestToolDefinitions_Structure(t *testing.T) {
	tools := GetToolDefinitions()

	for _, tool := range tools {
		t.Run(tool.Name, func(t *testing.T) {
			if tool.Name == "" {
				t.Error("Tool name is empty")
			}
			if tool.Description == "" {
				t.Error("Tool description is empty")
			}
			if tool.InputSchema == nil {
				t.Fatal("Tool InputSchema is nil")
			}
			if tool.InputSchema["type"] != "object" {
				t.Errorf("InputSchema type: got %v, want 'object'", tool.InputSchema["type"])
			}

			props, ok := tool.InputSchema["properties"].(map[string]interface{})
			if !ok {
				t.Fatal("InputSchema properties should be a map")
			}
			required, ok := tool.InputSchema["required"].([]string)
			if !ok {
				t.Fatal("'required' should be a string slice")
			}
			// Every required parameter must be described
			for _, r := range required {
				if _, ok := props[r]; !ok {
					t.Errorf("required parameter %q has no property", r)
				}
			}
		})
	}
}

func TestToolDefinitions_RequiredName(t *testing.T) {
	// Tools acting on a stored image require its name
	toolsRequiringName := []string{
		"image_save",
		"image_rename",
		"image_info",
		"image_header_encode",
		"image_data_read",
		"image_data_write",
		"image_manipulate",
		"image_export",
		"overlay_clear",
		"overlay_fill",
		"overlay_draw",
		"threshold_parse",
		"spot_find",
		"hit_count",
		"wire_find",
		"shadow_find",
	}

	toolMap := make(map[string]Tool)
	for _, tool := range GetToolDefinitions() {
		toolMap[tool.Name] = tool
	}

	for _, name := range toolsRequiringName {
		tool, ok := toolMap[name]
		if !ok {
			t.Errorf("Tool %s not found", name)
			continue
		}

		t.Run(name, func(t *testing.T) {
			requiredList, _ := tool.InputSchema["required"].([]string)
			hasName := false
			for _, r := range requiredList {
				if r == "name" {
					hasName = true
					break
				}
			}
			if !hasName {
				t.Error("Tool should require 'name' parameter")
			}
		})
	}
}

func TestToolDefinitions_Enums(t *testing.T) {
	tests := []struct {
		tool  string
		param string
		want  []string
	}{
		{"image_manipulate", "operation", []string{"none", "invert", "smooth", "rotate", "crop", "threshold"}},
		{"spot_find", "method", []string{"centroid", "ellipse", "vertical_line"}},
		{"overlay_draw", "shape", []string{"rect", "line", "cross", "paint"}},
	}

	toolMap := make(map[string]Tool)
	for _, tool := range GetToolDefinitions() {
		toolMap[tool.Name] = tool
	}

	for _, tt := range tests {
		t.Run(tt.tool+"."+tt.param, func(t *testing.T) {
			props, ok := toolMap[tt.tool].InputSchema["properties"].(map[string]interface{})
			if !ok {
				t.Fatal("properties should be a map")
			}
			param, ok := props[tt.param].(map[string]interface{})
			if !ok {
				t.Fatalf("%s property should exist and be a map", tt.param)
			}
			enum, ok := param["enum"].([]string)
			if !ok {
				t.Fatalf("%s should have enum", tt.param)
			}
			if strings.Join(enum, ",") != strings.Join(tt.want, ",") {
				t.Errorf("enum: got %v, want %v", enum, tt.want)
			}
		})
	}
}

func TestToolDefinitions_OptionalDefaults(t *testing.T) {
	toolDefaults := map[string]map[string]interface{}{
		"image_load":   {"try_header": true},
		"image_list":   {"pattern": "*"},
		"image_export": {"zoom": 1.0},
		"overlay_fill": {"color": "blue"},
		"overlay_draw": {"size": 5, "high": 255, "color": "red"},
		"spot_find":    {"num": 1, "method": "centroid", "annotate": false},
		"hit_count":    {"num": 10},
		"wire_find":    {"num": 1},
		"shadow_find":  {"num": 1, "approximate": false, "polarity": "dark"},
	}

	toolMap := make(map[string]Tool)
	for _, tool := range GetToolDefinitions() {
		toolMap[tool.Name] = tool
	}

	for toolName, expectedDefaults := range toolDefaults {
		tool, ok := toolMap[toolName]
		if !ok {
			t.Errorf("Tool %s not found", toolName)
			continue
		}

		props, ok := tool.InputSchema["properties"].(map[string]interface{})
		if !ok {
			t.Errorf("%s: properties should be a map", toolName)
			continue
		}

		for paramName, expectedDefault := range expectedDefaults {
			param, ok := props[paramName].(map[string]interface{})
			if !ok {
				t.Errorf("%s.%s: parameter not found or not a map", toolName, paramName)
				continue
			}

			actualDefault, ok := param["default"]
			if !ok {
				t.Errorf("%s.%s: missing default value", toolName, paramName)
				continue
			}
			if actualDefault != expectedDefault {
				t.Errorf("%s.%s: default got %v (%T), want %v (%T)",
					toolName, paramName, actualDefault, actualDefault, expectedDefault, expectedDefault)
			}
		}
	}
}

func TestToolDefinitions_AllDispatched(t *testing.T) {
	s := newTestServer(t)

	for _, tool := range GetToolDefinitions() {
		t.Run(tool.Name, func(t *testing.T) {
			_, err := s.executeTool(tool.Name, json.RawMessage(`{}`))
			if err != nil && strings.Contains(err.Error(), "unknown tool") {
				t.Errorf("Tool %s has no handler", tool.Name)
			}
		})
	}
}

func TestHandleToolsList(t *testing.T) {
	s := newTestServer(t)
	req := &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
	}

	resp := s.handleToolsList(req)

	if resp == nil {
		t.Fatal("handleToolsList returned nil")
	}
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}

	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}

	toolsList, ok := result["tools"].([]Tool)
	if !ok {
		t.Fatal("tools should be a slice of Tool")
	}

	expected := GetToolDefinitions()
	if len(toolsList) != len(expected) {
		t.Errorf("Tool count: got %d, want %d", len(toolsList), len(expected))
	}
}
