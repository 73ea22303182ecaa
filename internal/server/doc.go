// Package server exposes the image store and spot detection over the MCP
// (Model Context Protocol) stdio transport.
//
// Requests arrive as JSON-RPC 2.0 objects, one per line, and responses are
// written one per line. Supported methods are initialize, tools/list,
// tools/call and ping; notifications get no response.
//
// # Tools
//
// Image store:
//   - image_create, image_load, image_save, image_list, image_destroy,
//     image_rename, image_info
//
// Raw access:
//   - image_header_encode, image_data_read, image_data_write
//
// Processing and display:
//   - image_manipulate, image_export, overlay_clear, overlay_fill,
//     overlay_draw
//
// Analysis:
//   - threshold_parse, spot_find, hit_count, wire_find, shadow_find
//
// # Errors
//
// Tool failures map onto JSON-RPC error codes by the sentinel they wrap:
// -32001 for a missing image, -32602 for a bad argument, -32002 for an
// out-of-range access, -32003 for an allocation failure, and -32000 for
// anything else.
//
// # Configuration
//
// Config is read from an optional TOML file and SPOT_MCP_* environment
// variables; see LoadConfig.
package server
