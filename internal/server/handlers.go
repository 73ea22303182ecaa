package server

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"

	"github.com/ironsheep/spot-engine/internal/detection"
	"github.com/ironsheep/spot-engine/internal/imaging"
	"github.com/sirupsen/logrus"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_create", "spot_find").
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
// Tool execution errors return a JSON-RPC error response whose code reflects
// the error kind; see errorCode.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	log := s.log.WithField("tool", params.Name)
	log.Debug("Tool call")

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		log.WithError(err).Warn("Tool execution failed")
		return s.errorResponse(req.ID, errorCode(err), "Tool execution failed", err.Error())
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
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Applies default values for optional parameters
//  3. Looks up images in the store as needed
//  4. Calls the appropriate imaging/detection function
//  5. Returns the result or error
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Image Store
	case "image_create":
		return s.handleImageCreate(args)
	case "image_load":
		return s.handleImageLoad(args)
	case "image_save":
		return s.handleImageSave(args)
	case "image_list":
		return s.handleImageList(args)
	case "image_destroy":
		return s.handleImageDestroy(args)
	case "image_rename":
		return s.handleImageRename(args)
	case "image_info":
		return s.handleImageInfo(args)
	case "image_header_encode":
		return s.handleImageHeaderEncode(args)
	case "image_data_read":
		return s.handleImageDataRead(args)
	case "image_data_write":
		return s.handleImageDataWrite(args)
	case "image_manipulate":
		return s.handleImageManipulate(args)
	case "image_export":
		return s.handleImageExport(args)

	// Overlay
	case "overlay_clear":
		return s.handleOverlayClear(args)
	case "overlay_fill":
		return s.handleOverlayFill(args)
	case "overlay_draw":
		return s.handleOverlayDraw(args)

	// Detection
	case "threshold_parse":
		return s.handleThresholdParse(args)
	case "spot_find":
		return s.handleSpotFind(args)
	case "hit_count":
		return s.handleHitCount(args)
	case "wire_find":
		return s.handleWireFind(args)
	case "shadow_find":
		return s.handleShadowFind(args)

	default:
		return nil, fmt.Errorf("%w: unknown tool: %s", imaging.ErrInvalidArgument, name)
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

// decodeArgs unmarshals tool arguments, tagging failures as invalid
// arguments. Empty arguments leave a zero value.
func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: %v", imaging.ErrInvalidArgument, err)
	}
	return nil
}

// rect converts an optional inclusive region to a rectangle, empty when
// absent so that the image's analysis bounds apply.
func rect(r *imaging.Bounds) image.Rectangle {
	if r == nil {
		return image.Rectangle{}
	}
	return r.Rect()
}

// pixelSize returns the per-call pixel size, or the configured one.
func (s *Server) pixelSize(v float64) float64 {
	if v > 0 {
		return v
	}
	return s.cfg.PixelSizeUM
}

// extractOptions builds segmentation options from the server configuration.
func (s *Server) extractOptions(region image.Rectangle, tool string) detection.Options {
	log := s.log.WithField("tool", tool)
	yields := 0
	return detection.Options{
		Region: region,
		Yield: func() {
			yields++
			log.WithField("yields", yields).Trace("Extraction progress")
		},
		YieldInterval: s.cfg.YieldInterval,
		MaxComponents: s.cfg.MaxComponents,
	}
}

// === Image Store Handlers ===

// ImageCreateArgs contains parameters for the image_create tool.
type ImageCreateArgs struct {
	Name       string          `json:"name"`
	Width      int             `json:"width"`
	Height     int             `json:"height"`
	Bounds     *imaging.Bounds `json:"bounds"`
	Results    string          `json:"results"`
	DataBase64 string          `json:"data_base64"`
	TryHeader  bool            `json:"try_header"`
}

// ImageResult describes an image in tool results.
type ImageResult struct {
	Name       string         `json:"name"`
	Header     imaging.Header `json:"header"`
	DataLength int            `json:"data_length"`
}

func describe(img *imaging.Image) *ImageResult {
	return &ImageResult{
		Name:       img.Name(),
		Header:     imaging.HeaderOf(img),
		DataLength: img.DataLength(),
	}
}

func (s *Server) handleImageCreate(args json.RawMessage) (interface{}, error) {
	var a ImageCreateArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	var data []byte
	if a.DataBase64 != "" {
		var err error
		data, err = base64.StdEncoding.DecodeString(a.DataBase64)
		if err != nil {
			return nil, fmt.Errorf("%w: data_base64: %v", imaging.ErrInvalidArgument, err)
		}
	}
	img, err := s.store.Create(imaging.CreateOptions{
		Name:      a.Name,
		Width:     a.Width,
		Height:    a.Height,
		Bounds:    a.Bounds,
		Results:   a.Results,
		Data:      data,
		TryHeader: a.TryHeader,
	})
	if err != nil {
		return nil, err
	}
	return describe(img), nil
}

// ImageLoadArgs contains parameters for the image_load tool.
type ImageLoadArgs struct {
	Path      string `json:"path"`
	Name      string `json:"name"`
	TryHeader *bool  `json:"try_header"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a ImageLoadArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	tryHeader := true
	if a.TryHeader != nil {
		tryHeader = *a.TryHeader
	}
	img, err := s.store.Load(a.Path, a.Name, tryHeader)
	if err != nil {
		return nil, err
	}
	return describe(img), nil
}

// ImageSaveArgs contains parameters for the image_save tool.
type ImageSaveArgs struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

func (s *Server) handleImageSave(args json.RawMessage) (interface{}, error) {
	var a ImageSaveArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := s.store.Save(a.Name, a.Path); err != nil {
		return nil, err
	}
	return map[string]interface{}{"name": a.Name, "path": a.Path}, nil
}

// PatternArgs contains parameters for the image_list and image_destroy tools.
type PatternArgs struct {
	Pattern string `json:"pattern"`
}

func (s *Server) handleImageList(args json.RawMessage) (interface{}, error) {
	var a PatternArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Pattern == "" {
		a.Pattern = "*"
	}
	names, err := s.store.List(a.Pattern)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"names": names, "count": len(names)}, nil
}

func (s *Server) handleImageDestroy(args json.RawMessage) (interface{}, error) {
	var a PatternArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Pattern == "" {
		return nil, fmt.Errorf("%w: pattern is required", imaging.ErrInvalidArgument)
	}
	n, err := s.store.DestroyMatching(a.Pattern)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"destroyed": n}, nil
}

// ImageRenameArgs contains parameters for the image_rename tool.
type ImageRenameArgs struct {
	Name    string `json:"name"`
	NewName string `json:"new_name"`
}

func (s *Server) handleImageRename(args json.RawMessage) (interface{}, error) {
	var a ImageRenameArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := s.store.Rename(a.Name, a.NewName); err != nil {
		return nil, err
	}
	img, err := s.store.Lookup(a.NewName)
	if err != nil {
		return nil, err
	}
	return describe(img), nil
}

// NameArgs contains the single image name most tools take.
type NameArgs struct {
	Name   string          `json:"name"`
	Region *imaging.Bounds `json:"region"`
}

func (s *Server) handleImageInfo(args json.RawMessage) (interface{}, error) {
	var a NameArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	img, err := s.store.Lookup(a.Name)
	if err != nil {
		return nil, err
	}
	r := img.Region(rect(a.Region))
	return map[string]interface{}{
		"image":  describe(img),
		"region": imaging.BoundsFromRect(r),
		"stats":  img.Stats(r),
	}, nil
}

func (s *Server) handleImageHeaderEncode(args json.RawMessage) (interface{}, error) {
	var a NameArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	img, err := s.store.Lookup(a.Name)
	if err != nil {
		return nil, err
	}
	imaging.EncodeHeader(img)
	return map[string]interface{}{
		"name":          img.Name(),
		"header_base64": base64.StdEncoding.EncodeToString(imaging.MarshalHeader(imaging.HeaderOf(img))),
	}, nil
}

// DataArgs contains parameters for the image_data_read and image_data_write tools.
type DataArgs struct {
	Name       string `json:"name"`
	Offset     int    `json:"offset"`
	Length     int    `json:"length"`
	DataBase64 string `json:"data_base64"`
}

func (s *Server) handleImageDataRead(args json.RawMessage) (interface{}, error) {
	var a DataArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	img, err := s.store.Lookup(a.Name)
	if err != nil {
		return nil, err
	}
	data, err := img.ReadData(a.Offset, a.Length)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"offset":      a.Offset,
		"length":      len(data),
		"data_base64": base64.StdEncoding.EncodeToString(data),
	}, nil
}

func (s *Server) handleImageDataWrite(args json.RawMessage) (interface{}, error) {
	var a DataArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(a.DataBase64)
	if err != nil {
		return nil, fmt.Errorf("%w: data_base64: %v", imaging.ErrInvalidArgument, err)
	}
	img, err := s.store.Lookup(a.Name)
	if err != nil {
		return nil, err
	}
	if err := img.WriteData(a.Offset, data); err != nil {
		return nil, err
	}
	return map[string]interface{}{"offset": a.Offset, "length": len(data)}, nil
}

// ImageManipulateArgs contains parameters for the image_manipulate tool.
type ImageManipulateArgs struct {
	Name       string  `json:"name"`
	Operation  string  `json:"operation"`
	Angle      float64 `json:"angle"`
	Threshold  string  `json:"threshold"`
	Replace    bool    `json:"replace"`
	ResultName string  `json:"result_name"`
}

func (s *Server) handleImageManipulate(args json.RawMessage) (interface{}, error) {
	var a ImageManipulateArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	op, err := imaging.ParseManipulation(a.Operation)
	if err != nil {
		return nil, err
	}
	opts := imaging.ManipulateOptions{
		Op:      op,
		Angle:   a.Angle,
		Replace: a.Replace,
		Name:    a.ResultName,
	}
	if op == imaging.ManipThreshold {
		img, err := s.store.Lookup(a.Name)
		if err != nil {
			return nil, err
		}
		th, err := detection.ThresholdFor(img, a.Threshold, image.Rectangle{})
		if err != nil {
			return nil, err
		}
		opts.Threshold = th.Threshold
		opts.Background = th.Background
	}
	img, err := s.store.Manipulate(a.Name, opts)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"source": a.Name, "result": img.Name(), "op": op.String()}).Debug("Manipulated image")
	return describe(img), nil
}

// ImageExportArgs contains parameters for the image_export tool.
type ImageExportArgs struct {
	Name string  `json:"name"`
	Zoom float64 `json:"zoom"`
}

func (s *Server) handleImageExport(args json.RawMessage) (interface{}, error) {
	var a ImageExportArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Zoom == 0 {
		a.Zoom = 1
	}
	img, err := s.store.Lookup(a.Name)
	if err != nil {
		return nil, err
	}
	return imaging.Export(img, a.Zoom)
}

// === Overlay Handlers ===

func (s *Server) handleOverlayClear(args json.RawMessage) (interface{}, error) {
	var a NameArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	img, err := s.store.Lookup(a.Name)
	if err != nil {
		return nil, err
	}
	img.ClearOverlay()
	return map[string]interface{}{"name": img.Name()}, nil
}

// OverlayFillArgs contains parameters for the overlay_fill tool.
type OverlayFillArgs struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (s *Server) handleOverlayFill(args json.RawMessage) (interface{}, error) {
	var a OverlayFillArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Color == "" {
		a.Color = "blue"
	}
	c, err := imaging.ParseColor(a.Color)
	if err != nil {
		return nil, err
	}
	img, err := s.store.Lookup(a.Name)
	if err != nil {
		return nil, err
	}
	img.FillOverlay(c)
	return map[string]interface{}{"name": img.Name(), "color": a.Color}, nil
}

// OverlayDrawArgs contains parameters for the overlay_draw tool.
type OverlayDrawArgs struct {
	Name   string          `json:"name"`
	Shape  string          `json:"shape"`
	X1     int             `json:"x1"`
	Y1     int             `json:"y1"`
	X2     int             `json:"x2"`
	Y2     int             `json:"y2"`
	Size   int             `json:"size"`
	Low    int             `json:"low"`
	High   int             `json:"high"`
	Region *imaging.Bounds `json:"region"`
	Color  string          `json:"color"`
}

func (s *Server) handleOverlayDraw(args json.RawMessage) (interface{}, error) {
	var a OverlayDrawArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Color == "" {
		a.Color = "red"
	}
	if a.Size == 0 {
		a.Size = 5
	}
	if a.High == 0 {
		a.High = 255
	}
	c, err := imaging.ParseColor(a.Color)
	if err != nil {
		return nil, err
	}
	img, err := s.store.Lookup(a.Name)
	if err != nil {
		return nil, err
	}

	p1, p2 := image.Pt(a.X1, a.Y1), image.Pt(a.X2, a.Y2)
	switch a.Shape {
	case "rect":
		r := image.Rectangle{Min: p1, Max: p2}.Canon()
		r.Max = r.Max.Add(image.Pt(1, 1))
		img.DrawRect(r, c)
	case "line":
		img.DrawLine(p1, p2, c)
	case "cross":
		img.DrawCross(p1, a.Size, c)
	case "paint":
		img.PaintOverlay(img.Region(rect(a.Region)), a.Low, a.High, c)
	default:
		return nil, fmt.Errorf("%w: unknown shape %q", imaging.ErrInvalidArgument, a.Shape)
	}
	return map[string]interface{}{"name": img.Name(), "shape": a.Shape}, nil
}

// === Detection Handlers ===

// ThresholdArgs contains parameters for the threshold_parse tool.
type ThresholdArgs struct {
	Name      string          `json:"name"`
	Threshold string          `json:"threshold"`
	Region    *imaging.Bounds `json:"region"`
}

func (s *Server) handleThresholdParse(args json.RawMessage) (interface{}, error) {
	var a ThresholdArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	img, err := s.store.Lookup(a.Name)
	if err != nil {
		return nil, err
	}
	r := img.Region(rect(a.Region))
	st := img.Stats(r)
	th, err := detection.ParseThreshold(a.Threshold, st)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"threshold": th, "stats": st}, nil
}

// SpotFindArgs contains parameters for the spot_find tool.
type SpotFindArgs struct {
	Name        string          `json:"name"`
	Threshold   string          `json:"threshold"`
	Method      string          `json:"method"`
	SortCode    int             `json:"sort_code"`
	Num         *int            `json:"num"`
	PixelSizeUM float64         `json:"pixel_size_um"`
	Annotate    bool            `json:"annotate"`
	Region      *imaging.Bounds `json:"region"`
}

func (s *Server) handleSpotFind(args json.RawMessage) (interface{}, error) {
	var a SpotFindArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Method == "" {
		a.Method = detection.MethodCentroid.String()
	}
	if a.SortCode == 0 {
		a.SortCode = s.cfg.DefaultSortCode
	}
	num := intOr(a.Num, 1)

	method, err := detection.ParseMethod(a.Method)
	if err != nil {
		return nil, err
	}
	code, err := detection.ParseSortCode(a.SortCode)
	if err != nil {
		return nil, err
	}
	img, err := s.store.Lookup(a.Name)
	if err != nil {
		return nil, err
	}
	return detection.FindSpots(img, detection.SpotRequest{
		Threshold: a.Threshold,
		Method:    method,
		Sort:      code,
		Num:       num,
		PixelSize: s.pixelSize(a.PixelSizeUM),
		Annotate:  a.Annotate,
		Options:   s.extractOptions(rect(a.Region), "spot_find"),
	})
}

// HitCountArgs contains parameters for the hit_count tool.
type HitCountArgs struct {
	Name      string          `json:"name"`
	Threshold string          `json:"threshold"`
	Num       *int            `json:"num"`
	Annotate  bool            `json:"annotate"`
	Region    *imaging.Bounds `json:"region"`
}

func (s *Server) handleHitCount(args json.RawMessage) (interface{}, error) {
	var a HitCountArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	img, err := s.store.Lookup(a.Name)
	if err != nil {
		return nil, err
	}
	return detection.CountHits(img, detection.HitRequest{
		Threshold: a.Threshold,
		Num:       intOr(a.Num, 10),
		Annotate:  a.Annotate,
		Options:   s.extractOptions(rect(a.Region), "hit_count"),
	})
}

// WireFindArgs contains parameters for the wire_find tool.
type WireFindArgs struct {
	Name        string          `json:"name"`
	Threshold   string          `json:"threshold"`
	Num         *int            `json:"num"`
	PixelSizeUM float64         `json:"pixel_size_um"`
	Annotate    bool            `json:"annotate"`
	Region      *imaging.Bounds `json:"region"`
}

func (s *Server) handleWireFind(args json.RawMessage) (interface{}, error) {
	var a WireFindArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	img, err := s.store.Lookup(a.Name)
	if err != nil {
		return nil, err
	}
	return detection.FindWires(img, detection.WireRequest{
		Threshold: a.Threshold,
		Num:       intOr(a.Num, 1),
		PixelSize: s.pixelSize(a.PixelSizeUM),
		Annotate:  a.Annotate,
		Options:   s.extractOptions(rect(a.Region), "wire_find"),
	})
}

// ShadowFindArgs contains parameters for the shadow_find tool.
type ShadowFindArgs struct {
	Name           string          `json:"name"`
	Num            *int            `json:"num"`
	Approximate    bool            `json:"approximate"`
	Polarity       string          `json:"polarity"`
	ReferenceRow   float64         `json:"reference_row"`
	ReferenceAngle float64         `json:"reference_angle"`
	MinDepth       float64         `json:"min_depth"`
	Separation     int             `json:"separation"`
	PixelSizeUM    float64         `json:"pixel_size_um"`
	Annotate       bool            `json:"annotate"`
	Region         *imaging.Bounds `json:"region"`
}

func (s *Server) handleShadowFind(args json.RawMessage) (interface{}, error) {
	var a ShadowFindArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	var polarity detection.Polarity
	switch a.Polarity {
	case "", "dark":
		polarity = detection.Dark
	case "light":
		polarity = detection.Light
	default:
		return nil, fmt.Errorf("%w: unknown polarity %q", imaging.ErrInvalidArgument, a.Polarity)
	}
	img, err := s.store.Lookup(a.Name)
	if err != nil {
		return nil, err
	}
	log := s.log.WithField("tool", "shadow_find")
	return detection.FindShadows(img, detection.ShadowRequest{
		ShadowOptions: detection.ShadowOptions{
			Num:         intOr(a.Num, 1),
			Approximate: a.Approximate,
			Polarity:    polarity,
			Reference:   detection.Reference{Row: a.ReferenceRow, Angle: a.ReferenceAngle},
			PixelSize:   s.pixelSize(a.PixelSizeUM),
			MinDepth:    a.MinDepth,
			Separation:  a.Separation,
			Region:      rect(a.Region),
			Yield:       func() { log.Trace("Shadow fit progress") },
		},
		Annotate: a.Annotate,
	})
}

// intOr returns *v, or def when the argument was omitted.
func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
