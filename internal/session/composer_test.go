package session

import (
	"context"
	"math"
	"testing"

	"satsuei/internal/camera"
)

// testCatalog は背面と前面の標準レンズを持つカタログを作る
func testCatalog(t *testing.T) *camera.Catalog {
	t.Helper()
	provider := camera.NewMockProvider()
	provider.AddLens(camera.DefaultRearCapabilities())
	provider.AddLens(camera.DefaultFrontCapabilities())
	provider.SetConcurrentSupported(true)
	catalog, err := camera.NewCatalog(context.Background(), provider)
	if err != nil {
		t.Fatalf("Expected catalog build to succeed, got %v", err)
	}
	return catalog
}

// standardPerpetual は単一カメラ標準モードの永続設定を作る
func standardPerpetual() camera.PerpetualSessionSettings {
	return camera.PerpetualSessionSettings{
		Mode:            camera.PerpetualSingleCamera,
		LensFacing:      camera.LensFacingRear,
		AspectRatio:     camera.AspectRatioSixteenNine,
		CaptureMode:     camera.CaptureModeStandard,
		StreamConfig:    camera.StreamConfigMultiStream,
		TargetFrameRate: camera.FrameRateAuto,
		Stabilization:   camera.StabilizationAuto,
		DynamicRange:    camera.DynamicRangeSDR,
		ImageFormat:     camera.ImageFormatJPEG,
		VideoQuality:    camera.VideoQualityFHD,
	}
}

// countStreams はレグ内の指定種別ストリーム数を数える
func countStreams(leg camera.StreamLeg, kind camera.StreamKind) int {
	count := 0
	for _, s := range leg.Streams {
		if s.Kind == kind {
			count++
		}
	}
	return count
}

// findStream はレグ内の指定種別ストリームを返す
func findStream(t *testing.T, leg camera.StreamLeg, kind camera.StreamKind) camera.StreamSpec {
	t.Helper()
	for _, s := range leg.Streams {
		if s.Kind == kind {
			return s
		}
	}
	t.Fatalf("Expected leg to contain a %s stream", kind)
	return camera.StreamSpec{}
}

func TestComposeStreamGraph_StandardMode(t *testing.T) {
	catalog := testCatalog(t)
	graph := ComposeStreamGraph(standardPerpetual(), catalog)

	if graph.Mode != camera.PerpetualSingleCamera {
		t.Errorf("Expected mode %s, got %s", camera.PerpetualSingleCamera, graph.Mode)
	}
	if len(graph.Legs) != 1 {
		t.Fatalf("Expected 1 leg, got %d", len(graph.Legs))
	}

	leg := graph.Legs[0]
	if !leg.Primary {
		t.Error("Expected single camera leg to be primary")
	}
	if leg.Lens != "lens-rear-0" {
		t.Errorf("Expected lens lens-rear-0, got %s", leg.Lens)
	}
	if leg.Facing != camera.LensFacingRear {
		t.Errorf("Expected facing %s, got %s", camera.LensFacingRear, leg.Facing)
	}

	// 標準モードはプレビュー、静止画、動画の3本
	if len(leg.Streams) != 3 {
		t.Fatalf("Expected 3 streams, got %d", len(leg.Streams))
	}
	for _, kind := range []camera.StreamKind{camera.StreamKindPreview, camera.StreamKindImage, camera.StreamKindVideo} {
		if countStreams(leg, kind) != 1 {
			t.Errorf("Expected exactly 1 %s stream, got %d", kind, countStreams(leg, kind))
		}
	}

	// 全画面合成
	if leg.Composition.ScaleX != 1.0 || leg.Composition.ScaleY != 1.0 {
		t.Errorf("Expected full frame scale, got (%v, %v)", leg.Composition.ScaleX, leg.Composition.ScaleY)
	}
	if leg.Composition.OffsetX != 0 || leg.Composition.OffsetY != 0 {
		t.Errorf("Expected centered offset, got (%v, %v)", leg.Composition.OffsetX, leg.Composition.OffsetY)
	}
}

func TestComposeStreamGraph_ImageOnly(t *testing.T) {
	catalog := testCatalog(t)
	p := standardPerpetual()
	p.CaptureMode = camera.CaptureModeImageOnly

	graph := ComposeStreamGraph(p, catalog)
	leg := graph.Legs[0]

	if countStreams(leg, camera.StreamKindVideo) != 0 {
		t.Error("Expected no video stream in image only mode")
	}
	if countStreams(leg, camera.StreamKindImage) != 1 {
		t.Error("Expected an image stream in image only mode")
	}
	if countStreams(leg, camera.StreamKindPreview) != 1 {
		t.Error("Expected a preview stream in image only mode")
	}
}

func TestComposeStreamGraph_VideoOnly(t *testing.T) {
	catalog := testCatalog(t)
	p := standardPerpetual()
	p.CaptureMode = camera.CaptureModeVideoOnly

	graph := ComposeStreamGraph(p, catalog)
	leg := graph.Legs[0]

	if countStreams(leg, camera.StreamKindImage) != 0 {
		t.Error("Expected no image stream in video only mode")
	}
	if countStreams(leg, camera.StreamKindVideo) != 1 {
		t.Error("Expected a video stream in video only mode")
	}
}

func TestComposeStreamGraph_SingleStreamSharesSurface(t *testing.T) {
	catalog := testCatalog(t)
	p := standardPerpetual()
	p.StreamConfig = camera.StreamConfigSingleStream
	p.ImageFormat = camera.ImageFormatJPEG

	graph := ComposeStreamGraph(p, catalog)
	for _, s := range graph.Legs[0].Streams {
		if !s.SharedSurface {
			t.Errorf("Expected %s stream to share the surface in single stream mode", s.Kind)
		}
	}

	// マルチストリームでは共有しない
	p.StreamConfig = camera.StreamConfigMultiStream
	graph = ComposeStreamGraph(p, catalog)
	for _, s := range graph.Legs[0].Streams {
		if s.SharedSurface {
			t.Errorf("Expected %s stream to have its own surface in multi stream mode", s.Kind)
		}
	}
}

func TestComposeStreamGraph_StreamParameters(t *testing.T) {
	catalog := testCatalog(t)
	p := standardPerpetual()
	p.TargetFrameRate = 30
	p.Stabilization = camera.StabilizationOn
	p.DynamicRange = camera.DynamicRangeHLG10
	p.ImageFormat = camera.ImageFormatJPEGUltraHDR
	p.VideoQuality = camera.VideoQualityUHD

	graph := ComposeStreamGraph(p, catalog)
	leg := graph.Legs[0]

	preview := findStream(t, leg, camera.StreamKindPreview)
	if preview.FrameRate != 30 {
		t.Errorf("Expected preview frame rate 30, got %d", preview.FrameRate)
	}
	if preview.Stabilization != camera.StabilizationOn {
		t.Errorf("Expected preview stabilization %s, got %s", camera.StabilizationOn, preview.Stabilization)
	}
	if preview.DynamicRange != camera.DynamicRangeHLG10 {
		t.Errorf("Expected preview dynamic range %s, got %s", camera.DynamicRangeHLG10, preview.DynamicRange)
	}

	image := findStream(t, leg, camera.StreamKindImage)
	if image.ImageFormat != camera.ImageFormatJPEGUltraHDR {
		t.Errorf("Expected image format %s, got %s", camera.ImageFormatJPEGUltraHDR, image.ImageFormat)
	}

	video := findStream(t, leg, camera.StreamKindVideo)
	if video.VideoQuality != camera.VideoQualityUHD {
		t.Errorf("Expected video quality %s, got %s", camera.VideoQualityUHD, video.VideoQuality)
	}
	if video.FrameRate != 30 {
		t.Errorf("Expected video frame rate 30, got %d", video.FrameRate)
	}
}

func TestComposeStreamGraph_Concurrent(t *testing.T) {
	catalog := testCatalog(t)
	p := camera.PerpetualSessionSettings{
		Mode:            camera.PerpetualConcurrentCamera,
		LensFacing:      camera.LensFacingRear,
		SecondaryFacing: camera.LensFacingFront,
		AspectRatio:     camera.AspectRatioSixteenNine,
		CaptureMode:     camera.CaptureModeVideoOnly,
		StreamConfig:    camera.StreamConfigMultiStream,
		TargetFrameRate: camera.FrameRateAuto,
		Stabilization:   camera.StabilizationOff,
		DynamicRange:    camera.DynamicRangeSDR,
		ImageFormat:     camera.ImageFormatJPEG,
		VideoQuality:    camera.VideoQualityUnspecified,
	}

	graph := ComposeStreamGraph(p, catalog)
	if graph.Mode != camera.PerpetualConcurrentCamera {
		t.Errorf("Expected mode %s, got %s", camera.PerpetualConcurrentCamera, graph.Mode)
	}
	if len(graph.Legs) != 2 {
		t.Fatalf("Expected 2 legs, got %d", len(graph.Legs))
	}

	primary := graph.PrimaryLeg()
	if primary.Facing != camera.LensFacingRear {
		t.Errorf("Expected primary facing %s, got %s", camera.LensFacingRear, primary.Facing)
	}
	if countStreams(primary, camera.StreamKindPreview) != 1 || countStreams(primary, camera.StreamKindVideo) != 1 {
		t.Error("Expected primary leg to carry preview and video streams")
	}
	if countStreams(primary, camera.StreamKindImage) != 0 {
		t.Error("Expected no image stream in concurrent mode")
	}
	if primary.Composition.ScaleX != 1.0 {
		t.Errorf("Expected primary full frame scale, got %v", primary.Composition.ScaleX)
	}

	var secondary camera.StreamLeg
	for _, leg := range graph.Legs {
		if !leg.Primary {
			secondary = leg
		}
	}
	if secondary.Facing != camera.LensFacingFront {
		t.Errorf("Expected secondary facing %s, got %s", camera.LensFacingFront, secondary.Facing)
	}
	if secondary.Lens != "lens-front-0" {
		t.Errorf("Expected secondary lens lens-front-0, got %s", secondary.Lens)
	}

	// 副レンズはプレビューのみ
	if len(secondary.Streams) != 1 || secondary.Streams[0].Kind != camera.StreamKindPreview {
		t.Errorf("Expected secondary leg to carry a single preview stream, got %v", secondary.Streams)
	}

	// 右上隅への縮小配置
	if math.Abs(secondary.Composition.ScaleX-1.0/3.0) > 1e-9 {
		t.Errorf("Expected secondary scale 1/3, got %v", secondary.Composition.ScaleX)
	}
	wantOffset := 0.5 - 1.0/3.0/2 - 0.1
	if math.Abs(secondary.Composition.OffsetX-wantOffset) > 1e-9 {
		t.Errorf("Expected secondary offset x %v, got %v", wantOffset, secondary.Composition.OffsetX)
	}
	if math.Abs(secondary.Composition.OffsetY+wantOffset) > 1e-9 {
		t.Errorf("Expected secondary offset y %v, got %v", -wantOffset, secondary.Composition.OffsetY)
	}
	if secondary.Composition.Alpha != 1.0 {
		t.Errorf("Expected secondary alpha 1.0, got %v", secondary.Composition.Alpha)
	}
}
