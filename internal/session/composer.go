package session

import (
	"satsuei/internal/camera"
)

// 同時カメラ構成の固定合成パラメータ
// オフセットは画面中心原点の-0.5〜0.5座標系で、正方向が右下を指す
const (
	primaryAlpha    = 1.0
	secondaryAlpha  = 1.0
	secondaryScale  = 1.0 / 3.0
	secondaryMargin = 0.1
)

// secondaryOffset は副レンズ表示の中心位置
// 右上隅からsecondaryMarginだけ内側に寄せた値になる
var secondaryOffset = 0.5 - secondaryScale/2 - secondaryMargin

// ComposeStreamGraph は解決済み永続設定からバインド用ストリーム構成を組み立てる
// 静止画ストリームは最大1本、動画ストリームも最大1本に制限される
func ComposeStreamGraph(p camera.PerpetualSessionSettings, catalog *camera.Catalog) camera.StreamGraph {
	if p.Mode == camera.PerpetualConcurrentCamera {
		return composeConcurrentGraph(p, catalog)
	}
	return composeSingleGraph(p, catalog)
}

// composeSingleGraph は単一カメラ構成のストリーム束を組み立てる
// キャプチャモードに応じてプレビューへ静止画と動画のストリームを加える
func composeSingleGraph(p camera.PerpetualSessionSettings, catalog *camera.Catalog) camera.StreamGraph {
	caps := catalog.MustCapabilities(p.LensFacing)
	shared := p.StreamConfig == camera.StreamConfigSingleStream

	streams := []camera.StreamSpec{
		{
			Kind:          camera.StreamKindPreview,
			AspectRatio:   p.AspectRatio,
			DynamicRange:  p.DynamicRange,
			FrameRate:     p.TargetFrameRate,
			Stabilization: p.Stabilization,
			SharedSurface: shared,
		},
	}
	if p.CaptureMode == camera.CaptureModeStandard || p.CaptureMode == camera.CaptureModeImageOnly {
		streams = append(streams, camera.StreamSpec{
			Kind:          camera.StreamKindImage,
			AspectRatio:   p.AspectRatio,
			DynamicRange:  p.DynamicRange,
			ImageFormat:   p.ImageFormat,
			SharedSurface: shared,
		})
	}
	if p.CaptureMode == camera.CaptureModeStandard || p.CaptureMode == camera.CaptureModeVideoOnly {
		streams = append(streams, camera.StreamSpec{
			Kind:          camera.StreamKindVideo,
			AspectRatio:   p.AspectRatio,
			DynamicRange:  p.DynamicRange,
			VideoQuality:  p.VideoQuality,
			FrameRate:     p.TargetFrameRate,
			Stabilization: p.Stabilization,
			SharedSurface: shared,
		})
	}

	return camera.StreamGraph{
		Mode: camera.PerpetualSingleCamera,
		Legs: []camera.StreamLeg{
			{
				Lens:        caps.LensID,
				Facing:      p.LensFacing,
				Primary:     true,
				Composition: fullFrameComposition(),
				Streams:     streams,
			},
		},
	}
}

// composeConcurrentGraph は前面背面同時構成のストリーム束を組み立てる
// 主レンズは全画面でプレビューと動画、副レンズは縮小プレビューのみを持つ
// フォーカスやズームなどの操作は主レンズにのみ配線される
func composeConcurrentGraph(p camera.PerpetualSessionSettings, catalog *camera.Catalog) camera.StreamGraph {
	primary := catalog.MustCapabilities(p.LensFacing)
	secondary := catalog.MustCapabilities(p.SecondaryFacing)

	primaryStreams := []camera.StreamSpec{
		{
			Kind:          camera.StreamKindPreview,
			AspectRatio:   p.AspectRatio,
			DynamicRange:  p.DynamicRange,
			FrameRate:     p.TargetFrameRate,
			Stabilization: p.Stabilization,
		},
		{
			Kind:          camera.StreamKindVideo,
			AspectRatio:   p.AspectRatio,
			DynamicRange:  p.DynamicRange,
			VideoQuality:  p.VideoQuality,
			FrameRate:     p.TargetFrameRate,
			Stabilization: p.Stabilization,
		},
	}
	secondaryStreams := []camera.StreamSpec{
		{
			Kind:         camera.StreamKindPreview,
			AspectRatio:  p.AspectRatio,
			DynamicRange: p.DynamicRange,
		},
	}

	return camera.StreamGraph{
		Mode: camera.PerpetualConcurrentCamera,
		Legs: []camera.StreamLeg{
			{
				Lens:        primary.LensID,
				Facing:      p.LensFacing,
				Primary:     true,
				Composition: fullFrameComposition(),
				Streams:     primaryStreams,
			},
			{
				Lens:    secondary.LensID,
				Facing:  p.SecondaryFacing,
				Primary: false,
				Composition: camera.CompositionSettings{
					Alpha:   secondaryAlpha,
					OffsetX: secondaryOffset,
					OffsetY: -secondaryOffset,
					ScaleX:  secondaryScale,
					ScaleY:  secondaryScale,
				},
				Streams: secondaryStreams,
			},
		},
	}
}

// fullFrameComposition は全画面表示の合成設定を返す
func fullFrameComposition() camera.CompositionSettings {
	return camera.CompositionSettings{
		Alpha:   primaryAlpha,
		OffsetX: 0,
		OffsetY: 0,
		ScaleX:  1.0,
		ScaleY:  1.0,
	}
}
