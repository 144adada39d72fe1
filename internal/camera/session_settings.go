package camera

// PerpetualMode は永続セッション設定の構成種別を表す
type PerpetualMode string

const (
	// PerpetualSingleCamera は単一カメラ構成
	PerpetualSingleCamera PerpetualMode = "single_camera"
	// PerpetualConcurrentCamera は前面背面の同時カメラ構成
	PerpetualConcurrentCamera PerpetualMode = "concurrent_camera"
)

// PerpetualSessionSettings は変更にセッション再構築を要する設定の射影
// 全フィールドが比較可能であり、==の構造等価だけで再バインド要否を判定する
type PerpetualSessionSettings struct {
	Mode            PerpetualMode
	LensFacing      LensFacing
	SecondaryFacing LensFacing
	AspectRatio     AspectRatio
	CaptureMode     CaptureMode
	StreamConfig    StreamConfigMode
	TargetFrameRate int
	Stabilization   StabilizationMode
	DynamicRange    DynamicRange
	ImageFormat     ImageFormat
	VideoQuality    VideoQuality
}

// DerivePerpetual は解決済み設定から永続セッション設定を導出する
// 同時カメラ構成では対応が保証される縮小サブセットに固定する
func DerivePerpetual(s Settings) PerpetualSessionSettings {
	if s.ConcurrentCamera == ConcurrentCameraDual {
		return PerpetualSessionSettings{
			Mode:            PerpetualConcurrentCamera,
			LensFacing:      s.LensFacing,
			SecondaryFacing: s.LensFacing.Opposite(),
			AspectRatio:     s.AspectRatio,
			CaptureMode:     CaptureModeVideoOnly,
			StreamConfig:    StreamConfigMultiStream,
			TargetFrameRate: FrameRateAuto,
			Stabilization:   StabilizationOff,
			DynamicRange:    DynamicRangeSDR,
			ImageFormat:     ImageFormatJPEG,
			VideoQuality:    VideoQualityUnspecified,
		}
	}
	return PerpetualSessionSettings{
		Mode:            PerpetualSingleCamera,
		LensFacing:      s.LensFacing,
		AspectRatio:     s.AspectRatio,
		CaptureMode:     s.CaptureMode,
		StreamConfig:    s.StreamConfig,
		TargetFrameRate: s.TargetFrameRate,
		Stabilization:   s.Stabilization,
		DynamicRange:    s.DynamicRange,
		ImageFormat:     s.ImageFormat,
		VideoQuality:    s.VideoQuality,
	}
}

// TransientSessionSettings は再バインドなしで適用できる設定の射影
type TransientSessionSettings struct {
	ZoomRatios     map[LensFacing]float64
	FlashMode      FlashMode
	TestPattern    TestPattern
	DeviceRotation int
	AudioEnabled   bool
}

// DeriveTransient は解決済み設定から一時セッション設定を導出する
func DeriveTransient(s Settings) TransientSessionSettings {
	return TransientSessionSettings{
		ZoomRatios:     copyZoomMap(s.ZoomRatios),
		FlashMode:      s.FlashMode,
		TestPattern:    s.TestPattern,
		DeviceRotation: s.DeviceRotation,
		AudioEnabled:   s.AudioEnabled,
	}
}
