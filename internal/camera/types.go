package camera

import "time"

// LensFacing はレンズの向きを表す
type LensFacing string

const (
	// LensFacingFront は前面レンズ
	LensFacingFront LensFacing = "front"
	// LensFacingRear は背面レンズ
	LensFacingRear LensFacing = "rear"
)

// Opposite は反対側のレンズ向きを返す
func (f LensFacing) Opposite() LensFacing {
	if f == LensFacingFront {
		return LensFacingRear
	}
	return LensFacingFront
}

// AspectRatio はプレビューとキャプチャのアスペクト比を表す
type AspectRatio string

const (
	// AspectRatioFourThree は4:3
	AspectRatioFourThree AspectRatio = "4:3"
	// AspectRatioSixteenNine は16:9
	AspectRatioSixteenNine AspectRatio = "16:9"
	// AspectRatioOneOne は1:1
	AspectRatioOneOne AspectRatio = "1:1"
)

// CaptureMode はキャプチャ対象の構成を表す
type CaptureMode string

const (
	// CaptureModeStandard は静止画と動画の両方を扱う標準構成
	CaptureModeStandard CaptureMode = "standard"
	// CaptureModeImageOnly は静止画専用構成
	CaptureModeImageOnly CaptureMode = "image_only"
	// CaptureModeVideoOnly は動画専用構成
	CaptureModeVideoOnly CaptureMode = "video_only"
)

// StreamConfigMode はストリーム構成方式を表す
type StreamConfigMode string

const (
	// StreamConfigMultiStream は用途ごとに独立したストリームを使う構成
	StreamConfigMultiStream StreamConfigMode = "multi_stream"
	// StreamConfigSingleStream は単一の共有サーフェスに集約する構成
	StreamConfigSingleStream StreamConfigMode = "single_stream"
)

// StabilizationMode は手ぶれ補正方式を表す
type StabilizationMode string

const (
	// StabilizationAuto は利用可能な方式から自動選択する
	StabilizationAuto StabilizationMode = "auto"
	// StabilizationOn は電子式補正
	StabilizationOn StabilizationMode = "on"
	// StabilizationOptical は光学式補正
	StabilizationOptical StabilizationMode = "optical"
	// StabilizationOff は補正なし
	StabilizationOff StabilizationMode = "off"
)

// DynamicRange は映像のダイナミックレンジを表す
type DynamicRange string

const (
	// DynamicRangeSDR は標準ダイナミックレンジ
	DynamicRangeSDR DynamicRange = "sdr"
	// DynamicRangeHLG10 はHLG 10bitのHDR
	DynamicRangeHLG10 DynamicRange = "hlg10"
)

// ImageFormat は静止画フォーマットを表す
type ImageFormat string

const (
	// ImageFormatJPEG は標準JPEG
	ImageFormatJPEG ImageFormat = "jpeg"
	// ImageFormatJPEGUltraHDR はゲインマップ付きJPEG
	ImageFormatJPEGUltraHDR ImageFormat = "jpeg_ultra_hdr"
)

// VideoQuality は動画品質を表す
type VideoQuality string

const (
	// VideoQualityUnspecified は品質未指定(最適値に自動解決)
	VideoQualityUnspecified VideoQuality = "unspecified"
	// VideoQualitySD は480p相当
	VideoQualitySD VideoQuality = "sd"
	// VideoQualityHD は720p相当
	VideoQualityHD VideoQuality = "hd"
	// VideoQualityFHD は1080p相当
	VideoQualityFHD VideoQuality = "fhd"
	// VideoQualityUHD は2160p相当
	VideoQualityUHD VideoQuality = "uhd"
)

// FlashMode はフラッシュ動作を表す
type FlashMode string

const (
	// FlashModeOff はフラッシュなし
	FlashModeOff FlashMode = "off"
	// FlashModeOn は常時発光(録画中はトーチ、発光部なしのレンズでは画面発光)
	FlashModeOn FlashMode = "on"
	// FlashModeAuto は自動発光
	FlashModeAuto FlashMode = "auto"
	// FlashModeLowLightBoost は低照度ブーストAE
	FlashModeLowLightBoost FlashMode = "low_light_boost"
)

// ConcurrentCameraMode は同時カメラ構成を表す
type ConcurrentCameraMode string

const (
	// ConcurrentCameraOff は単一カメラ
	ConcurrentCameraOff ConcurrentCameraMode = "off"
	// ConcurrentCameraDual は前面と背面の同時利用
	ConcurrentCameraDual ConcurrentCameraMode = "dual"
)

// TestPattern はセンサーのテストパターン出力を表す
type TestPattern string

const (
	// TestPatternOff は通常出力
	TestPatternOff TestPattern = "off"
	// TestPatternColorBars はカラーバー出力
	TestPatternColorBars TestPattern = "color_bars"
)

// ExternalCapture は外部アプリからのキャプチャ依頼種別を表す
type ExternalCapture string

const (
	// ExternalCaptureNone は通常起動
	ExternalCaptureNone ExternalCapture = "none"
	// ExternalCaptureImage は静止画キャプチャ依頼
	ExternalCaptureImage ExternalCapture = "image"
	// ExternalCaptureVideo は動画キャプチャ依頼
	ExternalCaptureVideo ExternalCapture = "video"
)

// FrameRateAuto はフレームレート自動選択を表すセンチネル値
const FrameRateAuto = 0

// IsValidRotation はデバイス回転角として有効かを判定する
func IsValidRotation(degrees int) bool {
	switch degrees {
	case 0, 90, 180, 270:
		return true
	}
	return false
}

// Settings は撮影設定全体を表す
// 部分更新は行わず、常に全体を候補として構築してから解決する
type Settings struct {
	LensFacing       LensFacing             `json:"lens_facing"`
	AspectRatio      AspectRatio            `json:"aspect_ratio"`
	CaptureMode      CaptureMode            `json:"capture_mode"`
	StreamConfig     StreamConfigMode       `json:"stream_config"`
	TargetFrameRate  int                    `json:"target_frame_rate"`
	Stabilization    StabilizationMode      `json:"stabilization"`
	DynamicRange     DynamicRange           `json:"dynamic_range"`
	ImageFormat      ImageFormat            `json:"image_format"`
	VideoQuality     VideoQuality           `json:"video_quality"`
	FlashMode        FlashMode              `json:"flash_mode"`
	ConcurrentCamera ConcurrentCameraMode   `json:"concurrent_camera"`
	AudioEnabled     bool                   `json:"audio_enabled"`
	MaxVideoDuration time.Duration          `json:"max_video_duration"`
	DeviceRotation   int                    `json:"device_rotation"`
	ZoomRatios       map[LensFacing]float64 `json:"zoom_ratios"`
	TestPattern      TestPattern            `json:"test_pattern"`
	ExternalCapture  ExternalCapture        `json:"external_capture"`
}

// DefaultSettings は既定の撮影設定を返す
func DefaultSettings() Settings {
	return Settings{
		LensFacing:       LensFacingRear,
		AspectRatio:      AspectRatioFourThree,
		CaptureMode:      CaptureModeStandard,
		StreamConfig:     StreamConfigMultiStream,
		TargetFrameRate:  FrameRateAuto,
		Stabilization:    StabilizationAuto,
		DynamicRange:     DynamicRangeSDR,
		ImageFormat:      ImageFormatJPEG,
		VideoQuality:     VideoQualityUnspecified,
		FlashMode:        FlashModeOff,
		ConcurrentCamera: ConcurrentCameraOff,
		AudioEnabled:     true,
		MaxVideoDuration: 0,
		DeviceRotation:   0,
		ZoomRatios: map[LensFacing]float64{
			LensFacingFront: 1.0,
			LensFacingRear:  1.0,
		},
		TestPattern:     TestPatternOff,
		ExternalCapture: ExternalCaptureNone,
	}
}

// Clone はズームマップを含めた設定のコピーを返す
func (s Settings) Clone() Settings {
	s.ZoomRatios = copyZoomMap(s.ZoomRatios)
	return s
}

// ZoomRatio は指定レンズのズーム倍率を返す。未設定なら1.0を返す
func (s Settings) ZoomRatio(facing LensFacing) float64 {
	if r, ok := s.ZoomRatios[facing]; ok {
		return r
	}
	return 1.0
}

// WithZoomRatio は指定レンズのズーム倍率だけを差し替えたコピーを返す
func (s Settings) WithZoomRatio(facing LensFacing, ratio float64) Settings {
	zoom := copyZoomMap(s.ZoomRatios)
	zoom[facing] = ratio
	s.ZoomRatios = zoom
	return s
}

// copyZoomMap はズームマップのコピーを返す
func copyZoomMap(src map[LensFacing]float64) map[LensFacing]float64 {
	dst := make(map[LensFacing]float64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// Resolution は解像度を表す
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// FocusStatus はタップフォーカス動作の進行状態を表す
type FocusStatus string

const (
	// FocusStatusRunning は測距実行中
	FocusStatusRunning FocusStatus = "running"
	// FocusStatusSuccess は合焦成功
	FocusStatusSuccess FocusStatus = "success"
	// FocusStatusFailure は合焦失敗
	FocusStatusFailure FocusStatus = "failure"
	// FocusStatusCancelled はセッション破棄による中断
	FocusStatusCancelled FocusStatus = "cancelled"
)

// FocusState はタップフォーカスの状態を表す
// Specifiedがfalseの間は座標とステータスは無効
type FocusState struct {
	Specified bool        `json:"specified"`
	X         float64     `json:"x"`
	Y         float64     `json:"y"`
	Status    FocusStatus `json:"status"`
}

// RecordingStatus は動画録画の状態を表す
type RecordingStatus string

const (
	// RecordingStatusStarting は開始要求からハードウェア確認までの間
	RecordingStatusStarting RecordingStatus = "starting"
	// RecordingStatusRecording は録画中
	RecordingStatusRecording RecordingStatus = "recording"
	// RecordingStatusPaused は一時停止中
	RecordingStatusPaused RecordingStatus = "paused"
	// RecordingStatusInactive は録画なしまたは終了済み
	RecordingStatusInactive RecordingStatus = "inactive"
)

// VideoRecordingState は1回分の動画録画の状態を表す
// Inactiveは終端であり、新しい録画は常に新しいインスタンスから始まる
type VideoRecordingState struct {
	Status            RecordingStatus `json:"status"`
	RecordingID       string          `json:"recording_id,omitempty"`
	AudioEnabled      bool            `json:"audio_enabled"`
	MaxDuration       time.Duration   `json:"max_duration"`
	AudioAmplitude    float64         `json:"audio_amplitude"`
	ElapsedNanos      int64           `json:"elapsed_nanos"`
	FinalElapsedNanos int64           `json:"final_elapsed_nanos"`
}

// IsActive は録画が進行中(一時停止含む)かを返す
func (v VideoRecordingState) IsActive() bool {
	return v.Status == RecordingStatusRecording || v.Status == RecordingStatusPaused
}

// CameraState は実行中セッションの観測状態を表す
// セッションドライバーだけが書き込み、読み手はコピーを受け取る
type CameraState struct {
	SessionID             string                 `json:"session_id"`
	BindCount             int                    `json:"bind_count"`
	ZoomRatios            map[LensFacing]float64 `json:"zoom_ratios"`
	LinearZooms           map[LensFacing]float64 `json:"linear_zooms"`
	FirstFrameAt          time.Time              `json:"first_frame_at"`
	TorchEnabled          bool                   `json:"torch_enabled"`
	ReportedStabilization StabilizationMode      `json:"reported_stabilization"`
	LowLightBoostActive   bool                   `json:"low_light_boost_active"`
	ResolvedVideoQuality  VideoQuality           `json:"resolved_video_quality"`
	ResolvedResolution    Resolution             `json:"resolved_resolution"`
	Focus                 FocusState             `json:"focus"`
	VideoRecording        VideoRecordingState    `json:"video_recording"`
}
