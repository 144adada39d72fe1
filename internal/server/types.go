package server

import (
	"time"

	"satsuei/internal/camera"
)

// HealthResponse はヘルスチェックの応答
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ServerInfo はサーバーの待ち受け情報
type ServerInfo struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// StatusResponse はシステム状態の応答
type StatusResponse struct {
	Status    string     `json:"status"`
	Server    ServerInfo `json:"server"`
	Backend   string     `json:"backend"`
	Lenses    int        `json:"lenses"`
	Bound     bool       `json:"bound"`
	Recording bool       `json:"recording"`
	Timestamp time.Time  `json:"timestamp"`
}

// LensesResponse はレンズ能力一覧の応答
type LensesResponse struct {
	ConcurrentSupported bool                    `json:"concurrent_supported"`
	DefaultFacing       camera.LensFacing       `json:"default_facing"`
	Lenses              []*camera.CapabilitySet `json:"lenses"`
}

// ErrorResponse はエラー応答
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// UpdateSettingsRequest は設定の部分更新リクエスト
// nilのフィールドは変更しない。適用結果は制約解決後の全設定として返す
type UpdateSettingsRequest struct {
	LensFacing       *string      `json:"lens_facing"`
	AspectRatio      *string      `json:"aspect_ratio"`
	CaptureMode      *string      `json:"capture_mode"`
	StreamConfig     *string      `json:"stream_config"`
	TargetFrameRate  *int         `json:"target_frame_rate"`
	Stabilization    *string      `json:"stabilization"`
	DynamicRange     *string      `json:"dynamic_range"`
	ImageFormat      *string      `json:"image_format"`
	VideoQuality     *string      `json:"video_quality"`
	FlashMode        *string      `json:"flash_mode"`
	ConcurrentCamera *string      `json:"concurrent_camera"`
	AudioEnabled     *bool        `json:"audio_enabled"`
	MaxVideoDuration *int64       `json:"max_video_duration"`
	DeviceRotation   *int         `json:"device_rotation"`
	TestPattern      *string      `json:"test_pattern"`
	Zoom             *ZoomRequest `json:"zoom"`
}

// ZoomRequest はズーム倍率の変更リクエスト
type ZoomRequest struct {
	Facing string  `json:"facing"`
	Ratio  float64 `json:"ratio"`
}

// FocusRequest はタップ合焦のリクエスト
// 座標はプレビュー面の正規化値(0.0〜1.0)
type FocusRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// StartRecordingRequest は録画開始のリクエスト
type StartRecordingRequest struct {
	Destination string `json:"destination"`
}

// StartRecordingResponse は録画開始の応答
type StartRecordingResponse struct {
	RecordingID string    `json:"recording_id"`
	Timestamp   time.Time `json:"timestamp"`
}

// MuteRequest は録音ミュートの変更リクエスト
type MuteRequest struct {
	Muted bool `json:"muted"`
}
