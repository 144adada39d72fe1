package camera

import (
	"context"
	"time"
)

// StreamKind は論理ストリームの用途を表す
type StreamKind string

const (
	// StreamKindPreview はプレビュー表示用ストリーム
	StreamKindPreview StreamKind = "preview"
	// StreamKindImage は静止画キャプチャ用ストリーム
	StreamKindImage StreamKind = "image"
	// StreamKindVideo は動画キャプチャ用ストリーム
	StreamKindVideo StreamKind = "video"
)

// StreamSpec は1本の論理ストリームの構成を表す
type StreamSpec struct {
	Kind          StreamKind
	AspectRatio   AspectRatio
	DynamicRange  DynamicRange
	ImageFormat   ImageFormat
	VideoQuality  VideoQuality
	FrameRate     int
	Stabilization StabilizationMode
	// SharedSurface は単一ストリーム構成で共有サーフェスから分配されることを示す
	SharedSurface bool
}

// CompositionSettings はプレビュー合成時の配置を表す
// オフセットは画面中心を原点とした-0.5〜0.5の座標系で指定する
type CompositionSettings struct {
	Alpha   float64
	OffsetX float64
	OffsetY float64
	ScaleX  float64
	ScaleY  float64
}

// StreamLeg は1レンズ分のストリーム束を表す
type StreamLeg struct {
	Lens        LensID
	Facing      LensFacing
	Primary     bool
	Composition CompositionSettings
	Streams     []StreamSpec
}

// StreamGraph はバインド対象となるストリーム構成全体を表す
type StreamGraph struct {
	Mode PerpetualMode
	Legs []StreamLeg
}

// VideoLeg は動画ストリームを持つレグを返す
func (g StreamGraph) VideoLeg() (StreamLeg, bool) {
	for _, leg := range g.Legs {
		for _, s := range leg.Streams {
			if s.Kind == StreamKindVideo {
				return leg, true
			}
		}
	}
	return StreamLeg{}, false
}

// PrimaryLeg は主レンズのレグを返す
func (g StreamGraph) PrimaryLeg() StreamLeg {
	for _, leg := range g.Legs {
		if leg.Primary {
			return leg
		}
	}
	if len(g.Legs) > 0 {
		return g.Legs[0]
	}
	return StreamLeg{}
}

// SessionHandle は束縛済みハードウェアセッションの識別子
type SessionHandle string

// CaptureOption はベンダー拡張のキャプチャリクエストオプションを表す
type CaptureOption string

const (
	// CaptureOptionTestPattern はセンサーのテストパターン出力指定
	CaptureOptionTestPattern CaptureOption = "test_pattern"
	// CaptureOptionLowLightBoost は低照度ブーストAEの有効化指定
	CaptureOptionLowLightBoost CaptureOption = "low_light_boost_ae"
)

// HardwareEventKind はハードウェアからの通知種別を表す
type HardwareEventKind string

const (
	// HardwareEventFirstFrame は最初のフレーム到達通知
	HardwareEventFirstFrame HardwareEventKind = "first_frame"
	// HardwareEventTorchState はトーチ点灯状態の通知
	HardwareEventTorchState HardwareEventKind = "torch_state"
	// HardwareEventStabilization は実際に適用された補正方式の通知
	HardwareEventStabilization HardwareEventKind = "stabilization"
	// HardwareEventLowLightBoost は低照度ブーストの作動状態通知
	HardwareEventLowLightBoost HardwareEventKind = "low_light_boost"
)

// HardwareEvent はハードウェアからの状態通知を表す
type HardwareEvent struct {
	Kind                HardwareEventKind
	TorchOn             bool
	Stabilization       StabilizationMode
	LowLightBoostActive bool
	Resolution          Resolution
	At                  time.Time
}

// Actuator はハードウェアセッションの操作を担うインターフェース
// Bindで返されたハンドルに対する操作はUnbindまで有効
type Actuator interface {
	// Bind はストリーム構成をハードウェアへ束縛する
	Bind(ctx context.Context, graph StreamGraph) (SessionHandle, error)

	// Unbind は束縛を解除してハードウェアを解放する
	Unbind(ctx context.Context, handle SessionHandle) error

	// SetZoomRatio は指定レンズのズーム倍率を適用する
	SetZoomRatio(ctx context.Context, handle SessionHandle, lens LensID, ratio float64) error

	// SetTorch はトーチの点灯状態を切り替える
	SetTorch(ctx context.Context, handle SessionHandle, on bool) error

	// StartFocusAndMetering は指定座標で測距と測光を実行し、完了まで待つ
	StartFocusAndMetering(ctx context.Context, handle SessionHandle, x, y float64) error

	// SetDeviceRotation はデバイス回転角をキャプチャ出力へ反映する
	SetDeviceRotation(ctx context.Context, handle SessionHandle, degrees int) error

	// SetCaptureOption はベンダー拡張オプションを適用する
	SetCaptureOption(ctx context.Context, handle SessionHandle, option CaptureOption, value string) error

	// Events はハードウェアからの状態通知チャンネルを返す
	// チャンネルはUnbindで閉じられる
	Events(handle SessionHandle) <-chan HardwareEvent
}
