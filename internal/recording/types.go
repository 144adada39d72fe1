package recording

import (
	"context"
	"time"
)

// PendingRecording は開始前の録画1件分の条件を表す
// PrepareRecordingで作られ、Startまでの間に呼び出し側が条件を確定する
type PendingRecording struct {
	RecordingID  string
	Destination  string
	AudioEnabled bool
	MaxDuration  time.Duration
}

// SinkEventKind はシンクからの確認イベント種別を表す
type SinkEventKind string

const (
	// SinkEventStart は録画開始の確認
	SinkEventStart SinkEventKind = "start"
	// SinkEventPause は一時停止の確認
	SinkEventPause SinkEventKind = "pause"
	// SinkEventResume は再開の確認
	SinkEventResume SinkEventKind = "resume"
	// SinkEventStatus は経過時間と音声振幅の定期報告
	SinkEventStatus SinkEventKind = "status"
	// SinkEventFinalize は録画終了の確定
	SinkEventFinalize SinkEventKind = "finalize"
)

// SinkEvent はシンクからの確認イベントを表す
type SinkEvent struct {
	Kind                 SinkEventKind
	AudioAmplitude       float64
	ElapsedNanos         int64
	DurationLimitReached bool
	OutputLocation       string
	Err                  error
}

// Handle は進行中の録画1件への操作を表す
type Handle interface {
	// Pause は録画を一時停止する
	Pause(ctx context.Context) error

	// Resume は一時停止中の録画を再開する
	Resume(ctx context.Context) error

	// Stop は録画を終了して出力を確定する
	Stop(ctx context.Context) error

	// SetMuted は音声のミュート状態を切り替える
	SetMuted(muted bool) error

	// Events はシンクからの確認イベントチャンネルを返す
	Events() <-chan SinkEvent
}

// Sink は録画パイプラインへの不透明な書き込み口を表す
// 出力先の実体(ファイル、ストレージAPIなど)はシンク実装が隠蔽する
type Sink interface {
	// PrepareRecording は出力先を確保して開始前の録画を作る
	PrepareRecording(ctx context.Context, destination string) (*PendingRecording, error)

	// Start は録画を開始して操作ハンドルを返す
	Start(ctx context.Context, pending *PendingRecording) (Handle, error)
}
