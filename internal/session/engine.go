package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"satsuei/internal/camera"
	"satsuei/internal/recording"
)

var (
	// ErrBindRejected はハードウェアがストリーム構成を拒否したことを表す
	ErrBindRejected = errors.New("ハードウェアがセッション構成を拒否しました")
	// ErrLensNotFound は要求されたレンズ向きがカタログに存在しないことを表す
	ErrLensNotFound = errors.New("指定されたレンズが見つかりません")
	// ErrNotBound はセッション未束縛のため操作できないことを表す
	ErrNotBound = errors.New("セッションが束縛されていません")
	// ErrNoActiveRecording は進行中の録画がないことを表す
	ErrNoActiveRecording = errors.New("進行中の録画がありません")
)

// Options はエンジン構築時の設定
type Options struct {
	// Defaults は起動時の撮影設定。ゼロ値ならDefaultSettingsを使う
	Defaults camera.Settings
	// AudioPermissionGranted は録音可否の事前条件。nilなら常に許可として扱う
	AudioPermissionGranted func() bool
}

// Engine は撮影セッション全体を統括する窓口
// 設定意図の受け付け、制約解決、セッションの束縛管理、録画制御を担う
// 書き込み系の操作は全て非同期で、結果はCameraStateとEventで観測する
type Engine struct {
	catalog  *camera.Catalog
	actuator camera.Actuator
	sink     recording.Sink
	state    *camera.StateCell

	audioGranted func() bool

	mu               sync.RWMutex
	settings         camera.Settings
	bound            *SessionContext
	recorder         *recording.Lifecycle
	settingsWatchers []chan camera.Settings

	resolvedCh chan camera.Settings
	events     chan Event
}

// NewEngine は新しいエンジンを作成する
// 初期設定は制約解決を通してから保持し、Run開始時の最初のバインド対象になる
func NewEngine(catalog *camera.Catalog, actuator camera.Actuator, sink recording.Sink, opts Options) *Engine {
	defaults := opts.Defaults
	if defaults.LensFacing == "" {
		defaults = camera.DefaultSettings()
	}
	if !catalog.HasFacing(defaults.LensFacing) {
		defaults.LensFacing = catalog.DefaultFacing()
	}

	e := &Engine{
		catalog:      catalog,
		actuator:     actuator,
		sink:         sink,
		state:        camera.NewStateCell(),
		audioGranted: opts.AudioPermissionGranted,
		resolvedCh:   make(chan camera.Settings, 1),
		events:       make(chan Event, eventQueueSize),
	}
	e.settings = camera.Resolve(defaults, catalog)
	e.offerResolved(e.settings.Clone())
	return e
}

// Catalog はレンズ能力カタログを返す
func (e *Engine) Catalog() *camera.Catalog {
	return e.catalog
}

// CurrentSettings は現在の解決済み設定のコピーを返す
func (e *Engine) CurrentSettings() camera.Settings {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.settings.Clone()
}

// SettingsUpdates は解決済み設定の更新を受け取るチャンネルを返す
// チャンネルは最新値のみ保持し、購読直後に現在値が届く
func (e *Engine) SettingsUpdates() <-chan camera.Settings {
	ch := make(chan camera.Settings, 1)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settingsWatchers = append(e.settingsWatchers, ch)
	ch <- e.settings.Clone()
	return ch
}

// CurrentState は現在の観測状態のコピーを返す
func (e *Engine) CurrentState() camera.CameraState {
	return e.state.Get()
}

// StateUpdates は観測状態の更新を受け取るチャンネルを返す
func (e *Engine) StateUpdates() <-chan camera.CameraState {
	return e.state.Watch()
}

// Events は一回限りの通知を受け取るチャンネルを返す
// 購読者は1つを想定しており、複数読み手での分配はしない
func (e *Engine) Events() <-chan Event {
	return e.events
}

// IsBound は束縛済みのハードウェアセッションを保持しているかを返す
func (e *Engine) IsBound() bool {
	return e.currentBinding() != nil
}

// RecordingInFlight は終端に達していない録画が存在するかを返す
func (e *Engine) RecordingInFlight() bool {
	return e.activeRecorder() != nil
}

// updateSettings は現在の設定に変更を加えた候補を制約解決して差し替える
func (e *Engine) updateSettings(mutate func(*camera.Settings)) {
	e.mu.Lock()
	candidate := e.settings.Clone()
	mutate(&candidate)
	resolved := camera.Resolve(candidate, e.catalog)
	e.settings = resolved
	e.notifySettingsLocked()
	e.mu.Unlock()

	e.offerResolved(resolved.Clone())
}

// notifySettingsLocked は設定購読者へ最新値を配る
// 読み手が追いついていない場合は古い値を捨てて差し替える
func (e *Engine) notifySettingsLocked() {
	for _, ch := range e.settingsWatchers {
		snapshot := e.settings.Clone()
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}

// SetLensFacing はレンズ向きの変更意図を受け付ける
// カタログに存在しない向きはエラーにして候補へ載せない
func (e *Engine) SetLensFacing(f camera.LensFacing) error {
	if !e.catalog.HasFacing(f) {
		return fmt.Errorf("%w: %s", ErrLensNotFound, f)
	}
	e.updateSettings(func(s *camera.Settings) { s.LensFacing = f })
	return nil
}

// SetAspectRatio はアスペクト比の変更意図を受け付ける
func (e *Engine) SetAspectRatio(r camera.AspectRatio) {
	e.updateSettings(func(s *camera.Settings) { s.AspectRatio = r })
}

// SetCaptureMode はキャプチャモードの変更意図を受け付ける
func (e *Engine) SetCaptureMode(m camera.CaptureMode) {
	e.updateSettings(func(s *camera.Settings) { s.CaptureMode = m })
}

// SetStreamConfigMode はストリーム構成方式の変更意図を受け付ける
func (e *Engine) SetStreamConfigMode(m camera.StreamConfigMode) {
	e.updateSettings(func(s *camera.Settings) { s.StreamConfig = m })
}

// SetTargetFrameRate は目標フレームレートの変更意図を受け付ける
func (e *Engine) SetTargetFrameRate(fps int) {
	e.updateSettings(func(s *camera.Settings) { s.TargetFrameRate = fps })
}

// SetStabilizationMode は手ぶれ補正方式の変更意図を受け付ける
func (e *Engine) SetStabilizationMode(m camera.StabilizationMode) {
	e.updateSettings(func(s *camera.Settings) { s.Stabilization = m })
}

// SetDynamicRange はダイナミックレンジの変更意図を受け付ける
func (e *Engine) SetDynamicRange(d camera.DynamicRange) {
	e.updateSettings(func(s *camera.Settings) { s.DynamicRange = d })
}

// SetImageFormat は静止画フォーマットの変更意図を受け付ける
func (e *Engine) SetImageFormat(f camera.ImageFormat) {
	e.updateSettings(func(s *camera.Settings) { s.ImageFormat = f })
}

// SetVideoQuality は動画品質の変更意図を受け付ける
func (e *Engine) SetVideoQuality(q camera.VideoQuality) {
	e.updateSettings(func(s *camera.Settings) { s.VideoQuality = q })
}

// SetFlashMode はフラッシュ動作の変更意図を受け付ける
func (e *Engine) SetFlashMode(m camera.FlashMode) {
	e.updateSettings(func(s *camera.Settings) { s.FlashMode = m })
}

// SetConcurrentCameraMode は同時カメラ構成の変更意図を受け付ける
func (e *Engine) SetConcurrentCameraMode(m camera.ConcurrentCameraMode) {
	e.updateSettings(func(s *camera.Settings) { s.ConcurrentCamera = m })
}

// SetAudioEnabled は録音有無の変更意図を受け付ける
// 録画中の変更はミュート切り替えとして即時反映される
func (e *Engine) SetAudioEnabled(enabled bool) {
	e.updateSettings(func(s *camera.Settings) { s.AudioEnabled = enabled })
}

// SetMaxVideoDuration は録画時間上限の変更意図を受け付ける。0は無制限
func (e *Engine) SetMaxVideoDuration(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("録画時間上限が負の値です: %s", d)
	}
	e.updateSettings(func(s *camera.Settings) { s.MaxVideoDuration = d })
	return nil
}

// SetDeviceRotation はデバイス回転角の変更意図を受け付ける
func (e *Engine) SetDeviceRotation(degrees int) error {
	if !camera.IsValidRotation(degrees) {
		return fmt.Errorf("デバイス回転角が不正です: %d", degrees)
	}
	e.updateSettings(func(s *camera.Settings) { s.DeviceRotation = degrees })
	return nil
}

// SetZoomRatio は指定レンズのズーム倍率の変更意図を受け付ける
// 能力範囲への丸めは適用時に行う
func (e *Engine) SetZoomRatio(facing camera.LensFacing, ratio float64) {
	e.updateSettings(func(s *camera.Settings) {
		*s = s.WithZoomRatio(facing, ratio)
	})
}

// SetTestPattern はテストパターン出力の変更意図を受け付ける
func (e *Engine) SetTestPattern(p camera.TestPattern) {
	e.updateSettings(func(s *camera.Settings) { s.TestPattern = p })
}

// SetExternalCapture は外部キャプチャ依頼の変更意図を受け付ける
func (e *Engine) SetExternalCapture(c camera.ExternalCapture) {
	e.updateSettings(func(s *camera.Settings) { s.ExternalCapture = c })
}

// ApplyCaptureDefaults は設定ファイル由来の既定値を候補として取り込む
// ズームや回転角など実行時にしか意味を持たない項目は差し替えない
func (e *Engine) ApplyCaptureDefaults(d camera.Settings) {
	e.updateSettings(func(s *camera.Settings) {
		if e.catalog.HasFacing(d.LensFacing) {
			s.LensFacing = d.LensFacing
		}
		s.AspectRatio = d.AspectRatio
		s.CaptureMode = d.CaptureMode
		s.StreamConfig = d.StreamConfig
		s.TargetFrameRate = d.TargetFrameRate
		s.Stabilization = d.Stabilization
		s.DynamicRange = d.DynamicRange
		s.ImageFormat = d.ImageFormat
		s.VideoQuality = d.VideoQuality
		s.FlashMode = d.FlashMode
		s.AudioEnabled = d.AudioEnabled
		s.MaxVideoDuration = d.MaxVideoDuration
	})
}

// TapToFocus はタップフォーカス要求を受け付ける。座標は0〜1の正規化値
func (e *Engine) TapToFocus(x, y float64) error {
	if x < 0 || x > 1 || y < 0 || y > 1 {
		return fmt.Errorf("フォーカス座標が範囲外です: (%.2f, %.2f)", x, y)
	}
	bound := e.currentBinding()
	if bound == nil {
		return ErrNotBound
	}
	bound.offerFocus(focusRequest{X: x, Y: y})
	return nil
}

// StartRecording は録画を開始して録画IDを返す
// 未束縛、動画ストリームなし、前の録画が未確定の状態での呼び出しは
// 上流で防ぐべき使用方法の誤りとして扱う
func (e *Engine) StartRecording(destination string) (string, error) {
	e.mu.RLock()
	bound := e.bound
	recorder := e.recorder
	settings := e.settings.Clone()
	e.mu.RUnlock()

	if bound == nil {
		panic("セッションが束縛されていない状態で録画を開始しようとしました")
	}
	videoLeg, hasVideo := bound.graph.VideoLeg()
	if !hasVideo {
		panic("動画ストリームのない構成で録画を開始しようとしました")
	}
	if recorder != nil && !recorder.IsDone() {
		panic("前の録画が確定する前に新しい録画を開始しようとしました")
	}

	audio := settings.AudioEnabled
	if audio && e.audioGranted != nil && !e.audioGranted() {
		log.Printf("音声権限が確認できないため音声なしで録画します")
		audio = false
	}

	torchWanted := settings.FlashMode == camera.FlashModeOn &&
		videoLeg.Facing == camera.LensFacingRear &&
		bound.caps.HasFlashUnit

	lc, err := recording.Start(bound.ctx, e.sink, recording.StartOptions{
		Destination:  destination,
		AudioEnabled: audio,
		MaxDuration:  settings.MaxVideoDuration,
		TorchWanted:  torchWanted,
	}, e.publishRecordingState, e.torchControllerFor(bound), e.onRecordingResult)
	if err != nil {
		return "", err
	}

	e.mu.Lock()
	e.recorder = lc
	e.mu.Unlock()

	if settings.FlashMode == camera.FlashModeOn && !bound.caps.HasFlashUnit {
		// 発光部のないレンズでは画面発光で代替するよう通知する
		pushEvent(e.events, Event{Kind: EventScreenFlash, RecordingID: lc.ID()})
	}
	return lc.ID(), nil
}

// PauseRecording は録画を一時停止する
func (e *Engine) PauseRecording() {
	rec := e.activeRecorder()
	if rec == nil {
		panic("進行中の録画がない状態で一時停止しようとしました")
	}
	rec.Pause()
}

// ResumeRecording は一時停止中の録画を再開する
func (e *Engine) ResumeRecording() {
	rec := e.activeRecorder()
	if rec == nil {
		panic("進行中の録画がない状態で再開しようとしました")
	}
	rec.Resume()
}

// StopRecording は録画を停止する。録画がなければ何もしない
func (e *Engine) StopRecording() {
	rec := e.activeRecorder()
	if rec == nil {
		return
	}
	rec.Stop()
}

// SetRecordingMuted は進行中の録画のミュートを切り替える
func (e *Engine) SetRecordingMuted(muted bool) error {
	rec := e.activeRecorder()
	if rec == nil {
		return ErrNoActiveRecording
	}
	rec.SetMuted(muted)
	return nil
}

// activeRecorder は確定前の録画ライフサイクルを返す。なければnil
func (e *Engine) activeRecorder() *recording.Lifecycle {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.recorder == nil || e.recorder.IsDone() {
		return nil
	}
	return e.recorder
}

// publishRecordingState は録画状態を観測状態へ反映する
func (e *Engine) publishRecordingState(v camera.VideoRecordingState) {
	e.state.Update(func(st *camera.CameraState) {
		st.VideoRecording = v
	})
}

// torchControllerFor は録画ライフサイクルへ渡すトーチ操作を作る
// 終端遷移での消灯はバインディング破棄後でも完了するよう独立したコンテキストを使う
func (e *Engine) torchControllerFor(s *SessionContext) recording.TorchController {
	return func(on bool) {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := e.actuator.SetTorch(ctx, s.handle, on); err != nil {
			log.Printf("録画連動のトーチ切り替えに失敗しました: %v", err)
		}
	}
}

// onRecordingResult は録画の確定結果をイベントへ変換する
// 確定後はトーチ条件を再評価させ、消灯へ収束させる
func (e *Engine) onRecordingResult(r recording.Result) {
	e.mu.Lock()
	if e.recorder != nil && e.recorder.ID() == r.RecordingID {
		e.recorder = nil
	}
	bound := e.bound
	e.mu.Unlock()

	if r.Err != nil {
		pushEvent(e.events, Event{
			Kind:        EventRecordError,
			RecordingID: r.RecordingID,
			Message:     r.Err.Error(),
		})
	} else {
		pushEvent(e.events, Event{
			Kind:            EventRecordComplete,
			RecordingID:     r.RecordingID,
			OutputLocation:  r.OutputLocation,
			DurationLimited: r.DurationLimited,
		})
	}

	if bound != nil {
		bound.offerTransient(camera.DeriveTransient(e.CurrentSettings()))
	}
}
