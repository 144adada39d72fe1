package recording

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"satsuei/internal/camera"
)

// ControlKind は録画への制御要求種別を表す
type ControlKind string

const (
	// ControlPause は一時停止要求
	ControlPause ControlKind = "pause"
	// ControlResume は再開要求
	ControlResume ControlKind = "resume"
	// ControlStop は終了要求
	ControlStop ControlKind = "stop"
	// ControlSetMuted はミュート切り替え要求
	ControlSetMuted ControlKind = "set_muted"
)

// Control は録画への制御要求を表す。到着順に処理される
type Control struct {
	Kind  ControlKind
	Muted bool
}

// Result は録画1回分の終了結果を表す
// 上限時間到達による終了は成功として扱われ、Errはnilになる
type Result struct {
	RecordingID       string
	OutputLocation    string
	FinalElapsedNanos int64
	DurationLimited   bool
	Err               error
}

// StatePublisher は録画状態の変化を観測状態へ反映する関数
type StatePublisher func(camera.VideoRecordingState)

// TorchController はトーチの点灯状態を切り替える関数
type TorchController func(on bool)

// StartOptions は録画開始時の条件を表す
type StartOptions struct {
	Destination  string
	AudioEnabled bool
	MaxDuration  time.Duration
	TorchWanted  bool
}

// 制御要求キューの容量。超過時は送り手がブロックして順序を保つ
const controlQueueSize = 16

// 強制終了時にシンクの停止を待つ上限
const abortStopTimeout = 3 * time.Second

// Lifecycle は録画1回分の状態機械
// 制御要求は到着順に処理し、状態遷移はシンクの確認イベントで確定する。
// InactiveとFinalElapsedNanosの公開をもって終端となり、以後は何もしない
type Lifecycle struct {
	id       string
	handle   Handle
	publish  StatePublisher
	torch    TorchController
	onResult func(Result)
	opts     StartOptions

	controls chan Control
	done     chan struct{}

	// stateはStart以降runゴルーチンのみが触る
	state camera.VideoRecordingState
}

// Start は録画を開始してライフサイクルを起動する
// 準備または開始に失敗した場合はInactiveを公開してエラーを返す
func Start(ctx context.Context, sink Sink, opts StartOptions, publish StatePublisher, torch TorchController, onResult func(Result)) (*Lifecycle, error) {
	l := &Lifecycle{
		id:       uuid.New().String(),
		publish:  publish,
		torch:    torch,
		onResult: onResult,
		opts:     opts,
		controls: make(chan Control, controlQueueSize),
		done:     make(chan struct{}),
	}

	l.state = camera.VideoRecordingState{
		Status:       camera.RecordingStatusStarting,
		RecordingID:  l.id,
		AudioEnabled: opts.AudioEnabled,
		MaxDuration:  opts.MaxDuration,
	}
	l.publish(l.state)

	pending, err := sink.PrepareRecording(ctx, opts.Destination)
	if err != nil {
		l.publishInactive()
		return nil, fmt.Errorf("録画の準備に失敗: %w", err)
	}
	pending.RecordingID = l.id
	pending.AudioEnabled = opts.AudioEnabled
	pending.MaxDuration = opts.MaxDuration

	l.handle, err = sink.Start(ctx, pending)
	if err != nil {
		l.publishInactive()
		return nil, fmt.Errorf("録画の開始に失敗: %w", err)
	}

	if opts.TorchWanted {
		l.torch(true)
	}

	log.Printf("録画を開始しました: %s -> %s", l.id, pending.Destination)
	go l.run(ctx)
	return l, nil
}

// run は制御要求とシンクイベントを1本のループで処理する
func (l *Lifecycle) run(ctx context.Context) {
	defer close(l.done)

	events := l.handle.Events()
	for {
		select {
		case <-ctx.Done():
			l.abort(ctx.Err())
			return
		case c := <-l.controls:
			l.applyControl(ctx, c)
		case ev, ok := <-events:
			if !ok {
				l.abort(fmt.Errorf("シンクのイベントチャンネルが閉じられました"))
				return
			}
			if l.applySinkEvent(ev) {
				return
			}
		}
	}
}

// applyControl は制御要求を現在の状態に照らして適用する
// キュー処理の遅延で状態が先に変わっていた要求は無視する
func (l *Lifecycle) applyControl(ctx context.Context, c Control) {
	switch c.Kind {
	case ControlPause:
		if l.state.Status != camera.RecordingStatusRecording {
			log.Printf("状態 %s への一時停止要求を無視します: %s", l.state.Status, l.id)
			return
		}
		if err := l.handle.Pause(ctx); err != nil {
			log.Printf("一時停止に失敗しました: %s: %v", l.id, err)
		}
	case ControlResume:
		if l.state.Status != camera.RecordingStatusPaused {
			log.Printf("状態 %s への再開要求を無視します: %s", l.state.Status, l.id)
			return
		}
		if err := l.handle.Resume(ctx); err != nil {
			log.Printf("再開に失敗しました: %s: %v", l.id, err)
		}
	case ControlStop:
		if err := l.handle.Stop(ctx); err != nil {
			log.Printf("停止要求に失敗しました: %s: %v", l.id, err)
		}
	case ControlSetMuted:
		if err := l.handle.SetMuted(c.Muted); err != nil {
			log.Printf("ミュート切り替えに失敗しました: %s: %v", l.id, err)
		}
	}
}

// applySinkEvent はシンクの確認イベントを状態へ反映する。終端ならtrueを返す
func (l *Lifecycle) applySinkEvent(ev SinkEvent) bool {
	switch ev.Kind {
	case SinkEventStart:
		l.state.Status = camera.RecordingStatusRecording
		l.publish(l.state)
	case SinkEventPause:
		l.state.Status = camera.RecordingStatusPaused
		l.publish(l.state)
	case SinkEventResume:
		l.state.Status = camera.RecordingStatusRecording
		l.publish(l.state)
	case SinkEventStatus:
		l.state.AudioAmplitude = ev.AudioAmplitude
		l.state.ElapsedNanos = ev.ElapsedNanos
		l.publish(l.state)
	case SinkEventFinalize:
		l.finalize(ev)
		return true
	}
	return false
}

// finalize は録画を終端状態へ遷移させて結果を通知する
func (l *Lifecycle) finalize(ev SinkEvent) {
	// 終端遷移では必ずトーチを消す
	l.torch(false)

	final := ev.ElapsedNanos
	if ev.DurationLimitReached && l.opts.MaxDuration > 0 {
		// 上限到達時はハードウェアの計測値ではなく上限そのもので確定する
		final = l.opts.MaxDuration.Nanoseconds()
	}

	var resultErr error
	if !ev.DurationLimitReached {
		resultErr = ev.Err
	}

	l.state.Status = camera.RecordingStatusInactive
	l.state.FinalElapsedNanos = final
	l.publish(l.state)

	if resultErr != nil {
		log.Printf("録画がエラーで終了しました: %s: %v", l.id, resultErr)
	} else {
		log.Printf("録画が終了しました: %s (%.1f秒)", l.id, time.Duration(final).Seconds())
	}

	if l.onResult != nil {
		l.onResult(Result{
			RecordingID:       l.id,
			OutputLocation:    ev.OutputLocation,
			FinalElapsedNanos: final,
			DurationLimited:   ev.DurationLimitReached,
			Err:               resultErr,
		})
	}
}

// abort はセッション破棄などによる強制終了を処理する
// シンクの確定イベントを待たないため、クリーンな出力確定は保証されない
func (l *Lifecycle) abort(cause error) {
	l.torch(false)

	detached, cancel := context.WithTimeout(context.Background(), abortStopTimeout)
	defer cancel()
	if err := l.handle.Stop(detached); err != nil {
		log.Printf("強制終了時の停止に失敗しました: %s: %v", l.id, err)
	}

	l.state.Status = camera.RecordingStatusInactive
	l.state.FinalElapsedNanos = l.state.ElapsedNanos
	l.publish(l.state)

	log.Printf("録画を強制終了しました: %s: %v", l.id, cause)
	if l.onResult != nil {
		l.onResult(Result{
			RecordingID:       l.id,
			FinalElapsedNanos: l.state.FinalElapsedNanos,
			Err:               cause,
		})
	}
}

// publishInactive は開始に失敗した録画をInactiveとして公開する
func (l *Lifecycle) publishInactive() {
	l.state.Status = camera.RecordingStatusInactive
	l.publish(l.state)
}

// enqueue は制御要求をキューへ積む。終端後の要求は捨てる
func (l *Lifecycle) enqueue(c Control) {
	select {
	case l.controls <- c:
	case <-l.done:
		log.Printf("終了済みの録画への %s 要求を無視します: %s", c.Kind, l.id)
	}
}

// Pause は一時停止を要求する
func (l *Lifecycle) Pause() {
	l.enqueue(Control{Kind: ControlPause})
}

// Resume は再開を要求する
func (l *Lifecycle) Resume() {
	l.enqueue(Control{Kind: ControlResume})
}

// Stop は終了を要求する
func (l *Lifecycle) Stop() {
	l.enqueue(Control{Kind: ControlStop})
}

// SetMuted は音声ミュートの切り替えを要求する
func (l *Lifecycle) SetMuted(muted bool) {
	l.enqueue(Control{Kind: ControlSetMuted, Muted: muted})
}

// ID は録画の識別子を返す
func (l *Lifecycle) ID() string {
	return l.id
}

// Done は録画が終端へ達すると閉じられるチャンネルを返す
func (l *Lifecycle) Done() <-chan struct{} {
	return l.done
}

// IsDone は録画が終端へ達したかを返す
func (l *Lifecycle) IsDone() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}
