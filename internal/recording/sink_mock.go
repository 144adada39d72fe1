package recording

import (
	"context"
	"fmt"
	"sync"
)

// MockSink はテストとシミュレーション動作用の録画シンク
// 実際の書き込みは行わず、呼び出しを記録して確認イベントを合成する
type MockSink struct {
	mu                sync.Mutex
	shouldFailPrepare bool
	shouldFailStart   bool
	autoConfirmStart  bool
	prepared          []*PendingRecording
	handles           []*MockHandle
}

// NewMockSink は新しいモックシンクを作成する
// 既定ではStart直後に開始確認イベントを合成する
func NewMockSink() *MockSink {
	return &MockSink{autoConfirmStart: true}
}

// SetShouldFailPrepare はPrepareRecordingの失敗をシミュレートする
func (m *MockSink) SetShouldFailPrepare(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldFailPrepare = fail
}

// SetShouldFailStart はStartの失敗をシミュレートする
func (m *MockSink) SetShouldFailStart(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldFailStart = fail
}

// SetAutoConfirmStart はStart直後の開始確認イベント合成を切り替える
func (m *MockSink) SetAutoConfirmStart(auto bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoConfirmStart = auto
}

// PrepareRecording は開始前の録画を作成する
func (m *MockSink) PrepareRecording(ctx context.Context, destination string) (*PendingRecording, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shouldFailPrepare {
		return nil, fmt.Errorf("モックによる録画準備失敗")
	}
	if destination == "" {
		destination = "mock://recording"
	}
	pending := &PendingRecording{Destination: destination}
	m.prepared = append(m.prepared, pending)
	return pending, nil
}

// Start は録画を開始してモックハンドルを返す
func (m *MockSink) Start(ctx context.Context, pending *PendingRecording) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shouldFailStart {
		return nil, fmt.Errorf("モックによる録画開始失敗")
	}
	handle := newMockHandle(pending)
	m.handles = append(m.handles, handle)
	if m.autoConfirmStart {
		handle.EmitStart()
	}
	return handle, nil
}

// PreparedCount はPrepareRecordingが呼ばれた回数を返す
func (m *MockSink) PreparedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prepared)
}

// LastHandle は最後に発行したハンドルを返す
func (m *MockSink) LastHandle() *MockHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.handles) == 0 {
		return nil
	}
	return m.handles[len(m.handles)-1]
}

// MockHandle はモックシンクが発行する録画ハンドル
type MockHandle struct {
	mu          sync.Mutex
	pending     *PendingRecording
	events      chan SinkEvent
	elapsed     int64
	paused      bool
	muted       bool
	stopped     bool
	finalizeErr error
	pauseCount  int
	resumeCount int
}

// newMockHandle は新しいモックハンドルを作成する
func newMockHandle(pending *PendingRecording) *MockHandle {
	return &MockHandle{
		pending: pending,
		events:  make(chan SinkEvent, 16),
	}
}

// Pause は一時停止を記録して確認イベントを合成する
func (h *MockHandle) Pause(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.paused = true
	h.pauseCount++
	h.events <- SinkEvent{Kind: SinkEventPause, ElapsedNanos: h.elapsed}
	return nil
}

// Resume は再開を記録して確認イベントを合成する
func (h *MockHandle) Resume(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.paused = false
	h.resumeCount++
	h.events <- SinkEvent{Kind: SinkEventResume, ElapsedNanos: h.elapsed}
	return nil
}

// Stop は終了を記録して確定イベントを合成する。多重呼び出しは無視する
func (h *MockHandle) Stop(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return nil
	}
	h.stopped = true
	h.events <- SinkEvent{
		Kind:           SinkEventFinalize,
		ElapsedNanos:   h.elapsed,
		OutputLocation: h.pending.Destination,
		Err:            h.finalizeErr,
	}
	return nil
}

// SetMuted はミュート状態を記録する
func (h *MockHandle) SetMuted(muted bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.muted = muted
	return nil
}

// Events は確認イベントチャンネルを返す
func (h *MockHandle) Events() <-chan SinkEvent {
	return h.events
}

// EmitStart は開始確認イベントを合成する
func (h *MockHandle) EmitStart() {
	h.events <- SinkEvent{Kind: SinkEventStart}
}

// EmitStatus は経過報告イベントを合成する
func (h *MockHandle) EmitStatus(amplitude float64, elapsedNanos int64) {
	h.mu.Lock()
	h.elapsed = elapsedNanos
	h.mu.Unlock()
	h.events <- SinkEvent{Kind: SinkEventStatus, AudioAmplitude: amplitude, ElapsedNanos: elapsedNanos}
}

// TriggerDurationLimit は上限時間到達による終了を合成する
// 計測値は上限を超過した生の値を渡す
func (h *MockHandle) TriggerDurationLimit(measuredNanos int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = true
	h.events <- SinkEvent{
		Kind:                 SinkEventFinalize,
		ElapsedNanos:         measuredNanos,
		DurationLimitReached: true,
		OutputLocation:       h.pending.Destination,
	}
}

// FailWith はシンク側のエラーによる終了を合成する
func (h *MockHandle) FailWith(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = true
	h.events <- SinkEvent{
		Kind:         SinkEventFinalize,
		ElapsedNanos: h.elapsed,
		Err:          err,
	}
}

// SetElapsed は次の確定イベントで報告する経過時間を設定する
func (h *MockHandle) SetElapsed(nanos int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.elapsed = nanos
}

// SetFinalizeError はStop時の確定イベントへ載せるエラーを設定する
func (h *MockHandle) SetFinalizeError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.finalizeErr = err
}

// Paused は一時停止中かを返す
func (h *MockHandle) Paused() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.paused
}

// Muted はミュート中かを返す
func (h *MockHandle) Muted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.muted
}

// Stopped は停止済みかを返す
func (h *MockHandle) Stopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

// PauseCount はPauseが呼ばれた回数を返す
func (h *MockHandle) PauseCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pauseCount
}

// ResumeCount はResumeが呼ばれた回数を返す
func (h *MockHandle) ResumeCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.resumeCount
}
