package camera

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// mockSession はMockActuator内の束縛済みセッション1つ分の記録
type mockSession struct {
	graph  StreamGraph
	events chan HardwareEvent
	torch  bool
}

// ZoomCall はSetZoomRatioの呼び出し記録
type ZoomCall struct {
	Lens  LensID
	Ratio float64
}

// CaptureOptionCall はSetCaptureOptionの呼び出し記録
type CaptureOptionCall struct {
	Option CaptureOption
	Value  string
}

// FocusCall はStartFocusAndMeteringの呼び出し記録
type FocusCall struct {
	X float64
	Y float64
}

// MockActuator はテストとシミュレーション動作用のアクチュエーター
// 実ハードウェアの代わりに呼び出しを記録し、通知イベントを合成する
type MockActuator struct {
	mu             sync.Mutex
	sessions       map[SessionHandle]*mockSession
	bindCount      int
	unbindCount    int
	lastGraph      StreamGraph
	zoomCalls      []ZoomCall
	rotations      []int
	captureOptions []CaptureOptionCall
	focusCalls     []FocusCall

	shouldFailBind  bool
	shouldFailFocus bool
	autoFirstFrame  bool
	focusGate       chan struct{}
}

// NewMockActuator は新しいモックアクチュエーターを作成する
func NewMockActuator() *MockActuator {
	return &MockActuator{
		sessions: make(map[SessionHandle]*mockSession),
	}
}

// SetShouldFailBind はBindの失敗をシミュレートする
func (m *MockActuator) SetShouldFailBind(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldFailBind = fail
}

// SetShouldFailFocus はStartFocusAndMeteringの失敗をシミュレートする
func (m *MockActuator) SetShouldFailFocus(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldFailFocus = fail
}

// SetAutoFirstFrame はBind直後に最初のフレーム通知を合成するかを設定する
func (m *MockActuator) SetAutoFirstFrame(auto bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoFirstFrame = auto
}

// BlockFocus は以後のStartFocusAndMeteringをReleaseFocusまで待機させる
func (m *MockActuator) BlockFocus() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.focusGate = make(chan struct{})
}

// ReleaseFocus は待機中のStartFocusAndMeteringを解放する
func (m *MockActuator) ReleaseFocus() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.focusGate != nil {
		close(m.focusGate)
		m.focusGate = nil
	}
}

// Bind はストリーム構成を記録してハンドルを発行する
func (m *MockActuator) Bind(ctx context.Context, graph StreamGraph) (SessionHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.bindCount++
	m.lastGraph = graph
	if m.shouldFailBind {
		return "", fmt.Errorf("モックによるバインド失敗")
	}

	handle := SessionHandle(uuid.New().String())
	session := &mockSession{
		graph:  graph,
		events: make(chan HardwareEvent, 8),
	}
	m.sessions[handle] = session

	if m.autoFirstFrame {
		session.events <- HardwareEvent{
			Kind:       HardwareEventFirstFrame,
			Resolution: Resolution{Width: 1920, Height: 1080},
			At:         time.Now(),
		}
	}
	return handle, nil
}

// Unbind はセッションを破棄して通知チャンネルを閉じる
func (m *MockActuator) Unbind(ctx context.Context, handle SessionHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.unbindCount++
	session, ok := m.sessions[handle]
	if !ok {
		return fmt.Errorf("未知のセッションハンドル: %s", handle)
	}
	close(session.events)
	delete(m.sessions, handle)
	return nil
}

// SetZoomRatio はズーム適用を記録する
func (m *MockActuator) SetZoomRatio(ctx context.Context, handle SessionHandle, lens LensID, ratio float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[handle]; !ok {
		return fmt.Errorf("未知のセッションハンドル: %s", handle)
	}
	m.zoomCalls = append(m.zoomCalls, ZoomCall{Lens: lens, Ratio: ratio})
	return nil
}

// SetTorch はトーチ状態を記録し、点灯状態の通知イベントを合成する
func (m *MockActuator) SetTorch(ctx context.Context, handle SessionHandle, on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[handle]
	if !ok {
		return fmt.Errorf("未知のセッションハンドル: %s", handle)
	}
	session.torch = on
	m.pushEventLocked(session, HardwareEvent{Kind: HardwareEventTorchState, TorchOn: on, At: time.Now()})
	return nil
}

// StartFocusAndMetering は測距呼び出しをシミュレートする
// BlockFocusが設定されている場合はReleaseFocusかctxの取り消しまで待つ
func (m *MockActuator) StartFocusAndMetering(ctx context.Context, handle SessionHandle, x, y float64) error {
	m.mu.Lock()
	if _, ok := m.sessions[handle]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("未知のセッションハンドル: %s", handle)
	}
	m.focusCalls = append(m.focusCalls, FocusCall{X: x, Y: y})
	gate := m.focusGate
	fail := m.shouldFailFocus
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if fail {
		return fmt.Errorf("モックによる測距失敗")
	}
	return nil
}

// SetDeviceRotation は回転角の適用を記録する
func (m *MockActuator) SetDeviceRotation(ctx context.Context, handle SessionHandle, degrees int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[handle]; !ok {
		return fmt.Errorf("未知のセッションハンドル: %s", handle)
	}
	m.rotations = append(m.rotations, degrees)
	return nil
}

// SetCaptureOption はベンダー拡張オプションの適用を記録する
func (m *MockActuator) SetCaptureOption(ctx context.Context, handle SessionHandle, option CaptureOption, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[handle]; !ok {
		return fmt.Errorf("未知のセッションハンドル: %s", handle)
	}
	m.captureOptions = append(m.captureOptions, CaptureOptionCall{Option: option, Value: value})
	return nil
}

// Events は指定セッションの通知チャンネルを返す
func (m *MockActuator) Events(handle SessionHandle) <-chan HardwareEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[handle]
	if !ok {
		closed := make(chan HardwareEvent)
		close(closed)
		return closed
	}
	return session.events
}

// EmitFirstFrame は最初のフレーム到達通知を合成する
func (m *MockActuator) EmitFirstFrame(handle SessionHandle, res Resolution) {
	m.emit(handle, HardwareEvent{Kind: HardwareEventFirstFrame, Resolution: res, At: time.Now()})
}

// EmitStabilization は適用済み補正方式の通知を合成する
func (m *MockActuator) EmitStabilization(handle SessionHandle, mode StabilizationMode) {
	m.emit(handle, HardwareEvent{Kind: HardwareEventStabilization, Stabilization: mode, At: time.Now()})
}

// EmitLowLightBoost は低照度ブーストの作動通知を合成する
func (m *MockActuator) EmitLowLightBoost(handle SessionHandle, active bool) {
	m.emit(handle, HardwareEvent{Kind: HardwareEventLowLightBoost, LowLightBoostActive: active, At: time.Now()})
}

// emit は指定セッションへイベントを送る。セッションがなければ何もしない
func (m *MockActuator) emit(handle SessionHandle, ev HardwareEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[handle]
	if !ok {
		return
	}
	m.pushEventLocked(session, ev)
}

// pushEventLocked はバッファに空きがなければ最も古いイベントを捨てて送る
func (m *MockActuator) pushEventLocked(session *mockSession, ev HardwareEvent) {
	select {
	case session.events <- ev:
	default:
		select {
		case <-session.events:
		default:
		}
		select {
		case session.events <- ev:
		default:
		}
	}
}

// BindCount はBindが呼ばれた回数を返す
func (m *MockActuator) BindCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bindCount
}

// UnbindCount はUnbindが呼ばれた回数を返す
func (m *MockActuator) UnbindCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unbindCount
}

// ActiveSessions は現在束縛中のセッション数を返す
func (m *MockActuator) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// LastGraph は最後にBindへ渡されたストリーム構成を返す
func (m *MockActuator) LastGraph() StreamGraph {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastGraph
}

// Handles は現在束縛中のセッションハンドルを返す
func (m *MockActuator) Handles() []SessionHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	handles := make([]SessionHandle, 0, len(m.sessions))
	for h := range m.sessions {
		handles = append(handles, h)
	}
	return handles
}

// TorchOn はいずれかのセッションでトーチが点灯しているかを返す
func (m *MockActuator) TorchOn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.torch {
			return true
		}
	}
	return false
}

// ZoomCalls はSetZoomRatioの呼び出し記録をコピーで返す
func (m *MockActuator) ZoomCalls() []ZoomCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]ZoomCall, len(m.zoomCalls))
	copy(calls, m.zoomCalls)
	return calls
}

// Rotations はSetDeviceRotationの呼び出し記録をコピーで返す
func (m *MockActuator) Rotations() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	rotations := make([]int, len(m.rotations))
	copy(rotations, m.rotations)
	return rotations
}

// CaptureOptionCalls はSetCaptureOptionの呼び出し記録をコピーで返す
func (m *MockActuator) CaptureOptionCalls() []CaptureOptionCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]CaptureOptionCall, len(m.captureOptions))
	copy(calls, m.captureOptions)
	return calls
}

// FocusCalls はStartFocusAndMeteringの呼び出し記録をコピーで返す
func (m *MockActuator) FocusCalls() []FocusCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]FocusCall, len(m.focusCalls))
	copy(calls, m.focusCalls)
	return calls
}
