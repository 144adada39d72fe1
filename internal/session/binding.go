package session

import (
	"context"
	"sync"

	"satsuei/internal/camera"
)

// SessionContext は1回のバインドに紐づく実行資源を保持する
// 子ループはctxの取り消しで終了し、wgで完了を待ち合わせる
type SessionContext struct {
	handle    camera.SessionHandle
	graph     camera.StreamGraph
	perpetual camera.PerpetualSessionSettings
	caps      *camera.CapabilitySet

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	transientCh chan camera.TransientSessionSettings
	focusCh     chan focusRequest
}

// newSessionContext はバインド済みセッションの実行文脈を作成する
func newSessionContext(parent context.Context, handle camera.SessionHandle, graph camera.StreamGraph, perpetual camera.PerpetualSessionSettings, caps *camera.CapabilitySet) *SessionContext {
	ctx, cancel := context.WithCancel(parent)
	return &SessionContext{
		handle:      handle,
		graph:       graph,
		perpetual:   perpetual,
		caps:        caps,
		ctx:         ctx,
		cancel:      cancel,
		transientCh: make(chan camera.TransientSessionSettings, 1),
		focusCh:     make(chan focusRequest, 1),
	}
}

// offerTransient は最新の一時設定を積む。滞留している古い値は破棄する
func (s *SessionContext) offerTransient(t camera.TransientSessionSettings) {
	select {
	case s.transientCh <- t:
	default:
		select {
		case <-s.transientCh:
		default:
		}
		select {
		case s.transientCh <- t:
		default:
		}
	}
}

// offerFocus は最新のフォーカス要求を積む。滞留している古い要求は破棄する
func (s *SessionContext) offerFocus(req focusRequest) {
	select {
	case s.focusCh <- req:
	default:
		select {
		case <-s.focusCh:
		default:
		}
		select {
		case s.focusCh <- req:
		default:
		}
	}
}

// peekTransient は滞留中の一時設定があれば取り出す
func (s *SessionContext) peekTransient() (camera.TransientSessionSettings, bool) {
	select {
	case t := <-s.transientCh:
		return t, true
	default:
		return camera.TransientSessionSettings{}, false
	}
}

// startSessionLoops はバインド済みセッションの子ループを起動する
func (e *Engine) startSessionLoops(s *SessionContext) {
	s.wg.Add(3)
	go func() {
		defer s.wg.Done()
		e.runHardwareEventLoop(s)
	}()
	go func() {
		defer s.wg.Done()
		e.runFocusLoop(s)
	}()
	go func() {
		defer s.wg.Done()
		e.runTransientLoop(s)
	}()
}

// runHardwareEventLoop はハードウェアからの状態通知を観測状態へ取り込む
func (e *Engine) runHardwareEventLoop(s *SessionContext) {
	events := e.actuator.Events(s.handle)
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			e.state.Update(func(st *camera.CameraState) {
				switch ev.Kind {
				case camera.HardwareEventFirstFrame:
					st.FirstFrameAt = ev.At
					if ev.Resolution.Width > 0 {
						st.ResolvedResolution = ev.Resolution
					}
				case camera.HardwareEventTorchState:
					st.TorchEnabled = ev.TorchOn
				case camera.HardwareEventStabilization:
					st.ReportedStabilization = ev.Stabilization
				case camera.HardwareEventLowLightBoost:
					st.LowLightBoostActive = ev.LowLightBoostActive
				}
			})
		}
	}
}
