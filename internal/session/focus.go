package session

import (
	"context"
	"errors"

	"satsuei/internal/camera"
)

// focusRequest はタップフォーカスの正規化座標(0〜1)を表す
type focusRequest struct {
	X float64
	Y float64
}

// runFocusLoop はフォーカス要求を1件ずつ処理する
// 要求スロットは最新値のみ保持するため、実行中に届いた要求は最後の1件だけが残る
func (e *Engine) runFocusLoop(s *SessionContext) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case req := <-s.focusCh:
			e.performFocus(s, req)
		}
	}
}

// performFocus は測距測光を実行して結果をフォーカス状態へ反映する
// セッション破棄による中断はCancelledとして報告し、Failureとは区別する
func (e *Engine) performFocus(s *SessionContext, req focusRequest) {
	e.state.Update(func(st *camera.CameraState) {
		st.Focus = camera.FocusState{
			Specified: true,
			X:         req.X,
			Y:         req.Y,
			Status:    camera.FocusStatusRunning,
		}
	})

	err := e.actuator.StartFocusAndMetering(s.ctx, s.handle, req.X, req.Y)

	var status camera.FocusStatus
	switch {
	case err == nil:
		status = camera.FocusStatusSuccess
	case errors.Is(err, context.Canceled) || s.ctx.Err() != nil:
		status = camera.FocusStatusCancelled
	default:
		status = camera.FocusStatusFailure
	}

	e.state.Update(func(st *camera.CameraState) {
		st.Focus = camera.FocusState{
			Specified: true,
			X:         req.X,
			Y:         req.Y,
			Status:    status,
		}
	})
}
