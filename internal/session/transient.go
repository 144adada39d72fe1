package session

import (
	"log"

	"satsuei/internal/camera"
)

// runTransientLoop は一時設定を順に適用する
// 適用中に新しい値が届いた場合は残りの手順を打ち切り、新しい値からやり直す
func (e *Engine) runTransientLoop(s *SessionContext) {
	var last *camera.TransientSessionSettings
	for {
		select {
		case <-s.ctx.Done():
			return
		case t := <-s.transientCh:
			for {
				newer, superseded := e.applyTransient(s, t, last)
				if !superseded {
					applied := t
					last = &applied
					break
				}
				t = newer
			}
		}
	}
}

// applyTransient は一時設定を次元ごとに適用する
// 手順の合間に新しい値が届いていたら中断してその値を返す
// lastは前回完全に適用できた値で、変化のない次元の適用は省略する
func (e *Engine) applyTransient(s *SessionContext, t camera.TransientSessionSettings, last *camera.TransientSessionSettings) (camera.TransientSessionSettings, bool) {
	e.applyZoom(s, t, last)
	if newer, ok := s.peekTransient(); ok {
		return newer, true
	}

	e.applyTorchIntent(s, t)
	if newer, ok := s.peekTransient(); ok {
		return newer, true
	}

	e.applyLowLightBoost(s, t, last)
	if newer, ok := s.peekTransient(); ok {
		return newer, true
	}

	e.applyTestPattern(s, t, last)
	if newer, ok := s.peekTransient(); ok {
		return newer, true
	}

	e.applyRotation(s, t, last)
	if newer, ok := s.peekTransient(); ok {
		return newer, true
	}

	e.applyAudioMute(t, last)
	return camera.TransientSessionSettings{}, false
}

// applyZoom は主レンズのズーム倍率を能力範囲に丸めて適用する
func (e *Engine) applyZoom(s *SessionContext, t camera.TransientSessionSettings, last *camera.TransientSessionSettings) {
	facing := s.perpetual.LensFacing
	ratio, ok := t.ZoomRatios[facing]
	if !ok {
		return
	}
	if last != nil && last.ZoomRatios[facing] == ratio {
		return
	}

	clamped := s.caps.ClampZoomRatio(ratio)
	if err := e.actuator.SetZoomRatio(s.ctx, s.handle, s.caps.LensID, clamped); err != nil {
		log.Printf("ズームの適用に失敗しました: %v", err)
		return
	}
	e.state.Update(func(st *camera.CameraState) {
		st.ZoomRatios[facing] = clamped
		st.LinearZooms[facing] = s.caps.LinearZoom(clamped)
	})
}

// applyTorchIntent はフラッシュ設定と録画状態からトーチ点灯を評価する
// 点灯条件は録画進行中かつフラッシュON、背面レンズ、発光部ありの全てを満たすこと
func (e *Engine) applyTorchIntent(s *SessionContext, t camera.TransientSessionSettings) {
	want := t.FlashMode == camera.FlashModeOn &&
		s.perpetual.LensFacing == camera.LensFacingRear &&
		s.caps.HasFlashUnit &&
		e.state.Get().VideoRecording.IsActive()

	if err := e.actuator.SetTorch(s.ctx, s.handle, want); err != nil {
		log.Printf("トーチの切り替えに失敗しました: %v", err)
	}
}

// applyLowLightBoost は低照度ブーストAEの有効無効を適用する
func (e *Engine) applyLowLightBoost(s *SessionContext, t camera.TransientSessionSettings, last *camera.TransientSessionSettings) {
	if last != nil && last.FlashMode == t.FlashMode {
		return
	}
	value := "off"
	if t.FlashMode == camera.FlashModeLowLightBoost {
		value = "on"
	}
	if err := e.actuator.SetCaptureOption(s.ctx, s.handle, camera.CaptureOptionLowLightBoost, value); err != nil {
		log.Printf("低照度ブーストの適用に失敗しました: %v", err)
	}
}

// applyTestPattern はセンサーのテストパターン出力を適用する
func (e *Engine) applyTestPattern(s *SessionContext, t camera.TransientSessionSettings, last *camera.TransientSessionSettings) {
	if last != nil && last.TestPattern == t.TestPattern {
		return
	}
	if err := e.actuator.SetCaptureOption(s.ctx, s.handle, camera.CaptureOptionTestPattern, string(t.TestPattern)); err != nil {
		log.Printf("テストパターンの適用に失敗しました: %v", err)
	}
}

// applyRotation はデバイス回転角をキャプチャ出力へ反映する
func (e *Engine) applyRotation(s *SessionContext, t camera.TransientSessionSettings, last *camera.TransientSessionSettings) {
	if last != nil && last.DeviceRotation == t.DeviceRotation {
		return
	}
	if err := e.actuator.SetDeviceRotation(s.ctx, s.handle, t.DeviceRotation); err != nil {
		log.Printf("回転角の適用に失敗しました: %v", err)
	}
}

// applyAudioMute は録画中の音声ミュートを切り替える
// 音声なしで開始した録画には適用しない
func (e *Engine) applyAudioMute(t camera.TransientSessionSettings, last *camera.TransientSessionSettings) {
	if last != nil && last.AudioEnabled == t.AudioEnabled {
		return
	}

	rec := e.activeRecorder()
	if rec == nil {
		return
	}
	videoState := e.state.Get().VideoRecording
	if !videoState.IsActive() || !videoState.AudioEnabled {
		return
	}
	rec.SetMuted(!t.AudioEnabled)
}
