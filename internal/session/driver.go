package session

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"satsuei/internal/camera"
)

// releaseTimeout はバインド解除処理の打ち切り時間
// 親コンテキストが取り消された後でも解放を完了させるための独立した猶予
const releaseTimeout = 3 * time.Second

// Run は解決済み設定の流れに従ってセッションの束縛を管理するループを実行する
// ctxの取り消しで停止し、停止時には保持中のバインディングを必ず解放する
func (e *Engine) Run(ctx context.Context) {
	log.Printf("セッションドライバーを開始します")
	defer func() {
		if bound := e.currentBinding(); bound != nil {
			e.releaseBinding(bound)
		}
		log.Printf("セッションドライバーを停止しました")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case resolved := <-e.resolvedCh:
			e.applyResolved(ctx, resolved)
		}
	}
}

// applyResolved は新しい解決済み設定を現在のバインディングへ反映する
// 永続設定が構造的に等しい場合は再バインドせず一時設定だけを流す
func (e *Engine) applyResolved(ctx context.Context, resolved camera.Settings) {
	perpetual := camera.DerivePerpetual(resolved)
	transient := camera.DeriveTransient(resolved)

	bound := e.currentBinding()
	if bound != nil && bound.perpetual == perpetual {
		bound.offerTransient(transient)
		return
	}

	e.rebind(ctx, resolved, perpetual, transient)
}

// rebind は現在のバインディングを解放して新しい構成で束縛し直す
// バインド失敗時はイベントで通知し、未束縛のまま再試行しない
func (e *Engine) rebind(ctx context.Context, resolved camera.Settings, perpetual camera.PerpetualSessionSettings, transient camera.TransientSessionSettings) {
	prev := e.currentBinding()
	facingChanged := false
	if prev != nil {
		facingChanged = prev.perpetual.LensFacing != perpetual.LensFacing
		e.releaseBinding(prev)
	}

	graph := ComposeStreamGraph(perpetual, e.catalog)
	handle, err := e.actuator.Bind(ctx, graph)
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrBindRejected, err)
		log.Printf("セッションのバインドに失敗しました: %v", wrapped)
		pushEvent(e.events, Event{Kind: EventBindFailure, Message: wrapped.Error()})
		return
	}

	caps := e.catalog.MustCapabilities(perpetual.LensFacing)
	s := newSessionContext(ctx, handle, graph, perpetual, caps)
	e.setBinding(s)

	resolvedQuality := camera.VideoQualityUnspecified
	if _, hasVideo := graph.VideoLeg(); hasVideo {
		resolvedQuality = perpetual.VideoQuality
		if resolvedQuality == camera.VideoQualityUnspecified {
			resolvedQuality = caps.BestVideoQuality(perpetual.DynamicRange)
		}
	}

	// セッションIDは初回バインドで一度だけ発行し、以後はバインド回数で世代を示す
	// レンズが替わった場合はズームの実測値を破棄する。フォーカス状態は持ち越す
	e.state.Update(func(st *camera.CameraState) {
		if st.SessionID == "" {
			st.SessionID = uuid.New().String()
		}
		st.BindCount++
		if facingChanged {
			st.ZoomRatios = make(map[camera.LensFacing]float64)
			st.LinearZooms = make(map[camera.LensFacing]float64)
		}
		st.FirstFrameAt = time.Time{}
		st.TorchEnabled = false
		st.ReportedStabilization = perpetual.Stabilization
		st.LowLightBoostActive = false
		st.ResolvedVideoQuality = resolvedQuality
		st.ResolvedResolution = camera.Resolution{}
	})

	if err := e.actuator.SetDeviceRotation(ctx, handle, resolved.DeviceRotation); err != nil {
		log.Printf("バインド直後の回転角適用に失敗しました: %v", err)
	}

	e.startSessionLoops(s)
	s.offerTransient(transient)
	log.Printf("セッションをバインドしました: handle=%s facing=%s mode=%s", handle, perpetual.LensFacing, perpetual.Mode)
}

// releaseBinding はバインディングを解放する
// 子ループの終了と録画の中断を待ってからトーチ消灯と束縛解除を行う
// 解放処理は取り消し済みの文脈でも完了するよう独立したコンテキストを使う
func (e *Engine) releaseBinding(s *SessionContext) {
	s.cancel()
	s.wg.Wait()

	if rec := e.activeRecorder(); rec != nil {
		select {
		case <-rec.Done():
		case <-time.After(releaseTimeout):
			log.Printf("録画の中断完了を待ちきれませんでした")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if err := e.actuator.SetTorch(ctx, s.handle, false); err != nil {
		log.Printf("解放時のトーチ消灯に失敗しました: %v", err)
	}
	if err := e.actuator.Unbind(ctx, s.handle); err != nil {
		log.Printf("セッションの解放に失敗しました: %v", err)
	}

	e.setBinding(nil)
	log.Printf("セッションを解放しました: handle=%s", s.handle)
}

// currentBinding は現在のバインディングを返す
func (e *Engine) currentBinding() *SessionContext {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.bound
}

// setBinding は現在のバインディングを差し替える。Runループからのみ呼ばれる
func (e *Engine) setBinding(s *SessionContext) {
	e.mu.Lock()
	e.bound = s
	e.mu.Unlock()
}

// offerResolved は解決済み設定をRunループへ渡す。滞留している古い値は破棄する
func (e *Engine) offerResolved(resolved camera.Settings) {
	select {
	case e.resolvedCh <- resolved:
	default:
		select {
		case <-e.resolvedCh:
		default:
		}
		select {
		case e.resolvedCh <- resolved:
		default:
		}
	}
}
