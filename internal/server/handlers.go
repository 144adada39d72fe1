package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"satsuei/internal/camera"
	"satsuei/internal/config"
	"satsuei/internal/session"

	"github.com/gin-gonic/gin"
)

// SatsueiHandler は各APIエンドポイントを実装する
type SatsueiHandler struct {
	config *config.Config
	engine *session.Engine
}

// HealthCheck はヘルスチェックエンドポイントの実装
func (h *SatsueiHandler) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	}

	c.JSON(http.StatusOK, response)
}

// GetStatus はシステム状態取得エンドポイントの実装
func (h *SatsueiHandler) GetStatus(c *gin.Context) {
	response := StatusResponse{
		Status: "running",
		Server: ServerInfo{
			Host: h.config.Server.Host,
			Port: h.config.Server.Port,
		},
		Backend:   h.config.Hardware.Backend,
		Lenses:    len(h.engine.Catalog().Lenses()),
		Bound:     h.engine.IsBound(),
		Recording: h.engine.RecordingInFlight(),
		Timestamp: time.Now(),
	}

	c.JSON(http.StatusOK, response)
}

// GetLenses はレンズ能力一覧取得エンドポイントの実装
func (h *SatsueiHandler) GetLenses(c *gin.Context) {
	catalog := h.engine.Catalog()

	lenses := make([]*camera.CapabilitySet, 0, len(catalog.Facings()))
	for _, facing := range catalog.Facings() {
		if caps, ok := catalog.Capabilities(facing); ok {
			lenses = append(lenses, caps)
		}
	}

	response := LensesResponse{
		ConcurrentSupported: catalog.ConcurrentSupported(),
		DefaultFacing:       catalog.DefaultFacing(),
		Lenses:              lenses,
	}

	c.JSON(http.StatusOK, response)
}

// GetState は観測状態取得エンドポイントの実装
func (h *SatsueiHandler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.CurrentState())
}

// GetStateStream は観測状態のSSEストリーミングエンドポイントの実装
// 接続時点の状態を1件流した後、更新のたびに最新値を配信する
// 読み手が追いつかない場合は中間の状態を飛ばして最新値だけを流す
func (h *SatsueiHandler) GetStateStream(c *gin.Context) {
	flusher, ok := setupSSE(c)
	if !ok {
		return
	}

	updates := h.engine.StateUpdates()

	// クライアント切断を検知するためのコンテキスト
	clientGone := c.Request.Context().Done()

	// ストリーミングループ
	for {
		select {
		case <-clientGone:
			// クライアントが切断された
			return

		case state, ok := <-updates:
			if !ok {
				// チャンネルがクローズされた
				return
			}
			if err := writeSSE(c, flusher, state); err != nil {
				return
			}
		}
	}
}

// GetEventStream は一回限りの通知のSSEストリーミングエンドポイントの実装
// 通知チャンネルは購読者1つを想定しているため、複数クライアントへの分配はしない
func (h *SatsueiHandler) GetEventStream(c *gin.Context) {
	flusher, ok := setupSSE(c)
	if !ok {
		return
	}

	events := h.engine.Events()

	// クライアント切断を検知するためのコンテキスト
	clientGone := c.Request.Context().Done()

	// ストリーミングループ
	for {
		select {
		case <-clientGone:
			// クライアントが切断された
			return

		case ev, ok := <-events:
			if !ok {
				// チャンネルがクローズされた
				return
			}
			if err := writeSSE(c, flusher, ev); err != nil {
				return
			}
		}
	}
}

// GetSettings は現在の設定取得エンドポイントの実装
// 返る値は常に制約解決済みの設定
func (h *SatsueiHandler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.CurrentSettings())
}

// UpdateSettings は設定の部分更新エンドポイントの実装
func (h *SatsueiHandler) UpdateSettings(c *gin.Context) {
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse := ErrorResponse{
			Error:     "invalid_request",
			Message:   "リクエストボディを解釈できません",
			Timestamp: time.Now(),
		}
		c.JSON(http.StatusBadRequest, errorResponse)
		return
	}

	if err := h.applySettings(&req); err != nil {
		status := http.StatusBadRequest
		code := "invalid_settings"
		if errors.Is(err, session.ErrLensNotFound) {
			status = http.StatusNotFound
			code = "lens_not_found"
		}
		errorResponse := ErrorResponse{
			Error:     code,
			Message:   err.Error(),
			Timestamp: time.Now(),
		}
		c.JSON(status, errorResponse)
		return
	}

	// 制約解決後の設定を返す
	c.JSON(http.StatusOK, h.engine.CurrentSettings())
}

// applySettings は指定されたフィールドだけをエンジンへ反映する
func (h *SatsueiHandler) applySettings(req *UpdateSettingsRequest) error {
	if req.LensFacing != nil {
		if err := h.engine.SetLensFacing(camera.LensFacing(*req.LensFacing)); err != nil {
			return err
		}
	}
	if req.AspectRatio != nil {
		h.engine.SetAspectRatio(camera.AspectRatio(*req.AspectRatio))
	}
	if req.CaptureMode != nil {
		h.engine.SetCaptureMode(camera.CaptureMode(*req.CaptureMode))
	}
	if req.StreamConfig != nil {
		h.engine.SetStreamConfigMode(camera.StreamConfigMode(*req.StreamConfig))
	}
	if req.TargetFrameRate != nil {
		h.engine.SetTargetFrameRate(*req.TargetFrameRate)
	}
	if req.Stabilization != nil {
		h.engine.SetStabilizationMode(camera.StabilizationMode(*req.Stabilization))
	}
	if req.DynamicRange != nil {
		h.engine.SetDynamicRange(camera.DynamicRange(*req.DynamicRange))
	}
	if req.ImageFormat != nil {
		h.engine.SetImageFormat(camera.ImageFormat(*req.ImageFormat))
	}
	if req.VideoQuality != nil {
		h.engine.SetVideoQuality(camera.VideoQuality(*req.VideoQuality))
	}
	if req.FlashMode != nil {
		h.engine.SetFlashMode(camera.FlashMode(*req.FlashMode))
	}
	if req.ConcurrentCamera != nil {
		h.engine.SetConcurrentCameraMode(camera.ConcurrentCameraMode(*req.ConcurrentCamera))
	}
	if req.AudioEnabled != nil {
		h.engine.SetAudioEnabled(*req.AudioEnabled)
	}
	if req.MaxVideoDuration != nil {
		if err := h.engine.SetMaxVideoDuration(time.Duration(*req.MaxVideoDuration)); err != nil {
			return err
		}
	}
	if req.DeviceRotation != nil {
		if err := h.engine.SetDeviceRotation(*req.DeviceRotation); err != nil {
			return err
		}
	}
	if req.TestPattern != nil {
		h.engine.SetTestPattern(camera.TestPattern(*req.TestPattern))
	}
	if req.Zoom != nil {
		h.engine.SetZoomRatio(camera.LensFacing(req.Zoom.Facing), req.Zoom.Ratio)
	}
	return nil
}

// TapToFocus はタップ合焦エンドポイントの実装
func (h *SatsueiHandler) TapToFocus(c *gin.Context) {
	var req FocusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse := ErrorResponse{
			Error:     "invalid_request",
			Message:   "リクエストボディを解釈できません",
			Timestamp: time.Now(),
		}
		c.JSON(http.StatusBadRequest, errorResponse)
		return
	}

	if err := h.engine.TapToFocus(req.X, req.Y); err != nil {
		status := http.StatusBadRequest
		code := "invalid_focus_point"
		if errors.Is(err, session.ErrNotBound) {
			status = http.StatusConflict
			code = "not_bound"
		}
		errorResponse := ErrorResponse{
			Error:     code,
			Message:   err.Error(),
			Timestamp: time.Now(),
		}
		c.JSON(status, errorResponse)
		return
	}

	c.Status(http.StatusAccepted)
}

// StartRecording は録画開始エンドポイントの実装
// エンジン側の前提違反はパニックになるため、上位で状態を確認してから呼び出す
func (h *SatsueiHandler) StartRecording(c *gin.Context) {
	var req StartRecordingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			errorResponse := ErrorResponse{
				Error:     "invalid_request",
				Message:   "リクエストボディを解釈できません",
				Timestamp: time.Now(),
			}
			c.JSON(http.StatusBadRequest, errorResponse)
			return
		}
	}

	if !h.engine.IsBound() {
		errorResponse := ErrorResponse{
			Error:     "not_bound",
			Message:   "セッションが束縛されていません",
			Timestamp: time.Now(),
		}
		c.JSON(http.StatusConflict, errorResponse)
		return
	}
	if h.engine.RecordingInFlight() {
		errorResponse := ErrorResponse{
			Error:     "recording_in_progress",
			Message:   "すでに録画が進行中です",
			Timestamp: time.Now(),
		}
		c.JSON(http.StatusConflict, errorResponse)
		return
	}
	if h.engine.CurrentSettings().CaptureMode == camera.CaptureModeImageOnly {
		errorResponse := ErrorResponse{
			Error:     "video_unavailable",
			Message:   "静止画専用モードでは録画できません",
			Timestamp: time.Now(),
		}
		c.JSON(http.StatusConflict, errorResponse)
		return
	}

	id, err := h.engine.StartRecording(req.Destination)
	if err != nil {
		errorResponse := ErrorResponse{
			Error:     "recording_failed",
			Message:   err.Error(),
			Timestamp: time.Now(),
		}
		c.JSON(http.StatusInternalServerError, errorResponse)
		return
	}

	response := StartRecordingResponse{
		RecordingID: id,
		Timestamp:   time.Now(),
	}
	c.JSON(http.StatusAccepted, response)
}

// PauseRecording は録画一時停止エンドポイントの実装
func (h *SatsueiHandler) PauseRecording(c *gin.Context) {
	if !h.requireActiveRecording(c) {
		return
	}
	h.engine.PauseRecording()
	c.Status(http.StatusAccepted)
}

// ResumeRecording は録画再開エンドポイントの実装
func (h *SatsueiHandler) ResumeRecording(c *gin.Context) {
	if !h.requireActiveRecording(c) {
		return
	}
	h.engine.ResumeRecording()
	c.Status(http.StatusAccepted)
}

// StopRecording は録画停止エンドポイントの実装
// 録画がなくても成功として扱う
func (h *SatsueiHandler) StopRecording(c *gin.Context) {
	h.engine.StopRecording()
	c.Status(http.StatusAccepted)
}

// MuteRecording は録音ミュート変更エンドポイントの実装
func (h *SatsueiHandler) MuteRecording(c *gin.Context) {
	var req MuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse := ErrorResponse{
			Error:     "invalid_request",
			Message:   "リクエストボディを解釈できません",
			Timestamp: time.Now(),
		}
		c.JSON(http.StatusBadRequest, errorResponse)
		return
	}

	if err := h.engine.SetRecordingMuted(req.Muted); err != nil {
		errorResponse := ErrorResponse{
			Error:     "no_active_recording",
			Message:   err.Error(),
			Timestamp: time.Now(),
		}
		c.JSON(http.StatusConflict, errorResponse)
		return
	}

	c.Status(http.StatusAccepted)
}

// ヘルパー関数

// requireActiveRecording は進行中の録画がない場合に409を返す
func (h *SatsueiHandler) requireActiveRecording(c *gin.Context) bool {
	if h.engine.RecordingInFlight() {
		return true
	}
	errorResponse := ErrorResponse{
		Error:     "no_active_recording",
		Message:   "進行中の録画がありません",
		Timestamp: time.Now(),
	}
	c.JSON(http.StatusConflict, errorResponse)
	return false
}

// setupSSE はSSE配信用のレスポンスヘッダーを設定しフラッシャーを取り出す
func setupSSE(c *gin.Context) (http.Flusher, bool) {
	// レスポンスヘッダーを設定
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Access-Control-Allow-Origin", "*")

	// レスポンスライターを取得
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.AbortWithStatus(http.StatusInternalServerError)
		return nil, false
	}
	return flusher, true
}

// writeSSE は1件の値をJSONに変換してSSEのdata行として書き込む
func writeSSE(c *gin.Context, flusher http.Flusher, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", payload); err != nil {
		return err
	}

	// バッファをフラッシュ
	flusher.Flush()
	return nil
}
