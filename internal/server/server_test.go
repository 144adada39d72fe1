package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"satsuei/internal/camera"
	"satsuei/internal/config"
	"satsuei/internal/recording"
	"satsuei/internal/session"
)

// serverEnv はサーバーテスト用の実行環境一式
type serverEnv struct {
	server *Server
	engine *session.Engine
	sink   *recording.MockSink
}

// newTestServer はモック構成のエンジンつきサーバーを作り、初回バインドまで待つ
func newTestServer(t *testing.T) *serverEnv {
	t.Helper()

	// テスト用の設定を作成
	cfg := &config.Config{
		Server: config.ServerConfig{
			Host:         "127.0.0.1",
			Port:         0, // ランダムポートを使用
			ReadTimeout:  config.Duration(5 * time.Second),
			WriteTimeout: config.Duration(0),
		},
		Hardware: config.HardwareConfig{
			Backend: "sim",
			Device:  "/dev/video0",
		},
		Recording: config.RecordingConfig{
			OutputDir: t.TempDir(),
		},
	}

	provider := camera.NewMockProvider()
	provider.AddLens(camera.DefaultRearCapabilities())
	provider.AddLens(camera.DefaultFrontCapabilities())
	provider.SetConcurrentSupported(true)
	catalog, err := camera.NewCatalog(context.Background(), provider)
	if err != nil {
		t.Fatalf("カタログの構築に失敗しました: %v", err)
	}

	actuator := camera.NewMockActuator()
	actuator.SetAutoFirstFrame(true)
	sink := recording.NewMockSink()
	engine := session.NewEngine(catalog, actuator, sink, session.Options{
		Defaults: camera.DefaultSettings(),
	})

	// エンジンを別ゴルーチンで起動
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		engine.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("エンジンの停止がタイムアウトしました")
		}
	})

	// 初回バインドの完了を待つ
	waitFor(t, "初回バインド", engine.IsBound)

	return &serverEnv{server: New(cfg, engine), engine: engine, sink: sink}
}

// waitFor は条件が成立するまで待つ
func waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("%sが時間内に完了しませんでした", desc)
}

// perform はルーターへテストリクエストを送り記録された応答を返す
func (env *serverEnv) perform(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	env.server.router.ServeHTTP(w, req)
	return w
}

// decodeJSON は応答ボディをデコードする
func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("応答JSONのデコードに失敗しました: %v", err)
	}
}

// TestServerStartAndShutdown はサーバーの起動とシャットダウンをテストする
func TestServerStartAndShutdown(t *testing.T) {
	env := newTestServer(t)

	// テスト用のコンテキスト（タイムアウト付き）
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// サーバーを別ゴルーチンで起動
	errCh := make(chan error, 1)
	go func() {
		errCh <- env.server.Start(ctx)
	}()

	// サーバーが起動するまで少し待つ
	time.Sleep(100 * time.Millisecond)

	// コンテキストをキャンセルしてサーバーを停止
	cancel()

	// エラーチャンネルから結果を受信
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("サーバーの起動/停止でエラーが発生しました: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("サーバーの停止がタイムアウトしました")
	}
}

// TestServerEndpoints は読み取り系エンドポイントの疎通をテストする
func TestServerEndpoints(t *testing.T) {
	env := newTestServer(t)

	// テストケース
	testCases := []struct {
		name           string
		endpoint       string
		expectedStatus int
	}{
		{"ルートエンドポイント", "/", http.StatusOK},
		{"ヘルスチェックエンドポイント", "/health", http.StatusOK},
		{"ステータスエンドポイント", "/api/status", http.StatusOK},
		{"レンズ一覧エンドポイント", "/api/lenses", http.StatusOK},
		{"観測状態エンドポイント", "/api/state", http.StatusOK},
		{"設定取得エンドポイント", "/api/settings", http.StatusOK},
	}

	// 各エンドポイントをテスト
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.perform(http.MethodGet, tc.endpoint, "")
			if w.Code != tc.expectedStatus {
				t.Errorf("予期しないステータスコード: got %d, want %d",
					w.Code, tc.expectedStatus)
			}
		})
	}
}

// TestGetStatus はステータス応答の内容をテストする
func TestGetStatus(t *testing.T) {
	env := newTestServer(t)

	w := env.perform(http.MethodGet, "/api/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("予期しないステータスコード: got %d, want %d", w.Code, http.StatusOK)
	}

	var response StatusResponse
	decodeJSON(t, w, &response)

	if response.Status != "running" {
		t.Errorf("予期しない稼働状態: got %s, want running", response.Status)
	}
	if response.Backend != "sim" {
		t.Errorf("予期しないバックエンド: got %s, want sim", response.Backend)
	}
	if response.Lenses != 2 {
		t.Errorf("予期しないレンズ数: got %d, want 2", response.Lenses)
	}
	if !response.Bound {
		t.Error("バインド済みであるべきです")
	}
	if response.Recording {
		t.Error("録画中ではないはずです")
	}
}

// TestGetLenses はレンズ能力一覧の応答をテストする
func TestGetLenses(t *testing.T) {
	env := newTestServer(t)

	w := env.perform(http.MethodGet, "/api/lenses", "")
	if w.Code != http.StatusOK {
		t.Fatalf("予期しないステータスコード: got %d, want %d", w.Code, http.StatusOK)
	}

	var response LensesResponse
	decodeJSON(t, w, &response)

	if !response.ConcurrentSupported {
		t.Error("同時カメラ対応と報告されるべきです")
	}
	if response.DefaultFacing != camera.LensFacingRear {
		t.Errorf("予期しない既定レンズ: got %s, want %s", response.DefaultFacing, camera.LensFacingRear)
	}
	if len(response.Lenses) != 2 {
		t.Fatalf("予期しないレンズ数: got %d, want 2", len(response.Lenses))
	}
}

// TestUpdateSettingsPartial は設定の部分更新をテストする
func TestUpdateSettingsPartial(t *testing.T) {
	env := newTestServer(t)

	// アスペクト比だけを変更する
	w := env.perform(http.MethodPost, "/api/settings", `{"aspect_ratio":"16:9"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("予期しないステータスコード: got %d, want %d (body=%s)", w.Code, http.StatusOK, w.Body.String())
	}

	var settings camera.Settings
	decodeJSON(t, w, &settings)

	if settings.AspectRatio != camera.AspectRatioSixteenNine {
		t.Errorf("予期しないアスペクト比: got %s, want %s", settings.AspectRatio, camera.AspectRatioSixteenNine)
	}
	// 指定しなかったフィールドは維持される
	if settings.LensFacing != camera.LensFacingRear {
		t.Errorf("予期しないレンズ向き: got %s, want %s", settings.LensFacing, camera.LensFacingRear)
	}
}

// TestUpdateSettingsResolved は応答が制約解決済みであることをテストする
func TestUpdateSettingsResolved(t *testing.T) {
	env := newTestServer(t)

	// 単一ストリーム構成ではUltraHDRは使えないため、JPEGへ解決される
	w := env.perform(http.MethodPost, "/api/settings",
		`{"stream_config":"single_stream","image_format":"jpeg_ultra_hdr"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("予期しないステータスコード: got %d, want %d", w.Code, http.StatusOK)
	}

	var settings camera.Settings
	decodeJSON(t, w, &settings)

	if settings.StreamConfig != camera.StreamConfigSingleStream {
		t.Errorf("予期しないストリーム構成: got %s, want %s", settings.StreamConfig, camera.StreamConfigSingleStream)
	}
	if settings.ImageFormat != camera.ImageFormatJPEG {
		t.Errorf("予期しない画像形式: got %s, want %s", settings.ImageFormat, camera.ImageFormatJPEG)
	}
}

// TestUpdateSettingsErrors は設定更新の失敗応答をテストする
func TestUpdateSettingsErrors(t *testing.T) {
	env := newTestServer(t)

	testCases := []struct {
		name           string
		body           string
		expectedStatus int
	}{
		{"壊れたJSON", `{"aspect_ratio":`, http.StatusBadRequest},
		{"存在しないレンズ向き", `{"lens_facing":"ceiling"}`, http.StatusNotFound},
		{"無効な回転角", `{"device_rotation":45}`, http.StatusBadRequest},
		{"負の録画上限", `{"max_video_duration":-1}`, http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.perform(http.MethodPost, "/api/settings", tc.body)
			if w.Code != tc.expectedStatus {
				t.Errorf("予期しないステータスコード: got %d, want %d (body=%s)",
					w.Code, tc.expectedStatus, w.Body.String())
			}
		})
	}
}

// TestTapToFocusEndpoint はタップ合焦エンドポイントをテストする
func TestTapToFocusEndpoint(t *testing.T) {
	env := newTestServer(t)

	w := env.perform(http.MethodPost, "/api/focus", `{"x":0.5,"y":0.5}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("予期しないステータスコード: got %d, want %d (body=%s)", w.Code, http.StatusAccepted, w.Body.String())
	}

	// 範囲外の座標は拒否される
	w = env.perform(http.MethodPost, "/api/focus", `{"x":1.5,"y":0.5}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("予期しないステータスコード: got %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// TestRecordingFlow は録画操作の一連の流れをテストする
func TestRecordingFlow(t *testing.T) {
	env := newTestServer(t)

	// 録画を開始する
	w := env.perform(http.MethodPost, "/api/recording/start", `{"destination":"out.mp4"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("予期しないステータスコード: got %d, want %d (body=%s)", w.Code, http.StatusAccepted, w.Body.String())
	}
	var started StartRecordingResponse
	decodeJSON(t, w, &started)
	if started.RecordingID == "" {
		t.Error("録画IDが空です")
	}

	// 多重開始は拒否される
	w = env.perform(http.MethodPost, "/api/recording/start", "")
	if w.Code != http.StatusConflict {
		t.Errorf("予期しないステータスコード: got %d, want %d", w.Code, http.StatusConflict)
	}

	// 一時停止、再開、ミュートは受け付けられる
	for _, path := range []string{"/api/recording/pause", "/api/recording/resume"} {
		w = env.perform(http.MethodPost, path, "")
		if w.Code != http.StatusAccepted {
			t.Errorf("%s: 予期しないステータスコード: got %d, want %d", path, w.Code, http.StatusAccepted)
		}
	}
	w = env.perform(http.MethodPost, "/api/recording/mute", `{"muted":true}`)
	if w.Code != http.StatusAccepted {
		t.Errorf("予期しないステータスコード: got %d, want %d", w.Code, http.StatusAccepted)
	}

	// 停止して確定を待つ
	w = env.perform(http.MethodPost, "/api/recording/stop", "")
	if w.Code != http.StatusAccepted {
		t.Errorf("予期しないステータスコード: got %d, want %d", w.Code, http.StatusAccepted)
	}
	waitFor(t, "録画の確定", func() bool { return !env.engine.RecordingInFlight() })

	// 録画がない状態での一時停止とミュートは409になる
	w = env.perform(http.MethodPost, "/api/recording/pause", "")
	if w.Code != http.StatusConflict {
		t.Errorf("予期しないステータスコード: got %d, want %d", w.Code, http.StatusConflict)
	}
	w = env.perform(http.MethodPost, "/api/recording/mute", `{"muted":true}`)
	if w.Code != http.StatusConflict {
		t.Errorf("予期しないステータスコード: got %d, want %d", w.Code, http.StatusConflict)
	}

	// 録画がない状態での停止は成功として扱う
	w = env.perform(http.MethodPost, "/api/recording/stop", "")
	if w.Code != http.StatusAccepted {
		t.Errorf("予期しないステータスコード: got %d, want %d", w.Code, http.StatusAccepted)
	}
}

// TestStartRecordingImageOnly は静止画専用モードでの録画拒否をテストする
func TestStartRecordingImageOnly(t *testing.T) {
	env := newTestServer(t)

	w := env.perform(http.MethodPost, "/api/settings", `{"capture_mode":"image_only"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("予期しないステータスコード: got %d, want %d", w.Code, http.StatusOK)
	}

	// 構成変更による再バインドの完了を待つ
	waitFor(t, "再バインド", func() bool {
		return env.engine.IsBound() && env.engine.CurrentState().BindCount == 2
	})

	w = env.perform(http.MethodPost, "/api/recording/start", "")
	if w.Code != http.StatusConflict {
		t.Fatalf("予期しないステータスコード: got %d, want %d (body=%s)", w.Code, http.StatusConflict, w.Body.String())
	}

	var response ErrorResponse
	decodeJSON(t, w, &response)
	if response.Error != "video_unavailable" {
		t.Errorf("予期しないエラー種別: got %s, want video_unavailable", response.Error)
	}
}

// TestStateStream はSSEでの観測状態配信をテストする
func TestStateStream(t *testing.T) {
	env := newTestServer(t)

	// 実リスナー上でストリーミングを検証する
	ts := httptest.NewServer(env.server.router)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/state/stream", nil)
	if err != nil {
		t.Fatalf("リクエストの作成に失敗しました: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("HTTPリクエストでエラーが発生しました: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("予期しないContent-Type: got %s, want text/event-stream", ct)
	}

	// 接続直後に現在状態が1件流れてくる
	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("ストリームの読み取りに失敗しました: %v", err)
	}
	if !strings.HasPrefix(line, "data: ") {
		t.Fatalf("予期しないSSE行: %q", line)
	}

	var state camera.CameraState
	if err := json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &state); err != nil {
		t.Fatalf("状態JSONのデコードに失敗しました: %v", err)
	}
	if state.SessionID == "" {
		t.Error("セッションIDが空です")
	}
	if state.BindCount != 1 {
		t.Errorf("予期しないバインド回数: got %d, want 1", state.BindCount)
	}
}
