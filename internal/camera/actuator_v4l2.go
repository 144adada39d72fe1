package camera

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// v4l2Session は束縛中のセッション1つ分の実行状態
type v4l2Session struct {
	graph  StreamGraph
	events chan HardwareEvent
}

// V4L2Actuator はv4l2-ctlコマンド経由でセッション操作を適用するアクチュエーター
// UVCデバイスは多くのコントロールを公開しないため、存在しないコントロールへの
// 適用は読み飛ばして成功として扱う
type V4L2Actuator struct {
	mu       sync.Mutex
	sessions map[SessionHandle]*v4l2Session
	controls map[string]map[string]bool
	zoomMins map[string]int
}

// NewV4L2Actuator は新しいV4L2Actuatorを作成する
func NewV4L2Actuator() *V4L2Actuator {
	return &V4L2Actuator{
		sessions: make(map[SessionHandle]*v4l2Session),
		controls: make(map[string]map[string]bool),
		zoomMins: make(map[string]int),
	}
}

// Bind はストリーム構成の各デバイスを検証して束縛する
// 束縛後、実際に設定されているフォーマットを最初のフレーム通知として流す
func (a *V4L2Actuator) Bind(ctx context.Context, graph StreamGraph) (SessionHandle, error) {
	if len(graph.Legs) == 0 {
		return "", fmt.Errorf("ストリーム構成にレグがありません")
	}
	for _, leg := range graph.Legs {
		device := string(leg.Lens)
		if !isDeviceAvailable(device) {
			return "", fmt.Errorf("デバイスが利用できません: %s", device)
		}
	}

	primary := graph.PrimaryLeg()
	device := string(primary.Lens)
	if fps := legFrameRate(primary); fps > 0 {
		cmd := exec.CommandContext(ctx, "v4l2-ctl", "--device", device, "--set-parm", strconv.Itoa(fps))
		if err := cmd.Run(); err != nil {
			log.Printf("フレームレートの設定に失敗しました: %s: %v", device, err)
		}
	}

	handle := SessionHandle(uuid.New().String())
	session := &v4l2Session{
		graph:  graph,
		events: make(chan HardwareEvent, 8),
	}
	a.mu.Lock()
	a.sessions[handle] = session
	a.mu.Unlock()

	a.emit(handle, HardwareEvent{
		Kind:       HardwareEventFirstFrame,
		Resolution: currentResolution(ctx, device),
		At:         time.Now(),
	})
	return handle, nil
}

// Unbind はセッションを破棄して通知チャンネルを閉じる
func (a *V4L2Actuator) Unbind(ctx context.Context, handle SessionHandle) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	session, ok := a.sessions[handle]
	if !ok {
		return fmt.Errorf("未知のセッションハンドル: %s", handle)
	}
	close(session.events)
	delete(a.sessions, handle)
	return nil
}

// SetZoomRatio はzoom_absoluteコントロールへ倍率を換算して適用する
// ズームコントロールのないデバイスでは何もしない
func (a *V4L2Actuator) SetZoomRatio(ctx context.Context, handle SessionHandle, lens LensID, ratio float64) error {
	if err := a.checkHandle(handle); err != nil {
		return err
	}

	device := string(lens)
	minValue, ok := a.zoomMinimum(ctx, device)
	if !ok {
		return nil
	}
	// 倍率はzoom_absoluteの最小値を1.0倍として換算する
	value := int(ratio * float64(minValue))
	if value < minValue {
		value = minValue
	}
	return a.setControl(ctx, device, "zoom_absolute", strconv.Itoa(value))
}

// SetTorch はトーチ点灯状態を切り替える
// UVCにはトーチ相当のコントロールがないため、状態通知の合成のみ行う
func (a *V4L2Actuator) SetTorch(ctx context.Context, handle SessionHandle, on bool) error {
	if err := a.checkHandle(handle); err != nil {
		return err
	}
	if on {
		log.Printf("トーチ点灯が要求されましたが、このデバイスに発光部はありません")
	}
	a.emit(handle, HardwareEvent{Kind: HardwareEventTorchState, TorchOn: on, At: time.Now()})
	return nil
}

// StartFocusAndMetering はワンショットの自動合焦を起動する
// UVCは座標指定の測距を持たないため、座標はログに残すだけになる
func (a *V4L2Actuator) StartFocusAndMetering(ctx context.Context, handle SessionHandle, x, y float64) error {
	session, err := a.session(handle)
	if err != nil {
		return err
	}

	device := string(session.graph.PrimaryLeg().Lens)
	log.Printf("自動合焦を実行します: %s (%.2f, %.2f)", device, x, y)
	for _, name := range []string{"focus_automatic_continuous", "focus_auto"} {
		if !a.hasControl(ctx, device, name) {
			continue
		}
		return a.setControl(ctx, device, name, "1")
	}
	return fmt.Errorf("自動合焦コントロールがありません: %s", device)
}

// SetDeviceRotation はrotateコントロールへ回転角を適用する
func (a *V4L2Actuator) SetDeviceRotation(ctx context.Context, handle SessionHandle, degrees int) error {
	session, err := a.session(handle)
	if err != nil {
		return err
	}

	device := string(session.graph.PrimaryLeg().Lens)
	if !a.hasControl(ctx, device, "rotate") {
		return nil
	}
	return a.setControl(ctx, device, "rotate", strconv.Itoa(degrees))
}

// SetCaptureOption はベンダー拡張オプションを対応するコントロールへ対応付ける
func (a *V4L2Actuator) SetCaptureOption(ctx context.Context, handle SessionHandle, option CaptureOption, value string) error {
	session, err := a.session(handle)
	if err != nil {
		return err
	}
	device := string(session.graph.PrimaryLeg().Lens)

	switch option {
	case CaptureOptionTestPattern:
		if !a.hasControl(ctx, device, "test_pattern") {
			return nil
		}
		ctrl := "0"
		if value == string(TestPatternColorBars) {
			ctrl = "1"
		}
		return a.setControl(ctx, device, "test_pattern", ctrl)
	case CaptureOptionLowLightBoost:
		// 低照度ブーストは逆光補正コントロールで近似する
		if !a.hasControl(ctx, device, "backlight_compensation") {
			return nil
		}
		ctrl := "0"
		if value == "on" {
			ctrl = "1"
		}
		return a.setControl(ctx, device, "backlight_compensation", ctrl)
	}
	return fmt.Errorf("未知のキャプチャオプション: %s", option)
}

// Events は指定セッションの通知チャンネルを返す
func (a *V4L2Actuator) Events(handle SessionHandle) <-chan HardwareEvent {
	a.mu.Lock()
	defer a.mu.Unlock()

	session, ok := a.sessions[handle]
	if !ok {
		closed := make(chan HardwareEvent)
		close(closed)
		return closed
	}
	return session.events
}

// session はハンドルに対応するセッションを返す
func (a *V4L2Actuator) session(handle SessionHandle) (*v4l2Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	session, ok := a.sessions[handle]
	if !ok {
		return nil, fmt.Errorf("未知のセッションハンドル: %s", handle)
	}
	return session, nil
}

// checkHandle はハンドルの有効性だけを確認する
func (a *V4L2Actuator) checkHandle(handle SessionHandle) error {
	_, err := a.session(handle)
	return err
}

// emit は指定セッションへ通知イベントを積む
// 読み手が追いついていない場合は最も古い通知を捨てる
func (a *V4L2Actuator) emit(handle SessionHandle, ev HardwareEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	session, ok := a.sessions[handle]
	if !ok {
		return
	}
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

// setControl はv4l2-ctlでコントロール値を設定する
func (a *V4L2Actuator) setControl(ctx context.Context, device, name, value string) error {
	cmd := exec.CommandContext(ctx, "v4l2-ctl", "--device", device, "--set-ctrl", fmt.Sprintf("%s=%s", name, value))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("コントロール %s の設定に失敗: %s: %w", name, device, err)
	}
	return nil
}

// hasControl はデバイスが指定コントロールを公開しているかを返す
// 一覧は初回に取得してデバイスごとにキャッシュする
func (a *V4L2Actuator) hasControl(ctx context.Context, device, name string) bool {
	a.mu.Lock()
	known, ok := a.controls[device]
	a.mu.Unlock()
	if ok {
		return known[name]
	}

	known = listControls(ctx, device)
	a.mu.Lock()
	a.controls[device] = known
	a.mu.Unlock()
	return known[name]
}

// zoomMinimum はzoom_absoluteコントロールの最小値を返す
func (a *V4L2Actuator) zoomMinimum(ctx context.Context, device string) (int, bool) {
	a.mu.Lock()
	if v, ok := a.zoomMins[device]; ok {
		a.mu.Unlock()
		return v, v > 0
	}
	a.mu.Unlock()

	minValue := 0
	cmd := exec.CommandContext(ctx, "v4l2-ctl", "--device", device, "--list-ctrls")
	output, err := cmd.Output()
	if err == nil {
		if m := zoomPattern.FindStringSubmatch(string(output)); m != nil {
			minValue, _ = strconv.Atoi(m[1])
		}
	}

	a.mu.Lock()
	a.zoomMins[device] = minValue
	a.mu.Unlock()
	return minValue, minValue > 0
}

// legFrameRate はレグ内のストリームから目標フレームレートを取り出す
func legFrameRate(leg StreamLeg) int {
	for _, s := range leg.Streams {
		if s.FrameRate > 0 {
			return s.FrameRate
		}
	}
	return FrameRateAuto
}

var controlNamePattern = regexp.MustCompile(`^\s*([a-z0-9_]+)\s+0x[0-9a-f]+`)

// listControls は--list-ctrlsの出力からコントロール名の集合を作る
func listControls(ctx context.Context, device string) map[string]bool {
	names := make(map[string]bool)
	cmd := exec.CommandContext(ctx, "v4l2-ctl", "--device", device, "--list-ctrls")
	output, err := cmd.Output()
	if err != nil {
		return names
	}
	for _, line := range strings.Split(string(output), "\n") {
		if m := controlNamePattern.FindStringSubmatch(line); m != nil {
			names[m[1]] = true
		}
	}
	return names
}

var formatSizePattern = regexp.MustCompile(`Width/Height\s*:\s*(\d+)/(\d+)`)

// currentResolution は--get-fmt-videoから現在の解像度を取得する
func currentResolution(ctx context.Context, device string) Resolution {
	cmd := exec.CommandContext(ctx, "v4l2-ctl", "--device", device, "--get-fmt-video")
	output, err := cmd.Output()
	if err != nil {
		return Resolution{}
	}
	m := formatSizePattern.FindStringSubmatch(string(output))
	if m == nil {
		return Resolution{}
	}
	w, _ := strconv.Atoi(m[1])
	h, _ := strconv.Atoi(m[2])
	return Resolution{Width: w, Height: h}
}
