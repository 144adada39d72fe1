package recording

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"
)

// FFmpegSink はffmpegでV4L2デバイスからMP4を記録するシンク
// 一時停止はプロセスのSIGSTOP/SIGCONTで実現する。音声は扱わないため、
// ミュート切り替えは記録のみ行う
type FFmpegSink struct {
	device    string
	outputDir string
}

// NewFFmpegSink は新しいFFmpegSinkを作成する
func NewFFmpegSink(device, outputDir string) *FFmpegSink {
	return &FFmpegSink{
		device:    device,
		outputDir: outputDir,
	}
}

// PrepareRecording は出力先ディレクトリを確保して開始前の録画を作る
// 出力先が空の場合はタイムスタンプからファイル名を生成する
func (s *FFmpegSink) PrepareRecording(ctx context.Context, destination string) (*PendingRecording, error) {
	if destination == "" {
		filename := fmt.Sprintf("recording_%s.mp4", time.Now().Format("20060102_150405"))
		destination = filepath.Join(s.outputDir, filename)
	}

	if err := os.MkdirAll(filepath.Dir(destination), 0755); err != nil {
		return nil, fmt.Errorf("出力ディレクトリの作成に失敗: %w", err)
	}

	return &PendingRecording{Destination: destination}, nil
}

// Start はffmpegプロセスを起動して録画を開始する
func (s *FFmpegSink) Start(ctx context.Context, pending *PendingRecording) (Handle, error) {
	args := []string{
		"-f", "v4l2",
		"-i", s.device,
		"-an",
		"-c:v", "libx264",
		"-preset", "ultrafast",
	}
	if pending.MaxDuration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.3f", pending.MaxDuration.Seconds()))
	}
	args = append(args, "-y", pending.Destination)

	cmd := exec.Command("ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpegの起動に失敗: %w", err)
	}

	h := &ffmpegHandle{
		cmd:      cmd,
		stderr:   &stderr,
		pending:  pending,
		events:   make(chan SinkEvent, 16),
		startAt:  time.Now(),
		waitDone: make(chan struct{}),
	}

	h.emit(SinkEvent{Kind: SinkEventStart})
	go h.reportStatus()
	go h.wait()
	return h, nil
}

// ffmpegHandle はffmpegプロセス1つ分の録画ハンドル
type ffmpegHandle struct {
	cmd     *exec.Cmd
	stderr  *bytes.Buffer
	pending *PendingRecording
	events  chan SinkEvent

	waitDone chan struct{}

	mu            sync.Mutex
	startAt       time.Time
	pausedAt      time.Time
	pausedTotal   time.Duration
	paused        bool
	stopRequested bool
	closed        bool
}

// elapsedLocked は一時停止期間を除いた経過時間を返す
func (h *ffmpegHandle) elapsedLocked() time.Duration {
	elapsed := time.Since(h.startAt) - h.pausedTotal
	if h.paused {
		elapsed -= time.Since(h.pausedAt)
	}
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// emit は確認イベントを送る。バッファ超過時は最も古いイベントを捨てる
func (h *ffmpegHandle) emit(ev SinkEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	select {
	case h.events <- ev:
	default:
		select {
		case <-h.events:
		default:
		}
		select {
		case h.events <- ev:
		default:
		}
	}
}

// reportStatus は1秒ごとに経過時間を報告する
func (h *ffmpegHandle) reportStatus() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.waitDone:
			return
		case <-ticker.C:
			h.mu.Lock()
			elapsed := h.elapsedLocked()
			paused := h.paused
			h.mu.Unlock()
			if !paused {
				h.emit(SinkEvent{Kind: SinkEventStatus, ElapsedNanos: elapsed.Nanoseconds()})
			}
		}
	}
}

// wait はプロセスの終了を待って確定イベントを送る
func (h *ffmpegHandle) wait() {
	waitErr := h.cmd.Wait()
	close(h.waitDone)

	h.mu.Lock()
	elapsed := h.elapsedLocked()
	stopRequested := h.stopRequested
	h.mu.Unlock()

	// 停止要求なしで上限時間まで走り切った場合は上限到達とみなす
	durationLimited := !stopRequested &&
		h.pending.MaxDuration > 0 &&
		elapsed >= h.pending.MaxDuration-500*time.Millisecond

	var resultErr error
	if waitErr != nil && !stopRequested && !durationLimited {
		resultErr = fmt.Errorf("ffmpegが異常終了しました: %w (stderr: %s)", waitErr, tailString(h.stderr.String(), 300))
	}

	h.emit(SinkEvent{
		Kind:                 SinkEventFinalize,
		ElapsedNanos:         elapsed.Nanoseconds(),
		DurationLimitReached: durationLimited,
		OutputLocation:       h.pending.Destination,
		Err:                  resultErr,
	})

	h.mu.Lock()
	h.closed = true
	close(h.events)
	h.mu.Unlock()
}

// Pause はプロセスへSIGSTOPを送って録画を一時停止する
func (h *ffmpegHandle) Pause(ctx context.Context) error {
	h.mu.Lock()
	if h.paused {
		h.mu.Unlock()
		return nil
	}
	if err := h.cmd.Process.Signal(syscall.SIGSTOP); err != nil {
		h.mu.Unlock()
		return fmt.Errorf("一時停止シグナルの送信に失敗: %w", err)
	}
	h.paused = true
	h.pausedAt = time.Now()
	elapsed := h.elapsedLocked()
	h.mu.Unlock()

	h.emit(SinkEvent{Kind: SinkEventPause, ElapsedNanos: elapsed.Nanoseconds()})
	return nil
}

// Resume はプロセスへSIGCONTを送って録画を再開する
func (h *ffmpegHandle) Resume(ctx context.Context) error {
	h.mu.Lock()
	if !h.paused {
		h.mu.Unlock()
		return nil
	}
	if err := h.cmd.Process.Signal(syscall.SIGCONT); err != nil {
		h.mu.Unlock()
		return fmt.Errorf("再開シグナルの送信に失敗: %w", err)
	}
	h.pausedTotal += time.Since(h.pausedAt)
	h.paused = false
	elapsed := h.elapsedLocked()
	h.mu.Unlock()

	h.emit(SinkEvent{Kind: SinkEventResume, ElapsedNanos: elapsed.Nanoseconds()})
	return nil
}

// Stop はSIGINTでffmpegへ出力確定を要求する
// 一定時間内に終了しない場合は強制終了する
func (h *ffmpegHandle) Stop(ctx context.Context) error {
	h.mu.Lock()
	if h.stopRequested {
		h.mu.Unlock()
		return nil
	}
	h.stopRequested = true
	// 一時停止中のプロセスはシグナルを処理できないため先に再開する
	if h.paused {
		_ = h.cmd.Process.Signal(syscall.SIGCONT)
		h.pausedTotal += time.Since(h.pausedAt)
		h.paused = false
	}
	h.mu.Unlock()

	if err := h.cmd.Process.Signal(os.Interrupt); err != nil {
		return fmt.Errorf("停止シグナルの送信に失敗: %w", err)
	}

	// 出力確定を待ち、タイムアウトしたら強制終了する
	go func() {
		select {
		case <-h.waitDone:
		case <-time.After(5 * time.Second):
			log.Printf("ffmpegの終了待ちがタイムアウトしたため強制終了します: %s", h.pending.Destination)
			_ = h.cmd.Process.Kill()
		}
	}()
	return nil
}

// SetMuted は音声を扱わないこの実装では記録のみ行う
func (h *ffmpegHandle) SetMuted(muted bool) error {
	log.Printf("FFmpegSinkは音声を扱わないためミュート切り替えを記録のみします: muted=%t", muted)
	return nil
}

// Events は確認イベントチャンネルを返す
func (h *ffmpegHandle) Events() <-chan SinkEvent {
	return h.events
}

// tailString は文字列の末尾を最大n文字で返す
func tailString(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
