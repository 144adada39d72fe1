package recording

import (
	"context"
	"errors"
	"testing"
	"time"

	"satsuei/internal/camera"
)

// recorderEnv はライフサイクルテスト用の観測環境
type recorderEnv struct {
	sink    *MockSink
	states  chan camera.VideoRecordingState
	torches chan bool
	results chan Result
}

func newRecorderEnv() *recorderEnv {
	return &recorderEnv{
		sink:    NewMockSink(),
		states:  make(chan camera.VideoRecordingState, 32),
		torches: make(chan bool, 8),
		results: make(chan Result, 4),
	}
}

func (e *recorderEnv) publish(s camera.VideoRecordingState) {
	e.states <- s
}

func (e *recorderEnv) torch(on bool) {
	e.torches <- on
}

func (e *recorderEnv) onResult(r Result) {
	e.results <- r
}

// waitForStatus は指定の録画状態が公開されるまで待つ
func waitForStatus(t *testing.T, states <-chan camera.VideoRecordingState, want camera.RecordingStatus) camera.VideoRecordingState {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-states:
			if s.Status == want {
				return s
			}
		case <-deadline:
			t.Fatalf("Timed out waiting for status %s", want)
		}
	}
}

// waitForResult は終了結果が届くまで待つ
func waitForResult(t *testing.T, results <-chan Result) Result {
	t.Helper()
	select {
	case r := <-results:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for recording result")
		return Result{}
	}
}

func TestStart_PublishesStartingThenRecording(t *testing.T) {
	ctx := context.Background()
	env := newRecorderEnv()

	lc, err := Start(ctx, env.sink, StartOptions{Destination: "mock://video"}, env.publish, env.torch, env.onResult)
	if err != nil {
		t.Fatalf("Failed to start recording: %v", err)
	}

	starting := waitForStatus(t, env.states, camera.RecordingStatusStarting)
	if starting.RecordingID != lc.ID() {
		t.Errorf("Expected recording id %s, got %s", lc.ID(), starting.RecordingID)
	}

	waitForStatus(t, env.states, camera.RecordingStatusRecording)
}

func TestStart_PrepareFailurePublishesInactive(t *testing.T) {
	ctx := context.Background()
	env := newRecorderEnv()
	env.sink.SetShouldFailPrepare(true)

	_, err := Start(ctx, env.sink, StartOptions{}, env.publish, env.torch, env.onResult)
	if err == nil {
		t.Fatal("Expected error when prepare fails")
	}

	waitForStatus(t, env.states, camera.RecordingStatusStarting)
	waitForStatus(t, env.states, camera.RecordingStatusInactive)
}

func TestStart_StartFailurePublishesInactive(t *testing.T) {
	ctx := context.Background()
	env := newRecorderEnv()
	env.sink.SetShouldFailStart(true)

	_, err := Start(ctx, env.sink, StartOptions{}, env.publish, env.torch, env.onResult)
	if err == nil {
		t.Fatal("Expected error when sink start fails")
	}

	waitForStatus(t, env.states, camera.RecordingStatusInactive)
}

func TestStart_TorchWanted(t *testing.T) {
	ctx := context.Background()
	env := newRecorderEnv()

	lc, err := Start(ctx, env.sink, StartOptions{TorchWanted: true}, env.publish, env.torch, env.onResult)
	if err != nil {
		t.Fatalf("Failed to start recording: %v", err)
	}

	select {
	case on := <-env.torches:
		if !on {
			t.Error("Expected torch to be turned on at start")
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for torch on")
	}

	waitForStatus(t, env.states, camera.RecordingStatusRecording)
	lc.Stop()

	// 終端遷移でトーチが消える
	select {
	case on := <-env.torches:
		if on {
			t.Error("Expected torch to be turned off at finalize")
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for torch off")
	}
}

func TestLifecycle_PauseResume(t *testing.T) {
	ctx := context.Background()
	env := newRecorderEnv()

	lc, err := Start(ctx, env.sink, StartOptions{}, env.publish, env.torch, env.onResult)
	if err != nil {
		t.Fatalf("Failed to start recording: %v", err)
	}
	waitForStatus(t, env.states, camera.RecordingStatusRecording)

	lc.Pause()
	waitForStatus(t, env.states, camera.RecordingStatusPaused)

	handle := env.sink.LastHandle()
	if handle.PauseCount() != 1 {
		t.Errorf("Expected 1 pause call, got %d", handle.PauseCount())
	}

	lc.Resume()
	waitForStatus(t, env.states, camera.RecordingStatusRecording)
	if handle.ResumeCount() != 1 {
		t.Errorf("Expected 1 resume call, got %d", handle.ResumeCount())
	}
}

func TestLifecycle_StopIsSuccess(t *testing.T) {
	ctx := context.Background()
	env := newRecorderEnv()

	lc, err := Start(ctx, env.sink, StartOptions{Destination: "mock://stop-test"}, env.publish, env.torch, env.onResult)
	if err != nil {
		t.Fatalf("Failed to start recording: %v", err)
	}
	waitForStatus(t, env.states, camera.RecordingStatusRecording)

	env.sink.LastHandle().SetElapsed(5 * int64(time.Second))
	lc.Stop()

	final := waitForStatus(t, env.states, camera.RecordingStatusInactive)
	if final.FinalElapsedNanos != 5*int64(time.Second) {
		t.Errorf("Expected final elapsed 5s, got %d", final.FinalElapsedNanos)
	}

	result := waitForResult(t, env.results)
	if result.Err != nil {
		t.Errorf("Expected successful result, got error: %v", result.Err)
	}
	if result.OutputLocation != "mock://stop-test" {
		t.Errorf("Expected output location mock://stop-test, got %s", result.OutputLocation)
	}

	select {
	case <-lc.Done():
	case <-time.After(time.Second):
		t.Error("Expected lifecycle to be done after finalize")
	}
}

func TestLifecycle_DurationLimitIsSuccess(t *testing.T) {
	ctx := context.Background()
	env := newRecorderEnv()

	maxDuration := 2 * time.Second
	_, err := Start(ctx, env.sink, StartOptions{MaxDuration: maxDuration}, env.publish, env.torch, env.onResult)
	if err != nil {
		t.Fatalf("Failed to start recording: %v", err)
	}
	waitForStatus(t, env.states, camera.RecordingStatusRecording)

	// 計測値が上限を超えていても、確定値は上限そのものになる
	env.sink.LastHandle().TriggerDurationLimit(maxDuration.Nanoseconds() + 37*int64(time.Millisecond))

	final := waitForStatus(t, env.states, camera.RecordingStatusInactive)
	if final.FinalElapsedNanos != maxDuration.Nanoseconds() {
		t.Errorf("Expected final elapsed to equal the limit %d, got %d", maxDuration.Nanoseconds(), final.FinalElapsedNanos)
	}

	result := waitForResult(t, env.results)
	if result.Err != nil {
		t.Errorf("Expected duration limit to be a success, got error: %v", result.Err)
	}
	if !result.DurationLimited {
		t.Error("Expected result to be marked duration limited")
	}
}

func TestLifecycle_SinkErrorProducesError(t *testing.T) {
	ctx := context.Background()
	env := newRecorderEnv()

	_, err := Start(ctx, env.sink, StartOptions{TorchWanted: true}, env.publish, env.torch, env.onResult)
	if err != nil {
		t.Fatalf("Failed to start recording: %v", err)
	}
	waitForStatus(t, env.states, camera.RecordingStatusRecording)
	<-env.torches // 開始時の点灯を読み捨てる

	sinkErr := errors.New("disk full")
	env.sink.LastHandle().FailWith(sinkErr)

	waitForStatus(t, env.states, camera.RecordingStatusInactive)

	result := waitForResult(t, env.results)
	if !errors.Is(result.Err, sinkErr) {
		t.Errorf("Expected sink error in result, got %v", result.Err)
	}

	// エラー終了でもトーチは消える
	select {
	case on := <-env.torches:
		if on {
			t.Error("Expected torch off on error finalize")
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for torch off")
	}
}

func TestLifecycle_StatusUpdates(t *testing.T) {
	ctx := context.Background()
	env := newRecorderEnv()

	_, err := Start(ctx, env.sink, StartOptions{}, env.publish, env.torch, env.onResult)
	if err != nil {
		t.Fatalf("Failed to start recording: %v", err)
	}
	waitForStatus(t, env.states, camera.RecordingStatusRecording)

	env.sink.LastHandle().EmitStatus(0.7, 1234)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-env.states:
			if s.AudioAmplitude == 0.7 && s.ElapsedNanos == 1234 {
				return
			}
		case <-deadline:
			t.Fatal("Timed out waiting for status update")
		}
	}
}

func TestLifecycle_MuteForwarded(t *testing.T) {
	ctx := context.Background()
	env := newRecorderEnv()

	lc, err := Start(ctx, env.sink, StartOptions{AudioEnabled: true}, env.publish, env.torch, env.onResult)
	if err != nil {
		t.Fatalf("Failed to start recording: %v", err)
	}
	waitForStatus(t, env.states, camera.RecordingStatusRecording)

	lc.SetMuted(true)

	handle := env.sink.LastHandle()
	deadline := time.After(2 * time.Second)
	for !handle.Muted() {
		select {
		case <-deadline:
			t.Fatal("Timed out waiting for mute to be forwarded")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestLifecycle_StaleControlIgnored(t *testing.T) {
	ctx := context.Background()
	env := newRecorderEnv()
	env.sink.SetAutoConfirmStart(false)

	lc, err := Start(ctx, env.sink, StartOptions{}, env.publish, env.torch, env.onResult)
	if err != nil {
		t.Fatalf("Failed to start recording: %v", err)
	}

	// ハードウェア確認前の一時停止要求は無視される
	lc.Pause()
	time.Sleep(100 * time.Millisecond)
	env.sink.LastHandle().EmitStart()
	waitForStatus(t, env.states, camera.RecordingStatusRecording)

	if count := env.sink.LastHandle().PauseCount(); count != 0 {
		t.Errorf("Expected stale pause to be ignored, got %d pause calls", count)
	}
}

func TestLifecycle_ContextCancelAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	env := newRecorderEnv()

	lc, err := Start(ctx, env.sink, StartOptions{}, env.publish, env.torch, env.onResult)
	if err != nil {
		t.Fatalf("Failed to start recording: %v", err)
	}
	waitForStatus(t, env.states, camera.RecordingStatusRecording)

	cancel()

	waitForStatus(t, env.states, camera.RecordingStatusInactive)
	result := waitForResult(t, env.results)
	if !errors.Is(result.Err, context.Canceled) {
		t.Errorf("Expected context cancellation in result, got %v", result.Err)
	}

	select {
	case <-lc.Done():
	case <-time.After(time.Second):
		t.Error("Expected lifecycle to be done after abort")
	}

	if !env.sink.LastHandle().Stopped() {
		t.Error("Expected sink handle to be stopped on abort")
	}
}
