package camera

import "testing"

func TestNewStateCell_InitialState(t *testing.T) {
	cell := NewStateCell()
	state := cell.Get()

	if state.VideoRecording.Status != RecordingStatusInactive {
		t.Errorf("Expected initial recording status to be inactive, got %s", state.VideoRecording.Status)
	}
	if state.Focus.Specified {
		t.Error("Expected initial focus to be unspecified")
	}
	if state.ZoomRatios == nil || state.LinearZooms == nil {
		t.Error("Expected zoom maps to be initialized")
	}
}

func TestStateCell_GetReturnsCopy(t *testing.T) {
	cell := NewStateCell()

	state := cell.Get()
	state.ZoomRatios[LensFacingRear] = 5.0
	state.SessionID = "tampered"

	fresh := cell.Get()
	if _, ok := fresh.ZoomRatios[LensFacingRear]; ok {
		t.Error("Expected mutation of returned map to not affect the cell")
	}
	if fresh.SessionID == "tampered" {
		t.Error("Expected mutation of returned struct to not affect the cell")
	}
}

func TestStateCell_UpdateMergesState(t *testing.T) {
	cell := NewStateCell()

	cell.Update(func(s *CameraState) {
		s.SessionID = "session-1"
		s.ZoomRatios[LensFacingRear] = 2.0
	})
	cell.Update(func(s *CameraState) {
		s.TorchEnabled = true
	})

	state := cell.Get()
	if state.SessionID != "session-1" {
		t.Errorf("Expected session-1, got %s", state.SessionID)
	}
	if state.ZoomRatios[LensFacingRear] != 2.0 {
		t.Errorf("Expected rear zoom 2.0, got %f", state.ZoomRatios[LensFacingRear])
	}
	if !state.TorchEnabled {
		t.Error("Expected torch to stay enabled after unrelated update")
	}
}

func TestStateCell_WatchReceivesInitialValue(t *testing.T) {
	cell := NewStateCell()
	ch := cell.Watch()

	select {
	case state := <-ch:
		if state.VideoRecording.Status != RecordingStatusInactive {
			t.Errorf("Expected initial state on watch, got %s", state.VideoRecording.Status)
		}
	default:
		t.Error("Expected initial value to be immediately available")
	}
}

func TestStateCell_WatcherKeepsOnlyLatest(t *testing.T) {
	cell := NewStateCell()
	ch := cell.Watch()

	// 読み手が追いつかない間に複数回更新する
	for i := 1; i <= 5; i++ {
		n := i
		cell.Update(func(s *CameraState) {
			s.BindCount = n
		})
	}

	state := <-ch
	if state.BindCount != 5 {
		t.Errorf("Expected latest value 5, got %d", state.BindCount)
	}

	// 追加の値は残っていない
	select {
	case extra := <-ch:
		t.Errorf("Expected no queued values, got bind count %d", extra.BindCount)
	default:
	}
}

func TestStateCell_MultipleWatchers(t *testing.T) {
	cell := NewStateCell()
	first := cell.Watch()
	second := cell.Watch()

	cell.Update(func(s *CameraState) {
		s.SessionID = "shared"
	})

	for i, ch := range []<-chan CameraState{first, second} {
		state := <-ch
		if state.SessionID != "shared" {
			t.Errorf("Watcher %d: expected shared session id, got %q", i, state.SessionID)
		}
	}
}
