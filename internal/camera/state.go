package camera

import "sync"

// StateCell はCameraStateの共有セル
// 書き込みはセッションドライバーの1本のゴルーチンからのみ行われ、
// 複数の読み手は最新値のコピーを受け取る
type StateCell struct {
	mu       sync.RWMutex
	state    CameraState
	watchers []chan CameraState
}

// NewStateCell は初期状態のセルを作成する
func NewStateCell() *StateCell {
	return &StateCell{
		state: CameraState{
			ZoomRatios:  make(map[LensFacing]float64),
			LinearZooms: make(map[LensFacing]float64),
			VideoRecording: VideoRecordingState{
				Status: RecordingStatusInactive,
			},
		},
	}
}

// Get は現在の状態のコピーを返す
func (c *StateCell) Get() CameraState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyCameraState(c.state)
}

// Update は現在の状態へ差分を取り込み、監視チャンネルへ通知する
// 差分関数はロック中に呼ばれるため、ブロックする処理を入れてはならない
func (c *StateCell) Update(merge func(*CameraState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	merge(&c.state)
	c.notifyLocked()
}

// Watch は状態更新を受け取るチャンネルを返す
// チャンネルは最新値のみ保持し、読み手が遅れた場合は古い値を破棄する
func (c *StateCell) Watch() <-chan CameraState {
	ch := make(chan CameraState, 1)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watchers = append(c.watchers, ch)
	ch <- copyCameraState(c.state)
	return ch
}

// notifyLocked は全ての監視チャンネルへ最新状態を配る
// 読み手が追いついていない場合は古い値を捨てて差し替える
func (c *StateCell) notifyLocked() {
	for _, ch := range c.watchers {
		snapshot := copyCameraState(c.state)
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}

// copyCameraState は内部マップを含めた状態のコピーを返す
func copyCameraState(s CameraState) CameraState {
	dst := s
	dst.ZoomRatios = copyZoomMap(s.ZoomRatios)
	dst.LinearZooms = copyZoomMap(s.LinearZooms)
	return dst
}
