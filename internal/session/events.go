package session

// EventKind はエンジンからの一回限りの通知種別を表す
type EventKind string

const (
	// EventScreenFlash は発光部のないレンズでの録画開始時に画面発光を求める通知
	EventScreenFlash EventKind = "screen_flash"
	// EventBindFailure はハードウェアがセッション構成を拒否したことの通知
	EventBindFailure EventKind = "bind_failure"
	// EventRecordComplete は録画が正常に確定したことの通知
	EventRecordComplete EventKind = "record_complete"
	// EventRecordError は録画がエラーで確定したことの通知
	EventRecordError EventKind = "record_error"
)

// Event はエンジンから外部へ流れる一回限りの通知
// 状態の読み取りはCameraStateを使い、Eventは演出や完了コールバック相当に限る
type Event struct {
	Kind            EventKind `json:"kind"`
	RecordingID     string    `json:"recording_id,omitempty"`
	OutputLocation  string    `json:"output_location,omitempty"`
	DurationLimited bool      `json:"duration_limited,omitempty"`
	Message         string    `json:"message,omitempty"`
}

const eventQueueSize = 16

// pushEvent はイベントを通知チャンネルへ積む
// 読み手が追いついていない場合は最も古い通知を捨てる
func pushEvent(ch chan Event, ev Event) {
	select {
	case ch <- ev:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}
