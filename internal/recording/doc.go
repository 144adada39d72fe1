// Package recording 動画録画1回分のライフサイクル管理を担う
//
// # 責務
// - 録画の開始、一時停止、再開、終了の状態機械
// - 制御要求の到着順処理とシンク確認イベントによる状態確定
// - 上限時間到達の成功扱いと最終経過時間の確定
// - 録画シンク(Sink)の抽象化とffmpeg実装、モック実装
//
// # 仕様
// - 録画は同時に1本のみ。多重制御は呼び出し側が防ぐ
// - 状態遷移: Starting -> Recording <-> Paused -> Inactive
// - Inactiveは終端。新しい録画は新しいLifecycleを作る
// - 終端遷移では点灯中のトーチを必ず消灯する
// - 上限時間到達による終了はエラーではなく成功として報告する
//
// # 前提要件
//   - ffmpeg: FFmpegSink使用時の録画に使用
//     Ubuntu/Debian: sudo apt install ffmpeg
//     Red Hat/Fedora: sudo dnf install ffmpeg
package recording
