// Package server カメラエンジンへのHTTP窓口を担う
//
// # 責務
// - HTTPサーバーの起動とグレースフルシャットダウン
// - 設定の取得と部分更新APIの提供
// - 観測状態と通知のSSE配信
// - 録画操作(開始、一時停止、再開、停止、ミュート)の受付
// - レンズ能力一覧の公開
//
// # 仕様
// - ルーティングとJSON応答にはginを使用する
// - 設定更新は部分指定で、応答には常に制約解決後の全設定を返す
// - エンジンがパニックにする前提違反(多重録画開始など)はハンドラー側で
//   事前に状態を確認し409で返す。取りこぼしはginのRecoveryが500にする
// - 通知のSSEは購読者1つを想定する。複数接続した場合は通知が分散する
// - SIGINT/SIGTERMで5秒のグレースフルシャットダウンを行う
package server
