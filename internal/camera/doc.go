// Package camera 撮影設定の制約解決とハードウェア能力の管理を担う
//
// # 責務
// - レンズごとの能力集合(CapabilitySet)の取得とカタログ化
// - 候補設定をデバイスで成立する設定へ補正する制約解決
// - 永続セッション設定と一時セッション設定の導出
// - 実行中セッションの観測状態(CameraState)の共有セル
// - ハードウェア操作(Actuator)と能力問い合わせ(Provider)の抽象化
//
// # 使い分け
// このパッケージは以下の場合に使用する：
// - ユーザーの設定要求をデバイス能力に合わせて安全に補正したい
// - 設定変更がセッション再構築を要するか判定したい
// - セッションの観測状態を複数の読み手へ配信したい
//
// # 仕様
// - Resolve: 純粋な制約解決関数。同じ入力には常に同じ結果を返す
// - Catalog: 起動時に一度だけ構築する不変の能力カタログ
// - StateCell: 単一ライターと複数リーダーの状態セル。読み手には最新値のみ配る
// - Provider/Actuator: 実ハードウェア実装とモック実装を差し替え可能
// - Thread-safe な操作をサポート
//
// # 前提要件
//   - v4l-utils: V4L2バックエンド使用時のデバイス問い合わせに使用
//     Ubuntu/Debian: sudo apt install v4l-utils
//     Red Hat/Fedora: sudo dnf install v4l-utils
//   - videoグループへの参加: デバイスアクセス権限
//     sudo usermod -a -G video $USER
package camera
