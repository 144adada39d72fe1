// Package session 設定変更から実セッション運転までの編成を担う
//
// # 責務
// - 設定更新の受付と制約解決結果の反映(Engine)
// - 永続セッション設定の比較による再束縛判定(Run)
// - ストリーム構成の組み立て(ComposeStreamGraph)
// - 束縛中セッションの付帯ループ(一時設定、合焦、ハードウェア通知)
// - 録画の開始と終了のエンジン側編成
// - UI向け通知イベント(Event)の配信
//
// # 使い分け
// このパッケージは以下の場合に使用する：
// - 設定APIの呼び出しを実ハードウェアの動作へ落とし込みたい
// - 設定変更のたびに作り直すべきか、適用だけで済むかを自動で判定させたい
// - 録画や合焦の完了をイベントとして受け取りたい
//
// # 仕様
// - 再束縛は永続セッション設定が変わった場合のみ。それ以外は適用で済ませる
// - 制約解決結果と一時設定は最新値のみ意味を持つ。古い値は追い越して捨てる
// - 束縛失敗時は未束縛のまま次の設定変更を待つ。自動再試行はしない
// - 解放時は付帯ループと録画の終了を待ち、トーチ消灯してから束縛を解除する
// - 録画の多重開始と非録画中の一時停止はパニックにする。呼び出し側が防ぐ
//
// # 前提要件
//   - ハードウェア構成はHardwareCreatorで注入する
//     v4l2: 実機デバイス(v4l-utilsとffmpegが必要)
//     sim: ハードウェア無しの全機能シミュレーション
package session
