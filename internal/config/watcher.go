package config

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce は連続する書き込みを1回の再読み込みへまとめる猶予
const defaultDebounce = 500 * time.Millisecond

// Watcher は設定ファイルの変更を監視して再読み込み結果を通知する
// エディタの保存はリネームや再作成を伴うため、ファイルではなく
// 親ディレクトリを監視して対象パスのイベントだけを拾う
type Watcher struct {
	path     string
	onChange func(*Config)
	debounce time.Duration
	fw       *fsnotify.Watcher
}

// NewWatcher は設定ファイルの監視を作成する
// onChangeは再読み込みと検証に成功した設定だけを受け取る
func NewWatcher(path string, onChange func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("設定監視の初期化に失敗: %w", err)
	}

	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("設定ディレクトリの監視に失敗: %s: %w", dir, err)
	}

	return &Watcher{
		path:     path,
		onChange: onChange,
		debounce: defaultDebounce,
		fw:       fw,
	}, nil
}

// Run は監視ループを実行する。ctxの取り消しで停止する
func (w *Watcher) Run(ctx context.Context) {
	defer w.fw.Close()
	log.Printf("設定ファイルの監視を開始します: %s", w.path)

	reload := time.NewTimer(w.debounce)
	stopTimer(reload)

	for {
		select {
		case <-ctx.Done():
			stopTimer(reload)
			log.Printf("設定ファイルの監視を停止しました")
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if !w.isTarget(ev) {
				continue
			}
			stopTimer(reload)
			reload.Reset(w.debounce)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			log.Printf("設定監視でエラーが発生しました: %v", err)
		case <-reload.C:
			w.reload()
		}
	}
}

// isTarget は監視対象パスの内容変更イベントかを判定する
func (w *Watcher) isTarget(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
		return false
	}
	return ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

// reload は設定を読み込み直して通知する。失敗時は現行設定を維持する
func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		log.Printf("設定の再読み込みに失敗しました: %v", err)
		return
	}
	log.Printf("設定を再読み込みしました: %s", w.path)
	w.onChange(cfg)
}

// stopTimer はタイマーを止めて発火済みの値を読み捨てる
func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
