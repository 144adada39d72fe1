package main

import (
	"context"
	"log"

	"satsuei/internal/camera"
	"satsuei/internal/config"
	"satsuei/internal/server"
	"satsuei/internal/session"
)

const defaultConfigPath = "config.yml"

func main() {
	// 設定を読み込む
	cfg, err := config.Load(defaultConfigPath)
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ハードウェア構成を組み立てる
	creator, err := session.NewHardwareCreator(cfg.Hardware.Backend, cfg.Hardware.Device, cfg.Recording.OutputDir)
	if err != nil {
		log.Fatalf("ハードウェア構成の初期化に失敗しました: %v", err)
	}

	catalog, err := camera.NewCatalog(ctx, creator.CreateProvider())
	if err != nil {
		log.Fatalf("レンズ能力の取得に失敗しました: %v", err)
	}

	// エンジンを起動する
	engine := session.NewEngine(catalog, creator.CreateActuator(), creator.CreateSink(), session.Options{
		Defaults: cfg.CaptureDefaults(),
	})
	engineDone := make(chan struct{})
	go func() {
		engine.Run(ctx)
		close(engineDone)
	}()

	// 設定ファイルの変更を監視して既定値を反映する
	watcher, err := config.NewWatcher(defaultConfigPath, func(next *config.Config) {
		engine.ApplyCaptureDefaults(next.CaptureDefaults())
	})
	if err != nil {
		log.Printf("設定ファイルの監視を開始できません: %v", err)
	} else {
		go watcher.Run(ctx)
	}

	// サーバーを起動する
	srv := server.New(cfg, engine)
	if err := srv.Start(ctx); err != nil {
		log.Fatalf("サーバーの起動に失敗しました: %v", err)
	}

	// サーバー停止後にセッションを解放する
	cancel()
	<-engineDone
}
