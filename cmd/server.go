// Package main はSatsueiサーバーコマンドの実装です
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"satsuei/internal/camera"
	"satsuei/internal/config"
	"satsuei/internal/server"
	"satsuei/internal/session"
)

func main() {
	// コマンドラインオプション
	var (
		configPath = flag.String("config", "config.yml", "設定ファイルのパス")
		host       = flag.String("host", "", "サーバーのホスト (デフォルト: 0.0.0.0)")
		port       = flag.Int("port", 0, "サーバーのポート (デフォルト: 8080)")
		backend    = flag.String("backend", "", "ハードウェアバックエンド (v4l2/sim)")
		device     = flag.String("device", "", "V4L2デバイスのパス (デフォルト: /dev/video0)")
		help       = flag.Bool("help", false, "ヘルプを表示")
	)

	flag.Parse()

	// ヘルプ表示
	if *help {
		fmt.Println("Satsuei")
		fmt.Println()
		fmt.Println("使用方法:")
		fmt.Println("  server [オプション]")
		fmt.Println()
		fmt.Println("オプション:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	// 設定を読み込む
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// コマンドラインオプションで設定を上書き
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *backend != "" {
		cfg.Hardware.Backend = *backend
	}
	if *device != "" {
		cfg.Hardware.Device = *device
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("設定の検証に失敗しました: %v", err)
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
	watcher, err := config.NewWatcher(*configPath, func(next *config.Config) {
		engine.ApplyCaptureDefaults(next.CaptureDefaults())
	})
	if err != nil {
		log.Printf("設定ファイルの監視を開始できません: %v", err)
	} else {
		go watcher.Run(ctx)
	}

	// サーバーを起動
	srv := server.New(cfg, engine)
	log.Printf("Satsuei サーバーを起動します: %s", cfg.ServerAddress())
	if err := srv.Start(ctx); err != nil {
		log.Fatalf("サーバーの起動に失敗しました: %v", err)
	}

	// サーバー停止後にセッションを解放する
	cancel()
	<-engineDone
}
