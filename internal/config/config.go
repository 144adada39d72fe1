package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"satsuei/internal/camera"
)

// Duration はYAML上で"30s"や"5m"の文字列として表す時間
type Duration time.Duration

// UnmarshalYAML は時間文字列をtime.ParseDurationで解釈する
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("時間は文字列で指定してください: %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("時間の形式が不正です: %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Hardware  HardwareConfig  `yaml:"hardware"`
	Capture   CaptureConfig   `yaml:"capture"`
	Recording RecordingConfig `yaml:"recording"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `yaml:"host"` // リッスンするホスト
	Port int    `yaml:"port"` // リッスンするポート番号

	// タイムアウト設定
	ReadTimeout  Duration `yaml:"read_timeout"`  // 読み込みタイムアウト
	WriteTimeout Duration `yaml:"write_timeout"` // 書き込みタイムアウト
}

// HardwareConfig はハードウェアバックエンドの設定
type HardwareConfig struct {
	Backend string `yaml:"backend"` // v4l2 または sim
	Device  string `yaml:"device"`  // 録画入力のデバイスパス (例: /dev/video0)
}

// CaptureConfig は起動時の撮影既定値
// 値はすべて文字列で受け、不正な値は既定値のまま読み飛ばす
type CaptureConfig struct {
	LensFacing       string   `yaml:"lens_facing"`
	AspectRatio      string   `yaml:"aspect_ratio"`
	CaptureMode      string   `yaml:"capture_mode"`
	StreamConfig     string   `yaml:"stream_config"`
	TargetFrameRate  int      `yaml:"target_frame_rate"`
	Stabilization    string   `yaml:"stabilization"`
	DynamicRange     string   `yaml:"dynamic_range"`
	ImageFormat      string   `yaml:"image_format"`
	VideoQuality     string   `yaml:"video_quality"`
	FlashMode        string   `yaml:"flash_mode"`
	AudioEnabled     bool     `yaml:"audio_enabled"`
	MaxVideoDuration Duration `yaml:"max_video_duration"` // 0は無制限
}

// RecordingConfig は録画出力の設定
type RecordingConfig struct {
	OutputDir string `yaml:"output_dir"` // 録画ファイルの出力先
}

// Load は設定を読み込む
// 既定値にYAMLファイル、環境変数の順で上書きを重ねてから検証する
// ファイルが存在しない場合は既定値のまま続行する
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}
	return cfg, nil
}

// defaultConfig は既定の設定を作成する
func defaultConfig() *Config {
	d := camera.DefaultSettings()
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  Duration(10 * time.Second),
			WriteTimeout: 0, // ストリーミング用にタイムアウト無効化
		},
		Hardware: HardwareConfig{
			Backend: "sim",
			Device:  "/dev/video0",
		},
		Capture: CaptureConfig{
			LensFacing:       string(d.LensFacing),
			AspectRatio:      string(d.AspectRatio),
			CaptureMode:      string(d.CaptureMode),
			StreamConfig:     string(d.StreamConfig),
			TargetFrameRate:  d.TargetFrameRate,
			Stabilization:    string(d.Stabilization),
			DynamicRange:     string(d.DynamicRange),
			ImageFormat:      string(d.ImageFormat),
			VideoQuality:     string(d.VideoQuality),
			FlashMode:        string(d.FlashMode),
			AudioEnabled:     d.AudioEnabled,
			MaxVideoDuration: Duration(d.MaxVideoDuration),
		},
		Recording: RecordingConfig{
			OutputDir: "recordings",
		},
	}
}

// mergeFile はYAMLファイルの内容を現在の設定へ上書きする
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Printf("設定ファイルが見つからないため既定値で続行します: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("設定ファイルの読み込みに失敗: %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("設定ファイルの解析に失敗: %s: %w", path, err)
	}
	return nil
}

// applyEnv は環境変数による上書きを適用する
func (c *Config) applyEnv() {
	c.Server.Host = getEnvOrDefault("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvAsIntOrDefault("PORT", c.Server.Port)
	c.Hardware.Backend = getEnvOrDefault("CAMERA_BACKEND", c.Hardware.Backend)
	c.Hardware.Device = getEnvOrDefault("CAMERA_DEVICE", c.Hardware.Device)
	c.Recording.OutputDir = getEnvOrDefault("RECORDING_DIR", c.Recording.OutputDir)
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	// サーバー設定の検証
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("無効なポート番号: %d", c.Server.Port)
	}

	switch c.Hardware.Backend {
	case "v4l2", "sim":
	default:
		return fmt.Errorf("無効なハードウェアバックエンド: %s", c.Hardware.Backend)
	}

	if c.Capture.TargetFrameRate < 0 {
		return fmt.Errorf("無効なフレームレート: %d", c.Capture.TargetFrameRate)
	}
	if c.Capture.MaxVideoDuration < 0 {
		return fmt.Errorf("無効な録画時間上限: %s", time.Duration(c.Capture.MaxVideoDuration))
	}
	if c.Recording.OutputDir == "" {
		return fmt.Errorf("録画出力先が指定されていません")
	}
	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// CaptureDefaults は撮影既定値を設定候補へ変換する
// 列挙値として解釈できない文字列は既定値のまま読み飛ばす
func (c *Config) CaptureDefaults() camera.Settings {
	s := camera.DefaultSettings()

	switch f := camera.LensFacing(c.Capture.LensFacing); f {
	case camera.LensFacingRear, camera.LensFacingFront:
		s.LensFacing = f
	}
	switch r := camera.AspectRatio(c.Capture.AspectRatio); r {
	case camera.AspectRatioFourThree, camera.AspectRatioSixteenNine, camera.AspectRatioOneOne:
		s.AspectRatio = r
	}
	switch m := camera.CaptureMode(c.Capture.CaptureMode); m {
	case camera.CaptureModeStandard, camera.CaptureModeImageOnly, camera.CaptureModeVideoOnly:
		s.CaptureMode = m
	}
	switch m := camera.StreamConfigMode(c.Capture.StreamConfig); m {
	case camera.StreamConfigMultiStream, camera.StreamConfigSingleStream:
		s.StreamConfig = m
	}
	if c.Capture.TargetFrameRate > 0 {
		s.TargetFrameRate = c.Capture.TargetFrameRate
	}
	switch m := camera.StabilizationMode(c.Capture.Stabilization); m {
	case camera.StabilizationAuto, camera.StabilizationOn, camera.StabilizationOptical, camera.StabilizationOff:
		s.Stabilization = m
	}
	switch d := camera.DynamicRange(c.Capture.DynamicRange); d {
	case camera.DynamicRangeSDR, camera.DynamicRangeHLG10:
		s.DynamicRange = d
	}
	switch f := camera.ImageFormat(c.Capture.ImageFormat); f {
	case camera.ImageFormatJPEG, camera.ImageFormatJPEGUltraHDR:
		s.ImageFormat = f
	}
	switch q := camera.VideoQuality(c.Capture.VideoQuality); q {
	case camera.VideoQualitySD, camera.VideoQualityHD, camera.VideoQualityFHD, camera.VideoQualityUHD:
		s.VideoQuality = q
	}
	switch m := camera.FlashMode(c.Capture.FlashMode); m {
	case camera.FlashModeOff, camera.FlashModeOn, camera.FlashModeAuto, camera.FlashModeLowLightBoost:
		s.FlashMode = m
	}
	s.AudioEnabled = c.Capture.AudioEnabled
	if c.Capture.MaxVideoDuration > 0 {
		s.MaxVideoDuration = time.Duration(c.Capture.MaxVideoDuration)
	}
	return s
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}
