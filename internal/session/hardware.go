package session

import (
	"fmt"

	"satsuei/internal/camera"
	"satsuei/internal/recording"
)

// HardwareCreator はエンジンが依存するハードウェア部品を生成するインターフェース
// 実機構成とシミュレーション構成を起動時に切り替えるために使う
type HardwareCreator interface {
	// CreateProvider は能力問い合わせ用のプロバイダーを作成する
	CreateProvider() camera.Provider
	// CreateActuator はセッション操作用のアクチュエーターを作成する
	CreateActuator() camera.Actuator
	// CreateSink は録画出力用のシンクを作成する
	CreateSink() recording.Sink
}

// ProductionHardwareCreator はV4L2デバイスとffmpegを使う実機構成
type ProductionHardwareCreator struct {
	device    string
	outputDir string
}

// NewProductionHardwareCreator は実機用のハードウェアクリエーターを作成する
func NewProductionHardwareCreator(device, outputDir string) HardwareCreator {
	return &ProductionHardwareCreator{
		device:    device,
		outputDir: outputDir,
	}
}

// CreateProvider はv4l2-ctlで能力を列挙するプロバイダーを作成する
func (c *ProductionHardwareCreator) CreateProvider() camera.Provider {
	return camera.NewV4L2Provider()
}

// CreateActuator はv4l2-ctlでコントロールを適用するアクチュエーターを作成する
func (c *ProductionHardwareCreator) CreateActuator() camera.Actuator {
	return camera.NewV4L2Actuator()
}

// CreateSink はffmpegで録画するシンクを作成する
func (c *ProductionHardwareCreator) CreateSink() recording.Sink {
	return recording.NewFFmpegSink(c.device, c.outputDir)
}

// SimHardwareCreator はハードウェア無しで全機能を動かすシミュレーション構成
// 背面と前面の標準能力を持つモックを組み上げる
type SimHardwareCreator struct{}

// NewSimHardwareCreator はシミュレーション用のハードウェアクリエーターを作成する
func NewSimHardwareCreator() HardwareCreator {
	return &SimHardwareCreator{}
}

// CreateProvider は標準の背面と前面レンズを登録したモックプロバイダーを作成する
func (c *SimHardwareCreator) CreateProvider() camera.Provider {
	provider := camera.NewMockProvider()
	provider.AddLens(camera.DefaultRearCapabilities())
	provider.AddLens(camera.DefaultFrontCapabilities())
	provider.SetConcurrentSupported(true)
	return provider
}

// CreateActuator は束縛直後に最初のフレームを自動通知するモックアクチュエーターを作成する
func (c *SimHardwareCreator) CreateActuator() camera.Actuator {
	actuator := camera.NewMockActuator()
	actuator.SetAutoFirstFrame(true)
	return actuator
}

// CreateSink はモックシンクを作成する
func (c *SimHardwareCreator) CreateSink() recording.Sink {
	return recording.NewMockSink()
}

// NewHardwareCreator はバックエンド名に対応するクリエーターを返す
func NewHardwareCreator(backend, device, outputDir string) (HardwareCreator, error) {
	switch backend {
	case "v4l2":
		return NewProductionHardwareCreator(device, outputDir), nil
	case "sim":
		return NewSimHardwareCreator(), nil
	default:
		return nil, fmt.Errorf("未知のハードウェアバックエンド: %s", backend)
	}
}
