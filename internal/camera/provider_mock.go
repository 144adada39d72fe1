package camera

import (
	"context"
	"fmt"
	"sync"
)

// jointKey はQueryJointSupportの組をマップキーにするための表現
type jointKey struct {
	lens  LensID
	combo FeatureCombination
}

// MockProvider はテストとシミュレーション動作用の能力プロバイダー
type MockProvider struct {
	mu                     sync.RWMutex
	lenses                 []LensID
	sets                   map[LensID]*CapabilitySet
	jointUnsupported       map[jointKey]bool
	concurrent             bool
	shouldFailList         bool
	shouldFailCapabilities map[LensID]bool
	shouldFailJoint        bool
}

// NewMockProvider は空のモックプロバイダーを作成する
func NewMockProvider() *MockProvider {
	return &MockProvider{
		sets:                   make(map[LensID]*CapabilitySet),
		jointUnsupported:       make(map[jointKey]bool),
		shouldFailCapabilities: make(map[LensID]bool),
	}
}

// AddLens はレンズとその能力集合を登録する
func (m *MockProvider) AddLens(caps *CapabilitySet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lenses = append(m.lenses, caps.LensID)
	m.sets[caps.LensID] = caps
}

// SetJointUnsupported は指定の機能の組を併用不可として登録する
func (m *MockProvider) SetJointUnsupported(id LensID, combo FeatureCombination) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jointUnsupported[jointKey{lens: id, combo: combo}] = true
}

// SetConcurrentSupported は同時カメラ対応をシミュレートする
func (m *MockProvider) SetConcurrentSupported(supported bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.concurrent = supported
}

// SetShouldFailList はListLensesの失敗をシミュレートする
func (m *MockProvider) SetShouldFailList(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldFailList = fail
}

// SetShouldFailCapabilities は指定レンズのCapabilities失敗をシミュレートする
func (m *MockProvider) SetShouldFailCapabilities(id LensID, fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldFailCapabilities[id] = fail
}

// SetShouldFailJoint はQueryJointSupportの失敗をシミュレートする
func (m *MockProvider) SetShouldFailJoint(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldFailJoint = fail
}

// ListLenses は登録済みレンズの一覧を返す
func (m *MockProvider) ListLenses(ctx context.Context) ([]LensID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.shouldFailList {
		return nil, fmt.Errorf("モックによるレンズ一覧取得失敗")
	}
	lenses := make([]LensID, len(m.lenses))
	copy(lenses, m.lenses)
	return lenses, nil
}

// Capabilities は登録済みの能力集合を返す
func (m *MockProvider) Capabilities(ctx context.Context, id LensID) (*CapabilitySet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.shouldFailCapabilities[id] {
		return nil, fmt.Errorf("モックによる能力取得失敗: %s", id)
	}
	caps, ok := m.sets[id]
	if !ok {
		return nil, fmt.Errorf("未知のレンズ: %s", id)
	}
	return caps, nil
}

// QueryJointSupport は登録された併用不可の組に該当するかを返す
func (m *MockProvider) QueryJointSupport(ctx context.Context, id LensID, combo FeatureCombination) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.shouldFailJoint {
		return false, fmt.Errorf("モックによる併用可否問い合わせ失敗")
	}
	return !m.jointUnsupported[jointKey{lens: id, combo: combo}], nil
}

// SupportsConcurrent は同時カメラ対応の設定値を返す
func (m *MockProvider) SupportsConcurrent(ctx context.Context) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.concurrent
}

// DefaultRearCapabilities は背面レンズの標準的な能力集合を返す
// HDR動画、Ultra HDR静止画、電子式と光学式の補正に対応したフル機能構成
func DefaultRearCapabilities() *CapabilitySet {
	return &CapabilitySet{
		LensID:                 "lens-rear-0",
		Facing:                 LensFacingRear,
		HasFlashUnit:           true,
		SupportedDynamicRanges: []DynamicRange{DynamicRangeSDR, DynamicRangeHLG10},
		SupportedStabilizationModes: []StabilizationMode{
			StabilizationOn,
			StabilizationOptical,
			StabilizationOff,
		},
		SupportedFixedFrameRates: []int{15, 30, 60},
		SupportedImageFormats: map[StreamConfigMode][]ImageFormat{
			StreamConfigMultiStream:  {ImageFormatJPEG, ImageFormatJPEGUltraHDR},
			StreamConfigSingleStream: {ImageFormatJPEG},
		},
		SupportedVideoQualities: map[DynamicRange][]VideoQuality{
			DynamicRangeSDR:   {VideoQualityUHD, VideoQualityFHD, VideoQualityHD, VideoQualitySD},
			DynamicRangeHLG10: {VideoQualityFHD, VideoQualityHD},
		},
		SupportedFlashModes: []FlashMode{
			FlashModeOff,
			FlashModeOn,
			FlashModeAuto,
			FlashModeLowLightBoost,
		},
		SupportedTestPatterns: []TestPattern{TestPatternOff, TestPatternColorBars},
		MinZoomRatio:          0.6,
		MaxZoomRatio:          10.0,
		UnsupportedFrameRates: map[StabilizationMode][]int{
			StabilizationOn:      {60},
			StabilizationOptical: {},
		},
	}
}

// DefaultFrontCapabilities は前面レンズの標準的な能力集合を返す
// 発光部は持たず、フラッシュ指定時は画面発光で代替する
func DefaultFrontCapabilities() *CapabilitySet {
	return &CapabilitySet{
		LensID:                 "lens-front-0",
		Facing:                 LensFacingFront,
		HasFlashUnit:           false,
		SupportedDynamicRanges: []DynamicRange{DynamicRangeSDR},
		SupportedStabilizationModes: []StabilizationMode{
			StabilizationOn,
			StabilizationOff,
		},
		SupportedFixedFrameRates: []int{15, 30},
		SupportedImageFormats: map[StreamConfigMode][]ImageFormat{
			StreamConfigMultiStream:  {ImageFormatJPEG},
			StreamConfigSingleStream: {ImageFormatJPEG},
		},
		SupportedVideoQualities: map[DynamicRange][]VideoQuality{
			DynamicRangeSDR: {VideoQualityFHD, VideoQualityHD, VideoQualitySD},
		},
		SupportedFlashModes:   []FlashMode{FlashModeOff, FlashModeOn},
		SupportedTestPatterns: []TestPattern{TestPatternOff},
		MinZoomRatio:          1.0,
		MaxZoomRatio:          4.0,
		UnsupportedFrameRates: map[StabilizationMode][]int{},
	}
}
