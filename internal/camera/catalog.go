package camera

import (
	"context"
	"fmt"
	"log"
)

// Catalog は全レンズの能力集合を保持する不変カタログ
// プロセス起動時に一度だけ構築し、以後は読み取り専用で共有する
type Catalog struct {
	byFacing            map[LensFacing]*CapabilitySet
	lenses              []LensID
	concurrentSupported bool
}

// NewCatalog はプロバイダーに問い合わせてカタログを構築する
// 個別レンズの問い合わせ失敗は保守的な既定能力で補い、構築自体は継続する
func NewCatalog(ctx context.Context, provider Provider) (*Catalog, error) {
	lenses, err := provider.ListLenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("レンズ一覧の取得に失敗: %w", err)
	}
	if len(lenses) == 0 {
		return nil, fmt.Errorf("利用可能なレンズが見つかりません")
	}

	catalog := &Catalog{
		byFacing: make(map[LensFacing]*CapabilitySet),
		lenses:   lenses,
	}

	for i, id := range lenses {
		caps, err := provider.Capabilities(ctx, id)
		if err != nil {
			log.Printf("レンズ能力の取得に失敗したため既定能力を使用します: %s: %v", id, err)
			caps = fallbackCapabilitySet(id, fallbackFacing(i))
		}

		// 同じ向きのレンズが複数ある場合は最初の1つを採用する
		if _, exists := catalog.byFacing[caps.Facing]; exists {
			log.Printf("同じ向きのレンズが既に登録されているためスキップします: %s (%s)", id, caps.Facing)
			continue
		}

		probeJointSupport(ctx, provider, caps)
		catalog.byFacing[caps.Facing] = caps
		log.Printf("レンズを登録しました: %s (%s)", id, caps.Facing)
	}

	_, hasFront := catalog.byFacing[LensFacingFront]
	_, hasRear := catalog.byFacing[LensFacingRear]
	catalog.concurrentSupported = hasFront && hasRear && provider.SupportsConcurrent(ctx)

	return catalog, nil
}

// probeJointSupport は補正方式と固定フレームレートの併用可否を問い合わせて能力集合に反映する
// 問い合わせに失敗した組は併用可能として扱う
func probeJointSupport(ctx context.Context, provider Provider, caps *CapabilitySet) {
	if caps.UnsupportedFrameRates == nil {
		caps.UnsupportedFrameRates = make(map[StabilizationMode][]int)
	}
	for _, mode := range caps.SupportedStabilizationModes {
		for _, fps := range caps.SupportedFixedFrameRates {
			combo := FeatureCombination{
				DynamicRange:  DynamicRangeSDR,
				Stabilization: mode,
				FrameRate:     fps,
			}
			ok, err := provider.QueryJointSupport(ctx, caps.LensID, combo)
			if err != nil {
				log.Printf("併用可否の問い合わせに失敗しました: %s %s/%dfps: %v", caps.LensID, mode, fps, err)
				continue
			}
			if !ok {
				caps.UnsupportedFrameRates[mode] = append(caps.UnsupportedFrameRates[mode], fps)
			}
		}
	}
}

// fallbackFacing は能力取得に失敗したレンズの向きを検出順から推定する
func fallbackFacing(index int) LensFacing {
	if index == 0 {
		return LensFacingRear
	}
	return LensFacingFront
}

// fallbackCapabilitySet は問い合わせ失敗時の保守的な既定能力を返す
func fallbackCapabilitySet(id LensID, facing LensFacing) *CapabilitySet {
	return &CapabilitySet{
		LensID:                      id,
		Facing:                      facing,
		HasFlashUnit:                false,
		SupportedDynamicRanges:      []DynamicRange{DynamicRangeSDR},
		SupportedStabilizationModes: []StabilizationMode{StabilizationOff},
		SupportedFixedFrameRates:    nil,
		SupportedImageFormats: map[StreamConfigMode][]ImageFormat{
			StreamConfigMultiStream:  {ImageFormatJPEG},
			StreamConfigSingleStream: {ImageFormatJPEG},
		},
		SupportedVideoQualities: map[DynamicRange][]VideoQuality{
			DynamicRangeSDR: {VideoQualityHD, VideoQualitySD},
		},
		SupportedFlashModes:   []FlashMode{FlashModeOff},
		SupportedTestPatterns: []TestPattern{TestPatternOff},
		MinZoomRatio:          1.0,
		MaxZoomRatio:          1.0,
		UnsupportedFrameRates: make(map[StabilizationMode][]int),
	}
}

// Capabilities は指定向きのレンズの能力集合を返す
func (c *Catalog) Capabilities(facing LensFacing) (*CapabilitySet, bool) {
	caps, ok := c.byFacing[facing]
	return caps, ok
}

// MustCapabilities は指定向きのレンズの能力集合を返す
// 存在しない向きを指定した場合は初期化漏れとしてパニックする
func (c *Catalog) MustCapabilities(facing LensFacing) *CapabilitySet {
	caps, ok := c.byFacing[facing]
	if !ok {
		panic(fmt.Sprintf("レンズ能力が登録されていません: %s", facing))
	}
	return caps
}

// HasFacing は指定向きのレンズが存在するかを返す
func (c *Catalog) HasFacing(facing LensFacing) bool {
	_, ok := c.byFacing[facing]
	return ok
}

// Facings は登録済みのレンズ向きを返す。背面を先頭にする
func (c *Catalog) Facings() []LensFacing {
	facings := make([]LensFacing, 0, len(c.byFacing))
	for _, f := range []LensFacing{LensFacingRear, LensFacingFront} {
		if _, ok := c.byFacing[f]; ok {
			facings = append(facings, f)
		}
	}
	return facings
}

// DefaultFacing は既定のレンズ向きを返す。背面を優先する
func (c *Catalog) DefaultFacing() LensFacing {
	if c.HasFacing(LensFacingRear) {
		return LensFacingRear
	}
	return LensFacingFront
}

// Lenses は検出されたレンズIDの一覧をコピーで返す
func (c *Catalog) Lenses() []LensID {
	lenses := make([]LensID, len(c.lenses))
	copy(lenses, c.lenses)
	return lenses
}

// ConcurrentSupported は前面と背面の同時利用が可能かを返す
func (c *Catalog) ConcurrentSupported() bool {
	return c.concurrentSupported
}

// BestVideoQuality は指定レンジで利用可能な最高品質を返す
// 利用可能な品質がない場合はVideoQualityUnspecifiedを返す
func (c *CapabilitySet) BestVideoQuality(d DynamicRange) VideoQuality {
	for _, q := range []VideoQuality{VideoQualityUHD, VideoQualityFHD, VideoQualityHD, VideoQualitySD} {
		if c.SupportsVideoQuality(d, q) {
			return q
		}
	}
	return VideoQualityUnspecified
}
