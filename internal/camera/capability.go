package camera

import "context"

// LensID は物理レンズの一意識別子
type LensID string

// FeatureCombination は同時利用可否を問い合わせる機能の組を表す
type FeatureCombination struct {
	DynamicRange  DynamicRange
	Stabilization StabilizationMode
	FrameRate     int
}

// CapabilitySet は1レンズ分の能力集合を表す
// カタログ構築時に一度だけ作られ、以後は変更しない
type CapabilitySet struct {
	LensID       LensID     `json:"lens_id"`
	Facing       LensFacing `json:"facing"`
	HasFlashUnit bool       `json:"has_flash_unit"`

	SupportedDynamicRanges      []DynamicRange                   `json:"supported_dynamic_ranges"`
	SupportedStabilizationModes []StabilizationMode              `json:"supported_stabilization_modes"`
	SupportedFixedFrameRates    []int                            `json:"supported_fixed_frame_rates"`
	SupportedImageFormats       map[StreamConfigMode][]ImageFormat `json:"supported_image_formats"`
	SupportedVideoQualities     map[DynamicRange][]VideoQuality  `json:"supported_video_qualities"`
	SupportedFlashModes         []FlashMode                      `json:"supported_flash_modes"`
	SupportedTestPatterns       []TestPattern                    `json:"supported_test_patterns"`

	MinZoomRatio float64 `json:"min_zoom_ratio"`
	MaxZoomRatio float64 `json:"max_zoom_ratio"`

	// UnsupportedFrameRates は補正方式ごとに併用できない固定フレームレートを持つ
	UnsupportedFrameRates map[StabilizationMode][]int `json:"unsupported_frame_rates"`
}

// SupportsDynamicRange は指定のダイナミックレンジが利用可能かを返す
func (c *CapabilitySet) SupportsDynamicRange(d DynamicRange) bool {
	if d == DynamicRangeSDR {
		return true
	}
	for _, v := range c.SupportedDynamicRanges {
		if v == d {
			return true
		}
	}
	return false
}

// SupportsStabilization は指定の補正方式が利用可能かを返す
func (c *CapabilitySet) SupportsStabilization(m StabilizationMode) bool {
	if m == StabilizationOff {
		return true
	}
	for _, v := range c.SupportedStabilizationModes {
		if v == m {
			return true
		}
	}
	return false
}

// SupportsFrameRate は指定の固定フレームレートが利用可能かを返す
func (c *CapabilitySet) SupportsFrameRate(fps int) bool {
	if fps == FrameRateAuto {
		return true
	}
	for _, v := range c.SupportedFixedFrameRates {
		if v == fps {
			return true
		}
	}
	return false
}

// ImageFormatsFor はストリーム構成ごとの静止画フォーマット一覧を返す
func (c *CapabilitySet) ImageFormatsFor(mode StreamConfigMode) []ImageFormat {
	return c.SupportedImageFormats[mode]
}

// SupportsImageFormat は指定構成で静止画フォーマットが利用可能かを返す
func (c *CapabilitySet) SupportsImageFormat(mode StreamConfigMode, f ImageFormat) bool {
	for _, v := range c.SupportedImageFormats[mode] {
		if v == f {
			return true
		}
	}
	return false
}

// VideoQualitiesFor はダイナミックレンジごとの動画品質一覧を返す
func (c *CapabilitySet) VideoQualitiesFor(d DynamicRange) []VideoQuality {
	return c.SupportedVideoQualities[d]
}

// SupportsVideoQuality は指定レンジで動画品質が利用可能かを返す
func (c *CapabilitySet) SupportsVideoQuality(d DynamicRange, q VideoQuality) bool {
	for _, v := range c.SupportedVideoQualities[d] {
		if v == q {
			return true
		}
	}
	return false
}

// SupportsFlashMode は指定のフラッシュ動作が利用可能かを返す
func (c *CapabilitySet) SupportsFlashMode(m FlashMode) bool {
	if m == FlashModeOff {
		return true
	}
	for _, v := range c.SupportedFlashModes {
		if v == m {
			return true
		}
	}
	return false
}

// SupportsTestPattern は指定のテストパターンが利用可能かを返す
func (c *CapabilitySet) SupportsTestPattern(p TestPattern) bool {
	if p == TestPatternOff {
		return true
	}
	for _, v := range c.SupportedTestPatterns {
		if v == p {
			return true
		}
	}
	return false
}

// StabilizationCompatibleWithFrameRate は補正方式と固定フレームレートが併用可能かを返す
func (c *CapabilitySet) StabilizationCompatibleWithFrameRate(m StabilizationMode, fps int) bool {
	if fps == FrameRateAuto {
		return true
	}
	for _, v := range c.UnsupportedFrameRates[m] {
		if v == fps {
			return false
		}
	}
	return true
}

// ClampZoomRatio はズーム倍率をレンズの可動範囲に丸める
func (c *CapabilitySet) ClampZoomRatio(ratio float64) float64 {
	if c.MaxZoomRatio > 0 && ratio > c.MaxZoomRatio {
		return c.MaxZoomRatio
	}
	if c.MinZoomRatio > 0 && ratio < c.MinZoomRatio {
		return c.MinZoomRatio
	}
	return ratio
}

// LinearZoom はズーム倍率を0〜1の線形値に変換する
func (c *CapabilitySet) LinearZoom(ratio float64) float64 {
	if c.MaxZoomRatio <= c.MinZoomRatio {
		return 0
	}
	v := (ratio - c.MinZoomRatio) / (c.MaxZoomRatio - c.MinZoomRatio)
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Provider はハードウェアの能力問い合わせを担うインターフェース
type Provider interface {
	// ListLenses は利用可能なレンズの一覧を取得する
	ListLenses(ctx context.Context) ([]LensID, error)

	// Capabilities は指定レンズの能力集合を取得する
	Capabilities(ctx context.Context, id LensID) (*CapabilitySet, error)

	// QueryJointSupport は機能の組が同時に利用可能かを問い合わせる
	QueryJointSupport(ctx context.Context, id LensID, combo FeatureCombination) (bool, error)

	// SupportsConcurrent は前面と背面の同時利用が可能かを返す
	SupportsConcurrent(ctx context.Context) bool
}
