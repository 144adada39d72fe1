package camera

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// V4L2Provider はv4l2-ctlコマンド経由でWebカメラの能力を問い合わせるプロバイダー
// UVCデバイスはHDRや補正方式などを公開しないため、該当項目は保守的な値になる
type V4L2Provider struct {
	mu      sync.Mutex
	facings map[LensID]LensFacing
}

// NewV4L2Provider は新しいV4L2Providerを作成する
func NewV4L2Provider() *V4L2Provider {
	return &V4L2Provider{
		facings: make(map[LensID]LensFacing),
	}
}

// ListLenses は/dev/video*からカラー対応のデバイスを検出してレンズ一覧を返す
// 検出順の先頭を背面、次を前面として扱う
func (p *V4L2Provider) ListLenses(ctx context.Context) ([]LensID, error) {
	matches, err := filepath.Glob("/dev/video*")
	if err != nil {
		return nil, fmt.Errorf("デバイスのスキャンに失敗: %w", err)
	}

	// デバイス番号でソート
	sort.Slice(matches, func(i, j int) bool {
		return extractDeviceNumber(matches[i]) < extractDeviceNumber(matches[j])
	})

	var lenses []LensID
	for _, device := range matches {
		select {
		case <-ctx.Done():
			return lenses, ctx.Err()
		default:
		}
		if !isDeviceAvailable(device) {
			continue
		}
		if !hasColorFormats(ctx, device) {
			continue
		}
		lenses = append(lenses, LensID(device))
	}

	p.mu.Lock()
	for i, id := range lenses {
		if i == 0 {
			p.facings[id] = LensFacingRear
		} else {
			p.facings[id] = LensFacingFront
		}
	}
	p.mu.Unlock()

	return lenses, nil
}

// Capabilities はv4l2-ctlの出力からレンズの能力集合を構築する
func (p *V4L2Provider) Capabilities(ctx context.Context, id LensID) (*CapabilitySet, error) {
	device := string(id)
	if !isDeviceAvailable(device) {
		return nil, fmt.Errorf("デバイスが利用できません: %s", device)
	}

	formats, err := listFormatsExt(ctx, device)
	if err != nil {
		return nil, fmt.Errorf("フォーマット一覧の取得に失敗: %s: %w", device, err)
	}

	p.mu.Lock()
	facing, ok := p.facings[id]
	p.mu.Unlock()
	if !ok {
		facing = fallbackFacing(extractDeviceNumber(device))
	}

	qualities := videoQualitiesFromResolutions(formats.resolutions)
	minZoom, maxZoom := zoomRangeFromControls(ctx, device)

	caps := &CapabilitySet{
		LensID:                      id,
		Facing:                      facing,
		HasFlashUnit:                false,
		SupportedDynamicRanges:      []DynamicRange{DynamicRangeSDR},
		SupportedStabilizationModes: []StabilizationMode{StabilizationOff},
		SupportedFixedFrameRates:    formats.frameRates,
		SupportedImageFormats: map[StreamConfigMode][]ImageFormat{
			StreamConfigMultiStream:  {ImageFormatJPEG},
			StreamConfigSingleStream: {ImageFormatJPEG},
		},
		SupportedVideoQualities: map[DynamicRange][]VideoQuality{
			DynamicRangeSDR: qualities,
		},
		SupportedFlashModes:   []FlashMode{FlashModeOff},
		SupportedTestPatterns: testPatternsFromControls(ctx, device),
		MinZoomRatio:          minZoom,
		MaxZoomRatio:          maxZoom,
		UnsupportedFrameRates: make(map[StabilizationMode][]int),
	}
	return caps, nil
}

// QueryJointSupport は常に併用可能を返す
// V4L2は機能の併用制約を公開しないため、問い合わせ先が存在しない
func (p *V4L2Provider) QueryJointSupport(ctx context.Context, id LensID, combo FeatureCombination) (bool, error) {
	return true, nil
}

// SupportsConcurrent は2台以上のデバイスが検出済みなら同時利用可能とみなす
func (p *V4L2Provider) SupportsConcurrent(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.facings) >= 2
}

// isDeviceAvailable はデバイスファイルが存在して読み取り可能かをチェックする
func isDeviceAvailable(device string) bool {
	if _, err := os.Stat(device); os.IsNotExist(err) {
		return false
	}
	file, err := os.OpenFile(device, os.O_RDONLY, 0)
	if err != nil {
		return false
	}
	defer func() {
		_ = file.Close()
	}()
	matched, _ := regexp.MatchString(`^/dev/video\d+$`, device)
	return matched
}

// hasColorFormats はカラーフォーマットをサポートするデバイスかを判定する
// グレースケール専用のIRセンサーなどを除外する
func hasColorFormats(ctx context.Context, device string) bool {
	cmd := exec.CommandContext(ctx, "v4l2-ctl", "--device", device, "--list-formats-ext")
	output, err := cmd.Output()
	if err != nil {
		return false
	}
	outputStr := string(output)
	if strings.Contains(outputStr, "GREY") &&
		!strings.Contains(outputStr, "YUYV") && !strings.Contains(outputStr, "MJPG") {
		return false
	}
	return strings.Contains(outputStr, "YUYV") || strings.Contains(outputStr, "MJPG")
}

// formatListing は--list-formats-extの解析結果
type formatListing struct {
	resolutions []Resolution
	frameRates  []int
}

var (
	sizePattern     = regexp.MustCompile(`Size: Discrete (\d+)x(\d+)`)
	intervalPattern = regexp.MustCompile(`\((\d+)\.\d+ fps\)`)
)

// listFormatsExt はv4l2-ctlの出力から解像度とフレームレートを抽出する
func listFormatsExt(ctx context.Context, device string) (*formatListing, error) {
	cmd := exec.CommandContext(ctx, "v4l2-ctl", "--device", device, "--list-formats-ext")
	output, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	listing := &formatListing{}
	seenRes := make(map[Resolution]bool)
	seenFPS := make(map[int]bool)

	for _, line := range strings.Split(string(output), "\n") {
		if m := sizePattern.FindStringSubmatch(line); m != nil {
			w, _ := strconv.Atoi(m[1])
			h, _ := strconv.Atoi(m[2])
			res := Resolution{Width: w, Height: h}
			if !seenRes[res] {
				seenRes[res] = true
				listing.resolutions = append(listing.resolutions, res)
			}
		}
		if m := intervalPattern.FindStringSubmatch(line); m != nil {
			fps, _ := strconv.Atoi(m[1])
			if fps > 0 && !seenFPS[fps] {
				seenFPS[fps] = true
				listing.frameRates = append(listing.frameRates, fps)
			}
		}
	}

	sort.Ints(listing.frameRates)
	return listing, nil
}

// videoQualitiesFromResolutions は解像度一覧から利用可能な動画品質を割り出す
func videoQualitiesFromResolutions(resolutions []Resolution) []VideoQuality {
	maxHeight := 0
	for _, r := range resolutions {
		if r.Height > maxHeight {
			maxHeight = r.Height
		}
	}

	var qualities []VideoQuality
	if maxHeight >= 2160 {
		qualities = append(qualities, VideoQualityUHD)
	}
	if maxHeight >= 1080 {
		qualities = append(qualities, VideoQualityFHD)
	}
	if maxHeight >= 720 {
		qualities = append(qualities, VideoQualityHD)
	}
	if maxHeight >= 480 {
		qualities = append(qualities, VideoQualitySD)
	}
	return qualities
}

var zoomPattern = regexp.MustCompile(`zoom_absolute.*min=(\d+).*max=(\d+)`)

// zoomRangeFromControls はzoom_absoluteコントロールからズーム倍率範囲を推定する
// コントロールがない場合は固定1.0を返す
func zoomRangeFromControls(ctx context.Context, device string) (float64, float64) {
	cmd := exec.CommandContext(ctx, "v4l2-ctl", "--device", device, "--list-ctrls")
	output, err := cmd.Output()
	if err != nil {
		return 1.0, 1.0
	}

	m := zoomPattern.FindStringSubmatch(string(output))
	if m == nil {
		return 1.0, 1.0
	}
	minV, _ := strconv.Atoi(m[1])
	maxV, _ := strconv.Atoi(m[2])
	if minV <= 0 || maxV <= minV {
		return 1.0, 1.0
	}
	// zoom_absoluteは倍率そのものではないため、最小値を1.0倍とみなして換算する
	return 1.0, float64(maxV) / float64(minV)
}

// testPatternsFromControls はtest_patternコントロールの有無からテストパターン対応を判定する
func testPatternsFromControls(ctx context.Context, device string) []TestPattern {
	patterns := []TestPattern{TestPatternOff}
	cmd := exec.CommandContext(ctx, "v4l2-ctl", "--device", device, "--list-ctrls")
	output, err := cmd.Output()
	if err != nil {
		return patterns
	}
	if strings.Contains(string(output), "test_pattern") {
		patterns = append(patterns, TestPatternColorBars)
	}
	return patterns
}

// extractDeviceNumber はデバイスパスから番号を抽出する
func extractDeviceNumber(device string) int {
	re := regexp.MustCompile(`video(\d+)`)
	matches := re.FindStringSubmatch(device)
	if len(matches) < 2 {
		return 0
	}
	num, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0
	}
	return num
}
