package camera

import (
	"context"
	"testing"
)

func TestNewCatalog_RegistersLenses(t *testing.T) {
	ctx := context.Background()
	provider := NewMockProvider()
	provider.AddLens(DefaultRearCapabilities())
	provider.AddLens(DefaultFrontCapabilities())

	catalog, err := NewCatalog(ctx, provider)
	if err != nil {
		t.Fatalf("Failed to create catalog: %v", err)
	}

	if !catalog.HasFacing(LensFacingRear) {
		t.Error("Expected rear lens to be registered")
	}
	if !catalog.HasFacing(LensFacingFront) {
		t.Error("Expected front lens to be registered")
	}
	if got := len(catalog.Lenses()); got != 2 {
		t.Errorf("Expected 2 lenses, got %d", got)
	}
	if facing := catalog.DefaultFacing(); facing != LensFacingRear {
		t.Errorf("Expected default facing to be rear, got %s", facing)
	}
}

func TestNewCatalog_EmptyProviderFails(t *testing.T) {
	ctx := context.Background()
	provider := NewMockProvider()

	_, err := NewCatalog(ctx, provider)
	if err == nil {
		t.Error("Expected error for provider with no lenses")
	}
}

func TestNewCatalog_ListFailureFails(t *testing.T) {
	ctx := context.Background()
	provider := NewMockProvider()
	provider.AddLens(DefaultRearCapabilities())
	provider.SetShouldFailList(true)

	_, err := NewCatalog(ctx, provider)
	if err == nil {
		t.Error("Expected error when lens listing fails")
	}
}

func TestNewCatalog_CapabilitiesFailureUsesFallback(t *testing.T) {
	ctx := context.Background()
	provider := NewMockProvider()
	rear := DefaultRearCapabilities()
	provider.AddLens(rear)
	provider.SetShouldFailCapabilities(rear.LensID, true)

	catalog, err := NewCatalog(ctx, provider)
	if err != nil {
		t.Fatalf("Expected catalog construction to continue, got error: %v", err)
	}

	// 検出順の先頭なので背面として登録され、保守的な既定能力になる
	caps, ok := catalog.Capabilities(LensFacingRear)
	if !ok {
		t.Fatal("Expected rear lens to be registered with fallback capabilities")
	}
	if caps.HasFlashUnit {
		t.Error("Expected fallback capabilities to have no flash unit")
	}
	if caps.SupportsDynamicRange(DynamicRangeHLG10) {
		t.Error("Expected fallback capabilities to be SDR only")
	}
	if !caps.SupportsImageFormat(StreamConfigMultiStream, ImageFormatJPEG) {
		t.Error("Expected fallback capabilities to support jpeg")
	}
}

func TestNewCatalog_JointProbeFillsIncompatibleRates(t *testing.T) {
	ctx := context.Background()
	provider := NewMockProvider()
	rear := DefaultRearCapabilities()
	rear.UnsupportedFrameRates = nil
	provider.AddLens(rear)
	provider.SetJointUnsupported(rear.LensID, FeatureCombination{
		DynamicRange:  DynamicRangeSDR,
		Stabilization: StabilizationOn,
		FrameRate:     30,
	})

	catalog, err := NewCatalog(ctx, provider)
	if err != nil {
		t.Fatalf("Failed to create catalog: %v", err)
	}

	caps := catalog.MustCapabilities(LensFacingRear)
	if caps.StabilizationCompatibleWithFrameRate(StabilizationOn, 30) {
		t.Error("Expected on/30fps to be incompatible after probing")
	}
	if !caps.StabilizationCompatibleWithFrameRate(StabilizationOn, 15) {
		t.Error("Expected on/15fps to stay compatible")
	}
}

func TestNewCatalog_JointProbeFailureKeepsCompatible(t *testing.T) {
	ctx := context.Background()
	provider := NewMockProvider()
	rear := DefaultRearCapabilities()
	rear.UnsupportedFrameRates = nil
	provider.AddLens(rear)
	provider.SetShouldFailJoint(true)

	catalog, err := NewCatalog(ctx, provider)
	if err != nil {
		t.Fatalf("Failed to create catalog: %v", err)
	}

	// 問い合わせ失敗は併用可能として扱う
	caps := catalog.MustCapabilities(LensFacingRear)
	if !caps.StabilizationCompatibleWithFrameRate(StabilizationOn, 60) {
		t.Error("Expected probe failure to leave combination compatible")
	}
}

func TestNewCatalog_DuplicateFacingSkipped(t *testing.T) {
	ctx := context.Background()
	provider := NewMockProvider()
	first := DefaultRearCapabilities()
	second := DefaultRearCapabilities()
	second.LensID = "lens-rear-1"
	provider.AddLens(first)
	provider.AddLens(second)

	catalog, err := NewCatalog(ctx, provider)
	if err != nil {
		t.Fatalf("Failed to create catalog: %v", err)
	}

	caps := catalog.MustCapabilities(LensFacingRear)
	if caps.LensID != first.LensID {
		t.Errorf("Expected first rear lens to win, got %s", caps.LensID)
	}
}

func TestNewCatalog_ConcurrentRequiresBothFacings(t *testing.T) {
	ctx := context.Background()

	// 背面のみではデバイスが対応を主張しても同時カメラ不可
	provider := NewMockProvider()
	provider.AddLens(DefaultRearCapabilities())
	provider.SetConcurrentSupported(true)

	catalog, err := NewCatalog(ctx, provider)
	if err != nil {
		t.Fatalf("Failed to create catalog: %v", err)
	}
	if catalog.ConcurrentSupported() {
		t.Error("Expected concurrent support to require both facings")
	}

	// 両面が揃っていてもデバイスが非対応なら不可
	provider = NewMockProvider()
	provider.AddLens(DefaultRearCapabilities())
	provider.AddLens(DefaultFrontCapabilities())
	provider.SetConcurrentSupported(false)

	catalog, err = NewCatalog(ctx, provider)
	if err != nil {
		t.Fatalf("Failed to create catalog: %v", err)
	}
	if catalog.ConcurrentSupported() {
		t.Error("Expected concurrent support to require device support")
	}
}

func TestMustCapabilities_PanicsOnMissingFacing(t *testing.T) {
	catalog := newRearOnlyCatalog(t)

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for unregistered facing")
		}
	}()

	catalog.MustCapabilities(LensFacingFront)
}

func TestBestVideoQuality(t *testing.T) {
	rear := DefaultRearCapabilities()
	front := DefaultFrontCapabilities()

	if q := rear.BestVideoQuality(DynamicRangeSDR); q != VideoQualityUHD {
		t.Errorf("Expected uhd for rear sdr, got %s", q)
	}
	if q := rear.BestVideoQuality(DynamicRangeHLG10); q != VideoQualityFHD {
		t.Errorf("Expected fhd for rear hlg10, got %s", q)
	}
	if q := front.BestVideoQuality(DynamicRangeSDR); q != VideoQualityFHD {
		t.Errorf("Expected fhd for front sdr, got %s", q)
	}
	if q := front.BestVideoQuality(DynamicRangeHLG10); q != VideoQualityUnspecified {
		t.Errorf("Expected unspecified for front hlg10, got %s", q)
	}
}
