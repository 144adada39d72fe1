package camera

import "testing"

func TestDerivePerpetual_SingleCamera(t *testing.T) {
	s := DefaultSettings()
	s.AspectRatio = AspectRatioSixteenNine
	s.TargetFrameRate = 30
	s.Stabilization = StabilizationOn
	s.DynamicRange = DynamicRangeHLG10
	s.VideoQuality = VideoQualityFHD

	p := DerivePerpetual(s)

	if p.Mode != PerpetualSingleCamera {
		t.Errorf("Expected single camera mode, got %s", p.Mode)
	}
	if p.LensFacing != LensFacingRear {
		t.Errorf("Expected rear facing, got %s", p.LensFacing)
	}
	if p.AspectRatio != AspectRatioSixteenNine {
		t.Errorf("Expected 16:9, got %s", p.AspectRatio)
	}
	if p.TargetFrameRate != 30 {
		t.Errorf("Expected 30fps, got %d", p.TargetFrameRate)
	}
	if p.DynamicRange != DynamicRangeHLG10 {
		t.Errorf("Expected hlg10, got %s", p.DynamicRange)
	}
}

func TestDerivePerpetual_EqualityDetectsRebindNeed(t *testing.T) {
	base := DefaultSettings()

	// 一時設定だけが違う場合は等しい(再バインド不要)
	changed := base
	changed.FlashMode = FlashModeOn
	changed = changed.WithZoomRatio(LensFacingRear, 2.0)
	changed.DeviceRotation = 90
	changed.AudioEnabled = false
	changed.TestPattern = TestPatternColorBars

	if DerivePerpetual(base) != DerivePerpetual(changed) {
		t.Error("Expected transient-only changes to keep perpetual settings equal")
	}

	// 永続設定が違う場合は等しくない(再バインド必要)
	rebind := base
	rebind.AspectRatio = AspectRatioSixteenNine
	if DerivePerpetual(base) == DerivePerpetual(rebind) {
		t.Error("Expected aspect ratio change to make perpetual settings differ")
	}

	rebind = base
	rebind.LensFacing = LensFacingFront
	if DerivePerpetual(base) == DerivePerpetual(rebind) {
		t.Error("Expected lens change to make perpetual settings differ")
	}
}

func TestDerivePerpetual_ConcurrentReducedSubset(t *testing.T) {
	s := DefaultSettings()
	s.ConcurrentCamera = ConcurrentCameraDual
	s.LensFacing = LensFacingRear
	s.DynamicRange = DynamicRangeHLG10
	s.TargetFrameRate = 60
	s.Stabilization = StabilizationOn

	p := DerivePerpetual(s)

	if p.Mode != PerpetualConcurrentCamera {
		t.Errorf("Expected concurrent camera mode, got %s", p.Mode)
	}
	if p.SecondaryFacing != LensFacingFront {
		t.Errorf("Expected secondary facing front, got %s", p.SecondaryFacing)
	}
	if p.CaptureMode != CaptureModeVideoOnly {
		t.Errorf("Expected video_only, got %s", p.CaptureMode)
	}
	if p.DynamicRange != DynamicRangeSDR {
		t.Errorf("Expected concurrent subset to force sdr, got %s", p.DynamicRange)
	}
	if p.TargetFrameRate != FrameRateAuto {
		t.Errorf("Expected concurrent subset to force auto frame rate, got %d", p.TargetFrameRate)
	}
	if p.Stabilization != StabilizationOff {
		t.Errorf("Expected concurrent subset to force stabilization off, got %s", p.Stabilization)
	}
}

func TestDeriveTransient_Fields(t *testing.T) {
	s := DefaultSettings()
	s.FlashMode = FlashModeOn
	s.TestPattern = TestPatternColorBars
	s.DeviceRotation = 180
	s.AudioEnabled = false
	s = s.WithZoomRatio(LensFacingRear, 3.5)

	tr := DeriveTransient(s)

	if tr.FlashMode != FlashModeOn {
		t.Errorf("Expected flash on, got %s", tr.FlashMode)
	}
	if tr.TestPattern != TestPatternColorBars {
		t.Errorf("Expected color_bars, got %s", tr.TestPattern)
	}
	if tr.DeviceRotation != 180 {
		t.Errorf("Expected rotation 180, got %d", tr.DeviceRotation)
	}
	if tr.AudioEnabled {
		t.Error("Expected audio to be disabled")
	}
	if tr.ZoomRatios[LensFacingRear] != 3.5 {
		t.Errorf("Expected rear zoom 3.5, got %f", tr.ZoomRatios[LensFacingRear])
	}
}

func TestDeriveTransient_CopiesZoomMap(t *testing.T) {
	s := DefaultSettings()
	tr := DeriveTransient(s)

	// 元の設定を変更しても導出済みの射影には影響しない
	s.ZoomRatios[LensFacingRear] = 9.0

	if tr.ZoomRatios[LensFacingRear] != 1.0 {
		t.Errorf("Expected derived zoom map to be isolated, got %f", tr.ZoomRatios[LensFacingRear])
	}
}

func TestWithZoomRatio_CopiesMap(t *testing.T) {
	base := DefaultSettings()
	changed := base.WithZoomRatio(LensFacingFront, 2.0)

	if base.ZoomRatios[LensFacingFront] != 1.0 {
		t.Errorf("Expected original zoom to stay 1.0, got %f", base.ZoomRatios[LensFacingFront])
	}
	if changed.ZoomRatios[LensFacingFront] != 2.0 {
		t.Errorf("Expected changed zoom to be 2.0, got %f", changed.ZoomRatios[LensFacingFront])
	}
}
