package camera

// Resolve は候補設定をカタログ上で成立する設定に補正して返す
// 純粋関数であり、同じ入力には常に同じ結果を返す。解決済み設定を
// 再度解決しても変化しない
//
// 補正は次の順で適用する。前段の結果を後段が前提にするため順序を変えてはならない
//  1. ダイナミックレンジ
//  2. アスペクト比(外部キャプチャ依頼時)
//  3. 静止画フォーマット
//  4. フレームレート
//  5. 手ぶれ補正
//  6. 同時カメラ
//  7. フラッシュ
//  8. キャプチャモード
//  9. 動画品質
//  10. テストパターン
func Resolve(candidate Settings, catalog *Catalog) Settings {
	caps := catalog.MustCapabilities(candidate.LensFacing)

	s := candidate
	s = resolveDynamicRange(s, caps)
	s = resolveExternalAspectRatio(s)
	s = resolveImageFormat(s, caps)
	s = resolveFrameRate(s, caps)
	s = resolveStabilization(s, caps)
	s = resolveConcurrentCamera(s, catalog)
	s = resolveFlashMode(s, caps)
	s = resolveCaptureMode(s)
	s = resolveVideoQuality(s, caps)
	s = resolveTestPattern(s, caps)
	return s
}

// resolveDynamicRange は非対応のダイナミックレンジをSDRへ落とす
func resolveDynamicRange(s Settings, caps *CapabilitySet) Settings {
	if !caps.SupportsDynamicRange(s.DynamicRange) {
		s.DynamicRange = DynamicRangeSDR
	}
	return s
}

// resolveExternalAspectRatio は外部キャプチャ依頼ごとの固定アスペクト比を強制する
// 静止画依頼は4:3、動画依頼は16:9に揃える
func resolveExternalAspectRatio(s Settings) Settings {
	switch s.ExternalCapture {
	case ExternalCaptureImage:
		s.AspectRatio = AspectRatioFourThree
	case ExternalCaptureVideo:
		s.AspectRatio = AspectRatioSixteenNine
	}
	return s
}

// resolveImageFormat は現在のストリーム構成で使えない静止画フォーマットをJPEGへ落とす
func resolveImageFormat(s Settings, caps *CapabilitySet) Settings {
	if s.ImageFormat == ImageFormatJPEG {
		return s
	}
	if !caps.SupportsImageFormat(s.StreamConfig, s.ImageFormat) {
		s.ImageFormat = ImageFormatJPEG
	}
	return s
}

// resolveFrameRate は非対応の固定フレームレートを自動選択へ戻す
func resolveFrameRate(s Settings, caps *CapabilitySet) Settings {
	if s.TargetFrameRate == FrameRateAuto {
		return s
	}
	if !caps.SupportsFrameRate(s.TargetFrameRate) {
		s.TargetFrameRate = FrameRateAuto
	}
	return s
}

// resolveStabilization は手ぶれ補正を選択する
// 自動の場合は電子式、光学式の順で、対応かつ現在のフレームレートと
// 併用可能な方式を選ぶ。どちらも使えなければ補正なしにする
// 明示指定の場合は非対応または併用不可なら補正なしへ落とす
func resolveStabilization(s Settings, caps *CapabilitySet) Settings {
	if s.Stabilization == StabilizationAuto {
		for _, m := range []StabilizationMode{StabilizationOn, StabilizationOptical} {
			if caps.SupportsStabilization(m) && caps.StabilizationCompatibleWithFrameRate(m, s.TargetFrameRate) {
				s.Stabilization = m
				return s
			}
		}
		s.Stabilization = StabilizationOff
		return s
	}

	if s.Stabilization == StabilizationOff {
		return s
	}
	if !caps.SupportsStabilization(s.Stabilization) ||
		!caps.StabilizationCompatibleWithFrameRate(s.Stabilization, s.TargetFrameRate) {
		s.Stabilization = StabilizationOff
	}
	return s
}

// resolveConcurrentCamera はデバイスが対応しない同時カメラ構成を解除する
func resolveConcurrentCamera(s Settings, catalog *Catalog) Settings {
	if s.ConcurrentCamera == ConcurrentCameraDual && !catalog.ConcurrentSupported() {
		s.ConcurrentCamera = ConcurrentCameraOff
	}
	return s
}

// resolveFlashMode は現在のレンズで使えないフラッシュ動作を無効へ落とす
func resolveFlashMode(s Settings, caps *CapabilitySet) Settings {
	if !caps.SupportsFlashMode(s.FlashMode) {
		s.FlashMode = FlashModeOff
	}
	return s
}

// resolveCaptureMode はキャプチャモードを他の設定と整合させる
// 優先順: 同時カメラは動画専用、外部キャプチャ依頼は依頼種別の専用構成、
// HDR要求(HLG10動画またはUltra HDR静止画)は対応する専用構成
// この時点でHDR系の値は前段の補正を通過済みなので、残っていれば対応済みとみなす
func resolveCaptureMode(s Settings) Settings {
	if s.ConcurrentCamera == ConcurrentCameraDual {
		s.CaptureMode = CaptureModeVideoOnly
		return s
	}

	switch s.ExternalCapture {
	case ExternalCaptureImage:
		s.CaptureMode = CaptureModeImageOnly
		return s
	case ExternalCaptureVideo:
		s.CaptureMode = CaptureModeVideoOnly
		return s
	}

	hdrVideo := s.DynamicRange == DynamicRangeHLG10
	hdrImage := s.ImageFormat == ImageFormatJPEGUltraHDR
	switch {
	case hdrVideo && hdrImage:
		// 両方使える場合、既に専用構成ならそのままにする
		if s.CaptureMode == CaptureModeStandard {
			s.CaptureMode = CaptureModeVideoOnly
		}
	case hdrVideo:
		s.CaptureMode = CaptureModeVideoOnly
	case hdrImage:
		s.CaptureMode = CaptureModeImageOnly
	}
	return s
}

// resolveVideoQuality は現在のダイナミックレンジで使えない動画品質を未指定へ戻す
func resolveVideoQuality(s Settings, caps *CapabilitySet) Settings {
	if s.VideoQuality == VideoQualityUnspecified {
		return s
	}
	if !caps.SupportsVideoQuality(s.DynamicRange, s.VideoQuality) {
		s.VideoQuality = VideoQualityUnspecified
	}
	return s
}

// resolveTestPattern は非対応のテストパターンを通常出力へ戻す
func resolveTestPattern(s Settings, caps *CapabilitySet) Settings {
	if !caps.SupportsTestPattern(s.TestPattern) {
		s.TestPattern = TestPatternOff
	}
	return s
}
