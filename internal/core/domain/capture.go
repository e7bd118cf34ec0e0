package domain

import (
	"math"
	"slices"
)

// CaptureMode selects how many frames per second were extracted from the source.
type CaptureMode int

const (
	CaptureModeNone        CaptureMode = 0
	CaptureMode1FPS        CaptureMode = 1
	CaptureMode2FPS        CaptureMode = 2
	CaptureMode3FPS        CaptureMode = 3
	CaptureMode4FPS        CaptureMode = 4
	CaptureMode5FPS        CaptureMode = 5
	CaptureMode10FPS       CaptureMode = 10
	CaptureMode12FPS       CaptureMode = 12
	CaptureMode15FPS       CaptureMode = 15
	CaptureModeAll         CaptureMode = 1000
	CaptureModeHalfFPS     CaptureMode = 1001
	CaptureMode1FEvery2S   CaptureMode = 9000
	CaptureMode1FEvery5S   CaptureMode = 9001
	CaptureMode1FEvery10S  CaptureMode = 9002
	CaptureMode1FEvery30S  CaptureMode = 9003
	CaptureMode1FEvery1Min CaptureMode = 9004
	CaptureMode1FEvery2Min CaptureMode = 9005
	CaptureMode1FEvery5Min CaptureMode = 9006
	CaptureModeDynamicFPS  CaptureMode = 9999
)

var fixedModes = []CaptureMode{
	CaptureMode1FPS, CaptureMode2FPS, CaptureMode3FPS, CaptureMode4FPS,
	CaptureMode5FPS, CaptureMode10FPS, CaptureMode12FPS, CaptureMode15FPS,
}

// CaptureRate is the frame extraction rate as a fraction (Numerator/Denominator fps).
type CaptureRate struct {
	Numerator   int
	Denominator int
}

// SuggestCaptureRate maps a source framerate and capture mode to the extraction rate.
// ok is false for CaptureModeNone, unknown modes or an invalid framerate.
func SuggestCaptureRate(fps float64, mode CaptureMode) (rate CaptureRate, ok bool) {
	if math.IsNaN(fps) || fps <= 0 || mode == CaptureModeNone {
		return CaptureRate{}, false
	}

	switch {
	case slices.Contains(fixedModes, mode):
		rate = CaptureRate{Numerator: int(mode), Denominator: 1}
	case mode == CaptureModeAll, mode == CaptureModeHalfFPS:
		rounded := math.Round(fps)
		rate.Denominator = 1001
		if rounded == fps {
			rate.Denominator = 1000
		}
		rate.Numerator = int(rounded) * 1000
		if mode == CaptureModeHalfFPS {
			rate.Numerator /= 2
		}
	case mode == CaptureMode1FEvery2S:
		rate = CaptureRate{Numerator: 5, Denominator: 10}
	case mode == CaptureMode1FEvery5S:
		rate = CaptureRate{Numerator: 2, Denominator: 10}
	case mode == CaptureMode1FEvery10S:
		rate = CaptureRate{Numerator: 1, Denominator: 10}
	case mode == CaptureMode1FEvery30S:
		rate = CaptureRate{Numerator: 1, Denominator: 30}
	case mode == CaptureMode1FEvery1Min:
		rate = CaptureRate{Numerator: 1, Denominator: 60}
	case mode == CaptureMode1FEvery2Min:
		rate = CaptureRate{Numerator: 1, Denominator: 120}
	case mode == CaptureMode1FEvery5Min:
		rate = CaptureRate{Numerator: 1, Denominator: 300}
	case mode == CaptureModeDynamicFPS:
		rate = CaptureRate{Numerator: 1, Denominator: 1}
	default:
		return CaptureRate{}, false
	}

	if rate.Numerator == 0 || rate.Denominator == 0 {
		return CaptureRate{}, false
	}
	return rate, true
}

// FrameNumAndTimestamp converts the index of an extracted frame to the source
// frame number and its timestamp in milliseconds.
func FrameNumAndTimestamp(idx int, fps float64, rate CaptureRate) (int, int64) {
	num := math.Round(float64(idx) * fps * float64(rate.Denominator) / float64(rate.Numerator))
	return int(num), int64(math.Round(num * 1000 / fps))
}
