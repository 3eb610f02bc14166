package domain

type QualityLevel string

const (
	QualityLow    QualityLevel = "low"
	QualityMedium QualityLevel = "medium"
	QualityHigh   QualityLevel = "high"
	QualityUltra  QualityLevel = "ultra"
)

func (q QualityLevel) Valid() bool {
	switch q {
	case QualityLow, QualityMedium, QualityHigh, QualityUltra:
		return true
	}
	return false
}

// VideoConstraints describe the capture parameters for a quality level.
type VideoConstraints struct {
	Width       int `json:"width"`
	Height      int `json:"height"`
	FrameRate   int `json:"frame_rate"`
	BitrateKbps int `json:"bitrate"`
}

type AudioConstraints struct {
	BitrateKbps int `json:"bitrate"`
}

type MediaConstraints struct {
	Video VideoConstraints `json:"video"`
	Audio AudioConstraints `json:"audio"`
}
