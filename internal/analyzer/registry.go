package analyzer

import "fmt"

// NewDetector создает детектор по названию варианта. Для "none"
// возвращается nil: у кадров не будет значимой области.
func NewDetector(variant string) (Detector, error) {
	switch variant {
	case "contrast", "":
		return NewContrastDetector(), nil
	case "center":
		return CenterDetector{}, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown detector variant: %s", variant)
	}
}
