package facematch

import "github.com/creasty/defaults"

// Config is fixed when an Evaluator is built.
type Config struct {
	// Threshold is the largest distance still counted as a match. Smaller is stricter.
	Threshold float64 `default:"0.6" json:"threshold"`
	// MaxFaces caps the regions considered per image; only the earliest are kept.
	MaxFaces int `default:"1" json:"max_faces"`
	// MaxDimension bounds the longer edge of an image before detection.
	MaxDimension int `default:"800" json:"max_dimension"`
	// RejectMultipleFaces fails with MultipleFacesDetected instead of silently
	// using the first face when an image contains more than one.
	RejectMultipleFaces bool `json:"reject_multiple_faces"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		// the tags above are constant
		panic(err)
	}
	return cfg
}

func (c Config) normalized() Config {
	if c.MaxFaces < 1 {
		c.MaxFaces = 1
	}
	return c
}
