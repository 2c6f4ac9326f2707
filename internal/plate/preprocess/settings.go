package preprocess

// Settings are the capture-side adjustments applied to a frame before any
// variant is produced. They are fixed for the duration of one recognition.
type Settings struct {
	Contrast   float64 `json:"contrast"`
	Brightness float64 `json:"brightness"`
	Sharpen    bool    `json:"sharpen"`
	AutoCrop   bool    `json:"auto_crop"`
	Language   string  `json:"language"`
}

// DefaultSettings leaves the frame untouched and reads English.
func DefaultSettings() Settings {
	return Settings{
		Contrast:   1.0,
		Brightness: 1.0,
		Language:   "eng",
	}
}
