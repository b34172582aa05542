package deepface

// representRequest is the body of POST /represent.
type representRequest struct {
	Img              string `json:"img"`
	ModelName        string `json:"model_name"`
	DetectorBackend  string `json:"detector_backend"`
	EnforceDetection bool   `json:"enforce_detection"`
	Align            bool   `json:"align"`
}

type representResponse struct {
	Results []representResult `json:"results"`
}

type representResult struct {
	Embedding      []float64  `json:"embedding"`
	FacialArea     facialArea `json:"facial_area"`
	FaceConfidence *float64   `json:"face_confidence"`
}

type facialArea struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}
