package inference

import (
	"encoding/json"

	"split-the-g/pkg/models"
)

// Analysis is the scoring workflow output for one photo
type Analysis struct {
	Image       models.ImageSize
	Predictions []models.Prediction
	// SplitImage is the annotated photo with the split and crossbar drawn in
	SplitImage []byte
	// LogoImage is the crop around the G
	LogoImage []byte
}

// Detection is the detector output for one live frame
type Detection struct {
	Image       models.ImageSize    `json:"image"`
	Predictions []models.Prediction `json:"predictions"`
}

type imageInput struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type workflowRequest struct {
	APIKey string                `json:"api_key"`
	Inputs map[string]imageInput `json:"inputs"`
}

type workflowResponse struct {
	Outputs []workflowOutput `json:"outputs"`
}

type workflowOutput struct {
	Predictions        Detection       `json:"predictions"`
	SplitVisualization json.RawMessage `json:"split_visualization"`
	LogoCrop           json.RawMessage `json:"logo_crop"`
}
