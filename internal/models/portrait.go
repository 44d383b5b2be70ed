package models

// FunctionType names the ComfyUI workflow a portrait template runs.
type FunctionType string

const (
	FunctionSwapFace FunctionType = "SwapFace"
	FunctionCropFace FunctionType = "CropFace"
)

// CropData is the face region pasted back onto a CropFace portrait.
type CropData struct {
	Left          int   `json:"left"`
	Top           int   `json:"top"`
	Right         int   `json:"right"`
	Bottom        int   `json:"bottom"`
	WidgetsValues []int `json:"widgets_values"`
}

// Portrait is a template image the user's face is rendered into.
type Portrait struct {
	ID             string       `json:"id"`
	Image          string       `json:"image"`
	Sex            string       `json:"sex"`
	TypeOfFunction FunctionType `json:"type_of_function"`
	Crop           CropData     `json:"crop"`
}
