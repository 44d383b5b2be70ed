package comfy

import (
	"encoding/json"
	"fmt"
	"strings"

	"sdbooth/internal/models"
	"sdbooth/internal/pkg/errors"
)

// Link points a node input at output slot Slot of node Node.
// It encodes as ["node", slot].
type Link struct {
	Node string
	Slot int
}

func (l Link) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{l.Node, l.Slot})
}

// Node is one entry of a ComfyUI API-format graph.
type Node struct {
	ClassType     string         `json:"class_type"`
	Inputs        map[string]any `json:"inputs"`
	WidgetsValues []int          `json:"widgets_values,omitempty"`
}

// Workflow maps node ids to nodes.
type Workflow map[string]Node

// PromptRequest is the /prompt body.
type PromptRequest struct {
	Prompt   Workflow `json:"prompt"`
	ClientID string   `json:"client_id,omitempty"`
}

const (
	classLoadImage    = "LoadImage"
	classSaveImage    = "SaveImage"
	classPreviewImage = "PreviewImage"
	classFaceSwap     = "ReActorFaceSwap"
	classCropLocation = "Image Crop Location"
	classPasteCrop    = "Image Paste Crop"
)

func loadImage(name string) Node {
	return Node{ClassType: classLoadImage, Inputs: map[string]any{"image": name}}
}

func saveImage(class string, from Link, prefix string) Node {
	return Node{ClassType: class, Inputs: map[string]any{
		"images":          from,
		"filename_prefix": prefix,
	}}
}

func faceSwap(input, source Link) Node {
	return Node{ClassType: classFaceSwap, Inputs: map[string]any{
		"input_image":             input,
		"source_image":            source,
		"enabled":                 true,
		"swap_model":              "inswapper_128.onnx",
		"face_model":              "inswapper_128.onnx",
		"facedetection":           "retinaface_resnet50",
		"face_restore_model":      "GFPGANv1.3.pth",
		"face_restore_visibility": 1,
		"codeformer_weight":       0.5,
		"blend_ratio":             0.5,
		"detect_gender_input":     "no",
		"detect_gender_source":    "no",
		"input_faces_index":       "0",
		"source_faces_index":      "0",
		"console_log_level":       1,
	}}
}

// NewSwapFaceWorkflow swaps the user's face onto the whole portrait.
func NewSwapFaceWorkflow(portraitImage, userImage string) Workflow {
	return Workflow{
		"7": loadImage(portraitImage),
		"8": loadImage(userImage),
		"6": faceSwap(Link{"7", 0}, Link{"8", 0}),
		"3": saveImage(classSaveImage, Link{"6", 0}, "ComfyUI"),
	}
}

// NewCropFaceWorkflow crops the face region of the user image, pastes it on
// the portrait and runs the swap on the result.
func NewCropFaceWorkflow(portraitImage, userImage string, crop models.CropData) Workflow {
	widgets := crop.WidgetsValues
	if len(widgets) == 0 {
		widgets = []int{crop.Left, crop.Top, crop.Right, crop.Bottom}
	}

	return Workflow{
		"2": loadImage(portraitImage),
		"3": loadImage(userImage),
		"12": {
			ClassType: classCropLocation,
			Inputs: map[string]any{
				"image":  Link{"3", 0},
				"left":   crop.Left,
				"top":    crop.Top,
				"right":  crop.Right,
				"bottom": crop.Bottom,
			},
			WidgetsValues: widgets,
		},
		"8": {ClassType: classPasteCrop, Inputs: map[string]any{
			"image":           Link{"2", 0},
			"crop_image":      Link{"3", 0},
			"crop_data":       Link{"12", 1},
			"crop_sharpening": 0,
			"crop_blending":   0,
		}},
		"1": faceSwap(Link{"2", 0}, Link{"3", 0}),
		"9": saveImage(classPreviewImage, Link{"1", 0}, "FaceSwap_Result"),
		"4": saveImage(classSaveImage, Link{"1", 0}, "FaceSwap_Result"),
	}
}

// WorkflowFor picks the graph for a portrait's function type. ok is false for
// types the booth does not know.
func WorkflowFor(p models.Portrait, userImage string) (Workflow, bool) {
	switch p.TypeOfFunction {
	case models.FunctionSwapFace:
		return NewSwapFaceWorkflow(p.Image, userImage), true
	case models.FunctionCropFace:
		return NewCropFaceWorkflow(p.Image, userImage, p.Crop), true
	default:
		return nil, false
	}
}

// Validate checks that every link targets an existing node, every LoadImage
// names a file and at least one SaveImage node exists.
func (w Workflow) Validate() error {
	if len(w) == 0 {
		return errors.Validation("workflow is empty")
	}

	var problems []string
	saves := 0
	for id, n := range w {
		if n.ClassType == "" {
			problems = append(problems, fmt.Sprintf("node %s has no class_type", id))
		}
		if n.ClassType == classSaveImage {
			saves++
		}
		if n.ClassType == classLoadImage {
			if name, _ := n.Inputs["image"].(string); strings.TrimSpace(name) == "" {
				problems = append(problems, fmt.Sprintf("node %s loads no image", id))
			}
		}
		for input, v := range n.Inputs {
			l, ok := v.(Link)
			if !ok {
				continue
			}
			if _, exists := w[l.Node]; !exists {
				problems = append(problems, fmt.Sprintf("node %s input %s links missing node %s", id, input, l.Node))
			}
		}
	}
	if saves == 0 {
		problems = append(problems, "workflow has no SaveImage node")
	}

	if len(problems) > 0 {
		return errors.Validation("invalid workflow").WithField("problems", problems)
	}
	return nil
}
