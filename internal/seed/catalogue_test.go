package seed

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"sdbooth/internal/models"
)

const sampleCatalogue = `
portraits:
  - image: harvest.png
    sex: female
    function: CropFace
    crop: {left: 450, top: 200, right: 1250, bottom: 500}
  - image: fair.png
    sex: Male
    function: SwapFace
`

func TestUnmarshalCatalogue(t *testing.T) {
	ps, err := Unmarshal([]byte(sampleCatalogue))
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(ps) != 2 {
		t.Fatalf("expected 2 portraits, got %d", len(ps))
	}

	crop := ps[0]
	if crop.Sex != "Female" || crop.TypeOfFunction != models.FunctionCropFace {
		t.Errorf("unexpected first portrait %+v", crop)
	}
	if crop.Crop.Right != 1250 || len(crop.Crop.WidgetsValues) != 4 || crop.Crop.WidgetsValues[0] != 450 {
		t.Errorf("unexpected crop %+v", crop.Crop)
	}
	if crop.ID != portrait("harvest.png", "Female", models.FunctionCropFace, crop.Crop).ID {
		t.Error("expected stable id derived from image name")
	}

	if ps[1].Crop.Left != 0 || ps[1].TypeOfFunction != models.FunctionSwapFace {
		t.Errorf("unexpected second portrait %+v", ps[1])
	}
}

func TestUnmarshalCatalogueRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", "portraits: []"},
		{"missing image", "portraits:\n  - sex: Male\n    function: SwapFace\n"},
		{"bad sex", "portraits:\n  - image: a.png\n    sex: other\n    function: SwapFace\n"},
		{"bad function", "portraits:\n  - image: a.png\n    sex: Male\n    function: Blend\n"},
		{"unknown field", "portraits:\n  - image: a.png\n    sex: Male\n    function: SwapFace\n    colour: red\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tt.doc))
			if !errors.Is(err, ErrCatalogueInvalid) {
				t.Errorf("expected ErrCatalogueInvalid, got %v", err)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portraits.yaml")
	if err := os.WriteFile(path, []byte(sampleCatalogue), 0o644); err != nil {
		t.Fatal(err)
	}
	ps, err := LoadFile(path)
	if err != nil || len(ps) != 2 {
		t.Fatalf("LoadFile: %d portraits, err=%v", len(ps), err)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}
