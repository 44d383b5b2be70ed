package seed

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	yaml "gopkg.in/yaml.v3"

	"sdbooth/internal/models"
)

var ErrCatalogueInvalid = errors.New("portrait catalogue is invalid")

// catalogueFile is the on-disk form of a portrait catalogue:
//
//	portraits:
//	  - image: Ж_Внедрение_1_Масленица.png
//	    sex: Female
//	    function: CropFace
//	    crop: {left: 450, top: 200, right: 1250, bottom: 500}
type catalogueFile struct {
	Portraits []catalogueEntry `yaml:"portraits"`
}

type catalogueEntry struct {
	Image    string `yaml:"image"`
	Sex      string `yaml:"sex"`
	Function string `yaml:"function"`
	Crop     struct {
		Left   int `yaml:"left"`
		Top    int `yaml:"top"`
		Right  int `yaml:"right"`
		Bottom int `yaml:"bottom"`
	} `yaml:"crop,omitempty"`
}

// LoadFile reads a YAML portrait catalogue to seed instead of the stock set.
func LoadFile(path string) ([]models.Portrait, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalogue %s: %w", path, err)
	}
	return Unmarshal(buf)
}

func Unmarshal(buf []byte) ([]models.Portrait, error) {
	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)

	var f catalogueFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalogueInvalid, err)
	}
	if len(f.Portraits) == 0 {
		return nil, fmt.Errorf("%w: no portraits", ErrCatalogueInvalid)
	}

	out := make([]models.Portrait, 0, len(f.Portraits))
	for i, e := range f.Portraits {
		image := strings.TrimSpace(e.Image)
		if image == "" {
			return nil, fmt.Errorf("%w: portraits[%d]: image is required", ErrCatalogueInvalid, i)
		}

		var sex string
		switch strings.ToLower(strings.TrimSpace(e.Sex)) {
		case "female":
			sex = "Female"
		case "male":
			sex = "Male"
		default:
			return nil, fmt.Errorf("%w: portraits[%d]: sex must be Female or Male, got %q", ErrCatalogueInvalid, i, e.Sex)
		}

		fn := models.FunctionType(strings.TrimSpace(e.Function))
		if fn != models.FunctionSwapFace && fn != models.FunctionCropFace {
			return nil, fmt.Errorf("%w: portraits[%d]: unknown function %q", ErrCatalogueInvalid, i, e.Function)
		}

		out = append(out, portrait(image, sex, fn, crop(e.Crop.Left, e.Crop.Top, e.Crop.Right, e.Crop.Bottom)))
	}
	return out, nil
}
