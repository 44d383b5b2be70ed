package seed

import (
	"context"
	"testing"

	"sdbooth/internal/models"
	"sdbooth/internal/pkg/logger"
	"sdbooth/internal/repositories"
)

func TestRunSeedsEmptyStoreOnce(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMemoryTemplateStore()

	n, err := Run(ctx, store, logger.Discard())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != len(Portraits()) {
		t.Errorf("expected %d seeded, got %d", len(Portraits()), n)
	}

	n, err = Run(ctx, store, logger.Discard())
	if err != nil || n != 0 {
		t.Errorf("second run should be a no-op, got n=%d err=%v", n, err)
	}
}

func TestPortraits(t *testing.T) {
	ids := map[string]bool{}
	bySex := map[string]int{}
	for _, p := range Portraits() {
		if ids[p.ID] {
			t.Errorf("duplicate id for %s", p.Image)
		}
		ids[p.ID] = true
		bySex[p.Sex]++

		if p.TypeOfFunction == models.FunctionCropFace && len(p.Crop.WidgetsValues) != 4 {
			t.Errorf("%s: expected 4 widget values, got %v", p.Image, p.Crop.WidgetsValues)
		}
	}
	if bySex["Female"] != 6 || bySex["Male"] != 6 {
		t.Errorf("unexpected split %v", bySex)
	}
}
