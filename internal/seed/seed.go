// Package seed fills an empty portrait catalogue with the booth's stock templates.
package seed

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"sdbooth/internal/models"
	"sdbooth/internal/pkg/logger"
	"sdbooth/internal/repositories"
)

func crop(left, top, right, bottom int) models.CropData {
	return models.CropData{
		Left:          left,
		Top:           top,
		Right:         right,
		Bottom:        bottom,
		WidgetsValues: []int{left, top, right, bottom},
	}
}

func portrait(image, sex string, fn models.FunctionType, c models.CropData) models.Portrait {
	return models.Portrait{
		// Stable ids make re-seeding a no-op.
		ID:             uuid.NewSHA1(uuid.NameSpaceURL, []byte("portrait:"+image)).String(),
		Image:          image,
		Sex:            sex,
		TypeOfFunction: fn,
		Crop:           c,
	}
}

// Portraits returns the stock template set.
func Portraits() []models.Portrait {
	none := crop(0, 0, 0, 0)
	return []models.Portrait{
		portrait("Ж_Внедрение_1_Масленица.png", "Female", models.FunctionCropFace, crop(450, 200, 1250, 500)),
		portrait("Ж_Внедрение_2_Ярмарка.png", "Female", models.FunctionCropFace, crop(1000, 600, 500, 550)),
		portrait("Ж_Внедрение_4_Сенокос.png", "Female", models.FunctionCropFace, crop(250, 300, 1500, 720)),
		portrait("Ж_Внедрение_5_Гулянье.png", "Female", models.FunctionCropFace, crop(500, 175, 1000, 750)),
		portrait("Ж_Замена_1_Шеповалова.png", "Female", models.FunctionSwapFace, none),
		portrait("Ж_Замена_2_Кустодиева.jpg", "Female", models.FunctionSwapFace, none),
		portrait("М_Внедрение_1_Масленица.png", "Male", models.FunctionCropFace, crop(700, 200, 1000, 650)),
		portrait("М_Внедрение_2_Ярмарка.png", "Male", models.FunctionCropFace, crop(1000, 600, 500, 550)),
		portrait("М_Внедрение_4_Сенокос.png", "Male", models.FunctionCropFace, crop(400, 500, 1250, 800)),
		portrait("М_Внедрение_5_Гулянье.png", "Male", models.FunctionCropFace, crop(500, 250, 1000, 800)),
		portrait("М_Замена_1_Щусев.jpg", "Male", models.FunctionSwapFace, none),
		portrait("М_Замена_2_Шаляпин.png", "Male", models.FunctionSwapFace, none),
	}
}

// Run inserts the stock templates when the store is empty and reports how
// many were written.
func Run(ctx context.Context, store repositories.TemplateStore, log *logger.Logger) (int, error) {
	return RunWith(ctx, store, Portraits(), log)
}

// RunWith is Run with a caller-supplied catalogue.
func RunWith(ctx context.Context, store repositories.TemplateStore, portraits []models.Portrait, log *logger.Logger) (int, error) {
	log = log.WithComponent("seed")

	n, err := store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count portraits: %w", err)
	}
	if n > 0 {
		log.Debug("portrait catalogue already populated", "count", n)
		return 0, nil
	}

	if err := store.InsertMany(ctx, portraits); err != nil {
		return 0, fmt.Errorf("seed portraits: %w", err)
	}
	log.Info("seeded portrait catalogue", "count", len(portraits))
	return len(portraits), nil
}
