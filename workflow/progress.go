package workflow

import (
	"math"

	"github.com/gulfstream-dynamics/crm_backend/models"
)

// ProgressPercent projects a stage onto a 0-100 completion ratio for
// progress bars. Pure; the only failure mode is an unknown stage.
func ProgressPercent(stage models.OrderStage) (int, error) {
	idx, err := StageIndex(stage)
	if err != nil {
		return 0, err
	}
	percent := int(math.Round(float64(idx+1) / float64(len(StageCatalog)) * 100))
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return percent, nil
}
