package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReading_Missing(t *testing.T) {
	v := 4.2
	assert.False(t, (&Reading{Value: &v}).Missing())
	assert.True(t, (&Reading{}).Missing())

	var nilReading *Reading
	assert.True(t, nilReading.Missing())
}

func TestGap_DurationHours(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	oneHour := Gap{Start: start, End: start}
	assert.Equal(t, 1, oneHour.DurationHours())

	sixHours := Gap{Start: start, End: start.Add(5 * time.Hour)}
	assert.Equal(t, 6, sixHours.DurationHours())
}

func TestModelArtifact_Usable(t *testing.T) {
	assert.True(t, (&ModelArtifact{Status: ArtifactPending}).Usable())
	assert.True(t, (&ModelArtifact{Status: ArtifactCertified}).Usable())
	assert.False(t, (&ModelArtifact{Status: ArtifactRejected}).Usable())

	var nilArtifact *ModelArtifact
	assert.False(t, nilArtifact.Usable())
}

func TestTableNames(t *testing.T) {
	assert.Equal(t, "readings", Reading{}.TableName())
	assert.Equal(t, "stations", Station{}.TableName())
	assert.Equal(t, "model_artifacts", ModelArtifact{}.TableName())
	assert.Equal(t, "training_log", TrainingLog{}.TableName())
	assert.Equal(t, "imputation_log", ImputationLog{}.TableName())
	assert.Equal(t, "validation_log", ValidationLog{}.TableName())
}
