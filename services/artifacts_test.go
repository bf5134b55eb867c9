package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"compound-harmonizer/models"
)

func TestWriteCompoundsReadable(t *testing.T) {
	w := NewArtifactWriter(filepath.Join(t.TempDir(), "out"), zap.NewNop())
	path, err := w.WriteCompounds("feces", []models.CompoundRecord{
		{FeatureID: 1, CompoundName: "Valine", Synonyms: []string{"Valine", "5'-AMP"}, DetectionFrequency: 0.5},
		{FeatureID: 2, CompoundName: "Unknownium"},
	})
	require.NoError(t, err)
	assert.Equal(t, "feces_harmonized.csv", filepath.Base(path))

	table, err := ReadTable(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"FEATURE_ID", "COMPOUND_NAME", "SYNONYMS", "DETECTION_FREQUENCY"}, table.Header)
	require.Len(t, table.Rows, 2)

	synonyms, err := ParseStringList(table.Value(table.Rows[0], "SYNONYMS"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Valine", "5'-AMP"}, synonyms)
	assert.Equal(t, "0.5", table.Value(table.Rows[0], "DETECTION_FREQUENCY"))
	assert.Empty(t, table.Value(table.Rows[1], "SYNONYMS"))
}

func TestWriteDistributions(t *testing.T) {
	w := NewArtifactWriter(t.TempDir(), zap.NewNop())
	d := models.DatasetDistribution{Dataset: "pcp", NoData: true}
	path, err := w.WriteDistributions("public_aggregated", []models.DatasetDistribution{d})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "DATASET,INDUSTRIAL,PERSONAL CARE,FOOD,MEDICAL,ENDOGENOUS,TOTAL,NO_DATA\npcp,0,0,0,0,0,0,true\n", string(raw))
}

func TestWriteLabelRows(t *testing.T) {
	w := NewArtifactWriter(t.TempDir(), zap.NewNop())
	path, err := w.WriteLabelRows("public_harmonized", []models.LabelRow{
		{FeatureID: 7, Dataset: "brain", DetectionFrequency: 0.25, Labels: models.NewLabelSet(models.LabelFood, models.LabelMedical)},
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "FEATURE_ID,DATASET,DETECTION_FREQUENCY,INDUSTRIAL,PERSONAL CARE,FOOD,MEDICAL,ENDOGENOUS\n7,brain,0.25,0,0,1,1,0\n", string(raw))
}

func TestWriteClassifiedRecords(t *testing.T) {
	w := NewArtifactWriter(t.TempDir(), zap.NewNop())
	path, err := w.WriteClassifiedRecords("drug_library_harmonized", []string{"GPT_RAG", "SEARCH_GPT"}, []models.ClassifiedRecord{
		{
			FeatureID: 3,
			Source:    "siteB",
			Manual:    models.NewLabelSet(models.LabelFood, models.LabelMedical),
			Methods: map[string]models.LabelSet{
				"GPT_RAG":    models.NewLabelSet(models.LabelPersonalCare, models.LabelEndogenous),
				"SEARCH_GPT": models.NewLabelSet(models.LabelInfo),
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "drug_library_harmonized.csv", filepath.Base(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "FEATURE_ID,SOURCE,"+
		"MANUAL_INDUSTRIAL,MANUAL_PERSONAL CARE,MANUAL_FOOD,MANUAL_MEDICAL,MANUAL_ENDOGENOUS,MANUAL_INFO,"+
		"GPT_RAG_INDUSTRIAL,GPT_RAG_PERSONAL CARE,GPT_RAG_FOOD,GPT_RAG_MEDICAL,GPT_RAG_ENDOGENOUS,GPT_RAG_INFO,"+
		"SEARCH_GPT_INDUSTRIAL,SEARCH_GPT_PERSONAL CARE,SEARCH_GPT_FOOD,SEARCH_GPT_MEDICAL,SEARCH_GPT_ENDOGENOUS,SEARCH_GPT_INFO\n"+
		"3,siteB,0,0,1,1,0,0,0,1,0,0,1,0,0,0,0,0,0,1\n", string(raw))
}

func TestWriteClassifiedRecordsMissingMethod(t *testing.T) {
	w := NewArtifactWriter(t.TempDir(), zap.NewNop())
	path, err := w.WriteClassifiedRecords("drug_library_harmonized", []string{"GPT_RAG"}, []models.ClassifiedRecord{
		{FeatureID: 1, Manual: models.NewLabelSet(models.LabelMedical)},
	})
	require.NoError(t, err)

	table, err := ReadTable(path)
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "1", table.Value(table.Rows[0], "MANUAL_MEDICAL"))
	assert.Equal(t, "0", table.Value(table.Rows[0], "GPT_RAG_MEDICAL"))
	assert.Equal(t, "0", table.Value(table.Rows[0], "GPT_RAG_INFO"))
}
