package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDatasetHarmonizer(t *testing.T) *DatasetHarmonizer {
	t.Helper()
	return NewDatasetHarmonizer(DefaultDatasetCatalog(), DefaultDatasetColumns(), newTestNormalizer(t), zap.NewNop())
}

func writeSplitFixture(t *testing.T, dir string) {
	t.Helper()
	writeFile(t, filepath.Join(dir, "feces_synonyms.csv"), `X.Scan.,synonyms
1,"['CHEMBL999', 'DL-Valine', 'Valine']"
2,"['12345-67-8']"
,"['Ignored']"
`)
	writeFile(t, filepath.Join(dir, "feces_detection.csv"), `featureID,compound_name,DF
1,Valine,0.5
2,Mystery,0.25
3,,0.1
1,Valine again,0.9
`)
}

func TestHarmonizeSplit(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "feces")
	writeSplitFixture(t, dir)

	ds, err := newTestDatasetHarmonizer(t).HarmonizeDir(dir)
	require.NoError(t, err)
	assert.Equal(t, "feces", ds.Name)
	assert.Equal(t, LayoutSplit, ds.Layout)

	require.Len(t, ds.Records, 2)
	first, second := ds.Records[0], ds.Records[1]

	assert.Equal(t, 1, first.FeatureID)
	assert.Equal(t, "Valine", first.CompoundName)
	assert.Equal(t, []string{"Valine"}, first.Synonyms)
	assert.InDelta(t, 0.5, first.DetectionFrequency, 1e-12)
	assert.Equal(t, "feces", first.Dataset)

	// Alle Synonyme gefiltert: Rückfall auf den Namen.
	assert.Equal(t, 2, second.FeatureID)
	assert.Equal(t, []string{"Mystery"}, second.Synonyms)

	assert.Equal(t, HarmonizeStats{
		Dataset:     "feces",
		RawRows:     4,
		Records:     2,
		Fallbacks:   1,
		DroppedRows: 1,
	}, ds.Stats)
}

func TestHarmonizeCombined(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "food_2024")
	writeFile(t, filepath.Join(dir, "food.csv"), `featureID,compound_name,synonyms,DF
5,Caffeine,"['Spectral Match to Caffeine from NIST14', 'caffeine']",0.3
4,Sucrose,,0.2
6,Glycine,"['Glycine']",
`)

	ds, err := newTestDatasetHarmonizer(t).HarmonizeDir(dir)
	require.NoError(t, err)
	assert.Equal(t, "food", ds.Name)
	assert.Equal(t, LayoutCombined, ds.Layout)

	require.Len(t, ds.Records, 3)
	assert.Equal(t, []int{4, 5, 6}, []int{ds.Records[0].FeatureID, ds.Records[1].FeatureID, ds.Records[2].FeatureID})
	assert.Equal(t, []string{"Sucrose"}, ds.Records[0].Synonyms)
	assert.Equal(t, []string{"Caffeine"}, ds.Records[1].Synonyms)
	assert.Zero(t, ds.Records[2].DetectionFrequency)
	assert.Equal(t, 1, ds.Stats.MissingFrequencies)
	assert.Equal(t, 1, ds.Stats.Fallbacks)
}

func writeBrainFixture(t *testing.T, dir, detection string) {
	t.Helper()
	writeFile(t, filepath.Join(dir, "brain_synonyms.csv"), `synonyms
"['L-Glutamine', 'Glutamine']"
"['Taurine', '2-Aminoethanesulfonic acid']"
`)
	writeFile(t, filepath.Join(dir, "brain_detection.csv"), detection)
}

func TestHarmonizeBrain(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "brain")
	writeBrainFixture(t, dir, `featureID,compound_name,Compound_Name,DF
10,TAURINE,TAURINE,0.7
11,Unknownium,Unknownium,0.1
`)

	ds, err := newTestDatasetHarmonizer(t).HarmonizeDir(dir)
	require.NoError(t, err)
	assert.Equal(t, LayoutBrain, ds.Layout)
	require.Len(t, ds.Records, 2)

	assert.Equal(t, []string{"Taurine", "2-Aminoethanesulfonic acid"}, ds.Records[0].Synonyms)
	assert.True(t, ds.Records[0].HasSynonyms())
	assert.Nil(t, ds.Records[1].Synonyms)
	assert.False(t, ds.Records[1].HasSynonyms())
	assert.Equal(t, 1, ds.Stats.Unmatched)
}

func TestHarmonizeBrainNameMismatch(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "brain")
	writeBrainFixture(t, dir, `featureID,compound_name,Compound_Name,DF
10,Taurine,Glutamine,0.7
`)
	_, err := newTestDatasetHarmonizer(t).HarmonizeDir(dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), "row 1")
}

func TestHarmonizeBrainEmptyNameIsUnmatched(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "brain")
	writeBrainFixture(t, dir, `featureID,compound_name,Compound_Name,DF
12,,,0.3
10,Taurine,Taurine,0.7
`)

	ds, err := newTestDatasetHarmonizer(t).HarmonizeDir(dir)
	require.NoError(t, err)
	require.Len(t, ds.Records, 2)

	assert.Equal(t, []string{"Taurine", "2-Aminoethanesulfonic acid"}, ds.Records[0].Synonyms)
	assert.Equal(t, 12, ds.Records[1].FeatureID)
	assert.Empty(t, ds.Records[1].CompoundName)
	assert.Nil(t, ds.Records[1].Synonyms)
	assert.False(t, ds.Records[1].HasSynonyms())
	assert.Equal(t, 1, ds.Stats.Unmatched)
}

func TestHarmonizeConfigurationErrors(t *testing.T) {
	h := newTestDatasetHarmonizer(t)

	t.Run("unexpected file", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "plasma")
		writeFile(t, filepath.Join(dir, "plasma_synonyms.csv"), "X.Scan.,synonyms\n")
		writeFile(t, filepath.Join(dir, "plasma_detection.csv"), "featureID,compound_name,DF\n")
		writeFile(t, filepath.Join(dir, "notes.txt"), "hello")
		_, err := h.HarmonizeDir(dir)
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("two synonym files", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "plasma")
		writeFile(t, filepath.Join(dir, "a_synonyms.csv"), "X.Scan.,synonyms\n")
		writeFile(t, filepath.Join(dir, "b_synonyms.csv"), "X.Scan.,synonyms\n")
		_, err := h.HarmonizeDir(dir)
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("missing detection file", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "mouse")
		writeFile(t, filepath.Join(dir, "mouse_synonyms.csv"), "X.Scan.,synonyms\n")
		_, err := h.HarmonizeDir(dir)
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("combined with two files", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "pcp")
		writeFile(t, filepath.Join(dir, "a.csv"), "featureID\n")
		writeFile(t, filepath.Join(dir, "b.csv"), "featureID\n")
		_, err := h.HarmonizeDir(dir)
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("unknown directory", func(t *testing.T) {
		_, err := h.HarmonizeDir(filepath.Join(t.TempDir(), "saliva"))
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("ambiguous directory", func(t *testing.T) {
		_, err := h.HarmonizeDir(filepath.Join(t.TempDir(), "food_pcp"))
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("missing column", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "dust")
		writeFile(t, filepath.Join(dir, "dust_synonyms.csv"), "synonyms\n")
		writeFile(t, filepath.Join(dir, "dust_detection.csv"), "featureID,compound_name,DF\n")
		_, err := h.HarmonizeDir(dir)
		assert.ErrorIs(t, err, ErrConfiguration)
	})
}

func TestHarmonizeMalformedList(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pcp")
	writeFile(t, filepath.Join(dir, "pcp.csv"), "featureID,compound_name,synonyms,DF\n1,X,Valine,0.1\n")
	_, err := newTestDatasetHarmonizer(t).HarmonizeDir(dir)
	assert.ErrorIs(t, err, ErrParse)
}

func TestHarmonizeAll(t *testing.T) {
	root := t.TempDir()
	writeSplitFixture(t, filepath.Join(root, "feces"))
	writeFile(t, filepath.Join(root, "food", "food.csv"), "featureID,compound_name,synonyms,DF\n1,Sucrose,,0.2\n")
	writeFile(t, filepath.Join(root, "README.md"), "ignored")

	all, err := newTestDatasetHarmonizer(t).HarmonizeAll(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "feces", all[0].Name)
	assert.Equal(t, "food", all[1].Name)
}

func TestDatasetCatalogResolve(t *testing.T) {
	c := DefaultDatasetCatalog()
	name, layout, err := c.Resolve("/data/public/ROSMAP_brain")
	require.NoError(t, err)
	assert.Equal(t, "brain", name)
	assert.Equal(t, LayoutBrain, layout)

	name, layout, err = c.Resolve("iss_library")
	require.NoError(t, err)
	assert.Equal(t, "iss", name)
	assert.Equal(t, LayoutSplit, layout)
}
