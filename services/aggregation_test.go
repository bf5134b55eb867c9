package services

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"compound-harmonizer/models"
)

func labelRow(dataset string, df float64, labels ...models.Label) models.LabelRow {
	return models.LabelRow{Dataset: dataset, DetectionFrequency: df, Labels: models.NewLabelSet(labels...)}
}

func TestRefine(t *testing.T) {
	tests := []struct {
		name  string
		group DatasetGroup
		in    []models.Label
		want  []models.Label
	}{
		{"biospecimen food suppresses industrial", GroupBiospecimen,
			[]models.Label{models.LabelFood, models.LabelIndustrial},
			[]models.Label{models.LabelFood}},
		{"biospecimen endogenous suppresses medical and personal care", GroupBiospecimen,
			[]models.Label{models.LabelEndogenous, models.LabelMedical, models.LabelPersonalCare},
			[]models.Label{models.LabelEndogenous}},
		{"biospecimen without trigger", GroupBiospecimen,
			[]models.Label{models.LabelIndustrial, models.LabelMedical},
			[]models.Label{models.LabelIndustrial, models.LabelMedical}},
		{"synthetic industrial suppresses food", GroupSynthetic,
			[]models.Label{models.LabelIndustrial, models.LabelFood, models.LabelMedical, models.LabelEndogenous},
			[]models.Label{models.LabelIndustrial}},
		{"synthetic personal care", GroupSynthetic,
			[]models.Label{models.LabelPersonalCare, models.LabelFood},
			[]models.Label{models.LabelPersonalCare}},
		{"synthetic without trigger", GroupSynthetic,
			[]models.Label{models.LabelFood, models.LabelMedical},
			[]models.Label{models.LabelFood, models.LabelMedical}},
		{"unknown group passes through", GroupUnknown,
			[]models.Label{models.LabelFood, models.LabelIndustrial},
			[]models.Label{models.LabelFood, models.LabelIndustrial}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := labelRow("x", 1, tt.in...)
			out := Refine(in, tt.group)
			assert.True(t, out.Labels.Equal(models.NewLabelSet(tt.want...)), "got %v", out.Labels)
			// Eingabe bleibt unverändert.
			assert.True(t, in.Labels.Equal(models.NewLabelSet(tt.in...)))
		})
	}
}

func TestDatasetGroups(t *testing.T) {
	g := DefaultDatasetGroups()
	assert.Equal(t, GroupBiospecimen, g.GroupOf("brain"))
	assert.Equal(t, GroupBiospecimen, g.GroupOf("dust"))
	assert.Equal(t, GroupSynthetic, g.GroupOf("pcp"))
	assert.Equal(t, GroupUnknown, g.GroupOf("saliva"))
}

func TestAggregate(t *testing.T) {
	rows := []models.LabelRow{
		labelRow("brain", 0.5, models.LabelFood, models.LabelIndustrial),
		labelRow("brain", 0.25, models.LabelMedical),
		labelRow("iss", 0.4, models.LabelIndustrial, models.LabelFood),
		labelRow("iss", 0.1, models.LabelPersonalCare),
	}
	a := NewAggregator(DefaultDatasetGroups(), zap.NewNop())

	raw := a.Aggregate(rows, false)
	require.Len(t, raw, 2)
	brain := raw[0]
	assert.Equal(t, "brain", brain.Dataset)
	assert.False(t, brain.Refined)
	assert.Equal(t, 2, brain.Rows)
	assert.InDelta(t, 1.25, brain.Total, 1e-12)
	assert.InDelta(t, 0.4, brain.Food, 1e-9)
	assert.InDelta(t, 0.4, brain.Industrial, 1e-9)
	assert.InDelta(t, 0.2, brain.Medical, 1e-9)

	refined := a.Aggregate(rows, true)
	require.Len(t, refined, 2)
	brain = refined[0]
	assert.True(t, brain.Refined)
	assert.Zero(t, brain.Industrial)
	assert.InDelta(t, 2.0/3.0, brain.Food, 1e-9)
	assert.InDelta(t, 1.0/3.0, brain.Medical, 1e-9)

	iss := refined[1]
	assert.Equal(t, "iss", iss.Dataset)
	assert.Zero(t, iss.Food)
	assert.InDelta(t, 0.8, iss.Industrial, 1e-9)
	assert.InDelta(t, 0.2, iss.PersonalCare, 1e-9)

	for _, dists := range [][]models.DatasetDistribution{raw, refined} {
		for _, d := range dists {
			var sum float64
			for _, l := range models.CategoryLabels {
				sum += d.Weight(l)
			}
			assert.InDelta(t, 1.0, sum, 1e-9, d.Dataset)
		}
	}
}

func TestAggregateZeroWeight(t *testing.T) {
	rows := []models.LabelRow{
		labelRow("pcp", 0, models.LabelFood),
		labelRow("pcp", math.NaN(), models.LabelIndustrial),
		labelRow("food", 0.3, models.LabelFood),
	}
	dists := NewAggregator(DefaultDatasetGroups(), zap.NewNop()).Aggregate(rows, true)
	require.Len(t, dists, 2)

	assert.Equal(t, "food", dists[0].Dataset)
	assert.False(t, dists[0].NoData)
	assert.InDelta(t, 1.0, dists[0].Food, 1e-12)

	pcp := dists[1]
	assert.True(t, pcp.NoData)
	assert.Zero(t, pcp.Total)
	for _, l := range models.CategoryLabels {
		w := pcp.Weight(l)
		assert.False(t, math.IsNaN(w))
		assert.Zero(t, w)
	}
}

func TestAggregateSignedFrequenciesCancel(t *testing.T) {
	rows := []models.LabelRow{
		labelRow("pcp", 0.5, models.LabelFood),
		labelRow("pcp", -0.5, models.LabelMedical),
	}
	dists := NewAggregator(DefaultDatasetGroups(), zap.NewNop()).Aggregate(rows, false)
	require.Len(t, dists, 1)

	pcp := dists[0]
	assert.True(t, pcp.NoData)
	assert.Zero(t, pcp.Total)
	assert.Equal(t, 2, pcp.Rows)
	for _, l := range models.CategoryLabels {
		assert.Zero(t, pcp.Weight(l), "label %s", l)
	}
}

func TestAggregateEmpty(t *testing.T) {
	assert.Empty(t, NewAggregator(DefaultDatasetGroups(), zap.NewNop()).Aggregate(nil, false))
}
