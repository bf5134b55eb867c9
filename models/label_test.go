package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelSet(t *testing.T) {
	s := NewLabelSet(LabelMedical, LabelFood, LabelMedical)
	assert.Len(t, s, 2)
	assert.True(t, s.Has(LabelFood))
	assert.False(t, s.IsInfo())
	assert.Equal(t, 1, s.Indicator(LabelMedical))
	assert.Equal(t, 0, s.Indicator(LabelIndustrial))
	assert.Equal(t, "FOOD, MEDICAL", s.String())

	c := s.Clone()
	delete(c, LabelFood)
	assert.True(t, s.Has(LabelFood))
	assert.False(t, s.Equal(c))
	assert.True(t, s.Equal(NewLabelSet(LabelFood, LabelMedical)))
}

func TestLabelSetOrder(t *testing.T) {
	s := NewLabelSet(Label("ZZZ"), LabelInfo, LabelEndogenous, LabelIndustrial)
	assert.Equal(t, []Label{LabelIndustrial, LabelEndogenous, LabelInfo, Label("ZZZ")}, s.Labels())
	assert.True(t, s.IsInfo())

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `["INDUSTRIAL","ENDOGENOUS","INFO","ZZZ"]`, string(raw))

	raw, err = json.Marshal(LabelSet(nil))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}

func TestDistributionWeights(t *testing.T) {
	var d DatasetDistribution
	for i, l := range CategoryLabels {
		d.SetWeight(l, float64(i+1))
	}
	d.SetWeight(LabelInfo, 99)
	for i, l := range CategoryLabels {
		assert.Equal(t, float64(i+1), d.Weight(l))
	}
	assert.Zero(t, d.Weight(LabelInfo))
}

func TestRecordHelpers(t *testing.T) {
	assert.False(t, CompoundRecord{}.HasSynonyms())
	assert.True(t, CompoundRecord{Synonyms: []string{"Valine"}}.HasSynonyms())
	assert.False(t, Retrieval{Source: NoSourceFound}.Found())
	assert.True(t, Retrieval{Source: "WIKIPEDIA"}.Found())
	assert.Equal(t, 1, LabelRow{Labels: NewLabelSet(LabelFood)}.Indicator(LabelFood))
}
