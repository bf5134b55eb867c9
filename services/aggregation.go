package services

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"compound-harmonizer/models"
)

// DatasetGroup bestimmt, welche Verfeinerungsregel für einen Datensatz gilt.
type DatasetGroup string

const (
	GroupBiospecimen DatasetGroup = "biospecimen"
	GroupSynthetic   DatasetGroup = "synthetic"
	// GroupUnknown wird bei der Verfeinerung unverändert durchgereicht.
	GroupUnknown DatasetGroup = "unknown"
)

// DatasetGroups ordnet Datensätze einer Gruppe zu.
type DatasetGroups struct {
	Biospecimen []string
	Synthetic   []string
}

func DefaultDatasetGroups() DatasetGroups {
	return DatasetGroups{
		Biospecimen: []string{"brain", "feces", "plasma", "food", "mouse", "dust"},
		Synthetic:   []string{"iss", "pcp"},
	}
}

// GroupOf liefert die Gruppe eines Datensatzes.
func (g DatasetGroups) GroupOf(dataset string) DatasetGroup {
	for _, d := range g.Biospecimen {
		if d == dataset {
			return GroupBiospecimen
		}
	}
	for _, d := range g.Synthetic {
		if d == dataset {
			return GroupSynthetic
		}
	}
	return GroupUnknown
}

// Refine wendet die Vorrangregel der Gruppe an und gibt eine neue Zeile zurück; row bleibt unverändert.
func Refine(row models.LabelRow, group DatasetGroup) models.LabelRow {
	out := row
	out.Labels = row.Labels.Clone()
	switch group {
	case GroupBiospecimen:
		if out.Labels.Has(models.LabelFood) || out.Labels.Has(models.LabelEndogenous) {
			delete(out.Labels, models.LabelIndustrial)
			delete(out.Labels, models.LabelPersonalCare)
			delete(out.Labels, models.LabelMedical)
		}
	case GroupSynthetic:
		if out.Labels.Has(models.LabelIndustrial) || out.Labels.Has(models.LabelPersonalCare) {
			delete(out.Labels, models.LabelFood)
			delete(out.Labels, models.LabelEndogenous)
			delete(out.Labels, models.LabelMedical)
		}
	}
	return out
}

// Aggregator gewichtet Labels mit der Detektionsfrequenz und normalisiert je Datensatz.
type Aggregator struct {
	groups DatasetGroups
	logger *zap.Logger
}

func NewAggregator(groups DatasetGroups, logger *zap.Logger) *Aggregator {
	return &Aggregator{groups: groups, logger: logger}
}

// Aggregate liefert eine Verteilung pro Datensatz, sortiert nach Namen. Summiert ein Datensatz zu 0,
// sind alle Gewichte 0 und NoData ist gesetzt.
func (a *Aggregator) Aggregate(rows []models.LabelRow, refine bool) []models.DatasetDistribution {
	sums := make(map[string]*models.DatasetDistribution)
	for _, row := range rows {
		if refine {
			row = Refine(row, a.groups.GroupOf(row.Dataset))
		}
		d, ok := sums[row.Dataset]
		if !ok {
			d = &models.DatasetDistribution{Dataset: row.Dataset, Refined: refine}
			sums[row.Dataset] = d
		}
		d.Rows++

		freq := row.DetectionFrequency
		if math.IsNaN(freq) || math.IsInf(freq, 0) {
			freq = 0
		}
		for _, l := range models.CategoryLabels {
			d.SetWeight(l, d.Weight(l)+float64(row.Indicator(l))*freq)
		}
	}

	out := make([]models.DatasetDistribution, 0, len(sums))
	for _, d := range sums {
		var total float64
		for _, l := range models.CategoryLabels {
			total += d.Weight(l)
		}
		d.Total = total
		if total == 0 {
			// Bei vorzeichenbehafteten Frequenzen können sich Gewichte gegenseitig aufheben.
			for _, l := range models.CategoryLabels {
				d.SetWeight(l, 0)
			}
			d.NoData = true
			a.logger.Warn("Datensatz ohne Gewicht, Verteilung leer",
				zap.String("dataset", d.Dataset),
				zap.Int("rows", d.Rows),
				zap.Bool("refined", refine))
		} else {
			for _, l := range models.CategoryLabels {
				d.SetWeight(l, d.Weight(l)/total)
			}
		}
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Dataset < out[j].Dataset })
	return out
}
