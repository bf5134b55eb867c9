package models

import "time"

// DatasetDistribution ist die normalisierte Label-Verteilung eines Datensatzes.
type DatasetDistribution struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Dataset string `json:"dataset" gorm:"uniqueIndex:idx_distribution_run;not null"`
	Refined bool   `json:"refined" gorm:"uniqueIndex:idx_distribution_run"`

	Industrial   float64 `json:"industrial"`
	PersonalCare float64 `json:"personal_care"`
	Food         float64 `json:"food"`
	Medical      float64 `json:"medical"`
	Endogenous   float64 `json:"endogenous"`

	// Total ist die Summe der gewichteten Labels vor der Normalisierung.
	Total float64 `json:"total"`
	// NoData ist gesetzt, wenn Total 0 ist; alle Gewichte sind dann 0.
	NoData bool `json:"no_data"`
	Rows   int  `json:"rows"`
}

func (DatasetDistribution) TableName() string {
	return "dataset_distributions"
}

// Weight liefert das Gewicht eines Labels.
func (d DatasetDistribution) Weight(l Label) float64 {
	switch l {
	case LabelIndustrial:
		return d.Industrial
	case LabelPersonalCare:
		return d.PersonalCare
	case LabelFood:
		return d.Food
	case LabelMedical:
		return d.Medical
	case LabelEndogenous:
		return d.Endogenous
	}
	return 0
}

// SetWeight setzt das Gewicht eines Labels; INFO und Unbekanntes werden ignoriert.
func (d *DatasetDistribution) SetWeight(l Label, w float64) {
	switch l {
	case LabelIndustrial:
		d.Industrial = w
	case LabelPersonalCare:
		d.PersonalCare = w
	case LabelFood:
		d.Food = w
	case LabelMedical:
		d.Medical = w
	case LabelEndogenous:
		d.Endogenous = w
	}
}
