package models

import "time"

// CompoundRecord ist ein harmonisierter Feature-Eintrag eines Datensatzes.
type CompoundRecord struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Dataset      string `json:"dataset" gorm:"uniqueIndex:idx_compound_feature;not null"`
	FeatureID    int    `json:"feature_id" gorm:"column:feature_id;uniqueIndex:idx_compound_feature;not null"`
	CompoundName string `json:"compound_name"`

	// Synonyms ist nil, wenn für das Feature keine Synonymgruppe gefunden wurde (Brain-Datensatz).
	Synonyms           []string `json:"synonyms" gorm:"serializer:json;type:jsonb"`
	DetectionFrequency float64  `json:"detection_frequency"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (CompoundRecord) TableName() string {
	return "compounds"
}

// HasSynonyms meldet, ob der Datensatz an Folgeschritten (z.B. Text-Retrieval) teilnehmen kann.
func (c CompoundRecord) HasSynonyms() bool {
	return len(c.Synonyms) > 0
}
