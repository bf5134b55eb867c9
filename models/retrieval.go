package models

import "time"

const (
	// NoResults ist der Text-Sentinel eines Retrievers ohne Treffer.
	NoResults = "NO_RESULTS"
	// NoSourceFound markiert ein Feature, für das keine Quelle Text geliefert hat.
	NoSourceFound = "no source found"
)

// Retrieval speichert den für ein Feature gefundenen Referenztext.
type Retrieval struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Dataset   string `json:"dataset" gorm:"uniqueIndex:idx_retrieval_feature;not null"`
	FeatureID int    `json:"feature_id" gorm:"column:feature_id;uniqueIndex:idx_retrieval_feature;not null"`

	UsedName string `json:"used_name,omitempty"`
	Source   string `json:"source" gorm:"index"`
	Text     string `json:"text,omitempty" gorm:"type:text"`
	NumWords int    `json:"num_words"`
}

func (Retrieval) TableName() string { return "retrievals" }

// Found meldet, ob tatsächlich Text gefunden wurde.
func (r Retrieval) Found() bool {
	return r.Source != "" && r.Source != NoSourceFound
}
