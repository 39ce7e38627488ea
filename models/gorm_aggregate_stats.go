package models

import "time"

// ModelAggregateStats holds the means over every RecognitionTest of a model as of
// CalculationTimestamp. It corresponds to the 'model_aggregate_stats' table.
type ModelAggregateStats struct {
	ModelID                uint      `gorm:"primaryKey;autoIncrement:false" json:"model_id"`
	CalculationTimestamp   time.Time `gorm:"not null" json:"calculation_timestamp"`
	TotalTests             int       `gorm:"not null" json:"total_tests"`
	OverallRecognitionRate float64   `gorm:"not null" json:"overall_recognition_rate"`
	OverallProcessingTime  float64   `gorm:"not null" json:"overall_processing_time"`
	OverallConfidence      float64   `gorm:"not null" json:"overall_confidence"`

	Model *Model `gorm:"foreignKey:ModelID;references:ID" json:"model,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (ModelAggregateStats) TableName() string {
	return "model_aggregate_stats"
}
