package models

import "time"

// RecognitionTest is the summary of one successful evaluation session.
// It corresponds to the 'recognition_tests' table. Rows are never updated.
type RecognitionTest struct {
	ID                     uint      `gorm:"column:test_id;primaryKey;autoIncrement" json:"test_id"`
	ModelID                uint      `gorm:"not null;index" json:"model_id"`
	PersonID               uint      `gorm:"not null;index" json:"person_id"`
	Timestamp              time.Time `gorm:"not null;index" json:"timestamp"`
	TotalAttempts          int       `gorm:"not null" json:"total_attempts"`
	SuccessfulRecognitions int       `gorm:"not null" json:"successful_recognitions"`
	AvgConfidence          float64   `gorm:"not null" json:"avg_confidence"`
	AvgProcessingTime      float64   `gorm:"not null" json:"avg_processing_time"`  // seconds
	AvgRecognitionRate     float64   `gorm:"not null" json:"avg_recognition_rate"` // percent

	Model  *Model  `gorm:"foreignKey:ModelID;references:ID" json:"model,omitempty"`
	Person *Person `gorm:"foreignKey:PersonID;references:ID" json:"person,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (RecognitionTest) TableName() string {
	return "recognition_tests"
}
