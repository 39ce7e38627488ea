package models

import "time"

// FailedTest counts the sessions of a model that ended without a confirmed
// recognition. It corresponds to the 'failed_tests' table.
type FailedTest struct {
	ModelID     uint      `gorm:"primaryKey;autoIncrement:false" json:"model_id"`
	Count       int64     `gorm:"not null;default:0" json:"count"`
	LastUpdated time.Time `gorm:"not null" json:"last_updated"`

	Model *Model `gorm:"foreignKey:ModelID;references:ID" json:"model,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (FailedTest) TableName() string {
	return "failed_tests"
}
