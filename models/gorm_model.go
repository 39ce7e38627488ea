package models

// Model is one of the embedding models under evaluation.
// It corresponds to the 'models' table.
type Model struct {
	ID   uint   `gorm:"column:model_id;primaryKey;autoIncrement" json:"model_id"`
	Name string `gorm:"column:model_name;size:64;not null;uniqueIndex" json:"model_name"`
}

// TableName explicitly sets the table name for GORM.
func (Model) TableName() string {
	return "models"
}
