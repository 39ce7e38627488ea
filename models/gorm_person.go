package models

// Person is an enrolled identity that has been recognised at least once.
// It corresponds to the 'people' table.
type Person struct {
	ID   uint   `gorm:"column:person_id;primaryKey;autoIncrement" json:"person_id"`
	Name string `gorm:"size:255;not null;uniqueIndex" json:"name"`
}

// TableName explicitly sets the table name for GORM.
func (Person) TableName() string {
	return "people"
}
