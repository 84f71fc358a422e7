package models

// Document is one named blob in the key-value store backing the wall.
// It corresponds to the 'documents' table.
type Document struct {
	Key       string `gorm:"column:doc_key;primaryKey" json:"key"`
	Body      []byte `gorm:"not null" json:"-"`
	UpdatedAt int64  `gorm:"not null;autoUpdateTime:milli" json:"updated_at"` // Unix timestamp, milliseconds
}

// TableName explicitly sets the table name for GORM.
func (Document) TableName() string {
	return "documents"
}
