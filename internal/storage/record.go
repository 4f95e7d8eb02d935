package storage

import "time"

// Record is one executed calculation. Rows are written once and never
// updated or deleted.
type Record struct {
	ID           uint      `gorm:"column:id;primaryKey"`
	Operation    string    `gorm:"column:operation;type:varchar(32);index;not null"`
	Operand1     *float64  `gorm:"column:operand1;type:double precision"`
	Operand2     *float64  `gorm:"column:operand2;type:double precision"`
	OperandsList *string   `gorm:"column:operands_list;type:text"` // JSON array, average/median only
	Result       float64   `gorm:"column:result;type:double precision;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;not null;index"`
}

func (Record) TableName() string { return "calculations" }
