package person

import "time"

// Status は職員の在籍状態を表します。
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Person は記録の対象となる職員です。
type Person struct {
	ID         string
	FileNumber string
	Name       string
	Email      string
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
