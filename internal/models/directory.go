package models

// Worker is a field employee. Records are owned by the identity service.
type Worker struct {
	ID       string `gorm:"primaryKey;size:64" json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Role     string `json:"role" yaml:"role"`
	APIToken string `gorm:"uniqueIndex;size:128" json:"-" yaml:"token"`
}

func (Worker) TableName() string {
	return "workers"
}

type Route struct {
	ID   string `gorm:"primaryKey;size:64" json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

func (Route) TableName() string {
	return "routes"
}

type Vehicle struct {
	ID    string `gorm:"primaryKey;size:64" json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Plate string `json:"plate" yaml:"plate"`
}

func (Vehicle) TableName() string {
	return "vehicles"
}
