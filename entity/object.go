package entity

import "time"

// Object is a physical file or resource tracked by the registry.
type Object struct {
	ID                uint              `gorm:"primaryKey;column:id" json:"id"`
	UUID              string            `gorm:"column:uuid;size:36;index" json:"uuid"`
	Description       *string           `gorm:"column:description;type:text" json:"description"`
	StorageLocationID *uint             `gorm:"column:storage_location_id" json:"storage_location"`
	StorageLocation   *StorageLocation  `gorm:"foreignKey:StorageLocationID" json:"-"`
	FileTypeID        *uint             `gorm:"column:file_type_id" json:"file_type"`
	FileType          *FileType         `gorm:"foreignKey:FileTypeID" json:"-"`
	Authors           []Author          `gorm:"many2many:object_authors;" json:"-"`
	Licences          []Licence         `gorm:"foreignKey:ObjectID" json:"-"`
	Components        []ObjectComponent `gorm:"foreignKey:ObjectID" json:"-"`
	LastUpdated       time.Time         `gorm:"column:last_updated;autoUpdateTime" json:"last_updated"`
	UpdatedByID       uint              `gorm:"column:updated_by_id" json:"updated_by"`
}

func (Object) TableName() string {
	return "objects"
}

// WholeObjectComponentName is the name of the component standing for the entire file.
const WholeObjectComponentName = "whole_object"

// ObjectComponent is a named slice of an Object, or the whole_object component.
type ObjectComponent struct {
	ID          uint      `gorm:"primaryKey;column:id" json:"id"`
	ObjectID    uint      `gorm:"column:object_id;index;not null" json:"object"`
	Name        string    `gorm:"column:name;size:255;not null" json:"name"`
	WholeObject bool      `gorm:"column:whole_object;default:false" json:"whole_object"`
	Description *string   `gorm:"column:description;type:text" json:"description"`
	InputsOf    []CodeRun `gorm:"many2many:code_run_inputs;joinForeignKey:ObjectComponentID;joinReferences:CodeRunID" json:"-"`
	OutputsOf   []CodeRun `gorm:"many2many:code_run_outputs;joinForeignKey:ObjectComponentID;joinReferences:CodeRunID" json:"-"`
	LastUpdated time.Time `gorm:"column:last_updated;autoUpdateTime" json:"last_updated"`
	UpdatedByID uint      `gorm:"column:updated_by_id" json:"updated_by"`
}

func (ObjectComponent) TableName() string {
	return "object_components"
}

// CodeRepoRelease describes a released version of a code repository Object.
type CodeRepoRelease struct {
	ID          uint      `gorm:"primaryKey;column:id" json:"id"`
	ObjectID    uint      `gorm:"column:object_id;uniqueIndex;not null" json:"object"`
	Name        string    `gorm:"column:name;size:255;not null" json:"name"`
	Version     string    `gorm:"column:version;size:255;not null" json:"version"`
	Website     *string   `gorm:"column:website;size:1024" json:"website"`
	LastUpdated time.Time `gorm:"column:last_updated;autoUpdateTime" json:"last_updated"`
	UpdatedByID uint      `gorm:"column:updated_by_id" json:"updated_by"`
}

func (CodeRepoRelease) TableName() string {
	return "code_repo_releases"
}
