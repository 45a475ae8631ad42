package entity

import (
	"strings"
	"time"
)

type StorageRoot struct {
	ID          uint      `gorm:"primaryKey;column:id" json:"id"`
	Root        string    `gorm:"column:root;size:1024;not null" json:"root"`
	Local       bool      `gorm:"column:local;default:false" json:"local"`
	LastUpdated time.Time `gorm:"column:last_updated;autoUpdateTime" json:"last_updated"`
	UpdatedByID uint      `gorm:"column:updated_by_id" json:"updated_by"`
}

func (StorageRoot) TableName() string {
	return "storage_roots"
}

// StorageLocation is a path and content hash relative to a StorageRoot.
type StorageLocation struct {
	ID            uint         `gorm:"primaryKey;column:id" json:"id"`
	Path          string       `gorm:"column:path;size:1024;not null" json:"path"`
	Hash          string       `gorm:"column:hash;size:1024" json:"hash"`
	Public        bool         `gorm:"column:public;not null" json:"public"`
	StorageRootID uint         `gorm:"column:storage_root_id;not null" json:"storage_root"`
	StorageRoot   *StorageRoot `gorm:"foreignKey:StorageRootID" json:"-"`
	LastUpdated   time.Time    `gorm:"column:last_updated;autoUpdateTime" json:"last_updated"`
	UpdatedByID   uint         `gorm:"column:updated_by_id" json:"updated_by"`
}

func (StorageLocation) TableName() string {
	return "storage_locations"
}

// URI joins the storage root and the path. Without a loaded root only the path is returned.
func (l *StorageLocation) URI() string {
	if l == nil {
		return ""
	}
	if l.StorageRoot == nil {
		return l.Path
	}
	root := l.StorageRoot.Root
	p := l.Path
	if strings.HasSuffix(root, "/") && strings.HasPrefix(p, "/") {
		p = strings.TrimPrefix(p, "/")
	}
	return root + p
}

func (l *StorageLocation) String() string {
	return l.URI()
}

type FileType struct {
	ID        uint   `gorm:"primaryKey;column:id" json:"id"`
	Name      string `gorm:"column:name;size:255;not null" json:"name"`
	Extension string `gorm:"column:extension;size:64;not null" json:"extension"`
}

func (FileType) TableName() string {
	return "file_types"
}
