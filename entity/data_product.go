package entity

import "time"

type Namespace struct {
	ID       uint    `gorm:"primaryKey;column:id" json:"id"`
	Name     string  `gorm:"column:name;size:255;uniqueIndex;not null" json:"name"`
	FullName *string `gorm:"column:full_name;size:1024" json:"full_name"`
	Website  *string `gorm:"column:website;size:1024" json:"website"`
}

func (Namespace) TableName() string {
	return "namespaces"
}

// DataProduct is a namespaced, versioned dataset wrapping exactly one Object.
type DataProduct struct {
	ID          uint       `gorm:"primaryKey;column:id" json:"id"`
	ObjectID    uint       `gorm:"column:object_id;index;not null" json:"object"`
	NamespaceID uint       `gorm:"column:namespace_id;uniqueIndex:uniq_data_product;not null" json:"namespace"`
	Namespace   *Namespace `gorm:"foreignKey:NamespaceID" json:"-"`
	Name        string     `gorm:"column:name;size:255;uniqueIndex:uniq_data_product;not null" json:"name"`
	Version     string     `gorm:"column:version;size:64;uniqueIndex:uniq_data_product;not null" json:"version"`
	LastUpdated time.Time  `gorm:"column:last_updated;autoUpdateTime" json:"last_updated"`
	UpdatedByID uint       `gorm:"column:updated_by_id" json:"updated_by"`
}

func (DataProduct) TableName() string {
	return "data_products"
}

// NamespaceName returns the namespace name, or "" when the namespace is not loaded.
func (d *DataProduct) NamespaceName() string {
	if d == nil || d.Namespace == nil {
		return ""
	}
	return d.Namespace.Name
}

// ExternalObject marks a DataProduct as sourced from (primary) or extracted from (supplement) outside the pipeline.
type ExternalObject struct {
	ID                      uint             `gorm:"primaryKey;column:id" json:"id"`
	DataProductID           uint             `gorm:"column:data_product_id;uniqueIndex;not null" json:"data_product"`
	Title                   string           `gorm:"column:title;size:255;not null" json:"title"`
	ReleaseDate             time.Time        `gorm:"column:release_date" json:"release_date"`
	Identifier              *string          `gorm:"column:identifier;size:1024" json:"identifier"`
	AlternateIdentifier     *string          `gorm:"column:alternate_identifier;size:255" json:"alternate_identifier"`
	AlternateIdentifierType *string          `gorm:"column:alternate_identifier_type;size:255" json:"alternate_identifier_type"`
	Description             *string          `gorm:"column:description;type:text" json:"description"`
	OriginalStoreID         *uint            `gorm:"column:original_store_id" json:"original_store"`
	OriginalStore           *StorageLocation `gorm:"foreignKey:OriginalStoreID" json:"-"`
	PrimaryNotSupplement    bool             `gorm:"column:primary_not_supplement;not null" json:"primary_not_supplement"`
	LastUpdated             time.Time        `gorm:"column:last_updated;autoUpdateTime" json:"last_updated"`
	UpdatedByID             uint             `gorm:"column:updated_by_id" json:"updated_by"`
}

func (ExternalObject) TableName() string {
	return "external_objects"
}

// SourceIdentifier is the identifier, or the alternate identifier when no identifier is set.
func (e *ExternalObject) SourceIdentifier() string {
	if e == nil {
		return ""
	}
	if e.Identifier != nil && *e.Identifier != "" {
		return *e.Identifier
	}
	if e.AlternateIdentifier != nil {
		return *e.AlternateIdentifier
	}
	return ""
}
