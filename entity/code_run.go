package entity

import "time"

// CodeRun is one execution of an analysis or model.
type CodeRun struct {
	ID                 uint              `gorm:"primaryKey;column:id" json:"id"`
	UUID               string            `gorm:"column:uuid;size:36;uniqueIndex" json:"uuid"`
	RunDate            time.Time         `gorm:"column:run_date;not null" json:"run_date"`
	Description        *string           `gorm:"column:description;type:text" json:"description"`
	CodeRepoID         *uint             `gorm:"column:code_repo_id" json:"code_repo"`
	ModelConfigID      *uint             `gorm:"column:model_config_id" json:"model_config"`
	SubmissionScriptID uint              `gorm:"column:submission_script_id;not null" json:"submission_script"`
	Inputs             []ObjectComponent `gorm:"many2many:code_run_inputs;joinForeignKey:CodeRunID;joinReferences:ObjectComponentID" json:"-"`
	Outputs            []ObjectComponent `gorm:"many2many:code_run_outputs;joinForeignKey:CodeRunID;joinReferences:ObjectComponentID" json:"-"`
	LastUpdated        time.Time         `gorm:"column:last_updated;autoUpdateTime" json:"last_updated"`
	UpdatedByID        uint              `gorm:"column:updated_by_id;not null" json:"updated_by"`
}

func (CodeRun) TableName() string {
	return "code_runs"
}
