package models

import "time"

// OwnerType names the kind of entity a comment or attachment belongs to.
type OwnerType string

const (
	OwnerTask OwnerType = "task"
	OwnerUser OwnerType = "user"
)

type Comment struct {
	ID        uint64    `gorm:"primarykey" json:"id"`
	OwnerType OwnerType `gorm:"type:varchar(10);index:idx_comments_owner;not null" json:"owner_type"`
	OwnerID   uint64    `gorm:"index:idx_comments_owner;not null" json:"owner_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Attachment struct {
	ID          uint64    `gorm:"primarykey" json:"id"`
	OwnerType   OwnerType `gorm:"type:varchar(10);index:idx_attachments_owner;not null" json:"owner_type"`
	OwnerID     uint64    `gorm:"index:idx_attachments_owner;not null" json:"owner_id"`
	FilePath    string    `gorm:"type:varchar(512);not null" json:"file_path"`
	FileName    string    `gorm:"type:varchar(255)" json:"file_name"`
	ContentType string    `gorm:"type:varchar(100)" json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
