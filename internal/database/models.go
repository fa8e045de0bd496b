package database

import "time"

// User 表示访客转正后的注册账号。
type User struct {
	ID           string `gorm:"primaryKey;size:64"`
	Email        string `gorm:"uniqueIndex;size:255"`
	PasswordHash string `gorm:"size:255"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Resumes      []Resume `gorm:"foreignKey:UserID"`
}

// Resume 表示一份简历聚合根。
// 所有权恰为二选一：注册用户（UserID）或访客会话（GuestSessionID）。
// 访客简历转正后 IsGuest 置 false、ExpiresAt 清空，但保留 GuestSessionID 供审计。
type Resume struct {
	ID             string `gorm:"primaryKey;size:64"`
	Title          string `gorm:"size:255"`
	DetailCount    int
	CoverImagePath string     `gorm:"size:512"`
	UserID         *string    `gorm:"size:64;index"`
	GuestSessionID *string    `gorm:"size:64;index"`
	IsGuest        bool       `gorm:"default:false"`
	CreatedIP      string     `gorm:"size:64"`
	ExpiresAt      *time.Time `gorm:"index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Details []ResumeDetail `gorm:"foreignKey:ResumeID;constraint:OnDelete:CASCADE"`
}

// ResumeDetail 表示简历的一个语言/内容变体。
// 同一简历下至多一个变体 IsDefault 为 true；
// 简历封面图始终跟随当前默认变体的缩略图。
type ResumeDetail struct {
	ID            string `gorm:"primaryKey;size:64"`
	ResumeID      string `gorm:"size:64;index;not null"`
	Name          string `gorm:"size:255"`
	Language      string `gorm:"size:16"`
	Content       string `gorm:"type:text"`
	ThumbnailPath string `gorm:"size:512"`
	IsDefault     bool   `gorm:"default:false"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// GuestSession 表示匿名访客会话，通过客户端 Cookie 携带。
// 过期（ExpiresAt < now）或已转正（IsConverted）的会话不再接受写入。
type GuestSession struct {
	ID              string `gorm:"primaryKey;size:64"`
	IPAddress       string `gorm:"size:64;index"`
	UserAgent       string `gorm:"size:512"`
	ResumeCount     int    `gorm:"default:0"`
	ExpiresAt       time.Time
	IsConverted     bool    `gorm:"default:false"`
	ConvertedUserID *string `gorm:"size:64"`
	CreatedAt       time.Time `gorm:"index"`
	UpdatedAt       time.Time
}
