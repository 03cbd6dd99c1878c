package artifact

import (
	"time"
)

type backupModel struct {
	ID           int64      `gorm:"primaryKey;autoIncrement"`
	Equipment    string     `gorm:"type:text;not null"`
	Designation  string     `gorm:"type:text;not null"`
	SerialNumber string     `gorm:"type:text"`
	Client       string     `gorm:"type:text;not null"`
	Supplier     string     `gorm:"type:text"`
	BackupDate   time.Time  `gorm:"type:date;not null"`
	Comment      string     `gorm:"type:text"`
	Status       string     `gorm:"type:text;not null"`
	FileName     string     `gorm:"type:text;not null"`
	FileType     string     `gorm:"type:text"`
	FileDate     *time.Time `gorm:"type:date"`
	UploadedAt   time.Time  `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
}

func (backupModel) TableName() string { return "backups" }

func backupModelFrom(b Backup) backupModel {
	return backupModel{
		Equipment:    b.Equipment,
		Designation:  b.Designation,
		SerialNumber: b.SerialNumber,
		Client:       b.Client,
		Supplier:     b.Supplier,
		BackupDate:   b.BackupDate,
		Comment:      b.Comment,
		Status:       b.Status,
		FileName:     b.FileName,
		FileType:     b.FileType,
		FileDate:     b.FileDate,
	}
}

type softwareModel struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	DeviceType  string    `gorm:"type:text;not null"`
	DeviceModel string    `gorm:"type:text;not null"`
	Version     string    `gorm:"type:text;not null"`
	Description string    `gorm:"type:text"`
	FileName    string    `gorm:"type:text;not null"`
	FileType    string    `gorm:"type:text"`
	AddedAt     time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
}

func (softwareModel) TableName() string { return "device_software" }

func softwareModelFrom(sw Software) softwareModel {
	return softwareModel{
		DeviceType:  sw.DeviceType,
		DeviceModel: sw.DeviceModel,
		Version:     sw.Version,
		Description: sw.Description,
		FileName:    sw.FileName,
		FileType:    sw.FileType,
	}
}
