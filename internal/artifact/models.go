package artifact

import (
	"time"
)

// Kind discriminates the two record variants sharing the consistency
// protocol.
type Kind string

const (
	KindBackup   Kind = "backup"
	KindSoftware Kind = "software"
)

// Backup is the persisted metadata row for a device backup payload.
type Backup struct {
	ID           int64      `json:"id" db:"id"`
	Equipment    string     `json:"equipment" db:"equipment"`
	Designation  string     `json:"designation" db:"designation"`
	SerialNumber string     `json:"serial_number" db:"serial_number"`
	Client       string     `json:"client" db:"client"`
	Supplier     string     `json:"supplier" db:"supplier"`
	BackupDate   time.Time  `json:"backup_date" db:"backup_date"`
	Comment      string     `json:"comment" db:"comment"`
	Status       string     `json:"status" db:"status"`
	FileName     string     `json:"file_name" db:"file_name"`
	FileType     string     `json:"file_type" db:"file_type"`
	FileDate     *time.Time `json:"file_date" db:"file_date"`
	UploadedAt   time.Time  `json:"uploaded_at" db:"uploaded_at"`
}

// Software is the persisted metadata row for a device-software payload. The
// DeviceType/DeviceModel pair must be a member of the device catalogue.
type Software struct {
	ID          int64     `json:"id" db:"id"`
	DeviceType  string    `json:"device_type" db:"device_type"`
	DeviceModel string    `json:"device_model" db:"device_model"`
	Version     string    `json:"version" db:"version"`
	Description string    `json:"description" db:"description"`
	FileName    string    `json:"file_name" db:"file_name"`
	FileType    string    `json:"file_type" db:"file_type"`
	AddedAt     time.Time `json:"added_at" db:"added_at"`
}
