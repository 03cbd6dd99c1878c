package migrations

import (
	"context"
	"database/sql"
	"time"

	"github.com/pressly/goose/v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func init() {
	goose.AddMigrationContext(upInit, downInit)
}

// Backup mirrors internal/artifact's backup row. Migration models are kept
// separate so schema history stays frozen as the application models evolve.
type Backup struct {
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

func (Backup) TableName() string { return "backups" }

type DeviceSoftware struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	DeviceType  string    `gorm:"type:text;not null"`
	DeviceModel string    `gorm:"type:text;not null"`
	Version     string    `gorm:"type:text;not null"`
	Description string    `gorm:"type:text"`
	FileName    string    `gorm:"type:text;not null"`
	FileType    string    `gorm:"type:text"`
	AddedAt     time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
}

func (DeviceSoftware) TableName() string { return "device_software" }

func upInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).AutoMigrate(
		&Backup{},
		&DeviceSoftware{},
	)
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Migrator().DropTable(
		&DeviceSoftware{},
		&Backup{},
	)
}
