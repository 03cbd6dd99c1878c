package artifact

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/gorm"

	"dmvault/pkg/db"
)

const backupColumns = `id, equipment, designation, serial_number, client, supplier,
	backup_date, comment, status, file_name, file_type, file_date, uploaded_at`

const softwareColumns = `id, device_type, device_model, version, description,
	file_name, file_type, added_at`

// Repo owns CRUD against the metadata store for both record kinds. Writes go
// through gorm, reads through pgx.
type Repo struct {
	pool *pgxpool.Pool
	orm  *gorm.DB
}

// NewRepo wires a Repo over the shared pool and ORM handles.
func NewRepo(pool *pgxpool.Pool, orm *gorm.DB) (*Repo, error) {
	if pool == nil {
		return nil, errors.New("pgx pool is required")
	}
	if orm == nil {
		return nil, errors.New("orm handle is required")
	}
	return &Repo{pool: pool, orm: orm}, nil
}

// InsertBackup persists a backup row and returns its assigned id. A
// *ValidationError means no row was created.
func (r *Repo) InsertBackup(ctx context.Context, b Backup) (int64, error) {
	if verr := ValidateBackup(b); verr != nil {
		return 0, verr
	}

	model := backupModelFrom(b)
	if err := r.orm.WithContext(ctx).Create(&model).Error; err != nil {
		return 0, fmt.Errorf("insert backup: %w", err)
	}
	return model.ID, nil
}

// InsertSoftware persists a software row and returns its assigned id.
func (r *Repo) InsertSoftware(ctx context.Context, sw Software) (int64, error) {
	if verr := ValidateSoftware(sw); verr != nil {
		return 0, verr
	}

	model := softwareModelFrom(sw)
	if err := r.orm.WithContext(ctx).Create(&model).Error; err != nil {
		return 0, fmt.Errorf("insert software: %w", err)
	}
	return model.ID, nil
}

// FindBackup returns the backup row for id, or ErrNotFound.
func (r *Repo) FindBackup(ctx context.Context, id int64) (Backup, error) {
	var b Backup
	err := db.Get(ctx, r.pool, &b, `SELECT `+backupColumns+` FROM backups WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Backup{}, ErrNotFound
		}
		return Backup{}, fmt.Errorf("find backup %d: %w", id, err)
	}
	return b, nil
}

// FindSoftware returns the software row for id, or ErrNotFound.
func (r *Repo) FindSoftware(ctx context.Context, id int64) (Software, error) {
	var sw Software
	err := db.Get(ctx, r.pool, &sw, `SELECT `+softwareColumns+` FROM device_software WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Software{}, ErrNotFound
		}
		return Software{}, fmt.Errorf("find software %d: %w", id, err)
	}
	return sw, nil
}

// ListBackups returns every backup row in display order: equipment then
// designation ascending, newest upload first, id as the tiebreak.
func (r *Repo) ListBackups(ctx context.Context) ([]Backup, error) {
	var out []Backup
	err := db.Select(ctx, r.pool, &out,
		`SELECT `+backupColumns+` FROM backups
		 ORDER BY equipment ASC, designation ASC, uploaded_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	return out, nil
}

// ListSoftware returns every software row in display order: device type then
// model ascending, newest entry first, id as the tiebreak.
func (r *Repo) ListSoftware(ctx context.Context) ([]Software, error) {
	var out []Software
	err := db.Select(ctx, r.pool, &out,
		`SELECT `+softwareColumns+` FROM device_software
		 ORDER BY device_type ASC, device_model ASC, added_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list software: %w", err)
	}
	return out, nil
}

// DeleteBackup removes the backup row for id. Deleting an id that does not
// exist returns false, not an error.
func (r *Repo) DeleteBackup(ctx context.Context, id int64) (bool, error) {
	res := r.orm.WithContext(ctx).Delete(&backupModel{}, id)
	if res.Error != nil {
		return false, fmt.Errorf("delete backup %d: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// DeleteSoftware removes the software row for id.
func (r *Repo) DeleteSoftware(ctx context.Context, id int64) (bool, error) {
	res := r.orm.WithContext(ctx).Delete(&softwareModel{}, id)
	if res.Error != nil {
		return false, fmt.Errorf("delete software %d: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}
