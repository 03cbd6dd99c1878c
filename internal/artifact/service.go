package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"dmvault/internal/catalog"
)

const (
	createdTopic = "dmvault.artifacts.created"
	deletedTopic = "dmvault.artifacts.deleted"

	defaultContentType = "application/octet-stream"
)

// RemoteSession is one scoped connection against the remote file host. Every
// Begin must be paired with Close on all exit paths.
type RemoteSession interface {
	Upload(ctx context.Context, src io.Reader, remoteName string) (bool, error)
	Download(ctx context.Context, remoteName, localPath string) (bool, error)
	Delete(ctx context.Context, remoteName string) (bool, error)
	Close()
}

// RemoteStore hands out sessions, one per logical operation.
type RemoteStore interface {
	Begin() RemoteSession
}

// Repository is the metadata-store port the service orchestrates against.
type Repository interface {
	InsertBackup(ctx context.Context, b Backup) (int64, error)
	InsertSoftware(ctx context.Context, sw Software) (int64, error)
	FindBackup(ctx context.Context, id int64) (Backup, error)
	FindSoftware(ctx context.Context, id int64) (Software, error)
	ListBackups(ctx context.Context) ([]Backup, error)
	ListSoftware(ctx context.Context) ([]Software, error)
	DeleteBackup(ctx context.Context, id int64) (bool, error)
	DeleteSoftware(ctx context.Context, id int64) (bool, error)
}

// Publisher emits lifecycle events. A nil Publisher disables publication.
type Publisher interface {
	Publish(ctx context.Context, subject string, v any) error
}

// Upload carries the payload side of a create request.
type Upload struct {
	FileName    string
	ContentType string
	Content     io.Reader
}

// BackupDraft is the operator-submitted metadata for a backup record.
type BackupDraft struct {
	Equipment    string
	Designation  string
	SerialNumber string
	Client       string
	Supplier     string
	BackupDate   time.Time
	Comment      string
	Status       string
	FileDate     *time.Time
}

// SoftwareDraft is the operator-submitted metadata for a software record.
type SoftwareDraft struct {
	DeviceType  string
	DeviceModel string
	Version     string
	Description string
}

// DeleteResult reports a completed delete. FileRemovalFailed warns that the
// row is gone but the remote object may remain on the file host.
type DeleteResult struct {
	FileRemovalFailed bool `json:"file_removal_failed"`
}

// Download is a payload fetched to a scoped local file. The caller streams
// from Path and must invoke Cleanup on every exit path.
type Download struct {
	Path        string
	FileName    string
	ContentType string
	Size        int64
	Cleanup     func() error
}

// ServiceConfig wires the service's collaborators.
type ServiceConfig struct {
	Repo     Repository
	Backups  RemoteStore
	Software RemoteStore
	Catalog  *catalog.Catalog
	Logger   *log.Logger
	Events   Publisher
	Now      func() time.Time
}

// Service implements the consistency protocol between the remote file store
// and the metadata store: upload-then-insert with a compensating delete,
// select-then-download with guaranteed temp cleanup, and
// select-then-delete-both with a surfaced warning on partial failure.
type Service struct {
	repo     Repository
	backups  RemoteStore
	software RemoteStore
	catalog  *catalog.Catalog
	logger   *log.Logger
	events   Publisher
	now      func() time.Time
}

// NewService validates the configuration and returns a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Repo == nil {
		return nil, errors.New("repository is required")
	}
	if cfg.Backups == nil || cfg.Software == nil {
		return nil, errors.New("remote stores for both record kinds are required")
	}
	if cfg.Catalog == nil {
		cfg.Catalog = catalog.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Service{
		repo:     cfg.Repo,
		backups:  cfg.Backups,
		software: cfg.Software,
		catalog:  cfg.Catalog,
		logger:   cfg.Logger,
		events:   cfg.Events,
		now:      cfg.Now,
	}, nil
}

// CreateBackup runs the create saga for a backup record: validate, upload,
// insert, compensating remote delete when the insert fails.
func (s *Service) CreateBackup(ctx context.Context, draft BackupDraft, up Upload) (int64, error) {
	rec := Backup{
		Equipment:    draft.Equipment,
		Designation:  draft.Designation,
		SerialNumber: draft.SerialNumber,
		Client:       draft.Client,
		Supplier:     draft.Supplier,
		BackupDate:   draft.BackupDate,
		Comment:      draft.Comment,
		Status:       draft.Status,
		FileDate:     draft.FileDate,
	}
	if verr := ValidateBackup(rec); verr != nil {
		return 0, verr
	}

	remoteName, err := s.upload(ctx, s.backups, KindBackup, up)
	if err != nil {
		return 0, err
	}
	rec.FileName = remoteName
	rec.FileType = contentTypeOrDefault(up.ContentType)

	id, err := s.repo.InsertBackup(ctx, rec)
	if err != nil {
		s.compensate(ctx, s.backups, remoteName)
		if _, ok := AsValidation(err); ok {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	s.publish(ctx, createdTopic, map[string]any{
		"kind": KindBackup, "id": id, "file_name": remoteName,
	})
	return id, nil
}

// CreateSoftware runs the create saga for a software record. The device
// type/model pair is checked against the catalogue before any side effect.
func (s *Service) CreateSoftware(ctx context.Context, draft SoftwareDraft, up Upload) (int64, error) {
	rec := Software{
		DeviceType:  draft.DeviceType,
		DeviceModel: draft.DeviceModel,
		Version:     draft.Version,
		Description: draft.Description,
	}
	if verr := s.validateSoftware(rec); verr != nil {
		return 0, verr
	}

	remoteName, err := s.upload(ctx, s.software, KindSoftware, up)
	if err != nil {
		return 0, err
	}
	rec.FileName = remoteName
	rec.FileType = contentTypeOrDefault(up.ContentType)

	id, err := s.repo.InsertSoftware(ctx, rec)
	if err != nil {
		s.compensate(ctx, s.software, remoteName)
		if _, ok := AsValidation(err); ok {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	s.publish(ctx, createdTopic, map[string]any{
		"kind": KindSoftware, "id": id, "file_name": remoteName,
	})
	return id, nil
}

// Download fetches the payload for (kind, id) into a temporary local file.
func (s *Service) Download(ctx context.Context, kind Kind, id int64) (Download, error) {
	fileName, fileType, err := s.fileRef(ctx, kind, id)
	if err != nil {
		return Download{}, err
	}
	if fileName == "" {
		return Download{}, ErrNotFound
	}

	tmp, err := os.CreateTemp("", "dmvault_*")
	if err != nil {
		return Download{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return Download{}, fmt.Errorf("close temp file: %w", err)
	}

	sess := s.storeFor(kind).Begin()
	defer sess.Close()

	ok, err := sess.Download(ctx, fileName, tmpPath)
	if err != nil || !ok {
		_ = os.Remove(tmpPath)
		if err != nil {
			return Download{}, fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
		return Download{}, fmt.Errorf("%w: remote object %s is missing", ErrTransferFailed, fileName)
	}

	info, err := os.Stat(tmpPath)
	if err != nil {
		_ = os.Remove(tmpPath)
		return Download{}, fmt.Errorf("stat downloaded file: %w", err)
	}

	return Download{
		Path:        tmpPath,
		FileName:    fileName,
		ContentType: contentTypeOrDefault(fileType),
		Size:        info.Size(),
		Cleanup:     func() error { return os.Remove(tmpPath) },
	}, nil
}

// Delete removes a record and its remote object. A failed remote delete is
// surfaced as a warning, never as a reason to keep the row; authorization is
// the caller's responsibility.
func (s *Service) Delete(ctx context.Context, kind Kind, id int64) (DeleteResult, error) {
	fileName, _, err := s.fileRef(ctx, kind, id)
	if err != nil {
		return DeleteResult{}, err
	}

	var res DeleteResult
	if fileName != "" {
		sess := s.storeFor(kind).Begin()
		ok, err := sess.Delete(ctx, fileName)
		sess.Close()
		if err != nil || !ok {
			// An orphaned remote object is less harmful than a row
			// that can never be removed; keep going.
			res.FileRemovalFailed = true
			orphanWarningsTotal.Inc()
			s.logger.Printf("WARN remote object %s was not removed (%v)", fileName, err)
		}
	}

	removed, err := s.deleteRow(ctx, kind, id)
	if err != nil {
		return res, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if !removed {
		return res, ErrNotFound
	}

	s.publish(ctx, deletedTopic, map[string]any{
		"kind": kind, "id": id, "file_removal_failed": res.FileRemovalFailed,
	})
	return res, nil
}

// GetBackup returns a single backup record.
func (s *Service) GetBackup(ctx context.Context, id int64) (Backup, error) {
	b, err := s.repo.FindBackup(ctx, id)
	if err != nil {
		return Backup{}, s.storageErr(err)
	}
	return b, nil
}

// GetSoftware returns a single software record.
func (s *Service) GetSoftware(ctx context.Context, id int64) (Software, error) {
	sw, err := s.repo.FindSoftware(ctx, id)
	if err != nil {
		return Software{}, s.storageErr(err)
	}
	return sw, nil
}

// ListBackups returns all backup records in display order.
func (s *Service) ListBackups(ctx context.Context) ([]Backup, error) {
	out, err := s.repo.ListBackups(ctx)
	if err != nil {
		return nil, s.storageErr(err)
	}
	return out, nil
}

// ListSoftware returns all software records in display order.
func (s *Service) ListSoftware(ctx context.Context) ([]Software, error) {
	out, err := s.repo.ListSoftware(ctx)
	if err != nil {
		return nil, s.storageErr(err)
	}
	return out, nil
}

// Catalog exposes the device catalogue backing software validation.
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

func (s *Service) validateSoftware(rec Software) *ValidationError {
	verr := ValidateSoftware(rec)
	var problems []string
	if verr != nil {
		problems = verr.Problems
	}

	if rec.DeviceType != "" {
		switch {
		case !s.catalog.ValidType(rec.DeviceType):
			problems = append(problems, fmt.Sprintf("unknown device type %q", rec.DeviceType))
		case rec.DeviceModel != "" && !s.catalog.Validate(rec.DeviceType, rec.DeviceModel):
			problems = append(problems, fmt.Sprintf("device model %q does not belong to device type %q", rec.DeviceModel, rec.DeviceType))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}

// upload pushes the payload under a generated remote name within one scoped
// session.
func (s *Service) upload(ctx context.Context, store RemoteStore, kind Kind, up Upload) (string, error) {
	sess := store.Begin()
	defer sess.Close()

	remoteName := NewRemoteName(up.FileName, s.now())
	ok, err := sess.Upload(ctx, up.Content, remoteName)
	if err == nil && !ok {
		// A false result means the name is already taken, detected
		// before the payload was consumed, so one retry under a
		// suffixed name is safe. Faults after the transfer started
		// arrive as errors and are never retried.
		remoteName = NewRemoteNameWithSuffix(up.FileName, s.now())
		ok, err = sess.Upload(ctx, up.Content, remoteName)
	}
	if err != nil {
		uploadsTotal.WithLabelValues(string(kind), "error").Inc()
		return "", fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if !ok {
		uploadsTotal.WithLabelValues(string(kind), "refused").Inc()
		return "", fmt.Errorf("%w: remote store refused upload of %s", ErrTransferFailed, remoteName)
	}

	uploadsTotal.WithLabelValues(string(kind), "ok").Inc()
	return remoteName, nil
}

// compensate removes a remote object uploaded by a create whose row insert
// failed. Its own failure is logged and counted, never re-raised: the caller
// reports the original storage error.
func (s *Service) compensate(ctx context.Context, store RemoteStore, remoteName string) {
	sess := store.Begin()
	defer sess.Close()

	ok, err := sess.Delete(ctx, remoteName)
	if err != nil || !ok {
		compensationsTotal.WithLabelValues("failed").Inc()
		s.logger.Printf("WARN compensation left orphaned remote object %s (%v)", remoteName, err)
		return
	}
	compensationsTotal.WithLabelValues("ok").Inc()
}

func (s *Service) fileRef(ctx context.Context, kind Kind, id int64) (fileName, fileType string, err error) {
	switch kind {
	case KindBackup:
		b, err := s.repo.FindBackup(ctx, id)
		if err != nil {
			return "", "", s.storageErr(err)
		}
		return b.FileName, b.FileType, nil
	case KindSoftware:
		sw, err := s.repo.FindSoftware(ctx, id)
		if err != nil {
			return "", "", s.storageErr(err)
		}
		return sw.FileName, sw.FileType, nil
	default:
		return "", "", fmt.Errorf("unknown artifact kind %q", kind)
	}
}

func (s *Service) deleteRow(ctx context.Context, kind Kind, id int64) (bool, error) {
	if kind == KindBackup {
		return s.repo.DeleteBackup(ctx, id)
	}
	return s.repo.DeleteSoftware(ctx, id)
}

func (s *Service) storeFor(kind Kind) RemoteStore {
	if kind == KindBackup {
		return s.backups
	}
	return s.software
}

func (s *Service) storageErr(err error) error {
	if errors.Is(err, ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStorage, err)
}

func (s *Service) publish(ctx context.Context, subject string, payload map[string]any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, subject, payload); err != nil {
		s.logger.Printf("WARN publish %s: %v", subject, err)
	}
}

func contentTypeOrDefault(contentType string) string {
	if contentType == "" {
		return defaultContentType
	}
	return contentType
}
