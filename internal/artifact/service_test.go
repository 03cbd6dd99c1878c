package artifact

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"os"
	"regexp"
	"testing"
	"time"
)

type fakeStore struct {
	objects map[string][]byte

	uploadErr    error
	refuseUpload bool
	storErr      error
	downloadErr  error
	deleteErr    error
	refuseDelete bool

	begun  int
	closed int
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (f *fakeStore) Begin() RemoteSession {
	f.begun++
	return &fakeSession{store: f}
}

type fakeSession struct {
	store *fakeStore
}

func (s *fakeSession) Upload(_ context.Context, src io.Reader, remoteName string) (bool, error) {
	if s.store.uploadErr != nil {
		return false, s.store.uploadErr
	}
	if s.store.refuseUpload {
		return false, nil
	}
	if _, exists := s.store.objects[remoteName]; exists {
		return false, nil
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return false, err
	}
	if s.store.storErr != nil {
		// The stream was consumed before the failure, like a transfer
		// rejected on its final reply.
		return false, s.store.storErr
	}
	s.store.objects[remoteName] = data
	return true, nil
}

func (s *fakeSession) Download(_ context.Context, remoteName, localPath string) (bool, error) {
	if s.store.downloadErr != nil {
		return false, s.store.downloadErr
	}
	data, exists := s.store.objects[remoteName]
	if !exists {
		return false, nil
	}
	return true, os.WriteFile(localPath, data, 0o600)
}

func (s *fakeSession) Delete(_ context.Context, remoteName string) (bool, error) {
	if s.store.deleteErr != nil {
		return false, s.store.deleteErr
	}
	if s.store.refuseDelete {
		return false, nil
	}
	if _, exists := s.store.objects[remoteName]; !exists {
		return false, nil
	}
	delete(s.store.objects, remoteName)
	return true, nil
}

func (s *fakeSession) Close() {
	s.store.closed++
}

type fakeRepo struct {
	backups  map[int64]Backup
	software map[int64]Software
	nextID   int64

	insertErr error
	deleteErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{backups: map[int64]Backup{}, software: map[int64]Software{}}
}

func (r *fakeRepo) InsertBackup(_ context.Context, b Backup) (int64, error) {
	if r.insertErr != nil {
		return 0, r.insertErr
	}
	if verr := ValidateBackup(b); verr != nil {
		return 0, verr
	}
	r.nextID++
	b.ID = r.nextID
	r.backups[b.ID] = b
	return b.ID, nil
}

func (r *fakeRepo) InsertSoftware(_ context.Context, sw Software) (int64, error) {
	if r.insertErr != nil {
		return 0, r.insertErr
	}
	if verr := ValidateSoftware(sw); verr != nil {
		return 0, verr
	}
	r.nextID++
	sw.ID = r.nextID
	r.software[sw.ID] = sw
	return sw.ID, nil
}

func (r *fakeRepo) FindBackup(_ context.Context, id int64) (Backup, error) {
	b, ok := r.backups[id]
	if !ok {
		return Backup{}, ErrNotFound
	}
	return b, nil
}

func (r *fakeRepo) FindSoftware(_ context.Context, id int64) (Software, error) {
	sw, ok := r.software[id]
	if !ok {
		return Software{}, ErrNotFound
	}
	return sw, nil
}

func (r *fakeRepo) ListBackups(_ context.Context) ([]Backup, error) {
	out := make([]Backup, 0, len(r.backups))
	for _, b := range r.backups {
		out = append(out, b)
	}
	return out, nil
}

func (r *fakeRepo) ListSoftware(_ context.Context) ([]Software, error) {
	out := make([]Software, 0, len(r.software))
	for _, sw := range r.software {
		out = append(out, sw)
	}
	return out, nil
}

func (r *fakeRepo) DeleteBackup(_ context.Context, id int64) (bool, error) {
	if r.deleteErr != nil {
		return false, r.deleteErr
	}
	if _, ok := r.backups[id]; !ok {
		return false, nil
	}
	delete(r.backups, id)
	return true, nil
}

func (r *fakeRepo) DeleteSoftware(_ context.Context, id int64) (bool, error) {
	if r.deleteErr != nil {
		return false, r.deleteErr
	}
	if _, ok := r.software[id]; !ok {
		return false, nil
	}
	delete(r.software, id)
	return true, nil
}

type fixture struct {
	svc      *Service
	repo     *fakeRepo
	backups  *fakeStore
	software *fakeStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := newFakeRepo()
	backups := newFakeStore()
	software := newFakeStore()

	svc, err := NewService(ServiceConfig{
		Repo:     repo,
		Backups:  backups,
		Software: software,
		Logger:   log.New(io.Discard, "", 0),
		Now:      func() time.Time { return time.Date(2026, 8, 28, 10, 30, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return &fixture{svc: svc, repo: repo, backups: backups, software: software}
}

func validSoftwareDraft() SoftwareDraft {
	return SoftwareDraft{
		DeviceType:  "Numériseur",
		DeviceModel: "CR CLASSIC",
		Version:     "1.0",
	}
}

func validBackupDraft() BackupDraft {
	return BackupDraft{
		Equipment:   "CR CLASSIC",
		Designation: "Numériseur salle 2",
		Client:      "Clinique du Parc",
		BackupDate:  time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC),
		Status:      "OK",
	}
}

func payload(content string) Upload {
	return Upload{
		FileName:    "logo.bin",
		ContentType: "image/png",
		Content:     bytes.NewBufferString(content),
	}
}

func TestCreateSoftwareScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.svc.CreateSoftware(ctx, validSoftwareDraft(), payload("logo-bytes"))
	if err != nil {
		t.Fatalf("CreateSoftware() error = %v", err)
	}

	rec, err := f.svc.GetSoftware(ctx, id)
	if err != nil {
		t.Fatalf("GetSoftware() error = %v", err)
	}
	if want := "20260828_103000_logo.bin"; rec.FileName != want {
		t.Fatalf("file name = %q, want %q", rec.FileName, want)
	}
	if !regexp.MustCompile(`^\d{8}_\d{6}_logo\.bin$`).MatchString(rec.FileName) {
		t.Fatalf("file name %q does not match the timestamped pattern", rec.FileName)
	}
	if rec.FileType != "image/png" {
		t.Fatalf("file type = %q, want image/png", rec.FileType)
	}

	dl, err := f.svc.Download(ctx, KindSoftware, id)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	data, err := os.ReadFile(dl.Path)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(data) != "logo-bytes" {
		t.Fatalf("downloaded bytes = %q, want %q", data, "logo-bytes")
	}
	if dl.ContentType != "image/png" {
		t.Fatalf("download content type = %q, want image/png", dl.ContentType)
	}
	if dl.Size != int64(len("logo-bytes")) {
		t.Fatalf("download size = %d, want %d", dl.Size, len("logo-bytes"))
	}

	if err := dl.Cleanup(); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if _, err := os.Stat(dl.Path); !os.IsNotExist(err) {
		t.Fatalf("temp file %s still exists after cleanup", dl.Path)
	}
}

func TestCreateSoftwareValidationHasNoSideEffects(t *testing.T) {
	f := newFixture(t)

	draft := validSoftwareDraft()
	draft.Version = ""
	draft.DeviceModel = "DRXPLUS" // belongs to Capteur, not Numériseur

	_, err := f.svc.CreateSoftware(context.Background(), draft, payload("x"))
	verr, ok := AsValidation(err)
	if !ok {
		t.Fatalf("CreateSoftware() error = %v, want ValidationError", err)
	}
	if len(verr.Problems) != 2 {
		t.Fatalf("Problems = %v, want two entries", verr.Problems)
	}
	if f.software.begun != 0 {
		t.Fatal("a remote session was opened for an invalid payload")
	}
	if len(f.repo.software) != 0 {
		t.Fatal("a row was created for an invalid payload")
	}
}

func TestCreateBackupValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateBackup(context.Background(), BackupDraft{}, payload("x"))
	verr, ok := AsValidation(err)
	if !ok {
		t.Fatalf("CreateBackup() error = %v, want ValidationError", err)
	}
	if len(verr.Problems) != 5 {
		t.Fatalf("Problems = %v, want all five required fields reported", verr.Problems)
	}
}

func TestCreateUploadFailureLeavesNoRow(t *testing.T) {
	f := newFixture(t)
	f.software.uploadErr = errors.New("connection refused")

	_, err := f.svc.CreateSoftware(context.Background(), validSoftwareDraft(), payload("x"))
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("CreateSoftware() error = %v, want ErrTransferFailed", err)
	}
	if len(f.repo.software) != 0 {
		t.Fatal("a row exists after a failed upload")
	}
	if f.software.closed != f.software.begun {
		t.Fatalf("sessions not released: begun %d, closed %d", f.software.begun, f.software.closed)
	}
}

func TestCreateInsertFailureCompensates(t *testing.T) {
	f := newFixture(t)
	f.repo.insertErr = errors.New("deadlock detected")

	_, err := f.svc.CreateSoftware(context.Background(), validSoftwareDraft(), payload("x"))
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("CreateSoftware() error = %v, want ErrStorage", err)
	}
	if len(f.software.objects) != 0 {
		t.Fatalf("remote objects %v left behind after compensation", f.software.objects)
	}
	if len(f.repo.software) != 0 {
		t.Fatal("a row exists after a failed insert")
	}
	if f.software.closed != f.software.begun {
		t.Fatalf("sessions not released: begun %d, closed %d", f.software.begun, f.software.closed)
	}
}

func TestCreateInsertFailureCompensationFailureKeepsStorageError(t *testing.T) {
	f := newFixture(t)
	f.repo.insertErr = errors.New("deadlock detected")
	f.software.deleteErr = errors.New("connection reset")

	_, err := f.svc.CreateSoftware(context.Background(), validSoftwareDraft(), payload("x"))
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("error = %v, want ErrStorage even when compensation fails", err)
	}
	if errors.Is(err, ErrTransferFailed) {
		t.Fatal("compensation failure masked the storage error")
	}
}

func TestCreateRefusalAfterStreamingIsNotRetried(t *testing.T) {
	f := newFixture(t)
	f.software.storErr = errors.New("451 requested action aborted")

	_, err := f.svc.CreateSoftware(context.Background(), validSoftwareDraft(), payload("firmware-bytes"))
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("CreateSoftware() error = %v, want ErrTransferFailed", err)
	}
	if len(f.software.objects) != 0 {
		t.Fatalf("remote objects %v stored after a refused transfer", f.software.objects)
	}
	if len(f.repo.software) != 0 {
		t.Fatal("a row exists after a refused transfer")
	}
	if f.software.closed != f.software.begun {
		t.Fatalf("sessions not released: begun %d, closed %d", f.software.begun, f.software.closed)
	}
}

func TestCreateCollisionRetriesWithSuffix(t *testing.T) {
	f := newFixture(t)
	f.software.objects["20260828_103000_logo.bin"] = []byte("earlier upload")

	id, err := f.svc.CreateSoftware(context.Background(), validSoftwareDraft(), payload("second"))
	if err != nil {
		t.Fatalf("CreateSoftware() error = %v", err)
	}
	rec, err := f.svc.GetSoftware(context.Background(), id)
	if err != nil {
		t.Fatalf("GetSoftware() error = %v", err)
	}
	want := regexp.MustCompile(`^20260828_103000_[0-9a-f]{8}_logo\.bin$`)
	if !want.MatchString(rec.FileName) {
		t.Fatalf("file name = %q, want suffixed retry form", rec.FileName)
	}
	if string(f.software.objects[rec.FileName]) != "second" {
		t.Fatalf("retried object holds %q, want the full payload", f.software.objects[rec.FileName])
	}
	if string(f.software.objects["20260828_103000_logo.bin"]) != "earlier upload" {
		t.Fatal("the colliding object was overwritten")
	}
}

func TestDownloadNotFound(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.Download(context.Background(), KindSoftware, 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Download() error = %v, want ErrNotFound", err)
	}
}

func TestDownloadEmptyFileName(t *testing.T) {
	f := newFixture(t)
	f.repo.software[7] = Software{ID: 7, DeviceType: "Capteur", DeviceModel: "DRXPLUS", Version: "2.1"}

	if _, err := f.svc.Download(context.Background(), KindSoftware, 7); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Download() error = %v, want ErrNotFound for a record without payload", err)
	}
}

func TestDownloadTransferFailureRemovesTempFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.svc.CreateSoftware(ctx, validSoftwareDraft(), payload("x"))
	if err != nil {
		t.Fatalf("CreateSoftware() error = %v", err)
	}

	before := countTempFiles(t)
	f.software.downloadErr = errors.New("timeout")
	if _, err := f.svc.Download(ctx, KindSoftware, id); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("Download() error = %v, want ErrTransferFailed", err)
	}
	if after := countTempFiles(t); after != before {
		t.Fatalf("temp files leaked: %d before, %d after", before, after)
	}
}

func TestDeleteRemovesRowAndObject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.svc.CreateSoftware(ctx, validSoftwareDraft(), payload("x"))
	if err != nil {
		t.Fatalf("CreateSoftware() error = %v", err)
	}

	res, err := f.svc.Delete(ctx, KindSoftware, id)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if res.FileRemovalFailed {
		t.Fatal("unexpected file removal warning")
	}
	if len(f.software.objects) != 0 {
		t.Fatal("remote object survived the delete")
	}
	if _, err := f.svc.GetSoftware(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetSoftware() after delete error = %v, want ErrNotFound", err)
	}
}

func TestDeleteRemoteFailureStillRemovesRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.svc.CreateSoftware(ctx, validSoftwareDraft(), payload("x"))
	if err != nil {
		t.Fatalf("CreateSoftware() error = %v", err)
	}

	f.software.deleteErr = errors.New("connection reset")
	res, err := f.svc.Delete(ctx, KindSoftware, id)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !res.FileRemovalFailed {
		t.Fatal("missing file removal warning")
	}
	if _, err := f.svc.GetSoftware(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatal("row survived a delete whose remote step failed")
	}
}

func TestDeleteRowFailureReportsStorageError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.svc.CreateBackup(ctx, validBackupDraft(), payload("x"))
	if err != nil {
		t.Fatalf("CreateBackup() error = %v", err)
	}

	f.repo.deleteErr = errors.New("connection lost")
	if _, err := f.svc.Delete(ctx, KindBackup, id); !errors.Is(err, ErrStorage) {
		t.Fatalf("Delete() error = %v, want ErrStorage", err)
	}
}

func TestDeleteNotFound(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.Delete(context.Background(), KindBackup, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Delete() error = %v, want ErrNotFound", err)
	}
}

func TestDeleteTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.svc.CreateSoftware(ctx, validSoftwareDraft(), payload("x"))
	if err != nil {
		t.Fatalf("CreateSoftware() error = %v", err)
	}
	if _, err := f.svc.Delete(ctx, KindSoftware, id); err != nil {
		t.Fatalf("first Delete() error = %v", err)
	}
	if _, err := f.svc.Delete(ctx, KindSoftware, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func countTempFiles(t *testing.T) int {
	t.Helper()
	matches, err := os.ReadDir(os.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	count := 0
	for _, entry := range matches {
		if !entry.IsDir() && len(entry.Name()) > 8 && entry.Name()[:8] == "dmvault_" {
			count++
		}
	}
	return count
}
