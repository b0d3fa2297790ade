package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"edudrive/internal/domain"
	"edudrive/internal/service/s3"
)

// In-memory stand-ins for the repository interfaces and the blob store.
// They reproduce the semantics the services rely on (conditional quota
// charges, path uniqueness, soft-delete cascades) without a database.

type fakeDriveStore struct {
	mu             sync.Mutex
	drives         map[string]*domain.Drive
	storageLimit   int64
	bandwidthLimit int64
}

func newFakeDriveStore() *fakeDriveStore {
	return &fakeDriveStore{
		drives:         make(map[string]*domain.Drive),
		storageLimit:   1000,
		bandwidthLimit: 1000,
	}
}

func (f *fakeDriveStore) GetOrCreate(_ context.Context, ownerID string) (*domain.Drive, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.drives[ownerID]
	if !ok {
		d = &domain.Drive{
			ID:               int64(len(f.drives) + 1),
			OwnerID:          ownerID,
			StorageLimit:     f.storageLimit,
			BandwidthLimit:   f.bandwidthLimit,
			BandwidthResetAt: time.Now().Add(24 * time.Hour),
		}
		f.drives[ownerID] = d
	}
	copied := *d
	return &copied, nil
}

func (f *fakeDriveStore) ReserveStorage(_ context.Context, ownerID string, deltaBytes int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.drives[ownerID]
	if !ok {
		return domain.ErrNotFound
	}
	if d.StorageUsed+deltaBytes > d.StorageLimit {
		return domain.ErrQuotaExceeded
	}
	d.StorageUsed += deltaBytes
	return nil
}

func (f *fakeDriveStore) ReleaseStorage(_ context.Context, ownerID string, bytes int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.drives[ownerID]
	if !ok {
		return domain.ErrNotFound
	}
	d.StorageUsed -= bytes
	if d.StorageUsed < 0 {
		d.StorageUsed = 0
	}
	return nil
}

func (f *fakeDriveStore) ReserveBandwidth(_ context.Context, ownerID string, deltaBytes int64, period time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.drives[ownerID]
	if !ok {
		return domain.ErrNotFound
	}
	if time.Now().After(d.BandwidthResetAt) {
		d.BandwidthUsed = 0
		d.BandwidthResetAt = time.Now().Add(period)
	}
	if d.BandwidthUsed+deltaBytes > d.BandwidthLimit {
		return domain.ErrQuotaExceeded
	}
	d.BandwidthUsed += deltaBytes
	return nil
}

func (f *fakeDriveStore) UpdateStorageLimit(_ context.Context, ownerID string, newLimit int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.drives[ownerID]
	if !ok {
		return domain.ErrNotFound
	}
	d.StorageLimit = newLimit
	return nil
}

type fakeFolderStore struct {
	mu      sync.Mutex
	nextID  int64
	folders map[int64]*domain.Folder
}

func newFakeFolderStore() *fakeFolderStore {
	return &fakeFolderStore{folders: make(map[int64]*domain.Folder)}
}

func (f *fakeFolderStore) Create(_ context.Context, folder *domain.Folder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.folders {
		if existing.OwnerID == folder.OwnerID && existing.Path == folder.Path && existing.DeletedAt == nil {
			return domain.ErrDuplicatePath
		}
	}
	f.nextID++
	folder.ID = f.nextID
	folder.CreatedAt = time.Now()
	folder.UpdatedAt = folder.CreatedAt
	copied := *folder
	f.folders[folder.ID] = &copied
	return nil
}

func (f *fakeFolderStore) GetByID(_ context.Context, id int64) (*domain.Folder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	folder, ok := f.folders[id]
	if !ok || folder.DeletedAt != nil {
		return nil, domain.ErrNotFound
	}
	copied := *folder
	return &copied, nil
}

func (f *fakeFolderStore) GetRoot(_ context.Context, ownerID string) (*domain.Folder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, folder := range f.folders {
		if folder.OwnerID == ownerID && folder.Path == "/" && folder.DeletedAt == nil {
			copied := *folder
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeFolderStore) GetContent(_ context.Context, folder *domain.Folder) (*domain.FolderContent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content := &domain.FolderContent{Folder: *folder}
	for _, child := range f.folders {
		if child.ParentID != nil && *child.ParentID == folder.ID && child.DeletedAt == nil {
			content.Folders = append(content.Folders, *child)
		}
	}
	return content, nil
}

func (f *fakeFolderStore) GetUserFolders(_ context.Context, ownerID string) ([]domain.Folder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Folder
	for _, folder := range f.folders {
		if folder.OwnerID == ownerID && folder.DeletedAt == nil {
			out = append(out, *folder)
		}
	}
	return out, nil
}

func (f *fakeFolderStore) GetBySubject(_ context.Context, ownerID string, subjectID int64) (*domain.Folder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, folder := range f.folders {
		if folder.OwnerID == ownerID && folder.SubjectID != nil && *folder.SubjectID == subjectID && folder.DeletedAt == nil {
			copied := *folder
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeFolderStore) PathExists(_ context.Context, ownerID, path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, folder := range f.folders {
		if folder.OwnerID == ownerID && folder.Path == path && folder.DeletedAt == nil {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeFolderStore) Rename(_ context.Context, folder *domain.Folder, newName, newPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.folders[folder.ID]
	if !ok {
		return domain.ErrNotFound
	}
	f.rewriteSubtree(stored.Path, newPath)
	stored.Name = newName
	stored.Path = newPath
	return nil
}

func (f *fakeFolderStore) Move(_ context.Context, folder *domain.Folder, newParent *domain.Folder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.folders[folder.ID]
	if !ok {
		return domain.ErrNotFound
	}
	newPath := newParent.Path + "/" + stored.Name
	if newParent.Path == "/" {
		newPath = "/" + stored.Name
	}
	f.rewriteSubtree(stored.Path, newPath)
	stored.ParentID = &newParent.ID
	stored.Path = newPath
	stored.Level = newParent.Level + 1
	return nil
}

// rewriteSubtree mirrors the recursive-CTE path rewrite.
func (f *fakeFolderStore) rewriteSubtree(oldPath, newPath string) {
	for _, folder := range f.folders {
		if strings.HasPrefix(folder.Path, oldPath+"/") {
			folder.Path = newPath + folder.Path[len(oldPath):]
		} else if folder.Path == oldPath {
			folder.Path = newPath
		}
	}
}

type fakeFileStore struct {
	mu        sync.Mutex
	files     map[uuid.UUID]*domain.File
	createErr error
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{files: make(map[uuid.UUID]*domain.File)}
}

func (f *fakeFileStore) Create(_ context.Context, file *domain.File) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	file.CreatedAt = time.Now()
	file.UpdatedAt = file.CreatedAt
	copied := *file
	f.files[file.UUID] = &copied
	return nil
}

func (f *fakeFileStore) GetByUUID(_ context.Context, id uuid.UUID) (*domain.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *file
	return &copied, nil
}

func (f *fakeFileStore) GetLive(_ context.Context, id uuid.UUID) (*domain.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[id]
	if !ok || file.DeletedAt != nil {
		return nil, domain.ErrNotFound
	}
	copied := *file
	return &copied, nil
}

func (f *fakeFileStore) FindLiveByHash(_ context.Context, ownerID, contentHash string) (*domain.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, file := range f.files {
		if file.OwnerID == ownerID && file.ContentHash == contentHash && file.DeletedAt == nil {
			copied := *file
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeFileStore) ExistsInFolder(_ context.Context, folderID *int64, ownerID, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, file := range f.files {
		if file.OwnerID != ownerID || file.Name != name || file.DeletedAt != nil {
			continue
		}
		if folderID == nil && file.FolderID == nil {
			return true, nil
		}
		if folderID != nil && file.FolderID != nil && *folderID == *file.FolderID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeFileStore) Rename(_ context.Context, id uuid.UUID, newName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[id]
	if !ok {
		return domain.ErrNotFound
	}
	file.Name = newName
	return nil
}

func (f *fakeFileStore) Move(_ context.Context, id uuid.UUID, folderID *int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[id]
	if !ok {
		return domain.ErrNotFound
	}
	file.FolderID = folderID
	return nil
}

// fakeTrashStore works over the folder and file fakes so cascades behave
// like the SQL implementation.
type fakeTrashStore struct {
	folders *fakeFolderStore
	files   *fakeFileStore
}

func newFakeTrashStore(folders *fakeFolderStore, files *fakeFileStore) *fakeTrashStore {
	return &fakeTrashStore{folders: folders, files: files}
}

func (f *fakeTrashStore) subtreeIDs(rootID int64) []int64 {
	root := f.folders.folders[rootID]
	ids := []int64{rootID}
	for _, folder := range f.folders.folders {
		if folder.ID != rootID && strings.HasPrefix(folder.Path, root.Path+"/") {
			ids = append(ids, folder.ID)
		}
	}
	return ids
}

func (f *fakeTrashStore) SoftDeleteFolder(_ context.Context, folderID int64, ownerID string) (int, error) {
	f.folders.mu.Lock()
	f.files.mu.Lock()
	defer f.folders.mu.Unlock()
	defer f.files.mu.Unlock()

	root, ok := f.folders.folders[folderID]
	if !ok || root.OwnerID != ownerID || root.DeletedAt != nil {
		return 0, domain.ErrNotFound
	}

	now := time.Now()
	count := 0
	for _, id := range f.subtreeIDs(folderID) {
		folder := f.folders.folders[id]
		if folder.DeletedAt != nil {
			continue
		}
		path := folder.Path
		parentID := folder.ParentID
		folder.DeletedAt = &now
		folder.RestorePath = &path
		folder.RestoreParentID = parentID
		count++
		for _, file := range f.files.files {
			if file.FolderID != nil && *file.FolderID == id && file.DeletedAt == nil {
				fid := id
				file.DeletedAt = &now
				file.RestoreFolderID = &fid
			}
		}
	}
	return count, nil
}

func (f *fakeTrashStore) SoftDeleteFile(_ context.Context, id uuid.UUID, ownerID string) error {
	f.files.mu.Lock()
	defer f.files.mu.Unlock()
	file, ok := f.files.files[id]
	if !ok || file.OwnerID != ownerID || file.DeletedAt != nil {
		return domain.ErrNotFound
	}
	now := time.Now()
	file.DeletedAt = &now
	file.RestoreFolderID = file.FolderID
	return nil
}

func (f *fakeTrashStore) RestoreFolder(_ context.Context, folderID int64, ownerID string) (int, error) {
	f.folders.mu.Lock()
	f.files.mu.Lock()
	defer f.folders.mu.Unlock()
	defer f.files.mu.Unlock()

	root, ok := f.folders.folders[folderID]
	if !ok || root.OwnerID != ownerID || root.DeletedAt == nil {
		return 0, domain.ErrNotFound
	}
	for _, live := range f.folders.folders {
		if live.OwnerID == ownerID && live.DeletedAt == nil && root.RestorePath != nil && live.Path == *root.RestorePath {
			return 0, domain.ErrPathConflict
		}
	}

	count := 0
	for _, id := range f.subtreeIDs(folderID) {
		folder := f.folders.folders[id]
		if folder.DeletedAt == nil {
			continue
		}
		folder.DeletedAt = nil
		folder.RestorePath = nil
		folder.RestoreParentID = nil
		count++
		for _, file := range f.files.files {
			if file.RestoreFolderID != nil && *file.RestoreFolderID == id && file.DeletedAt != nil {
				file.DeletedAt = nil
				file.RestoreFolderID = nil
			}
		}
	}
	return count, nil
}

func (f *fakeTrashStore) RestoreFile(_ context.Context, id uuid.UUID, ownerID string) error {
	f.files.mu.Lock()
	defer f.files.mu.Unlock()
	file, ok := f.files.files[id]
	if !ok || file.OwnerID != ownerID || file.DeletedAt == nil {
		return domain.ErrNotFound
	}
	file.DeletedAt = nil
	file.FolderID = file.RestoreFolderID
	file.RestoreFolderID = nil
	return nil
}

func (f *fakeTrashStore) List(_ context.Context, ownerID string) ([]domain.TrashItem, error) {
	f.folders.mu.Lock()
	f.files.mu.Lock()
	defer f.folders.mu.Unlock()
	defer f.files.mu.Unlock()

	var items []domain.TrashItem
	for _, folder := range f.folders.folders {
		if folder.OwnerID != ownerID || folder.DeletedAt == nil {
			continue
		}
		// Only top-level entries: skip folders whose parent is also trashed.
		if folder.RestoreParentID != nil {
			if parent, ok := f.folders.folders[*folder.RestoreParentID]; ok && parent.DeletedAt != nil {
				continue
			}
		}
		original := folder.Path
		if folder.RestorePath != nil {
			original = *folder.RestorePath
		}
		items = append(items, domain.TrashItem{
			ID:           fmt.Sprintf("%d", folder.ID),
			Name:         folder.Name,
			Type:         "folder",
			DeletedAt:    *folder.DeletedAt,
			OriginalPath: original,
		})
	}
	for _, file := range f.files.files {
		if file.OwnerID != ownerID || file.DeletedAt == nil {
			continue
		}
		if file.RestoreFolderID != nil {
			if folder, ok := f.folders.folders[*file.RestoreFolderID]; ok && folder.DeletedAt != nil {
				continue
			}
		}
		items = append(items, domain.TrashItem{
			ID:        file.UUID.String(),
			Name:      file.Name,
			Type:      "file",
			Size:      file.SizeBytes,
			DeletedAt: *file.DeletedAt,
		})
	}
	return items, nil
}

func (f *fakeTrashStore) PurgeFolder(_ context.Context, folderID int64, ownerID string) (int64, []string, error) {
	f.folders.mu.Lock()
	f.files.mu.Lock()
	defer f.folders.mu.Unlock()
	defer f.files.mu.Unlock()

	root, ok := f.folders.folders[folderID]
	if !ok || root.OwnerID != ownerID || root.DeletedAt == nil {
		return 0, nil, domain.ErrNotFound
	}

	var freed int64
	var keys []string
	for _, id := range f.subtreeIDs(folderID) {
		for fid, file := range f.files.files {
			owned := (file.FolderID != nil && *file.FolderID == id) ||
				(file.RestoreFolderID != nil && *file.RestoreFolderID == id)
			if owned {
				freed += file.SizeBytes
				keys = append(keys, file.StoredName)
				delete(f.files.files, fid)
			}
		}
		delete(f.folders.folders, id)
	}
	return freed, keys, nil
}

func (f *fakeTrashStore) PurgeFile(_ context.Context, id uuid.UUID, ownerID string) (int64, string, error) {
	f.files.mu.Lock()
	defer f.files.mu.Unlock()
	file, ok := f.files.files[id]
	if !ok || file.OwnerID != ownerID || file.DeletedAt == nil {
		return 0, "", domain.ErrNotFound
	}
	delete(f.files.files, id)
	return file.SizeBytes, file.StoredName, nil
}

func (f *fakeTrashStore) PurgeExpired(_ context.Context, retention time.Duration) (int64, []string, map[string]int64, error) {
	f.files.mu.Lock()
	defer f.files.mu.Unlock()
	cutoff := time.Now().Add(-retention)
	var total int64
	var keys []string
	freed := make(map[string]int64)
	for id, file := range f.files.files {
		if file.DeletedAt != nil && file.DeletedAt.Before(cutoff) {
			total += file.SizeBytes
			keys = append(keys, file.StoredName)
			freed[file.OwnerID] += file.SizeBytes
			delete(f.files.files, id)
		}
	}
	return total, keys, freed, nil
}

type fakeActivityStore struct {
	mu        sync.Mutex
	entries   []domain.Activity
	insertErr error
}

func newFakeActivityStore() *fakeActivityStore {
	return &fakeActivityStore{}
}

func (f *fakeActivityStore) Insert(_ context.Context, activity *domain.Activity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	if activity.ID == uuid.Nil {
		activity.ID = uuid.New()
	}
	activity.CreatedAt = time.Now()
	f.entries = append(f.entries, *activity)
	return nil
}

func (f *fakeActivityStore) Query(_ context.Context, ownerID string, filter domain.ActivityFilter) ([]domain.Activity, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []domain.Activity
	for i := len(f.entries) - 1; i >= 0; i-- {
		e := f.entries[i]
		if e.OwnerID != ownerID {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		matched = append(matched, e)
	}
	total := int64(len(matched))
	offset := (filter.Page - 1) * filter.Limit
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := offset + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (f *fakeActivityStore) Stats(_ context.Context, ownerID string) (map[domain.Action]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := make(map[domain.Action]int64)
	for _, e := range f.entries {
		if e.OwnerID == ownerID {
			stats[e.Action]++
		}
	}
	return stats, nil
}

func (f *fakeActivityStore) byOwner(ownerID string) []domain.Activity {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Activity
	for _, e := range f.entries {
		if e.OwnerID == ownerID {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeActivityStore) actions(ownerID string) []domain.Action {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Action
	for _, e := range f.entries {
		if e.OwnerID == ownerID {
			out = append(out, e.Action)
		}
	}
	return out
}

type fakeSubjectStore struct {
	subjects  map[int64]*domain.Subject
	materials map[int64][]domain.Material
}

func newFakeSubjectStore() *fakeSubjectStore {
	return &fakeSubjectStore{
		subjects:  make(map[int64]*domain.Subject),
		materials: make(map[int64][]domain.Material),
	}
}

func (f *fakeSubjectStore) GetSubject(_ context.Context, id int64) (*domain.Subject, error) {
	subject, ok := f.subjects[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return subject, nil
}

func (f *fakeSubjectStore) GetMaterials(_ context.Context, subjectID int64) ([]domain.Material, error) {
	return f.materials[subjectID], nil
}

// fakeStorage is an in-memory s3.Storage.
type fakeStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
	deleted   []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

type fakeObject struct {
	io.ReadCloser
	length      int64
	contentType string
}

func (o *fakeObject) ContentLength() int64 { return o.length }
func (o *fakeObject) ContentType() string  { return o.contentType }

func (f *fakeStorage) UploadBytes(_ context.Context, key string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.objects[key] = append([]byte(nil), data...)
	return nil
}

func (f *fakeStorage) GetObject(_ context.Context, key string) (s3.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", key, domain.ErrNotFound)
	}
	return &fakeObject{
		ReadCloser: io.NopCloser(bytes.NewReader(data)),
		length:     int64(len(data)),
	}, nil
}

func (f *fakeStorage) GetObjectRange(ctx context.Context, key string, start, end int64) (s3.Object, error) {
	f.mu.Lock()
	data, ok := f.objects[key]
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("object %s: %w", key, domain.ErrNotFound)
	}
	if end >= int64(len(data)) {
		end = int64(len(data)) - 1
	}
	part := data[start : end+1]
	return &fakeObject{
		ReadCloser: io.NopCloser(bytes.NewReader(part)),
		length:     int64(len(part)),
	}, nil
}

func (f *fakeStorage) GetReader(ctx context.Context, key string) (io.ReadCloser, error) {
	return f.GetObject(ctx, key)
}

func (f *fakeStorage) DeleteObject(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeStorage) CreateMultipartUpload(context.Context, string) (string, error) {
	return "upload-1", nil
}

func (f *fakeStorage) UploadPart(context.Context, string, string, int, []byte) (string, error) {
	return "etag", nil
}

func (f *fakeStorage) CompleteMultipartUpload(context.Context, string, string, []s3.CompletedPart) error {
	return nil
}

func (f *fakeStorage) AbortMultipartUpload(context.Context, string, string) error {
	return nil
}

func (f *fakeStorage) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}
