package service

import (
	"time"

	"edudrive/internal/config"
)

// testEnv wires all services over the in-memory fakes.
type testEnv struct {
	drives     *fakeDriveStore
	folders    *fakeFolderStore
	files      *fakeFileStore
	activities *fakeActivityStore
	subjects   *fakeSubjectStore
	storage    *fakeStorage

	quota     *QuotaService
	access    *AccessService
	activity  *ActivityService
	folderSvc *FolderService
	fileSvc   *FileService
	trashSvc  *TrashService
	syncSvc   *SyncService
}

func newTestEnv(dedupPolicy string) *testEnv {
	env := &testEnv{
		drives:     newFakeDriveStore(),
		folders:    newFakeFolderStore(),
		files:      newFakeFileStore(),
		activities: newFakeActivityStore(),
		subjects:   newFakeSubjectStore(),
		storage:    newFakeStorage(),
	}

	trash := newFakeTrashStore(env.folders, env.files)

	env.quota = NewQuotaService(env.drives, 24*time.Hour)
	env.access = NewAccessService(env.folders, env.files)
	env.activity = NewActivityService(env.activities)
	env.folderSvc = NewFolderService(env.folders, env.access, env.activity)
	env.fileSvc = NewFileService(env.files, env.folders, env.storage, env.quota, env.access, env.activity, dedupPolicy, 10_000)
	env.trashSvc = NewTrashService(trash, env.storage, env.quota, env.access, env.activity, time.Hour)
	env.syncSvc = NewSyncService(env.subjects, env.folders, env.files, env.folderSvc, env.storage, env.quota, env.activity)

	return env
}

func newTestEnvSkip() *testEnv {
	return newTestEnv(config.DedupSkip)
}
