package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"edudrive/internal/domain"
	"edudrive/internal/repository"
)

const maxNameLength = 255

// FolderService manages the folder tree of a drive: creation, listing,
// rename and move. Paths are materialized ("/Docs/Reports") and kept
// consistent across whole subtrees by the repository.
type FolderService struct {
	folderRepo repository.FolderStore
	access     *AccessService
	activity   *ActivityService
}

func NewFolderService(folderRepo repository.FolderStore, access *AccessService, activity *ActivityService) *FolderService {
	return &FolderService{
		folderRepo: folderRepo,
		access:     access,
		activity:   activity,
	}
}

func (s *FolderService) record(ctx context.Context, actorID string, action domain.Action, name string, meta map[string]any) {
	_ = s.activity.Record(ctx, actorID, actorID, action, domain.TargetFolder, name, meta)
}

// sanitizeName trims whitespace and rejects names that would break the
// materialized path scheme.
func sanitizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name is empty", domain.ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return "", fmt.Errorf("%w: name exceeds %d characters", domain.ErrInvalidName, maxNameLength)
	}
	if name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q is reserved", domain.ErrInvalidName, name)
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return "", fmt.Errorf("%w: name contains path separators", domain.ErrInvalidName)
	}
	return name, nil
}

func childPath(parentPath, name string) string {
	if parentPath == "/" {
		return "/" + name
	}
	return parentPath + "/" + name
}

// GetOrCreateRoot returns the actor's root folder, creating it on first use.
// The root has path "/" and level 0 and is never trashed.
func (s *FolderService) GetOrCreateRoot(ctx context.Context, ownerID string) (*domain.Folder, error) {
	root, err := s.folderRepo.GetRoot(ctx, ownerID)
	if err == nil {
		return root, nil
	}
	if !isNotFound(err) {
		return nil, fmt.Errorf("failed to get root folder: %w", err)
	}

	root = &domain.Folder{
		Name:    "Root",
		OwnerID: ownerID,
		Path:    "/",
		Level:   0,
	}
	if err := s.folderRepo.Create(ctx, root); err != nil {
		// Lost a create race; the winner's root is the one we want.
		if isDuplicate(err) {
			return s.folderRepo.GetRoot(ctx, ownerID)
		}
		return nil, fmt.Errorf("failed to create root folder: %w", err)
	}

	log.Printf("[FolderService] Created root folder %d for owner %s", root.ID, ownerID)
	return root, nil
}

// CreateFolder creates a folder under parentID, or under the drive root when
// parentID is nil. Returns ErrDuplicatePath when a live folder already
// occupies the resulting path.
func (s *FolderService) CreateFolder(ctx context.Context, actorID, name string, parentID *int64) (*domain.Folder, error) {
	name, err := sanitizeName(name)
	if err != nil {
		return nil, err
	}

	var parent *domain.Folder
	if parentID != nil {
		parent, err = s.access.OwnsFolder(ctx, actorID, *parentID)
	} else {
		parent, err = s.GetOrCreateRoot(ctx, actorID)
	}
	if err != nil {
		return nil, err
	}

	path := childPath(parent.Path, name)
	exists, err := s.folderRepo.PathExists(ctx, actorID, path)
	if err != nil {
		return nil, fmt.Errorf("failed to check path: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("path %s: %w", path, domain.ErrDuplicatePath)
	}

	folder := &domain.Folder{
		Name:     name,
		OwnerID:  actorID,
		ParentID: &parent.ID,
		Path:     path,
		Level:    parent.Level + 1,
	}
	if err := s.folderRepo.Create(ctx, folder); err != nil {
		return nil, err
	}

	s.record(ctx, actorID, domain.ActionFolderCreate, folder.Name, map[string]any{
		"folder_id": folder.ID,
		"path":      folder.Path,
	})

	return folder, nil
}

// GetContent lists the live subfolders and files of a folder. folderID nil
// means the drive root.
func (s *FolderService) GetContent(ctx context.Context, actorID string, folderID *int64) (*domain.FolderContent, error) {
	var folder *domain.Folder
	var err error
	if folderID != nil {
		folder, err = s.access.OwnsFolder(ctx, actorID, *folderID)
	} else {
		folder, err = s.GetOrCreateRoot(ctx, actorID)
	}
	if err != nil {
		return nil, err
	}

	return s.folderRepo.GetContent(ctx, folder)
}

// GetStructure returns the actor's full live folder tree, ordered by path,
// for sidebar-style rendering.
func (s *FolderService) GetStructure(ctx context.Context, actorID string) ([]domain.Folder, error) {
	if _, err := s.GetOrCreateRoot(ctx, actorID); err != nil {
		return nil, err
	}
	return s.folderRepo.GetUserFolders(ctx, actorID)
}

// RenameFolder renames a folder and rewrites the materialized paths of its
// entire subtree.
func (s *FolderService) RenameFolder(ctx context.Context, actorID string, folderID int64, newName string) (*domain.Folder, error) {
	newName, err := sanitizeName(newName)
	if err != nil {
		return nil, err
	}

	folder, err := s.access.OwnsFolder(ctx, actorID, folderID)
	if err != nil {
		return nil, err
	}
	if folder.ParentID == nil {
		return nil, fmt.Errorf("cannot rename: %w", domain.ErrRootImmutable)
	}
	if folder.Name == newName {
		return folder, nil
	}

	parentPath := parentOf(folder.Path)
	newPath := childPath(parentPath, newName)
	exists, err := s.folderRepo.PathExists(ctx, actorID, newPath)
	if err != nil {
		return nil, fmt.Errorf("failed to check path: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("path %s: %w", newPath, domain.ErrDuplicatePath)
	}

	oldName := folder.Name
	if err := s.folderRepo.Rename(ctx, folder, newName, newPath); err != nil {
		return nil, err
	}

	folder.Name = newName
	folder.Path = newPath

	s.record(ctx, actorID, domain.ActionRename, newName, map[string]any{
		"folder_id": folder.ID,
		"old_name":  oldName,
		"path":      newPath,
	})

	return folder, nil
}

// MoveFolder re-parents a folder. newParentID nil moves it to the drive
// root. Moving a folder into itself or its own subtree returns
// ErrInvalidMove.
func (s *FolderService) MoveFolder(ctx context.Context, actorID string, folderID int64, newParentID *int64) (*domain.Folder, error) {
	folder, err := s.access.OwnsFolder(ctx, actorID, folderID)
	if err != nil {
		return nil, err
	}
	if folder.ParentID == nil {
		return nil, fmt.Errorf("cannot move: %w", domain.ErrRootImmutable)
	}

	var newParent *domain.Folder
	if newParentID != nil {
		newParent, err = s.access.OwnsFolder(ctx, actorID, *newParentID)
	} else {
		newParent, err = s.GetOrCreateRoot(ctx, actorID)
	}
	if err != nil {
		return nil, err
	}

	if newParent.ID == folder.ID || newParent.Path == folder.Path ||
		strings.HasPrefix(newParent.Path, folder.Path+"/") {
		return nil, fmt.Errorf("folder %d into %d: %w", folder.ID, newParent.ID, domain.ErrInvalidMove)
	}

	newPath := childPath(newParent.Path, folder.Name)
	if newPath != folder.Path {
		exists, err := s.folderRepo.PathExists(ctx, actorID, newPath)
		if err != nil {
			return nil, fmt.Errorf("failed to check path: %w", err)
		}
		if exists {
			return nil, fmt.Errorf("path %s: %w", newPath, domain.ErrDuplicatePath)
		}
	}

	if err := s.folderRepo.Move(ctx, folder, newParent); err != nil {
		return nil, err
	}

	folder.ParentID = &newParent.ID
	folder.Path = newPath
	folder.Level = newParent.Level + 1

	s.record(ctx, actorID, domain.ActionMove, folder.Name, map[string]any{
		"folder_id": folder.ID,
		"path":      newPath,
	})

	return folder, nil
}

// parentOf returns the materialized path of the parent, "/" for top-level
// entries.
func parentOf(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx <= 0 {
		return "/"
	}
	return path[:idx]
}
