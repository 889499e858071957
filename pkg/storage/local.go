package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LocalArchive implements Archive on the local filesystem. Metadata lives
// next to the files in a .meta directory.
type LocalArchive struct {
	basePath string
	clock    func() time.Time
}

// NewLocalArchive creates the base directory if needed.
func NewLocalArchive(basePath string) (*LocalArchive, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &LocalArchive{basePath: basePath, clock: time.Now}, nil
}

func (s *LocalArchive) profileDir(profileID uuid.UUID) string {
	return filepath.Join(s.basePath, profileID.String())
}

func (s *LocalArchive) metaPath(profileID, id uuid.UUID) string {
	return filepath.Join(s.profileDir(profileID), ".meta", id.String()+".json")
}

func (s *LocalArchive) Store(ctx context.Context, profileID uuid.UUID, name, format, contentHash string, r io.Reader) (*StatementInfo, error) {
	if contentHash != "" {
		existing, err := s.List(ctx, profileID)
		if err != nil {
			return nil, err
		}
		for _, info := range existing {
			if info.ContentHash == contentHash {
				return info, nil
			}
		}
	}

	id := uuid.New()
	dir := s.profileDir(profileID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create profile directory: %w", err)
	}

	stored := fmt.Sprintf("%s_%s", id.String()[:8], sanitizeFilename(filepath.Base(name)))
	path := filepath.Join(dir, stored)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	info := &StatementInfo{
		ID:          id,
		ProfileID:   profileID,
		Name:        name,
		Format:      format,
		ContentHash: contentHash,
		Size:        size,
		Path:        stored,
		ArchivedAt:  s.clock().UTC(),
	}
	if err := s.saveMetadata(info); err != nil {
		os.Remove(path)
		return nil, err
	}
	return info, nil
}

func (s *LocalArchive) Open(ctx context.Context, profileID, id uuid.UUID) (io.ReadCloser, *StatementInfo, error) {
	info, err := s.info(profileID, id)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(filepath.Join(s.profileDir(profileID), info.Path))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, info, nil
}

func (s *LocalArchive) List(ctx context.Context, profileID uuid.UUID) ([]*StatementInfo, error) {
	metaDir := filepath.Join(s.profileDir(profileID), ".meta")
	entries, err := os.ReadDir(metaDir)
	if os.IsNotExist(err) {
		return []*StatementInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list metadata: %w", err)
	}

	out := make([]*StatementInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		id, err := uuid.Parse(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			continue
		}
		info, err := s.info(profileID, id)
		if err != nil {
			continue
		}
		out = append(out, info)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ArchivedAt.After(out[j].ArchivedAt) })
	return out, nil
}

func (s *LocalArchive) Delete(ctx context.Context, profileID, id uuid.UUID) error {
	info, err := s.info(profileID, id)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.profileDir(profileID), info.Path)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return os.Remove(s.metaPath(profileID, id))
}

func (s *LocalArchive) info(profileID, id uuid.UUID) (*StatementInfo, error) {
	data, err := os.ReadFile(s.metaPath(profileID, id))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	var info StatementInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return &info, nil
}

func (s *LocalArchive) saveMetadata(info *StatementInfo) error {
	metaDir := filepath.Join(s.profileDir(info.ProfileID), ".meta")
	if err := os.MkdirAll(metaDir, 0o755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(s.metaPath(info.ProfileID, info.ID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

// sanitizeFilename removes unsafe characters from filenames
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		"..", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return replacer.Replace(name)
}
