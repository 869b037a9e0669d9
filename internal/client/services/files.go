package services

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/whistledrop/whistledrop/internal/api"
	"github.com/whistledrop/whistledrop/internal/client/client"
	"github.com/whistledrop/whistledrop/internal/logging"
)

const (
	// SelectHint is shown next to the file picker. The server enforces it.
	SelectHint = "only PDF files allowed"

	msgSelectFile   = "Please select a file to upload"
	msgUploadFailed = "Upload failed"
	msgDeleteFailed = "Failed to delete file"
)

// FileService keeps the whistleblower's upload list and pending selection.
// The list is shared by the command loop, the poller and the push watcher;
// whichever result lands last wins.
type FileService struct {
	client client.Client
	logger logging.Logger

	mu       sync.Mutex
	files    []api.FileInfo
	selected string
}

func NewFileService(c client.Client, l logging.Logger) *FileService {
	return &FileService{client: c, logger: l.With("module", "files")}
}

// Files returns a snapshot of the list, newest first.
func (s *FileService) Files() []api.FileInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.FileInfo, len(s.files))
	copy(out, s.files)
	return out
}

// Find looks a file up by id.
func (s *FileService) Find(id string) (api.FileInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.files {
		if f.ID == id {
			return f, true
		}
	}
	return api.FileInfo{}, false
}

func (s *FileService) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Select makes path the pending upload. The file only has to exist; its type
// and size are the server's business.
func (s *FileService) Select(path string) error {
	if path == "" {
		return &UserError{Msg: msgSelectFile, Err: ErrNoSelection}
	}
	fi, err := os.Stat(path)
	if err != nil {
		return &UserError{Msg: fmt.Sprintf("Cannot open %s", path), Err: err}
	}
	if fi.IsDir() {
		return &UserError{Msg: fmt.Sprintf("%s is a directory", path), Err: ErrNoSelection}
	}

	s.mu.Lock()
	s.selected = path
	s.mu.Unlock()
	return nil
}

func (s *FileService) ClearSelection() {
	s.mu.Lock()
	s.selected = ""
	s.mu.Unlock()
}

// Upload sends the pending selection. On success the selection is cleared and
// the list re-fetched.
func (s *FileService) Upload(ctx context.Context) error {
	path := s.Selected()
	if path == "" {
		return &UserError{Msg: msgSelectFile, Err: ErrNoSelection}
	}

	if err := s.client.UploadFile(ctx, path); err != nil {
		s.logger.Warn(ctx, "upload failed", "error", err)
		msg := client.DetailOf(err)
		if msg == "" {
			msg = msgUploadFailed
		}
		return &UserError{Msg: msg, Err: err}
	}

	s.ClearSelection()
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn(ctx, "refresh after upload", "error", err)
	}
	return nil
}

// Delete removes a file on the server and then from the local list, without
// re-fetching.
func (s *FileService) Delete(ctx context.Context, id string) error {
	if err := s.client.DeleteFile(ctx, id); err != nil {
		s.logger.Warn(ctx, "delete failed", "error", err, "file_id", id)
		msg := client.DetailOf(err)
		if msg == "" {
			msg = msgDeleteFailed
		}
		return &UserError{Msg: msg, Err: err}
	}

	s.remove(id)
	return nil
}

// Refresh replaces the list wholesale with the server's.
func (s *FileService) Refresh(ctx context.Context) error {
	files, err := s.client.ListFiles(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.files = files
	s.mu.Unlock()
	return nil
}

// Poll refreshes immediately and then every interval until ctx is done.
// Failures are logged only.
func (s *FileService) Poll(ctx context.Context, interval time.Duration) {
	s.refreshQuietly(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshQuietly(ctx)
		}
	}
}

func (s *FileService) refreshQuietly(ctx context.Context) {
	if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
		s.logger.Warn(ctx, "poll failed", "error", err)
	}
}

// ApplyEvent folds a push event into the list.
func (s *FileService) ApplyEvent(ev api.Event) {
	switch ev.Type {
	case api.EventFileCreated:
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, f := range s.files {
			if f.ID == ev.File.ID {
				s.files[i] = ev.File
				return
			}
		}
		s.files = append([]api.FileInfo{ev.File}, s.files...)

	case api.EventFileDeleted:
		s.remove(ev.File.ID)

	case api.EventFileSeen:
		s.mu.Lock()
		defer s.mu.Unlock()
		for i := range s.files {
			if s.files[i].ID == ev.File.ID {
				s.files[i].Seen = true
			}
		}
	}
}

// Reset forgets the list and the selection, e.g. on logout.
func (s *FileService) Reset() {
	s.mu.Lock()
	s.files = nil
	s.selected = ""
	s.mu.Unlock()
}

func (s *FileService) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.files[:0]
	for _, f := range s.files {
		if f.ID != id {
			out = append(out, f)
		}
	}
	s.files = out
}
