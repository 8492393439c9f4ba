package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"inventorycounter/internal/config"
	"inventorycounter/internal/logger"
	"inventorycounter/internal/model"
	"inventorycounter/internal/repository"
)

const (
	timestampLayout = "2006-01-02_15-04-05.000"
	maxLabelPart    = 96
)

// EvidenceFrame is a frame that produced newly seen items.
type EvidenceFrame struct {
	Seq       uint64
	Timestamp time.Time
	SessionID string
	Labels    []string
	Data      []byte
}

// BufferService buffers evidence frames in memory and periodically flushes them to disk.
type BufferService struct {
	evidenceDir   string
	limit         int
	flushInterval time.Duration
	frames        []EvidenceFrame
	bufferCount   map[string]int
	seq           uint64
	mu            sync.Mutex
	logger        *logger.Logger
	evidenceRepo  repository.EvidenceRepository
}

// NewBufferService creates a BufferService writing to cfg.EvidenceDirectory.
// Flushed frames are indexed in evidenceRepo when it is not nil.
func NewBufferService(cfg *config.Config, logger *logger.Logger, evidenceRepo repository.EvidenceRepository) *BufferService {
	return &BufferService{
		evidenceDir:   cfg.EvidenceDirectory,
		limit:         cfg.EvidenceBufferLimit,
		flushInterval: cfg.EvidenceFlushInterval,
		frames:        make([]EvidenceFrame, 0),
		bufferCount:   make(map[string]int),
		logger:        logger,
		evidenceRepo:  evidenceRepo,
	}
}

// Run flushes on every interval and once more when ctx is done.
func (s *BufferService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Flush()
			return
		case <-ticker.C:
			s.Flush()
		}
	}
}

// AddFrame buffers a copy of jpeg unless the session already has limit frames pending.
func (s *BufferService) AddFrame(sessionID string, jpeg []byte, labels []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bufferCount[sessionID] >= s.limit {
		return
	}

	data := make([]byte, len(jpeg))
	copy(data, jpeg)
	s.seq++
	s.frames = append(s.frames, EvidenceFrame{
		Seq:       s.seq,
		Timestamp: time.Now(),
		SessionID: sessionID,
		Labels:    append([]string(nil), labels...),
		Data:      data,
	})
	s.bufferCount[sessionID]++
	s.logger.Debug("Evidence buffer for session %s: %d/%d", sessionID, s.bufferCount[sessionID], s.limit)
}

// Pending returns how many frames wait to be flushed.
func (s *BufferService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// Flush writes buffered frames under evidenceDir/<session>/ and resets the
// buffer. Files are written after the buffer is released, so AddFrame never
// waits on disk or database I/O.
func (s *BufferService) Flush() {
	s.mu.Lock()
	frames := s.frames
	s.frames = make([]EvidenceFrame, 0)
	s.bufferCount = make(map[string]int)
	s.mu.Unlock()

	if len(frames) == 0 {
		return
	}

	savedCount := 0
	for _, frame := range frames {
		if s.save(frame) {
			savedCount++
		}
	}
	s.logger.Info("Flushed %d/%d evidence frame(s) to disk", savedCount, len(frames))
}

func (s *BufferService) save(frame EvidenceFrame) bool {
	dir := filepath.Join(s.evidenceDir, sanitize(frame.SessionID))
	if err := os.MkdirAll(dir, 0755); err != nil {
		s.logger.Error("Error creating directory: %v", err)
		return false
	}

	filename := evidenceFilename(frame)
	fullpath := filepath.Join(dir, filename)
	if err := os.WriteFile(fullpath, frame.Data, 0644); err != nil {
		s.logger.Error("Error saving evidence %s: %v", filename, err)
		return false
	}

	if s.evidenceRepo != nil {
		_, err := s.evidenceRepo.Insert(context.Background(), &model.Evidence{
			SessionID:  frame.SessionID,
			Filename:   filename,
			FilePath:   fullpath,
			FileSize:   int64(len(frame.Data)),
			Labels:     frame.Labels,
			CapturedAt: frame.Timestamp,
		})
		if err != nil {
			s.logger.Error("Error saving evidence to database %s: %v", filename, err)
			return false
		}
	}
	return true
}

// evidenceFilename is <timestamp>_<seq>_<labels>.jpg using only [A-Za-z0-9_-].
func evidenceFilename(frame EvidenceFrame) string {
	parts := make([]string, len(frame.Labels))
	for i, label := range frame.Labels {
		parts[i] = sanitize(label)
	}
	labels := strings.Join(parts, "_")
	if len(labels) > maxLabelPart {
		labels = labels[:maxLabelPart]
	}
	if labels == "" {
		labels = "frame"
	}
	return fmt.Sprintf("%s_%06d_%s.jpg", frame.Timestamp.Format(timestampLayout), frame.Seq, labels)
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '-'
	}, s)
}
