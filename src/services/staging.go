package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/username/dividendlog/backend/src/logger"
	"github.com/username/dividendlog/backend/src/models"
)

const (
	ckStagedBatch = "staged_batch_session_%s"
	ckCommitLock  = "commit_lock_session_%s"

	// A commit claim outlives any realistic commit; it is dropped explicitly when the commit returns.
	commitLockTTL = 10 * time.Minute
)

// StagingStore holds at most one staged ImportBatch per operator session.
// Batches expire after the TTL; whenever a batch leaves the store its uploaded
// file is handed to release.
type StagingStore struct {
	mu      sync.Mutex
	cache   *cache.Cache
	release func(path string)
}

func NewStagingStore(ttl time.Duration, release func(path string)) *StagingStore {
	s := &StagingStore{
		cache:   cache.New(ttl, ttl/2),
		release: release,
	}
	s.cache.OnEvicted(func(key string, v interface{}) {
		if b, ok := v.(*models.ImportBatch); ok {
			logger.L.Debug("Staged batch evicted", "key", key, "batchID", b.ID)
			s.releaseFile(b.StoredFilePath)
		}
	})
	return s
}

// Put stages batch for the session, replacing and releasing any earlier batch.
func (s *StagingStore) Put(sessionID string, batch *models.ImportBatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := fmt.Sprintf(ckStagedBatch, sessionID)
	var previous *models.ImportBatch
	if v, found := s.cache.Get(key); found {
		previous = v.(*models.ImportBatch)
	}
	// Set does not fire OnEvicted, so the replaced batch is released here.
	s.cache.Set(key, batch, cache.DefaultExpiration)
	if previous != nil && previous.StoredFilePath != batch.StoredFilePath {
		s.releaseFile(previous.StoredFilePath)
	}
}

func (s *StagingStore) Get(sessionID string) (*models.ImportBatch, bool) {
	v, found := s.cache.Get(fmt.Sprintf(ckStagedBatch, sessionID))
	if !found {
		return nil, false
	}
	return v.(*models.ImportBatch), true
}

// Delete drops the session's batch and releases its file.
func (s *StagingStore) Delete(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := fmt.Sprintf(ckStagedBatch, sessionID)
	if _, found := s.cache.Get(key); !found {
		return false
	}
	s.cache.Delete(key)
	return true
}

// DeleteIf drops the session's batch only if it is still batchID, so a batch
// staged while a commit was running survives that commit.
func (s *StagingStore) DeleteIf(sessionID, batchID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := fmt.Sprintf(ckStagedBatch, sessionID)
	v, found := s.cache.Get(key)
	if !found || v.(*models.ImportBatch).ID != batchID {
		return false
	}
	s.cache.Delete(key)
	return true
}

// Acquire claims the session's commit slot. The second concurrent caller gets
// ok == false until the first calls done.
func (s *StagingStore) Acquire(sessionID string) (done func(), ok bool) {
	key := fmt.Sprintf(ckCommitLock, sessionID)
	if err := s.cache.Add(key, struct{}{}, commitLockTTL); err != nil {
		return nil, false
	}
	return func() { s.cache.Delete(key) }, true
}

func (s *StagingStore) releaseFile(path string) {
	if s.release != nil && path != "" {
		s.release(path)
	}
}
