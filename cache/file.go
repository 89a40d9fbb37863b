package cache

import (
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/gomlx/bertdata/internal/files"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/exp/mmap"
	"k8s.io/klog/v2"
)

// FileExt is the extension of the files written by FileStore.
const FileExt = ".cache"

// DefaultDirCreationPerm is used when creating the cache directory.
var DefaultDirCreationPerm = os.FileMode(0755)

// FileStore keeps one file per entry.
//
// By default (Dir == "") the file is written next to the dataset file, named after Key.String().
// Otherwise, all entries are written flat under Dir, with a hash of the full key added to the name, since
// datasets in different directories may share their base name.
type FileStore struct {
	Dir string
}

// NewFileStore returns a FileStore writing to dir, which may start with "~" (the user's home directory).
// If dir is empty, entries are written next to their dataset files.
func NewFileStore(dir string) (*FileStore, error) {
	dir, err := files.ReplaceTildeInDir(dir)
	if err != nil {
		return nil, err
	}
	return &FileStore{Dir: dir}, nil
}

// Path returns the file holding the entry for key.
func (s *FileStore) Path(key Key) string {
	name := key.String()
	if s.Dir == "" {
		return name + FileExt
	}
	hash := uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()[:8]
	return filepath.Join(s.Dir, filepath.Base(name)+"_"+hash+FileExt)
}

// Get implements Store. The file is memory-mapped for reading.
func (s *FileStore) Get(key Key) ([]byte, error) {
	filePath := s.Path(key)
	if !files.Exists(filePath) {
		return nil, ErrNotFound
	}
	reader, err := mmap.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to mmap %s", filePath)
	}
	defer func() { _ = reader.Close() }()
	data := make([]byte, reader.Len())
	if _, err := reader.ReadAt(data, 0); err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", filePath)
	}
	return data, nil
}

// Put implements Store.
//
// The entry is written to a uniquely named temporary file and then atomically renamed, holding a lock
// file ("<path>.lock") so concurrent processes writing the same entry don't interleave. The lock file is
// left in place: removing it while other writers wait on it would let two of them hold different locks
// for the same entry.
func (s *FileStore) Put(key Key, data []byte) error {
	filePath := s.Path(key)
	if err := os.MkdirAll(filepath.Dir(filePath), DefaultDirCreationPerm); err != nil {
		return errors.Wrapf(err, "failed to create directory for cache file %q", filePath)
	}
	lockPath := filePath + ".lock"
	var mainErr error
	errLock := execOnFileLock(lockPath, func() {
		tmpPath := filePath + "." + uuid.NewString() + ".tmp"
		if err := os.WriteFile(tmpPath, data, 0644); err != nil {
			mainErr = errors.Wrapf(err, "failed to write temporary cache file %q", tmpPath)
			_ = os.Remove(tmpPath)
			return
		}
		if err := os.Rename(tmpPath, filePath); err != nil {
			mainErr = errors.Wrapf(err, "failed to move cache file %q to %q", tmpPath, filePath)
			_ = os.Remove(tmpPath)
		}
	})
	if mainErr != nil {
		return mainErr
	}
	if errLock != nil {
		return errors.WithMessagef(errLock, "while locking %q to write %q", lockPath, filePath)
	}
	return nil
}

// execOnFileLock locks lockPath (creating it if needed) and executes fn.
// If lockPath is already locked, it polls every 100 to 200 milliseconds until it acquires the lock.
func execOnFileLock(lockPath string, fn func()) (err error) {
	fileLock := flock.New(lockPath)
	for {
		locked, err := fileLock.TryLock()
		if err != nil {
			return errors.Wrapf(err, "while trying to lock %q", lockPath)
		}
		if locked {
			break
		}
		time.Sleep(time.Millisecond * time.Duration(100+rand.Intn(100)))
	}

	// Unlock even if fn panics.
	defer func() {
		unlockErr := fileLock.Unlock()
		if unlockErr != nil {
			if err == nil {
				err = errors.Wrapf(unlockErr, "unlocking file %q", lockPath)
			} else {
				klog.Errorf("Error unlocking file %q: %v", lockPath, unlockErr)
			}
		}
	}()
	fn()
	return
}
