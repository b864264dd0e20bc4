package ports

// Watcher monitors a dictionary file for changes and triggers a re-import.
// The adapter (fsnotify) debounces editor write bursts before invoking
// onChange. Only one Watch call should be active at a time.
type Watcher interface {
	// Watch starts monitoring the file at path. onChange is called with the
	// absolute path each time the file is written, created, or replaced.
	// The callback may be invoked from any goroutine. Returns an error if the
	// parent directory doesn't exist or permissions are insufficient.
	Watch(path string, onChange func(filePath string)) error

	// Stop ends monitoring and releases all resources. After Stop returns,
	// no further onChange calls will fire. Safe to call multiple times.
	Stop() error
}
