package app

import (
	"os"
	"path/filepath"
	"strconv"
)

// Paths holds all resolved filesystem paths for the .cognitia/ project directory.
type Paths struct {
	Root     string // .cognitia/
	DB       string // .cognitia/cognitia.db (bbolt)
	SQLiteDB string // .cognitia/cognitia.sqlite
	Config   string // .cognitia/config.yaml

	LogDir    string // .cognitia/log/
	DaemonLog string // .cognitia/log/daemon.log

	RunDir   string // .cognitia/run/
	PIDFile  string // .cognitia/run/daemon.pid
	PortFile string // .cognitia/run/http.port
}

// NewPaths constructs all resolved paths from a project root directory.
func NewPaths(projectRoot string) *Paths {
	root := filepath.Join(projectRoot, ".cognitia")
	return &Paths{
		Root:     root,
		DB:       filepath.Join(root, "cognitia.db"),
		SQLiteDB: filepath.Join(root, "cognitia.sqlite"),
		Config:   filepath.Join(root, "config.yaml"),

		LogDir:    filepath.Join(root, "log"),
		DaemonLog: filepath.Join(root, "log", "daemon.log"),

		RunDir:   filepath.Join(root, "run"),
		PIDFile:  filepath.Join(root, "run", "daemon.pid"),
		PortFile: filepath.Join(root, "run", "http.port"),
	}
}

// EnsureDirs creates all subdirectories under .cognitia/. Idempotent.
func (p *Paths) EnsureDirs() error {
	for _, d := range []string{p.Root, p.LogDir, p.RunDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return err
		}
	}
	return nil
}

// WritePID records the daemon's process ID.
func (p *Paths) WritePID(pid int) error {
	return os.WriteFile(p.PIDFile, []byte(strconv.Itoa(pid)), 0644)
}

// CleanEphemeral removes ephemeral runtime files (PID file and port file).
// Called on clean daemon shutdown.
func (p *Paths) CleanEphemeral() {
	os.Remove(p.PIDFile)
	os.Remove(p.PortFile)
}

// resolve makes a configured path absolute against the project root.
func resolve(projectRoot, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(projectRoot, path)
}
