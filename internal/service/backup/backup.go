package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"facewatch/internal/logger"
	"facewatch/internal/models"
)

const (
	archivePrefix   = "backup_"
	archiveExt      = ".zip"
	timestampLayout = "20060102_150405"
	maxCollisions   = 1000
	maxSettingsSize = 1 << 20
)

// SettingsFile is the configuration file stored at the archive root.
type SettingsFile interface {
	Path() string
	Check(data []byte) error
	Reload() error
}

// Reloader re-reads the face store after a restore.
type Reloader interface {
	Load()
}

// Offsite stores archives outside the machine.
type Offsite interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
}

// Manager creates and restores zip archives of the face store directory.
// Callers must make sure nothing mutates the store while a backup or restore runs.
type Manager struct {
	storeDir  string
	backupDir string
	settings  SettingsFile
	store     Reloader
	offsite   Offsite
	progress  io.Writer
	logger    *logger.Logger
	now       func() time.Time
}

// NewManager creates a Manager. offsite may be nil.
func NewManager(storeDir, backupDir string, settings SettingsFile, store Reloader, offsite Offsite, logger *logger.Logger) *Manager {
	return &Manager{
		storeDir:  storeDir,
		backupDir: backupDir,
		settings:  settings,
		store:     store,
		offsite:   offsite,
		logger:    logger,
		now:       time.Now,
	}
}

// SetProgress sets a writer that receives every archived byte, e.g. a progress bar.
func (m *Manager) SetProgress(w io.Writer) {
	m.progress = w
}

// Dir returns the local backup directory.
func (m *Manager) Dir() string {
	return m.backupDir
}

// HasOffsite reports whether archives are uploaded after creation.
func (m *Manager) HasOffsite() bool {
	return m.offsite != nil
}

// EstimateSize returns the uncompressed number of bytes CreateBackup would archive.
func (m *Manager) EstimateSize() (int64, error) {
	var total int64
	err := m.walkStore(func(_ string, p string, d fs.DirEntry) error {
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, err
	}
	if info, err := os.Stat(m.settings.Path()); err == nil {
		total += info.Size()
	}
	return total, nil
}

// CreateBackup archives the store directory and the settings file into a new
// backup_YYYYMMDD_HHMMSS.zip and returns its path. An existing archive is never overwritten;
// a second backup within the same second gets a numeric suffix.
func (m *Manager) CreateBackup(ctx context.Context) (string, error) {
	if err := os.MkdirAll(m.backupDir, 0755); err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrBackup, err)
	}

	file, archivePath, err := m.createArchiveFile()
	if err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrBackup, err)
	}

	if err := m.writeArchive(ctx, file); err != nil {
		file.Close()
		os.Remove(archivePath)
		return "", fmt.Errorf("%w: %w", models.ErrBackup, err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(archivePath)
		return "", fmt.Errorf("%w: %w", models.ErrBackup, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(archivePath)
		return "", fmt.Errorf("%w: %w", models.ErrBackup, err)
	}

	m.logger.Info("Backup created: %s", archivePath)

	if m.offsite != nil {
		if err := m.upload(ctx, archivePath); err != nil {
			return archivePath, fmt.Errorf("%w: archive kept at %s but upload failed: %w", models.ErrBackup, archivePath, err)
		}
		m.logger.Info("Backup uploaded: %s", filepath.Base(archivePath))
	}

	return archivePath, nil
}

func (m *Manager) createArchiveFile() (*os.File, string, error) {
	base := archivePrefix + m.now().Format(timestampLayout)
	for n := 0; n < maxCollisions; n++ {
		name := base + archiveExt
		if n > 0 {
			name = fmt.Sprintf("%s_%d%s", base, n, archiveExt)
		}
		p := filepath.Join(m.backupDir, name)

		f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return nil, "", err
		}
		return f, p, nil
	}
	return nil, "", fmt.Errorf("too many backups named %s", base)
}

func (m *Manager) writeArchive(ctx context.Context, w io.Writer) error {
	zw := zip.NewWriter(w)
	settingsName := filepath.Base(m.settings.Path())

	err := m.walkStore(func(rel string, p string, d fs.DirEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if rel == settingsName {
			m.logger.Warning("Skipping %s in store directory, it collides with the settings file", rel)
			return nil
		}
		if d.IsDir() {
			_, err := zw.Create(rel + "/")
			return err
		}
		return m.addFile(zw, p, rel)
	})
	if err != nil {
		return err
	}

	if _, err := os.Stat(m.settings.Path()); err == nil {
		if err := m.addFile(zw, m.settings.Path(), settingsName); err != nil {
			return err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return zw.Close()
}

// walkStore calls fn for every directory and regular file below the store directory with its
// slash-separated relative path. Temp files and the backup directory itself are skipped.
func (m *Manager) walkStore(fn func(rel, p string, d fs.DirEntry) error) error {
	backupAbs, _ := filepath.Abs(m.backupDir)

	return filepath.WalkDir(m.storeDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) && p == m.storeDir {
				return nil
			}
			return err
		}
		if p == m.storeDir {
			return nil
		}
		if d.IsDir() {
			if abs, _ := filepath.Abs(p); abs == backupAbs {
				return filepath.SkipDir
			}
		} else if !d.Type().IsRegular() || strings.HasSuffix(d.Name(), ".tmp") {
			return nil
		}

		rel, err := filepath.Rel(m.storeDir, p)
		if err != nil {
			return err
		}
		return fn(filepath.ToSlash(rel), p, d)
	})
}

func (m *Manager) addFile(zw *zip.Writer, src, name string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	dst, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}

	var r io.Reader = f
	if m.progress != nil {
		r = io.TeeReader(f, m.progress)
	}
	_, err = io.Copy(dst, r)
	return err
}

func (m *Manager) upload(ctx context.Context, archivePath string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	return m.offsite.Upload(ctx, filepath.Base(archivePath), f, info.Size())
}

// RestoreBackup extracts archivePath into the store directory and reloads the store. The settings
// file at the archive root goes back to the settings path and the settings are reloaded too.
// Every entry is validated before anything is written; a failure while writing leaves the store
// directory partially restored and is reported as models.ErrRestore.
func (m *Manager) RestoreBackup(ctx context.Context, archivePath string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrRestore, err)
	}
	defer zr.Close()

	settingsName := filepath.Base(m.settings.Path())

	targets := make([]string, len(zr.File))
	restoresSettings := false
	for i, f := range zr.File {
		target, isSettings, err := m.entryTarget(f, settingsName)
		if err != nil {
			return fmt.Errorf("%w: %w", models.ErrRestore, err)
		}
		if isSettings {
			if err := m.checkSettingsEntry(f); err != nil {
				return fmt.Errorf("%w: %s: %w", models.ErrRestore, f.Name, err)
			}
		}
		restoresSettings = restoresSettings || isSettings
		targets[i] = target
	}

	if err := os.MkdirAll(m.storeDir, 0755); err != nil {
		return fmt.Errorf("%w: %w", models.ErrRestore, err)
	}

	for i, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", models.ErrRestore, err)
		}
		if err := extractEntry(f, targets[i]); err != nil {
			return fmt.Errorf("%w: %s: %w", models.ErrRestore, f.Name, err)
		}
	}

	if restoresSettings {
		if err := m.settings.Reload(); err != nil {
			return fmt.Errorf("%w: restored settings are invalid: %w", models.ErrRestore, err)
		}
	}
	m.store.Load()

	m.logger.Info("Backup restored: %s (%d entries)", archivePath, len(zr.File))
	return nil
}

func (m *Manager) checkSettingsEntry(f *zip.File) error {
	if f.UncompressedSize64 > maxSettingsSize {
		return fmt.Errorf("settings entry is too large (%d bytes)", f.UncompressedSize64)
	}
	r, err := f.Open()
	if err != nil {
		return err
	}
	defer r.Close()

	data, err := io.ReadAll(io.LimitReader(r, maxSettingsSize+1))
	if err != nil {
		return err
	}
	if len(data) > maxSettingsSize {
		return errors.New("settings entry is too large")
	}
	return m.settings.Check(data)
}

// entryTarget validates one archive entry and returns where it will be written.
func (m *Manager) entryTarget(f *zip.File, settingsName string) (target string, isSettings bool, err error) {
	name := f.Name
	if name == "" || strings.ContainsRune(name, '\\') || strings.ContainsRune(name, 0) {
		return "", false, fmt.Errorf("invalid entry name %q", name)
	}
	if path.IsAbs(name) || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", false, fmt.Errorf("absolute entry path %q", name)
	}

	clean := path.Clean(name)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", false, fmt.Errorf("entry %q escapes the store directory", name)
	}

	mode := f.Mode()
	if !mode.IsDir() && !mode.IsRegular() {
		return "", false, fmt.Errorf("entry %q is not a regular file", name)
	}
	if !mode.IsDir() && clean == "." {
		return "", false, fmt.Errorf("invalid entry name %q", name)
	}

	if clean == settingsName && !mode.IsDir() {
		return m.settings.Path(), true, nil
	}

	target = filepath.Join(m.storeDir, filepath.FromSlash(clean))
	rel, err := filepath.Rel(m.storeDir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false, fmt.Errorf("entry %q escapes the store directory", name)
	}
	return target, false, nil
}

func extractEntry(f *zip.File, target string) error {
	if f.Mode().IsDir() {
		return os.MkdirAll(target, 0755)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// ListBackups returns the local archives, newest first.
func (m *Manager) ListBackups() ([]models.BackupInfo, error) {
	entries, err := os.ReadDir(m.backupDir)
	if errors.Is(err, os.ErrNotExist) {
		return []models.BackupInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	backups := make([]models.BackupInfo, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || !strings.HasPrefix(name, archivePrefix) || !strings.HasSuffix(name, archiveExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		backups = append(backups, models.BackupInfo{
			Name:      name,
			Path:      filepath.Join(m.backupDir, name),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		if !backups[i].CreatedAt.Equal(backups[j].CreatedAt) {
			return backups[i].CreatedAt.After(backups[j].CreatedAt)
		}
		return backups[i].Name > backups[j].Name
	})
	return backups, nil
}

// Resolve maps an archive name from ListBackups to its path, rejecting anything that is not a
// plain file name inside the backup directory.
func (m *Manager) Resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || !strings.HasSuffix(name, archiveExt) {
		return "", fmt.Errorf("%w: invalid backup name %q", models.ErrNotFound, name)
	}
	p := filepath.Join(m.backupDir, name)
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("%w: backup %s", models.ErrNotFound, name)
	}
	return p, nil
}

// FetchRemote downloads an offsite archive into the backup directory and returns its local path.
func (m *Manager) FetchRemote(ctx context.Context, key string) (string, error) {
	if m.offsite == nil {
		return "", fmt.Errorf("%w: offsite storage is not configured", models.ErrRestore)
	}
	if key == "" || key != filepath.Base(key) || !strings.HasSuffix(key, archiveExt) {
		return "", fmt.Errorf("%w: invalid archive key %q", models.ErrRestore, key)
	}
	if err := os.MkdirAll(m.backupDir, 0755); err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrRestore, err)
	}

	rc, err := m.offsite.Download(ctx, key)
	if err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrRestore, err)
	}
	defer rc.Close()

	target := filepath.Join(m.backupDir, key)
	tmp, err := os.CreateTemp(m.backupDir, "."+key+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrRestore, err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, rc); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("%w: download %s: %w", models.ErrRestore, key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("%w: %w", models.ErrRestore, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("%w: %w", models.ErrRestore, err)
	}

	m.logger.Info("Fetched offsite backup %s", key)
	return target, nil
}
