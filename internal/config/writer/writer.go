package writer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"smartflow/internal/config"
)

const keepBackups = 10

// ConfigWriter 读写配置文件；写入前先备份，再经临时文件原子替换。
type ConfigWriter struct {
	path string
	mu   sync.RWMutex
	now  func() time.Time
}

func NewConfigWriter(path string) *ConfigWriter {
	return &ConfigWriter{path: path, now: time.Now}
}

// Read 解析当前配置（补齐默认值）。
func (w *ConfigWriter) Read() (config.Config, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return config.Load(w.path)
}

// Write 校验后写入配置。
func (w *ConfigWriter) Write(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}
	data, err := config.Marshal(w.path, cfg)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.backup(); err != nil {
		return fmt.Errorf("备份失败: %w", err)
	}
	if dir := filepath.Dir(w.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("创建配置目录失败: %w", err)
		}
	}
	tmpPath := w.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("写入临时文件失败: %w", err)
	}
	if err := os.Rename(tmpPath, w.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("替换配置文件失败: %w", err)
	}
	return nil
}

// Update 读取、修改并写回。
func (w *ConfigWriter) Update(fn func(*config.Config) error) error {
	cfg, err := w.Read()
	if err != nil {
		return err
	}
	if err := fn(&cfg); err != nil {
		return err
	}
	return w.Write(cfg)
}

func (w *ConfigWriter) Path() string { return w.path }

// BackupDir 备份目录，与配置文件同级。
func (w *ConfigWriter) BackupDir() string {
	return filepath.Join(filepath.Dir(w.path), "backups")
}

func (w *ConfigWriter) backup() error {
	src, err := os.Open(w.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer src.Close()

	dir := w.BackupDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	base := filepath.Base(w.path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	name := fmt.Sprintf("%s_%s%s", stem, w.now().Format("20060102_150405.000"), ext)

	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return err
	}
	w.cleanOldBackups(dir, stem+"_", ext, keepBackups)
	return nil
}

func (w *ConfigWriter) cleanOldBackups(dir, prefix, ext string, keep int) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	var backups []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), prefix) && strings.HasSuffix(e.Name(), ext) {
			backups = append(backups, filepath.Join(dir, e.Name()))
		}
	}
	if len(backups) <= keep {
		return
	}
	sort.Strings(backups)
	for _, p := range backups[:len(backups)-keep] {
		_ = os.Remove(p)
	}
}
