// Package storage содержит локальное файловое хранилище изображений проектов.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// MediaStore сохраняет загруженные изображения в каталоге на локальном диске.
type MediaStore struct {
	basePath string
}

// NewMediaStore создаёт хранилище с корнем в basePath.
func NewMediaStore(basePath string) (*MediaStore, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, errors.New("media base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &MediaStore{basePath: basePath}, nil
}

// Save записывает файл под новым уникальным именем, сохраняя расширение
// исходного файла, и возвращает ключ сохранённого файла.
func (s *MediaStore) Save(filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	key := uuid.NewString() + ext

	if err := os.WriteFile(filepath.Join(s.basePath, key), data, 0o644); err != nil {
		return "", fmt.Errorf("write media file: %w", err)
	}

	return key, nil
}

// Remove удаляет файл по ключу. Отсутствие файла не считается ошибкой.
func (s *MediaStore) Remove(key string) error {
	if key == "" {
		return nil
	}
	// Ключи создаются только методом Save, но путь всё равно нормализуется.
	name := filepath.Base(filepath.Clean(key))

	err := os.Remove(filepath.Join(s.basePath, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove media file: %w", err)
	}
	return nil
}

// FilePath возвращает абсолютный путь файла по ключу.
func (s *MediaStore) FilePath(key string) string {
	return filepath.Join(s.basePath, filepath.Base(filepath.Clean(key)))
}
