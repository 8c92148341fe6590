package source

import (
	"fmt"
	"os"

	"telegram-intel/internal/ports"
)

// FileSource реализует интерфейс DataSource для чтения списка целей из файла,
// указанного в командной строке.
type FileSource struct {
	filePath string
}

// NewFileSource создает новый экземпляр FileSource.
func NewFileSource(filePath string) ports.DataSource {
	return &FileSource{filePath: filePath}
}

// Fetch читает файл по указанному пути и возвращает его содержимое.
func (s *FileSource) Fetch() ([]byte, error) {
	if s.filePath == "" {
		return nil, fmt.Errorf("не указан путь к файлу")
	}

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read targets file %s: %w", s.filePath, err)
	}

	return data, nil
}
