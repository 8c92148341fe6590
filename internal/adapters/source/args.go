package source

import (
	"encoding/json"
	"fmt"
	"strconv"

	"telegram-intel/internal/ports"
)

// ArgsSource превращает позиционные аргументы командной строки в JSON-массив целей,
// чтобы их разбирал тот же парсер, что и файлы.
type ArgsSource struct {
	args []string
}

// NewArgsSource создает новый экземпляр ArgsSource.
func NewArgsSource(args []string) ports.DataSource {
	return &ArgsSource{args: args}
}

// Fetch возвращает аргументы как JSON-массив. Целые числа остаются числами.
func (s *ArgsSource) Fetch() ([]byte, error) {
	if len(s.args) == 0 {
		return nil, fmt.Errorf("не указаны цели")
	}

	targets := make([]any, len(s.args))
	for i, a := range s.args {
		if id, err := strconv.ParseInt(a, 10, 64); err == nil {
			targets[i] = id
			continue
		}
		targets[i] = a
	}
	return json.Marshal(targets)
}
