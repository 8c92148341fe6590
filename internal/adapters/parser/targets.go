package parser

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	"telegram-intel/internal/domain"
	"telegram-intel/internal/ports"
)

// JsonParser реализует интерфейс TargetParser для JSON-массива целей:
// числа - ID чатов, строки - username, ссылки или приглашения.
type JsonParser struct{}

// NewJsonParser создает новый экземпляр JsonParser.
func NewJsonParser() ports.TargetParser {
	return &JsonParser{}
}

// Parse разбирает JSON-массив в список ссылок.
func (p *JsonParser) Parse(data []byte) ([]domain.RemoteEntityRef, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal json: %w", err)
	}

	refs := make([]domain.RemoteEntityRef, 0, len(items))
	for i, raw := range items {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			ref, err := domain.ParseRef(s)
			if err != nil {
				return nil, fmt.Errorf("target #%d: %w", i+1, err)
			}
			refs = append(refs, ref)
			continue
		}

		var id int64
		if err := json.Unmarshal(raw, &id); err != nil || id == 0 {
			return nil, fmt.Errorf("target #%d: %w: expected string or non-zero integer, got %s", i+1, domain.ErrInvalidRef, raw)
		}
		refs = append(refs, domain.RefFromID(id))
	}
	return refs, nil
}

// YamlParser разбирает YAML-список целей. Значения без кавычек, похожие на числа, считаются ID.
type YamlParser struct{}

// NewYamlParser создает новый экземпляр YamlParser.
func NewYamlParser() ports.TargetParser {
	return &YamlParser{}
}

// Parse разбирает YAML-список в список ссылок.
func (p *YamlParser) Parse(data []byte) ([]domain.RemoteEntityRef, error) {
	var items []any
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	refs := make([]domain.RemoteEntityRef, 0, len(items))
	for i, item := range items {
		var raw string
		switch v := item.(type) {
		case int:
			raw = strconv.Itoa(v)
		case int64:
			raw = strconv.FormatInt(v, 10)
		case string:
			raw = v
		default:
			return nil, fmt.Errorf("target #%d: %w: unsupported value %v", i+1, domain.ErrInvalidRef, item)
		}

		ref, err := domain.ParseRef(raw)
		if err != nil {
			return nil, fmt.Errorf("target #%d: %w", i+1, err)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// ForFile выбирает парсер по расширению файла.
func ForFile(path string) ports.TargetParser {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".yml") || strings.HasSuffix(lower, ".yaml") {
		return NewYamlParser()
	}
	return NewJsonParser()
}
