package parser

import (
	"errors"
	"testing"

	"telegram-intel/internal/domain"
)

func TestJsonParser(t *testing.T) {
	t.Run("Разбор корректного JSON", func(t *testing.T) {
		refs, err := NewJsonParser().Parse([]byte(`[-1001234567890, "@golang_ru", "https://t.me/+AbCdEf123456", "t.me/gophers"]`))
		if err != nil {
			t.Fatalf("Неожиданная ошибка: %v", err)
		}
		if len(refs) != 4 {
			t.Fatalf("Ожидалось 4 цели, получено %d", len(refs))
		}

		if refs[0].Kind != domain.RefNumericID || refs[0].ID != -1001234567890 {
			t.Errorf("Ожидался числовой ID, получено %+v", refs[0])
		}
		if refs[1].Kind != domain.RefHandle || refs[1].Value != "golang_ru" {
			t.Errorf("Ожидался username golang_ru, получено %+v", refs[1])
		}
		if refs[2].Kind != domain.RefInvite || refs[2].Value != "AbCdEf123456" {
			t.Errorf("Ожидалось приглашение, получено %+v", refs[2])
		}
		if refs[3].Kind != domain.RefLink || refs[3].Value != "gophers" {
			t.Errorf("Ожидалась ссылка на gophers, получено %+v", refs[3])
		}
	})

	t.Run("Разбор некорректного JSON возвращает ошибку", func(t *testing.T) {
		if _, err := NewJsonParser().Parse([]byte(`{"targets": }`)); err == nil {
			t.Error("Ожидалась ошибка, получено nil")
		}
	})

	t.Run("Некорректная цель возвращает ErrInvalidRef", func(t *testing.T) {
		for _, input := range []string{`[0]`, `[true]`, `["not a ref!"]`, `[1.5]`} {
			_, err := NewJsonParser().Parse([]byte(input))
			if !errors.Is(err, domain.ErrInvalidRef) {
				t.Errorf("%s: ожидалась ErrInvalidRef, получено %v", input, err)
			}
		}
	})

	t.Run("Пустой массив", func(t *testing.T) {
		refs, err := NewJsonParser().Parse([]byte(`[]`))
		if err != nil || len(refs) != 0 {
			t.Errorf("Ожидался пустой список без ошибки, получено %v, %v", refs, err)
		}
	})
}

func TestYamlParser(t *testing.T) {
	t.Run("Разбор корректного YAML", func(t *testing.T) {
		data := []byte("- -1001234567890\n- \"@golang_ru\"\n- t.me/gophers\n")

		refs, err := NewYamlParser().Parse(data)
		if err != nil {
			t.Fatalf("Неожиданная ошибка: %v", err)
		}
		if len(refs) != 3 {
			t.Fatalf("Ожидалось 3 цели, получено %d", len(refs))
		}
		if refs[0].Kind != domain.RefNumericID || refs[0].ID != -1001234567890 {
			t.Errorf("Ожидался числовой ID, получено %+v", refs[0])
		}
		if refs[2].Kind != domain.RefLink {
			t.Errorf("Ожидалась ссылка, получено %+v", refs[2])
		}
	})

	t.Run("Вложенные структуры не поддерживаются", func(t *testing.T) {
		_, err := NewYamlParser().Parse([]byte("- {a: 1}\n"))
		if !errors.Is(err, domain.ErrInvalidRef) {
			t.Errorf("Ожидалась ErrInvalidRef, получено %v", err)
		}
	})
}

func TestForFile(t *testing.T) {
	if _, ok := ForFile("targets.YAML").(*YamlParser); !ok {
		t.Error("Для .yaml ожидался YamlParser")
	}
	if _, ok := ForFile("targets.json").(*JsonParser); !ok {
		t.Error("Для .json ожидался JsonParser")
	}
}
