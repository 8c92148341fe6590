package bot

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"html"
	"strings"
	"time"
	"unicode"

	"github.com/mattn/go-runewidth"
	"github.com/xuri/excelize/v2"

	"telegram-intel/cmd/bot/config"
)

// telegramMessageLimit - максимальная длина текстового сообщения Telegram.
const telegramMessageLimit = 4096

// renderTable форматирует участников как HTML-таблицу фиксированной ширины.
func renderTable(title string, members []MemberDTO, widths config.ColumnWidths) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s: найдено %d участников.\n", html.EscapeString(title), len(members)))
	sb.WriteString("<pre><code>") // Используем HTML для надежного форматирования

	cols := []int{widths.User, widths.Name, widths.Role}
	writeRow(&sb, []string{"Username", "Name", "Role"}, cols)

	separator := make([]string, len(cols))
	for i, w := range cols {
		separator[i] = strings.Repeat("-", w+2)
	}
	sb.WriteString("|" + strings.Join(separator, "|") + "|\n")

	for _, m := range members {
		username := "n/a"
		if m.Username != "" {
			username = "@" + m.Username
		}

		cells := [][]string{
			wrapString(cleanCell(username), widths.User),
			wrapString(cleanCell(m.Name()), widths.Name),
			wrapString(cleanCell(m.Role), widths.Role),
		}

		lines := 0
		for _, c := range cells {
			lines = max(lines, len(c))
		}
		for i := 0; i < lines; i++ {
			row := make([]string, len(cells))
			for j, c := range cells {
				if i < len(c) {
					row[j] = c[i]
				}
			}
			writeRow(&sb, row, cols)
		}
	}
	sb.WriteString("</code></pre>")
	return sb.String()
}

func writeRow(sb *strings.Builder, cells []string, widths []int) {
	for i, c := range cells {
		sb.WriteString("| ")
		sb.WriteString(html.EscapeString(c))
		sb.WriteString(generatePadding(c, widths[i]))
		sb.WriteString(" ")
	}
	sb.WriteString("|\n")
}

// cleanCell убирает некорректный UTF-8 и переносы строк.
// HTML экранируется при выводе, после переноса по ширине.
func cleanCell(s string) string {
	return strings.ReplaceAll(strings.ToValidUTF8(s, ""), "\n", " ")
}

// generatePadding вычисляет отступ для строки с учетом поправки на CJK-символы.
func generatePadding(s string, colWidth int) string {
	paddingNeeded := colWidth - runewidth.StringWidth(s)

	// Некоторые клиенты рисуют CJK-символы чуть шире, чем считает runewidth.
	hasCJK := false
	for _, r := range s {
		if unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hangul, r) || unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r) {
			hasCJK = true
			break
		}
	}
	if hasCJK && paddingNeeded >= 0 {
		paddingNeeded++
	}

	if paddingNeeded > 0 {
		return strings.Repeat(" ", paddingNeeded)
	}
	return ""
}

// wrapString разбивает строку на строки не шире width, по возможности по границам слов.
// Слово длиннее width разрывается посередине.
func wrapString(s string, width int) []string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return []string{s}
	}

	words := strings.Fields(s)
	if len(words) == 0 {
		return splitByWidth(s, width)
	}

	var (
		lines []string
		line  strings.Builder
	)
	for _, word := range words {
		wordWidth := runewidth.StringWidth(word)
		if wordWidth > width {
			if line.Len() > 0 {
				lines = append(lines, line.String())
				line.Reset()
			}
			lines = append(lines, splitByWidth(word, width)...)
			continue
		}

		lineWidth := runewidth.StringWidth(line.String())
		if lineWidth > 0 && lineWidth+1+wordWidth > width {
			lines = append(lines, line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteString(" ")
		}
		line.WriteString(word)
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return lines
}

func splitByWidth(s string, width int) []string {
	var lines []string
	runes := []rune(s)
	for len(runes) > 0 {
		i, current := 0, 0
		for i < len(runes) {
			w := runewidth.RuneWidth(runes[i])
			if current+w > width {
				break
			}
			current += w
			i++
		}
		if i == 0 {
			i = 1
		}
		lines = append(lines, string(runes[:i]))
		runes = runes[i:]
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}

var excelHeaders = []string{"ID", "Username", "Имя и фамилия", "Роль", "Телефон", "Бот", "Удален", "Пригласил", "Дата вступления", "Дата экспорта"}

// buildExcel формирует xlsx-файл со списком участников.
func buildExcel(members []MemberDTO, exportedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Участники"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	for i, h := range excelHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return nil, err
		}
	}

	exportDate := exportedAt.Format(time.RFC3339)
	for i, m := range members {
		var inviter any
		if m.InviterID != nil {
			inviter = *m.InviterID
		}
		var joined any
		if m.JoinedDate != nil {
			joined = *m.JoinedDate
		}
		row := []any{m.ID, m.Username, m.Name(), m.Role, m.Phone, m.IsBot, m.IsDeleted, inviter, joined, exportDate}

		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write excel: %w", err)
	}
	return buf.Bytes(), nil
}

// buildCSV формирует текстовый файл со списком участников.
func buildCSV(members []MemberDTO) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"ID", "Username", "Name", "Role"}); err != nil {
		return nil, err
	}
	for _, m := range members {
		if err := w.Write([]string{fmt.Sprint(m.ID), m.Username, m.Name(), m.Role}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
