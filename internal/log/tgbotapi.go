package log

import (
	"fmt"
	"log/slog"
	"strings"
)

// BotAPILogger адаптирует slog.Logger под интерфейс логгера go-telegram-bot-api/v5.
// Сообщения проходят через маскировщик, поэтому токен бота в URL не попадает в логи.
type BotAPILogger struct {
	Logger *slog.Logger
}

// Println реализует метод интерфейса tgbotapi.BotLogger.
func (a *BotAPILogger) Println(v ...interface{}) {
	a.Logger.Info(strings.TrimSpace(fmt.Sprintln(v...)), "component", "tgbotapi")
}

// Printf реализует метод интерфейса tgbotapi.BotLogger.
func (a *BotAPILogger) Printf(format string, v ...interface{}) {
	a.Logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "tgbotapi")
}
