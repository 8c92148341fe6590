// Package bot реализует Telegram-бота, который запускает сбор данных через API
// сервера сбора и присылает список участников собранного чата.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-intel/cmd/bot/config"
)

const (
	startCommand   = "start"
	helpCommand    = "help"
	tokenCommand   = "token"
	collectCommand = "collect"
	statusCommand  = "status"
)

const usageText = "Команды:\n" +
	"/token <токен> - сохранить токен доступа к серверу сбора\n" +
	"/collect <чат> [лимит] - собрать участников чата (ID, @username или ссылка t.me)\n" +
	"/status - статус текущего сбора"

// Bot представляет собой основной объект Telegram-бота.
type Bot struct {
	api          *tgbotapi.BotAPI
	cfg          config.BotConfig
	serverClient ServerAPI
	store        *ChatStore
	logger       *slog.Logger
	now          func() time.Time

	// Вызовы Bot API вынесены в поля, чтобы подменять их в тестах.
	sendFunc    func(c tgbotapi.Chattable) (tgbotapi.Message, error)
	requestFunc func(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// NewBot создает и инициализирует новый экземпляр бота.
func NewBot(cfg config.BotConfig, serverClient ServerAPI, store *ChatStore, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot api: %w", err)
	}

	logger.Info("Authorized on account", slog.String("username", api.Self.UserName))

	b := newBot(cfg, serverClient, store, logger)
	b.api = api
	b.sendFunc = api.Send
	b.requestFunc = api.Request
	return b, nil
}

func newBot(cfg config.BotConfig, serverClient ServerAPI, store *ChatStore, logger *slog.Logger) *Bot {
	return &Bot{
		cfg:          cfg,
		serverClient: serverClient,
		store:        store,
		logger:       logger,
		now:          time.Now,
	}
}

// Start запускает основной цикл обработки обновлений от Telegram.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Context cancelled, stopping bot...")
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage обрабатывает входящее сообщение.
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}
	b.reply(msg.Chat.ID, "Отправьте команду /collect с идентификатором чата.\n\n"+usageText)
}

// handleCommand обрабатывает команды.
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case startCommand, helpCommand:
		b.reply(msg.Chat.ID, "Я собираю метаданные и участников групп и каналов Telegram.\n\n"+
			"Сначала получите токен на сервере аутентификации и отправьте его командой /token.\n\n"+usageText)
	case tokenCommand:
		b.handleToken(msg)
	case collectCommand:
		b.handleCollect(ctx, msg)
	case statusCommand:
		b.handleStatus(ctx, msg)
	default:
		b.reply(msg.Chat.ID, "Я не знаю такой команды.")
	}
}

// handleToken сохраняет токен и удаляет сообщение с ним из чата.
func (b *Bot) handleToken(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	token := strings.TrimSpace(msg.CommandArguments())
	if token == "" {
		b.reply(chatID, "Использование: /token <токен>")
		return
	}

	b.store.SetToken(chatID, token)
	if _, err := b.requestFunc(tgbotapi.NewDeleteMessage(chatID, msg.MessageID)); err != nil {
		b.logger.Warn("failed to delete token message", slog.Int64("chat_id", chatID), slog.String("error", err.Error()))
	}
	b.reply(chatID, "Токен сохранен.")
}

// parseCollectArgs разбирает аргументы /collect: цель и необязательный лимит.
func parseCollectArgs(args string) (string, int, error) {
	fields := strings.Fields(args)
	switch len(fields) {
	case 1:
		return fields[0], 0, nil
	case 2:
		limit, err := strconv.Atoi(fields[1])
		if err != nil || limit < 0 {
			return "", 0, fmt.Errorf("лимит должен быть неотрицательным числом")
		}
		return fields[0], limit, nil
	default:
		return "", 0, fmt.Errorf("использование: /collect <чат> [лимит]")
	}
}

// handleCollect запускает прогон на сервере и опрос его статуса.
func (b *Bot) handleCollect(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	logger := b.logger.With(slog.Int64("chat_id", chatID))

	target, limit, err := parseCollectArgs(msg.CommandArguments())
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	token, ok := b.store.Token(chatID)
	if !ok {
		b.reply(chatID, "Сначала отправьте токен доступа командой /token.")
		return
	}

	// 1. Проверяем, нет ли уже активного прогона.
	if _, busy := b.store.Run(chatID); busy {
		logger.Warn("user tried to start a new run while another is active")
		b.reply(chatID, "Пожалуйста, дождитесь завершения текущего сбора.")
		return
	}

	// 2. Запускаем прогон на сервере.
	startResp, err := b.serverClient.StartRun(ctx, token, target, limit)
	if err != nil {
		logger.Error("failed to start run on backend", slog.String("error", err.Error()))
		b.replyError(chatID, err, "Не удалось запустить сбор на сервере. Пожалуйста, попробуйте позже.")
		return
	}

	runID := startResp.RunID
	logger = logger.With(slog.String("run_id", runID))
	logger.Info("run started on backend", slog.String("target", target))

	// 3. Сохраняем run_id и запускаем опрос.
	b.store.StartRun(chatID, runID)
	go b.pollRunStatus(context.WithoutCancel(ctx), chatID, runID)

	b.reply(chatID, fmt.Sprintf("✅ Сбор для %s запущен. Ожидайте результата.", target))
}

func (b *Bot) handleStatus(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	runID, ok := b.store.Run(chatID)
	if !ok {
		b.reply(chatID, "Активного сбора нет.")
		return
	}
	token, _ := b.store.Token(chatID)

	status, err := b.serverClient.GetRunStatus(ctx, token, runID)
	if err != nil {
		b.replyError(chatID, err, "Не удалось получить статус сбора.")
		return
	}
	b.reply(chatID, fmt.Sprintf("Сбор %s: %s", status.Target, status.Status))
}

// pollRunStatus асинхронно опрашивает статус прогона на сервере сбора.
func (b *Bot) pollRunStatus(ctx context.Context, chatID int64, runID string) {
	logger := b.logger.With(slog.Int64("chat_id", chatID), slog.String("run_id", runID))
	defer b.store.FinishRun(chatID) // Гарантированно освобождаем чат по завершении.

	ticker := time.NewTicker(time.Duration(b.cfg.PollingIntervalSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Warn("polling cancelled by context")
			return
		case <-ticker.C:
			token, ok := b.store.Token(chatID)
			if !ok {
				logger.Warn("token removed, polling stopped")
				return
			}

			status, err := b.serverClient.GetRunStatus(ctx, token, runID)
			if errors.Is(err, ErrUnauthorized) {
				b.replyError(chatID, err, "")
				return
			}
			if err != nil {
				logger.Error("failed to get run status", slog.String("error", err.Error()))
				continue
			}

			switch status.Status {
			case "completed":
				logger.Info("run completed")
				b.processCompletedRun(ctx, chatID, token, status)
				return
			case "failed":
				logger.Warn("run failed", slog.String("reason", status.ErrorMessage))
				text := "Сбор завершился с ошибкой."
				if status.Outcome != nil && status.Outcome.Message != "" {
					text += "\n" + status.Outcome.Message
				}
				b.reply(chatID, text)
				return
			case "pending", "processing":
				logger.Debug("run is in progress", slog.String("status", status.Status))
			default:
				logger.Warn("unknown run status", slog.String("status", status.Status))
			}
		}
	}
}

// processCompletedRun сообщает итог прогона и присылает список участников.
func (b *Bot) processCompletedRun(ctx context.Context, chatID int64, token string, status *RunStatusResponse) {
	logger := b.logger.With(slog.Int64("chat_id", chatID), slog.String("run_id", status.RunID))

	if status.Outcome == nil || status.Outcome.ChatID == nil {
		b.reply(chatID, "Сбор завершен, но чат не был сохранен.")
		return
	}
	b.reply(chatID, status.Outcome.Message)

	members, err := b.fetchAllParticipants(ctx, token, *status.Outcome.ChatID)
	if err != nil {
		logger.Error("failed to fetch participants", slog.String("error", err.Error()))
		b.replyError(chatID, err, "Не удалось получить список участников. Пожалуйста, попробуйте позже.")
		return
	}

	logger.Info("successfully fetched participants", slog.Int("user_count", len(members)))
	if len(members) == 0 {
		b.reply(chatID, "Участники не найдены.")
		return
	}

	if len(members) >= b.cfg.ExcelThreshold {
		b.sendExcelResult(chatID, status.Target, members)
		return
	}
	b.sendTextResult(chatID, status.Target, members)
}

// fetchAllParticipants собирает все страницы участников чата.
func (b *Bot) fetchAllParticipants(ctx context.Context, token string, chatID int64) ([]MemberDTO, error) {
	var all []MemberDTO
	for page := 1; ; page++ {
		result, err := b.serverClient.GetParticipants(ctx, token, chatID, page, b.cfg.PageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to get participants page %d: %w", page, err)
		}
		all = append(all, result.Data...)

		if page >= result.Pagination.TotalPages || len(result.Data) == 0 {
			return all, nil
		}
	}
}

func (b *Bot) sendExcelResult(chatID int64, target string, members []MemberDTO) {
	data, err := buildExcel(members, b.now())
	if err != nil {
		b.logger.Error("failed to build excel", slog.String("error", err.Error()))
		b.reply(chatID, "Не удалось сформировать Excel-файл.")
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("participants_%s.xlsx", b.now().Format("2006-01-02_15-04-05")),
		Bytes: data,
	})
	doc.Caption = fmt.Sprintf("%s: найдено %d участников.", target, len(members))
	b.send(doc)
}

// sendTextResult отправляет таблицу сообщением, а слишком длинную - файлом.
func (b *Bot) sendTextResult(chatID int64, target string, members []MemberDTO) {
	text := renderTable(target, members, b.cfg.Render)
	if len(text) <= telegramMessageLimit {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = tgbotapi.ModeHTML
		b.send(msg)
		return
	}

	b.logger.Warn("rendered table is too long, sending as file", "length", len(text))
	data, err := buildCSV(members)
	if err != nil {
		b.logger.Error("failed to build csv", slog.String("error", err.Error()))
		b.reply(chatID, "Не удалось сформировать файл со списком.")
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("participants_%s.csv", b.now().Format("2006-01-02_15-04-05")),
		Bytes: data,
	})
	doc.Caption = fmt.Sprintf("%s: найдено %d участников. Список слишком большой для одного сообщения.", target, len(members))
	b.send(doc)
}

// replyError отвечает на типовые ошибки сервера, иначе отправляет fallback.
func (b *Bot) replyError(chatID int64, err error, fallback string) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		b.store.ForgetToken(chatID)
		b.reply(chatID, "Токен недействителен или истек. Отправьте новый командой /token.")
	case errors.Is(err, ErrBusy):
		b.reply(chatID, "Сбор для вашего аккаунта уже выполняется, повторите запрос позже.")
	default:
		b.reply(chatID, fallback)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.sendFunc(c); err != nil {
		b.logger.Error("failed to send message", slog.String("error", err.Error()))
	}
}
