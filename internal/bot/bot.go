// Package bot - Telegram-интерфейс к списку задач.
// Команды работают через тот же слой валидации, что и REST API.
package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"todo-api/internal/logger"
	"todo-api/internal/manager"
	"todo-api/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
)

// Sender - часть tgbotapi.BotAPI, нужная боту
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TaskService interface {
	CreateTask(ctx context.Context, in manager.CreateTaskInput) (*models.Task, error)
	ListTasks(ctx context.Context) ([]models.Task, error)
	UpdateTask(ctx context.Context, id string, in manager.UpdateTaskInput) (*models.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

type Bot struct {
	sender Sender
	tasks  TaskService
	now    func() time.Time
	loc    *time.Location
	wg     sync.WaitGroup
}

type Option func(*Bot)

// WithLocation задаёт пояс для срока по умолчанию и для вывода дат;
// должен совпадать с поясом TaskManager
func WithLocation(loc *time.Location) Option {
	return func(b *Bot) {
		b.loc = loc
	}
}

func New(sender Sender, tasks TaskService, opts ...Option) *Bot {
	b := &Bot{
		sender: sender,
		tasks:  tasks,
		now:    time.Now,
		loc:    time.UTC,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run обрабатывает обновления, пока не закроется канал или не отменится ctx.
// Перед выходом дожидается уже начатых обработчиков.
func (b *Bot) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	defer b.wg.Wait()

	logger.Info(ctx, "Бот запущен и слушает сообщения...")
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}

			b.wg.Add(1)
			go func(msg *tgbotapi.Message) {
				defer b.wg.Done()
				b.HandleMessage(ctx, msg)
			}(update.Message)
		}
	}
}

func (b *Bot) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	user := ""
	if msg.From != nil {
		user = msg.From.UserName
	}
	logger.Info(ctx, "Получено сообщение", "user", user, "text", msg.Text)

	// Обрабатываем команды
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	// Обычный текст - новая задача на сегодня
	if strings.TrimSpace(msg.Text) != "" {
		b.addTask(ctx, msg.Chat.ID, msg.Text)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start", "help":
		b.sendMessage(chatID, helpText)
	case "add":
		if args == "" {
			b.sendMessage(chatID, "Укажите задачу после команды: /add Купить молоко | 2030-01-31")
			return
		}
		b.addTask(ctx, chatID, args)
	case "list":
		b.listTasks(ctx, chatID)
	case "done":
		b.setStatus(ctx, chatID, args, models.StatusCompleted)
	case "undo":
		b.setStatus(ctx, chatID, args, models.StatusIncomplete)
	case "delete":
		b.deleteTask(ctx, chatID, args)
	default:
		b.sendMessage(chatID, "Неизвестная команда. Используйте /help для списка команд.")
	}
}

const helpText = `🎯 TodoBot

Команды:
/add задача [| ГГГГ-ММ-ДД] - добавить задачу (по умолчанию на сегодня)
/list - показать все задачи
/done номер - отметить задачу выполненной
/undo номер - вернуть задачу в работу
/delete номер - удалить задачу
/help - помощь

Номер - позиция в /list или полный ID задачи.`

// addTask разбирает "заголовок | дата"; без даты задача ставится на сегодня
func (b *Bot) addTask(ctx context.Context, chatID int64, text string) {
	title, date, found := strings.Cut(text, "|")
	date = strings.TrimSpace(date)
	if !found || date == "" {
		date = b.now().In(b.loc).Format(time.DateOnly)
	}

	task, err := b.tasks.CreateTask(ctx, manager.CreateTaskInput{
		Title: title,
		Date:  &date,
	})
	if err != nil {
		b.sendMessage(chatID, "❌ Ошибка: "+err.Error())
		return
	}

	b.sendMessage(chatID, fmt.Sprintf("✅ Задача добавлена!\n\nID: %s\nЗадача: %s\nСрок: %s",
		task.ID.Hex(), task.Title, b.formatDate(task.Date)))
}

func (b *Bot) listTasks(ctx context.Context, chatID int64) {
	tasks, err := b.tasks.ListTasks(ctx)
	if err != nil {
		b.sendMessage(chatID, "❌ Ошибка: "+err.Error())
		return
	}

	if len(tasks) == 0 {
		b.sendMessage(chatID, "📭 Список задач пуст")
		return
	}

	var response strings.Builder
	response.WriteString("📋 Ваши задачи:\n\n")

	for i, task := range tasks {
		status := "🟢"
		if task.Status == models.StatusCompleted {
			status = "✅"
		}
		fmt.Fprintf(&response, "%s %d. %s (до %s)\n", status, i+1, task.Title, b.formatDate(task.Date))
	}

	b.sendMessage(chatID, response.String())
}

func (b *Bot) setStatus(ctx context.Context, chatID int64, ref string, status models.Status) {
	id, ok := b.resolveID(ctx, chatID, ref)
	if !ok {
		return
	}

	value := string(status)
	task, err := b.tasks.UpdateTask(ctx, id, manager.UpdateTaskInput{Status: &value})
	if err != nil {
		b.sendMessage(chatID, "❌ Ошибка: "+err.Error())
		return
	}

	if status == models.StatusCompleted {
		b.sendMessage(chatID, fmt.Sprintf("✅ Задача «%s» отмечена выполненной!", task.Title))
	} else {
		b.sendMessage(chatID, fmt.Sprintf("🟢 Задача «%s» снова в работе", task.Title))
	}
}

func (b *Bot) deleteTask(ctx context.Context, chatID int64, ref string) {
	id, ok := b.resolveID(ctx, chatID, ref)
	if !ok {
		return
	}

	if err := b.tasks.DeleteTask(ctx, id); err != nil {
		b.sendMessage(chatID, "❌ Ошибка: "+err.Error())
		return
	}

	b.sendMessage(chatID, "🗑️ Задача удалена!")
}

// resolveID принимает номер из /list (с 1) или ID задачи
func (b *Bot) resolveID(ctx context.Context, chatID int64, ref string) (string, bool) {
	if ref == "" {
		b.sendMessage(chatID, "Укажите номер задачи: /done 1")
		return "", false
	}

	n, err := strconv.Atoi(ref)
	if err != nil {
		return ref, true
	}

	tasks, err := b.tasks.ListTasks(ctx)
	if err != nil {
		b.sendMessage(chatID, "❌ Ошибка: "+err.Error())
		return "", false
	}
	if n < 1 || n > len(tasks) {
		b.sendMessage(chatID, fmt.Sprintf("Задачи с номером %d нет", n))
		return "", false
	}
	return tasks[n-1].ID.Hex(), true
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)

	if _, err := b.sender.Send(msg); err != nil {
		logger.Error(context.Background(), err, "Ошибка отправки сообщения", "chat_id", chatID)
	}
}

func (b *Bot) formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.In(b.loc).Format(time.DateOnly)
}
