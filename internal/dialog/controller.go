// Package dialog implements the menu-driven conversation that records work entries.
//
// Controller.HandleInput is a pure step over a Session: it never returns an error to the
// caller. Failures are logged and answered with a generic message, and the session falls
// back to the root state with its other fields untouched.
package dialog

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Proton-105/worklog-bot/internal/domain"
	apperrors "github.com/Proton-105/worklog-bot/internal/errors"
	"github.com/Proton-105/worklog-bot/internal/state"
	"github.com/Proton-105/worklog-bot/internal/stats"
	"github.com/Proton-105/worklog-bot/pkg/logger"
	"github.com/Proton-105/worklog-bot/pkg/metrics"
)

const (
	DefaultTimezone = "Europe/Moscow"

	logTextLimit = 50

	msgStart      = "Привет! Я твой ассистент по учету работ. Выбери категорию:"
	msgCancelled  = "Действие отменено. Используй /start для перезапуска."
	msgUseMenu    = "Пожалуйста, выбери вариант из меню"
	msgMainMenu   = "Главное меню"
	msgPickCat    = "Выбери категорию:"
	msgUseButtons = "Используй кнопки меню"
)

// EntryStore is the part of the entry store the dialog drives.
type EntryStore interface {
	AddEntry(ctx context.Context, userID string, entry domain.WorkEntry) (int64, error)
	GetEntries(ctx context.Context, userID string, dateRange *domain.DateRange) ([]domain.WorkEntry, error)
	GetLastEntry(ctx context.Context, userID string) (*domain.WorkEntry, error)
	DeleteEntry(ctx context.Context, entryID int64, userID string) (bool, error)
	GetSettings(ctx context.Context, userID string) (domain.UserSettings, error)
	SaveSettings(ctx context.Context, userID string, settings domain.UserSettings) error
}

// StatsCache serves memoized monthly statistics.
type StatsCache interface {
	Get(ctx context.Context, userID string, compute stats.ComputeFunc) (*domain.StatsSnapshot, error)
}

// Input is one inbound text message.
type Input struct {
	ChatID   int64
	UserID   string
	UserName string
	Text     string
}

// Document is an outbound file.
type Document struct {
	FileName string
	Caption  string
	MIME     string
	Data     []byte
}

// Message is one outbound message. Menu nil keeps the current keyboard.
type Message struct {
	Text     string
	Menu     *Menu
	Document *Document
}

// Response is the ordered list of messages produced by a step.
type Response struct {
	Messages []Message
}

func (r *Response) say(text string, menu *Menu) {
	r.Messages = append(r.Messages, Message{Text: text, Menu: menu})
}

func (r *Response) send(doc Document, menu *Menu) {
	r.Messages = append(r.Messages, Message{Document: &doc, Menu: menu})
}

// Text joins all text messages, which is convenient for logging and tests.
func (r Response) Text() string {
	parts := make([]string, 0, len(r.Messages))
	for _, m := range r.Messages {
		if m.Text != "" {
			parts = append(parts, m.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Deps groups the controller's collaborators.
type Deps struct {
	Sessions     state.Manager
	Store        EntryStore
	Stats        StatsCache
	ComputeStats stats.ComputeFunc
	Errors       *apperrors.Handler
	Clock        clockwork.Clock
	Location     *time.Location
	Logger       *slog.Logger
	// RetryPolicy applies to saving a finished group. Zero value means DefaultRetryPolicy.
	RetryPolicy *apperrors.RetryPolicy
}

type stateHandler func(ctx context.Context, s *state.Session, in Input, resp *Response) error

// Controller runs the dialog state machine.
type Controller struct {
	sessions     state.Manager
	store        EntryStore
	stats        StatsCache
	computeStats stats.ComputeFunc
	errs         *apperrors.Handler
	clock        clockwork.Clock
	loc          *time.Location
	log          *slog.Logger
	retry        apperrors.RetryPolicy

	handlers map[state.State]stateHandler
}

func NewController(deps Deps) *Controller {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	errs := deps.Errors
	if errs == nil {
		errs = apperrors.NewHandler(log, false)
	}
	retry := apperrors.DefaultRetryPolicy
	if deps.RetryPolicy != nil {
		retry = *deps.RetryPolicy
	}

	c := &Controller{
		sessions:     deps.Sessions,
		store:        deps.Store,
		stats:        deps.Stats,
		computeStats: deps.ComputeStats,
		errs:         errs,
		clock:        clock,
		loc:          loc,
		log:          log,
		retry:        retry,
	}

	c.handlers = map[state.State]stateHandler{
		state.SelectingWork:      c.handleSelectingWork,
		state.ShowerWork:         c.handleShowerWork,
		state.MirrorWork:         c.handleMirrorWork,
		state.OtherWork:          c.handleOtherWork,
		state.AdditionalServices: c.handleAdditionalServices,
		state.MirrorQuantity:     c.handleMirrorQuantity,
		state.AddAddress:         c.handleAddress,
		state.AddComment:         c.handleComment,
		state.AddMoreWork:        c.handleAddMore,
		state.SelectingDate:      c.handleSelectingDate,
		state.ViewingEntries:     c.handleViewingEntries,
		state.DeletingEntry:      c.handleDeletingEntry,
		state.ConfirmDeleteLast:  c.handleConfirmDeleteLast,
		state.ConfirmDeleteEntry: c.handleConfirmDeleteEntry,
		state.Settings:           c.handleSettings,
		state.SettingWorkDays:    c.handleWorkDays,
	}

	return c
}

// HandleInput advances session by one message. The returned session's State is the next state.
// The input session is never mutated.
func (c *Controller) HandleInput(ctx context.Context, session *state.Session, in Input) (next *state.Session, resp Response) {
	if session == nil {
		session = state.NewSession(in.ChatID, in.UserID)
	}
	in.Text = strings.TrimSpace(in.Text)

	started := c.clock.Now()
	from := session.State
	status := "ok"

	c.log.Info("user action",
		slog.Int64("chat_id", in.ChatID),
		slog.String("user_id", in.UserID),
		slog.String("state", string(from)),
		slog.String("action", logger.Truncate(in.Text, logTextLimit)),
		slog.String("correlation_id", logger.CorrelationIDFromContext(ctx)),
	)

	defer func() {
		if r := recover(); r != nil {
			c.log.Error("dialog handler panic",
				slog.Int64("chat_id", in.ChatID),
				slog.String("state", string(from)),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			status = "panic"
			next, resp = c.failSafe(session, apperrors.GenericUserMessage)
		}
		metrics.RecordDialogInput(string(from), status, c.clock.Since(started))
	}()

	work := session.Clone()
	handler, ok := c.handlers[work.State]
	if !ok {
		c.log.Warn("unknown dialog state, falling back to root",
			slog.Int64("chat_id", in.ChatID),
			slog.String("state", string(work.State)),
		)
		work.State = state.Root
		handler = c.handlers[state.Root]
	}

	out := &Response{}
	if err := handler(ctx, work, in, out); err != nil {
		status = "error"
		message, _ := c.errs.Handle(ctx, err)
		return c.failSafe(session, message)
	}

	work.UpdatedAt = c.clock.Now()
	return work, *out
}

func (c *Controller) failSafe(session *state.Session, message string) (*state.Session, Response) {
	s := session.Clone()
	s.State = state.Root
	s.UpdatedAt = c.clock.Now()

	var resp Response
	resp.say(message, MainMenu())
	return s, resp
}

// Process runs one input through the session manager so load, step and save happen under the chat lock.
func (c *Controller) Process(ctx context.Context, in Input) (Response, error) {
	var resp Response
	_, err := c.sessions.Update(ctx, in.ChatID, in.UserID, func(s *state.Session) (*state.Session, error) {
		var next *state.Session
		next, resp = c.HandleInput(ctx, s, in)
		return next, nil
	})
	if err != nil {
		message, _ := c.errs.Handle(ctx, apperrors.NewStorageError("update session", err))
		var fallback Response
		fallback.say(message, MainMenu())
		return fallback, fmt.Errorf("process input: %w", err)
	}

	return resp, nil
}

// Start resets the chat's session and greets the user.
func (c *Controller) Start(ctx context.Context, chatID int64, userID string) (Response, error) {
	return c.reset(ctx, chatID, userID, msgStart)
}

// Cancel drops everything in progress and returns to the main menu.
func (c *Controller) Cancel(ctx context.Context, chatID int64, userID string) (Response, error) {
	return c.reset(ctx, chatID, userID, msgCancelled)
}

func (c *Controller) reset(ctx context.Context, chatID int64, userID, greeting string) (Response, error) {
	var resp Response
	if err := c.sessions.Reset(ctx, chatID, userID); err != nil {
		message, _ := c.errs.Handle(ctx, apperrors.NewStorageError("reset session", err))
		resp.say(message, MainMenu())
		return resp, fmt.Errorf("reset session: %w", err)
	}

	resp.say(greeting, MainMenu())
	return resp, nil
}

// today is the current civil date in the configured timezone.
func (c *Controller) today() time.Time {
	return domain.StartOfDay(c.clock.Now().In(c.loc))
}

// toMain shows the main menu. A draft group in progress is kept; everything tied to
// the sub-flow being left is dropped.
func toMain(s *state.Session, resp *Response, text string) {
	s.State = state.Root
	s.PendingDeleteID = nil
	s.ViewingSnapshot = nil
	s.WorkDaysDraft = nil
	s.ClearDatePicker()
	resp.say(text, MainMenu())
}
