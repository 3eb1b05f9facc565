package state

import (
	"time"

	"github.com/Proton-105/worklog-bot/internal/domain"
)

// State represents a dialog state.
type State string

const (
	SelectingDate      State = "selecting_date"
	SelectingWork      State = "selecting_work"
	AddComment         State = "add_comment"
	ShowerWork         State = "shower_work"
	MirrorWork         State = "mirror_work"
	OtherWork          State = "other_work"
	AdditionalServices State = "additional_services"
	AddAddress         State = "add_address"
	AddMoreWork        State = "add_more_work"
	ViewingEntries     State = "viewing_entries"
	DeletingEntry      State = "deleting_entry"
	MirrorQuantity     State = "mirror_quantity"
	Settings           State = "settings"
	SettingWorkDays    State = "setting_work_days"
	ConfirmDeleteLast  State = "confirm_delete_last"
	ConfirmDeleteEntry State = "confirm_delete_entry"
)

// Root is the state every reset and fail-safe returns to.
const Root = SelectingWork

// All lists every state in declaration order.
func All() []State {
	return []State{
		SelectingDate, SelectingWork, AddComment, ShowerWork,
		MirrorWork, OtherWork, AdditionalServices, AddAddress,
		AddMoreWork, ViewingEntries, DeletingEntry, MirrorQuantity,
		Settings, SettingWorkDays, ConfirmDeleteLast, ConfirmDeleteEntry,
	}
}

// Category is the work family chosen from the main menu.
type Category string

const (
	CategoryNone   Category = ""
	CategoryShower Category = "shower"
	CategoryMirror Category = "mirror"
	CategoryOther  Category = "other"
)

// Session is the per-chat dialog record. It survives restarts and has no expiry.
type Session struct {
	ChatID int64  `json:"chat_id"`
	UserID string `json:"user_id"`
	State  State  `json:"state"`

	Category       Category `json:"category,omitempty"`
	Works          []string `json:"works,omitempty"`
	ShowerWork     string   `json:"shower_work,omitempty"`
	MirrorWorkBase string   `json:"mirror_work_base,omitempty"`
	ManualInput    bool     `json:"manual_input,omitempty"`
	Address        *string  `json:"address,omitempty"`
	Comment        *string  `json:"comment,omitempty"`

	// SelectedDate is DD.MM.YYYY; empty means "today" at finalize time.
	SelectedDate string   `json:"selected_date,omitempty"`
	DateSource   Category `json:"date_source,omitempty"`
	PickerMonth  int      `json:"picker_month,omitempty"`
	PickerYear   int      `json:"picker_year,omitempty"`

	PendingDeleteID *int64             `json:"pending_delete_id,omitempty"`
	ViewingSnapshot []domain.WorkEntry `json:"viewing_snapshot,omitempty"`
	WorkDaysDraft   []domain.Weekday   `json:"work_days_draft,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession returns an empty session positioned at the root state.
func NewSession(chatID int64, userID string) *Session {
	return &Session{
		ChatID: chatID,
		UserID: userID,
		State:  Root,
	}
}

// Clone returns a deep copy so handlers can mutate freely.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}

	c := *s
	c.Works = append([]string(nil), s.Works...)
	c.ViewingSnapshot = append([]domain.WorkEntry(nil), s.ViewingSnapshot...)
	c.WorkDaysDraft = append([]domain.Weekday(nil), s.WorkDaysDraft...)
	if s.Address != nil {
		v := *s.Address
		c.Address = &v
	}
	if s.Comment != nil {
		v := *s.Comment
		c.Comment = &v
	}
	if s.PendingDeleteID != nil {
		v := *s.PendingDeleteID
		c.PendingDeleteID = &v
	}

	return &c
}

// Reset clears every scratch field and moves to the root state.
func (s *Session) Reset() {
	*s = Session{
		ChatID:    s.ChatID,
		UserID:    s.UserID,
		State:     Root,
		UpdatedAt: s.UpdatedAt,
	}
}

// ClearWorkScratch drops the fields describing the single work being captured.
func (s *Session) ClearWorkScratch() {
	s.ShowerWork = ""
	s.MirrorWorkBase = ""
	s.ManualInput = false
}

// ClearDatePicker drops the day-of-month picker.
func (s *Session) ClearDatePicker() {
	s.PickerMonth = 0
	s.PickerYear = 0
}

// HasPicker reports whether a day-of-month picker is active.
func (s *Session) HasPicker() bool {
	return s.PickerMonth >= 1 && s.PickerMonth <= 12 && s.PickerYear > 0
}
