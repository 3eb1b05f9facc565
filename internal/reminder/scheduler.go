// Package reminder schedules the daily "add today's work" reminder for each chat.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// TimeOfDay is a wall-clock time in the scheduler's location.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: want HH:MM", value)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q", value)
	}

	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

// Handle identifies a scheduled job.
type Handle string

// Scheduler runs tasks once a day.
type Scheduler interface {
	ScheduleDaily(jobID string, at TimeOfDay, task func(context.Context)) (Handle, error)
	Cancel(h Handle) error
	Start()
	Shutdown() error
}

// GocronScheduler is a Scheduler on top of gocron, evaluated in a fixed location.
type GocronScheduler struct {
	s   gocron.Scheduler
	log *slog.Logger
}

var _ Scheduler = (*GocronScheduler)(nil)

func NewGocronScheduler(loc *time.Location, clock clockwork.Clock, log *slog.Logger) (*GocronScheduler, error) {
	if log == nil {
		log = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}

	opts := []gocron.SchedulerOption{gocron.WithLocation(loc)}
	if clock != nil {
		opts = append(opts, gocron.WithClock(clock))
	}

	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	return &GocronScheduler{s: s, log: log}, nil
}

func (g *GocronScheduler) ScheduleDaily(jobID string, at TimeOfDay, task func(context.Context)) (Handle, error) {
	job, err := g.s.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(uint(at.Hour), uint(at.Minute), 0))),
		gocron.NewTask(func() {
			task(context.Background())
		}),
		gocron.WithName(jobID),
		gocron.WithTags(jobID),
	)
	if err != nil {
		return "", fmt.Errorf("schedule %s at %s: %w", jobID, at, err)
	}

	g.log.Debug("reminder job scheduled", slog.String("job", jobID), slog.String("at", at.String()))
	return Handle(job.ID().String()), nil
}

func (g *GocronScheduler) Cancel(h Handle) error {
	id, err := uuid.Parse(string(h))
	if err != nil {
		return fmt.Errorf("parse job handle: %w", err)
	}

	if err := g.s.RemoveJob(id); err != nil {
		return fmt.Errorf("remove job %s: %w", h, err)
	}
	return nil
}

func (g *GocronScheduler) Start() {
	g.log.Info("reminder scheduler: starting")
	g.s.Start()
}

func (g *GocronScheduler) Shutdown() error {
	g.log.Info("reminder scheduler: shutting down")
	return g.s.Shutdown()
}
