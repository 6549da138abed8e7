// Notification center for HelixScreen
//
// Copyright (C) 2026 HelixScreen Contributors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package ui

import (
	"time"

	"helixscreen/pkg/log"
)

// historyCap bounds the retained notification history.
const historyCap = 50

// Level grades a notification's severity and its presentation: toasts
// for info and warnings, a modal alert for errors and attention events.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
	LevelAttention
)

func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	case LevelAttention:
		return "attention"
	default:
		return "info"
	}
}

// Notification is one user-visible event. Repeats of the same
// (Category, Code) bump Count on the existing entry instead of flooding
// the history.
type Notification struct {
	Level    Level
	Category string
	Code     string
	Message  string
	Time     time.Time
	Count    int
}

// NotificationCenter collects notifications, deduplicates repeats, and
// routes them to the toast or alert surface.
type NotificationCenter struct {
	logger  *log.Logger
	history []*Notification

	// OnToast presents transient info/warning notifications.
	OnToast func(n Notification)
	// OnAlert presents errors and attention events that need
	// acknowledgement.
	OnAlert func(n Notification)

	now func() time.Time
}

func NewNotificationCenter() *NotificationCenter {
	return &NotificationCenter{
		logger: log.New("Notify"),
		now:    time.Now,
	}
}

// Post records a notification and presents it. Returns the stored entry.
func (nc *NotificationCenter) Post(level Level, category, code, message string) Notification {
	var entry *Notification
	for _, n := range nc.history {
		if n.Category == category && n.Code == code {
			entry = n
			break
		}
	}
	if entry != nil {
		entry.Count++
		entry.Level = level
		entry.Message = message
		entry.Time = nc.now()
	} else {
		entry = &Notification{
			Level:    level,
			Category: category,
			Code:     code,
			Message:  message,
			Time:     nc.now(),
			Count:    1,
		}
		nc.history = append(nc.history, entry)
		if len(nc.history) > historyCap {
			nc.history = nc.history[len(nc.history)-historyCap:]
		}
	}

	nc.logger.Info("[%s] %s/%s: %s", entry.Level, category, code, message)

	if level >= LevelError {
		if nc.OnAlert != nil {
			nc.OnAlert(*entry)
		}
	} else if nc.OnToast != nil {
		nc.OnToast(*entry)
	}
	return *entry
}

// Info posts an informational toast with no dedupe key.
func (nc *NotificationCenter) Info(message string) {
	nc.Post(LevelInfo, "general", message, message)
}

// History returns the retained notifications, oldest first.
func (nc *NotificationCenter) History() []Notification {
	out := make([]Notification, len(nc.history))
	for i, n := range nc.history {
		out[i] = *n
	}
	return out
}

// Clear drops the history.
func (nc *NotificationCenter) Clear() {
	nc.history = nil
}
