package main

import (
	"fmt"
	"sync"
	"time"

	"axlcd/internal/lcd"
	"axlcd/internal/model"
)

type page int

const (
	pageClock page = iota
	pageHost
	pageCount
)

// statusScreen is the small set of pages the daemon shows. Up/Left go to
// the previous page, Down/Right to the next.
type statusScreen struct {
	mu       sync.Mutex
	d        lcd.Driver
	hostname string
	started  time.Time
	current  page
}

func newStatusScreen(d lcd.Driver, hostname string, started time.Time) *statusScreen {
	if hostname == "" {
		hostname = "unknown host"
	}
	return &statusScreen{d: d, hostname: hostname, started: started}
}

// HandleKey switches pages and reports whether the screen needs a redraw.
func (s *statusScreen) HandleKey(b model.Button) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch b {
	case model.ButtonUp, model.ButtonLeft:
		s.current = (s.current + pageCount - 1) % pageCount
	case model.ButtonDown, model.ButtonRight:
		s.current = (s.current + 1) % pageCount
	default:
		return false
	}
	return true
}

// Render writes the current page into the display grid. It does not flush.
func (s *statusScreen) Render(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var top, bottom string
	switch s.current {
	case pageHost:
		top = s.hostname
		bottom = "up " + formatUptime(now.Sub(s.started))
	default:
		top = now.Format("Mon 2006-01-02")
		bottom = now.Format("15:04:05")
	}

	s.d.Clear()
	s.d.WriteString(1, 1, top)
	s.d.WriteString(1, 2, bottom)
}

func formatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Truncate(time.Second)
	days := int(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	sec := int((d % time.Minute) / time.Second)
	if days > 0 {
		return fmt.Sprintf("%dd %02d:%02d:%02d", days, h, m, sec)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
}
