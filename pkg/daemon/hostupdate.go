package daemon

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// HostUpdater runs the periodic host update: every tick of a cron
// schedule it asks the coordinator to update all stored instances, the
// way a launcher refreshes its widgets on its own period.
type HostUpdater struct {
	Task func() // task callback

	parser cron.Parser

	mu       sync.Mutex
	schedule cron.Schedule
	nextRun  time.Time
	running  bool

	controlCh chan cron.Schedule
	stopCh    chan struct{}
}

func NewHostUpdater(task func()) *HostUpdater {
	if task == nil {
		panic("task function cannot be nil")
	}

	return &HostUpdater{
		Task:      task,
		parser:    cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		controlCh: make(chan cron.Schedule, 4),
		stopCh:    make(chan struct{}),
	}
}

func (u *HostUpdater) Stop() {
	select {
	case <-u.stopCh: // already closed
	default:
		close(u.stopCh)
	}
}

func (u *HostUpdater) Start() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.running {
		return
	}
	u.running = true
	go u.runScheduled()
}

// Schedule sets the cron expression. It may be called while running.
func (u *HostUpdater) Schedule(cronExpr string) error {
	sh, err := u.parser.Parse(cronExpr)
	if err != nil {
		return err
	}

	u.mu.Lock()
	running := u.running
	if !running {
		u.schedule = sh
		u.nextRun = sh.Next(time.Now())
	}
	u.mu.Unlock()

	if running {
		select {
		case u.controlCh <- sh:
		default:
		}
	}
	return nil
}

func (u *HostUpdater) Status() (nextRun time.Time, running bool) {
	u.mu.Lock()
	defer u.mu.Unlock()

	nextRun = u.nextRun
	running = u.running
	return
}

func (u *HostUpdater) runScheduled() {
	defer func() {
		u.mu.Lock()
		u.running = false
		u.mu.Unlock()
		logrus.Debug("host updater stopped")
	}()

	logrus.Debug("host updater started")

	for {
		schedule, nextRun := u.snapshot()
		var timer *time.Timer
		if schedule == nil || nextRun.IsZero() {
			timer = time.NewTimer(time.Hour * 10000)
		} else {
			wait := time.Until(nextRun)
			if wait < 0 {
				wait = 0
			}
			timer = time.NewTimer(wait)
		}

		select {
		case <-timer.C:
			if schedule == nil || nextRun.IsZero() {
				continue
			}
			logrus.Debugf("running host update scheduled at %s", nextRun.Format(time.DateTime))
			go u.Task()
			u.advanceNextRun()
		case <-u.stopCh:
			timer.Stop()
			return
		case sh := <-u.controlCh:
			timer.Stop()
			u.mu.Lock()
			u.schedule = sh
			u.nextRun = sh.Next(time.Now())
			u.mu.Unlock()
		}
	}
}

func (u *HostUpdater) snapshot() (cron.Schedule, time.Time) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.schedule, u.nextRun
}

// advanceNextRun moves past now, so a long stall does not replay every
// missed tick.
func (u *HostUpdater) advanceNextRun() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.schedule == nil {
		return
	}
	u.nextRun = u.schedule.Next(time.Now())
}
