// application/scheduler/scheduler.go
package scheduler

import (
	"context"
	"sync"
	"time"

	"competitor-price-monitor/pkg/logger"
)

const (
	// DefaultTick - период проверки расписания
	DefaultTick = 30 * time.Second
	// DefaultJobTimeout - предел запуска, если ни задача, ни расписание его не задают
	DefaultJobTimeout = time.Hour
)

// Schedule определяет расписание задачи
type Schedule struct {
	kind     scheduleKind
	hour     int
	minute   int
	interval time.Duration
}

type scheduleKind int

const (
	kindDaily    scheduleKind = iota // раз в сутки в HH:MM UTC
	kindInterval                     // каждые N единиц времени
)

// DailyAt создает расписание "каждый день в HH:MM UTC"
func DailyAt(hour, minute int) Schedule {
	return Schedule{kind: kindDaily, hour: hour, minute: minute}
}

// Every создает расписание "каждые N времени"
func Every(d time.Duration) Schedule {
	return Schedule{kind: kindInterval, interval: d}
}

// nextRun вычисляет время следующего запуска относительно now
func (s Schedule) nextRun(now time.Time) time.Time {
	switch s.kind {
	case kindDaily:
		next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, time.UTC)
		if !next.After(now) {
			next = next.Add(24 * time.Hour)
		}
		return next
	case kindInterval:
		return now.Add(s.interval)
	default:
		return now.Add(24 * time.Hour)
	}
}

// Period - промежуток между запусками по расписанию
func (s Schedule) Period() time.Duration {
	switch s.kind {
	case kindDaily:
		return 24 * time.Hour
	case kindInterval:
		return s.interval
	default:
		return 0
	}
}

// Valid сообщает, можно ли планировать задачу по этому расписанию
func (s Schedule) Valid() bool {
	switch s.kind {
	case kindDaily:
		return s.hour >= 0 && s.hour < 24 && s.minute >= 0 && s.minute < 60
	default:
		return s.Period() > 0
	}
}

// Job описывает одну планируемую задачу
type Job struct {
	Name        string
	Description string
	Schedule    Schedule
	// RunImmediately - первый запуск сразу после Start
	RunImmediately bool
	// Timeout - предел одного запуска. 0 - период расписания.
	Timeout time.Duration
	Handler func(ctx context.Context) error

	mu      sync.Mutex
	nextRun time.Time
	lastRun time.Time
	lastErr error
	runs    int
	running bool
}

// Status возвращает текущее состояние задачи
func (j *Job) Status() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return JobStatus{
		Name:        j.Name,
		Description: j.Description,
		NextRun:     j.nextRun,
		LastRun:     j.lastRun,
		LastErr:     j.lastErr,
		Runs:        j.runs,
		Running:     j.running,
	}
}

// JobStatus снапшот состояния задачи
type JobStatus struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	NextRun     time.Time `json:"next_run"`
	LastRun     time.Time `json:"last_run"`
	LastErr     error     `json:"-"`
	Runs        int       `json:"runs"`
	Running     bool      `json:"running"`
}

// Option настраивает планировщик
type Option func(*Scheduler)

// WithTick задает период проверки расписания
func WithTick(d time.Duration) Option {
	return func(s *Scheduler) { s.tickEvery = d }
}

// WithJobTimeout задает предел длительности запуска
func WithJobTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.jobTimeout = d }
}

// Scheduler запускает задачи по расписанию. Одна задача не запускается
// повторно, пока предыдущий запуск не завершился.
type Scheduler struct {
	jobs       []*Job
	mu         sync.RWMutex
	tickEvery  time.Duration
	jobTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New создает новый планировщик
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		tickEvery:  DefaultTick,
		jobTimeout: DefaultJobTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register добавляет задачу в планировщик.
// Должен вызываться до Start().
func (s *Scheduler) Register(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if job.RunImmediately {
		job.nextRun = now
	} else {
		job.nextRun = job.Schedule.nextRun(now)
	}
	s.jobs = append(s.jobs, job)

	logger.Info("📋 [Scheduler] Registered job %q, first run at %s",
		job.Name, job.nextRun.Format("2006-01-02 15:04:05 UTC"))
}

// Start запускает цикл планировщика. Отмена parent останавливает
// цикл и прерывает текущие запуски.
func (s *Scheduler) Start(parent context.Context) {
	s.ctx, s.cancel = context.WithCancel(parent)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	logger.Info("✅ [Scheduler] Started (%d jobs)", len(s.jobs))
}

// Stop останавливает планировщик и ждёт завершения текущих задач
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	logger.Info("🛑 [Scheduler] Stopped")
}

// Jobs возвращает статус всех задач
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.RLock()
	jobs := make([]*Job, len(s.jobs))
	copy(jobs, s.jobs)
	s.mu.RUnlock()

	statuses := make([]JobStatus, len(jobs))
	for i, j := range jobs {
		statuses[i] = j.Status()
	}
	return statuses
}

// loop - основной цикл: по тикеру проверяет, какие задачи нужно запустить
func (s *Scheduler) loop() {
	ticker := time.NewTicker(s.tickEvery)
	defer ticker.Stop()

	// Первая проверка сразу при старте
	s.tick()

	for {
		select {
		case <-ticker.C:
			s.tick()
		case <-s.ctx.Done():
			return
		}
	}
}

// tick запускает задачи, у которых наступило время
func (s *Scheduler) tick() {
	now := time.Now().UTC()

	s.mu.RLock()
	jobs := make([]*Job, len(s.jobs))
	copy(jobs, s.jobs)
	s.mu.RUnlock()

	for _, job := range jobs {
		job.mu.Lock()
		due := !job.running && !now.Before(job.nextRun)
		if due {
			job.running = true
		}
		job.mu.Unlock()

		if due {
			s.wg.Add(1)
			go s.run(job)
		}
	}
}

// run выполняет одну задачу и обновляет её состояние
func (s *Scheduler) run(job *Job) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(s.ctx, s.timeoutFor(job))
	defer cancel()

	logger.Info("▶️  [Scheduler] Running job %q", job.Name)
	start := time.Now()

	err := job.Handler(ctx)

	elapsed := time.Since(start)

	job.mu.Lock()
	job.lastRun = start
	job.lastErr = err
	job.runs++
	job.running = false
	job.nextRun = job.Schedule.nextRun(time.Now().UTC())
	nextRun := job.nextRun
	job.mu.Unlock()

	if err != nil {
		logger.Error("❌ [Scheduler] Job %q failed after %v: %v", job.Name, elapsed, err)
	} else {
		logger.Info("✅ [Scheduler] Job %q done in %v. Next run: %s",
			job.Name, elapsed, nextRun.Format("2006-01-02 15:04:05 UTC"))
	}
}

// timeoutFor выбирает предел запуска: задача, затем период расписания
func (s *Scheduler) timeoutFor(job *Job) time.Duration {
	if job.Timeout > 0 {
		return job.Timeout
	}
	if p := job.Schedule.Period(); p > 0 {
		return p
	}
	return s.jobTimeout
}
