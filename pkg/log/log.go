// Package log implements a pub-sub event logger whose subscribers can
// print to stdout or persist to the bbolt-backed DB (db.go). API shaped
// after the teacher's Logger (Event builder + channel fan-out); the
// "Monitor" field becomes "Job" since events here are emitted by scan
// jobs, not camera monitors.
package log

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Level defines log level.
type Level uint8

// Logging constants.
const (
	LevelError   Level = 16
	LevelWarning Level = 24
	LevelInfo    Level = 32
	LevelDebug   Level = 48
)

// UnixMillisecond is a millisecond-resolution timestamp.
type UnixMillisecond uint64

// UnixMicro is a microsecond-resolution timestamp.
type UnixMicro uint64

// Event defines a log event under construction.
type Event struct {
	level Level
	time  UnixMillisecond
	src   string
	job   string

	logger *Logger
}

// Log defines a completed log entry.
type Log struct {
	Level Level
	Time  UnixMillisecond
	Msg   string
	Src   string
	Job   string
}

// Src sets the event's source component name.
func (e *Event) Src(source string) *Event {
	e.src = source
	return e
}

// Job sets the scan job this event belongs to.
func (e *Event) Job(jobID string) *Event {
	e.job = jobID
	return e
}

// Time overrides the event's timestamp.
func (e *Event) Time(t time.Time) *Event {
	e.time = UnixMillisecond(t.UnixMilli())
	return e
}

// Msg sends the event with msg as the message field.
func (e *Event) Msg(msg string) {
	e.logger.feed <- Log{
		Time:  e.time,
		Level: e.level,
		Msg:   msg,
		Src:   e.src,
		Job:   e.job,
	}
}

// Msgf sends the event with a formatted message.
func (e *Event) Msgf(format string, v ...interface{}) {
	e.Msg(fmt.Sprintf(format, v...))
}

// Feed is a read-only view of a log feed.
type Feed <-chan Log
type logFeed chan Log

// Logger fans out log events to every subscriber.
type Logger struct {
	feed  logFeed
	sub   chan logFeed
	unsub chan logFeed

	wg *sync.WaitGroup
}

// NewLogger returns a Logger ready to Start.
func NewLogger(wg *sync.WaitGroup) *Logger {
	return &Logger{
		feed:  make(logFeed),
		sub:   make(chan logFeed),
		unsub: make(chan logFeed),
		wg:    wg,
	}
}

// Start runs the fan-out loop until ctx is canceled.
func (l *Logger) Start(ctx context.Context) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		subs := map[logFeed]struct{}{}
		for {
			select {
			case <-ctx.Done():
				return
			case ch := <-l.sub:
				subs[ch] = struct{}{}
			case ch := <-l.unsub:
				close(ch)
				delete(subs, ch)
			case msg := <-l.feed:
				for ch := range subs {
					ch <- msg
				}
			}
		}
	}()
}

// CancelFunc cancels a log feed subscription.
type CancelFunc func()

// Subscribe returns a new feed of every logged event plus a CancelFunc.
func (l *Logger) Subscribe() (<-chan Log, CancelFunc) {
	feed := make(logFeed)
	l.sub <- feed
	cancel := func() { l.unSubscribe(feed) }
	return feed, cancel
}

func (l *Logger) unSubscribe(feed logFeed) {
	for {
		select {
		case l.unsub <- feed:
			return
		case <-feed:
		}
	}
}

// LogToStdout prints every event on the feed to stdout until ctx is
// canceled.
func (l *Logger) LogToStdout(ctx context.Context) {
	feed, cancel := l.Subscribe()
	defer cancel()
	for {
		select {
		case entry := <-feed:
			printLog(entry)
		case <-ctx.Done():
			return
		}
	}
}

func printLog(entry Log) {
	fmt.Println(formatLog(entry))
}

// LogToWriter writes every event on the feed to w, one line each, until
// ctx is canceled. Used to feed a rotating file sink (e.g.
// gopkg.in/natefinch/lumberjack.v2) alongside LogToStdout.
func (l *Logger) LogToWriter(ctx context.Context, w io.Writer) {
	feed, cancel := l.Subscribe()
	defer cancel()
	for {
		select {
		case entry := <-feed:
			fmt.Fprintln(w, formatLog(entry))
		case <-ctx.Done():
			return
		}
	}
}

func formatLog(entry Log) string {
	var output string
	switch entry.Level {
	case LevelError:
		output += "[ERROR] "
	case LevelWarning:
		output += "[WARNING] "
	case LevelInfo:
		output += "[INFO] "
	case LevelDebug:
		output += "[DEBUG] "
	}
	if entry.Job != "" {
		output += entry.Job + ": "
	}
	if entry.Src != "" {
		output += strings.ToUpper(entry.Src[:1]) + entry.Src[1:] + ": "
	}
	output += entry.Msg
	return output
}

// Error starts a new error-level event.
func (l *Logger) Error() *Event {
	return &Event{level: LevelError, time: nowMillis(), logger: l}
}

// Warn starts a new warning-level event.
func (l *Logger) Warn() *Event {
	return &Event{level: LevelWarning, time: nowMillis(), logger: l}
}

// Info starts a new info-level event.
func (l *Logger) Info() *Event {
	return &Event{level: LevelInfo, time: nowMillis(), logger: l}
}

// Debug starts a new debug-level event.
func (l *Logger) Debug() *Event {
	return &Event{level: LevelDebug, time: nowMillis(), logger: l}
}

func nowMillis() UnixMillisecond {
	return UnixMillisecond(time.Now().UnixMilli())
}
