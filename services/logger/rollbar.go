package logsvc

import (
	"fmt"
	"log"
	"strings"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/barakah/core"
	"github.com/trezcool/barakah/core/session"
)

// RollbarLogger writes to a std logger and reports to Rollbar once enabled.
// Debug messages are only written in debug mode and never reported.
type RollbarLogger struct {
	std   *log.Logger
	debug bool
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetPlatform(conf.AppName)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{std: std, debug: conf.Debug}
}

func (l *RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	if l.debug {
		l.write("DEBUG", msg, args)
	}
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	l.report(rollbar.INFO, msg, args)
	l.write("INFO", msg, args)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	l.report(rollbar.WARN, msg, args)
	l.write("WARN", msg, args)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	l.report(rollbar.ERR, msg, args)
	l.write("ERROR", msg, args)
}

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.report(rollbar.CRIT, msg, args)
	rollbar.Wait()
	l.write("FATAL", msg, args)
	l.std.Fatal(msg)
}

// report sends `msg` with its error and extras; a session user becomes the Rollbar person.
// expected args: error, map[string]interface{}, session.User | *session.User
func (l *RollbarLogger) report(level, msg string, args []interface{}) {
	interfaces := make([]interface{}, 0, len(args)+1)
	interfaces = append(interfaces, msg)

	var usr *session.User
	for _, arg := range args {
		switch v := arg.(type) {
		case session.User:
			if usr == nil {
				usr = &v
			}
		case *session.User:
			if usr == nil && v != nil {
				usr = v
			}
		default:
			interfaces = append(interfaces, arg)
		}
	}
	if usr != nil {
		rollbar.SetPerson(usr.ID.String(), usr.Role, usr.Email)
	} else {
		rollbar.ClearPerson()
	}
	rollbar.Log(level, interfaces...)
}

// write prints one line per message; errors get their stack on the following lines.
func (l *RollbarLogger) write(level, msg string, args []interface{}) {
	var b strings.Builder
	b.WriteString(level)
	b.WriteString(" ")
	b.WriteString(msg)
	var stacks []error
	for _, arg := range args {
		switch v := arg.(type) {
		case error:
			fmt.Fprintf(&b, " | %v", v)
			stacks = append(stacks, v)
		case session.User:
			fmt.Fprintf(&b, " | user=%s(%s)", v.ID, v.Role)
		case *session.User:
			if v != nil {
				fmt.Fprintf(&b, " | user=%s(%s)", v.ID, v.Role)
			}
		default:
			fmt.Fprintf(&b, " | %+v", v)
		}
	}
	_ = l.std.Output(3, b.String())
	if l.debug {
		for _, err := range stacks {
			l.std.Printf("%+v", err)
		}
	}
}
