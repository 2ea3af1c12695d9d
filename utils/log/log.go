package log

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/rnr-capital/feedengine/utils/flag"
)

// global accessible logger
var (
	LogV2 *Logger
)

// This init function is only for testing cases, where the entry point is not
// main function. Unit test will fail with nil pointer dereference if we don't
// init here.
func init() {
	initLogger()
}

type Logger struct {
	*logrus.Entry
}

func (l *Logger) Infof(params ...interface{}) {
	l.Info(joinParams(params))
}

func (l *Logger) Debugf(params ...interface{}) {
	l.Debug(joinParams(params))
}

func (l *Logger) Errorf(params ...interface{}) {
	l.Error(joinParams(params))
}

func joinParams(params []interface{}) string {
	strs := make([]string, len(params))

	for i, param := range params {
		strs[i] = fmt.Sprint(param)
	}

	return strings.Join(strs, ", ")
}

func initLogger() {
	base := logrus.New()
	base.SetOutput(os.Stderr)

	env := os.Getenv("FEEDENGINE_ENV")
	if len(env) == 0 {
		env = "unknown"
	}
	if env == "prod" {
		base.SetFormatter(&logrus.JSONFormatter{})
		base.SetLevel(logrus.InfoLevel)
	} else {
		base.SetLevel(logrus.DebugLevel)
	}

	service := "feedengine"
	if flag.ServiceName != nil {
		service = strings.ReplaceAll(*flag.ServiceName, "_", "-")
	}

	LogV2 = &Logger{base.WithFields(logrus.Fields{
		"service": service,
		"env":     env,
	})}
}
