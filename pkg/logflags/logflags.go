package logflags

import (
	"errors"
	"io"
	"io/ioutil"
	"log"
	"strings"

	"github.com/sirupsen/logrus"
)

var unitDecodeErrors = false
var lineDecodeErrors = false
var frameDecodeErrors = false
var loclistDecodeErrors = false
var objectTrace = false
var debuglinkTrace = false

// logOut, when set, is where every Logger this package builds writes to,
// overriding logrus's own default of os.Stderr. Tests swap it out to
// capture output without a real file descriptor.
var logOut io.Writer

var textFormatterInstance = &logrus.TextFormatter{FullTimestamp: true}

// makeLogger builds a Logger at the given level, deferring to
// loggerFactory when SetLoggerFactory has installed one.
func makeLogger(level logrus.Level, fields Fields) Logger {
	if loggerFactory != nil {
		return loggerFactory(level, fields, logOut)
	}
	backend := logrus.New()
	backend.Level = level
	backend.Formatter = textFormatterInstance
	if logOut != nil {
		backend.Out = logOut
	}
	return &logrusLogger{backend.WithFields(logrus.Fields(fields))}
}

// makeFlaggableLogger builds a Logger at DebugLevel when flag is set, and
// ErrorLevel otherwise, for the package-level boolean switches Setup fills
// in from -log.
func makeFlaggableLogger(flag bool, fields Fields) Logger {
	level := logrus.ErrorLevel
	if flag {
		level = logrus.DebugLevel
	}
	return makeLogger(level, fields)
}

// UnitDecodeErrors returns true if pkg/dwarf/unit should log recoverable
// DIE and abbreviation decode errors.
func UnitDecodeErrors() bool {
	return unitDecodeErrors
}

// UnitLogger returns a configured logger for pkg/dwarf/unit.
func UnitLogger() Logger {
	return makeFlaggableLogger(unitDecodeErrors, Fields{"layer": "unit"})
}

// LineDecodeErrors returns true if pkg/dwarf/line should log its
// recoverable errors.
func LineDecodeErrors() bool {
	return lineDecodeErrors
}

// LineLogger returns a configured logger for pkg/dwarf/line.
func LineLogger() Logger {
	return makeFlaggableLogger(lineDecodeErrors, Fields{"layer": "line"})
}

// FrameDecodeErrors returns true if pkg/dwarf/frame should log recoverable
// CIE/FDE decode errors.
func FrameDecodeErrors() bool {
	return frameDecodeErrors
}

// FrameLogger returns a configured logger for pkg/dwarf/frame.
func FrameLogger() Logger {
	return makeFlaggableLogger(frameDecodeErrors, Fields{"layer": "frame"})
}

// LoclistDecodeErrors returns true if pkg/dwarf/loclist should log
// recoverable location/range list decode errors.
func LoclistDecodeErrors() bool {
	return loclistDecodeErrors
}

// LoclistLogger returns a configured logger for pkg/dwarf/loclist.
func LoclistLogger() Logger {
	return makeFlaggableLogger(loclistDecodeErrors, Fields{"layer": "loclist"})
}

// ObjectTrace returns true if container/section discovery (ELF, Mach-O,
// PE sniffing) should log what it finds.
func ObjectTrace() bool {
	return objectTrace
}

// ObjectLogger returns a configured logger for object container discovery.
func ObjectLogger() Logger {
	return makeFlaggableLogger(objectTrace, Fields{"layer": "object"})
}

// DebuglinkTrace returns true if supplementary debug-file resolution
// (.gnu_debuglink, dSYM bundles) should log its search path.
func DebuglinkTrace() bool {
	return debuglinkTrace
}

// DebuglinkLogger returns a configured logger for debuglink/dSYM resolution.
func DebuglinkLogger() Logger {
	return makeFlaggableLogger(debuglinkTrace, Fields{"layer": "debuglink"})
}

var errLogstrWithoutLog = errors.New("--log-output specified without --log")

// Setup sets package-level log flags based on the contents of logstr.
func Setup(logFlag bool, logstr string) error {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	if !logFlag {
		log.SetOutput(ioutil.Discard)
		if logstr != "" {
			return errLogstrWithoutLog
		}
		return nil
	}
	if logstr == "" {
		logstr = "unit"
	}
	v := strings.Split(logstr, ",")
	for _, logcmd := range v {
		switch logcmd {
		case "unit":
			unitDecodeErrors = true
		case "line":
			lineDecodeErrors = true
		case "frame":
			frameDecodeErrors = true
		case "loclist":
			loclistDecodeErrors = true
		case "object":
			objectTrace = true
		case "debuglink":
			debuglinkTrace = true
		}
	}
	return nil
}
