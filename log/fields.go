package log

import (
	"go.uber.org/zap"
)

var (
	Skip        = zap.Skip
	Binary      = zap.Binary
	Bool        = zap.Bool
	Boolp       = zap.Boolp
	ByteString  = zap.ByteString
	Float64     = zap.Float64
	Float64p    = zap.Float64p
	Float32     = zap.Float32
	Float32p    = zap.Float32p
	Int         = zap.Int
	Intp        = zap.Intp
	Int64       = zap.Int64
	Int64p      = zap.Int64p
	Int32       = zap.Int32
	Uint        = zap.Uint
	Uint64      = zap.Uint64
	Uint32      = zap.Uint32
	String      = zap.String
	Stringp     = zap.Stringp
	Strings     = zap.Strings
	Time        = zap.Time
	Duration    = zap.Duration
	Any         = zap.Any
	Namespace   = zap.Namespace
	Stringer    = zap.Stringer
	ErrorField  = zap.Error
	NamedError  = zap.NamedError
	Reflect     = zap.Reflect
	Stack       = zap.Stack
	StackSkip   = zap.StackSkip
	Inline      = zap.Inline
	Object      = zap.Object
	Array       = zap.Array
	Ints        = zap.Ints
	Float64s    = zap.Float64s
	Durations   = zap.Durations
	Errors      = zap.Errors
	Dict        = zap.Dict
	ByteStrings = zap.ByteStrings
)
