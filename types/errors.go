package types

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Status is the native-style return code of an engine call.
type Status int

const (
	StatusOK          Status = 1
	StatusErrorInput  Status = -2
	StatusErrorMemory Status = -3
	StatusError       Status = -4
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "METIS_OK"
	case StatusErrorInput:
		return "METIS_ERROR_INPUT"
	case StatusErrorMemory:
		return "METIS_ERROR_MEMORY"
	case StatusError:
		return "METIS_ERROR"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Kind is the closed set of failure classes surfaced to callers.
type Kind uint8

const (
	KindInvalidGraph Kind = iota
	KindInvalidMesh
	KindPartitionInput
	KindPartitionMemory
	KindPartitionEngine
	KindGroupConsistency
)

var (
	ErrInvalidGraph     = errors.New("invalid graph")
	ErrInvalidMesh      = errors.New("invalid mesh")
	ErrPartitionInput   = errors.New("invalid partitioning input")
	ErrPartitionMemory  = errors.New("partitioning working set exceeds available memory")
	ErrPartitionEngine  = errors.New("partitioning engine failure")
	ErrGroupConsistency = errors.New("process group parameters diverge")
)

var kindSentinels = [...]error{
	KindInvalidGraph:     ErrInvalidGraph,
	KindInvalidMesh:      ErrInvalidMesh,
	KindPartitionInput:   ErrPartitionInput,
	KindPartitionMemory:  ErrPartitionMemory,
	KindPartitionEngine:  ErrPartitionEngine,
	KindGroupConsistency: ErrGroupConsistency,
}

var kindStatus = [...]Status{
	KindInvalidGraph:     StatusErrorInput,
	KindInvalidMesh:      StatusErrorInput,
	KindPartitionInput:   StatusErrorInput,
	KindPartitionMemory:  StatusErrorMemory,
	KindPartitionEngine:  StatusError,
	KindGroupConsistency: StatusErrorInput,
}

// statusKinds translates native return codes; anything unknown is an engine
// failure.
var statusKinds = map[Status]Kind{
	StatusErrorInput:  KindPartitionInput,
	StatusErrorMemory: KindPartitionMemory,
	StatusError:       KindPartitionEngine,
}

func (k Kind) String() string {
	return [...]string{"InvalidGraphError", "InvalidMeshError", "PartitionInputError",
		"PartitionMemoryError", "PartitionEngineError", "GroupConsistencyError"}[k]
}

// Args is the argument snapshot attached to an error for diagnosis.
type Args map[string]any

func (a Args) String() string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s=%s", k, summarize(a[k]))
	}
	sb.WriteByte('}')
	return sb.String()
}

// summarize keeps long slices from flooding error messages.
func summarize(v any) string {
	s := fmt.Sprintf("%v", v)
	if len(s) > 64 {
		s = s[:61] + "..."
	}
	return s
}

// Error is the error value returned by every engine operation.
type Error struct {
	Op     string
	Kind   Kind
	Status Status
	Args   Args
	Err    error
}

func (e *Error) Error() string {
	msg := kindSentinels[e.Kind].Error()
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s:%s:%s:%s: %s", e.Op, e.Kind, e.Status, e.Args, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return target == kindSentinels[e.Kind]
}

// NewError builds an error of the given kind. The format arguments describe the
// specific failure.
func NewError(op string, kind Kind, args Args, format string, a ...any) *Error {
	return &Error{
		Op:     op,
		Kind:   kind,
		Status: kindStatus[kind],
		Args:   args,
		Err:    fmt.Errorf(format, a...),
	}
}

// FromStatus translates a native return code into an error. StatusOK yields nil.
func FromStatus(op string, status Status, args Args) error {
	if status == StatusOK {
		return nil
	}
	kind, ok := statusKinds[status]
	if !ok {
		kind = KindPartitionEngine
	}
	return &Error{Op: op, Kind: kind, Status: status, Args: args}
}

// StatusOf returns the native return code carried by err.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return StatusError
}

// KindOf reports the failure class of err, defaulting to an engine failure for
// foreign errors.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return KindPartitionEngine, false
}

// Retriable is true only for resource exhaustion, where a smaller problem or
// fewer parts may succeed.
func Retriable(err error) bool {
	return errors.Is(err, ErrPartitionMemory)
}
