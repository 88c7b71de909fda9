package stream

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/kbukum/lexstream/errors"
	"github.com/kbukum/lexstream/logger"
)

// Action tells the dispatch loop what to do after an event was applied.
type Action int

const (
	// Continue waits for more events.
	Continue Action = iota
	// Resolve ends the stream with Result.
	Resolve
	// Fail ends the stream with Err.
	Fail
)

func (a Action) String() string {
	switch a {
	case Resolve:
		return "resolve"
	case Fail:
		return "fail"
	default:
		return "continue"
	}
}

// State is the assembler's position in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateReceiving
	StateAssembling
	StateResolved
	StateFailed
)

var stateNames = [...]string{"idle", "receiving", "assembling", "resolved", "failed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Progress is one progress update as seen by callers.
type Progress struct {
	Stage string
	// Value is the overall progress in [0,1]. It never decreases.
	Value float64
	// StageProgress is the backend's progress within Stage.
	StageProgress float64
	Message       string
	Details       map[string]any
}

// Partial reports a buffered result chunk.
type Partial struct {
	Index    int
	Data     string
	Received int
	// Total is the announced chunk count, 0 when unknown.
	Total int
}

// Result is a resolved stream's payload.
type Result struct {
	Payload json.RawMessage
	Chunked bool
	Chunks  int
	// Value is the output of Request.Decode, if one was set.
	Value any
}

// Sink receives the assembler's incremental updates.
type Sink interface {
	Progress(Progress)
	Partial(Partial)
}

// Assembler turns decoded events into progress updates and one result.
// It is not safe for concurrent use.
type Assembler struct {
	sink Sink
	log  *logger.Logger

	state    State
	weights  map[string]float64
	stages   map[string]float64
	reported float64

	expected     int
	chunks       map[int]string
	lastIndex    int
	completeSeen bool

	result Result
	err    *apperrors.AppError
}

// NewAssembler creates an assembler that reports to sink.
func NewAssembler(sink Sink, log *logger.Logger) *Assembler {
	if log == nil {
		log = logger.Nop()
	}
	return &Assembler{
		sink:      sink,
		log:       log,
		stages:    make(map[string]float64),
		chunks:    make(map[int]string),
		lastIndex: -1,
	}
}

// Apply feeds one event. After Resolve or Fail the assembler ignores input.
func (a *Assembler) Apply(ev Event) Action {
	if a.Done() {
		return Continue
	}
	if a.state == StateIdle {
		a.state = StateReceiving
	}

	switch e := ev.(type) {
	case ConfigEvent:
		a.configure(e)
	case ProgressEvent:
		a.progress(e)
	case CompletionStartEvent:
		return a.start(e)
	case ChunkEvent:
		return a.chunk(e)
	case CompleteEvent:
		return a.complete(e)
	case ErrorEvent:
		return a.fail(errRemote(e))
	}
	return Continue
}

// State returns the current lifecycle state.
func (a *Assembler) State() State { return a.state }

// Done reports whether the assembler resolved or failed.
func (a *Assembler) Done() bool {
	return a.state == StateResolved || a.state == StateFailed
}

// Result returns the resolved payload.
func (a *Assembler) Result() Result { return a.result }

// Err returns the failure, nil unless the state is StateFailed.
func (a *Assembler) Err() *apperrors.AppError { return a.err }

// Reported returns the last overall progress handed to the sink.
func (a *Assembler) Reported() float64 { return a.reported }

// AwaitingChunks reports whether the end of a chunked result is known but
// some indexes are still missing.
func (a *Assembler) AwaitingChunks() bool {
	if a.Done() {
		return false
	}
	return a.lastIndex >= 0 || a.completeSeen
}

// maxListedMissing caps how many missing indexes Missing returns.
const maxListedMissing = 32

// Missing returns up to the first 32 chunk indexes not yet received below
// the known end, and how many are missing in total.
func (a *Assembler) Missing() (first []int, count int) {
	end := a.end()
	if end < 0 {
		return nil, 0
	}
	count = end + 1 - len(a.chunks)
	for i := 0; i <= end && len(first) < min(count, maxListedMissing); i++ {
		if _, ok := a.chunks[i]; !ok {
			first = append(first, i)
		}
	}
	return first, count
}

// end is the highest chunk index the result is known to reach.
func (a *Assembler) end() int {
	if a.lastIndex >= 0 {
		return a.lastIndex
	}
	if a.expected > 0 {
		return a.expected - 1
	}
	end := -1
	for i := range a.chunks {
		end = max(end, i)
	}
	return end
}

// Expire fails a stream still waiting for chunks.
func (a *Assembler) Expire() Action {
	if a.Done() {
		return Continue
	}
	first, count := a.Missing()
	return a.fail(errProtocol("missing result chunks", map[string]any{"missing": first, "missing_count": count}))
}

func (a *Assembler) configure(e ConfigEvent) {
	var sum float64
	for _, w := range e.Weights {
		sum += w
	}
	a.weights = make(map[string]float64, len(e.Weights))
	for stage, w := range e.Weights {
		a.weights[stage] = w / sum
	}
}

func (a *Assembler) progress(e ProgressEvent) {
	if prev, ok := a.stages[e.Stage]; ok && e.Progress < prev {
		a.log.Warn("stage progress went backwards", logger.Fields(
			logger.FieldStage, e.Stage, "previous", prev, logger.FieldProgress, e.Progress,
		))
	} else {
		a.stages[e.Stage] = e.Progress
	}

	value := e.Progress
	if a.weights != nil {
		if _, known := a.weights[e.Stage]; !known {
			a.log.Debug("progress for unweighted stage", logger.Fields(logger.FieldStage, e.Stage))
		}
		value = 0
		for stage, p := range a.stages {
			value += a.weights[stage] * p
		}
	}
	value = min(value, 1)

	if value < a.reported {
		a.log.Warn("overall progress decreased; holding previous value", logger.Fields(
			logger.FieldStage, e.Stage, "previous", a.reported, logger.FieldProgress, value,
		))
		value = a.reported
	}
	a.reported = value

	a.sink.Progress(Progress{
		Stage:         e.Stage,
		Value:         value,
		StageProgress: e.Progress,
		Message:       e.Message,
		Details:       e.Details,
	})
}

func (a *Assembler) start(e CompletionStartEvent) Action {
	if a.expected > 0 {
		a.log.Warn("ignoring repeated completion_start", logger.Fields("total_chunks", e.TotalChunks))
		return Continue
	}
	if a.lastIndex >= 0 && a.lastIndex+1 != e.TotalChunks {
		return a.countMismatch(a.lastIndex, e.TotalChunks)
	}
	for i := range a.chunks {
		if i >= e.TotalChunks {
			return a.fail(errProtocol("chunk beyond announced total", map[string]any{"index": i, "total": e.TotalChunks}))
		}
	}
	a.expected = e.TotalChunks
	a.state = StateAssembling
	return Continue
}

func (a *Assembler) chunk(e ChunkEvent) Action {
	if a.expected > 0 && e.Index >= a.expected {
		return a.fail(errProtocol("chunk beyond announced total", map[string]any{"index": e.Index, "total": a.expected}))
	}
	if a.lastIndex >= 0 && e.Index > a.lastIndex {
		return a.fail(errProtocol("chunk after the last chunk", map[string]any{"index": e.Index, "last": a.lastIndex}))
	}
	if e.IsLast {
		if a.lastIndex >= 0 && a.lastIndex != e.Index {
			return a.fail(errProtocol("conflicting last chunk", map[string]any{"index": e.Index, "last": a.lastIndex}))
		}
		if a.expected > 0 && e.Index+1 != a.expected {
			return a.countMismatch(e.Index, a.expected)
		}
		for i := range a.chunks {
			if i > e.Index {
				return a.fail(errProtocol("chunk after the last chunk", map[string]any{"index": i, "last": e.Index}))
			}
		}
		a.lastIndex = e.Index
	}

	if _, dup := a.chunks[e.Index]; !dup {
		a.chunks[e.Index] = e.Data
	}
	a.state = StateAssembling

	a.sink.Partial(Partial{
		Index:    e.Index,
		Data:     e.Data,
		Received: len(a.chunks),
		Total:    a.expected,
	})
	return a.tryAssemble()
}

func (a *Assembler) complete(e CompleteEvent) Action {
	if len(e.Payload) > 0 {
		if len(a.chunks) > 0 {
			a.log.Warn("inline result after chunks; using the inline result", logger.Fields("chunks", len(a.chunks)))
		}
		if !json.Valid(e.Payload) {
			return a.fail(errDeserialize(fmt.Errorf("inline result is not valid JSON")))
		}
		a.result = Result{Payload: e.Payload}
		a.state = StateResolved
		return Resolve
	}

	if len(a.chunks) == 0 && a.expected == 0 {
		return a.fail(errProtocol("complete without a result", nil))
	}
	a.completeSeen = true
	return a.tryAssemble()
}

// tryAssemble resolves once the last chunk is known and no index below it
// is missing.
func (a *Assembler) tryAssemble() Action {
	if a.lastIndex < 0 || len(a.chunks) != a.lastIndex+1 {
		return Continue
	}

	indexes := make([]int, 0, len(a.chunks))
	for i := range a.chunks {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	var sb strings.Builder
	for _, i := range indexes {
		sb.WriteString(a.chunks[i])
	}
	payload := json.RawMessage(sb.String())
	if !json.Valid(payload) {
		return a.fail(errDeserialize(fmt.Errorf("assembled result of %d chunks is not valid JSON", len(indexes))))
	}

	a.result = Result{Payload: payload, Chunked: true, Chunks: len(indexes)}
	a.chunks = nil
	a.state = StateResolved
	return Resolve
}

func (a *Assembler) countMismatch(last, total int) Action {
	return a.fail(errProtocol("chunk count mismatch", map[string]any{"last": last, "total": total}))
}

func (a *Assembler) fail(err *apperrors.AppError) Action {
	a.err = err
	a.state = StateFailed
	return Fail
}
