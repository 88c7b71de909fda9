package stream

import (
	"encoding/json"
	"math"
	"runtime"
	"testing"

	apperrors "github.com/kbukum/lexstream/errors"
)

type recordingSink struct {
	progress []Progress
	partials []Partial
}

func (s *recordingSink) Progress(p Progress) { s.progress = append(s.progress, p) }
func (s *recordingSink) Partial(p Partial)   { s.partials = append(s.partials, p) }

func (s *recordingSink) values() []float64 {
	out := make([]float64, len(s.progress))
	for i, p := range s.progress {
		out[i] = p.Value
	}
	return out
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func chunks(idx ...int) []Event {
	parts := map[int]string{0: `{"word":`, 1: `"serendipity",`, 2: `"definitions":[]}`}
	last := 0
	for _, i := range idx {
		last = max(last, i)
	}
	evs := make([]Event, 0, len(idx))
	for _, i := range idx {
		evs = append(evs, ChunkEvent{Index: i, Data: parts[i], IsLast: i == last})
	}
	return evs
}

func applyAll(a *Assembler, evs ...Event) Action {
	var act Action
	for _, ev := range evs {
		act = a.Apply(ev)
	}
	return act
}

func TestAssembler_SerendipityScenario(t *testing.T) {
	sink := &recordingSink{}
	a := NewAssembler(sink, nil)

	act := applyAll(a,
		ConfigEvent{Weights: map[string]float64{"search": 0.1, "synthesize": 0.9}},
		ProgressEvent{Stage: "search", Progress: 1.0},
		ProgressEvent{Stage: "synthesize", Progress: 0.5},
		CompleteEvent{Payload: json.RawMessage(`{"word":"serendipity"}`)},
	)
	if act != Resolve {
		t.Fatalf("expected Resolve, got %s", act)
	}
	got := sink.values()
	if len(got) != 2 || !near(got[0], 0.1) || !near(got[1], 0.55) {
		t.Errorf("progress = %v, want [0.1 0.55]", got)
	}
	if string(a.Result().Payload) != `{"word":"serendipity"}` || a.Result().Chunked {
		t.Errorf("unexpected result %+v", a.Result())
	}
	if a.State() != StateResolved {
		t.Errorf("state = %s, want resolved", a.State())
	}
}

func TestAssembler_WeightsAreNormalized(t *testing.T) {
	sink := &recordingSink{}
	a := NewAssembler(sink, nil)
	applyAll(a,
		ConfigEvent{Weights: map[string]float64{"search": 1, "synthesize": 3}},
		ProgressEvent{Stage: "search", Progress: 1},
		ProgressEvent{Stage: "synthesize", Progress: 1},
	)
	got := sink.values()
	if !near(got[0], 0.25) || !near(got[1], 1) {
		t.Errorf("progress = %v, want [0.25 1]", got)
	}
}

func TestAssembler_ProgressIsMonotonic(t *testing.T) {
	tests := []struct {
		name   string
		events []Event
	}{
		{"raw progress regresses", []Event{
			ProgressEvent{Stage: "search", Progress: 0.6},
			ProgressEvent{Stage: "search", Progress: 0.3},
			ProgressEvent{Stage: "search", Progress: 0.9},
		}},
		{"raw progress across stages", []Event{
			ProgressEvent{Stage: "search", Progress: 1},
			ProgressEvent{Stage: "synthesize", Progress: 0.2},
		}},
		{"weighted stage regresses", []Event{
			ConfigEvent{Weights: map[string]float64{"search": 0.5, "synthesize": 0.5}},
			ProgressEvent{Stage: "search", Progress: 0.8},
			ProgressEvent{Stage: "search", Progress: 0.2},
			ProgressEvent{Stage: "synthesize", Progress: 0.4},
		}},
		{"config arrives late", []Event{
			ProgressEvent{Stage: "search", Progress: 0.9},
			ConfigEvent{Weights: map[string]float64{"search": 0.1, "synthesize": 0.9}},
			ProgressEvent{Stage: "synthesize", Progress: 0.1},
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sink := &recordingSink{}
			a := NewAssembler(sink, nil)
			applyAll(a, tc.events...)
			got := sink.values()
			for i := 1; i < len(got); i++ {
				if got[i] < got[i-1] {
					t.Fatalf("progress decreased at %d: %v", i, got)
				}
			}
			for _, v := range got {
				if v < 0 || v > 1 {
					t.Fatalf("progress out of range: %v", got)
				}
			}
		})
	}
}

func TestAssembler_ChunkOrderIndependence(t *testing.T) {
	assemble := func(order ...int) Result {
		t.Helper()
		sink := &recordingSink{}
		a := NewAssembler(sink, nil)
		a.Apply(CompletionStartEvent{TotalChunks: 3})
		act := applyAll(a, chunks(order...)...)
		if act != Resolve {
			t.Fatalf("order %v: expected Resolve, got %s (err %v)", order, act, a.Err())
		}
		if len(sink.partials) != 3 || sink.partials[2].Received != 3 || sink.partials[2].Total != 3 {
			t.Errorf("order %v: unexpected partials %+v", order, sink.partials)
		}
		return a.Result()
	}

	inOrder := assemble(0, 1, 2)
	shuffled := assemble(2, 0, 1)
	if string(inOrder.Payload) != string(shuffled.Payload) {
		t.Errorf("payload differs:\n%s\n%s", inOrder.Payload, shuffled.Payload)
	}
	if !inOrder.Chunked || inOrder.Chunks != 3 {
		t.Errorf("unexpected result metadata %+v", inOrder)
	}
	var v struct{ Word string }
	if err := json.Unmarshal(shuffled.Payload, &v); err != nil || v.Word != "serendipity" {
		t.Errorf("assembled payload did not decode: %v %+v", err, v)
	}
}

func TestAssembler_GapDetection(t *testing.T) {
	a := NewAssembler(&recordingSink{}, nil)
	act := applyAll(a,
		ChunkEvent{Index: 0, Data: `{"word":`},
		ChunkEvent{Index: 2, Data: `"x"}`, IsLast: true},
	)
	if act != Continue {
		t.Fatalf("expected Continue while the gap is open, got %s", act)
	}
	if !a.AwaitingChunks() {
		t.Fatal("expected AwaitingChunks")
	}
	if m, n := a.Missing(); len(m) != 1 || m[0] != 1 || n != 1 {
		t.Errorf("Missing() = %v, %d, want [1], 1", m, n)
	}
	if a.Expire() != Fail {
		t.Fatal("expected Expire to fail the stream")
	}
	if a.Err().Code != apperrors.ErrCodeStreamProtocol || a.Err().Retryable {
		t.Errorf("expected non-retryable protocol error, got %v", a.Err())
	}
}

func TestAssembler_Failures(t *testing.T) {
	tests := []struct {
		name   string
		events []Event
		code   apperrors.ErrorCode
	}{
		{"complete without result", []Event{CompleteEvent{}}, apperrors.ErrCodeStreamProtocol},
		{"last index disagrees with total", []Event{
			CompletionStartEvent{TotalChunks: 3},
			ChunkEvent{Index: 1, Data: "x", IsLast: true},
		}, apperrors.ErrCodeStreamProtocol},
		{"chunk beyond total", []Event{
			CompletionStartEvent{TotalChunks: 2},
			ChunkEvent{Index: 5, Data: "x"},
		}, apperrors.ErrCodeStreamProtocol},
		{"chunk beyond last", []Event{
			ChunkEvent{Index: 1, Data: "x", IsLast: true},
			ChunkEvent{Index: 2, Data: "y"},
		}, apperrors.ErrCodeStreamProtocol},
		{"conflicting last", []Event{
			ChunkEvent{Index: 2, Data: "x"},
			ChunkEvent{Index: 1, Data: "y", IsLast: true},
		}, apperrors.ErrCodeStreamProtocol},
		{"assembled payload is not JSON", []Event{
			ChunkEvent{Index: 0, Data: `{"word":`},
			ChunkEvent{Index: 1, Data: `oops`, IsLast: true},
		}, apperrors.ErrCodeStreamDeserialize},
		{"inline payload is not JSON", []Event{
			CompleteEvent{Payload: json.RawMessage(`{nope`)},
		}, apperrors.ErrCodeStreamDeserialize},
		{"remote error", []Event{
			ErrorEvent{Code: "WORD_NOT_FOUND", Message: "no entry"},
		}, apperrors.ErrCodeStreamRemote},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := NewAssembler(&recordingSink{}, nil)
			if act := applyAll(a, tc.events...); act != Fail {
				t.Fatalf("expected Fail, got %s", act)
			}
			if a.Err().Code != tc.code {
				t.Errorf("code = %s, want %s", a.Err().Code, tc.code)
			}
			if a.Err().Retryable {
				t.Errorf("expected non-retryable, got %v", a.Err())
			}
		})
	}
}

func TestAssembler_RemoteErrorKeepsRetryable(t *testing.T) {
	a := NewAssembler(&recordingSink{}, nil)
	a.Apply(ErrorEvent{Code: "OVERLOADED", Message: "busy", Retryable: true})
	if !a.Err().Retryable {
		t.Error("expected retryable flag from the error event")
	}
	if RemoteCode(a.Err()) != "OVERLOADED" {
		t.Errorf("RemoteCode = %q", RemoteCode(a.Err()))
	}
}

func TestAssembler_CompleteWaitsForChunks(t *testing.T) {
	a := NewAssembler(&recordingSink{}, nil)
	evs := chunks(0, 1, 2)
	applyAll(a, CompletionStartEvent{TotalChunks: 3}, evs[0], evs[1])

	if act := a.Apply(CompleteEvent{}); act != Continue {
		t.Fatalf("expected Continue until the last chunk arrives, got %s", act)
	}
	if !a.AwaitingChunks() {
		t.Error("expected AwaitingChunks after payload-less complete")
	}
	if act := a.Apply(evs[2]); act != Resolve {
		t.Fatalf("expected Resolve, got %s (%v)", act, a.Err())
	}
}

func TestAssembler_IgnoresInputAfterResolution(t *testing.T) {
	sink := &recordingSink{}
	a := NewAssembler(sink, nil)
	a.Apply(CompleteEvent{Payload: json.RawMessage(`{}`)})
	a.Apply(ProgressEvent{Stage: "search", Progress: 1})
	a.Apply(ErrorEvent{Code: "LATE"})
	if len(sink.progress) != 0 {
		t.Errorf("expected no callbacks after resolution, got %v", sink.progress)
	}
	if a.State() != StateResolved || a.Err() != nil {
		t.Errorf("resolution changed: %s %v", a.State(), a.Err())
	}
}

func TestAssembler_StateTransitions(t *testing.T) {
	a := NewAssembler(&recordingSink{}, nil)
	if a.State() != StateIdle {
		t.Fatalf("initial state = %s", a.State())
	}
	a.Apply(ProgressEvent{Stage: "search", Progress: 0.1})
	if a.State() != StateReceiving {
		t.Errorf("after progress = %s", a.State())
	}
	a.Apply(ChunkEvent{Index: 0, Data: "{"})
	if a.State() != StateAssembling {
		t.Errorf("after chunk = %s", a.State())
	}
	a.Apply(ChunkEvent{Index: 1, Data: "}", IsLast: true})
	if a.State() != StateResolved {
		t.Errorf("after last chunk = %s", a.State())
	}
}

func TestAssembler_MissingIsBounded(t *testing.T) {
	a := NewAssembler(&recordingSink{}, nil)
	a.Apply(ChunkEvent{Index: 3, Data: "x"})
	a.Apply(ChunkEvent{Index: 50_000_000, Data: "{", IsLast: true})

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	first, count := a.Missing()
	act := a.Expire()
	runtime.ReadMemStats(&after)

	if count != 50_000_000-1 {
		t.Errorf("count = %d, want %d", count, 50_000_000-1)
	}
	if len(first) != maxListedMissing || first[0] != 0 || first[3] != 4 {
		t.Errorf("first = %v, want %d indexes skipping 3", first, maxListedMissing)
	}
	if act != Fail || a.Err().Details["missing_count"] != count {
		t.Errorf("Expire = %s, details %v", act, a.Err().Details)
	}
	if grown := after.TotalAlloc - before.TotalAlloc; grown > 1<<20 {
		t.Errorf("listing missing chunks allocated %d bytes", grown)
	}
}
