package core

import (
	"fmt"
	"net/http"
	"time"
)

// Decision is what a pipeline step wants the dispatcher to do next.
type Decision int

const (
	// DecisionContinue passes control to the next step.
	DecisionContinue Decision = iota
	// DecisionRespond terminates the request with the step's response.
	DecisionRespond
	// DecisionFail skips the remaining steps and hands the failure to the
	// error boundary.
	DecisionFail
)

func (d Decision) String() string {
	switch d {
	case DecisionContinue:
		return "continue"
	case DecisionRespond:
		return "respond"
	case DecisionFail:
		return "fail"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Outcome is the result of one step. Build it with Continue, Respond, or Fail.
type Outcome struct {
	Decision Decision
	// Request is the (possibly annotated) request for the next step. Only
	// meaningful for DecisionContinue; nil keeps the current request.
	Request *http.Request
	// Status and Body describe the short-circuit response for DecisionRespond.
	// A nil Body writes no body.
	Status int
	Body   any
	// Err is the failure for DecisionFail.
	Err error
}

// Continue passes r to the next step.
func Continue(r *http.Request) Outcome {
	return Outcome{Decision: DecisionContinue, Request: r}
}

// Respond terminates the request with status and an optional JSON body.
func Respond(status int, body any) Outcome {
	return Outcome{Decision: DecisionRespond, Status: status, Body: body}
}

// Fail forwards err to the error boundary.
func Fail(err error) Outcome {
	return Outcome{Decision: DecisionFail, Err: err}
}

// Step is one named request interceptor.
type Step interface {
	Name() string
	Handle(w http.ResponseWriter, r *http.Request) Outcome
}

// HeaderDecorator is implemented by steps whose headers belong on every
// response. When an earlier step fails, the dispatcher still applies the
// decorators of the steps it skipped so error responses carry them too.
type HeaderDecorator interface {
	Decorate(h http.Header, r *http.Request)
}

// Completer is implemented by steps that observe the finished response.
// Completers run in reverse order after the response is written, and only
// for steps that were reached.
type Completer interface {
	Complete(r *http.Request, status int, duration time.Duration)
}

// Pipeline runs an ordered, immutable list of steps in front of the router.
type Pipeline struct {
	steps    []Step
	boundary *ErrorBoundary
}

// NewPipeline assembles the steps in the given order. Order is fixed for the
// life of the pipeline.
func NewPipeline(boundary *ErrorBoundary, steps ...Step) (*Pipeline, error) {
	if boundary == nil {
		return nil, fmt.Errorf("error boundary must not be nil")
	}
	seen := make(map[string]struct{}, len(steps))
	for i, st := range steps {
		if st == nil {
			return nil, fmt.Errorf("step %d is nil", i)
		}
		if _, dup := seen[st.Name()]; dup {
			return nil, fmt.Errorf("duplicate step name %q", st.Name())
		}
		seen[st.Name()] = struct{}{}
	}
	return &Pipeline{
		steps:    append([]Step(nil), steps...),
		boundary: boundary,
	}, nil
}

// Names returns the step names in execution order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.steps))
	for i, st := range p.steps {
		names[i] = st.Name()
	}
	return names
}

// Middleware adapts the pipeline to the chi middleware signature. When every
// step continues, next receives the annotated request. Panics raised by next
// are converted into handler failures with the annotated request, so the
// boundary sees the parsed body and request ID.
func (p *Pipeline) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rc := captureResponse(w)

		reached := 0
		defer func() {
			p.complete(reached, r, rc.Status(), time.Since(start))
		}()

		for i, st := range p.steps {
			reached = i + 1
			out := st.Handle(rc, r)
			switch out.Decision {
			case DecisionContinue:
				if out.Request != nil {
					r = out.Request
				}
			case DecisionRespond:
				writeOutcome(rc, r, out)
				return
			case DecisionFail:
				p.decorateFrom(i+1, rc.Header(), r)
				p.boundary.Fail(rc, r, out.Err)
				return
			default:
				p.boundary.Fail(rc, r, fmt.Errorf("step %q returned unknown decision %s", st.Name(), out.Decision))
				return
			}
		}

		p.boundary.Guard(rc, r, next)
	})
}

// decorateFrom applies header decorators for steps[from:].
func (p *Pipeline) decorateFrom(from int, h http.Header, r *http.Request) {
	for _, st := range p.steps[from:] {
		if d, ok := st.(HeaderDecorator); ok {
			d.Decorate(h, r)
		}
	}
}

func (p *Pipeline) complete(reached int, r *http.Request, status int, d time.Duration) {
	for i := reached - 1; i >= 0; i-- {
		if c, ok := p.steps[i].(Completer); ok {
			c.Complete(r, status, d)
		}
	}
}

func writeOutcome(w http.ResponseWriter, r *http.Request, out Outcome) {
	status := out.Status
	if status == 0 {
		status = http.StatusOK
	}
	if out.Body == nil {
		w.WriteHeader(status)
		return
	}
	JSON(w, r, status, out.Body)
}
