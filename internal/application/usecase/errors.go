package usecase

import (
	"errors"
	"fmt"

	"github.com/dreschagin/vrops-selfmon/internal/application/dto"
)

// FailureKind classifies why a stage failed
type FailureKind string

const (
	KindTransport    FailureKind = "transport"
	KindProtocol     FailureKind = "protocol"
	KindPrecondition FailureKind = "precondition"
	KindNoData       FailureKind = "no_data"
	KindExport       FailureKind = "export"
)

// Stage names the step of a run that produced an error
type Stage string

const (
	StageAcquire Stage = "acquire"
	StageHealth  Stage = "health"
	StageResolve Stage = "resolve"
	StageStats   Stage = "stats"
	StageExport  Stage = "export"
	StageRelease Stage = "release"
)

var (
	ErrNoData           = errors.New("no metric data returned")
	ErrClusterNotOnline = errors.New("cluster is not online")
)

// EnvelopeError carries the failing stage and the platform status of a failed run step
type EnvelopeError struct {
	Stage      Stage
	Kind       FailureKind
	StatusCode int
	Message    string
	Err        error
}

func (e *EnvelopeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s failed (%s, status %d): %s", e.Stage, e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s failed (%s): %s", e.Stage, e.Kind, e.Message)
}

func (e *EnvelopeError) Unwrap() error {
	return e.Err
}

// IsSoft reports whether the run may continue past this error
func (e *EnvelopeError) IsSoft() bool {
	return e.Kind == KindNoData
}

func envelopeFailure[T any](stage Stage, env dto.Envelope[T]) *EnvelopeError {
	kind := KindProtocol
	if env.Transport {
		kind = KindTransport
	}
	return &EnvelopeError{
		Stage:      stage,
		Kind:       kind,
		StatusCode: env.StatusCode,
		Message:    env.Message,
	}
}

// AsEnvelopeError extracts an *EnvelopeError from the chain
func AsEnvelopeError(err error) (*EnvelopeError, bool) {
	var envErr *EnvelopeError
	if errors.As(err, &envErr) {
		return envErr, true
	}
	return nil, false
}
