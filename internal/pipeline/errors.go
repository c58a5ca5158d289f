package pipeline

import (
	"errors"
	"fmt"

	"github.com/dgallion1/vecingest/internal/parser"
)

// Error kinds. Every per-file failure wraps exactly one of these.
var (
	ErrUnsupportedFormat = parser.ErrUnsupportedFormat
	ErrParseFailure      = errors.New("parse failure")
	ErrEmbeddingFailure  = errors.New("embedding failure")
	ErrStoreFailure      = errors.New("store failure")
	ErrConfiguration     = errors.New("configuration error")
)

// ErrNotDirectory is a usage error from ProcessDir.
var ErrNotDirectory = errors.New("not a directory")

// Stage names where an attempt can fail.
type Stage string

const (
	StageSelect Stage = "select"
	StageRead   Stage = "read"
	StageParse  Stage = "parse"
	StageChunk  Stage = "chunk"
	StageEmbed  Stage = "embed"
	StageUpsert Stage = "upsert"
)

// StageError ties a failure to the stage it came from and its kind.
// errors.Is matches either the kind or anything in the cause chain.
type StageError struct {
	Stage Stage
	Kind  error
	Err   error
}

func (e *StageError) Error() string {
	if errors.Is(e.Err, e.Kind) {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *StageError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func stageErr(stage Stage, kind, err error) error {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}
