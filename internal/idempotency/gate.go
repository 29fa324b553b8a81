// Package idempotency guarantees that a mutating request runs at most once per
// client-supplied key and that retries receive the stored response.
package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/taskpilot/api/transport"
	"github.com/fastygo/taskpilot/domain"
	appLogger "github.com/fastygo/taskpilot/pkg/logger"
	"github.com/fastygo/taskpilot/repository"
	"github.com/fastygo/taskpilot/usecase"
)

const DefaultClaimTTL = 30 * time.Second

// Request describes one mutating call.
type Request struct {
	Key     string
	Method  string
	Path    string
	Body    []byte
	TraceID string
}

// Response is what the handler produced, or what is replayed.
type Response struct {
	Status   int
	Body     []byte
	Replayed bool
}

// Handler performs the mutation and renders its envelope.
type Handler func(ctx context.Context) Response

type Options struct {
	ClaimTTL    time.Duration
	EnforceHash bool
	Clock       usecase.Clock
	Logger      *zap.Logger
}

type Gate struct {
	repo        repository.IdempotencyRepository
	claimTTL    time.Duration
	enforceHash bool
	clock       usecase.Clock
	logger      *zap.Logger
}

func NewGate(repo repository.IdempotencyRepository, opts Options) *Gate {
	if opts.ClaimTTL <= 0 {
		opts.ClaimTTL = DefaultClaimTTL
	}
	if opts.Clock == nil {
		opts.Clock = usecase.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Gate{
		repo:        repo,
		claimTTL:    opts.ClaimTTL,
		enforceHash: opts.EnforceHash,
		clock:       opts.Clock,
		logger:      opts.Logger,
	}
}

// Execute runs handler unless a response for req.Key already exists, in which
// case the stored response is returned with req.TraceID substituted.
//
// Errors returned from Execute happen before handler runs; the caller renders
// them as a normal error envelope.
func (g *Gate) Execute(ctx context.Context, req Request, handler Handler) (Response, error) {
	if req.Key == "" {
		return Response{}, domain.ErrMissingIdempotencyKey
	}
	log := appLogger.WithTraceID(ctx, g.logger).With(zap.String("idempotency_key", req.Key))
	hash := domain.RequestHash(req.Method, req.Path, canonicalBody(req.Body))

	existing, err := g.repo.FindByKey(ctx, req.Key)
	switch {
	case err == nil:
		if resp, done, err := g.fromRecord(log, existing, req, hash); done {
			if resp.Replayed {
				log.Info("replaying stored response", zap.Int("status", resp.Status))
			}
			return resp, err
		}
	case !errors.Is(err, domain.ErrIdempotencyNotFound):
		return Response{}, err
	}

	claim := &domain.IdempotencyRecord{
		RequestID:   req.Key,
		TraceID:     req.TraceID,
		CreatedAt:   g.clock.Now().UTC(),
		Method:      req.Method,
		Path:        req.Path,
		RequestHash: hash,
	}
	won, err := g.repo.Claim(ctx, claim, g.claimTTL)
	if err != nil {
		return Response{}, err
	}
	if !won {
		// Another request claimed the key between the lookup and the claim.
		latest, err := g.repo.FindByKey(ctx, req.Key)
		if err != nil {
			return Response{}, domain.ErrRequestInProgress
		}
		resp, done, err := g.fromRecord(log, latest, req, hash)
		if !done {
			return Response{}, domain.ErrRequestInProgress
		}
		return resp, err
	}

	resp := handler(ctx)
	claim.StatusCode = resp.Status
	claim.ResponseBody = resp.Body
	if err := g.repo.Complete(ctx, claim); err != nil {
		log.Error("failed to store idempotent response", zap.Error(err))
	}
	return resp, nil
}

// fromRecord decides what an existing record means for req. done is false
// only when the record is a stale claim that the caller may take over.
func (g *Gate) fromRecord(log *zap.Logger, record *domain.IdempotencyRecord, req Request, hash string) (Response, bool, error) {
	if record.Pending() {
		if record.Stale(g.clock.Now(), g.claimTTL) {
			return Response{}, false, nil
		}
		return Response{}, true, domain.ErrRequestInProgress
	}
	if g.enforceHash && record.RequestHash != "" && record.RequestHash != hash {
		return Response{}, true, &domain.Error{
			Code:    domain.ErrCodeKeyReused,
			Message: "idempotency key was already used for a different request",
			Details: map[string]any{"method": record.Method, "path": record.Path},
		}
	}
	return replay(log, record, req.TraceID), true, nil
}

func replay(log *zap.Logger, record *domain.IdempotencyRecord, traceID string) Response {
	status := record.StatusCode
	if status <= 0 {
		status = http.StatusOK
	}
	body, err := transport.WithTraceID(record.ResponseBody, traceID)
	if err != nil {
		log.Error("stored response is unreadable", zap.Error(err))
		env := transport.NewError(traceID, domain.ErrCodeCorruptStored, "stored response could not be decoded",
			map[string]any{"requestId": record.RequestID})
		body, _ = json.Marshal(env)
	}
	return Response{Status: status, Body: body, Replayed: true}
}

// canonicalBody strips insignificant whitespace so retries that re-serialize
// the same JSON hash equally.
func canonicalBody(body []byte) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, body); err != nil {
		return body
	}
	return buf.Bytes()
}
