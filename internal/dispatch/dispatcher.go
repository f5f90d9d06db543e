// Package dispatch runs one AI operation end to end: provider resolution,
// quota check, execution, usage logging and the optional follow-on save.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"aidispatch/internal/domain"
	"aidispatch/internal/infra"
	"aidispatch/internal/oplog"
	"aidispatch/internal/pricing"
	"aidispatch/internal/providers"
	"aidispatch/internal/storage"
)

// ProviderSource resolves provider names; *providers.Registry satisfies it.
type ProviderSource interface {
	Provider(name string) (providers.AIProvider, error)
}

// Limiter admits or rejects an operation for a user.
type Limiter interface {
	Check(ctx context.Context, userID string) error
}

// Saver stores a result for follow-on use.
type Saver interface {
	Save(ctx context.Context, identityID, ref string) (storage.Object, error)
}

// Options configures a Dispatcher.
type Options struct {
	Providers ProviderSource
	Limiter   Limiter
	Log       oplog.Writer
	// LogPolicy decides whether a failed log write fails a successful operation.
	LogPolicy domain.FailurePolicy
	Saver     Saver
	// Timeout bounds provider execution. Zero leaves it to the providers.
	Timeout time.Duration
	Logger  *infra.Logger
	Now     func() time.Time
}

// Dispatcher executes operations. It holds no per-request state.
type Dispatcher struct {
	providers ProviderSource
	limiter   Limiter
	log       oplog.Writer
	logPolicy domain.FailurePolicy
	saver     Saver
	timeout   time.Duration
	logger    *infra.Logger
	now       func() time.Time
	validate  *validator.Validate
}

func New(opts Options) (*Dispatcher, error) {
	if opts.Providers == nil {
		return nil, errors.New("dispatch: providers are required")
	}
	if opts.Limiter == nil {
		return nil, errors.New("dispatch: limiter is required")
	}
	log := opts.Log
	if log == nil {
		log = oplog.NopWriter{}
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		providers: opts.Providers,
		limiter:   opts.Limiter,
		log:       log,
		logPolicy: opts.LogPolicy,
		saver:     opts.Saver,
		timeout:   opts.Timeout,
		logger:    logger,
		now:       now,
		validate:  validator.New(),
	}, nil
}

// Dispatch runs req. Errors from resolution, the limiter and the provider are
// logged and returned unchanged so callers can classify them.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*Result, error) {
	op, err := validate(d.validate, &req)
	if err != nil {
		return nil, d.fail(req, err, "dispatch: invalid request")
	}

	provider, err := d.providers.Provider(req.Provider)
	if err != nil {
		return nil, d.fail(req, err, "dispatch: resolve provider")
	}
	info := provider.ProviderInfo()
	model, err := provider.ModelInfo(op)
	if err != nil {
		return nil, d.fail(req, err, "dispatch: resolve model")
	}

	if err := d.limiter.Check(ctx, req.IdentityID); err != nil {
		return nil, d.fail(req, err, "dispatch: rate limit")
	}

	start := d.now()
	out, err := d.execute(ctx, provider, op, req)
	elapsed := d.now().Sub(start)

	cost := pricing.OperationPriceUSD(string(info.ServiceProvider), string(op), model.ModelName)
	entry := oplog.Entry{
		IdentityID: req.IdentityID,
		UserSub:    req.UserSub,
		Provider:   string(info.ServiceProvider),
		Operation:  string(op),
		Model:      model.ModelName,
		Status:     oplog.StatusSuccess,
		RequestID:  req.RequestID,
		CostUSD:    cost,
		CreatedAt:  start,
	}
	if err != nil {
		entry.Status = oplog.StatusError
		d.writeLog(ctx, entry)
		d.logger.Error().
			Err(err).
			Str("request_id", req.RequestID).
			Str("identity_id", req.IdentityID).
			Str("provider", string(info.ServiceProvider)).
			Str("operation", string(op)).
			Int64("elapsed_ms", elapsed.Milliseconds()).
			Msg("dispatch: operation failed")
		return nil, err
	}
	if logErr := d.writeLog(ctx, entry); logErr != nil {
		return nil, logErr
	}

	d.logger.Info().
		Str("request_id", req.RequestID).
		Str("identity_id", req.IdentityID).
		Str("provider", string(info.ServiceProvider)).
		Str("operation", string(op)).
		Str("model", model.ModelName).
		Int64("elapsed_ms", elapsed.Milliseconds()).
		Msg("dispatch: operation succeeded")

	res := &Result{
		Result:    out.ref,
		Text:      out.text,
		Provider:  info.ServiceProvider,
		Operation: op,
		Model:     model,
		CostUSD:   cost,
		Elapsed:   elapsed,
		ElapsedMS: elapsed.Milliseconds(),
		RequestID: req.RequestID,
	}
	if req.Save && out.ref != "" {
		d.save(ctx, req, res)
	}
	return res, nil
}

type output struct {
	ref  string
	text string
}

func (d *Dispatcher) execute(ctx context.Context, p providers.AIProvider, op domain.Operation, req Request) (output, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	var (
		ref string
		err error
	)
	switch op {
	case domain.OperationGenerateImage:
		ref, err = p.GenerateImage(ctx, req.Prompt, req.PromptUpsampling)
	case domain.OperationUpscaleImage:
		ref, err = p.UpscaleImage(ctx, req.ImageURL)
	case domain.OperationStyleTransfer:
		ref, err = p.StyleTransfer(ctx, req.Prompt, req.styleImage())
	case domain.OperationOutpaint:
		ref, err = p.OutPaint(ctx, req.ImageURL)
	case domain.OperationInpaint:
		ref, err = p.Inpaint(ctx, req.Prompt, req.ImageURL)
	case domain.OperationChatWithImage:
		chat, chatErr := p.ChatWithImage(ctx, req.Prompt, req.ImageURL, req.History)
		return output{ref: chat.Image, text: chat.Text}, chatErr
	case domain.OperationGenerateVideo:
		ref, err = p.GenerateVideo(ctx, req.ImageURL, req.Prompt, domain.VideoOptions{Duration: req.Duration, Ratio: req.Ratio})
	default:
		err = domain.Unsupported(p.ProviderInfo().ServiceProvider, op)
	}
	if err == nil && ref == "" {
		err = fmt.Errorf("dispatch: %s returned no result: %w", op, domain.ErrProviderFailure)
	}
	return output{ref: ref}, err
}

// writeLog records entry. Failures are logged; under FailClosed the error is
// returned for the caller to surface.
func (d *Dispatcher) writeLog(ctx context.Context, entry oplog.Entry) error {
	err := d.log.Write(context.WithoutCancel(ctx), entry)
	if err == nil {
		return nil
	}
	d.logger.Error().
		Err(err).
		Str("request_id", entry.RequestID).
		Str("identity_id", entry.IdentityID).
		Str("policy", d.logPolicy.String()).
		Msg("dispatch: operation log write failed")
	if err := d.logPolicy.Apply(err); err != nil {
		return fmt.Errorf("dispatch: operation log: %w", err)
	}
	return nil
}

func (d *Dispatcher) save(ctx context.Context, req Request, res *Result) {
	if d.saver == nil {
		res.SaveError = "storage is not configured"
		return
	}
	obj, err := d.saver.Save(ctx, req.IdentityID, res.Result)
	if err != nil {
		d.logger.Warn().
			Err(err).
			Str("request_id", req.RequestID).
			Str("identity_id", req.IdentityID).
			Msg("dispatch: follow-on save failed")
		res.SaveError = err.Error()
		return
	}
	res.Saved = &obj
}

func (d *Dispatcher) fail(req Request, err error, msg string) error {
	event := d.logger.Warn()
	if !errors.Is(err, domain.ErrInvalidInput) && !domain.IsRateLimitError(err) {
		event = d.logger.Error()
	}
	event.
		Err(err).
		Str("request_id", req.RequestID).
		Str("identity_id", req.IdentityID).
		Str("provider", req.Provider).
		Str("operation", req.Operation).
		Msg(msg)
	return err
}
