package sb

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/GriffinCanCode/softbus/internal/domain/pipe"
	"github.com/GriffinCanCode/softbus/internal/shared/handle"
	"github.com/GriffinCanCode/softbus/internal/shared/types"
)

// PipeOption configures a pipe at creation.
type PipeOption func(*pipeOptions)

type pipeOptions struct {
	owner string
}

// WithOwner records the owning application of a pipe.
func WithOwner(app string) PipeOption {
	return func(o *pipeOptions) { o.owner = app }
}

// CreatePipe creates a pipe holding at most depth messages. Names are
// unique across the bus.
func (b *Bus) CreatePipe(depth int, name string, opts ...PipeOption) (handle.ID, error) {
	pid, err := b.createPipe(depth, name, opts)
	if err != nil {
		b.counters.createPipeErrors.Add(1)
		b.recordError("create_pipe", err)
		b.events.emit(EventCreatePipeErr, zapcore.ErrorLevel, "create pipe failed",
			zap.String("pipe_name", name), zap.Int("depth", depth), zap.Error(err))
		return handle.Invalid, err
	}
	return pid, nil
}

func (b *Bus) createPipe(depth int, name string, opts []PipeOption) (handle.ID, error) {
	if err := b.checkOpen(); err != nil {
		return handle.Invalid, err
	}
	if depth <= 0 || depth > b.cfg.MaxPipeDepth {
		return handle.Invalid, fmt.Errorf("pipe depth %d, max %d: %w", depth, b.cfg.MaxPipeDepth, types.ErrBadArgument)
	}
	if err := pipe.ValidateName(name); err != nil {
		return handle.Invalid, err
	}
	var o pipeOptions
	for _, opt := range opts {
		opt(&o)
	}

	b.pipeMu.Lock()
	defer b.pipeMu.Unlock()

	if err := b.checkOpen(); err != nil {
		return handle.Invalid, err
	}
	if _, taken := b.names[name]; taken {
		return handle.Invalid, fmt.Errorf("pipe %q: %w", name, types.ErrNameTaken)
	}
	if b.pipes.Len() >= b.pipes.Cap() {
		return handle.Invalid, fmt.Errorf("create pipe %q: %w", name, types.ErrMaxPipesMet)
	}
	pid, err := b.pipes.AllocateFunc(func(pid handle.ID) (*pipe.Pipe, error) {
		return pipe.New(pid, name, depth, o.owner)
	})
	if err != nil {
		return handle.Invalid, err
	}
	b.names[name] = pid

	if b.mx != nil {
		b.mx.SetPipesActive(b.pipes.Len())
	}
	b.events.emit(EventPipeCreated, zapcore.DebugLevel, "pipe created",
		zap.String("pipe_name", name), zap.Stringer("pipe", pid),
		zap.Int("depth", depth), zap.String("owner", o.owner))
	return pid, nil
}

// DeletePipe destroys a pipe. Its handle stops validating at once, every
// route to it is removed, blocked receivers wake with an error and queued
// buffers are released.
func (b *Bus) DeletePipe(pid handle.ID) error {
	b.pipeMu.Lock()
	p, ok := b.pipes.Release(pid)
	if !ok {
		b.pipeMu.Unlock()
		return fmt.Errorf("delete pipe %s: %w", pid, types.ErrBadArgument)
	}
	delete(b.names, p.Name())
	routes := b.routes.RemovePipe(pid)
	b.pipeMu.Unlock()

	drained := p.Close()
	for _, item := range drained {
		if err := b.pool.Release(item.Buf); err != nil {
			b.log.Error("release drained buffer", zap.Stringer("pipe", p), zap.Error(err))
		}
	}

	if b.mx != nil {
		b.mx.SetPipesActive(b.pipes.Len())
	}
	b.events.emit(EventPipeDeleted, zapcore.DebugLevel, "pipe deleted",
		zap.Stringer("pipe", p), zap.Int("routes_removed", routes), zap.Int("buffers_released", len(drained)))
	return nil
}

// PipeName returns the name of a pipe.
func (b *Bus) PipeName(pid handle.ID) (string, error) {
	p, err := b.lookupPipe(pid)
	if err != nil {
		return "", err
	}
	return p.Name(), nil
}

// PipeIDByName finds a pipe by name.
func (b *Bus) PipeIDByName(name string) (handle.ID, error) {
	b.pipeMu.RLock()
	defer b.pipeMu.RUnlock()
	pid, ok := b.names[name]
	if !ok {
		return handle.Invalid, fmt.Errorf("pipe %q not found: %w", name, types.ErrBadArgument)
	}
	return pid, nil
}
