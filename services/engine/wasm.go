package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"
)

// Exports the engine module must provide
var requiredExports = []string{
	"add", "multiply", "factorial", "process_string", "sum_array", "malloc", "free",
}

// ErrMissingExport is returned when the engine module lacks a required export
var ErrMissingExport = errors.New("engine module missing export")

// WasmConfig configures the WebAssembly engine
type WasmConfig struct {
	Path          string
	MemoryLimitMB int
}

// WasmProvider runs the engine library compiled to WebAssembly in a wazero
// runtime. Calls are serialized: a module instance is not safe for
// concurrent use.
type WasmProvider struct {
	mu       sync.Mutex
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	module   api.Module
	path     string
	logger   *zap.Logger
}

// NewWasmProvider loads, compiles and instantiates the engine module at
// cfg.Path. The runtime closes a module whose call context is done, so a call
// timeout interrupts guest code; the next call reinstantiates it.
func NewWasmProvider(ctx context.Context, cfg WasmConfig, logger *zap.Logger) (*WasmProvider, error) {
	wasmBytes, err := os.ReadFile(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read engine module: %w", err)
	}

	runtimeCfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if pages := memoryLimitPages(cfg.MemoryLimitMB); pages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(pages)
	}
	r := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate WASI: %w", err)
	}

	compiled, err := r.CompileModule(ctx, wasmBytes)
	if err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("failed to compile engine module: %w", err)
	}

	p := &WasmProvider{
		runtime:  r,
		compiled: compiled,
		path:     cfg.Path,
		logger:   logger,
	}

	mod, err := p.instantiate(ctx)
	if err != nil {
		_ = r.Close(ctx)
		return nil, err
	}
	p.module = mod

	logger.Info("engine module loaded",
		zap.String("path", cfg.Path),
		zap.Int("memory_limit_mb", cfg.MemoryLimitMB),
	)
	return p, nil
}

// maxMemoryPages is the page count of a full 32-bit memory
const maxMemoryPages = 65536

// memoryLimitPages converts a limit in MiB to 64KiB pages, capped at the
// 32-bit maximum. Zero or negative means no limit.
func memoryLimitPages(limitMB int) uint32 {
	if limitMB <= 0 {
		return 0
	}
	if limitMB >= maxMemoryPages/16 {
		return maxMemoryPages
	}
	return uint32(limitMB) * 16
}

func (p *WasmProvider) instantiate(ctx context.Context) (api.Module, error) {
	// Reactor modules built with -mexec-model=reactor export _initialize.
	// Missing start functions are skipped.
	modCfg := wazero.NewModuleConfig().
		WithName("").
		WithStartFunctions("_initialize")

	mod, err := p.runtime.InstantiateModule(ctx, p.compiled, modCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate engine module: %w", err)
	}

	for _, name := range requiredExports {
		if mod.ExportedFunction(name) == nil {
			_ = mod.Close(ctx)
			return nil, fmt.Errorf("%w: %s", ErrMissingExport, name)
		}
	}
	if mod.ExportedMemory("memory") == nil {
		_ = mod.Close(ctx)
		return nil, fmt.Errorf("%w: memory", ErrMissingExport)
	}
	return mod, nil
}

// acquire locks the provider and returns a live module instance. The caller
// must unlock p.mu.
func (p *WasmProvider) acquire(ctx context.Context) (api.Module, error) {
	p.mu.Lock()
	if p.module == nil || p.module.IsClosed() {
		p.logger.Warn("engine module closed, reinstantiating", zap.String("path", p.path))
		// instantiation must not inherit the call deadline
		mod, err := p.instantiate(context.WithoutCancel(ctx))
		if err != nil {
			p.mu.Unlock()
			return nil, err
		}
		p.module = mod
	}
	return p.module, nil
}

func (p *WasmProvider) call(ctx context.Context, mod api.Module, name string, params ...uint64) (uint64, error) {
	results, err := mod.ExportedFunction(name).Call(ctx, params...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, fmt.Errorf("%s interrupted: %w", name, ctxErr)
		}
		return 0, fmt.Errorf("%s trapped: %w", name, err)
	}
	if len(results) != 1 {
		return 0, fmt.Errorf("%s returned %d values, want 1", name, len(results))
	}
	return results[0], nil
}

// Add calls the engine's add(int, int) int
func (p *WasmProvider) Add(ctx context.Context, a, b int32) (int32, error) {
	mod, err := p.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer p.mu.Unlock()

	v, err := p.call(ctx, mod, "add", api.EncodeI32(a), api.EncodeI32(b))
	if err != nil {
		return 0, err
	}
	return api.DecodeI32(v), nil
}

// Multiply calls the engine's multiply(int, int) int
func (p *WasmProvider) Multiply(ctx context.Context, a, b int32) (int32, error) {
	mod, err := p.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer p.mu.Unlock()

	v, err := p.call(ctx, mod, "multiply", api.EncodeI32(a), api.EncodeI32(b))
	if err != nil {
		return 0, err
	}
	return api.DecodeI32(v), nil
}

// Factorial calls the engine's factorial(int) long long. A negative result
// is the engine's error status.
func (p *WasmProvider) Factorial(ctx context.Context, n int32) (int64, error) {
	mod, err := p.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer p.mu.Unlock()

	v, err := p.call(ctx, mod, "factorial", api.EncodeI32(n))
	if err != nil {
		return 0, err
	}
	result := int64(v)
	if result < 0 {
		return 0, &StatusError{Function: "factorial", Status: result}
	}
	return result, nil
}

// ProcessString copies text into guest memory as a NUL-terminated string,
// calls process_string(input, output, output_size) and reads back the
// number of bytes it reports.
func (p *WasmProvider) ProcessString(ctx context.Context, text string) (string, error) {
	mod, err := p.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer p.mu.Unlock()

	size := uint32(len(text) + 1)
	in, err := p.malloc(ctx, mod, size)
	if err != nil {
		return "", err
	}
	defer p.free(ctx, mod, in)

	out, err := p.malloc(ctx, mod, size)
	if err != nil {
		return "", err
	}
	defer p.free(ctx, mod, out)

	mem := mod.Memory()
	if !mem.Write(in, append([]byte(text), 0)) {
		return "", fmt.Errorf("process_string: input out of range of memory size %d", mem.Size())
	}

	v, err := p.call(ctx, mod, "process_string", api.EncodeU32(in), api.EncodeU32(out), api.EncodeI32(int32(size)))
	if err != nil {
		return "", err
	}
	n := api.DecodeI32(v)
	if n < 0 {
		return "", &StatusError{Function: "process_string", Status: int64(n)}
	}

	buf, ok := mem.Read(out, uint32(n))
	if !ok {
		return "", fmt.Errorf("process_string: output out of range of memory size %d", mem.Size())
	}
	return string(buf), nil
}

// SumArray copies numbers into guest memory as little-endian doubles and
// calls sum_array(double*, int)
func (p *WasmProvider) SumArray(ctx context.Context, numbers []float64) (float64, error) {
	if len(numbers) == 0 {
		return 0, nil
	}

	mod, err := p.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer p.mu.Unlock()

	ptr, err := p.malloc(ctx, mod, uint32(len(numbers)*8))
	if err != nil {
		return 0, err
	}
	defer p.free(ctx, mod, ptr)

	mem := mod.Memory()
	for i, n := range numbers {
		if !mem.WriteFloat64Le(ptr+uint32(i*8), n) {
			return 0, fmt.Errorf("sum_array: input out of range of memory size %d", mem.Size())
		}
	}

	v, err := p.call(ctx, mod, "sum_array", api.EncodeU32(ptr), api.EncodeI32(int32(len(numbers))))
	if err != nil {
		return 0, err
	}
	return api.DecodeF64(v), nil
}

func (p *WasmProvider) malloc(ctx context.Context, mod api.Module, size uint32) (uint32, error) {
	v, err := p.call(ctx, mod, "malloc", api.EncodeU32(size))
	if err != nil {
		return 0, err
	}
	ptr := api.DecodeU32(v)
	if ptr == 0 {
		return 0, fmt.Errorf("malloc(%d) failed", size)
	}
	return ptr, nil
}

func (p *WasmProvider) free(ctx context.Context, mod api.Module, ptr uint32) {
	if mod.IsClosed() {
		return
	}
	if _, err := mod.ExportedFunction("free").Call(ctx, api.EncodeU32(ptr)); err != nil {
		p.logger.Debug("engine free failed", zap.Uint32("ptr", ptr), zap.Error(err))
	}
}

// Available is true once the module has loaded
func (p *WasmProvider) Available() bool { return true }

// Name returns "wasm"
func (p *WasmProvider) Name() string { return "wasm" }

// Close shuts down the runtime and every module in it
func (p *WasmProvider) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runtime.Close(ctx)
}

var _ Provider = (*WasmProvider)(nil)
