package toolchain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/progbuild/spv"
)

// StructuralValidator checks the module layout in process (see spv.Validate).
type StructuralValidator struct{}

// Validate implements Validator.
func (StructuralValidator) Validate(ctx context.Context, binary []byte, version spv.Version) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	st, err := spv.Validate(binary, version)
	if err != nil {
		return err.Error(), &ValidationError{Validator: "structural", Log: err.Error()}
	}
	return fmt.Sprintf("%s: %d instructions, %d capabilities, %d entry points",
		spv.Describe(binary), st.Instructions, st.Capabilities, st.EntryPoints), nil
}

// ChainValidator runs validators in order and stops at the first rejection.
// Logs of every validator that ran are concatenated.
type ChainValidator []Validator

// Validate implements Validator.
func (c ChainValidator) Validate(ctx context.Context, binary []byte, version spv.Version) (string, error) {
	var logs []string
	for _, v := range c {
		log, err := v.Validate(ctx, binary, version)
		if log = strings.TrimSpace(log); log != "" {
			logs = append(logs, log)
		}
		if err != nil {
			return strings.Join(logs, "\n"), err
		}
	}
	return strings.Join(logs, "\n"), nil
}

// DeviceValidator checks that a device accepts the binary as a shader module.
type DeviceValidator struct {
	mu      sync.Mutex
	device  hal.Device
	release func()
}

// NewDeviceValidator validates against an already opened device.
// The caller keeps ownership of the device.
func NewDeviceValidator(device hal.Device) *DeviceValidator {
	return &DeviceValidator{device: device, release: func() {}}
}

// NewNoopDeviceValidator opens the first adapter of the noop HAL backend.
func NewNoopDeviceValidator() (*DeviceValidator, error) {
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		return nil, fmt.Errorf("toolchain: creating noop instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, errors.New("toolchain: noop backend exposes no adapters")
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("toolchain: opening noop device: %w", err)
	}
	return &DeviceValidator{
		device: openDev.Device,
		release: func() {
			openDev.Device.Destroy()
			instance.Destroy()
		},
	}, nil
}

// Validate implements Validator.
func (v *DeviceValidator) Validate(ctx context.Context, binary []byte, _ spv.Version) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	words, err := spv.Words(binary)
	if err != nil {
		return err.Error(), &ValidationError{Validator: "device", Log: err.Error()}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.device == nil {
		return "", errors.New("toolchain: device validator is closed")
	}

	module, err := v.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label: "progbuild-validate",
		Source: hal.ShaderSource{
			SPIRV: words,
		},
	})
	if err != nil {
		log := fmt.Sprintf("device rejected shader module: %v", err)
		return log, &ValidationError{Validator: "device", Log: log}
	}
	v.device.DestroyShaderModule(module)
	return "device accepted shader module", nil
}

// Close releases the device if the validator opened it.
// Close is safe to call multiple times.
func (v *DeviceValidator) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.device == nil {
		return
	}
	v.release()
	v.device = nil
}
