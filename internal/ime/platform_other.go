//go:build !linux

package ime

import "errors"

var errUnsupported = errors.New("input method not supported on this platform")

// OtherPlatform is a stub for platforms without an IBus host.
type OtherPlatform struct{}

// NewPlatform returns the platform integration for this OS.
func NewPlatform(config PlatformConfig) Platform {
	return &OtherPlatform{}
}

func (p *OtherPlatform) Name() string      { return "unsupported" }
func (p *OtherPlatform) Available() bool   { return false }
func (p *OtherPlatform) Install() error    { return errUnsupported }
func (p *OtherPlatform) Uninstall() error  { return errUnsupported }
func (p *OtherPlatform) IsInstalled() bool { return false }
func (p *OtherPlatform) IsActive() bool    { return false }
func (p *OtherPlatform) Activate() error   { return errUnsupported }

var _ Platform = (*OtherPlatform)(nil)
