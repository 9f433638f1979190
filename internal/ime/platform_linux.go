//go:build linux

package ime

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const componentFile = "vnime.xml"

// LinuxPlatform registers the engine with IBus.
type LinuxPlatform struct {
	config PlatformConfig
	run    func(name string, args ...string) ([]byte, error)
}

// NewPlatform returns the platform integration for this OS.
func NewPlatform(config PlatformConfig) Platform {
	return NewLinuxPlatform(config)
}

// NewLinuxPlatform creates a new Linux IBus platform.
func NewLinuxPlatform(config PlatformConfig) *LinuxPlatform {
	if config.HomeDir == "" {
		config.HomeDir, _ = os.UserHomeDir()
	}
	if config.EnginePath == "" {
		config.EnginePath = filepath.Join(config.HomeDir, ".local", "bin", "vnime-ibus")
	}
	if config.DisplayName == "" {
		config.DisplayName = DefaultPlatformConfig().DisplayName
	}
	if config.Version == "" {
		config.Version = DefaultPlatformConfig().Version
	}
	return &LinuxPlatform{
		config: config,
		run: func(name string, args ...string) ([]byte, error) {
			return exec.Command(name, args...).Output()
		},
	}
}

func (p *LinuxPlatform) Name() string {
	return "linux"
}

func (p *LinuxPlatform) Available() bool {
	if _, err := os.Stat("/usr/share/ibus/component"); err == nil {
		return true
	}
	_, err := exec.LookPath("ibus-daemon")
	return err == nil
}

func (p *LinuxPlatform) componentPath() string {
	return filepath.Join(p.config.HomeDir, ".local", "share", "ibus", "component", componentFile)
}

// Install writes the IBus component description and restarts IBus.
func (p *LinuxPlatform) Install() error {
	path := p.componentPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create component dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(p.ComponentXML()), 0644); err != nil {
		return fmt.Errorf("failed to write component: %w", err)
	}
	p.restartIBus()
	return nil
}

// ComponentXML returns the IBus component description.
func (p *LinuxPlatform) ComponentXML() string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<component>
    <name>%s</name>
    <description>Vietnamese Telex/VNI input method</description>
    <exec>%s --ibus</exec>
    <version>%s</version>
    <author>vnime</author>
    <license>MIT</license>
    <textdomain>vnime</textdomain>
    <engines>
        <engine>
            <name>%s</name>
            <language>vi</language>
            <license>MIT</license>
            <author>vnime</author>
            <layout>us</layout>
            <longname>%s</longname>
            <description>Telex and VNI composition with auto-restore</description>
            <rank>80</rank>
            <symbol>VI</symbol>
        </engine>
    </engines>
</component>
`, VnimeBusName, p.config.EnginePath, p.config.Version, VnimeEngineName, p.config.DisplayName)
}

func (p *LinuxPlatform) restartIBus() {
	p.run("ibus", "restart")
}

// Uninstall removes the component description.
func (p *LinuxPlatform) Uninstall() error {
	if err := os.Remove(p.componentPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove component: %w", err)
	}
	p.restartIBus()
	return nil
}

func (p *LinuxPlatform) IsInstalled() bool {
	_, err := os.Stat(p.componentPath())
	return err == nil
}

func (p *LinuxPlatform) IsActive() bool {
	out, err := p.run("ibus", "engine")
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) == VnimeEngineName
}

func (p *LinuxPlatform) Activate() error {
	if _, err := p.run("ibus", "engine", VnimeEngineName); err != nil {
		return errors.New("please select vnime from Region & Language settings")
	}
	return nil
}

var _ Platform = (*LinuxPlatform)(nil)
