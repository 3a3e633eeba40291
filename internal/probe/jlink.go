//go:build linux || darwin

package probe

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ebitengine/purego"

	"github.com/xiaoapeng/rtt-shell/internal/rtt"
)

// Target interface codes for JLINK_TIF_Select.
const (
	tifJTAG = 0
	tifSWD  = 1
)

// Config describes the probe session to bring up.
type Config struct {
	// LibraryPath overrides library discovery when non-empty.
	LibraryPath string
	// USBSerial selects a specific probe when several are attached.
	USBSerial uint32
	// Device is the target device name, e.g. "MCXN947_M33_0".
	Device string
	// Interface is "swd" or "jtag".
	Interface string
	// SpeedKHz is the interface speed; 4000 is a sensible default.
	SpeedKHz int
}

// Probe is a loaded J-Link library with an established target
// connection. It implements rtt.Transport.
type Probe struct {
	handle uintptr

	jlinkOpen          func() int32
	jlinkClose         func() int32
	jlinkConnect       func() int32
	jlinkSetSpeed      func(uint32) int32
	jlinkTIFSelect     func(int32) int32
	jlinkExecCommand   func(string, []byte, int32) int32
	jlinkSelectByUSBSN func(uint32) int32
	jlinkGetSN         func(*uint32) int32
	jlinkProductName   func([]byte, int32)
	rttControl         func(int32, *int32) int32
	rttRead            func(int32, []byte, int32) int32
	rttWrite           func(int32, []byte, int32) int32
}

var _ rtt.Transport = (*Probe)(nil)

// symbols every usable J-Link library must export.
var requiredSymbols = []string{
	"JLINK_Open",
	"JLINK_Close",
	"JLINK_Connect",
	"JLINK_SetSpeed",
	"JLINK_TIF_Select",
	"JLINK_ExecCommand",
	"JLINK_EMU_SelectByUSBSN",
	"JLINK_GetSN",
	"JLINK_EMU_GetProductName",
	"JLINK_RTTERMINAL_Control",
	"JLINK_RTTERMINAL_Read",
	"JLINK_RTTERMINAL_Write",
}

// Load locates (unless overridden) and loads the J-Link library and
// binds its entry points. No probe connection is made yet.
func Load(path string) (*Probe, error) {
	if path == "" {
		var err error
		path, err = FindLibrary()
		if err != nil {
			return nil, err
		}
	}
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("probe: load %s: %w", path, err)
	}
	for _, sym := range requiredSymbols {
		if _, err := purego.Dlsym(handle, sym); err != nil {
			return nil, fmt.Errorf("probe: %s lacks symbol %s: %w", path, sym, err)
		}
	}

	p := &Probe{handle: handle}
	purego.RegisterLibFunc(&p.jlinkOpen, handle, "JLINK_Open")
	purego.RegisterLibFunc(&p.jlinkClose, handle, "JLINK_Close")
	purego.RegisterLibFunc(&p.jlinkConnect, handle, "JLINK_Connect")
	purego.RegisterLibFunc(&p.jlinkSetSpeed, handle, "JLINK_SetSpeed")
	purego.RegisterLibFunc(&p.jlinkTIFSelect, handle, "JLINK_TIF_Select")
	purego.RegisterLibFunc(&p.jlinkExecCommand, handle, "JLINK_ExecCommand")
	purego.RegisterLibFunc(&p.jlinkSelectByUSBSN, handle, "JLINK_EMU_SelectByUSBSN")
	purego.RegisterLibFunc(&p.jlinkGetSN, handle, "JLINK_GetSN")
	purego.RegisterLibFunc(&p.jlinkProductName, handle, "JLINK_EMU_GetProductName")
	purego.RegisterLibFunc(&p.rttControl, handle, "JLINK_RTTERMINAL_Control")
	purego.RegisterLibFunc(&p.rttRead, handle, "JLINK_RTTERMINAL_Read")
	purego.RegisterLibFunc(&p.rttWrite, handle, "JLINK_RTTERMINAL_Write")
	slog.Info("J-Link library loaded", "path", path)
	return p, nil
}

// Connect loads the library and performs the probe bring-up sequence:
// optional emulator select, open, device command, interface select,
// speed, target connect.
func Connect(cfg Config) (*Probe, error) {
	p, err := Load(cfg.LibraryPath)
	if err != nil {
		return nil, err
	}
	if cfg.USBSerial != 0 {
		if ret := p.jlinkSelectByUSBSN(cfg.USBSerial); ret < 0 {
			return nil, fmt.Errorf("probe: select emulator %d: ret %d", cfg.USBSerial, ret)
		}
	}
	if ret := p.jlinkOpen(); ret < 0 {
		return nil, fmt.Errorf("probe: open: ret %d", ret)
	}
	if cfg.Device != "" {
		if err := p.ExecCommand("device=" + cfg.Device); err != nil {
			p.Close()
			return nil, err
		}
	}
	tif := int32(tifSWD)
	if strings.EqualFold(cfg.Interface, "jtag") {
		tif = tifJTAG
	}
	p.jlinkTIFSelect(tif)
	speed := cfg.SpeedKHz
	if speed <= 0 {
		speed = 4000
	}
	if ret := p.jlinkSetSpeed(uint32(speed)); ret < 0 {
		p.Close()
		return nil, fmt.Errorf("probe: set speed %d kHz: ret %d", speed, ret)
	}
	if ret := p.jlinkConnect(); ret < 0 {
		p.Close()
		return nil, fmt.Errorf("probe: connect: ret %d", ret)
	}

	name := make([]byte, 64)
	p.jlinkProductName(name, int32(len(name)))
	var sn uint32
	p.jlinkGetSN(&sn)
	slog.Info("probe connected",
		"product", strings.TrimRight(string(name), "\x00"),
		"serial", sn,
		"device", cfg.Device,
		"speedKHz", speed)
	return p, nil
}

// Close disconnects from the probe.
func (p *Probe) Close() error {
	if ret := p.jlinkClose(); ret < 0 {
		return fmt.Errorf("probe: close: ret %d", ret)
	}
	return nil
}

// ExecCommand issues a free-form probe configuration command.
func (p *Probe) ExecCommand(text string) error {
	if ret := p.jlinkExecCommand(text, nil, 0); ret < 0 {
		return fmt.Errorf("probe: exec command %q: ret %d", text, ret)
	}
	return nil
}

// Control issues an RTT terminal control command.
func (p *Probe) Control(cmd rtt.Command, dir *int) (int, error) {
	var argp *int32
	if dir != nil {
		arg := int32(*dir)
		argp = &arg
	}
	ret := p.rttControl(int32(cmd), argp)
	if ret < 0 {
		return 0, fmt.Errorf("probe: RTT control %d: ret %d", cmd, ret)
	}
	return int(ret), nil
}

// Read pulls available bytes from an up channel. Zero means no data.
func (p *Probe) Read(channel int, buf []byte) (int, error) {
	ret := p.rttRead(int32(channel), buf, int32(len(buf)))
	if ret < 0 {
		return 0, fmt.Errorf("probe: RTT read channel %d: ret %d", channel, ret)
	}
	return int(ret), nil
}

// Write pushes bytes to a down channel; may consume a prefix only.
func (p *Probe) Write(channel int, buf []byte) (int, error) {
	ret := p.rttWrite(int32(channel), buf, int32(len(buf)))
	if ret < 0 {
		return 0, fmt.Errorf("probe: RTT write channel %d: ret %d", channel, ret)
	}
	return int(ret), nil
}
