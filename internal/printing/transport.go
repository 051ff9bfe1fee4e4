package printing

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"pos-core/internal/apperr"
	"pos-core/internal/config"
)

const dialTimeout = 3 * time.Second

var ErrPrinterUnavailable = apperr.Integration("PRINTER_UNAVAILABLE", "printer could not be reached")

// Transport delivers an encoded print job to a device.
type Transport interface {
	Send(ctx context.Context, job []byte) error
	Describe() string
}

// NetworkTransport writes raw jobs to a printer listening on TCP, usually
// port 9100.
type NetworkTransport struct {
	Addr    string
	Timeout time.Duration
}

func (t *NetworkTransport) Send(ctx context.Context, job []byte) error {
	dialer := net.Dialer{Timeout: t.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.Addr)
	if err != nil {
		return ErrPrinterUnavailable.Wrap(err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	} else {
		_ = conn.SetWriteDeadline(time.Now().Add(t.Timeout))
	}
	if _, err := conn.Write(job); err != nil {
		return ErrPrinterUnavailable.Wrap(err)
	}
	return nil
}

func (t *NetworkTransport) Describe() string { return "network " + t.Addr }

// DeviceTransport writes jobs to a USB printer-class device node such as
// /dev/usb/lp0.
type DeviceTransport struct {
	Path string
}

func (t *DeviceTransport) Send(ctx context.Context, job []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.OpenFile(t.Path, os.O_WRONLY, 0)
	if err != nil {
		return ErrPrinterUnavailable.Wrap(err)
	}
	if _, err := f.Write(job); err != nil {
		f.Close()
		return ErrPrinterUnavailable.Wrap(err)
	}
	if err := f.Close(); err != nil {
		return ErrPrinterUnavailable.Wrap(err)
	}
	return nil
}

func (t *DeviceTransport) Describe() string { return "device " + t.Path }

// FallbackTransport logs the readable form of the job instead of printing.
type FallbackTransport struct {
	Name   string
	Logger *zap.Logger
}

func (t *FallbackTransport) Send(ctx context.Context, job []byte) error {
	t.Logger.Info("printer fallback", zap.String("printer", t.Name), zap.String("job", string(job)))
	return nil
}

func (t *FallbackTransport) Describe() string { return "fallback" }

// NewTransport selects the transport for settings. Incomplete settings
// select the fallback explicitly.
func NewTransport(name string, settings config.PrinterSettings, logger *zap.Logger) Transport {
	fallback := &FallbackTransport{Name: name, Logger: logger}

	switch settings.Mode {
	case config.PrinterModeNetwork:
		if settings.Host == "" || settings.Port <= 0 || settings.Port > 65535 {
			logger.Warn("network printer misconfigured, using fallback", zap.String("printer", name))
			return fallback
		}
		return &NetworkTransport{
			Addr:    net.JoinHostPort(settings.Host, strconv.Itoa(settings.Port)),
			Timeout: dialTimeout,
		}
	case config.PrinterModeUSB:
		if settings.Device == "" {
			logger.Warn("usb printer has no device node, using fallback",
				zap.String("printer", name),
				zap.String("usb_id", fmt.Sprintf("%04x:%04x", settings.USBVID, settings.USBPID)))
			return fallback
		}
		return &DeviceTransport{Path: settings.Device}
	default:
		logger.Warn("unknown printer mode, using fallback", zap.String("printer", name), zap.String("mode", settings.Mode))
		return fallback
	}
}
