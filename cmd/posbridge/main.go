// Command posbridge exposes a local printer on a TCP port. Clients send raw
// ESC/POS bytes; posbridge forwards them through the resilient executor so
// flaky printer links are retried instead of dropping jobs.
//
// Configuration comes from a posbridge.yaml file or from environment
// variables of the same names, e.g. TRANSPORT=tcp TCP_ADDRESS=10.0.0.5:9100.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tillworks/posprint"
	"github.com/tillworks/posprint/adapter"
	"github.com/tillworks/posprint/escpos"
	"github.com/tillworks/posprint/server"
)

func main() {
	viper.AutomaticEnv()
	viper.SetConfigName("posbridge")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/posbridge")

	viper.SetDefault("SERVER_ADDRESS", "localhost:9100")
	viper.SetDefault("TRANSPORT", "usb")
	viper.SetDefault("USB_VID", "")
	viper.SetDefault("USB_PID", "")
	viper.SetDefault("USB_SERIAL", "")
	viper.SetDefault("TCP_ADDRESS", "")
	viper.SetDefault("SERIAL_PORT", "/dev/ttyUSB0")
	viper.SetDefault("SERIAL_BAUD", adapter.DefaultBaudRate)
	viper.SetDefault("BLUETOOTH_NAME", "")
	viper.SetDefault("PRINTER_WIDTH", posprint.DefaultWidth)
	viper.SetDefault("PRINTER_DOT_WIDTH", escpos.DefaultDotWidth)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FILE", "")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			logrus.WithError(err).Fatal("reading config file failed")
		}
	}

	log := newLogger()

	transport, err := buildAdapter(log)
	if err != nil {
		log.WithError(err).Fatal("building printer adapter failed")
	}

	device := escpos.NewWithConfig(transport, escpos.Config{
		DotWidth: viper.GetInt("PRINTER_DOT_WIDTH"),
	})
	printer := posprint.NewWithConfig(device, posprint.Config{
		Width:  viper.GetInt("PRINTER_WIDTH"),
		Logger: log,
	})

	svr := server.NewWithLogger(printer, viper.GetString("SERVER_ADDRESS"), log)
	if err := svr.StartAsync(); err != nil {
		log.WithError(err).Fatal("starting server failed")
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
	if err := svr.Stop(); err != nil {
		log.WithError(err).Error("stopping server failed")
	}

	m := printer.Metrics()
	log.WithFields(logrus.Fields{
		"commands":   m.Commands,
		"reconnects": m.Reconnects,
		"retries":    m.Retries,
		"fatal":      m.FatalErrors,
	}).Info("printer session summary")
}

// newLogger builds the process logger from LOG_LEVEL and LOG_FILE. With a
// file configured, output goes through lumberjack rotation instead of stderr.
func newLogger() *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(viper.GetString("LOG_LEVEL"))
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if file := viper.GetString("LOG_FILE"); file != "" {
		log.SetOutput(&lumberjack.Logger{
			Filename:   file,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		})
	}
	return log
}

// buildAdapter constructs the transport selected by TRANSPORT.
func buildAdapter(log *logrus.Logger) (adapter.Adapter, error) {
	switch transport := viper.GetString("TRANSPORT"); transport {
	case "usb":
		vid, pid, err := parseUSBID()
		if err != nil {
			return nil, err
		}
		return adapter.NewUSBAdapter(adapter.USBConfig{
			VID:    vid,
			PID:    pid,
			Serial: viper.GetString("USB_SERIAL"),
			Logger: log,
		}), nil

	case "tcp":
		address := viper.GetString("TCP_ADDRESS")
		if address == "" {
			return nil, fmt.Errorf("TCP_ADDRESS is required for the tcp transport")
		}
		return adapter.NewTCPAdapter(adapter.TCPConfig{
			Address: address,
			Logger:  log,
		}), nil

	case "serial":
		return adapter.NewSerialAdapter(adapter.SerialConfig{
			Port:     viper.GetString("SERIAL_PORT"),
			BaudRate: viper.GetInt("SERIAL_BAUD"),
			Logger:   log,
		}), nil

	case "bluetooth":
		name := viper.GetString("BLUETOOTH_NAME")
		if name == "" {
			return nil, fmt.Errorf("BLUETOOTH_NAME is required for the bluetooth transport")
		}
		return adapter.NewBluetoothAdapter(adapter.BluetoothConfig{
			Name:   name,
			Logger: log,
		}), nil

	default:
		return nil, fmt.Errorf("unknown transport %q", transport)
	}
}

// parseUSBID reads USB_VID and USB_PID as hex. Both empty selects
// auto-detection.
func parseUSBID() (uint16, uint16, error) {
	vidStr := viper.GetString("USB_VID")
	pidStr := viper.GetString("USB_PID")
	if vidStr == "" && pidStr == "" {
		return 0, 0, nil
	}

	vid, err := strconv.ParseUint(vidStr, 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid USB_VID %q: %w", vidStr, err)
	}
	pid, err := strconv.ParseUint(pidStr, 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid USB_PID %q: %w", pidStr, err)
	}
	return uint16(vid), uint16(pid), nil
}
