// Command simcom-shell is an interactive operator console for a SimCom
// modem: it brings the modem up using the same Config/Dialer machinery as
// the HTTP gateway, then reads line commands from stdin to report status,
// send SMS and exercise a TCP/TLS socket by hand.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/simcom-go/modem/modem"
)

type options struct {
	SerialPort string `short:"p" long:"port" default:"/dev/ttyUSB0" description:"Serial port connected to the modem"`
	BaudRate   int    `short:"b" long:"baud" default:"115200" description:"Baud rate for serial communication"`
	SimPIN     string `long:"pin" description:"SIM card PIN code, if required"`
	APN        string `long:"apn" description:"GPRS access point name"`
	LogLevel   string `long:"log-level" default:"warn" description:"Log level (debug, info, warn, error)"`
}

func main() {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	logLevel := slog.LevelWarn
	switch opts.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "error":
		logLevel = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	cfg, err := modem.NewConfigBuilder().
		WithATTimeout(5 * time.Second).
		WithInitTimeout(30 * time.Second).
		WithMaxRetries(5).
		WithMinSendInterval(10 * time.Second).
		WithPIN(opts.SimPIN, true).
		WithAPN(opts.APN, "", "").
		WithDialer(modem.SerialDialer{
			PortName: opts.SerialPort,
			BaudRate: opts.BaudRate,
		}).
		Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, "building modem config:", err)
		os.Exit(1)
	}

	m, err := modem.New(cfg, logger.With("component", "modem"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "creating modem:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := m.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("modem run loop exited", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
		m.Close()
		os.Exit(0)
	}()

	fmt.Println("simcom-shell ready, type 'help' for commands")
	shell := &shell{m: m, out: os.Stdout}
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		shell.dispatch(ctx, scanner.Text())
	}

	cancel()
	m.Close()
}

type shell struct {
	m    *modem.Modem
	sock *modem.Socket
	out  *os.File
}

func (sh *shell) dispatch(ctx context.Context, line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	switch fields[0] {
	case "help":
		fmt.Fprintln(sh.out, "commands: status | sms <number> <text...> | open <host> <port> [tls] | send <text...> | close | quit")
	case "status":
		sh.printStatus()
	case "sms":
		sh.sendSMS(ctx, fields)
	case "open":
		sh.openSocket(ctx, fields)
	case "send":
		sh.sendSocket(fields)
	case "close":
		sh.closeSocket(ctx)
	case "quit", "exit":
		os.Exit(0)
	default:
		fmt.Fprintln(sh.out, "unknown command, type 'help'")
	}
}

func (sh *shell) printStatus() {
	fmt.Fprintf(sh.out, "modem=%s gsm=%v sim=%v tcp=%v rssi=%d\n",
		sh.m.Status(), sh.m.GsmStatus(), sh.m.SimStatus(), sh.m.TcpStatus(), sh.m.Rssi())
}

func (sh *shell) sendSMS(ctx context.Context, fields []string) {
	if len(fields) < 3 {
		fmt.Fprintln(sh.out, "usage: sms <number> <text...>")
		return
	}
	msg := sh.m.SendMessage(fields[1], strings.Join(fields[2:], " "))
	if !msg.WaitUntilProcessed(ctx, 60*time.Second) {
		fmt.Fprintln(sh.out, "timed out waiting for send confirmation")
		return
	}
	if msg.SendFailed() {
		fmt.Fprintln(sh.out, "modem reported the send failed")
		return
	}
	fmt.Fprintf(sh.out, "sent, mr=%d\n", msg.MessageReference())
}

func (sh *shell) openSocket(ctx context.Context, fields []string) {
	if len(fields) < 3 {
		fmt.Fprintln(sh.out, "usage: open <host> <port> [tls]")
		return
	}
	port, err := strconv.Atoi(fields[2])
	if err != nil {
		fmt.Fprintln(sh.out, "invalid port:", err)
		return
	}
	tls := len(fields) > 3 && fields[3] == "tls"

	sh.sock = sh.m.CreateSocket(fields[1], uint16(port), tls)
	if !sh.sock.Connect(ctx, 30*time.Second) {
		fmt.Fprintln(sh.out, "connect failed")
		sh.sock.Release()
		sh.sock = nil
		return
	}
	fmt.Fprintln(sh.out, "connected")
}

func (sh *shell) sendSocket(fields []string) {
	if sh.sock == nil {
		fmt.Fprintln(sh.out, "no open socket")
		return
	}
	if len(fields) < 2 {
		fmt.Fprintln(sh.out, "usage: send <text...>")
		return
	}
	if _, err := sh.sock.Write([]byte(strings.Join(fields[1:], " ") + "\n")); err != nil {
		fmt.Fprintln(sh.out, "write failed:", err)
	}
}

func (sh *shell) closeSocket(ctx context.Context) {
	if sh.sock == nil {
		fmt.Fprintln(sh.out, "no open socket")
		return
	}
	sh.sock.Disconnect(ctx, 30*time.Second)
	sh.sock.Release()
	sh.sock = nil
	fmt.Fprintln(sh.out, "closed")
}
