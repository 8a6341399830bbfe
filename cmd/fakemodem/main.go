// Command fakemodem exposes a pseudo-terminal that answers the SimCom
// SIM800 AT dialect well enough to drive the modem package against it:
// autobaud, ATI model string, +CPIN, +CREG/+CGREG URCs, a fake GPRS
// bearer and TCP sockets keyed by channel. Point SerialDialer at the
// printed tty path.
//
// Grounded on jaracil-vmodem/cmd/vmodem/modem.go, which opens a
// pty.New() pseudo-terminal and hands its io.ReadWriteCloser straight
// to a modem emulation loop; this does the same thing but speaks the
// SimCom dialect instead of a generic single-"OK" modem.
package main

import (
	"bufio"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/aymanbagabas/go-pty"
)

func main() {
	tty, err := pty.New()
	if err != nil {
		panic(err)
	}
	defer tty.Close()
	fmt.Printf("fakemodem tty path: %s\r\n", tty.Name())

	f := &fakeModem{
		tty:    tty,
		reader: bufio.NewReader(tty),
		echo:   true,
		cpin:   "READY",
		creg:   1,
		cgreg:  1,
		socket: make(map[int]*fakeSocket),
	}
	f.run()
}

type fakeSocket struct {
	open bool
}

type fakeModem struct {
	tty interface {
		Read([]byte) (int, error)
		Write([]byte) (int, error)
	}
	reader *bufio.Reader
	echo   bool
	cpin   string
	creg   int
	cgreg  int
	socket map[int]*fakeSocket
}

func (f *fakeModem) run() {
	// Mirror the module power-up banner the real firmware sends before
	// the host ever issues a command.
	f.writeLine("RDY")
	f.writeLine("+CPIN: READY")
	f.writeLine("Call Ready")
	f.writeLine("SMS Ready")

	for {
		line, err := f.readLine()
		if err != nil {
			return
		}
		if f.echo {
			f.write(line + "\r\n")
		}
		f.handleLine(line)
	}
}

// readLine reads up to the next '\r', the line terminator the modem
// package's own line discipline uses for AT commands (not '\n').
func (f *fakeModem) readLine() (string, error) {
	raw, err := f.reader.ReadString('\r')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(raw, "\r\n"), nil
}

func (f *fakeModem) write(s string) {
	f.tty.Write([]byte(s))
}

func (f *fakeModem) writeLine(s string) {
	f.write(s + "\r\n")
}

func (f *fakeModem) ok()    { f.writeLine(""); f.writeLine("OK") }
func (f *fakeModem) error() { f.writeLine(""); f.writeLine("ERROR") }

func (f *fakeModem) handleLine(line string) {
	if line == "" {
		return
	}
	if !strings.HasPrefix(line, "AT") {
		f.error()
		return
	}
	cmd := strings.TrimPrefix(line, "AT")

	switch {
	case cmd == "":
		f.ok()
	case cmd == "I":
		f.writeLine("SIM800 R14.18")
		f.ok()
	case cmd == "E0":
		f.echo = false
		f.ok()
	case cmd == "E1":
		f.echo = true
		f.ok()
	case strings.HasPrefix(cmd, "+CMEE="):
		f.ok()
	case strings.HasPrefix(cmd, "+IFC="):
		f.ok()
	case strings.HasPrefix(cmd, "+ICF="):
		f.ok()
	case cmd == "+CMGF=1":
		f.ok()
	case cmd == "+CPIN?":
		f.writeLine("+CPIN: " + f.cpin)
		f.ok()
	case strings.HasPrefix(cmd, `+CPIN="`):
		f.cpin = "READY"
		f.ok()
	case cmd == "+CREG=2":
		f.creg = 2
		f.ok()
		go f.delayedURC("+CREG: 1,1")
	case cmd == "+CGREG=2":
		f.cgreg = 2
		f.ok()
		go f.delayedURC("+CGREG: 1,1")
	case strings.HasPrefix(cmd, "+CSTT="):
		f.ok()
	case cmd == "+CIICR":
		f.ok()
	case cmd == "+CIFSR":
		f.writeLine("10.0.0.2")
	case strings.HasPrefix(cmd, "+CIPSSL="):
		f.ok()
	case strings.HasPrefix(cmd, "+CIPSTART="):
		f.handleCipstart(cmd)
	case strings.HasPrefix(cmd, "+CIPSEND="):
		f.handleCipsend(cmd)
	case strings.HasPrefix(cmd, "+CIPCLOSE="):
		f.handleCipclose(cmd)
	case cmd == "+CIPSHUT" || cmd == "+NETCLOSE" || cmd == "+CFUN=0":
		f.ok()
	case cmd == "+CPOWD=1":
		f.writeLine("NORMAL POWER DOWN")
	case strings.HasPrefix(cmd, `+CMGS="`):
		f.handleCmgs()
	default:
		f.ok()
	}
}

// delayedURC emits an unsolicited result code a moment after the
// triggering command completes, the way the real module's registration
// state change races the command's own "OK".
func (f *fakeModem) delayedURC(line string) {
	time.Sleep(50 * time.Millisecond)
	f.writeLine(line)
}

func (f *fakeModem) handleCipstart(cmd string) {
	args := strings.TrimPrefix(cmd, "+CIPSTART=")
	parts := strings.SplitN(args, ",", 2)
	ch, err := strconv.Atoi(parts[0])
	if err != nil {
		f.error()
		return
	}
	f.socket[ch] = &fakeSocket{open: true}
	f.ok()
	go func() {
		time.Sleep(50 * time.Millisecond)
		f.writeLine(fmt.Sprintf("%d, CONNECT OK", ch))
	}()
}

func (f *fakeModem) handleCipsend(cmd string) {
	args := strings.TrimPrefix(cmd, "+CIPSEND=")
	parts := strings.SplitN(args, ",", 2)
	if len(parts) != 2 {
		f.error()
		return
	}
	ch, _ := strconv.Atoi(parts[0])
	length, _ := strconv.Atoi(parts[1])
	if s := f.socket[ch]; s == nil || !s.open {
		f.error()
		return
	}
	f.write("> ")
	buf := make([]byte, length)
	total := 0
	for total < length {
		n, err := f.reader.Read(buf[total:])
		if err != nil {
			break
		}
		total += n
	}
	f.writeLine("")
	f.writeLine("DATA ACCEPT")
}

func (f *fakeModem) handleCipclose(cmd string) {
	args := strings.TrimPrefix(cmd, "+CIPCLOSE=")
	ch, err := strconv.Atoi(args)
	if err != nil {
		f.error()
		return
	}
	if s := f.socket[ch]; s != nil {
		s.open = false
	}
	f.ok()
}

// handleCmgs reads the message body terminated by Ctrl-Z (0x1a), the
// text-mode +CMGS convention, then reports a fabricated message
// reference the way the real module assigns one on submission.
func (f *fakeModem) handleCmgs() {
	f.write("> ")
	for {
		b, err := f.reader.ReadByte()
		if err != nil || b == 0x1a {
			break
		}
	}
	mr := rand.Intn(255)
	f.writeLine(fmt.Sprintf("+CMGS: %d", mr))
	f.ok()
}
