package siomodem

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// fakeDialNumber connects without touching the network. Some terminal
// programs dial it to check that a modem is present.
const fakeDialNumber = "5551234"

type dialAlias struct {
	host string
	port string
}

// dialAliases maps legacy phone numbers to BBS hosts.
var dialAliases = map[string]dialAlias{
	"1231231234": {"ukbbs.zap.to", "128"},
	"123":        {"rainmaker.wunderground.com", "23"},
	"000":        {"stargate.synchro.net", "23"},
}

var helpLines = []string{
	"SIO 850 modem emulator",
	"",
	"ATWIFILIST         List available networks",
	"ATWIFICONNECT<ssid>,<key>",
	"                   Connect to a network",
	"ATIP               Show IP address",
	"ATDT<host>[:<port>]",
	"                   Call a host (port 23 by default)",
	"ATGET<url>         Fetch an http:// URL",
	"ATA                Answer an incoming call",
	"ATH, +++ATH        Hang up",
	"+++                Back to command mode after 1s pause",
	"ATPORT<port>       Listen for calls (0 disables)",
	"ATS0=0, ATS0=1     Auto answer off, on",
	"ATNET0, ATNET1     Telnet negotiation off, on",
	"ATE0, ATE1         Command echo off, on",
	"ATV0, ATV1         Numeric, verbose results",
	"AT+TERM=<type>     VT52, VT100, ANSI or DUMB",
	"AT+SNIFF, AT-SNIFF Traffic capture on, off",
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func parsePort(s string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: port %q", ErrInvalidTarget, s)
	}
	if p < 1 || p > 65535 {
		return 0, fmt.Errorf("%w: port %d out of range", ErrInvalidTarget, p)
	}
	return p, nil
}

// startCall switches to connected mode on conn.
func (m *Modem) startCall(conn Conn, incoming bool) {
	if err := conn.SetNoDelay(true); err != nil {
		m.log.Debug("SetNoDelay failed", "error", err)
	}
	m.conn = newTracedConn(conn, m.sniffer)
	m.escape.Reset()
	m.printConnect()
	m.carrier = true
	m.metrics.NumConns++
	if incoming {
		m.metrics.NumInConns++
	} else {
		m.metrics.NumOutConns++
	}
	m.metrics.LastConnTime = m.now()
	m.setMode(ConnectedMode)
	if err := m.bus.Flush(); err != nil {
		m.log.Debug("Bus flush failed", "error", err)
	}
}

// endCall hangs up and returns to command mode with a fresh Telnet engine.
func (m *Modem) endCall(noCarrier bool) {
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.carrier = false
	m.escape.Reset()
	m.setMode(CommandMode)
	if noCarrier {
		m.printRetCode(RetCodeNoCarrier)
	}
	m.resetTelnet()
	m.log.Info("Call ended", "no_carrier", noCarrier)
}

func (m *Modem) callActive() bool {
	return m.conn != nil
}

// answer accepts the pending caller, if there is one.
func (m *Modem) answer() bool {
	if m.listener == nil || !m.listener.HasClient() {
		return false
	}
	conn, err := m.listener.Accept()
	if err != nil {
		m.log.Warn("Accepting caller", "error", err)
		return false
	}
	m.answerHack = false
	m.log.Info("Answering call", "port", m.listenPort)
	m.startCall(conn, true)
	return true
}

func (m *Modem) atAnswer(string) {
	if !m.answer() {
		m.printRetCode(RetCodeNoCarrier)
	}
}

func (m *Modem) atHangup(string) {
	if m.callActive() {
		m.endCall(true)
		return
	}
	m.printRetCode(RetCodeOk)
}

func (m *Modem) atIP(string) {
	if m.wifi.Connected() {
		m.println(m.wifi.IPAddress())
	} else {
		m.println("Not connected to a network")
	}
	m.printRetCode(RetCodeOk)
}

func (m *Modem) atHelp(string) {
	for _, l := range helpLines {
		m.println(l)
	}
	m.println("")
	if m.listenPort > 0 {
		m.println("Listening to connections on port " + strconv.Itoa(m.listenPort))
		m.println("which result in RING that you can answer with ATA.")
	} else {
		m.println("Incoming connections are disabled.")
	}
	m.println("")
	m.printRetCode(RetCodeOk)
}

func (m *Modem) dialFailed(err error) {
	m.log.Info("Call failed", "error", err)
	m.printRetCode(RetCodeNoCarrier)
	m.carrier = false
	m.resetTelnet()
}

func (m *Modem) atDial(line string) {
	target := line[4:]
	host, port := target, "23"
	if i := strings.IndexByte(target, ':'); i >= 0 {
		host, port = target[:i], target[i+1:]
	}
	host = strings.TrimSpace(host)

	if isDigits(host) {
		if a, ok := dialAliases[host]; ok {
			host, port = a.host, a.port
		}
	}

	if host == fakeDialNumber {
		m.sleep(m.fakeDialDelay)
		m.printConnect()
		m.log.Info("Fake connect", "number", host)
		return
	}

	p, err := parsePort(port)
	if host == "" || err != nil {
		m.log.Debug("Bad dial target", "target", target, "error", err)
		m.printRetCode(RetCodeError)
		return
	}

	m.println("Connecting to " + host + ":" + strconv.Itoa(p))
	ctx, cancel := context.WithTimeout(context.Background(), m.dialTimeout)
	conn, err := m.network.Dial(ctx, host, p)
	cancel()
	if err != nil {
		m.dialFailed(err)
		return
	}
	m.log.Info("Call connected", "host", host, "port", p)
	m.startCall(conn, false)
}

// atGet connects to an http URL and sends a GET; the response is relayed
// like any other call data.
func (m *Modem) atGet(line string) {
	u, err := url.Parse(strings.TrimSpace(line[5:]))
	if err != nil || u.Scheme != "http" || u.Hostname() == "" {
		m.log.Debug("Bad URL", "url", line[5:], "error", err)
		m.printRetCode(RetCodeError)
		return
	}
	host := u.Hostname()
	port := 80
	if u.Port() != "" {
		if port, err = parsePort(u.Port()); err != nil {
			m.printRetCode(RetCodeError)
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.dialTimeout)
	conn, err := m.network.Dial(ctx, host, port)
	cancel()
	if err != nil {
		m.dialFailed(err)
		return
	}
	m.startCall(conn, false)

	request := "GET " + u.RequestURI() + " HTTP/1.1\r\nHost: " + host + "\r\nConnection: close\r\n\r\n"
	m.connWrite([]byte(request))
}

func (m *Modem) atPort(line string) {
	arg := strings.TrimSpace(line[6:])
	port, err := strconv.Atoi(arg)
	if err != nil || port < 0 || port > 65535 {
		m.printRetCode(RetCodeError)
		return
	}
	if m.listener != nil {
		m.dropConn()
		m.stopListening()
	}
	if port == 0 {
		m.printRetCode(RetCodeOk)
		return
	}
	if err := m.listen(port); err != nil {
		m.printRetCode(RetCodeError)
		return
	}
	m.printRetCode(RetCodeOk)
}

func (m *Modem) atWiFiList(string) {
	m.println("")
	m.println("Scanning...")
	n, err := m.wifi.ScanNetworks()
	m.println("")
	if err != nil {
		m.log.Warn("Network scan failed", "error", err)
	}
	if err != nil || n == 0 {
		m.println("No networks found")
	} else {
		m.println(strconv.Itoa(n) + " networks found:")
		m.println("")
		for i := 0; i < n; i++ {
			r, err := m.wifi.ScanResult(i)
			if err != nil {
				continue
			}
			security := "(secured)"
			if r.Open {
				security = "(open)"
			}
			m.println(fmt.Sprintf("%d: %s [%d/%d]", i+1, r.SSID, r.Channel, r.RSSI))
			m.println("    " + r.BSSID + " " + security)
		}
	}
	m.println("")
	m.printRetCode(RetCodeOk)
}

func (m *Modem) atWiFiConnect(line string) {
	ssid, key, _ := strings.Cut(line[len("ATWIFICONNECT"):], ",")
	ssid = strings.TrimSpace(ssid)
	if ssid == "" {
		m.printRetCode(RetCodeError)
		return
	}

	m.println("Connecting to " + ssid)
	if err := m.wifi.Connect(ssid, key); err != nil {
		m.log.Warn("Network connect failed", "ssid", ssid, "error", err)
	}
	for retries := 0; !m.wifi.Connected() && retries < m.wifiRetries; retries++ {
		m.sleep(m.wifiRetryDelay)
		m.print(".")
	}
	if !m.wifi.Connected() {
		m.printRetCode(RetCodeError)
		return
	}
	m.printRetCode(RetCodeOk)
}
