package telnet

// RFCs of particular interest:
// - RFC 854  : Telnet Protocol Specification
// - RFC 857  : Telnet Echo Option
// - RFC 1091 : Telnet Terminal-Type Option
// - MCCP2 (COMPRESS2) and MSSP are MUD extensions that are declined here.

const (
	SE   byte = 240 // Sub negotiation End
	NOP  byte = 241 // No Operation
	DM   byte = 242 // Data Mark
	BRK  byte = 243 // Break
	IP   byte = 244 // Interrupt Process
	AO   byte = 245 // Abort Output
	AYT  byte = 246 // Are You There?
	EC   byte = 247 // Erase Character
	EL   byte = 248 // Erase Line
	GA   byte = 249 // Go Ahead
	SB   byte = 250 // Sub negotiation Begin
	WILL byte = 251
	WONT byte = 252
	DO   byte = 253
	DONT byte = 254
	IAC  byte = 255 // Interpret As Command

	// Terminal-type sub-negotiation commands
	IS   byte = 0
	SEND byte = 1

	// Options
	TransmitBinary byte = 0
	Echo           byte = 1
	SGA            byte = 3
	TType          byte = 24
	NAWS           byte = 31
	Compress2      byte = 86
	MSSP           byte = 70
)

// CommandNames maps Telnet command bytes to their names for logging.
var CommandNames = map[byte]string{
	SE:   "SE",
	NOP:  "NOP",
	DM:   "DM",
	BRK:  "BRK",
	IP:   "IP",
	AO:   "AO",
	AYT:  "AYT",
	EC:   "EC",
	EL:   "EL",
	GA:   "GA",
	SB:   "SB",
	WILL: "WILL",
	WONT: "WONT",
	DO:   "DO",
	DONT: "DONT",
	IAC:  "IAC",
}

// OptionNames maps the options the engine knows to their names for logging.
var OptionNames = map[byte]string{
	TransmitBinary: "TransmitBinary",
	Echo:           "Echo",
	SGA:            "SGA",
	TType:          "TType",
	NAWS:           "NAWS",
	Compress2:      "Compress2",
	MSSP:           "MSSP",
}

// Policy says how the engine answers negotiation for one option.
// Us is WILL or WONT (may we enable it locally when asked with DO),
// Him is DO or DONT (do we accept the remote enabling it with WILL).
type Policy struct {
	Option byte
	Us     byte
	Him    byte
}

// DefaultPolicies is the option table used by the modem: the remote may take
// over echoing, we report our terminal type, compression and MSSP are declined.
var DefaultPolicies = []Policy{
	{Option: Echo, Us: WONT, Him: DO},
	{Option: TType, Us: WILL, Him: DONT},
	{Option: Compress2, Us: WONT, Him: DONT},
	{Option: MSSP, Us: WONT, Him: DONT},
}
