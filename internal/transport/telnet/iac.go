package telnet

// negotiation is one server option request: the command byte (WILL, WONT,
// DO, DONT) and its option byte.
type negotiation struct {
	cmd byte
	opt byte
}

// iacParser filters IAC sequences out of the byte stream. It is a state
// machine because sequences routinely straddle read-chunk boundaries.
type iacParser struct {
	state parserState
	cmd   byte
}

type parserState int

const (
	stateText parserState = iota
	stateIAC
	stateOption
	stateSB
	stateSBIAC
)

// feed consumes one chunk and returns the plain text bytes, the option
// negotiations encountered, and whether a Go Ahead was seen. GA is the
// server's prompt boundary marker and is surfaced to the reader.
func (p *iacParser) feed(chunk []byte) (text []byte, negs []negotiation, ga bool) {
	text = make([]byte, 0, len(chunk))
	for _, b := range chunk {
		switch p.state {
		case stateText:
			if b == IAC {
				p.state = stateIAC
				continue
			}
			text = append(text, b)
		case stateIAC:
			switch b {
			case WILL, WONT, DO, DONT:
				p.cmd = b
				p.state = stateOption
			case SB:
				p.state = stateSB
			case GA:
				ga = true
				p.state = stateText
			case IAC:
				// Escaped 0xFF: literal byte.
				text = append(text, IAC)
				p.state = stateText
			default:
				// NOP and other bare commands.
				p.state = stateText
			}
		case stateOption:
			negs = append(negs, negotiation{cmd: p.cmd, opt: b})
			p.state = stateText
		case stateSB:
			if b == IAC {
				p.state = stateSBIAC
			}
		case stateSBIAC:
			if b == SE {
				p.state = stateText
			} else {
				p.state = stateSB
			}
		}
	}
	return text, negs, ga
}
