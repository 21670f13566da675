package stomp

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// STOMP 1.2 commands used by the client and the broker.
const (
	CmdConnect     = "CONNECT"
	CmdConnected   = "CONNECTED"
	CmdSubscribe   = "SUBSCRIBE"
	CmdUnsubscribe = "UNSUBSCRIBE"
	CmdSend        = "SEND"
	CmdMessage     = "MESSAGE"
	CmdReceipt     = "RECEIPT"
	CmdError       = "ERROR"
	CmdDisconnect  = "DISCONNECT"
)

var errIncompleteFrame = errors.New("stomp: incomplete frame")

// Frame is one STOMP frame. Header order is preserved; the first occurrence of a
// repeated header wins.
type Frame struct {
	Command string
	Headers [][2]string
	Body    []byte
}

// NewFrame builds a frame from alternating header names and values.
func NewFrame(command string, body []byte, headers ...string) Frame {
	f := Frame{Command: command, Body: body}
	for i := 0; i+1 < len(headers); i += 2 {
		f.Headers = append(f.Headers, [2]string{headers[i], headers[i+1]})
	}

	return f
}

// Header returns the first value of name.
func (f Frame) Header(name string) (string, bool) {
	for _, h := range f.Headers {
		if h[0] == name {
			return h[1], true
		}
	}

	return "", false
}

// escapes reports whether header values of this command are escaped. CONNECT and
// CONNECTED frames are exempt for compatibility with STOMP 1.0 peers.
func escapes(command string) bool {
	return command != CmdConnect && command != CmdConnected
}

var (
	headerEscaper   = strings.NewReplacer(`\`, `\\`, "\r", `\r`, "\n", `\n`, ":", `\c`)
	headerUnescaper = strings.NewReplacer(`\\`, `\`, `\r`, "\r", `\n`, "\n", `\c`, ":")
)

// Marshal encodes f including the trailing NUL. A content-length header is added when
// the frame has a body and none was given.
func (f Frame) Marshal() []byte {
	var buf bytes.Buffer
	buf.WriteString(f.Command)
	buf.WriteByte('\n')

	esc := escapes(f.Command)
	hasLength := false
	for _, h := range f.Headers {
		if h[0] == "content-length" {
			hasLength = true
		}
		name, value := h[0], h[1]
		if esc {
			name, value = headerEscaper.Replace(name), headerEscaper.Replace(value)
		}
		buf.WriteString(name)
		buf.WriteByte(':')
		buf.WriteString(value)
		buf.WriteByte('\n')
	}
	if len(f.Body) > 0 && !hasLength {
		buf.WriteString("content-length:")
		buf.WriteString(strconv.Itoa(len(f.Body)))
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	buf.Write(f.Body)
	buf.WriteByte(0)

	return buf.Bytes()
}

// ParseFrames decodes every frame in data. Heart-beat EOLs between frames are skipped.
func ParseFrames(data []byte) ([]Frame, error) {
	var frames []Frame
	for {
		data = bytes.TrimLeft(data, "\r\n")
		if len(data) == 0 {
			return frames, nil
		}

		f, rest, err := parseFrame(data)
		if err != nil {
			return frames, err
		}
		frames = append(frames, f)
		data = rest
	}
}

func parseFrame(data []byte) (Frame, []byte, error) {
	end := bytes.Index(data, []byte("\n\n"))
	sep := 2
	if crlf := bytes.Index(data, []byte("\r\n\r\n")); crlf >= 0 && (end < 0 || crlf < end) {
		end, sep = crlf, 4
	}
	if end < 0 {
		return Frame{}, nil, errIncompleteFrame
	}

	lines := strings.Split(strings.ReplaceAll(string(data[:end]), "\r\n", "\n"), "\n")
	f := Frame{Command: lines[0]}
	if f.Command == "" {
		return Frame{}, nil, fmt.Errorf("stomp: missing command")
	}

	esc := escapes(f.Command)
	for _, line := range lines[1:] {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return Frame{}, nil, fmt.Errorf("stomp: malformed header %q", line)
		}
		if esc {
			name, value = headerUnescaper.Replace(name), headerUnescaper.Replace(value)
		}
		f.Headers = append(f.Headers, [2]string{name, value})
	}

	body := data[end+sep:]
	if v, ok := f.Header("content-length"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Frame{}, nil, fmt.Errorf("stomp: bad content-length %q", v)
		}
		if len(body) < n+1 || body[n] != 0 {
			return Frame{}, nil, errIncompleteFrame
		}
		f.Body = append([]byte(nil), body[:n]...)

		return f, body[n+1:], nil
	}

	nul := bytes.IndexByte(body, 0)
	if nul < 0 {
		return Frame{}, nil, errIncompleteFrame
	}
	f.Body = append([]byte(nil), body[:nul]...)

	return f, body[nul+1:], nil
}
