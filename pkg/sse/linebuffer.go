package sse

import "bytes"

// lineBuffer holds decoded text that has not been dispatched yet.
type lineBuffer struct {
	data []byte
}

func (b *lineBuffer) write(p []byte) {
	b.data = append(b.data, p...)
}

// next removes and returns the first newline terminated line, without its
// newline. It reports false when no complete line is buffered.
func (b *lineBuffer) next() (string, bool) {
	i := bytes.IndexByte(b.data, '\n')
	if i < 0 {
		return "", false
	}
	line := string(b.data[:i])
	b.data = b.data[i+1:]
	return line, true
}

// unread puts line and its newline back at the front of the buffer.
func (b *lineBuffer) unread(line string) {
	rest := b.data
	b.data = make([]byte, 0, len(line)+1+len(rest))
	b.data = append(b.data, line...)
	b.data = append(b.data, '\n')
	b.data = append(b.data, rest...)
}

// drain empties the buffer and returns every remaining line, including a
// final line with no trailing newline.
func (b *lineBuffer) drain() []string {
	if len(b.data) == 0 {
		return nil
	}
	lines := bytes.Split(b.data, []byte{'\n'})
	b.data = nil

	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, string(l))
	}
	return out
}

func (b *lineBuffer) len() int {
	return len(b.data)
}
