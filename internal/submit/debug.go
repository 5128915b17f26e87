package submit

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

const maxBodyLogSize = 1024

// DebugLogger dumps gateway traffic in a readable block format. A nil
// *DebugLogger logs nothing.
type DebugLogger struct {
	out io.Writer
	mu  sync.Mutex
}

func NewDebugLogger(out io.Writer) *DebugLogger {
	return &DebugLogger{out: out}
}

func (d *DebugLogger) LogRequest(verb string, req *http.Request) {
	if d == nil {
		return
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "\n>>> REQUEST: %s\n", verb)
	fmt.Fprintf(&buf, "  %s %s\n", req.Method, req.URL.String())
	writeHeaders(&buf, req.Header)

	if req.Body != nil && req.Body != http.NoBody {
		body, err := io.ReadAll(req.Body)
		if err == nil {
			req.Body = io.NopCloser(bytes.NewReader(body))
			if len(body) > 0 {
				fmt.Fprintf(&buf, "  Body: %s\n", truncateBody(body))
			}
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprint(d.out, buf.String())
}

func (d *DebugLogger) LogResponse(verb string, resp *http.Response, body []byte, duration time.Duration) {
	if d == nil {
		return
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<<< RESPONSE: %s (%s)\n", verb, duration.Round(time.Millisecond))
	fmt.Fprintf(&buf, "  Status: %d %s\n", resp.StatusCode, http.StatusText(resp.StatusCode))
	writeHeaders(&buf, resp.Header)
	if len(body) > 0 {
		fmt.Fprintf(&buf, "  Body: %s\n", truncateBody(body))
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprint(d.out, buf.String())
}

func (d *DebugLogger) LogError(verb string, err error, duration time.Duration) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.out, "!!! ERROR: %s (%s)\n  %v\n", verb, duration.Round(time.Millisecond), err)
}

func writeHeaders(buf *bytes.Buffer, h http.Header) {
	if len(h) == 0 {
		return
	}
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	buf.WriteString("  Headers:\n")
	for _, name := range names {
		fmt.Fprintf(buf, "    %s: %s\n", name, strings.Join(h[name], ", "))
	}
}

func truncateBody(body []byte) string {
	if len(body) <= maxBodyLogSize {
		return string(body)
	}
	return string(body[:maxBodyLogSize]) + fmt.Sprintf("... (truncated, %d bytes total)", len(body))
}
