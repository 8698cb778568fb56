package playback

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/melodyfetch/internal/shared"
)

const (
	DefaultPlayer         = "mpv"
	defaultConnectTimeout = 5 * time.Second
	defaultCommandTimeout = 2 * time.Second
)

var errMediaClosed = errors.New("media closed")

// MPVEngine plays streams through an mpv subprocess controlled over its JSON IPC socket.
type MPVEngine struct {
	Path      string   // Defaults to "mpv" on PATH
	Args      []string // Extra flags appended before the URL
	SocketDir string   // Defaults to the OS temp dir
	Logger    *log.Logger

	ConnectTimeout time.Duration
}

// Open launches mpv paused on url and connects to its IPC socket.
func (e *MPVEngine) Open(ctx context.Context, url string) (Media, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: stream url is empty", shared.ErrInvalidArgument)
	}

	dir := e.SocketDir
	if dir == "" {
		dir = os.TempDir()
	}
	socket := filepath.Join(dir, "melodyfetch-"+shared.GenerateID()+".sock")

	path := e.Path
	if path == "" {
		path = DefaultPlayer
	}
	args := []string{
		"--no-video",
		"--no-terminal",
		"--idle=yes",
		"--keep-open=yes",
		"--pause",
		"--input-ipc-server=" + socket,
	}
	args = append(args, e.Args...)
	args = append(args, url)

	// Not CommandContext: the player outlives the request that opened it.
	cmd := exec.Command(path, args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", path, err)
	}
	proc := &cmdProcess{cmd: cmd}

	timeout := e.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	conn, err := dialSocket(ctx, socket, timeout)
	if err != nil {
		proc.Stop()
		os.Remove(socket)
		return nil, err
	}

	m, err := newMPVMedia(conn, proc, socket, e.logger())
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (e *MPVEngine) logger() *log.Logger {
	if e.Logger == nil {
		return log.Default()
	}
	return e.Logger
}

// dialSocket waits for mpv to create its IPC socket.
func dialSocket(ctx context.Context, socket string, timeout time.Duration) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	for {
		conn, err := d.DialContext(ctx, "unix", socket)
		if err == nil {
			return conn, nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: waiting for player socket %s: %v", shared.ErrTimeout, socket, err)
			}
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

type process interface {
	Stop() error
}

type cmdProcess struct {
	cmd *exec.Cmd
}

func (p *cmdProcess) Stop() error {
	if p.cmd.Process == nil {
		return nil
	}
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	p.cmd.Wait()
	return nil
}

type mpvRequest struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

// mpvMessage is either a command reply (request_id set, no event) or an event.
type mpvMessage struct {
	RequestID int64           `json:"request_id"`
	Error     string          `json:"error"`
	Data      json.RawMessage `json:"data"`
	Event     string          `json:"event"`
	Name      string          `json:"name"`
	Reason    string          `json:"reason"`
	FileError string          `json:"file_error"`
}

// MPVMedia is a [Media] backed by one mpv process.
type MPVMedia struct {
	conn    net.Conn
	proc    process
	socket  string
	logger  *log.Logger
	timeout time.Duration

	events chan Event
	done   chan struct{}
	once   sync.Once
	nextID atomic.Int64

	writeMu sync.Mutex
	mu      sync.Mutex
	pending map[int64]chan mpvMessage

	position atomic.Uint64 // math.Float64bits of the last known position
}

func newMPVMedia(conn net.Conn, proc process, socket string, logger *log.Logger) (*MPVMedia, error) {
	m := &MPVMedia{
		conn:    conn,
		proc:    proc,
		socket:  socket,
		logger:  logger,
		timeout: defaultCommandTimeout,
		events:  make(chan Event, 16),
		done:    make(chan struct{}),
		pending: make(map[int64]chan mpvMessage),
	}
	go m.read()

	for i, name := range []string{"duration", "eof-reached"} {
		if _, err := m.command("observe_property", i+1, name); err != nil {
			m.Close()
			return nil, fmt.Errorf("failed to observe %s: %w", name, err)
		}
	}
	return m, nil
}

func (m *MPVMedia) Events() <-chan Event { return m.events }

func (m *MPVMedia) Play() error {
	_, err := m.command("set_property", "pause", false)
	return err
}

func (m *MPVMedia) Pause() error {
	_, err := m.command("set_property", "pause", true)
	return err
}

func (m *MPVMedia) Seek(seconds float64) error {
	_, err := m.command("seek", seconds, "absolute")
	if err == nil {
		m.position.Store(math.Float64bits(seconds))
	}
	return err
}

// Position returns the playback position, or the last known one if mpv cannot answer.
func (m *MPVMedia) Position() float64 {
	if v, err := m.floatProperty("time-pos"); err == nil {
		m.position.Store(math.Float64bits(v))
		return v
	}
	return math.Float64frombits(m.position.Load())
}

// Duration returns NaN until mpv knows the stream length.
func (m *MPVMedia) Duration() float64 {
	v, err := m.floatProperty("duration")
	if err != nil {
		return math.NaN()
	}
	return v
}

// Close asks mpv to quit, then kills it and removes the socket.
func (m *MPVMedia) Close() error {
	var err error
	m.once.Do(func() {
		m.send(mpvRequest{Command: []any{"quit"}})
		close(m.done)
		err = m.conn.Close()
		if m.proc != nil {
			if perr := m.proc.Stop(); perr != nil && err == nil {
				err = perr
			}
		}
		if m.socket != "" {
			os.Remove(m.socket)
		}
	})
	return err
}

func (m *MPVMedia) floatProperty(name string) (float64, error) {
	data, err := m.command("get_property", name)
	if err != nil {
		return 0, err
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return 0, fmt.Errorf("property %s: %w", name, err)
	}
	return v, nil
}

func (m *MPVMedia) command(args ...any) (json.RawMessage, error) {
	id := m.nextID.Add(1)
	reply := make(chan mpvMessage, 1)

	m.mu.Lock()
	select {
	case <-m.done:
		m.mu.Unlock()
		return nil, errMediaClosed
	default:
	}
	m.pending[id] = reply
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.pending, id)
		m.mu.Unlock()
	}()

	if err := m.send(mpvRequest{Command: args, RequestID: id}); err != nil {
		return nil, err
	}

	select {
	case msg := <-reply:
		if msg.Error != "success" {
			return nil, fmt.Errorf("mpv %v: %s", args[0], msg.Error)
		}
		return msg.Data, nil
	case <-time.After(m.timeout):
		return nil, fmt.Errorf("%w: mpv %v", shared.ErrTimeout, args[0])
	case <-m.done:
		return nil, errMediaClosed
	}
}

func (m *MPVMedia) send(req mpvRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	m.conn.SetWriteDeadline(time.Now().Add(m.timeout))
	_, err = m.conn.Write(append(payload, '\n'))
	return err
}

// read dispatches replies and translates mpv events until the connection closes.
func (m *MPVMedia) read() {
	defer close(m.events)

	scanner := bufio.NewScanner(m.conn)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var msg mpvMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			m.logger.Debug("skipping malformed mpv message", "error", err)
			continue
		}

		if msg.Event == "" {
			m.mu.Lock()
			reply, ok := m.pending[msg.RequestID]
			m.mu.Unlock()
			if ok {
				select {
				case reply <- msg:
				default:
				}
			}
			continue
		}

		for _, ev := range translate(msg) {
			select {
			case m.events <- ev:
			case <-m.done:
				return
			}
		}
	}
}

func translate(msg mpvMessage) []Event {
	switch msg.Event {
	case "file-loaded":
		return []Event{{Kind: EventMetadata, Duration: math.NaN()}, {Kind: EventCanPlay}}
	case "end-file":
		switch msg.Reason {
		case "eof":
			return []Event{{Kind: EventEnded}}
		case "error":
			reason := msg.FileError
			if reason == "" {
				reason = "unknown error"
			}
			return []Event{{Kind: EventError, Err: errors.New(reason)}}
		}
	case "property-change":
		switch msg.Name {
		case "duration":
			var d float64
			if err := json.Unmarshal(msg.Data, &d); err == nil {
				return []Event{{Kind: EventMetadata, Duration: d}}
			}
		case "eof-reached":
			var eof bool
			if err := json.Unmarshal(msg.Data, &eof); err == nil && eof {
				return []Event{{Kind: EventEnded}}
			}
		}
	}
	return nil
}
