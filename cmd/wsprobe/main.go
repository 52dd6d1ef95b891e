// Package main connects websocket clients to the status push channel and
// reports which events arrive. Use it to check realtime delivery against a
// running server while applications are moderated.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"scholarhub/internal/middleware"
	"scholarhub/internal/notifications"

	"github.com/gorilla/websocket"
)

// tally collects results across every probe connection.
type tally struct {
	dialed    atomic.Int64
	connected atomic.Int64
	failed    atomic.Int64
	malformed atomic.Int64

	mu     sync.Mutex
	byType map[string]int
	first  time.Duration
}

func (t *tally) event(kind string, sinceStart time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.byType == nil {
		t.byType = make(map[string]int)
	}
	if len(t.byType) == 0 || sinceStart < t.first {
		t.first = sinceStart
	}
	t.byType[kind]++
}

// counts returns event counts ordered by type name.
func (t *tally) counts() []slog.Attr {
	t.mu.Lock()
	defer t.mu.Unlock()
	kinds := make([]string, 0, len(t.byType))
	for k := range t.byType {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	out := make([]slog.Attr, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, slog.Int(k, t.byType[k]))
	}
	return out
}

type probe struct {
	host    string
	token   string
	verbose bool
	start   time.Time
	log     *slog.Logger
	tally   tally
}

func main() {
	host := flag.String("host", "localhost:8375", "API server host")
	email := flag.String("email", "student@example.com", "account to listen as")
	password := flag.String("password", "password123", "account password")
	clients := flag.Int("clients", 1, "concurrent connections for the account")
	duration := flag.Duration("duration", time.Minute, "how long to listen")
	verbose := flag.Bool("v", false, "log every event")
	flag.Parse()

	log := middleware.Logger.With(slog.String("component", "wsprobe"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()

	token, err := login(ctx, *host, *email, *password)
	if err != nil {
		log.Error("login failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("listening", slog.String("host", *host), slog.String("as", *email),
		slog.Int("clients", *clients), slog.Duration("duration", *duration))

	p := &probe{host: *host, token: token, verbose: *verbose, start: time.Now(), log: log}
	var wg sync.WaitGroup
	for i := range *clients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.listen(ctx, i)
		}()
	}
	<-ctx.Done()
	wg.Wait()
	p.report()
}

func login(ctx context.Context, host, email, password string) (string, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://"+host+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login returned %d", resp.StatusCode)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", errors.New("login response carried no token")
	}
	return out.Token, nil
}

// listen holds one connection open until ctx ends or the server hangs up.
func (p *probe) listen(ctx context.Context, id int) {
	p.tally.dialed.Add(1)
	u := url.URL{Scheme: "ws", Host: p.host, Path: "/api/ws", RawQuery: "token=" + url.QueryEscape(p.token)}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	if err != nil {
		p.tally.failed.Add(1)
		attrs := []any{slog.Int("client", id), slog.String("error", err.Error())}
		if resp != nil {
			attrs = append(attrs, slog.Int("status", resp.StatusCode))
		}
		p.log.Warn("dial failed", attrs...)
		return
	}
	defer func() { _ = conn.Close() }()
	p.tally.connected.Add(1)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		p.read(conn, id)
	}()

	select {
	case <-ctx.Done():
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		<-closed
	case <-closed:
		p.log.Warn("server closed the connection", slog.Int("client", id))
	}
}

func (p *probe) read(conn *websocket.Conn, id int) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var ev notifications.Event
		if err := json.Unmarshal(raw, &ev); err != nil || ev.Type == "" {
			p.tally.malformed.Add(1)
			continue
		}
		p.tally.event(ev.Type, time.Since(p.start))
		if p.verbose {
			p.log.Info("event", slog.Int("client", id), slog.String("type", ev.Type), slog.String("raw", string(raw)))
		}
	}
}

func (p *probe) report() {
	p.log.Info("connections",
		slog.Int64("dialed", p.tally.dialed.Load()),
		slog.Int64("connected", p.tally.connected.Load()),
		slog.Int64("failed", p.tally.failed.Load()),
		slog.Int64("malformed_frames", p.tally.malformed.Load()),
	)
	counts := p.tally.counts()
	if len(counts) == 0 {
		p.log.Info("no events received")
		return
	}
	p.tally.mu.Lock()
	first := p.tally.first
	p.tally.mu.Unlock()
	attrs := append([]slog.Attr{slog.Duration("first_after", first)}, counts...)
	p.log.LogAttrs(context.Background(), slog.LevelInfo, "events", attrs...)
}
