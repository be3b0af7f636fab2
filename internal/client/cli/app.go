package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/timn835/crypto-chat/internal/client/chatcache"
	"github.com/timn835/crypto-chat/internal/client/client"
	"github.com/timn835/crypto-chat/internal/client/config"
	"github.com/timn835/crypto-chat/internal/models"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// eventStream is the part of client.EventStream the App uses.
type eventStream interface {
	Events() <-chan models.RawEvent
	Send(ev models.Event) error
	Close() error
}

// dialEvents is a test seam for client.DialEvents.
var dialEvents = func(ctx context.Context, url, token string) (eventStream, error) {
	s, err := client.DialEvents(ctx, url, token)
	if err != nil {
		return nil, err
	}
	return s, nil
}

type App struct {
	config *config.Config
	api    client.Client
	cache  *chatcache.Cache
	reader *bufio.Reader
	out    io.Writer

	mu         sync.Mutex
	session    *client.Session
	stream     eventStream
	stopEvents context.CancelFunc
	Mode       Mode
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	cache, err := chatcache.New(ctx, c.CacheDSN)
	if err != nil {
		log.Printf("error initializing cache: %s", err.Error())
		return nil, err
	}

	api, err := client.NewChatClient(c.ServerEndpointAddr)
	if err != nil {
		_ = cache.Close()
		return nil, err
	}

	return &App{config: c, api: api, cache: cache, reader: bufio.NewReader(os.Stdin), out: os.Stdout}, nil
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Mode != mode {
		a.Mode = mode
		log.Printf("Switched to %s mode\n", mode)
	}
}

func (a *App) mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Mode
}

func (a *App) Run(ctx context.Context) {
	defer func() {
		_ = a.Logout(context.Background())
		_ = a.api.Close()
		_ = a.cache.Close()
	}()

	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	fmt.Fprintln(a.out, "crypto-chat CLI (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
}

func (a *App) getStatus() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := ""
	if a.session != nil {
		s = a.session.Handle + " "
	}
	s += string(a.Mode)
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

func (a *App) isLoggedIn() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session != nil
}

func (a *App) currentStream() eventStream {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stream
}

func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			err := a.api.Ping(ctx)
			cancel()

			if err != nil {
				a.setMode(ModeOffline)
			} else {
				a.setMode(ModeOnline)
			}

		case <-ctx.Done():
			return
		}
	}
}
