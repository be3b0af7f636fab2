package cli

import (
	"context"
	"fmt"

	"github.com/timn835/crypto-chat/internal/client/client"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for a handle, password and optional email, creates the
// account and starts the session.
func (a *App) Register(ctx context.Context) error {
	handle, err := getSimpleText(a.reader, "Enter handle", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Enter email (optional)", a.out)
	if err != nil {
		return err
	}

	sess, err := a.api.Register(ctx, handle, password, email)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Success!")
	return a.startSession(ctx, sess)
}

// Login prompts for credentials and starts the session.
func (a *App) Login(ctx context.Context) error {
	handle, err := getSimpleText(a.reader, "Enter handle", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}

	sess, err := a.api.Login(ctx, handle, password)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Logged in as %s\n", sess.Handle)
	return a.startSession(ctx, sess)
}

// startSession opens the event stream, then loads the conversation list.
// Events arriving meanwhile are applied on top of the loaded list.
func (a *App) startSession(ctx context.Context, sess *client.Session) error {
	stream, err := dialEvents(ctx, a.config.ServerWebsocketURL, sess.AccessToken)
	if err != nil {
		a.api.Logout()
		return fmt.Errorf("realtime connection failed: %w", err)
	}

	chats, err := a.api.ListChats(ctx)
	if err != nil {
		_ = stream.Close()
		a.api.Logout()
		return err
	}
	if err := a.cache.Replace(ctx, chats); err != nil {
		_ = stream.Close()
		a.api.Logout()
		return err
	}

	pumpCtx, cancel := context.WithCancel(context.Background())

	a.mu.Lock()
	a.session = sess
	a.stream = stream
	a.stopEvents = cancel
	a.mu.Unlock()

	go a.pumpEvents(pumpCtx, stream)
	return nil
}

// Logout closes the event stream and forgets the session and cached chats.
func (a *App) Logout(ctx context.Context) error {
	a.mu.Lock()
	stream, stop := a.stream, a.stopEvents
	a.session, a.stream, a.stopEvents = nil, nil, nil
	a.mu.Unlock()

	if stop != nil {
		stop()
	}
	if stream != nil {
		_ = stream.Close()
	}
	a.api.Logout()

	if err := a.cache.CloseChat(ctx); err != nil {
		return err
	}
	return a.cache.Replace(ctx, nil)
}
