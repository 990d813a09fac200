package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/trip-seat-booking/internal/client"
)

// resume loads the saved tokens.  The client refreshes them when needed and
// save writes the rotated pair back.
func (a *app) resume(ctx context.Context) error {
	buf, err := os.ReadFile(a.statePath)
	if errors.Is(err, os.ErrNotExist) {
		return errors.New("not signed in, run: seatctl login EMAIL PASSWORD")
	}
	if err != nil {
		return err
	}
	var t client.Tokens
	if err := json.Unmarshal(buf, &t); err != nil {
		return fmt.Errorf("read %s: %w", a.statePath, err)
	}
	p, err := a.client.Resume(ctx, t)
	if err != nil {
		return fmt.Errorf("resume session: %w", err)
	}
	logrus.WithField("user", p.Email).Debug("session resumed")
	return nil
}

func (a *app) save() {
	t := a.client.Tokens()
	if t.Refresh == "" {
		_ = os.Remove(a.statePath)
		return
	}
	buf, err := json.Marshal(t)
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(a.statePath), 0o700); err != nil {
		logrus.WithError(err).Warn("could not save session")
		return
	}
	if err := os.WriteFile(a.statePath, buf, 0o600); err != nil {
		logrus.WithError(err).Warn("could not save session")
	}
}
