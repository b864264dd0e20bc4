package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/corey/cognitia/internal/adapters/socket"
	"github.com/corey/cognitia/internal/app"
	"github.com/corey/cognitia/internal/config"
	"github.com/corey/cognitia/internal/ports"
)

// localTimeout bounds one offline command against the store.
const localTimeout = 30 * time.Second

// daemonClient returns a client when the daemon is reachable, nil otherwise.
func daemonClient(root string) *socket.Client {
	client := socket.NewClient(socket.SocketPath(root))
	if !client.Ping() {
		return nil
	}
	return client
}

// withStore opens the project's configured store for commands that run
// while the daemon is down. The daemon holds the store lock while it runs.
func withStore(root string, fn func(ctx context.Context, store ports.TopicStore) error) error {
	paths := app.NewPaths(root)
	if err := paths.EnsureDirs(); err != nil {
		return err
	}
	settings, err := config.Load(paths.Config)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), localTimeout)
	defer cancel()

	store, err := app.OpenStore(ctx, settings, paths)
	if err != nil {
		if isDBLockError(err) {
			return fmt.Errorf("%s", diagnoseDBLock(root))
		}
		return err
	}
	defer store.Close()
	return fn(ctx, store)
}

// withLocalApp builds an in-process App (store, seed, matcher) without
// starting any servers.
func withLocalApp(root string, fn func(a *app.App) error) error {
	a, err := app.New(app.Config{ProjectRoot: root})
	if err != nil {
		if isDBLockError(err) {
			return fmt.Errorf("%s", diagnoseDBLock(root))
		}
		return err
	}
	defer a.Stop()
	return fn(a)
}
