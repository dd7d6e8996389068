package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"coursewatch/internal/broadcast"
	"coursewatch/internal/cache"
	"coursewatch/internal/commands"
	"coursewatch/internal/config"
	"coursewatch/internal/eventbus"
	"coursewatch/internal/fetcher"
	"coursewatch/internal/notifier"
	"coursewatch/internal/portal"
	"coursewatch/internal/runtime/supervisor"
	"coursewatch/internal/schedule"
	"coursewatch/internal/storage"
	"coursewatch/internal/subscribers"
	kit "coursewatch/internal/transport"
	telegram "coursewatch/internal/transport/telegram/adapter"
	"coursewatch/internal/transport/telegram/router"
	logx "coursewatch/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	set  config.Settings
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	adapter kit.Adapter
	subs    *subscribers.Store
	cache   *cache.Store
	fetch   *fetcher.Fetcher
	notif   *notifier.Service
	bcast   *broadcast.Scheduler
	cmds    *commands.Handlers
	cmdm    *router.CommandManager

	updates chan kit.Update
}

// New loads the config at cfgPath and wires every component. Nothing runs
// until Start.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	set, err := config.Resolve(cfg)
	if err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))
	ad, err := telegram.New(telegram.Config{
		Token:       set.Token,
		PollTimeout: set.PollTimeout,
	}, bootLog)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logConfig(cfg), ad)
	appLog := log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	backend, err := storage.Open(storageConfig(set), log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	subs := subscribers.New(backend, log.With(logx.String("comp", "subscribers")))

	up, err := portal.New(portalConfig(set), log.With(logx.String("comp", "portal")))
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	store := cache.New(set.CacheTTL)
	var active *cache.Store
	if set.CacheEnabled {
		active = store
	}
	fetch := fetcher.New(up, active, log.With(logx.String("comp", "fetcher")))

	notif := notifier.New(notifierConfig(set), ad, fetch, bus, log.With(logx.String("comp", "notifier")))
	bcast := broadcast.New(subs, fetch, notif, bus, log.With(logx.String("comp", "broadcast")))

	cmds := commands.New(commands.Deps{
		Store:    subs,
		Notifier: notif,
		Cache:    fetch,
		Log:      log.With(logx.String("comp", "commands")),
	})
	cmdm := router.NewCommandManager(log, ad, router.Options{
		DefaultTimeout: set.CommandTimeout,
	})

	appLog.Info("app configured",
		logx.String("storage", set.StorageDriver),
		logx.String("schedule", set.Schedule),
		logx.Bool("cache", set.CacheEnabled),
	)

	return &App{
		cfgm:    cfgm,
		set:     set,
		log:     appLog,
		logs:    logSvc,
		bus:     bus,
		adapter: ad,
		subs:    subs,
		cache:   store,
		fetch:   fetch,
		notif:   notif,
		bcast:   bcast,
		cmds:    cmds,
		cmdm:    cmdm,
		updates: make(chan kit.Update, 256),
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err := a.subs.Load(loadCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("load subscribers: %w", err)
	}

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		_, err := config.Resolve(cfg)
		return err
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	a.cmdm.SetRegistry(a.sup.Context(), a.cmds.Commands())

	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.cmdm.DispatchLoop(c, a.updates)
	})

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
				for drained := false; !drained; {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						drained = true
					}
				}
				a.applyConfig(last, newCfg)
				last = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	spec, err := schedule.Parse(a.set.Schedule)
	if err != nil {
		return err
	}
	if err := a.bcast.Start(a.sup.Context(), spec, a.set.Warmup, a.set.Timezone); err != nil {
		return err
	}

	a.log.Info("app started", logx.String("schedule", spec.String()))
	return nil
}

// applyConfig pushes the live-reloadable parts of a validated config into
// the running components. Portal, storage, schedule and the bot token only
// take effect after a restart.
func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	ch := config.SummarizeChange(oldCfg, newCfg)
	if len(ch.Sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	set, err := config.Resolve(newCfg)
	if err != nil {
		a.log.Warn("invalid config after reload; keeping previous", logx.Err(err))
		return
	}
	a.log.Debug("config change summary", append([]logx.Field{logx.String("changed", strings.Join(ch.Sections, ","))}, ch.Fields...)...)

	if ch.Has("logging") || ch.Has("telegram") {
		a.logs.Apply(logConfig(newCfg))
	}
	if ch.Has("cache") {
		a.cache.SetTTL(set.CacheTTL)
		if set.CacheEnabled {
			a.fetch.SetCache(a.cache)
		} else {
			a.fetch.SetCache(nil)
		}
	}
	// send_delay lives under broadcast.
	if ch.Has("notifier") || ch.Has("broadcast") {
		a.notif.Apply(notifierConfig(set))
	}
	if len(ch.Restart) > 0 {
		a.log.Warn("config changed; restart required for changes to take effect",
			logx.String("settings", strings.Join(ch.Restart, ",")))
	}

	eventbus.Publish(a.bus, eventbus.TypeConfigReloaded, ch.Sections)
	a.log.Info("config reloaded", logx.String("changed", strings.Join(ch.Sections, ",")))
}
