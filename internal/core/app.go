// Package core wires configuration, storage, AI routing, notification
// fan-out, the reminder sweeper, and the Telegram transport into one
// runnable application.
package core

import (
	"context"
	"sync"

	"relaybot/internal/ai"
	"relaybot/internal/config"
	"relaybot/internal/notify"
	"relaybot/internal/storage"
	"relaybot/internal/transport"
	"relaybot/internal/transport/telegram"
	"relaybot/pkg/logx"
)

const updateBuffer = 256

type App struct {
	cfgm *config.Manager

	logs *logx.Service
	log  logx.Logger

	store   storage.Gateway
	adapter *telegram.Adapter
	sender  *telegram.Sender
	fanout  *notify.Fanout
	sweeper *notify.Sweeper

	// aiMu guards the routing stack, which is rebuilt on config reload.
	aiMu       sync.RWMutex
	summarizer *ai.Summarizer

	updates chan transport.Update
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(logSvc.Logger().With(logx.String("comp", "config")))
	cfgm.SetValidator(validateConfig)

	storeCfg, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storeCfg, logSvc.Logger().With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	adapter, err := telegram.New(telegram.Config{Token: cfg.Telegram.Token},
		logSvc.Logger().With(logx.String("comp", "telegram")))
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	sender := telegram.NewSender(adapter.Bot(), cfg.Telegram.RatePerSec,
		logSvc.Logger().With(logx.String("comp", "sender")))

	summarizer, err := buildSummarizer(cfg, logSvc.Logger().With(logx.String("comp", "summarizer")))
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	notifierCfg, err := mapNotifierConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	finder := notify.NewKeywordFinder(store, cfg.Notifier.MaxSimilar)
	fanout := notify.NewFanout(store, sender, finder, notifierCfg,
		logSvc.Logger().With(logx.String("comp", "fanout")))

	sweeperCfg, err := mapSweeperConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	sweeper := notify.NewSweeper(store, fanout, sweeperCfg,
		logSvc.Logger().With(logx.String("comp", "sweeper")))

	return &App{
		cfgm:       cfgm,
		logs:       logSvc,
		log:        log,
		store:      store,
		adapter:    adapter,
		sender:     sender,
		fanout:     fanout,
		sweeper:    sweeper,
		summarizer: summarizer,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.updates = make(chan transport.Update, updateBuffer)
	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		cancel()
		return err
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.consume(runCtx)
	}()

	if a.cfgm.Get().Reminders.Enabled {
		if err := a.sweeper.Start(runCtx); err != nil {
			cancel()
			return err
		}
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgm.Watch(runCtx); err != nil {
			a.log.Warn("config watcher exited", logx.Err(err))
		}
	}()

	sub := a.cfgm.Subscribe(1)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case <-runCtx.Done():
				a.cfgm.Unsubscribe(sub)
				return
			case cfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(cfg)
			}
		}
	}()

	a.log.Info("started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	_ = a.adapter.Stop(ctx)
	a.sweeper.Stop()
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	err := a.store.Close()
	a.log.Info("stopped")
	_ = a.logs.Close()
	return err
}

// applyConfig commits what can change at runtime: log sinks/levels and the
// AI routing stack. Storage and the bot token stay fixed until restart.
func (a *App) applyConfig(cfg *config.Config) {
	a.logs.Apply(mapLoggingConfig(cfg))

	summarizer, err := buildSummarizer(cfg, a.logs.Logger().With(logx.String("comp", "summarizer")))
	if err != nil {
		a.log.Warn("keeping previous AI routing", logx.Err(err))
		return
	}
	a.aiMu.Lock()
	a.summarizer = summarizer
	a.aiMu.Unlock()
	a.log.Info("config applied")
}

func (a *App) currentSummarizer() *ai.Summarizer {
	a.aiMu.RLock()
	defer a.aiMu.RUnlock()
	return a.summarizer
}

func (a *App) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case up := <-a.updates:
			switch up.Kind {
			case transport.UpdateMessage:
				if up.Message != nil {
					a.handleMessage(ctx, up.Message)
				}
			case transport.UpdateCommand:
				if up.Command != nil {
					a.handleCommand(ctx, up.Command)
				}
			}
		}
	}
}
