// Command chronikd is the process entry point of spec §1/§6: it wires the
// on-disk stores and the engine together and then blocks until shutdown.
// The node-side connector (NNG pub/sub ingestion, bitcoind RPC broadcast)
// is the out-of-scope external collaborator spec §1 describes; wiring a
// concrete Node into engine.Run is that connector's job, not this one's.
// Mirrors kaspad.go's thin config.Parse -> blockdag.New -> server.New shape.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/raipay/chronik-sub000/internal/config"
	"github.com/raipay/chronik-sub000/internal/engine"
	"github.com/raipay/chronik-sub000/internal/indexdb"
	"github.com/raipay/chronik-sub000/internal/logger"
	"github.com/raipay/chronik-sub000/internal/store"
	"github.com/raipay/chronik-sub000/internal/transientdb"
)

const defaultScriptTxsPageSize = 1000

var log = logger.Get(logger.Engine)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}

	logger.Init(cfg.LogFilePath())
	if err := logger.ParseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		return err
	}
	log = logger.Get(logger.Engine)

	db, err := store.Open(cfg.DBPath, indexdb.Mergers())
	if err != nil {
		return err
	}
	defer db.Close()

	transient, err := transientdb.Open(cfg.TransientDataPath)
	if err != nil {
		return err
	}
	defer transient.Close()

	eng, err := engine.New(engine.Deps{
		DB:             db,
		Transient:      transient,
		PageSize:       defaultScriptTxsPageSize,
		ScriptTxsCache: cfg.CacheScriptHistory,
		CheckSlpStrict: cfg.CheckSlpStrict,
		// Parser plugs in the token-protocol parser spec §1 treats as a
		// pure-function external collaborator operating on raw tx bytes;
		// the out-of-scope node connector supplies a concrete TokenParser
		// alongside the Node it constructs.
		Parser: nil,
	})
	if err != nil {
		return err
	}
	_ = eng

	log.Infow("chronikd ready", "host", cfg.Host, "network", cfg.Network, "dbPath", cfg.DBPath)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")
	return nil
}
