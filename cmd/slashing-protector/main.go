package main

import (
	"log"
	"net/http"
	"os"

	"github.com/alecthomas/kong"
	protectorhttp "github.com/ethvault/slashing-protector/http"
	"github.com/ethvault/slashing-protector/protector"
	"github.com/ethvault/slashing-protector/protector/store"
	"go.uber.org/zap"
)

var CLI struct {
	DbPath        string `env:"DB_PATH" description:"Path to the database directory" default:"/slashing-protector-data"`
	Addr          string `env:"ADDR" description:"Address to listen on" default:":9369"`
	SlotsPerEpoch uint64 `env:"SLOTS_PER_EPOCH" description:"Network parameter, threaded through to the store" default:"32"`
	MaxEpoch      uint64 `env:"MAX_EPOCH" description:"Reject attestations whose target epoch exceeds this (0 means unbounded)"`
	MaxSlot       uint64 `env:"MAX_SLOT" description:"Reject proposals whose slot exceeds this (0 means unbounded)"`
	Dev           bool   `env:"DEV" description:"Use a development (console, debug-level) logger instead of a production JSON logger"`
}

func main() {
	kong.Parse(&CLI)

	logger, err := newLogger(CLI.Dev)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	logger.Info("starting slashing-protector",
		zap.String("db_path", CLI.DbPath),
		zap.String("addr", CLI.Addr),
		zap.Uint64("slots_per_epoch", CLI.SlotsPerEpoch),
	)

	if err := os.MkdirAll(CLI.DbPath, 0700); err != nil {
		logger.Fatal("failed to create db_path", zap.Error(err))
	}

	svc := protector.New(CLI.DbPath, store.Config{
		SlotsPerEpoch: CLI.SlotsPerEpoch,
		MaxEpoch:      protector.Epoch(CLI.MaxEpoch),
		MaxSlot:       protector.Slot(CLI.MaxSlot),
	}, logger)
	defer svc.Close()

	srv := protectorhttp.NewServer(logger, svc)
	logger.Fatal("ListenAndServe", zap.Error(http.ListenAndServe(CLI.Addr, srv)))
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
