package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/kazusato/trade-journal/internal/service/syncer"
	"github.com/kazusato/trade-journal/ioc"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func initViper() {

	// --config=./config/xxx.yaml
	file := pflag.String("config", "./config/config.yaml", "specify config file")
	pflag.Parse()

	viper.SetConfigFile(*file)
	err := viper.ReadInConfig()
	if err != nil {
		panic(fmt.Errorf("fatal error config file: %s \n", err))
	}
}

func main() {
	initViper()

	txSvc, err := ioc.InitTransactionService()
	if err != nil {
		panic(err)
	}
	notionCli := ioc.InitNotionCli()

	svc := syncer.NewService(txSvc, notionCli, ioc.InitSyncConfig())
	task := syncer.NewTask(svc)

	slog.Info("running task", "name", task.Name())
	if err := task.Run(context.Background()); err != nil {
		slog.Error("sync failed", "error", err)
		os.Exit(1)
	}
}
