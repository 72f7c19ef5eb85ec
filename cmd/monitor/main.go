package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kazusato/trade-journal/internal/service/monitor"
	"github.com/kazusato/trade-journal/ioc"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func initViper() *bool {

	// --config=./config/xxx.yaml
	file := pflag.String("config", "./config/config.yaml", "specify config file")
	test := pflag.Bool("test", false, "post a test message to the webhook and exit")
	pflag.Parse()

	viper.SetConfigFile(*file)
	err := viper.ReadInConfig()
	if err != nil {
		panic(fmt.Errorf("fatal error config file: %s \n", err))
	}
	return test
}

func main() {
	test := initViper()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	discordNotifier := ioc.InitDiscordNotifier()

	if *test {
		slog.Info("sending test message to webhook")
		if err := discordNotifier.SendTest(ctx); err != nil {
			slog.Error("webhook test failed", "error", err)
			os.Exit(1)
		}
		slog.Info("test message sent")
		return
	}

	stream, err := ioc.InitStream()
	if err != nil {
		panic(err)
	}

	slog.Info("--- starting real-time monitor ---")
	m := monitor.NewMonitor(stream, discordNotifier)
	defer m.Close()

	if err := m.Start(ctx); err != nil && ctx.Err() == nil {
		slog.Error("monitor crashed", "error", err)
		os.Exit(1)
	}
	slog.Info("monitor stopped")
}
