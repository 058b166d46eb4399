package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/S0me0neR0man/simbook/internal/checker"
	"github.com/S0me0neR0man/simbook/internal/client"
	"github.com/S0me0neR0man/simbook/internal/record"
)

func main() {
	addr := flag.String("addr", ":3200", "simbook grpc address")
	fg := flag.Int("fg", record.EFAdn, "file group to exercise")
	authCode := flag.String("auth", "", "auth code for restricted file groups")
	goCount := flag.Uint("go", 2, "goroutines per state")
	interval := flag.Duration("interval", 100*time.Millisecond, "pause between new records")
	duration := flag.Duration("duration", 0, "stop after, 0 - until signalled")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatal(err)
	}

	cl, err := client.NewGRPClient(*addr)
	if err != nil {
		logger.Fatal("dial", zap.Error(err))
	}
	defer cl.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	c, err := checker.NewPhoneBookChecker(cl, *fg, *authCode, *goCount, logger)
	if err != nil {
		logger.Fatal("checker", zap.Error(err))
	}
	c.SetInterval(*interval)
	if err = c.Go(ctx); err != nil {
		logger.Fatal("checker", zap.Error(err))
	}
	c.Wait()

	states := c.States()
	sort.Slice(states, func(i, j int) bool { return states[i].Id < states[j].Id })
	failed := int64(0)
	for _, s := range states {
		fmt.Fprintln(os.Stdout, s)
		failed += s.Failed()
	}
	if failed > 0 {
		os.Exit(1)
	}
}
