package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"hashdex/cmd/hdx/commands"
)

func main() {
	// Ctrl-C 中止运行：删除队列不会被清空
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.Execute(ctx); err != nil {
		log.Fatal(err)
	}
}
