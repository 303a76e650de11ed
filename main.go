package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/judgegodwins/ludo-server/api"
	"github.com/judgegodwins/ludo-server/store"
	"github.com/judgegodwins/ludo-server/tokens"
	"github.com/judgegodwins/ludo-server/util"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const releaseVersion = "0.1.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)
	log.SetPrefix("ludo: ")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cobra.CheckErr(newCmd().ExecuteContext(ctx))
}

func newCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ludo-server",
		Short:         "Realtime four-player Ludo rooms over websockets.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := util.LoadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			return serve(cmd.Context(), config)
		},
	}

	util.RegisterFlags(cmd.Flags())

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("ludo-server v{{.Version}}\n")

	return cmd
}

func serve(ctx context.Context, config *util.Config) error {
	if !config.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	maker, err := tokens.NewMaker(config.TokenKind, config.TokenSecret)
	if err != nil {
		return err
	}

	st, err := openStore(ctx, config)
	if err != nil {
		return err
	}
	defer st.Close()

	server := api.NewServer(config, st, maker)

	return server.Start(ctx)
}

func openStore(ctx context.Context, config *util.Config) (store.Store, error) {
	if config.Store == util.StoreMemory {
		log.Println("using in-memory store, state is lost on restart")
		return store.NewMemoryStore(), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddress,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})

	// check redis connection status
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}

	return store.NewRedisStore(rdb, store.RedisOptions{TTL: config.RoomTTL}), nil
}
