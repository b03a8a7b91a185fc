package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/demesne/go-demesne-server/apiroutes"
	"github.com/demesne/go-demesne-server/global"
	"github.com/demesne/go-demesne-server/types"
	"github.com/go-kit/log/level"
	cfg "github.com/mailio/go-web3-kit/config"
	w3srv "github.com/mailio/go-web3-kit/gingonic"
)

func main() {
	var (
		configFile string
	)
	// configuration file optional path. Default:  current dir with  filename conf.yaml
	flag.StringVar(&configFile, "c", "conf.yaml", "Configuration file path.")
	flag.StringVar(&configFile, "config", "conf.yaml", "Configuration file path.")
	flag.Usage = usage
	flag.Parse()

	// loading configuration file
	err := cfg.NewYamlConfig(configFile, &global.Conf)
	if err != nil {
		global.Logger.Log(err, "conf.yaml failed to load")
		panic("Failed to load conf.yaml")
	}
	global.Conf.ApplyDefaults()
	global.ConfigureLogger(global.Conf.Mode)

	loadServerEd25519Keys(global.Conf)

	rrClient := initRedisRateLimiter(global.Conf)
	if rrClient != nil {
		defer rrClient.Close()
	}
	redisClient := initRedis(global.Conf)
	if redisClient != nil {
		defer redisClient.Close()
	}

	env := types.NewEnvironment(redisClient)
	defer env.Cron.Stop()

	// server wait to shutdown monitoring channels
	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)

	signal.Notify(quit, os.Interrupt)

	// init routing (for RESTful API endpoints)
	router := w3srv.NewAPIRouter(&global.Conf.YamlConfig)

	dbSelector := ConfigDBSelector()

	// configure S3 storage (repository backups)
	ConfigS3Storage(&global.Conf, env)

	store, gate := ConfigKeystore(&global.Conf, env)
	svc := apiroutes.NewServices(dbSelector, env, store, gate)
	defer svc.Close()

	ConfigSessionRefresh(svc, env)

	// configure routes
	router = apiroutes.ConfigRoutes(router, svc)

	// start server
	srv := w3srv.Start(&global.Conf.YamlConfig, router)
	// wait for server shutdown
	go w3srv.Shutdown(srv, quit, done)

	level.Info(global.Logger).Log("msg", "server is ready to handle requests", "port", global.Conf.Port, "plc", global.Conf.Demesne.PlcDirectoryURL)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("%v\n", err))
	}

	<-done
}

// usage will print out the flag options for the server.
func usage() {
	usageStr := `Usage: demesne-server [options]
	Server Options:
	-c, --config <file>              Configuration file path
`
	fmt.Printf("%s\n", usageStr)
	os.Exit(0)
}
