package main

import (
	"fmt"
	"os"

	"github.com/getsentry/sentry-go"

	"tether/logger"
	"tether/server"
	"tether/utils"
)

//Options description
type OptsDesc struct {
	//number of expected parameters
	parametersCount int
	//handler to process the option
	handler func(p []string) error
}

const (
	defHost = "127.0.0.1"
	defPort = "8080"
)

func main() {
	appConfig := utils.GetConfig()
	srv := server.New(defHost, defPort, appConfig.UrlPrefix)

	opts := map[string]OptsDesc{
		"-a": {1, func(p []string) error {
			srv.SetAddr(p[0])
			return nil
		}},
		"-p": {1, func(p []string) error {
			srv.SetPort(p[0])
			return nil
		}},
		"-r": {1, func(p []string) error {
			srv.SetRoot(p[0])
			return nil
		}},
	}

	args := os.Args[1:]
	for len(args) > 0 {
		if opt, ok := opts[args[0]]; ok && len(args) >= opt.parametersCount+1 {
			if err := opt.handler(args[1 : opt.parametersCount+1]); err != nil {
				fmt.Fprintln(os.Stderr, err.Error())
				os.Exit(127)
			}
			args = args[opt.parametersCount+1:]
		} else {
			fmt.Fprintf(os.Stderr, "Wrong argument '%s'\n", args[0])
			os.Exit(127)
		}
	}

	if err := sentry.Init(sentry.ClientOptions{Dsn: appConfig.SentryDsn}); err != nil {
		logger.Error("Sentry initialization failed: %s", err.Error())
	}

	logger.Info("Tether server started.")
	logger.Error("Server error: %s", srv.Setup(appConfig).ListenAndServe().Error())
}
