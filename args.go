package main

import (
	"os"

	"github.com/pborman/getopt"
)

var configPath string
var debugLogging bool

func parseArgs() {
	h := getopt.BoolLong("help", 'h', "display help")
	c := getopt.StringLong("config", 'c', "config.yaml", "Path to config file")
	d := getopt.BoolLong("debug", 'd', "Log at debug level, including every register write")

	getopt.Parse()

	if *h || *c == "" {
		getopt.Usage()
		os.Exit(1)
	}

	configPath = *c
	debugLogging = *d
}
