package main

import "time"

// Flag structs decouple cobra from command logic for testing.

// GlobalFlags holds persistent flags shared by every subcommand.
type GlobalFlags struct {
	ConfigPath string
}

type StartFlags struct {
	ConfigPath string
	Daemonize  bool
	LogFile    string
}

type StopFlags struct {
	ConfigPath string
	Wait       time.Duration
}

type RestartFlags struct {
	ConfigPath string
	Wait       time.Duration
	Daemonize  bool
	LogFile    string
}

type ReloadFlags struct {
	ConfigPath string
}

type StatusFlags struct {
	ConfigPath string
	Name       string
	APIUrl     string
	APITimeout time.Duration
}
